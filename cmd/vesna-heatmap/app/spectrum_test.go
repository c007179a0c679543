package app

import (
	"testing"

	"github.com/icopavan/vesna-alh-tools/internal/spectrum"
)

func TestSpectrumDataUpdate(t *testing.T) {
	spec := NewSpectrumData(NewSmoothBounds(0.3))

	spec.Update(&spectrum.Span{
		Sweep:          0,
		Timestamp:      10,
		FrequencyStart: 868e6,
		FrequencyEnd:   868.4e6,
		Points: []spectrum.Point{
			{Frequency: 868e6, Power: -90},
			{Frequency: 868.2e6, Power: -80},
			{Frequency: 868.4e6, Power: -70},
		},
	})
	spec.Update(&spectrum.Span{
		Sweep:          1,
		Timestamp:      12,
		FrequencyStart: 868e6,
		FrequencyEnd:   868.2e6,
		Points: []spectrum.Point{
			{Frequency: 868e6, Power: -60},
			{Frequency: 868.2e6, Power: -50},
		},
	})

	if spec.Width != 3 || spec.Height != 2 {
		t.Errorf("size = %dx%d, want 3x2", spec.Width, spec.Height)
	}
	if spec.TimeStart != 10 || spec.TimeEnd != 12 {
		t.Errorf("time range = %v to %v, want 10 to 12", spec.TimeStart, spec.TimeEnd)
	}
	if spec.FrequencyMin != 868e6 || spec.FrequencyMax != 868.4e6 {
		t.Errorf("frequency range = %v to %v", spec.FrequencyMin, spec.FrequencyMax)
	}

	if len(spec.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(spec.Rows))
	}
	if len(spec.Rows[1]) != 2 || spec.Rows[1][1] != -50 {
		t.Errorf("short row = %v, want [-60 -50]", spec.Rows[1])
	}
}
