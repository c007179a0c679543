package app

import (
	"math"

	"github.com/icopavan/vesna-alh-tools/internal/spectrum"
)

// SpectrumData accumulates the sweeps of a session into a ragged power
// matrix, one row per sweep, and tracks the ranges needed for rendering.
// A row shorter than Width means the sweep stopped early; the missing tail
// renders as no-data pixels.
type SpectrumData struct {
	Width, Height              int
	FrequencyMin, FrequencyMax float64
	TimeStart, TimeEnd         float64 // device clock seconds
	BoundsTracker              *SmoothBounds
	Rows                       [][]float64
}

func NewSpectrumData(b *SmoothBounds) *SpectrumData {
	return &SpectrumData{
		FrequencyMin:  math.MaxFloat64,
		FrequencyMax:  -math.MaxFloat64,
		TimeStart:     math.MaxFloat64,
		TimeEnd:       -math.MaxFloat64,
		BoundsTracker: b,
		Rows:          make([][]float64, 0),
	}
}

func (s *SpectrumData) Update(span *spectrum.Span) {
	s.Width = max(s.Width, len(span.Points))
	s.Height++

	s.FrequencyMin = min(s.FrequencyMin, span.FrequencyStart)
	s.FrequencyMax = max(s.FrequencyMax, span.FrequencyEnd)
	s.TimeStart = min(s.TimeStart, span.Timestamp)
	s.TimeEnd = max(s.TimeEnd, span.Timestamp)

	row := make([]float64, len(span.Points))
	for i, point := range span.Points {
		row[i] = point.Power
		s.BoundsTracker.Update(point.Power)
	}
	s.Rows = append(s.Rows, row)
}
