package app

import "testing"

func TestPowerHistogramDefaultsUnderMinimum(t *testing.T) {
	h := NewPowerHistogram()
	for i := 0; i < minimumSampleCount-1; i++ {
		h.Update(-50)
	}

	bounds := h.GetPercentileBounds()
	if bounds.Min != defaultMinPower || bounds.Max != defaultMaxPower {
		t.Errorf("bounds = %+v, want defaults %v to %v", bounds, defaultMinPower, defaultMaxPower)
	}
}

func TestPowerHistogramPercentiles(t *testing.T) {
	h := NewPowerHistogram()
	// One sample per 1dBm bin from -100 to -1.
	for i := 0; i < 100; i++ {
		h.Update(-float64(i) - 0.5)
	}

	bounds := h.GetPercentileBounds()

	// 5th percentile bin -96, 95th percentile bin -5, 10% margin of 9dB.
	if bounds.Min != -105 {
		t.Errorf("bounds.Min = %v, want -105", bounds.Min)
	}
	if bounds.Max != 4 {
		t.Errorf("bounds.Max = %v, want 4", bounds.Max)
	}
	if bounds.Mean != -50.5 {
		t.Errorf("bounds.Mean = %v, want -50.5", bounds.Mean)
	}
}

func TestPowerHistogramMinimumRange(t *testing.T) {
	h := NewPowerHistogram()
	for i := 0; i < 50; i++ {
		h.Update(-60.2)
	}

	bounds := h.GetPercentileBounds()

	// All samples in one bin, so the 30dB minimum range applies around it,
	// plus the 10% margin.
	if bounds.Min != -79 {
		t.Errorf("bounds.Min = %v, want -79", bounds.Min)
	}
	if bounds.Max != -43 {
		t.Errorf("bounds.Max = %v, want -43", bounds.Max)
	}
}

func TestSmoothBounds(t *testing.T) {
	s := NewSmoothBounds(1.0)

	var last PowerBounds
	for i := 0; i < 100; i++ {
		last = s.Update(-float64(i) - 0.5)
	}

	if last != s.Current() {
		t.Errorf("Update returned %+v, Current is %+v", last, s.Current())
	}
	// With alpha 1 the smoothed bounds track the histogram directly.
	if s.Current().Min != -105 || s.Current().Max != 4 {
		t.Errorf("bounds = %+v, want -105 to 4", s.Current())
	}

	s.Set(PowerBounds{Min: -90, Max: -30})
	if s.Current().Min != -90 || s.Current().Max != -30 {
		t.Errorf("bounds after Set = %+v", s.Current())
	}

	s.Clear()
	if s.Current() != defaultPowerBounds() {
		t.Errorf("bounds after Clear = %+v, want defaults", s.Current())
	}
}
