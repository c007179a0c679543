package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/icopavan/vesna-alh-tools/internal/sensing"
	"github.com/icopavan/vesna-alh-tools/internal/spectrum"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s := New(filepath.Join(t.TempDir(), "sensing.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func testResult(t *testing.T) *sensing.Result {
	t.Helper()

	device := &sensing.Device{ID: 0, Name: "CC2500"}
	config := &sensing.DeviceConfig{
		ID:       1,
		Name:     "868 MHz ISM, 200 kHz bandwidth",
		Device:   device,
		Base:     868000000,
		Spacing:  200000,
		BW:       200000,
		Channels: 10,
		Time:     5,
	}
	sc, err := sensing.NewSweepConfig(config, 0, 3, 1)
	if err != nil {
		t.Fatalf("NewSweepConfig failed: %v", err)
	}

	return &sensing.Result{
		Program: &sensing.Program{
			SweepConfig: sc,
			Start:       time.Unix(1408000000, 0),
			Duration:    30 * time.Second,
			Slot:        4,
		},
		Sweeps: []sensing.Sweep{
			{Timestamp: 1.0, Data: []float64{-90, -91.5, -92.25}},
			{Timestamp: 2.0, Data: []float64{-80, -81, -82}},
			{Timestamp: 3.0, Data: []float64{-70, -71}},
		},
	}
}

func readSpans(t *testing.T, reader *SpanReader) []*spectrum.Span {
	t.Helper()

	var spans []*spectrum.Span
	for reader.Next(context.Background()) {
		spans = append(spans, reader.Current())
	}
	if err := reader.Error(); err != nil {
		t.Fatalf("reading spans failed: %v", err)
	}
	return spans
}

func TestStore_SessionRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "https://crn.example.com/communicator", "dev 0 cfg 1", map[string]int{"slot": 4})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected session ID 1, got %d", id)
	}

	sess, err := s.Session(ctx, id)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if sess.ID != id {
		t.Errorf("expected ID %d, got %d", id, sess.ID)
	}
	if sess.Node != "https://crn.example.com/communicator" {
		t.Errorf("unexpected node %q", sess.Node)
	}
	if sess.Device != "dev 0 cfg 1" {
		t.Errorf("unexpected device %q", sess.Device)
	}
	if sess.Config == nil || *sess.Config != `{"slot":4}` {
		t.Errorf("unexpected config %v", sess.Config)
	}
	if sess.StartTime.IsZero() {
		t.Error("expected start time to be set")
	}
}

func TestStore_CreateSessionConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  any
		want    string
		wantNil bool
	}{
		{"nil", nil, "", true},
		{"string", "slot=4", "slot=4", false},
		{"bytes", []byte("slot=4"), "slot=4", false},
		{"object", struct {
			Slot int `json:"slot"`
		}{4}, `{"slot":4}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			ctx := context.Background()

			id, err := s.CreateSession(ctx, "node", "dev", tt.config)
			if err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}

			sess, err := s.Session(ctx, id)
			if err != nil {
				t.Fatalf("Session failed: %v", err)
			}
			if tt.wantNil {
				if sess.Config != nil {
					t.Fatalf("expected no config, got %q", *sess.Config)
				}
				return
			}
			if sess.Config == nil {
				t.Fatal("expected config to be set")
			}
			if *sess.Config != tt.want {
				t.Errorf("expected config %q, got %q", tt.want, *sess.Config)
			}
		})
	}
}

func TestStore_Sessions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, device := range []string{"dev 0 cfg 1", "dev 1 cfg 2"} {
		if _, err := s.CreateSession(ctx, "node", device, nil); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != 1 || sessions[1].ID != 2 {
		t.Errorf("unexpected session IDs %d, %d", sessions[0].ID, sessions[1].ID)
	}
	if sessions[1].Device != "dev 1 cfg 2" {
		t.Errorf("unexpected device %q", sessions[1].Device)
	}
}

func TestStore_ResultRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	result := testResult(t)
	id, err := s.CreateSession(ctx, "node", "dev 0 cfg 1", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err = s.StoreResult(ctx, id, result); err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}

	reader, err := s.Spans(ctx, id)
	if err != nil {
		t.Fatalf("Spans failed: %v", err)
	}
	defer reader.Close()

	if reader.Session().Node != "node" {
		t.Errorf("unexpected session node %q", reader.Session().Node)
	}

	hz := result.HzList()
	spans := readSpans(t, reader)

	if len(spans) != len(result.Sweeps) {
		t.Fatalf("expected %d spans, got %d", len(result.Sweeps), len(spans))
	}
	for i, span := range spans {
		sweep := result.Sweeps[i]

		if span.Sweep != i {
			t.Errorf("span %d: unexpected sequence number %d", i, span.Sweep)
		}
		if span.Timestamp != sweep.Timestamp {
			t.Errorf("span %d: timestamp %f, want %f", i, span.Timestamp, sweep.Timestamp)
		}
		if len(span.Points) != len(sweep.Data) {
			t.Fatalf("span %d: expected %d points, got %d", i, len(sweep.Data), len(span.Points))
		}
		if span.FrequencyStart != hz[0] {
			t.Errorf("span %d: frequency start %f, want %f", i, span.FrequencyStart, hz[0])
		}
		if want := hz[len(span.Points)-1]; span.FrequencyEnd != want {
			t.Errorf("span %d: frequency end %f, want %f", i, span.FrequencyEnd, want)
		}
		for n, point := range span.Points {
			if point.Frequency != hz[n] {
				t.Errorf("span %d point %d: frequency %f, want %f", i, n, point.Frequency, hz[n])
			}
			if point.Power != sweep.Data[n] {
				t.Errorf("span %d point %d: power %f, want %f", i, n, point.Power, sweep.Data[n])
			}
		}
	}
}

func TestStore_SpansFreqFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	result := testResult(t)
	id, err := s.CreateSession(ctx, "node", "dev 0 cfg 1", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err = s.StoreResult(ctx, id, result); err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}

	hz := result.HzList()
	reader, err := s.Spans(ctx, id, WithFreqRange(hz[1], hz[2]))
	if err != nil {
		t.Fatalf("Spans failed: %v", err)
	}
	defer reader.Close()

	spans := readSpans(t, reader)
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	// The last sweep stopped after two samples, so only one of them falls
	// inside the filtered range.
	for i, want := range []int{2, 2, 1} {
		if len(spans[i].Points) != want {
			t.Errorf("span %d: expected %d points, got %d", i, want, len(spans[i].Points))
		}
		if spans[i].FrequencyStart != hz[1] {
			t.Errorf("span %d: frequency start %f, want %f", i, spans[i].FrequencyStart, hz[1])
		}
	}
	if got := spans[2].Points[0].Power; got != -71 {
		t.Errorf("expected power -71, got %f", got)
	}
}

func TestStore_SpansTimeFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	result := testResult(t)
	id, err := s.CreateSession(ctx, "node", "dev 0 cfg 1", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err = s.StoreResult(ctx, id, result); err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}

	reader, err := s.Spans(ctx, id, WithTimeRange(1.5, 2.5))
	if err != nil {
		t.Fatalf("Spans failed: %v", err)
	}
	defer reader.Close()

	spans := readSpans(t, reader)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Sweep != 1 {
		t.Errorf("expected sweep 1, got %d", spans[0].Sweep)
	}
	if spans[0].Timestamp != 2.0 {
		t.Errorf("expected timestamp 2.0, got %f", spans[0].Timestamp)
	}
}

func TestStore_SpansInvalidFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "node", "dev", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err = s.Spans(ctx, id, WithTimeRange(2, 1)); err == nil {
		t.Error("expected error for inverted time range")
	}
	if _, err = s.Spans(ctx, id, WithFreqRange(900e6, 800e6)); err == nil {
		t.Error("expected error for inverted frequency range")
	}
}

func TestStore_SpansEmptySession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "node", "dev", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	reader, err := s.Spans(ctx, id)
	if err != nil {
		t.Fatalf("Spans failed: %v", err)
	}
	defer reader.Close()

	if reader.Next(ctx) {
		t.Error("expected no spans")
	}
	if err := reader.Error(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStore_SpansUnknownSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.CreateSession(ctx, "node", "dev", nil); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := s.Spans(ctx, 99); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestStore_SpansCancelledContext(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	result := testResult(t)
	id, err := s.CreateSession(ctx, "node", "dev 0 cfg 1", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err = s.StoreResult(ctx, id, result); err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}

	reader, err := s.Spans(ctx, id)
	if err != nil {
		t.Fatalf("Spans failed: %v", err)
	}
	defer reader.Close()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	if reader.Next(cancelled) {
		t.Error("expected no spans after cancellation")
	}
	if err := reader.Error(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStore_StoreResultEmpty(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	result := testResult(t)
	result.Sweeps = nil

	id, err := s.CreateSession(ctx, "node", "dev", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err = s.StoreResult(ctx, id, result); err != nil {
		t.Fatalf("StoreResult failed: %v", err)
	}

	reader, err := s.Spans(ctx, id)
	if err != nil {
		t.Fatalf("Spans failed: %v", err)
	}
	defer reader.Close()

	if reader.Next(ctx) {
		t.Error("expected no spans")
	}
}

func TestStore_CloseIdempotent(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "sensing.db"))

	if _, err := s.CreateSession(context.Background(), "node", "dev", nil); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
