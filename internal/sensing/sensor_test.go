package sensing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type nodeCall struct {
	method   string
	resource string
	data     string
	args     []string
}

// fakeNode records every call and answers through a scripted handler.
type fakeNode struct {
	calls   []nodeCall
	handler func(call nodeCall) ([]byte, error)
}

func (f *fakeNode) Get(ctx context.Context, resource string, args ...string) ([]byte, error) {
	call := nodeCall{method: "get", resource: resource, args: args}
	f.calls = append(f.calls, call)
	return f.handler(call)
}

func (f *fakeNode) Post(ctx context.Context, resource string, data []byte, args ...string) ([]byte, error) {
	call := nodeCall{method: "post", resource: resource, data: string(data), args: args}
	f.calls = append(f.calls, call)
	return f.handler(call)
}

func (f *fakeNode) callsTo(resource string) []nodeCall {
	var calls []nodeCall
	for _, c := range f.calls {
		if c.resource == resource {
			calls = append(calls, c)
		}
	}
	return calls
}

func testSweepConfig(t *testing.T, startCh, stopCh, stepCh int) *SweepConfig {
	t.Helper()

	sc, err := NewSweepConfig(testConfig(), startCh, stopCh, stepCh)
	if err != nil {
		t.Fatalf("NewSweepConfig failed: %v", err)
	}
	return sc
}

func TestSensor_Sweep(t *testing.T) {
	payload := sweepRecord(0, -1000, 500, -25, 0)[4:]

	node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
		if call.method != "post" || call.resource != "sensing/quickSweepBin" {
			t.Errorf("Unexpected call: %+v", call)
		}
		if call.data != "dev 0 conf 0 ch 0:1:4" {
			t.Errorf("Unexpected sweep command: %q", call.data)
		}
		return AppendChecksum(payload), nil
	}}

	sweep, err := New(node).Sweep(context.Background(), testSweepConfig(t, 0, 4, 1))
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	checkSweep(t, *sweep, 0, []float64{-10.0, 5.0, -0.25, 0.0})
}

func TestSensor_SweepLegacyChecksumWarns(t *testing.T) {
	payload := sweepRecord(0, 100, 200, 300, 400)[4:]
	frame := frameWithTrailer(payload, crc32.ChecksumIEEE(payload[:len(payload)/2]))

	node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
		return frame, nil
	}}

	var logBuf bytes.Buffer
	sensor := New(node, WithLogger(slog.New(slog.NewTextHandler(&logBuf, nil))))

	sweep, err := sensor.Sweep(context.Background(), testSweepConfig(t, 0, 4, 1))
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	checkSweep(t, *sweep, 0, []float64{1.0, 2.0, 3.0, 4.0})
	if !strings.Contains(logBuf.String(), "working around broken CRC calculation") {
		t.Error("Expected a firmware workaround warning in the log")
	}
}

func TestSensor_SweepChecksumMismatch(t *testing.T) {
	payload := sweepRecord(0, 100, 200, 300, 400)[4:]

	node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
		return frameWithTrailer(payload, crc32.ChecksumIEEE(payload)+1), nil
	}}

	_, err := New(node).Sweep(context.Background(), testSweepConfig(t, 0, 4, 1))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Expected ErrChecksumMismatch, got %v", err)
	}
}

func TestSensor_SweepWrongPayloadLength(t *testing.T) {
	node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
		return AppendChecksum(make([]byte, 6)), nil // 3 samples for a 4 channel sweep
	}}

	_, err := New(node).Sweep(context.Background(), testSweepConfig(t, 0, 4, 1))
	if !errors.Is(err, ErrMalformedResult) {
		t.Fatalf("Expected ErrMalformedResult, got %v", err)
	}
}

func TestSensor_Schedule(t *testing.T) {
	node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
		return []byte("ok"), nil
	}}

	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	sensor := New(node)
	sensor.now = func() time.Time { return now }

	program := &Program{
		SweepConfig: testSweepConfig(t, 0, 64, 1),
		Start:       now.Add(10 * time.Second),
		Duration:    30 * time.Second,
		Slot:        3,
	}

	if err := sensor.Schedule(context.Background(), program); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if len(node.calls) != 2 {
		t.Fatalf("Expected 2 node calls, got %d", len(node.calls))
	}

	free := node.calls[0]
	if free.resource != "sensing/freeUpDataSlot" || free.data != "1" {
		t.Errorf("Unexpected free slot call: %+v", free)
	}
	if len(free.args) != 1 || free.args[0] != "id=3" {
		t.Errorf("Unexpected free slot args: %v", free.args)
	}

	prog := node.calls[1]
	if prog.resource != "sensing/program" {
		t.Errorf("Unexpected program resource: %q", prog.resource)
	}
	want := "in 10 sec for 30 sec with dev 0 conf 0 ch 0:1:64 to slot 3"
	if prog.data != want {
		t.Errorf("Expected command %q, got %q", want, prog.data)
	}
}

func TestSensor_ScheduleInPast(t *testing.T) {
	node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
		return []byte("ok"), nil
	}}

	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	sensor := New(node)
	sensor.now = func() time.Time { return now }

	program := &Program{
		SweepConfig: testSweepConfig(t, 0, 64, 1),
		Start:       now.Add(-time.Second),
		Duration:    30 * time.Second,
		Slot:        3,
	}

	err := sensor.Schedule(context.Background(), program)
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("Expected ErrInvalidSchedule, got %v", err)
	}

	if calls := node.callsTo("sensing/program"); len(calls) != 0 {
		t.Errorf("Expected no programming call, got %d", len(calls))
	}
}

func TestSensor_ScheduleDrift(t *testing.T) {
	tests := []struct {
		name    string
		latency time.Duration
		wantErr error
	}{
		{name: "fast round trip", latency: time.Second},
		{name: "slow round trip", latency: 3 * time.Second, wantErr: ErrSchedulingDrift},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
				return []byte("ok"), nil
			}}

			clock := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
			start := clock.Add(10 * time.Second)

			sensor := New(node)
			sensor.now = func() time.Time {
				now := clock
				clock = clock.Add(tt.latency)
				return now
			}

			program := &Program{
				SweepConfig: testSweepConfig(t, 0, 64, 1),
				Start:       start,
				Duration:    30 * time.Second,
				Slot:        3,
			}

			err := sensor.Schedule(context.Background(), program)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSensor_IsComplete(t *testing.T) {
	tests := []struct {
		name      string
		sinceEnd  time.Duration
		status    string
		want      bool
		wantCalls int
	}{
		{name: "still running", sinceEnd: -10 * time.Second, want: false, wantCalls: 0},
		{name: "ended and complete", sinceEnd: time.Second, status: "status=COMPLETE\nsize=1200", want: true, wantCalls: 1},
		{name: "ended but slot empty", sinceEnd: time.Second, status: "status=EMPTY", want: false, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
				return []byte(tt.status), nil
			}}

			start := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
			program := &Program{
				SweepConfig: testSweepConfig(t, 0, 64, 1),
				Start:       start,
				Duration:    30 * time.Second,
				Slot:        3,
			}

			sensor := New(node)
			sensor.now = func() time.Time { return start.Add(30*time.Second + tt.sinceEnd) }

			complete, err := sensor.IsComplete(context.Background(), program)
			if err != nil {
				t.Fatalf("IsComplete failed: %v", err)
			}
			if complete != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, complete)
			}
			if len(node.calls) != tt.wantCalls {
				t.Errorf("Expected %d node calls, got %d", tt.wantCalls, len(node.calls))
			}
		})
	}
}

// slotNode serves slot information and checksummed chunks of its data blob.
type slotNode struct {
	fakeNode
	data  []byte
	frame func(chunk []byte) []byte
}

func newSlotNode(data []byte) *slotNode {
	n := &slotNode{data: data, frame: AppendChecksum}
	n.handler = func(call nodeCall) ([]byte, error) {
		switch call.resource {
		case "sensing/slotInformation":
			return []byte(fmt.Sprintf("status=COMPLETE\nsize=%d", len(n.data))), nil
		case "sensing/slotDataBinary":
			var slot, start, size int
			if _, err := fmt.Sscanf(call.args[0], "id=%d&start=%d&size=%d", &slot, &start, &size); err != nil {
				return nil, fmt.Errorf("bad chunk args %q: %w", call.args[0], err)
			}
			return n.frame(n.data[start : start+size]), nil
		default:
			return nil, fmt.Errorf("unexpected resource %q", call.resource)
		}
	}
	return n
}

func retrievalProgram(t *testing.T) *Program {
	t.Helper()

	start := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	return &Program{
		SweepConfig: testSweepConfig(t, 0, 4, 1),
		Start:       start,
		Duration:    30 * time.Second,
		Slot:        3,
	}
}

func TestSensor_Retrieve(t *testing.T) {
	// 100 records of 12 bytes make 1200 bytes, which needs chunks of
	// 512, 512 and 176 bytes
	var data []byte
	for i := 0; i < 100; i++ {
		data = append(data, sweepRecord(uint32(1000+10*i), 100, -50, 0, 25)...)
	}

	node := newSlotNode(data)
	result, err := New(node).Retrieve(context.Background(), retrievalProgram(t))
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	chunks := node.callsTo("sensing/slotDataBinary")
	wantArgs := []string{
		"id=3&start=0&size=512",
		"id=3&start=512&size=512",
		"id=3&start=1024&size=176",
	}
	if len(chunks) != len(wantArgs) {
		t.Fatalf("Expected %d chunk fetches, got %d", len(wantArgs), len(chunks))
	}
	for i, want := range wantArgs {
		if chunks[i].args[0] != want {
			t.Errorf("Chunk %d: expected args %q, got %q", i, want, chunks[i].args[0])
		}
	}

	if len(result.Sweeps) != 100 {
		t.Fatalf("Expected 100 sweeps, got %d", len(result.Sweeps))
	}
	checkSweep(t, result.Sweeps[0], 1.0, []float64{1.00, -0.50, 0.00, 0.25})
	checkSweep(t, result.Sweeps[99], 1.99, []float64{1.00, -0.50, 0.00, 0.25})
}

func TestSensor_RetrieveExactChunkMultiple(t *testing.T) {
	// 85 records of 12 bytes plus a dangling timestamp make 1024 bytes, so
	// both chunks are full sized and the dangling timestamp is dropped
	var data []byte
	for i := 0; i < 85; i++ {
		data = append(data, sweepRecord(uint32(1000+10*i), 100, -50, 0, 25)...)
	}
	data = append(data, sweepRecord(1850)...)

	node := newSlotNode(data)
	result, err := New(node).Retrieve(context.Background(), retrievalProgram(t))
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	chunks := node.callsTo("sensing/slotDataBinary")
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunk fetches, got %d", len(chunks))
	}
	if chunks[1].args[0] != "id=3&start=512&size=512" {
		t.Errorf("Unexpected final chunk args: %q", chunks[1].args[0])
	}

	if len(result.Sweeps) != 85 {
		t.Fatalf("Expected 85 sweeps, got %d", len(result.Sweeps))
	}
}

func TestSensor_RetrieveNotComplete(t *testing.T) {
	node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
		return []byte("status=RUNNING"), nil
	}}

	_, err := New(node).Retrieve(context.Background(), retrievalProgram(t))
	if !errors.Is(err, ErrNotComplete) {
		t.Fatalf("Expected ErrNotComplete, got %v", err)
	}

	if chunks := node.callsTo("sensing/slotDataBinary"); len(chunks) != 0 {
		t.Errorf("Expected no chunk fetches, got %d", len(chunks))
	}
}

func TestSensor_RetrieveChecksumAborts(t *testing.T) {
	var data []byte
	for i := 0; i < 100; i++ {
		data = append(data, sweepRecord(uint32(1000+10*i), 100, -50, 0, 25)...)
	}

	node := newSlotNode(data)
	good := node.frame
	node.frame = func(chunk []byte) []byte {
		frame := good(chunk)
		if len(node.callsTo("sensing/slotDataBinary")) == 2 { // corrupt the second chunk
			frame[0] ^= 0xff
		}
		return frame
	}

	_, err := New(node).Retrieve(context.Background(), retrievalProgram(t))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Expected ErrChecksumMismatch, got %v", err)
	}

	if chunks := node.callsTo("sensing/slotDataBinary"); len(chunks) != 2 {
		t.Errorf("Expected the retrieval to stop after 2 chunk fetches, got %d", len(chunks))
	}
}

func TestSensor_RetrieveLegacyChecksumChunks(t *testing.T) {
	var data []byte
	for i := 0; i < 100; i++ {
		data = append(data, sweepRecord(uint32(1000+10*i), 100, -50, 0, 25)...)
	}

	node := newSlotNode(data)
	node.frame = func(chunk []byte) []byte {
		return frameWithTrailer(chunk, crc32.ChecksumIEEE(chunk[:len(chunk)/2]))
	}

	var logBuf bytes.Buffer
	sensor := New(&node.fakeNode, WithLogger(slog.New(slog.NewTextHandler(&logBuf, nil))))

	result, err := sensor.Retrieve(context.Background(), retrievalProgram(t))
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(result.Sweeps) != 100 {
		t.Fatalf("Expected 100 sweeps, got %d", len(result.Sweeps))
	}

	// one warning per retrieval, not one per chunk
	if got := strings.Count(logBuf.String(), "working around broken CRC calculation"); got != 1 {
		t.Errorf("Expected exactly 1 workaround warning, got %d", got)
	}
}

func TestSensor_Configs(t *testing.T) {
	node := &fakeNode{handler: func(call nodeCall) ([]byte, error) {
		if call.resource != "sensing/deviceConfigList" {
			t.Errorf("Unexpected resource: %q", call.resource)
		}
		return []byte(sampleConfigList), nil
	}}

	list, err := New(node).Configs(context.Background())
	if err != nil {
		t.Fatalf("Configs failed: %v", err)
	}

	if len(list.Devices) != 2 || len(list.Configs) != 3 {
		t.Errorf("Expected 2 devices and 3 configurations, got %d and %d", len(list.Devices), len(list.Configs))
	}
}
