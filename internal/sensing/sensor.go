package sensing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/icopavan/vesna-alh-tools/internal/alh"
)

const (
	// MaxChunkSize caps a single slot data request. The node cannot serve
	// larger reads in one response.
	MaxChunkSize = 512

	// MaxTimeError bounds the wall-clock time a programming round trip may
	// take before the relative start offset it carries is considered stale
	MaxTimeError = 2 * time.Second
)

const (
	resProgram    = "sensing/program"
	resFreeSlot   = "sensing/freeUpDataSlot"
	resSlotInfo   = "sensing/slotInformation"
	resSlotData   = "sensing/slotDataBinary"
	resQuickSweep = "sensing/quickSweepBin"
	resConfigs    = "sensing/deviceConfigList"
)

const statusComplete = "status=COMPLETE"

var slotSizePattern = regexp.MustCompile(`size=([0-9]+)`)

// WithLogger sets the logger for the sensor
func WithLogger(logger *slog.Logger) func(s *SpectrumSensor) {
	return func(s *SpectrumSensor) {
		s.logger = logger
	}
}

// SpectrumSensor drives a node acting as a spectrum sensor. All operations
// are single blocking round trips against the node; callers poll and retry.
type SpectrumSensor struct {
	node   alh.Node
	logger *slog.Logger

	now func() time.Time
}

// New creates a sensor over the given node endpoint.
func New(node alh.Node, options ...func(s *SpectrumSensor)) *SpectrumSensor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := SpectrumSensor{
		node:   node,
		logger: logger,
		now:    time.Now,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Sweep performs a single on-demand frequency sweep and returns the
// readings immediately, without going through a storage slot.
func (s *SpectrumSensor) Sweep(ctx context.Context, sc *SweepConfig) (*Sweep, error) {
	command := fmt.Sprintf("dev %d conf %d ch %d:%d:%d",
		sc.Config.Device.ID, sc.Config.ID, sc.StartCh, sc.StepCh, sc.StopCh)

	frame, err := s.node.Post(ctx, resQuickSweep, []byte(command))
	if err != nil {
		return nil, fmt.Errorf("requesting quick sweep: %w", err)
	}

	payload, legacy, err := VerifyFrame(frame)
	if err != nil {
		return nil, fmt.Errorf("verifying sweep frame: %w", err)
	}
	if legacy {
		s.warnLegacyChecksum()
	}

	sweep, err := DecodeImmediateSweep(payload, sc.NumChannels())
	if err != nil {
		return nil, fmt.Errorf("decoding sweep: %w", err)
	}
	return sweep, nil
}

// Schedule frees the program's storage slot and programs the sensing task
// onto the node. The start time is sent as an offset relative to the local
// clock; if the round trip takes longer than MaxTimeError the offset may
// have gone stale in flight and ErrSchedulingDrift is returned. The caller
// may retry a drifted schedule as the slot was already freed.
func (s *SpectrumSensor) Schedule(ctx context.Context, p *Program) error {
	if _, err := s.node.Post(ctx, resFreeSlot, []byte("1"), fmt.Sprintf("id=%d", p.Slot)); err != nil {
		return fmt.Errorf("freeing up data slot %d: %w", p.Slot, err)
	}

	before := s.now()

	relative := int(p.Start.Sub(before).Seconds())
	if relative < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSchedule, p.Start.Format(time.RFC3339))
	}

	command := fmt.Sprintf("in %d sec for %d sec with dev %d conf %d ch %d:%d:%d to slot %d",
		relative,
		int(p.Duration.Seconds()),
		p.SweepConfig.Config.Device.ID,
		p.SweepConfig.Config.ID,
		p.SweepConfig.StartCh,
		p.SweepConfig.StepCh,
		p.SweepConfig.StopCh,
		p.Slot)

	if _, err := s.node.Post(ctx, resProgram, []byte(command)); err != nil {
		return fmt.Errorf("programming sensing task: %w", err)
	}

	if drift := s.now().Sub(before); drift > MaxTimeError {
		return fmt.Errorf("%w: programming took %.1f s of the %.1f s budget", ErrSchedulingDrift, drift.Seconds(), MaxTimeError.Seconds())
	}
	return nil
}

// IsComplete reports whether the program has finished and its slot holds a
// complete result. It returns false without a node round trip while the
// program can not have ended yet.
func (s *SpectrumSensor) IsComplete(ctx context.Context, p *Program) (bool, error) {
	if s.now().Before(p.Start.Add(p.Duration)) {
		return false, nil
	}

	info, err := s.node.Get(ctx, resSlotInfo, fmt.Sprintf("id=%d", p.Slot))
	if err != nil {
		return false, fmt.Errorf("querying slot information: %w", err)
	}
	return strings.Contains(string(info), statusComplete), nil
}

// Retrieve downloads and decodes the result of a completed program. The
// slot's total size is read from its status, then fetched in chunks of at
// most MaxChunkSize bytes, each carrying its own checksum trailer. Any
// checksum failure aborts the whole retrieval; no partial result is
// returned.
func (s *SpectrumSensor) Retrieve(ctx context.Context, p *Program) (*Result, error) {
	info, err := s.node.Get(ctx, resSlotInfo, fmt.Sprintf("id=%d", p.Slot))
	if err != nil {
		return nil, fmt.Errorf("querying slot information: %w", err)
	}
	if !strings.Contains(string(info), statusComplete) {
		return nil, fmt.Errorf("%w: slot %d", ErrNotComplete, p.Slot)
	}

	g := slotSizePattern.FindStringSubmatch(string(info))
	if g == nil {
		return nil, fmt.Errorf("%w: slot information reports no size", ErrMalformedResult)
	}
	totalSize, err := strconv.Atoi(g[1])
	if err != nil {
		return nil, fmt.Errorf("parsing slot size: %w", err)
	}

	var data bytes.Buffer
	var legacy bool

	for offset := 0; offset < totalSize; offset += MaxChunkSize {
		chunkSize := min(MaxChunkSize, totalSize-offset)

		frame, err := s.node.Get(ctx, resSlotData,
			fmt.Sprintf("id=%d&start=%d&size=%d", p.Slot, offset, chunkSize))
		if err != nil {
			return nil, fmt.Errorf("fetching chunk at offset %d: %w", offset, err)
		}

		payload, l, err := VerifyFrame(frame)
		if err != nil {
			return nil, fmt.Errorf("verifying chunk at offset %d: %w", offset, err)
		}
		legacy = legacy || l

		data.Write(payload)
	}

	if legacy {
		s.warnLegacyChecksum()
	}

	sweeps, err := DecodeSweeps(data.Bytes(), p.SweepConfig.NumChannels())
	if err != nil {
		return nil, fmt.Errorf("decoding sweep stream: %w", err)
	}

	s.logger.Debug("retrieved sensing result",
		slog.Int("slot", p.Slot),
		slog.Int("bytes", totalSize),
		slog.Int("sweeps", len(sweeps)))

	return &Result{Program: p, Sweeps: sweeps}, nil
}

// Configs queries the devices and configurations the node supports.
func (s *SpectrumSensor) Configs(ctx context.Context) (*ConfigList, error) {
	description, err := s.node.Get(ctx, resConfigs)
	if err != nil {
		return nil, fmt.Errorf("querying device configurations: %w", err)
	}

	list, err := ParseConfigList(string(description))
	if err != nil {
		return nil, fmt.Errorf("parsing device configurations: %w", err)
	}
	return list, nil
}

func (s *SpectrumSensor) warnLegacyChecksum() {
	s.logger.Warn("working around broken CRC calculation! please upgrade node firmware")
}
