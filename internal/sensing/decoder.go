package sensing

import (
	"encoding/binary"
	"fmt"
)

// Slot data framing has no per-record headers. The firmware writes a 4-byte
// little-endian millisecond timestamp followed by one 2-byte little-endian
// signed sample per channel, and the pattern repeats for every sweep. The
// decoder walks the stream in 2-byte units and tracks its position with a
// small state machine instead of stride arithmetic, so the framing
// invariants stay checkable.
type decodeState int

const (
	stateTimestampLow decodeState = iota
	stateTimestampHigh
	stateSample
)

// StreamDecoder splits a slot data stream into sweeps. Data may be fed
// incrementally in arbitrary pieces; Finish returns the decoded sweeps.
type StreamDecoder struct {
	numChannels int

	state     decodeState
	timestamp uint32
	current   Sweep
	sweeps    []Sweep

	carry     byte
	haveCarry bool
}

// NewStreamDecoder creates a decoder for sweeps of numChannels samples.
func NewStreamDecoder(numChannels int) (*StreamDecoder, error) {
	if numChannels < 1 {
		return nil, fmt.Errorf("number of channels must be positive, got %d", numChannels)
	}
	return &StreamDecoder{numChannels: numChannels}, nil
}

// Feed consumes the next piece of the stream. A trailing odd byte is held
// back until the next piece arrives.
func (d *StreamDecoder) Feed(data []byte) error {
	if d.haveCarry && len(data) > 0 {
		unit := uint16(d.carry) | uint16(data[0])<<8
		d.haveCarry = false
		data = data[1:]

		if err := d.consume(unit); err != nil {
			return err
		}
	}

	for len(data) >= 2 {
		if err := d.consume(binary.LittleEndian.Uint16(data)); err != nil {
			return err
		}
		data = data[2:]
	}

	if len(data) == 1 {
		d.carry = data[0]
		d.haveCarry = true
	}
	return nil
}

func (d *StreamDecoder) consume(unit uint16) error {
	switch d.state {
	case stateTimestampLow:
		// a timestamp may only open a fresh sweep
		if len(d.current.Data) != 0 {
			return fmt.Errorf("%w: timestamp marker inside an unfinished sweep", ErrMalformedResult)
		}
		d.timestamp = uint32(unit)
		d.state = stateTimestampHigh

	case stateTimestampHigh:
		d.timestamp |= uint32(unit) << 16
		d.current.Timestamp = float64(d.timestamp) * 1e-3
		d.state = stateSample

	case stateSample:
		d.current.Data = append(d.current.Data, float64(int16(unit))*1e-2)

		if len(d.current.Data) == d.numChannels {
			d.sweeps = append(d.sweeps, d.current)
			d.current = Sweep{}
			d.state = stateTimestampLow
		}
	}
	return nil
}

// Finish flushes the decoder and returns the sweeps in stream order. The
// device may stop recording mid-line, so a trailing sweep shorter than
// numChannels is kept. A dangling odd byte or half-read timestamp carries
// no samples and is dropped as alignment padding.
func (d *StreamDecoder) Finish() []Sweep {
	if d.state == stateSample && len(d.current.Data) > 0 {
		d.sweeps = append(d.sweeps, d.current)
		d.current = Sweep{}
	}

	sweeps := d.sweeps
	d.sweeps = nil
	return sweeps
}

// DecodeSweeps decodes a complete slot data buffer in one pass.
func DecodeSweeps(data []byte, numChannels int) ([]Sweep, error) {
	d, err := NewStreamDecoder(numChannels)
	if err != nil {
		return nil, err
	}
	if err := d.Feed(data); err != nil {
		return nil, err
	}
	return d.Finish(), nil
}

// DecodeImmediateSweep decodes the response of an on-demand sweep. The
// payload is a flat run of 2-byte little-endian signed samples with no
// timestamp framing and must hold exactly numChannels of them. The sweep
// timestamp is left at zero as this path carries no device clock.
func DecodeImmediateSweep(payload []byte, numChannels int) (*Sweep, error) {
	if len(payload) != numChannels*2 {
		return nil, fmt.Errorf("%w: expected %d byte sweep payload, got %d", ErrMalformedResult, numChannels*2, len(payload))
	}

	sweep := Sweep{Data: make([]float64, 0, numChannels)}
	for i := 0; i < len(payload); i += 2 {
		sweep.Data = append(sweep.Data, float64(int16(binary.LittleEndian.Uint16(payload[i:])))*1e-2)
	}
	return &sweep, nil
}
