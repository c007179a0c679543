package sensing

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// checksumSize is the length of the CRC-32 trailer closing every binary frame.
const checksumSize = 4

// VerifyFrame checks the CRC-32 trailer of a binary frame and returns the
// payload without it. Firmware 2.29 checksums only the first half of the
// payload; when the full check fails but the half-payload check passes the
// frame is accepted and legacy is returned true so the caller can surface
// the defect. If both checks fail the frame must be discarded.
func VerifyFrame(frame []byte) (payload []byte, legacy bool, err error) {
	if len(frame) < checksumSize {
		return nil, false, fmt.Errorf("%w: frame of %d bytes is shorter than its checksum trailer", ErrMalformedResult, len(frame))
	}

	payload = frame[:len(frame)-checksumSize]
	want := binary.LittleEndian.Uint32(frame[len(frame)-checksumSize:])

	if crc32.ChecksumIEEE(payload) == want {
		return payload, false, nil
	}
	if crc32.ChecksumIEEE(payload[:len(payload)/2]) == want {
		return payload, true, nil
	}

	return nil, false, fmt.Errorf("%w: calculated %08x, trailer holds %08x", ErrChecksumMismatch, crc32.ChecksumIEEE(payload), want)
}

// AppendChecksum returns the payload with its CRC-32 trailer attached, the
// inverse of VerifyFrame. Useful for building frames in tests and simulators.
func AppendChecksum(payload []byte) []byte {
	frame := make([]byte, len(payload)+checksumSize)
	copy(frame, payload)
	binary.LittleEndian.PutUint32(frame[len(payload):], crc32.ChecksumIEEE(payload))
	return frame
}
