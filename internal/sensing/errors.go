package sensing

import "errors"

var (
	// ErrChecksumMismatch is returned when a frame fails both the full and the
	// legacy half-payload CRC checks. The frame is untrustworthy and the
	// retrieval it belongs to is aborted without partial data.
	ErrChecksumMismatch = errors.New("frame checksum mismatch")

	// ErrNotComplete is returned when results are requested before the node
	// reports the sensing task as complete
	ErrNotComplete = errors.New("sensing task is not complete")

	// ErrMalformedResult is returned when decoded data violates a structural
	// invariant, such as a wrong payload length or a short sweep anywhere but
	// the end of a result
	ErrMalformedResult = errors.New("malformed sensing result")

	// ErrInvalidSchedule is returned when a task is scheduled to start in the past
	ErrInvalidSchedule = errors.New("start time is in the past")

	// ErrSchedulingDrift is returned when programming the node took longer than
	// the drift budget, so the relative start offset may have gone stale in flight
	ErrSchedulingDrift = errors.New("scheduling drift budget exceeded")
)
