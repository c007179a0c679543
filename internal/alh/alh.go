package alh

import (
	"bytes"
	"context"
	"errors"
	"strings"
)

var (
	// ErrCorruptResponse is returned when the node reports that a request or
	// its response was damaged in transit
	ErrCorruptResponse = errors.New("node reported corrupted exchange")

	// ErrTerminalClosed is returned when a request is made on a closed terminal
	ErrTerminalClosed = errors.New("terminal is closed")
)

// Node is a single management endpoint on the sensor network. Resources are
// addressed by path, optionally refined with raw query arguments which are
// concatenated verbatim after a '?'.
type Node interface {
	Get(ctx context.Context, resource string, args ...string) ([]byte, error)
	Post(ctx context.Context, resource string, data []byte, args ...string) ([]byte, error)
}

// corruptionMarkers are emitted by node firmware when its command parser
// rejects a request or an on-board CRC check fails.
var corruptionMarkers = [][]byte{
	[]byte("JUNK-INPUT"),
	[]byte("CORRUPTED-DATA"),
}

func joinResource(resource string, args []string) string {
	if len(args) == 0 {
		return resource
	}
	return resource + "?" + strings.Join(args, "")
}

func isCorrupt(response []byte) bool {
	for _, marker := range corruptionMarkers {
		if bytes.Contains(response, marker) {
			return true
		}
	}
	return false
}
