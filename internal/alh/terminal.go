package alh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// TerminalRetries defines the number of times a request is resent after
	// the node reports a corrupted exchange
	TerminalRetries = 5

	defaultTerminalTimeout = 30 * time.Second
	terminalBaudRate       = 115200
	readPollInterval       = 100 * time.Millisecond
)

// responseTerminator closes every node response on the serial console.
var responseTerminator = []byte("\r\nOK\r\n")

// Port is the serial connection to the node. go.bug.st/serial satisfies it;
// tests substitute a scripted double.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// WithTerminalLogger sets the logger for the terminal endpoint
func WithTerminalLogger(logger *slog.Logger) func(t *Terminal) {
	return func(t *Terminal) {
		t.logger = logger
	}
}

// WithRetries sets the number of resend attempts after a corrupted exchange
func WithRetries(retries int) func(t *Terminal) {
	return func(t *Terminal) {
		t.retries = retries
	}
}

// WithTimeout sets the per-request response deadline
func WithTimeout(timeout time.Duration) func(t *Terminal) {
	return func(t *Terminal) {
		t.timeout = timeout
	}
}

// Terminal talks to a node attached to a local serial console. Requests are
// line oriented and responses run until the OK terminator. Corrupted
// exchanges reported by the node are retried here so that layers above see
// a single-shot request/response surface.
type Terminal struct {
	port Port

	retries int
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// OpenTerminal opens the serial device and returns a terminal endpoint on it.
func OpenTerminal(device string, options ...func(t *Terminal)) (*Terminal, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: terminalBaudRate})
	if err != nil {
		return nil, fmt.Errorf("opening serial device %s: %w", device, err)
	}

	return NewTerminal(port, options...), nil
}

// NewTerminal creates a terminal endpoint over an already open port.
func NewTerminal(port Port, options ...func(t *Terminal)) *Terminal {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	t := Terminal{
		port:    port,
		retries: TerminalRetries,
		timeout: defaultTerminalTimeout,
		logger:  logger,
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

func (t *Terminal) Get(ctx context.Context, resource string, args ...string) ([]byte, error) {
	request := fmt.Sprintf("get %s\r\n", joinResource(resource, args))
	return t.request(ctx, []byte(request))
}

func (t *Terminal) Post(ctx context.Context, resource string, data []byte, args ...string) ([]byte, error) {
	var request bytes.Buffer
	fmt.Fprintf(&request, "post %s\r\n", joinResource(resource, args))
	request.Write(data)
	request.WriteString("\r\n")

	return t.request(ctx, request.Bytes())
}

// Close releases the serial port. Pending requests fail.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.port.Close()
}

// request performs one locked request/response cycle, resending after
// corrupted exchanges up to the retry budget.
func (t *Terminal) request(ctx context.Context, request []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTerminalClosed
	}

	if err := t.port.SetReadTimeout(readPollInterval); err != nil {
		return nil, fmt.Errorf("setting read timeout: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			t.logger.Warn("resending request after corrupted exchange",
				slog.Int("attempt", attempt),
				slog.Int("retries", t.retries))
		}

		if _, err := t.port.Write(request); err != nil {
			return nil, fmt.Errorf("writing request: %w", err)
		}

		response, err := t.readResponse(ctx)
		if err == nil {
			return response, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		t.drain()
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", t.retries+1, lastErr)
}

// readResponse accumulates serial input until the OK terminator arrives or
// the deadline passes. Corruption markers abort the read early.
func (t *Terminal) readResponse(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 4096)

	deadline := time.Now().Add(t.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out after %s waiting for response", t.timeout)
		}

		n, err := t.port.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		if n == 0 {
			continue // poll interval elapsed without data
		}

		buf.Write(chunk[:n])

		if isCorrupt(buf.Bytes()) {
			return nil, fmt.Errorf("%w: %s", ErrCorruptResponse, firstLine(buf.Bytes()))
		}
		if bytes.HasSuffix(buf.Bytes(), responseTerminator) {
			return buf.Bytes()[:buf.Len()-len(responseTerminator)], nil
		}
	}
}

// drain discards buffered input left over from a failed exchange.
func (t *Terminal) drain() {
	chunk := make([]byte, 4096)
	for {
		n, err := t.port.Read(chunk)
		if err != nil || n == 0 {
			return
		}
	}
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\r'); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
