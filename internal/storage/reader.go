package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/icopavan/vesna-alh-tools/internal/spectrum"
)

// ErrNoData indicates either that no samples exist for the given parameters,
// or that all available data has been read from the reader.
var ErrNoData = fmt.Errorf("no data available")

// ReaderOption configures a SpanReader with specific filtering criteria.
type ReaderOption func(*SpanReader)

// WithMinFreq sets the minimum frequency filter for the reader. Samples
// below this frequency will be excluded.
func WithMinFreq(f float64) ReaderOption {
	return func(r *SpanReader) {
		r.minFreq = &f
	}
}

// WithMaxFreq sets the maximum frequency filter for the reader. Samples
// above this frequency will be excluded.
func WithMaxFreq(f float64) ReaderOption {
	return func(r *SpanReader) {
		r.maxFreq = &f
	}
}

// WithFreqRange sets both frequency filters at once. This is a convenience
// function equivalent to applying both WithMinFreq and WithMaxFreq.
func WithFreqRange(minFreq, maxFreq float64) ReaderOption {
	return func(r *SpanReader) {
		r.minFreq = &minFreq
		r.maxFreq = &maxFreq
	}
}

// WithStartTime sets the start of the device clock window, in seconds.
// Sweeps captured before it will be excluded.
func WithStartTime(t float64) ReaderOption {
	return func(r *SpanReader) {
		r.startTime = &t
	}
}

// WithEndTime sets the end of the device clock window, in seconds. Sweeps
// captured after it will be excluded.
func WithEndTime(t float64) ReaderOption {
	return func(r *SpanReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both ends of the device clock window at once. This is
// a convenience function equivalent to applying both WithStartTime and
// WithEndTime.
func WithTimeRange(startTime, endTime float64) ReaderOption {
	return func(r *SpanReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

func newSpanReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SpanReader, error) {
	sr := &SpanReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(sr)
	}
	if err := sr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return sr, nil
}

// SpanReader iterates over the sweeps of a stored session in capture order,
// grouping sample rows back into spans by their sweep sequence number.
type SpanReader struct {
	db *sql.DB

	sessionID int64
	session   *spectrum.Session

	startTime *float64 // Optional start of device clock window
	endTime   *float64 // Optional end of device clock window
	minFreq   *float64 // Optional minimum frequency filter
	maxFreq   *float64 // Optional maximum frequency filter

	currentSpan   *spectrum.Span
	nextPoint     spectrum.Point // First sample of next span
	nextExists    bool
	nextSweep     int
	nextTimestamp float64
	rows          *sql.Rows
	err           error
}

func (sr *SpanReader) init(ctx context.Context) error {
	if sr.db == nil {
		return errors.New("database connection required")
	}
	if sr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: sr.loadSession},
		{msg: "initializing filters", fn: sr.initFilters},
		{msg: "initializing query", fn: sr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (sr *SpanReader) loadSession(ctx context.Context) (err error) {
	stmt, err := sr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var sess spectrum.Session
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, sr.sessionID).Scan(&sess.ID, &sess.StartTime, &sess.Node, &sess.Device, &config); err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}

	sr.session = &sess
	return
}

func (sr *SpanReader) initFilters(ctx context.Context) (err error) {
	timeFiltersSet := sr.startTime != nil && sr.endTime != nil
	freqFiltersSet := sr.minFreq != nil && sr.maxFreq != nil

	if timeFiltersSet && *sr.startTime > *sr.endTime {
		return fmt.Errorf("start time %f is after end time %f", *sr.startTime, *sr.endTime)
	}
	if freqFiltersSet && *sr.minFreq > *sr.maxFreq {
		return fmt.Errorf("min frequency %f is greater than max frequency %f", *sr.minFreq, *sr.maxFreq)
	}
	if timeFiltersSet && freqFiltersSet {
		return nil
	}

	stmt, err := sr.db.PrepareContext(ctx, selectFilterValuesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	// Aggregates come back NULL for a session without samples, which must
	// still yield a working, empty reader.
	var minFreq, maxFreq, startTime, endTime sql.NullFloat64
	if err = stmt.QueryRowContext(ctx, sr.sessionID).Scan(&minFreq, &maxFreq, &startTime, &endTime); err != nil {
		return fmt.Errorf("scanning filters data: %w", err)
	}

	if sr.minFreq == nil {
		sr.minFreq = &minFreq.Float64
	}
	if sr.maxFreq == nil {
		sr.maxFreq = &maxFreq.Float64
	}
	if sr.startTime == nil {
		sr.startTime = &startTime.Float64
	}
	if sr.endTime == nil {
		sr.endTime = &endTime.Float64
	}

	return nil
}

func (sr *SpanReader) initQuery(ctx context.Context) (err error) {
	stmt, err := sr.db.PrepareContext(ctx, selectSamplesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if sr.rows, err = stmt.QueryContext(ctx, sr.sessionID, sr.startTime, sr.endTime, sr.minFreq, sr.maxFreq); err != nil {
		return err
	}
	return nil
}

func (sr *SpanReader) scanPoint() (int, float64, spectrum.Point, error) {
	var sweep int
	var timestamp float64
	var point spectrum.Point

	if err := sr.rows.Scan(&sweep, &timestamp, &point.Frequency, &point.Power); err != nil {
		return 0, 0, spectrum.Point{}, fmt.Errorf("scanning sample: %w", err)
	}
	return sweep, timestamp, point, nil
}

// Session returns metadata about the session this reader is accessing.
func (sr *SpanReader) Session() *spectrum.Session {
	return sr.session
}

// Next advances the reader and returns true if there is another span to
// read, false when the iteration is complete or an error occurred.
func (sr *SpanReader) Next(ctx context.Context) bool {
	if sr.err != nil || sr.rows == nil {
		return false
	}

	if sr.nextExists {
		sr.currentSpan = &spectrum.Span{
			Sweep:          sr.nextSweep,
			Timestamp:      sr.nextTimestamp,
			FrequencyStart: sr.nextPoint.Frequency,
			Points:         []spectrum.Point{sr.nextPoint},
		}
		sr.nextExists = false
	}

	for {
		select {
		case <-ctx.Done():
			sr.err = ctx.Err()
			return false
		default:
		}

		if !sr.rows.Next() {
			if sr.currentSpan != nil && len(sr.currentSpan.Points) > 0 {
				sr.currentSpan.FrequencyEnd = sr.currentSpan.Points[len(sr.currentSpan.Points)-1].Frequency
				sr.err = ErrNoData
				return true
			}
			return false
		}

		sweep, timestamp, point, err := sr.scanPoint()
		if err != nil {
			sr.err = err
			return false
		}

		if sr.currentSpan == nil {
			sr.currentSpan = &spectrum.Span{
				Sweep:          sweep,
				Timestamp:      timestamp,
				FrequencyStart: point.Frequency,
				Points:         []spectrum.Point{point},
			}
			continue
		}

		if sweep != sr.currentSpan.Sweep {
			// Sequence number changed, the current span is complete. Stash
			// the first sample of the next one.
			sr.currentSpan.FrequencyEnd = sr.currentSpan.Points[len(sr.currentSpan.Points)-1].Frequency

			sr.nextPoint = point
			sr.nextExists = true
			sr.nextSweep = sweep
			sr.nextTimestamp = timestamp
			return true
		}

		sr.currentSpan.Points = append(sr.currentSpan.Points, point)
	}
}

// Current returns the current span in the iteration. If called after Next
// returned false, the behavior is undefined.
func (sr *SpanReader) Current() *spectrum.Span {
	return sr.currentSpan
}

// Error returns any error that occurred during iteration. Exhausting the
// data is not an error.
func (sr *SpanReader) Error() error {
	if sr.err != nil && !errors.Is(sr.err, ErrNoData) {
		return sr.err
	}
	if sr.rows != nil {
		return sr.rows.Err()
	}
	return nil
}

// Close releases the database resources held by the reader. After Close is
// called, the reader should not be used.
func (sr *SpanReader) Close() error {
	if sr.rows != nil {
		err := sr.rows.Close()
		sr.currentSpan = nil
		sr.nextExists = false
		sr.rows = nil
		return err
	}
	return nil
}
