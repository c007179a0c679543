package sensing

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"
)

// Sweep is a single pass over the configured channel range. Timestamp is in
// seconds of the device-local clock, zero for on-demand sweeps. Data holds
// one power reading in dBm per visited channel; only the last sweep of a
// result may hold fewer when the device stopped mid-scan.
type Sweep struct {
	Timestamp float64
	Data      []float64
}

// Program describes a sensing task scheduled onto the node. The slot must
// stay untouched until retrieval completes; the node only overwrites a slot
// when asked to free it.
type Program struct {
	SweepConfig *SweepConfig
	Start       time.Time
	Duration    time.Duration
	Slot        int
}

// Result holds the sweeps retrieved for a program, in capture order.
type Result struct {
	Program *Program
	Sweeps  []Sweep
}

// Timestamps returns the device clock reading of every sweep, in seconds.
func (r *Result) Timestamps() []float64 {
	ts := make([]float64, len(r.Sweeps))
	for i, sweep := range r.Sweeps {
		ts[i] = sweep.Timestamp
	}
	return ts
}

// HzList returns the frequency axis of the result.
func (r *Result) HzList() []float64 {
	return r.Program.SweepConfig.HzList()
}

// Matrix projects the result onto a uniform grid with one row per sweep and
// one column per channel. A short last row is right-padded by repeating its
// final reading. A short row anywhere else means the stream framing broke
// and fails with ErrMalformedResult.
func (r *Result) Matrix() ([][]float64, error) {
	numChannels := r.Program.SweepConfig.NumChannels()

	matrix := make([][]float64, 0, len(r.Sweeps))
	for i, sweep := range r.Sweeps {
		if len(sweep.Data) == numChannels {
			matrix = append(matrix, sweep.Data)
			continue
		}

		if i != len(r.Sweeps)-1 {
			return nil, fmt.Errorf("%w: sweep %d of %d holds %d of %d samples", ErrMalformedResult, i, len(r.Sweeps), len(sweep.Data), numChannels)
		}
		if len(sweep.Data) == 0 {
			return nil, fmt.Errorf("%w: last sweep holds no samples to pad with", ErrMalformedResult)
		}

		row := make([]float64, numChannels)
		n := copy(row, sweep.Data)
		for ; n < numChannels; n++ {
			row[n] = sweep.Data[len(sweep.Data)-1]
		}
		matrix = append(matrix, row)
	}

	return matrix, nil
}

// WriteTSV writes the result as a tab-separated table of (time, frequency,
// power) rows with sweeps separated by blank lines. Sample times within a
// sweep are interpolated evenly towards the next sweep's timestamp; the last
// sweep has no successor, so its samples all carry its own timestamp.
func (r *Result) WriteTSV(w io.Writer) error {
	sc := r.Program.SweepConfig
	numChannels := sc.NumChannels()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# t [s]\tf [Hz]\tP [dBm]\n")

	for i, sweep := range r.Sweeps {
		sweepTime := 0.0
		if i+1 < len(r.Sweeps) {
			sweepTime = r.Sweeps[i+1].Timestamp - sweep.Timestamp
		}

		for n, dbm := range sweep.Data {
			ch := sc.StartCh + sc.StepCh*n
			if ch >= sc.StopCh {
				return fmt.Errorf("%w: sample %d maps to channel %d beyond the configured range", ErrMalformedResult, n, ch)
			}

			t := sweep.Timestamp + sweepTime/float64(numChannels)*float64(n)
			fmt.Fprintf(bw, "%f\t%f\t%f\n", t, sc.Config.ChannelToHz(ch), dbm)
		}

		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

// Write stores the result as a tab-separated-values file.
func (r *Result) Write(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	return r.WriteTSV(f)
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
