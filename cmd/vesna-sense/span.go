package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/icopavan/vesna-alh-tools/internal/sensing"
)

// spanFlags selects what a sweep covers, either as a frequency span that is
// matched against the node catalog or as an explicit device configuration
// and channel range.
type spanFlags struct {
	startHz float64
	stopHz  float64
	stepHz  float64

	deviceID int
	configID int
	startCh  int
	stopCh   int
	stepCh   int
}

func (f *spanFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64VarP(&f.startHz, "start-hz", "f", 0, "Start of the frequency span in Hz")
	cmd.Flags().Float64VarP(&f.stopHz, "stop-hz", "t", 0, "End of the frequency span in Hz")
	cmd.Flags().Float64VarP(&f.stepHz, "step-hz", "s", 0, "Requested scan resolution in Hz")
	cmd.Flags().IntVar(&f.deviceID, "dev", 0, "Device id of an explicit configuration")
	cmd.Flags().IntVar(&f.configID, "conf", 0, "Configuration id of an explicit configuration")
	cmd.Flags().IntVar(&f.startCh, "start-ch", 0, "First channel of an explicit channel range")
	cmd.Flags().IntVar(&f.stopCh, "stop-ch", 0, "Channel the explicit range stops before, defaults to all channels")
	cmd.Flags().IntVar(&f.stepCh, "step-ch", 1, "Channel step of an explicit channel range")
}

// resolve turns the flags into a sweep configuration using the node catalog.
// Explicit --dev/--conf selection wins over a frequency span.
func (f *spanFlags) resolve(ctx context.Context, cmd *cobra.Command, sensor *sensing.SpectrumSensor) (*sensing.SweepConfig, error) {
	configs, err := sensor.Configs(ctx)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("dev") || cmd.Flags().Changed("conf") {
		dc, err := configs.Config(f.deviceID, f.configID)
		if err != nil {
			return nil, err
		}

		stopCh := f.stopCh
		if !cmd.Flags().Changed("stop-ch") {
			stopCh = dc.Channels
		}

		return sensing.NewSweepConfig(dc, f.startCh, stopCh, f.stepCh)
	}

	if f.stopHz <= 0 {
		return nil, errors.New("no span given, set --start-hz/--stop-hz or --dev/--conf")
	}

	return configs.SweepConfigForSpan(f.startHz, f.stopHz, f.stepHz)
}
