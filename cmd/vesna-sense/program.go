package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/icopavan/vesna-alh-tools/internal/sensing"
)

var (
	programSpan     spanFlags
	programStartIn  time.Duration
	programDuration time.Duration
	programSlot     int
)

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Schedule a sensing task onto a node",
	Long: `Program frees the chosen data slot and schedules a sweep task into it.
The task starts after the --start delay and keeps sweeping for --duration.
Retrieve the result with the retrieve command once the slot is complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sensor, closer, err := openSensor()
		if err != nil {
			return err
		}
		defer closer()

		sc, err := programSpan.resolve(cmd.Context(), cmd, sensor)
		if err != nil {
			return err
		}

		p := &sensing.Program{
			SweepConfig: sc,
			Start:       time.Now().Add(programStartIn),
			Duration:    programDuration,
			Slot:        programSlot,
		}

		if err = sensor.Schedule(cmd.Context(), p); err != nil {
			return err
		}

		logger.Info("sensing task programmed",
			slog.Int("slot", p.Slot),
			slog.Time("start", p.Start),
			slog.Duration("duration", p.Duration))

		return nil
	},
}

func init() {
	programSpan.register(programCmd)
	programCmd.Flags().DurationVar(&programStartIn, "start", 5*time.Second, "Delay before the task starts")
	programCmd.Flags().DurationVar(&programDuration, "duration", 30*time.Second, "How long the task keeps sweeping")
	programCmd.Flags().IntVar(&programSlot, "slot", 0, "Data slot to program the task into")
	rootCmd.AddCommand(programCmd)
}
