package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/icopavan/vesna-alh-tools/internal/sensing"
)

const statusPollInterval = 5 * time.Second

var (
	statusSlot int
	statusWait bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether a data slot holds a complete result",
	RunE: func(cmd *cobra.Command, args []string) error {
		sensor, closer, err := openSensor()
		if err != nil {
			return err
		}
		defer closer()

		p := &sensing.Program{Slot: statusSlot}
		for {
			complete, err := sensor.IsComplete(cmd.Context(), p)
			if err != nil {
				return err
			}
			if complete {
				fmt.Println("COMPLETE")
				return nil
			}
			if !statusWait {
				fmt.Println("IN PROGRESS")
				return nil
			}

			logger.Info("slot not complete yet", slog.Int("slot", statusSlot))

			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			case <-time.After(statusPollInterval):
			}
		}
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusSlot, "slot", 0, "Data slot to check")
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "Keep polling until the slot is complete")
	rootCmd.AddCommand(statusCmd)
}
