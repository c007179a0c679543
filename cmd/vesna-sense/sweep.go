package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/icopavan/vesna-alh-tools/internal/sensing"
)

var (
	sweepSpan   spanFlags
	sweepOutput string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one immediate sweep and print it as TSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		sensor, closer, err := openSensor()
		if err != nil {
			return err
		}
		defer closer()

		sc, err := sweepSpan.resolve(cmd.Context(), cmd, sensor)
		if err != nil {
			return err
		}

		sweep, err := sensor.Sweep(cmd.Context(), sc)
		if err != nil {
			return err
		}

		result := &sensing.Result{
			Program: &sensing.Program{SweepConfig: sc},
			Sweeps:  []sensing.Sweep{*sweep},
		}

		if sweepOutput != "" {
			return result.Write(sweepOutput)
		}
		return result.WriteTSV(os.Stdout)
	},
}

func init() {
	sweepSpan.register(sweepCmd)
	sweepCmd.Flags().StringVarP(&sweepOutput, "output", "o", "", "Write the sweep to a file instead of stdout")
	rootCmd.AddCommand(sweepCmd)
}
