package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/icopavan/vesna-alh-tools/internal/sensing"
	"github.com/icopavan/vesna-alh-tools/internal/storage"
)

var (
	retrieveSpan   spanFlags
	retrieveSlot   int
	retrieveOutput string
	retrieveDB     string
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Download a completed sensing result",
	Long: `Retrieve downloads the recorded sweeps from a data slot. The channel
range must match the one the task was programmed with; pass the same span or
--dev/--conf flags as the program invocation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := retrieveDB
		if dbPath == "" {
			dbPath = config.Storage.Database
		}
		if retrieveOutput == "" && dbPath == "" {
			return errors.New("no destination given, set --output or --db")
		}

		sensor, closer, err := openSensor()
		if err != nil {
			return err
		}
		defer closer()

		sc, err := retrieveSpan.resolve(cmd.Context(), cmd, sensor)
		if err != nil {
			return err
		}

		p := &sensing.Program{SweepConfig: sc, Slot: retrieveSlot}
		result, err := sensor.Retrieve(cmd.Context(), p)
		if err != nil {
			return err
		}

		logger.Info("result retrieved",
			slog.Int("slot", p.Slot),
			slog.Int("sweeps", len(result.Sweeps)))

		if retrieveOutput != "" {
			if err = result.Write(retrieveOutput); err != nil {
				return err
			}
		}
		if dbPath != "" {
			if err = storeResult(cmd.Context(), dbPath, result); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	retrieveSpan.register(retrieveCmd)
	retrieveCmd.Flags().IntVar(&retrieveSlot, "slot", 0, "Data slot to download")
	retrieveCmd.Flags().StringVarP(&retrieveOutput, "output", "o", "", "Write the result to a TSV file")
	retrieveCmd.Flags().StringVar(&retrieveDB, "db", "", "Store the result as a session in a SQLite database")
	rootCmd.AddCommand(retrieveCmd)
}

func storeResult(ctx context.Context, dbPath string, result *sensing.Result) (err error) {
	store := storage.New(dbPath)
	defer func() {
		if cErr := store.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	node := config.Node.URL
	if config.Node.Device != "" {
		node = config.Node.Device
	}

	c := result.Program.SweepConfig.Config
	device := fmt.Sprintf("dev %d cfg %d: %s", c.Device.ID, c.ID, c.Name)

	sessionID, err := store.CreateSession(ctx, node, device, programDescriptor(result.Program))
	if err != nil {
		return err
	}

	if err = store.StoreResult(ctx, sessionID, result); err != nil {
		return err
	}

	logger.Info("result stored",
		slog.String("database", dbPath),
		slog.Int64("session", sessionID))
	return nil
}

// programDescriptor captures what produced a result, for the session record.
func programDescriptor(p *sensing.Program) map[string]any {
	d := map[string]any{
		"device":  p.SweepConfig.Config.Device.ID,
		"config":  p.SweepConfig.Config.ID,
		"startCh": p.SweepConfig.StartCh,
		"stopCh":  p.SweepConfig.StopCh,
		"stepCh":  p.SweepConfig.StepCh,
		"slot":    p.Slot,
	}
	if !p.Start.IsZero() {
		d["start"] = p.Start.Format(time.RFC3339)
		d["duration"] = p.Duration.Seconds()
	}
	return d
}
