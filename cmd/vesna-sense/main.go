package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	nodeURL    string
	cluster    int
	serialDev  string
	verbose    bool

	logLevel slog.LevelVar
	logger   = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	config = DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "vesna-sense",
	Short: "Remote spectrum sensing with VESNA nodes",
	Long: `vesna-sense talks to VESNA spectrum sensor nodes, either through an
infrastructure HTTP gateway or over a local serial console. It can list the
sensing hardware of a node, run immediate sweeps, schedule sensing tasks and
retrieve their results as TSV files or SQLite sessions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			loaded, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			config = loaded
		}

		// Flags override the configuration file.
		if cmd.Flags().Changed("url") {
			config.Node.URL = nodeURL
		}
		if cmd.Flags().Changed("cluster") {
			config.Node.Cluster = cluster
		}
		if cmd.Flags().Changed("device") {
			config.Node.Device = serialDev
		}
		if verbose {
			config.Settings.LogLevel = "debug"
		}

		return setLogLevel(config.Settings.LogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&nodeURL, "url", "", "Infrastructure gateway endpoint URL")
	rootCmd.PersistentFlags().IntVar(&cluster, "cluster", 0, "ZigBit cluster address of the node behind the gateway")
	rootCmd.PersistentFlags().StringVar(&serialDev, "device", "", "Serial console device of a locally attached node")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func setLogLevel(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	logLevel.Set(l)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
