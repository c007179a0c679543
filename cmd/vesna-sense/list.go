package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/icopavan/vesna-alh-tools/internal/sensing"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the sensing devices and configurations of a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		sensor, closer, err := openSensor()
		if err != nil {
			return err
		}
		defer closer()

		configs, err := sensor.Configs(cmd.Context())
		if err != nil {
			return err
		}

		printConfigList(os.Stdout, configs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func printConfigList(w io.Writer, list *sensing.ConfigList) {
	for _, device := range list.Devices {
		fmt.Fprintf(w, "dev #%d: %s\n", device.ID, device.Name)

		for _, c := range list.Configs {
			if c.Device.ID != device.ID {
				continue
			}
			fmt.Fprintf(w, "  cfg #%d: %s\n", c.ID, c.Name)
			fmt.Fprintf(w, "    %s to %s in %s steps, %d ms per channel\n",
				humanHz(c.MinHz()), humanHz(c.MaxHz()), humanHz(float64(c.Spacing)), c.Time)
		}
	}
}

func humanHz(hz float64) string {
	value, suffix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%.2f %sHz", value, suffix)
}
