package sensing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The node prints its capabilities as an indented listing:
//
//	dev #0, CC tuner 433, 2 configs:
//	  cfg #0: Sampling a 200 kHz channel with 1 kHz resolution:
//	     base: 432000000 Hz, spacing: 1000 Hz, bw: 1000 Hz, channels: 196608, time: 50 ms
//
// Indentation carries the nesting, so the patterns are anchored to it.
var (
	devicePattern = regexp.MustCompile(`^dev #([0-9]+), (.+), [0-9]+ configs:`)
	configPattern = regexp.MustCompile(`^  cfg #([0-9]+): (.+):`)
	paramsPattern = regexp.MustCompile(`^     base: ([0-9]+) Hz, spacing: ([0-9]+) Hz, bw: ([0-9]+) Hz, channels: ([0-9]+), time: ([0-9]+) ms`)
)

// ParseConfigList turns the capability listing into a typed catalog.
func ParseConfigList(description string) (*ConfigList, error) {
	list := &ConfigList{}

	var device *Device
	var config *DeviceConfig

	for _, line := range strings.Split(description, "\n") {
		if g := devicePattern.FindStringSubmatch(line); g != nil {
			id, err := strconv.Atoi(g[1])
			if err != nil {
				return nil, fmt.Errorf("parsing device id: %w", err)
			}

			device = &Device{ID: id, Name: g[2]}
			list.Devices = append(list.Devices, device)
			continue
		}

		if g := configPattern.FindStringSubmatch(line); g != nil {
			if device == nil {
				return nil, fmt.Errorf("configuration listed before any device: %q", line)
			}

			id, err := strconv.Atoi(g[1])
			if err != nil {
				return nil, fmt.Errorf("parsing configuration id: %w", err)
			}

			config = &DeviceConfig{ID: id, Name: g[2], Device: device}
			list.Configs = append(list.Configs, config)
			continue
		}

		if g := paramsPattern.FindStringSubmatch(line); g != nil {
			if config == nil {
				return nil, fmt.Errorf("parameters listed before any configuration: %q", line)
			}

			if err := fillConfigParams(config, g); err != nil {
				return nil, err
			}
		}
	}

	return list, nil
}

func fillConfigParams(config *DeviceConfig, g []string) error {
	var err error
	if config.Base, err = strconv.ParseInt(g[1], 10, 64); err != nil {
		return fmt.Errorf("parsing base frequency: %w", err)
	}
	if config.Spacing, err = strconv.ParseInt(g[2], 10, 64); err != nil {
		return fmt.Errorf("parsing channel spacing: %w", err)
	}
	if config.BW, err = strconv.ParseInt(g[3], 10, 64); err != nil {
		return fmt.Errorf("parsing bandwidth: %w", err)
	}
	if config.Channels, err = strconv.Atoi(g[4]); err != nil {
		return fmt.Errorf("parsing channel count: %w", err)
	}
	if config.Time, err = strconv.Atoi(g[5]); err != nil {
		return fmt.Errorf("parsing sweep time: %w", err)
	}
	return nil
}
