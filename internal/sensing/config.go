package sensing

import (
	"fmt"
	"math"
)

// Device is a sensing peripheral attached to the node.
type Device struct {
	ID   int
	Name string
}

// DeviceConfig is one hardware configuration of a device. Channels map to
// frequencies linearly: channel ch is centered at Base + Spacing*ch.
type DeviceConfig struct {
	ID     int
	Name   string
	Device *Device

	Base     int64 // Hz, center frequency of channel 0
	Spacing  int64 // Hz between adjacent channels
	BW       int64 // Hz, bandwidth of a single channel
	Channels int   // number of tunable channels
	Time     int   // ms the device needs per channel measurement
}

// ChannelToHz returns the center frequency of the given channel.
func (c *DeviceConfig) ChannelToHz(ch int) float64 {
	return float64(c.Base) + float64(c.Spacing)*float64(ch)
}

// HzToChannel returns the channel closest to the given frequency, clamped
// to the tunable range.
func (c *DeviceConfig) HzToChannel(hz float64) int {
	ch := int(math.Round((hz - float64(c.Base)) / float64(c.Spacing)))
	if ch < 0 {
		return 0
	}
	if ch >= c.Channels {
		return c.Channels - 1
	}
	return ch
}

// MinHz returns the center frequency of the lowest channel.
func (c *DeviceConfig) MinHz() float64 {
	return c.ChannelToHz(0)
}

// MaxHz returns the center frequency of the highest channel.
func (c *DeviceConfig) MaxHz() float64 {
	return c.ChannelToHz(c.Channels - 1)
}

// Covers reports whether the span [startHz, stopHz] lies inside the
// tunable range of this configuration.
func (c *DeviceConfig) Covers(startHz, stopHz float64) bool {
	return c.MinHz() <= startHz && stopHz <= c.MaxHz()
}

// SweepConfig selects the channel range [StartCh, StopCh) a sweep visits,
// stepping StepCh channels at a time.
type SweepConfig struct {
	Config *DeviceConfig

	StartCh int
	StopCh  int
	StepCh  int
}

// NewSweepConfig validates the channel range against the configuration.
func NewSweepConfig(config *DeviceConfig, startCh, stopCh, stepCh int) (*SweepConfig, error) {
	if config == nil {
		return nil, fmt.Errorf("device configuration is required")
	}
	if stepCh < 1 {
		return nil, fmt.Errorf("channel step must be positive, got %d", stepCh)
	}
	if startCh < 0 || stopCh <= startCh || stopCh > config.Channels {
		return nil, fmt.Errorf("channel range %d:%d outside of 0:%d", startCh, stopCh, config.Channels)
	}

	return &SweepConfig{
		Config:  config,
		StartCh: startCh,
		StopCh:  stopCh,
		StepCh:  stepCh,
	}, nil
}

// NumChannels returns the number of samples a single sweep produces.
func (sc *SweepConfig) NumChannels() int {
	return (sc.StopCh - sc.StartCh + sc.StepCh - 1) / sc.StepCh
}

// ChannelList returns the channels a sweep visits, in measurement order.
func (sc *SweepConfig) ChannelList() []int {
	channels := make([]int, 0, sc.NumChannels())
	for ch := sc.StartCh; ch < sc.StopCh; ch += sc.StepCh {
		channels = append(channels, ch)
	}
	return channels
}

// HzList returns the center frequency of every visited channel, in
// measurement order.
func (sc *SweepConfig) HzList() []float64 {
	hz := make([]float64, 0, sc.NumChannels())
	for ch := sc.StartCh; ch < sc.StopCh; ch += sc.StepCh {
		hz = append(hz, sc.Config.ChannelToHz(ch))
	}
	return hz
}

// StartHz returns the center frequency of the first visited channel.
func (sc *SweepConfig) StartHz() float64 {
	return sc.Config.ChannelToHz(sc.StartCh)
}

// StopHz returns the center frequency of the last visited channel.
func (sc *SweepConfig) StopHz() float64 {
	return sc.Config.ChannelToHz(sc.StopCh - 1)
}

// ConfigList is the catalog of devices and configurations a node reports.
type ConfigList struct {
	Devices []*Device
	Configs []*DeviceConfig
}

// Config looks up a configuration by device and configuration id.
func (cl *ConfigList) Config(deviceID, configID int) (*DeviceConfig, error) {
	for _, c := range cl.Configs {
		if c.Device.ID == deviceID && c.ID == configID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("device %d has no configuration %d", deviceID, configID)
}

// SweepConfigForSpan picks the configuration with the finest channel spacing
// whose tunable range covers [startHz, stopHz] and builds a sweep over that
// span. stepHz requests the desired scan resolution; it is rounded to whole
// channels and never drops below one channel per step.
func (cl *ConfigList) SweepConfigForSpan(startHz, stopHz, stepHz float64) (*SweepConfig, error) {
	if stopHz < startHz {
		return nil, fmt.Errorf("frequency span %f to %f is inverted", startHz, stopHz)
	}

	var best *DeviceConfig
	for _, c := range cl.Configs {
		if !c.Covers(startHz, stopHz) {
			continue
		}
		if best == nil || c.Spacing < best.Spacing {
			best = c
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no device configuration covers %f to %f Hz", startHz, stopHz)
	}

	stepCh := 1
	if s := int(math.Round(stepHz / float64(best.Spacing))); s > 1 {
		stepCh = s
	}

	return NewSweepConfig(best, best.HzToChannel(startHz), best.HzToChannel(stopHz)+1, stepCh)
}
