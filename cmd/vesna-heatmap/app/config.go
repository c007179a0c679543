package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath     string
	SessionID  int64
	OutputFile string
	Format     ImageFormat
	Theme      ColorTheme
	FontPath   string

	MinPower *float64
	MaxPower *float64
	MinFreq  *float64
	MaxFreq  *float64

	// Device clock seconds.
	StartTime *float64
	EndTime   *float64

	Verbose       bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

var validThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	JungleTheme:    {},
	ThermalTheme:   {},
	MarineTheme:    {},
	EnhancedTheme:  {},
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Theme:  ClassicTheme,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, theme string
	var minPower, maxPower, minFreq, maxFreq, startTime, endTime float64
	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&theme, "theme", string(ClassicTheme), "Color theme. [classic, grayscale, jungle, thermal, marine, enhanced]")
	flag.StringVar(&c.FontPath, "font", "", "Path to a TTF font used for annotations")
	flag.Float64Var(&minPower, "min-power", 0, "Define a manual minimum power in dBm (format nn.n)")
	flag.Float64Var(&maxPower, "max-power", 0, "Define a manual maximum power in dBm (format nn.n)")
	flag.Float64Var(&minFreq, "min-freq", 0, "Only render samples at or above this frequency in Hz")
	flag.Float64Var(&maxFreq, "max-freq", 0, "Only render samples at or below this frequency in Hz")
	flag.Float64Var(&startTime, "start-time", 0, "Only render sweeps captured at or after this device clock second")
	flag.Float64Var(&endTime, "end-time", 0, "Only render sweeps captured at or before this device clock second")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and frequency scales")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)
	theme = strings.ToLower(theme)

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min-power":
			c.MinPower = &minPower
		case "max-power":
			c.MaxPower = &maxPower
		case "min-freq":
			c.MinFreq = &minFreq
		case "max-freq":
			c.MaxFreq = &maxFreq
		case "start-time":
			c.StartTime = &startTime
		case "end-time":
			c.EndTime = &endTime
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := validThemes[ColorTheme(theme)]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Theme = ColorTheme(theme)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
