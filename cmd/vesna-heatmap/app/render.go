package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	dpi            = 120.0
	defaultSize    = 12.0
	tickMarkHeight = 5
	pixelsPerLabel = 150.0

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40
)

// BorderConfig defines the sizes of white space around the spectrum
type BorderConfig struct {
	Top    int // Space for frequency scale
	Left   int // Space for time scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for spectrum visualization.
// Font is the content of a TTF file; without one the spectrum is rendered
// bare, without borders or annotations.
type RenderConfig struct {
	Font     []byte
	FontSize float64 // Font size in points

	ColorTheme   ColorTheme // Color scheme for power values
	ColorMapSize int        // Number of colors in gradient (0 for default)

	Borders BorderConfig
}

// SpectrumRenderer handles the visualization of radio spectrum data, one
// pixel per sample.
type SpectrumRenderer struct {
	colorMap *ColorMapper
	font     *truetype.Font
	config   RenderConfig
}

// NewSpectrumRenderer creates a new spectrum renderer with the given
// configuration
func NewSpectrumRenderer(config RenderConfig) (*SpectrumRenderer, error) {
	if config.FontSize == 0 {
		config.FontSize = defaultSize
	}
	if config.ColorMapSize == 0 {
		config.ColorMapSize = DefaultColorMapSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}

	r := &SpectrumRenderer{config: config}

	if len(config.Font) > 0 {
		parsedFont, err := freetype.ParseFont(config.Font)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}
		r.font = parsedFont
	}

	return r, nil
}

// Render creates an image of the spectrum data. With a font configured the
// spectrum is framed by frequency and time scales and an information bar.
func (r *SpectrumRenderer) Render(spec *SpectrumData) (*image.RGBA, error) {
	bounds := spec.BoundsTracker.Current()
	if r.colorMap == nil {
		r.colorMap = NewColorMapperWithSize(r.config.ColorTheme, bounds, r.config.ColorMapSize)
	} else {
		r.colorMap.UpdateBounds(bounds)
	}

	if r.font == nil {
		img := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
		r.renderSpectrum(img, img.Bounds(), spec)
		return img, nil
	}

	// Create image with space for borders
	fullWidth := spec.Width + r.config.Borders.Left + r.config.Borders.Right
	fullHeight := spec.Height + r.config.Borders.Top + r.config.Borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	// Spectrum area (1:1 mapping)
	spectrumArea := image.Rect(
		r.config.Borders.Left,
		r.config.Borders.Top,
		r.config.Borders.Left+spec.Width,
		r.config.Borders.Top+spec.Height,
	)

	ann := newAnnotator(r.font, r.config.FontSize, r.config.Borders)
	defer ann.Close()

	// Annotations first, the spectrum then overwrites any overlap
	if err := ann.annotate(img, spec); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	r.renderSpectrum(img, spectrumArea, spec)

	return img, nil
}

// renderSpectrum draws the actual spectrum data using the color map
func (r *SpectrumRenderer) renderSpectrum(img *image.RGBA, area image.Rectangle, spec *SpectrumData) {
	for y, row := range spec.Rows {
		imgY := area.Min.Y + y
		for x := 0; x < spec.Width; x++ {
			power := math.NaN()
			if x < len(row) {
				power = row[x]
			}
			img.Set(area.Min.X+x, imgY, r.colorMap.GetColor(power))
		}
	}
}

// Internal annotator implementation
type annotator struct {
	context  *freetype.Context
	borders  BorderConfig
	fontFace font.Face
}

func newAnnotator(f *truetype.Font, fontSize float64, borders BorderConfig) *annotator {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(f)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		borders: borders,
		fontFace: truetype.NewFace(f, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, spec *SpectrumData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawFrequencyScale(img, spec); err != nil {
		return fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := a.drawTimeScale(img, spec); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawInfoBar(img, spec); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, spec *SpectrumData) error {
	freqRange := spec.FrequencyMax - spec.FrequencyMin
	if freqRange <= 0 {
		// Single channel, nothing to put on a scale.
		return nil
	}

	freqStep := niceFrequencyStep(freqRange, spec.Width)
	startFreq := math.Ceil(spec.FrequencyMin/freqStep) * freqStep

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := a.borders.Top - tickMarkHeight - fontHeight/2

	for freq := startFreq; freq <= spec.FrequencyMax; freq += freqStep {
		xRatio := (freq - spec.FrequencyMin) / freqRange
		x := a.borders.Left + int(xRatio*float64(spec.Width-1))

		// Tick mark
		for y := a.borders.Top - tickMarkHeight; y < a.borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatFrequency(freq)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-(width.Round()/2), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, spec *SpectrumData) error {
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	duration := spec.TimeEnd - spec.TimeStart
	if duration <= 0 || spec.Height < 2 {
		// A single sweep still gets its capture time marked.
		textY := a.borders.Top + fontHeight/2 - metrics.Descent.Round()
		pt := freetype.Pt(10, textY)
		_, err := a.context.DrawString(formatSeconds(spec.TimeStart), pt)
		return err
	}

	desiredLabels := spec.Height / 100
	if desiredLabels < 1 {
		desiredLabels = 1
	}
	timeStep := niceTimeStep(duration / float64(desiredLabels))

	startTime := math.Ceil(spec.TimeStart/timeStep) * timeStep
	for t := startTime; t <= spec.TimeEnd; t += timeStep {
		yRatio := (t - spec.TimeStart) / duration
		imgY := a.borders.Top + int(yRatio*float64(spec.Height-1))

		// Tick mark
		for x := a.borders.Left - tickMarkHeight; x < a.borders.Left; x++ {
			img.Set(x, imgY, color.Black)
		}

		textY := imgY + fontHeight/2 - metrics.Descent.Round()
		pt := freetype.Pt(10, textY)
		if _, err := a.context.DrawString(formatSeconds(t), pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, spec *SpectrumData) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Freq: %s - %s",
		formatFrequency(spec.FrequencyMin), formatFrequency(spec.FrequencyMax)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Device time: %s - %s",
		formatSeconds(spec.TimeStart), formatSeconds(spec.TimeEnd)))

	if spec.Width > 1 {
		freqPerPixel := (spec.FrequencyMax - spec.FrequencyMin) / float64(spec.Width-1)
		sb.WriteString("; ")
		sb.WriteString(fmt.Sprintf("1px = %s", formatFrequency(freqPerPixel)))
	}

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Center text vertically in the bottom border
	textY := img.Bounds().Max.Y - (a.borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.borders.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// Helper functions

func niceFrequencyStep(freqRange float64, width int) float64 {
	// Standard step sizes in Hz
	steps := []float64{
		1,             // 1 Hz
		10,            // 10 Hz
		100,           // 100 Hz
		1_000,         // 1 kHz
		10_000,        // 10 kHz
		100_000,       // 100 kHz
		1_000_000,     // 1 MHz
		10_000_000,    // 10 MHz
		100_000_000,   // 100 MHz
		1_000_000_000, // 1 GHz
	}

	desiredSteps := float64(width) / pixelsPerLabel
	if desiredSteps < 2 {
		desiredSteps = 2
	}
	targetStep := freqRange / desiredSteps

	for _, step := range steps {
		if step >= targetStep {
			// Only if this step still gives at least 2 labels
			if freqRange/step >= 2 {
				return step
			}
			break
		}
	}

	// Fall back to half the range so at least the center frequency shows
	return freqRange / 2
}

func formatFrequency(freq float64) string {
	switch {
	case freq >= 1e9:
		return fmt.Sprintf("%.1f GHz", freq/1e9)
	case freq >= 1e6:
		return fmt.Sprintf("%.1f MHz", freq/1e6)
	case freq >= 1e3:
		return fmt.Sprintf("%.1f kHz", freq/1e3)
	default:
		return fmt.Sprintf("%.0f Hz", freq)
	}
}

// formatSeconds renders a device clock reading, which counts seconds since
// the node booted.
func formatSeconds(secs float64) string {
	d := time.Duration(secs * float64(time.Second))
	return d.Truncate(time.Second).String()
}

func niceTimeStep(roughStep float64) float64 {
	// Nice label intervals in seconds
	intervals := []float64{
		1, 2, 5, 10, 30,
		60, 300, 600, 1800,
		3600, 7200, 14400,
	}

	for _, interval := range intervals {
		if roughStep <= interval {
			return interval
		}
	}
	return 21600
}
