package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/icopavan/vesna-alh-tools/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.New(config.DBPath)
	defer store.Close()

	return renderSession(ctx, store, config, logger)
}

func renderSession(ctx context.Context, store *storage.Store, config *Config, logger *slog.Logger) (err error) {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.MinFreq != nil && config.MaxFreq != nil:
		opts = append(opts, storage.WithFreqRange(*config.MinFreq, *config.MaxFreq))

		filters = append(filters,
			slog.String("minFreq", fmt.Sprintf("%0.2fHz", *config.MinFreq)),
			slog.String("maxFreq", fmt.Sprintf("%0.2fHz", *config.MaxFreq)))

	case config.MinFreq != nil:
		opts = append(opts, storage.WithMinFreq(*config.MinFreq))
		filters = append(filters, slog.String("minFreq", fmt.Sprintf("%0.2fHz", *config.MinFreq)))

	case config.MaxFreq != nil:
		opts = append(opts, storage.WithMaxFreq(*config.MaxFreq))
		filters = append(filters, slog.String("maxFreq", fmt.Sprintf("%0.2fHz", *config.MaxFreq)))
	}

	switch {
	case config.StartTime != nil && config.EndTime != nil:
		opts = append(opts, storage.WithTimeRange(*config.StartTime, *config.EndTime))

		filters = append(filters,
			slog.Float64("startTime", *config.StartTime),
			slog.Float64("endTime", *config.EndTime))

	case config.StartTime != nil:
		opts = append(opts, storage.WithStartTime(*config.StartTime))
		filters = append(filters, slog.Float64("startTime", *config.StartTime))

	case config.EndTime != nil:
		opts = append(opts, storage.WithEndTime(*config.EndTime))
		filters = append(filters, slog.Float64("endTime", *config.EndTime))
	}

	if len(filters) > 0 {
		logger.Info("reader filters", filters...)
	}

	reader, err := store.Spans(ctx, config.SessionID, opts...)
	if err != nil {
		return err
	}
	defer reader.Close()

	session := reader.Session()
	logger.Info("rendering session",
		slog.Int64("id", session.ID),
		slog.String("node", session.Node),
		slog.String("device", session.Device),
		slog.Time("started", session.StartTime))

	spec := NewSpectrumData(NewSmoothBounds(0.3))
	for reader.Next(ctx) {
		spec.Update(reader.Current())
	}
	if err = reader.Error(); err != nil {
		return err
	}

	if spec.Height == 0 {
		return fmt.Errorf("session %d has no samples matching the filters", config.SessionID)
	}

	bounds := spec.BoundsTracker.Current()
	if config.MinPower != nil {
		bounds.Min = *config.MinPower
	}
	if config.MaxPower != nil {
		bounds.Max = *config.MaxPower
	}
	if bounds.Max <= bounds.Min {
		return fmt.Errorf("power range %0.1f to %0.1f dBm is empty", bounds.Min, bounds.Max)
	}
	spec.BoundsTracker.Set(bounds)

	logger.Info("finished reading data points",
		slog.Group("stats",
			slog.String("timeStart", formatSeconds(spec.TimeStart)),
			slog.String("timeEnd", formatSeconds(spec.TimeEnd)),
			slog.String("minFreq", fmt.Sprintf("%0.2fHz", spec.FrequencyMin)),
			slog.String("maxFreq", fmt.Sprintf("%0.2fHz", spec.FrequencyMax)),
			slog.String("minPower", fmt.Sprintf("%0.2fdBm", bounds.Min)),
			slog.String("maxPower", fmt.Sprintf("%0.2fdBm", bounds.Max)),
		))

	var fontData []byte
	if !config.NoAnnotations && config.FontPath != "" {
		if fontData, err = os.ReadFile(config.FontPath); err != nil {
			return fmt.Errorf("reading font: %w", err)
		}
	}
	if !config.NoAnnotations && config.FontPath == "" {
		logger.Info("no font given, rendering without annotations")
	}

	renderer, err := NewSpectrumRenderer(RenderConfig{
		Font:       fontData,
		ColorTheme: config.Theme,
	})
	if err != nil {
		return fmt.Errorf("creating spectrum renderer: %w", err)
	}

	logger.Info("rendering spectrum",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", spec.Width),
			slog.Int("height", spec.Height),
		))

	img, err := renderer.Render(spec)
	if err != nil {
		return fmt.Errorf("rendering spectrum: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
