// Package pipeline orchestrates one compression session: it streams raw
// input events through the compressor into a fan-out of sinks (JSONL stream,
// SQLite store, activity summary) under the control of a pause/kill
// controller, and reports the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ambientlog/condense/pkg/compress"
	"github.com/ambientlog/condense/pkg/config"
	"github.com/ambientlog/condense/pkg/events"
	"github.com/ambientlog/condense/pkg/session"
	"github.com/ambientlog/condense/pkg/store"
)

// Options controls pipeline orchestration.
type Options struct {
	Config    config.Config
	Layout    session.Layout
	InputPath string
	Logger    *slog.Logger
	Clock     func() time.Time
	Control   *Controller
}

// Result reports the outcome of one compression session.
type Result struct {
	RawEvents        int
	CompressedEvents int
	ByType           map[string]int
	CompressedPath   string
	SummaryPath      string
	StorePath        string
	StartedAt        time.Time
	FinishedAt       time.Time
	Timeline         []Transition
}

// ThresholdsFromConfig maps the millisecond config knobs onto compressor
// thresholds.
func ThresholdsFromConfig(cfg config.CompressConfig) compress.Thresholds {
	return compress.Thresholds{
		KeyClickMax:       time.Duration(cfg.KeyClickMaxMillis) * time.Millisecond,
		MouseClickMax:     time.Duration(cfg.MouseClickMaxMillis) * time.Millisecond,
		TypingMaxInterkey: time.Duration(cfg.TypingMaxInterkeyMillis) * time.Millisecond,
		MouseSequenceMax:  time.Duration(cfg.MouseSequenceMaxMillis) * time.Millisecond,
	}
}

// multiSink fans one emission out to every sink in order.
type multiSink []compress.Sink

func (m multiSink) Emit(ev events.Compressed) error {
	for _, sink := range m {
		if err := sink.Emit(ev); err != nil {
			return err
		}
	}
	return nil
}

// Run executes one compression session over the configured input stream.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Logger == nil {
		return Result{}, errors.New("logger must be provided")
	}
	if opts.InputPath == "" {
		return Result{}, errors.New("input path must be provided")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	controller := opts.Control
	if controller == nil {
		controller = NewControllerWithClock(clock)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logFile, err := os.OpenFile(opts.Layout.SessionLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("open session log: %w", err)
	}
	defer logFile.Close()

	redactor, err := events.NewRedactor(opts.Config.Compress.RedactEmails, opts.Config.Compress.RedactPatterns)
	if err != nil {
		return Result{}, fmt.Errorf("initialise redactor: %w", err)
	}
	summarizer, err := NewSummarizer(float64(opts.Config.Compress.SummaryBucketSeconds))
	if err != nil {
		return Result{}, fmt.Errorf("initialise summarizer: %w", err)
	}

	input, err := os.Open(opts.InputPath)
	if err != nil {
		return Result{}, fmt.Errorf("open raw event stream: %w", err)
	}
	defer input.Close()

	outFile, err := os.OpenFile(opts.Layout.CompressedPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("create compressed stream: %w", err)
	}
	defer outFile.Close()
	writer := events.NewWriter(outFile)

	sinks := multiSink{writer, summarizer}

	storePath := ""
	var batch *store.BatchSink
	if opts.Config.Storage.Enabled {
		eventStore, err := store.Open(opts.Layout.StorePath)
		if err != nil {
			return Result{}, fmt.Errorf("open event store: %w", err)
		}
		defer eventStore.Close()
		batch = store.NewBatchSink(ctx, eventStore, opts.Config.Storage.BatchSize)
		sinks = append(sinks, batch)
		storePath = opts.Layout.StorePath
	}

	compressor, err := compress.New(compress.Options{
		Thresholds: ThresholdsFromConfig(opts.Config.Compress),
		Redactor:   redactor,
		Sink:       sinks,
	})
	if err != nil {
		return Result{}, fmt.Errorf("initialise compressor: %w", err)
	}

	started := clock().UTC()
	opts.Logger.Info("compression started", "input", opts.InputPath, "store_enabled", opts.Config.Storage.Enabled)
	writeSessionLog(logFile, clock(), "pipeline", "compression started for %s", opts.InputPath)

	rawCount := 0
	streamErr := events.ReadRaw(input, func(ev events.Raw) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := controller.Wait(ctx); err != nil {
			return err
		}
		rawCount++
		return compressor.Process(ev)
	})
	if streamErr != nil {
		controller.Kill(streamErr)
		writeSessionLog(logFile, clock(), "pipeline", "aborted after %d raw events: %v", rawCount, streamErr)
		if errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded) {
			return Result{}, streamErr
		}
		return Result{}, fmt.Errorf("stream raw events: %w", streamErr)
	}

	if err := compressor.Finalize(); err != nil {
		controller.Kill(err)
		return Result{}, fmt.Errorf("finalize compression: %w", err)
	}
	if batch != nil {
		if err := batch.Flush(); err != nil {
			return Result{}, fmt.Errorf("flush event store: %w", err)
		}
	}
	if err := outFile.Close(); err != nil {
		return Result{}, fmt.Errorf("close compressed stream: %w", err)
	}

	if err := summarizer.WriteFile(opts.Layout.SummaryPath); err != nil {
		return Result{}, err
	}

	finished := clock().UTC()
	writeSessionLog(logFile, clock(), "pipeline", "compressed %d raw events into %d records", rawCount, writer.Count())
	opts.Logger.Info("compression complete", "raw_events", rawCount, "compressed_events", writer.Count())

	return Result{
		RawEvents:        rawCount,
		CompressedEvents: writer.Count(),
		ByType:           summarizer.ByType(),
		CompressedPath:   opts.Layout.CompressedPath,
		SummaryPath:      opts.Layout.SummaryPath,
		StorePath:        storePath,
		StartedAt:        started,
		FinishedAt:       finished,
		Timeline:         controller.Timeline(),
	}, nil
}

func writeSessionLog(file *os.File, timestamp time.Time, stage, message string, args ...any) {
	if file == nil {
		return
	}
	formatted := message
	if len(args) > 0 {
		formatted = fmt.Sprintf(message, args...)
	}
	line := fmt.Sprintf("[%s] stage=%s %s\n", timestamp.UTC().Format(time.RFC3339), stage, formatted)
	_, _ = file.WriteString(line)
}
