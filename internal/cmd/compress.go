package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/ambientlog/condense/internal/buildinfo"
	"github.com/ambientlog/condense/pkg/pipeline"
	"github.com/ambientlog/condense/pkg/session"
)

func newCompressCommand() command {
	return command{
		name:        "compress",
		description: "Compress a raw input-event stream into a new session",
		configure: func(fs *flag.FlagSet) {
			fs.String("input", "", "Path to the raw JSONL event stream (required)")
			fs.Bool("plan-only", false, "Print the resolved configuration without compressing")
		},
		run: runCompress,
	}
}

var (
	timeNow      = time.Now
	hostname     = os.Hostname
	manifestSave = session.Save
)

func runCompress(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}

	planOnly := boolFlag(fs, "plan-only")
	inputPath := stringFlag(fs, "input")
	if inputPath == "" && len(args) > 0 {
		inputPath = args[0]
	}

	ctx.Logger.Info("compress command invoked", "plan_only", planOnly, "input", inputPath, "config_source", ctx.Config.Source)

	if planOnly {
		printCompressPlan(ctx, stdout)
		return nil
	}

	if inputPath == "" {
		return fmt.Errorf("input path required: pass --input or a positional argument")
	}
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("stat input stream: %w", err)
	}

	if err := os.MkdirAll(ctx.Config.Paths.SessionsDir, 0o755); err != nil {
		return fmt.Errorf("ensure sessions directory: %w", err)
	}

	sessionID := session.NewID(timeNow())
	layout := session.BuildLayout(ctx.Config.Paths.SessionsDir, sessionID)
	if err := session.EnsureFilesystem(layout); err != nil {
		return fmt.Errorf("prepare session filesystem: %w", err)
	}

	host, err := hostname()
	if err != nil {
		host = "unknown"
	}

	manifest := session.New(session.Options{
		SessionID:    sessionID,
		CreatedAt:    timeNow(),
		Hostname:     host,
		AppVersion:   buildinfo.Version(),
		ConfigSource: ctx.Config.Source,
		InputPath:    inputPath,
		Settings: session.Settings{
			KeyClickMaxMillis:       ctx.Config.Compress.KeyClickMaxMillis,
			MouseClickMaxMillis:     ctx.Config.Compress.MouseClickMaxMillis,
			TypingMaxInterkeyMillis: ctx.Config.Compress.TypingMaxInterkeyMillis,
			MouseSequenceMaxMillis:  ctx.Config.Compress.MouseSequenceMaxMillis,
			StoreEnabled:            ctx.Config.Storage.Enabled,
			RedactEmails:            ctx.Config.Compress.RedactEmails,
		},
		Layout: layout,
	})

	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	manifest.Status.State = "running"
	manifest.Status.Summary = "compression in progress"
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("update manifest status: %w", err)
	}

	result, err := pipeline.Run(context.Background(), pipeline.Options{
		Config:    ctx.Config,
		Layout:    layout,
		InputPath: inputPath,
		Logger:    ctx.Logger,
		Clock:     timeNow,
	})

	if err != nil {
		manifest.Status.State = "failed"
		manifest.Status.Summary = err.Error()
		ctx.Logger.Error("compression failed", "error", err)
		if saveErr := manifestSave(manifest, layout.ManifestPath); saveErr != nil {
			return fmt.Errorf("compress event stream: %v (additionally failed to persist manifest: %w)", err, saveErr)
		}
		return fmt.Errorf("compress event stream: %w", err)
	}

	started := result.StartedAt
	finished := result.FinishedAt
	manifest.Status.StartedAt = &started
	manifest.Status.EndedAt = &finished
	manifest.Status.RawEvents = result.RawEvents
	manifest.Status.CompressedEvents = result.CompressedEvents
	manifest.Status.State = "completed"
	manifest.Status.Summary = fmt.Sprintf("compressed %d raw events into %d records", result.RawEvents, result.CompressedEvents)
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("finalise manifest: %w", err)
	}

	fmt.Fprintf(stdout, "Prepared session directory: %s\n", layout.Root)
	fmt.Fprintf(stdout, "Manifest: %s\n", layout.ManifestPath)
	fmt.Fprintf(stdout, "Session log: %s\n", layout.SessionLogPath)
	fmt.Fprintf(stdout, "Compression: %d raw events -> %d records in %s\n", result.RawEvents, result.CompressedEvents, result.CompressedPath)
	fmt.Fprintf(stdout, "Activity summary: %s\n", result.SummaryPath)
	if result.StorePath != "" {
		fmt.Fprintf(stdout, "Event store: %s\n", result.StorePath)
	} else {
		fmt.Fprintln(stdout, "Event store: disabled via config")
	}

	if len(result.ByType) > 0 {
		fmt.Fprintf(stdout, "Records by type:\n")
		types := make([]string, 0, len(result.ByType))
		for typ := range result.ByType {
			types = append(types, typ)
		}
		sort.Strings(types)
		for _, typ := range types {
			fmt.Fprintf(stdout, "  - %s: %d\n", typ, result.ByType[typ])
		}
	}

	return nil
}

func printCompressPlan(ctx *AppContext, stdout io.Writer) {
	fmt.Fprintf(stdout, "Resolved configuration (source: %s)\n", ctx.Config.Source)
	fmt.Fprintf(stdout, "  sessions_dir: %s\n", ctx.Config.Paths.SessionsDir)
	fmt.Fprintf(stdout, "  compress.key_click_max_millis: %d\n", ctx.Config.Compress.KeyClickMaxMillis)
	fmt.Fprintf(stdout, "  compress.mouse_click_max_millis: %d\n", ctx.Config.Compress.MouseClickMaxMillis)
	fmt.Fprintf(stdout, "  compress.typing_max_interkey_millis: %d\n", ctx.Config.Compress.TypingMaxInterkeyMillis)
	fmt.Fprintf(stdout, "  compress.mouse_sequence_max_millis: %d\n", ctx.Config.Compress.MouseSequenceMaxMillis)
	fmt.Fprintf(stdout, "  compress.summary_bucket_seconds: %d\n", ctx.Config.Compress.SummaryBucketSeconds)
	fmt.Fprintf(stdout, "  compress.redact_emails: %t\n", ctx.Config.Compress.RedactEmails)
	fmt.Fprintf(stdout, "  storage.enabled: %t\n", ctx.Config.Storage.Enabled)
	fmt.Fprintf(stdout, "  storage.batch_size: %d\n", ctx.Config.Storage.BatchSize)
	fmt.Fprintf(stdout, "  logging.level: %s\n", ctx.Config.Logging.Level)
	fmt.Fprintf(stdout, "  logging.format: %s\n", ctx.Config.Logging.Format)
}

func boolFlag(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	value, err := strconv.ParseBool(f.Value.String())
	if err != nil {
		return false
	}
	return value
}

func stringFlag(fs *flag.FlagSet, name string) string {
	f := fs.Lookup(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}
