package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ambientlog/condense/pkg/events"
	"github.com/ambientlog/condense/pkg/store"
)

func newReportCommand() command {
	return command{
		name:        "report",
		description: "Render a human-readable timeline from a session or compressed stream",
		configure: func(fs *flag.FlagSet) {
			fs.String("session", "", "Path to a session directory (reads its store or compressed stream)")
			fs.Float64("from", 0, "Start of the timestamp range in seconds")
			fs.Float64("to", math.MaxFloat64, "End of the timestamp range in seconds")
		},
		run: runReport,
	}
}

func runReport(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}

	target := stringFlag(fs, "session")
	if target == "" && len(args) > 0 {
		target = args[0]
	}
	if target == "" {
		return fmt.Errorf("report target required: pass --session or a compressed stream path")
	}

	from := float64Flag(fs, "from", 0)
	to := float64Flag(fs, "to", math.MaxFloat64)
	if to < from {
		return fmt.Errorf("range end %v precedes start %v", to, from)
	}

	records, source, err := loadReportEvents(target, from, to)
	if err != nil {
		return err
	}

	ctx.Logger.Info("report command invoked", "source", source, "records", len(records))

	if len(records) == 0 {
		fmt.Fprintln(stdout, "No events in the requested range.")
		return nil
	}

	origin := records[0].TS
	byType := make(map[string]int)
	for _, ev := range records {
		byType[ev.Type]++
		fmt.Fprintf(stdout, "[%s] %s\n", secToMMSS(ev.TS-origin), describeEvent(ev))
	}

	fmt.Fprintf(stdout, "\n%d events over %s\n", len(records), secToMMSS(records[len(records)-1].TS-origin))
	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		fmt.Fprintf(stdout, "  %s: %d\n", typ, byType[typ])
	}

	return nil
}

// loadReportEvents resolves the target into an ordered slice of compressed
// events. A directory target prefers its SQLite store and falls back to the
// compressed JSONL stream; a file target is read as JSONL directly.
func loadReportEvents(target string, from, to float64) ([]events.Compressed, string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, "", fmt.Errorf("stat report target: %w", err)
	}

	path := target
	if info.IsDir() {
		storePath := filepath.Join(target, "events.db")
		if _, err := os.Stat(storePath); err == nil {
			eventStore, err := store.Open(storePath)
			if err != nil {
				return nil, "", fmt.Errorf("open event store: %w", err)
			}
			defer eventStore.Close()
			records, err := eventStore.QueryRange(context.Background(), from, to)
			if err != nil {
				return nil, "", fmt.Errorf("query event store: %w", err)
			}
			return records, storePath, nil
		}
		path = filepath.Join(target, "compressed.jsonl")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open compressed stream: %w", err)
	}
	defer file.Close()

	var records []events.Compressed
	err = events.ReadCompressed(file, func(ev events.Compressed) error {
		if ev.TS >= from && ev.TS <= to {
			records = append(records, ev)
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("read compressed stream: %w", err)
	}
	return records, path, nil
}

// secToMMSS renders an offset in seconds as a minutes:seconds label.
func secToMMSS(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func describeEvent(ev events.Compressed) string {
	switch ev.Type {
	case events.TypeTypedString:
		return fmt.Sprintf("typed %q (%d chars over %.2fs)", ev.String, ev.NumChars, ev.Duration)
	case events.TypeKeyClick:
		return fmt.Sprintf("pressed %s", ev.Key)
	case events.TypeMouseClick:
		return fmt.Sprintf("clicked %s at (%.0f, %.0f)", ev.Button, ev.X, ev.Y)
	case events.TypeCondensedMove:
		return fmt.Sprintf("moved (%.0f, %.0f) -> (%.0f, %.0f) over %.2fs (%d samples)",
			ev.StartX, ev.StartY, ev.EndX, ev.EndY, ev.Duration, ev.NumMoves)
	case events.TypeCondensedScroll:
		return fmt.Sprintf("scrolled dx=%d dy=%d over %.2fs (%d steps)",
			ev.TotalDX, ev.TotalDY, ev.Duration, ev.NumScrolls)
	default:
		return fmt.Sprintf("%s/%s event", ev.Device, ev.Type)
	}
}

func float64Flag(fs *flag.FlagSet, name string, fallback float64) float64 {
	f := fs.Lookup(name)
	if f == nil {
		return fallback
	}
	value, err := strconv.ParseFloat(f.Value.String(), 64)
	if err != nil {
		return fallback
	}
	return value
}
