// Package session manages the on-disk layout and durable manifest of one
// compression session: where the compressed stream, activity summary, event
// store, and session log live, and how the run went.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion captures the manifest version for compatibility checks.
const SchemaVersion = 1

// Layout represents the absolute filesystem locations for a session.
type Layout struct {
	Root           string
	ManifestPath   string
	SessionLogPath string
	CompressedPath string
	SummaryPath    string
	StorePath      string
}

// Paths holds the relative locations stored in the manifest for portability.
type Paths struct {
	Root       string `json:"root"`
	Manifest   string `json:"manifest"`
	SessionLog string `json:"session_log"`
	Compressed string `json:"compressed"`
	Summary    string `json:"summary"`
	Store      string `json:"store"`
}

// Settings records the compression knobs active for the session.
type Settings struct {
	KeyClickMaxMillis       int  `json:"key_click_max_millis"`
	MouseClickMaxMillis     int  `json:"mouse_click_max_millis"`
	TypingMaxInterkeyMillis int  `json:"typing_max_interkey_millis"`
	MouseSequenceMaxMillis  int  `json:"mouse_sequence_max_millis"`
	StoreEnabled            bool `json:"store_enabled"`
	RedactEmails            bool `json:"redact_emails"`
}

// Status summarises the lifecycle and outcome of a session.
type Status struct {
	State            string     `json:"state"`
	Summary          string     `json:"summary,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	RawEvents        int        `json:"raw_events,omitempty"`
	CompressedEvents int        `json:"compressed_events,omitempty"`
}

// Manifest is the durable metadata describing a compression session.
type Manifest struct {
	SchemaVersion int       `json:"schema_version"`
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	Hostname      string    `json:"hostname"`
	AppVersion    string    `json:"app_version"`
	ConfigSource  string    `json:"config_source"`
	InputPath     string    `json:"input_path"`
	Settings      Settings  `json:"settings"`
	Paths         Paths     `json:"paths"`
	Status        Status    `json:"status"`
}

// Options captures the knobs for creating a new manifest.
type Options struct {
	SessionID    string
	CreatedAt    time.Time
	Hostname     string
	AppVersion   string
	ConfigSource string
	InputPath    string
	Settings     Settings
	Layout       Layout
}

// New constructs a manifest in the pending state.
func New(opts Options) Manifest {
	return Manifest{
		SchemaVersion: SchemaVersion,
		SessionID:     opts.SessionID,
		CreatedAt:     opts.CreatedAt.UTC(),
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  opts.ConfigSource,
		InputPath:     opts.InputPath,
		Settings:      opts.Settings,
		Paths:         opts.Layout.RelativePaths(),
		Status:        Status{State: "pending"},
	}
}

// NewID derives a session identifier that sorts by start time while staying
// collision-free across hosts.
func NewID(now time.Time) string {
	return fmt.Sprintf("%s_%s", now.UTC().Format("20060102_150405"), uuid.NewString()[:8])
}

// BuildLayout creates an absolute filesystem layout for a session.
func BuildLayout(sessionsDir, sessionID string) Layout {
	root := filepath.Join(sessionsDir, sessionID)
	return Layout{
		Root:           root,
		ManifestPath:   filepath.Join(root, "manifest.json"),
		SessionLogPath: filepath.Join(root, "session.log"),
		CompressedPath: filepath.Join(root, "compressed.jsonl"),
		SummaryPath:    filepath.Join(root, "summary.json"),
		StorePath:      filepath.Join(root, "events.db"),
	}
}

// RelativePaths exposes the manifest-friendly relative paths for the layout.
func (l Layout) RelativePaths() Paths {
	return Paths{
		Root:       ".",
		Manifest:   filepath.Base(l.ManifestPath),
		SessionLog: filepath.Base(l.SessionLogPath),
		Compressed: filepath.Base(l.CompressedPath),
		Summary:    filepath.Base(l.SummaryPath),
		Store:      filepath.Base(l.StorePath),
	}
}

// EnsureFilesystem prepares the directory tree for a session layout.
func EnsureFilesystem(layout Layout) error {
	if strings.TrimSpace(layout.Root) == "" {
		return errors.New("session root must not be empty")
	}
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return fmt.Errorf("create session root: %w", err)
	}

	file, err := os.OpenFile(layout.SessionLogPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("initialise session log: %w", err)
	}
	defer file.Close()

	return nil
}

// Save writes the manifest JSON to disk with indentation for readability.
func Save(man Manifest, path string) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest JSON file from disk.
func Load(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("decode manifest: %w", err)
	}
	return man, nil
}
