package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxLineBytes bounds a single JSONL record; a typed-string record is at most
// a few kilobytes, so this leaves generous headroom.
const maxLineBytes = 1 << 20

// Writer emits compressed events as newline-delimited JSON in emission order.
type Writer struct {
	enc   *json.Encoder
	count int
}

// NewWriter wraps an append-only sink with a JSONL encoder.
func NewWriter(w io.Writer) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc}
}

// Emit writes one compressed event as a single JSON line.
func (w *Writer) Emit(ev Compressed) error {
	if err := w.enc.Encode(ev); err != nil {
		return fmt.Errorf("write compressed event: %w", err)
	}
	w.count++
	return nil
}

// Count reports how many events have been written.
func (w *Writer) Count() int {
	return w.count
}

// ReadRaw streams raw events from a newline-delimited JSON source, invoking
// fn once per record. Blank lines are skipped. Decoding stops at the first
// malformed line or the first error returned by fn.
func ReadRaw(r io.Reader, fn func(Raw) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Raw
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return fmt.Errorf("line %d: decode raw event: %w", lineNo, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read raw events: %w", err)
	}
	return nil
}

// ReadCompressed streams compressed events from a newline-delimited JSON
// source, mirroring ReadRaw.
func ReadCompressed(r io.Reader, fn func(Compressed) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Compressed
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return fmt.Errorf("line %d: decode compressed event: %w", lineNo, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read compressed events: %w", err)
	}
	return nil
}
