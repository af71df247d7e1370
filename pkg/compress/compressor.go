package compress

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ambientlog/condense/pkg/events"
)

// ErrFinalized is returned when Process or Finalize is called after the
// compressor has been finalized.
var ErrFinalized = errors.New("compressor already finalized")

// Thresholds holds the timing windows governing merge decisions.
type Thresholds struct {
	// KeyClickMax is the longest press-to-release gap still classified as a
	// key_click; slower pairs are emitted as two pass-through records.
	KeyClickMax time.Duration

	// MouseClickMax is the mouse-button equivalent of KeyClickMax.
	MouseClickMax time.Duration

	// TypingMaxInterkey is the longest gap between consecutive character key
	// presses within one typed-string run.
	TypingMaxInterkey time.Duration

	// MouseSequenceMax is the longest gap between consecutive move or scroll
	// samples within one condensed gesture.
	MouseSequenceMax time.Duration
}

// DefaultThresholds returns the canonical timing windows.
func DefaultThresholds() Thresholds {
	return Thresholds{
		KeyClickMax:       700 * time.Millisecond,
		MouseClickMax:     700 * time.Millisecond,
		TypingMaxInterkey: time.Second,
		MouseSequenceMax:  500 * time.Millisecond,
	}
}

func (t Thresholds) validate() error {
	if t.KeyClickMax <= 0 {
		return errors.New("key click threshold must be positive")
	}
	if t.MouseClickMax <= 0 {
		return errors.New("mouse click threshold must be positive")
	}
	if t.TypingMaxInterkey <= 0 {
		return errors.New("typing inter-key threshold must be positive")
	}
	if t.MouseSequenceMax <= 0 {
		return errors.New("mouse sequence threshold must be positive")
	}
	return nil
}

// Sink receives compressed events in emission order.
type Sink interface {
	Emit(events.Compressed) error
}

// SinkFunc adapts a function literal to the Sink interface.
type SinkFunc func(events.Compressed) error

// Emit calls the underlying function.
func (f SinkFunc) Emit(ev events.Compressed) error {
	return f(ev)
}

// Options controls compressor behaviour.
type Options struct {
	Thresholds Thresholds
	Redactor   events.Redactor
	Sink       Sink
}

// typedChar is one buffered character key-click awaiting typed-string merge.
type typedChar struct {
	char     string
	ts       float64
	duration float64
}

// Compressor converts a raw input stream into compressed records. Feed events
// through Process in non-decreasing timestamp order, then call Finalize once.
//
// Events whose timestamps run backwards are tolerated rather than rejected:
// a negative inter-event gap behaves as a zero gap, so the sample joins the
// current run, and computed durations are clamped to zero.
type Compressor struct {
	thresholds Thresholds
	redactor   events.Redactor
	sink       Sink

	pending pendingTable

	typed       []typedChar
	lastTypedTS float64

	moves      []events.Raw
	lastMoveTS float64

	scrolls      []events.Raw
	lastScrollTS float64

	finalized bool
}

// New validates options and constructs a compressor.
func New(opts Options) (*Compressor, error) {
	if opts.Sink == nil {
		return nil, errors.New("sink must be provided")
	}
	if err := opts.Thresholds.validate(); err != nil {
		return nil, err
	}
	return &Compressor{
		thresholds: opts.Thresholds,
		redactor:   opts.Redactor,
		sink:       opts.Sink,
		pending:    newPendingTable(),
	}, nil
}

// Process consumes one raw event and emits zero or more compressed events to
// the sink. The only errors it returns are sink failures and use after
// Finalize; malformed streams degrade into pass-through emissions instead.
func (c *Compressor) Process(ev events.Raw) error {
	if c.finalized {
		return ErrFinalized
	}

	// A buffer survives only while the incoming event continues its run.
	// Anything else terminates the run immediately, before classification,
	// so the merged record precedes the event that interrupted it.
	if ev.Device != events.DeviceKeyboard || !events.IsCharKey(ev.Key) {
		if err := c.flushTypedString(); err != nil {
			return err
		}
	}
	if ev.Device != events.DeviceMouse || ev.Type != events.TypeMove {
		if err := c.flushCondensedMove(); err != nil {
			return err
		}
	}
	if ev.Device != events.DeviceMouse || ev.Type != events.TypeScroll {
		if err := c.flushCondensedScroll(); err != nil {
			return err
		}
	}

	if err := c.flushStale(ev.TS); err != nil {
		return err
	}

	switch ev.Device {
	case events.DeviceKeyboard:
		return c.processKeyboard(ev)
	case events.DeviceMouse:
		return c.processMouse(ev)
	default:
		return c.emit(events.Passthrough(ev))
	}
}

// Finalize flushes all buffers and emits every still-pending press as a
// pass-through record, in the order the presses were observed. The output
// stream is complete once Finalize returns.
func (c *Compressor) Finalize() error {
	if c.finalized {
		return ErrFinalized
	}
	c.finalized = true

	if err := c.flushTypedString(); err != nil {
		return err
	}
	if err := c.flushCondensedMove(); err != nil {
		return err
	}
	if err := c.flushCondensedScroll(); err != nil {
		return err
	}
	for _, press := range c.pending.drain() {
		if err := c.emit(events.Passthrough(press)); err != nil {
			return err
		}
	}
	return nil
}

// flushStale flushes any buffer whose most recent element is further from ts
// than its threshold allows.
func (c *Compressor) flushStale(ts float64) error {
	if len(c.typed) > 0 && ts-c.lastTypedTS > c.thresholds.TypingMaxInterkey.Seconds() {
		if err := c.flushTypedString(); err != nil {
			return err
		}
	}
	if len(c.moves) > 0 && ts-c.lastMoveTS > c.thresholds.MouseSequenceMax.Seconds() {
		if err := c.flushCondensedMove(); err != nil {
			return err
		}
	}
	if len(c.scrolls) > 0 && ts-c.lastScrollTS > c.thresholds.MouseSequenceMax.Seconds() {
		if err := c.flushCondensedScroll(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compressor) processKeyboard(ev events.Raw) error {
	id := pendingKeyID(ev.Key)

	switch ev.Type {
	case events.TypePress:
		// A second press without a release force-closes the first.
		if stale, ok := c.pending.take(id); ok {
			if err := c.emit(events.Passthrough(stale)); err != nil {
				return err
			}
		}
		c.pending.put(id, ev)
		return nil

	case events.TypeRelease:
		press, ok := c.pending.take(id)
		if !ok {
			return c.emit(events.Passthrough(ev))
		}

		duration := round5(clampNonNegative(ev.TS - press.TS))
		if duration > c.thresholds.KeyClickMax.Seconds() {
			if err := c.emit(events.Passthrough(press)); err != nil {
				return err
			}
			return c.emit(events.Passthrough(ev))
		}

		if !events.IsCharKey(ev.Key) {
			if err := c.flushTypedString(); err != nil {
				return err
			}
			return c.emit(events.Compressed{
				TS:       press.TS,
				Device:   events.DeviceKeyboard,
				Type:     events.TypeKeyClick,
				Key:      ev.Key,
				Duration: duration,
			})
		}

		// The run-membership check uses the press timestamp, not the
		// release that arrived just now.
		if len(c.typed) > 0 && press.TS-c.lastTypedTS > c.thresholds.TypingMaxInterkey.Seconds() {
			if err := c.flushTypedString(); err != nil {
				return err
			}
		}
		c.typed = append(c.typed, typedChar{
			char:     events.CharForKey(ev.Key),
			ts:       press.TS,
			duration: duration,
		})
		c.lastTypedTS = press.TS
		return nil

	default:
		return c.emit(events.Passthrough(ev))
	}
}

func (c *Compressor) processMouse(ev events.Raw) error {
	switch ev.Type {
	case events.TypeClick:
		return c.processMouseClick(ev)

	case events.TypeMove:
		if len(c.moves) > 0 && ev.TS-c.lastMoveTS > c.thresholds.MouseSequenceMax.Seconds() {
			if err := c.flushCondensedMove(); err != nil {
				return err
			}
		}
		c.moves = append(c.moves, ev)
		c.lastMoveTS = ev.TS
		return nil

	case events.TypeScroll:
		if len(c.scrolls) > 0 && ev.TS-c.lastScrollTS > c.thresholds.MouseSequenceMax.Seconds() {
			if err := c.flushCondensedScroll(); err != nil {
				return err
			}
		}
		c.scrolls = append(c.scrolls, ev)
		c.lastScrollTS = ev.TS
		return nil

	default:
		return c.emit(events.Passthrough(ev))
	}
}

func (c *Compressor) processMouseClick(ev events.Raw) error {
	id := pendingMouseID(ev.Button, ev.X, ev.Y)

	if ev.Pressed != nil && *ev.Pressed {
		if stale, ok := c.pending.take(id); ok {
			if err := c.emit(events.Passthrough(stale)); err != nil {
				return err
			}
		}
		c.pending.put(id, ev)
		return nil
	}

	press, ok := c.pending.take(id)
	if !ok {
		return c.emit(events.Passthrough(ev))
	}

	duration := round5(clampNonNegative(ev.TS - press.TS))
	if duration > c.thresholds.MouseClickMax.Seconds() {
		if err := c.emit(events.Passthrough(press)); err != nil {
			return err
		}
		return c.emit(events.Passthrough(ev))
	}

	// Release coordinates win; the click is assumed stationary.
	return c.emit(events.Compressed{
		TS:       press.TS,
		Device:   events.DeviceMouse,
		Type:     events.TypeMouseClick,
		X:        ev.X,
		Y:        ev.Y,
		Button:   ev.Button,
		Duration: duration,
	})
}

// flushTypedString merges the buffered character run into one typed_string
// record. The duration spans from the first press to the end of the last
// key's release. No-op when the buffer is empty.
func (c *Compressor) flushTypedString() error {
	if len(c.typed) == 0 {
		return nil
	}

	first := c.typed[0]
	last := c.typed[len(c.typed)-1]

	combined := make([]byte, 0, len(c.typed))
	for _, ch := range c.typed {
		combined = append(combined, ch.char...)
	}
	end := last.ts + last.duration

	err := c.emit(events.Compressed{
		TS:       first.ts,
		Device:   events.DeviceKeyboard,
		Type:     events.TypeTypedString,
		String:   string(combined),
		Duration: round5(clampNonNegative(end - first.ts)),
		NumChars: len(c.typed),
	})
	c.typed = c.typed[:0]
	c.lastTypedTS = 0
	return err
}

// flushCondensedMove collapses the buffered move run into one record holding
// the run's endpoints and sample count.
func (c *Compressor) flushCondensedMove() error {
	if len(c.moves) == 0 {
		return nil
	}

	first := c.moves[0]
	last := c.moves[len(c.moves)-1]

	err := c.emit(events.Compressed{
		TS:       first.TS,
		Device:   events.DeviceMouse,
		Type:     events.TypeCondensedMove,
		StartX:   first.X,
		StartY:   first.Y,
		EndX:     last.X,
		EndY:     last.Y,
		Duration: round5(clampNonNegative(last.TS - first.TS)),
		NumMoves: len(c.moves),
	})
	c.moves = c.moves[:0]
	c.lastMoveTS = 0
	return err
}

// flushCondensedScroll collapses the buffered scroll run into one record with
// the summed deltas.
func (c *Compressor) flushCondensedScroll() error {
	if len(c.scrolls) == 0 {
		return nil
	}

	first := c.scrolls[0]
	last := c.scrolls[len(c.scrolls)-1]

	totalDX, totalDY := 0, 0
	for _, s := range c.scrolls {
		totalDX += s.DX
		totalDY += s.DY
	}

	err := c.emit(events.Compressed{
		TS:         first.TS,
		Device:     events.DeviceMouse,
		Type:       events.TypeCondensedScroll,
		TotalDX:    totalDX,
		TotalDY:    totalDY,
		Duration:   round5(clampNonNegative(last.TS - first.TS)),
		NumScrolls: len(c.scrolls),
	})
	c.scrolls = c.scrolls[:0]
	c.lastScrollTS = 0
	return err
}

func (c *Compressor) emit(ev events.Compressed) error {
	if err := c.sink.Emit(c.redactor.Apply(ev)); err != nil {
		return fmt.Errorf("emit %s event: %w", ev.Type, err)
	}
	return nil
}

func pendingKeyID(key string) string {
	return "keyboard_" + key
}

// pendingMouseID builds a composite press identity from the button and the
// integer-rounded press position; clicks are assumed stationary between press
// and release.
func pendingMouseID(button string, x, y float64) string {
	return fmt.Sprintf("mouse_%s_%d_%d", button, int(math.Round(x)), int(math.Round(y)))
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
