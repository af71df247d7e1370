// Package compress condenses a chronological stream of raw input events into
// semantically labelled records: paired key and mouse clicks, typed-string
// runs, and condensed mouse gestures. The compressor is a synchronous state
// machine driven by one Process call per event plus a final Finalize; it
// provides no internal synchronization and assumes a single caller goroutine.
package compress
