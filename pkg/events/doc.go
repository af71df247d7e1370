// Package events defines the raw and compressed interaction event records
// exchanged with capture collaborators, their newline-delimited JSON wire
// format, and the redaction pipeline applied to typed text before emission.
package events
