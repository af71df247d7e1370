package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ambientlog/condense/pkg/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertBatchAndQueryRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch := []events.Compressed{
		{TS: 1.0, Device: events.DeviceKeyboard, Type: events.TypeTypedString, String: "hello", NumChars: 5, Duration: 0.4},
		{TS: 2.0, Device: events.DeviceMouse, Type: events.TypeMouseClick, Button: "left", X: 10, Y: 20, Duration: 0.1},
		{TS: 5.0, Device: events.DeviceMouse, Type: events.TypeCondensedScroll, TotalDY: -12, NumScrolls: 3, Duration: 0.3},
	}
	if err := s.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	got, err := s.QueryRange(ctx, 0.5, 3.0)
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events in window, got %d", len(got))
	}
	if got[0].String != "hello" || got[0].NumChars != 5 {
		t.Fatalf("expected payload round-trip, got %+v", got[0])
	}
	if got[1].Type != events.TypeMouseClick || got[1].Button != "left" {
		t.Fatalf("expected mouse_click second, got %+v", got[1])
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 stored events, got %d", count)
	}
}

func TestCountByType(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch := []events.Compressed{
		{TS: 1, Device: events.DeviceKeyboard, Type: events.TypeKeyClick, Key: "Key.enter"},
		{TS: 2, Device: events.DeviceKeyboard, Type: events.TypeKeyClick, Key: "Key.esc"},
		{TS: 3, Device: events.DeviceMouse, Type: events.TypeCondensedMove, NumMoves: 4},
	}
	if err := s.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	counts, err := s.CountByType(ctx)
	if err != nil {
		t.Fatalf("count by type: %v", err)
	}
	if counts[events.TypeKeyClick] != 2 || counts[events.TypeCondensedMove] != 1 {
		t.Fatalf("unexpected type counts: %+v", counts)
	}
}

func TestBatchSinkFlushesOnLimitAndExplicitly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sink := NewBatchSink(ctx, s, 2)
	evs := []events.Compressed{
		{TS: 1, Device: events.DeviceKeyboard, Type: events.TypeKeyClick, Key: "a"},
		{TS: 2, Device: events.DeviceKeyboard, Type: events.TypeKeyClick, Key: "b"},
		{TS: 3, Device: events.DeviceKeyboard, Type: events.TypeKeyClick, Key: "c"},
	}
	for _, ev := range evs {
		if err := sink.Emit(ev); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected only the full batch persisted, got %d", count)
	}

	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	count, err = s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected all events persisted after flush, got %d", count)
	}
}

func TestEmptyBatchIsNoOp(t *testing.T) {
	s := openTestStore(t)
	if err := s.InsertBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
}
