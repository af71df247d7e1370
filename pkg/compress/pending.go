package compress

import "github.com/ambientlog/condense/pkg/events"

// pendingTable tracks open presses awaiting their release, preserving
// observation order so a final drain is deterministic.
type pendingTable struct {
	byID  map[string]events.Raw
	order []string
}

func newPendingTable() pendingTable {
	return pendingTable{byID: make(map[string]events.Raw)}
}

func (t *pendingTable) put(id string, ev events.Raw) {
	if _, ok := t.byID[id]; !ok {
		t.order = append(t.order, id)
	}
	t.byID[id] = ev
}

// take removes and returns the pending press for id, if any.
func (t *pendingTable) take(id string) (events.Raw, bool) {
	ev, ok := t.byID[id]
	if !ok {
		return events.Raw{}, false
	}
	delete(t.byID, id)
	for i, candidate := range t.order {
		if candidate == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return ev, true
}

// drain removes and returns every pending press in observation order.
func (t *pendingTable) drain() []events.Raw {
	if len(t.order) == 0 {
		return nil
	}
	out := make([]events.Raw, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
		delete(t.byID, id)
	}
	t.order = t.order[:0]
	return out
}
