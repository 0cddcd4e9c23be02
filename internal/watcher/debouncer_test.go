package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced events")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(30*time.Millisecond, 4)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "/r/a.txt", Operation: OpCreate})

	// Then: it passes through after the window
	events := receive(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, "/r/a.txt", events[0].Path)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation // nil means the events cancel out
	}{
		{"create then modify", []Operation{OpCreate, OpModify, OpModify}, []Operation{OpCreate}},
		{"modify then delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
		{"delete then create", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
		{"repeated modify", []Operation{OpModify, OpModify, OpModify}, []Operation{OpModify}},
		{"create then delete", []Operation{OpCreate, OpDelete}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(30*time.Millisecond, 4)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "/r/a.txt", Operation: op})
			}
			// A second path proves a batch was flushed even when the
			// first one cancels out.
			d.Add(FileEvent{Path: "/r/z.txt", Operation: OpModify})

			events := receive(t, d)
			var got []Operation
			for _, ev := range events {
				if ev.Path == "/r/a.txt" {
					got = append(got, ev.Operation)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDebouncer_BatchIsSortedByPath(t *testing.T) {
	d := NewDebouncer(30*time.Millisecond, 4)
	defer d.Stop()

	for _, p := range []string{"/r/c", "/r/a", "/r/b"} {
		d.Add(FileEvent{Path: p, Operation: OpModify})
	}

	events := receive(t, d)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"/r/a", "/r/b", "/r/c"}, []string{events[0].Path, events[1].Path, events[2].Path})
}

func TestDebouncer_SlowReaderKeepsEvents(t *testing.T) {
	// Given: an output buffer of one batch that is already full
	d := NewDebouncer(20*time.Millisecond, 1)
	defer d.Stop()
	d.Add(FileEvent{Path: "/r/first", Operation: OpModify})
	time.Sleep(80 * time.Millisecond)
	d.Add(FileEvent{Path: "/r/second", Operation: OpModify})
	time.Sleep(80 * time.Millisecond)

	// When: the reader catches up
	first := receive(t, d)
	second := receive(t, d)

	// Then: nothing was dropped
	assert.Equal(t, "/r/first", first[0].Path)
	assert.Equal(t, "/r/second", second[0].Path)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour, 1)
	d.Add(FileEvent{Path: "/r/a", Operation: OpCreate})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "/r/b", Operation: OpCreate})

	_, ok := <-d.Output()
	assert.False(t, ok)
}
