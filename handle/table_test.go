package handle

import (
	"sync"
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnHandleEvent(e Event) {
	o.events = append(o.events, e)
}

type disposable struct {
	disposed int
}

func (d *disposable) Dispose() { d.disposed++ }

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Register("editor")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}
	if !h.Valid() {
		t.Fatal("Registered handle should be valid")
	}

	val, ok := table.Lookup(h)
	if !ok {
		t.Fatal("Lookup failed")
	}
	if val != "editor" {
		t.Fatalf("Expected 'editor', got %v", val)
	}

	val, ok = table.Unregister(h)
	if !ok || val != "editor" {
		t.Fatalf("Unregister = %v, %v", val, ok)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Unregister")
	}
}

func TestTable_ZeroHandle(t *testing.T) {
	table := NewTable()
	if Handle(0).Valid() {
		t.Fatal("handle 0 must be invalid")
	}
	if _, ok := table.Lookup(0); ok {
		t.Fatal("Lookup(0) should fail")
	}
	if _, ok := table.Unregister(0); ok {
		t.Fatal("Unregister(0) should fail")
	}
}

func TestTable_UnregisterIdempotent(t *testing.T) {
	table := NewTable()
	d := &disposable{}
	h := table.Register(d)

	if _, ok := table.Unregister(h); !ok {
		t.Fatal("first Unregister should succeed")
	}
	if _, ok := table.Unregister(h); ok {
		t.Fatal("second Unregister should report not found")
	}
	if _, ok := table.Lookup(h); ok {
		t.Fatal("Lookup after Unregister should report not found")
	}
	if d.disposed != 1 {
		t.Fatalf("Dispose called %d times, want 1", d.disposed)
	}
}

func TestTable_StaleHandleAfterReuse(t *testing.T) {
	table := NewTable()

	old := table.Register("first")
	table.Unregister(old)
	fresh := table.Register("second")

	if old == fresh {
		t.Fatal("reused slot must produce a distinct handle")
	}
	if old.slot() != fresh.slot() {
		t.Fatalf("expected slot reuse, got %d and %d", old.slot(), fresh.slot())
	}
	if _, ok := table.Lookup(old); ok {
		t.Fatal("stale handle must not resolve to the new occupant")
	}
	if v, ok := table.Lookup(fresh); !ok || v != "second" {
		t.Fatalf("Lookup(fresh) = %v, %v", v, ok)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Register("x")
	if len(obs.events) != 1 || obs.events[0].Type != EventRegistered || obs.events[0].Handle != h {
		t.Fatalf("unexpected events %+v", obs.events)
	}

	table.Unregister(h)
	if len(obs.events) != 2 || obs.events[1].Type != EventUnregistered {
		t.Fatalf("unexpected events %+v", obs.events)
	}

	table.Unsubscribe(obs)
	table.Register("y")
	if len(obs.events) != 2 {
		t.Fatal("unsubscribed observer should not receive events")
	}
}

func TestTable_SubscribeFunc(t *testing.T) {
	table := NewTable()
	var got []EventType
	cancel := table.SubscribeFunc(func(e Event) { got = append(got, e.Type) })

	h := table.Register(1)
	table.Unregister(h)
	cancel()
	table.Register(2)

	if len(got) != 2 || got[0] != EventRegistered || got[1] != EventUnregistered {
		t.Fatalf("got %v", got)
	}
}

func TestTable_EachAndClear(t *testing.T) {
	table := NewTable()
	for i := 0; i < 5; i++ {
		table.Register(i)
	}

	count := 0
	table.Each(func(h Handle, v any) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Fatalf("Each should stop early, visited %d", count)
	}

	table.Clear()
	if table.Len() != 0 {
		t.Fatalf("Len after Clear = %d", table.Len())
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()
	d := &disposable{}
	table.Register(d)

	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if d.disposed != 1 {
		t.Fatalf("Close should dispose live values, got %d", d.disposed)
	}
	if h := table.Register("late"); h != 0 {
		t.Fatal("Register after Close should return 0")
	}
	if err := table.Close(); err != nil {
		t.Fatal("second Close should be a no-op")
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup
	seen := sync.Map{}

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h := table.Register(i)
				if _, dup := seen.LoadOrStore(h, true); dup {
					t.Errorf("handle %d issued twice while live", h)
				}
				seen.Delete(h)
				table.Unregister(h)
			}
		}()
	}
	wg.Wait()

	if table.Len() != 0 {
		t.Fatalf("Len = %d after concurrent churn", table.Len())
	}
}

func TestTyped(t *testing.T) {
	table := NewTable()
	typed := NewTyped[*disposable](table)

	d := &disposable{}
	h := typed.Register(d)
	other := table.Register("not a disposable")

	if got, ok := typed.Lookup(h); !ok || got != d {
		t.Fatalf("Lookup = %v, %v", got, ok)
	}
	if _, ok := typed.Lookup(other); ok {
		t.Fatal("Lookup of a foreign type should fail")
	}
	if _, ok := typed.Unregister(other); ok {
		t.Fatal("Unregister of a foreign type should fail")
	}
	if _, ok := table.Lookup(other); !ok {
		t.Fatal("foreign value must survive a typed Unregister attempt")
	}

	visited := 0
	typed.Each(func(Handle, *disposable) bool {
		visited++
		return true
	})
	if visited != 1 {
		t.Fatalf("Each visited %d values, want 1", visited)
	}

	if got, ok := typed.Unregister(h); !ok || got != d {
		t.Fatalf("Unregister = %v, %v", got, ok)
	}
}
