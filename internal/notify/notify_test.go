package notify

import (
	"slices"
	"testing"
)

func TestSet_EmitInOrder(t *testing.T) {
	var s Set[int]
	var got []string
	s.Add(func(v int) { got = append(got, "a") })
	s.Add(func(v int) { got = append(got, "b") })
	s.Add(func(v int) { got = append(got, "c") })

	s.Emit(1)
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("order = %v", got)
	}
}

func TestSet_Unsubscribe(t *testing.T) {
	var s Set[string]
	var got []string
	unsubA := s.Add(func(v string) { got = append(got, "a:"+v) })
	s.Add(func(v string) { got = append(got, "b:"+v) })

	unsubA()
	unsubA()
	s.Emit("x")
	if !slices.Equal(got, []string{"b:x"}) {
		t.Fatalf("got %v", got)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestSet_ChurnKeepsOnlyLiveSubscribers(t *testing.T) {
	var s Set[int]
	for i := 0; i < 1000; i++ {
		unsub := s.Add(func(int) {})
		unsub()
	}
	calls := 0
	s.Add(func(int) { calls++ })

	if n := len(s.subs); n != 1 {
		t.Fatalf("held %d subscribers", n)
	}
	s.Emit(0)
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestSet_CallbackMaySubscribe(t *testing.T) {
	var s Set[int]
	calls := 0
	s.Add(func(int) {
		calls++
		s.Add(func(int) { calls++ })
	})

	s.Emit(0)
	if calls != 1 {
		t.Fatalf("first emit calls = %d", calls)
	}
	s.Emit(0)
	if calls != 3 {
		t.Fatalf("second emit calls = %d", calls)
	}
}
