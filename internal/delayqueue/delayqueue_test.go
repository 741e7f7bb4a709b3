package delayqueue

import "testing"

func TestPopOrdersByDeadlineThenInsertion(t *testing.T) {
	q := New[string]()
	q.Push("b", 10, 0)
	q.Push("a", 5, 0)
	q.Push("c", 5, 0) // same deadline as "a", pushed after -> pops after

	v, _, ok := q.Pop(100)
	if !ok || v != "a" {
		t.Fatalf("want a, got %v ok=%v", v, ok)
	}
	v, _, ok = q.Pop(100)
	if !ok || v != "c" {
		t.Fatalf("want c, got %v ok=%v", v, ok)
	}
	v, _, ok = q.Pop(100)
	if !ok || v != "b" {
		t.Fatalf("want b, got %v ok=%v", v, ok)
	}
}

func TestPopNotYetDue(t *testing.T) {
	q := New[int]()
	q.Push(1, 10, 0)
	if _, _, ok := q.Pop(9); ok {
		t.Fatal("expected not due")
	}
	if _, _, ok := q.Pop(10); !ok {
		t.Fatal("expected due at exact deadline")
	}
}

func TestDrainExpiredOrder(t *testing.T) {
	q := New[int]()
	q.Push(3, 30, 0)
	q.Push(1, 10, 0)
	q.Push(2, 20, 0)

	due := q.DrainExpired(25)
	if len(due) != 2 {
		t.Fatalf("want 2 due, got %d", len(due))
	}
	if due[0].Value != 1 || due[1].Value != 2 {
		t.Fatalf("want [1 2], got %+v", due)
	}
	if q.Len() != 1 {
		t.Fatalf("want 1 remaining, got %d", q.Len())
	}
}

func TestGenerationIsOpaqueRoundTrip(t *testing.T) {
	q := New[string]()
	q.Push("x", 1, 42)
	_, gen, ok := q.Pop(1)
	if !ok || gen != 42 {
		t.Fatalf("want gen 42, got %d ok=%v", gen, ok)
	}
}
