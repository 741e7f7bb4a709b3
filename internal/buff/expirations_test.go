package buff

import "testing"

type testKey int

const (
	keyPad testKey = iota
	keyHaste
	keyCount
)

func newTestExpirations() (*Flags[testKey], *Expirations[testKey]) {
	f := NewFlags[testKey](int(keyCount))
	return f, NewExpirations[testKey](f)
}

func TestInsertSetsFlagAndActive(t *testing.T) {
	f, e := newTestExpirations()
	e.Insert(keyPad, 10)
	if !f.Has(keyPad) {
		t.Fatal("flag should be set after insert")
	}
	if !e.Active(keyPad) {
		t.Fatal("should be active after insert")
	}
}

// Scenario 3 from spec §8: buff extend.
func TestExtendPushesExpirationPastOriginalDeadline(t *testing.T) {
	_, e := newTestExpirations()
	e.Insert(keyPad, 1)

	if _, ok := e.NextExpired(0); ok {
		t.Fatal("should not be expired before deadline")
	}

	e.Extend(keyPad, 5)

	if _, ok := e.NextExpired(1); ok {
		t.Fatal("extension should push past original deadline of 1")
	}

	k, ok := e.NextExpired(5)
	if !ok || k != keyPad {
		t.Fatalf("expected keyPad expired at t=5, got %v ok=%v", k, ok)
	}
}

func TestMarkRemovedInvalidatesQueueEntry(t *testing.T) {
	f, e := newTestExpirations()
	e.Insert(keyPad, 10)
	e.MarkRemoved(keyPad)

	if f.Has(keyPad) {
		t.Fatal("flag should be cleared")
	}
	if e.Active(keyPad) {
		t.Fatal("should not be active after removal")
	}
	if _, ok := e.NextExpired(100); ok {
		t.Fatal("stale queue entry must not be yielded as expired")
	}
}

// Round-trip law: insert; mark_removed; insert behaves like a single insert.
func TestReinsertAfterRemoveBehavesLikeFreshInsert(t *testing.T) {
	f, e := newTestExpirations()
	e.Insert(keyPad, 10)
	e.MarkRemoved(keyPad)
	e.Insert(keyPad, 20)

	if !f.Has(keyPad) {
		t.Fatal("flag should be set after reinsert")
	}
	if _, ok := e.NextExpired(10); ok {
		t.Fatal("stale deadline-10 entry must not fire early")
	}
	k, ok := e.NextExpired(20)
	if !ok || k != keyPad {
		t.Fatalf("expected expiry at new deadline 20, got %v ok=%v", k, ok)
	}
}

func TestUpdateExpirationsReturnsExpiredBitset(t *testing.T) {
	f, e := newTestExpirations()
	e.Insert(keyPad, 5)
	e.Insert(keyHaste, 100)

	expired := e.UpdateExpirations(10)
	if !expired.Has(keyPad) {
		t.Fatal("keyPad should have expired")
	}
	if expired.Has(keyHaste) {
		t.Fatal("keyHaste should not have expired yet")
	}
	if f.Has(keyPad) {
		t.Fatal("keyPad flag should be cleared by UpdateExpirations")
	}
	if !f.Has(keyHaste) {
		t.Fatal("keyHaste flag should remain set")
	}
}

func TestExpirationDurNeverNegative(t *testing.T) {
	_, e := newTestExpirations()
	e.Insert(keyPad, 5)
	if d := e.ExpirationDur(keyPad, 10); d != 0 {
		t.Fatalf("want 0, got %d", d)
	}
	if d := e.ExpirationDur(keyPad, 2); d != 3 {
		t.Fatalf("want 3, got %d", d)
	}
}
