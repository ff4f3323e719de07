package pending

import (
	"testing"
	"time"

	"github.com/natlangchain/ledgercore/pkg/entry"
	"github.com/natlangchain/ledgercore/pkg/validator"
)

func validEntry(content string) entry.Entry {
	return entry.Entry{
		Content:    content,
		Author:     "alice",
		Intent:     "offer",
		Timestamp:  time.Unix(0, 0).UTC(),
		Validation: validator.Record{Decision: validator.Valid, ValidatorID: "v1"},
	}
}

func TestSubmitRejectsUnvalidated(t *testing.T) {
	p := New(10, nil)
	e := validEntry("hello")
	e.Validation.Decision = validator.NeedsClarification
	if err := p.Submit(e); err != ErrNotValidated {
		t.Fatalf("expected ErrNotValidated, got %v", err)
	}
}

func TestSubmitRejectsDuplicateWithinPool(t *testing.T) {
	p := New(10, nil)
	e := validEntry("hello")
	if err := p.Submit(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Submit(e); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

type fakeChain struct{ hashes map[string]bool }

func (f fakeChain) ContainsHash(h string) bool { return f.hashes[h] }

func TestSubmitRejectsDuplicateAgainstChain(t *testing.T) {
	e := validEntry("hello")
	h, err := e.DuplicateKey()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	p := New(10, fakeChain{hashes: map[string]bool{h.String(): true}})
	if err := p.Submit(e); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestSubmitRespectsSoftCap(t *testing.T) {
	p := New(1, nil)
	if err := p.Submit(validEntry("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Submit(validEntry("b")); err != ErrPendingFull {
		t.Fatalf("expected ErrPendingFull, got %v", err)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	p := New(10, nil)
	_ = p.Submit(validEntry("a"))
	snap := p.Snapshot()
	snap[0].Content = "mutated"
	if p.Snapshot()[0].Content != "a" {
		t.Fatalf("snapshot mutation leaked into pool")
	}
}

func TestDrainClearsPool(t *testing.T) {
	p := New(10, nil)
	_ = p.Submit(validEntry("a"))
	_ = p.Submit(validEntry("b"))
	drained := p.Drain()
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained entries, got %d", len(drained))
	}
	if p.Len() != 0 {
		t.Fatalf("expected pool empty after drain, got %d", p.Len())
	}
	if err := p.Submit(validEntry("a")); err != nil {
		t.Fatalf("resubmitting drained content should succeed, got %v", err)
	}
}

func TestReturnRestoresOrder(t *testing.T) {
	p := New(10, nil)
	_ = p.Submit(validEntry("a"))
	drained := p.Drain()
	_ = p.Submit(validEntry("b"))
	p.Return(drained)
	snap := p.Snapshot()
	if len(snap) != 2 || snap[0].Content != "a" || snap[1].Content != "b" {
		t.Fatalf("unexpected order after return: %+v", snap)
	}
}
