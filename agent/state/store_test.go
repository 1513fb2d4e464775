package state

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	th := NewThread("t-1", testNow)
	th.Identify(101, testNow)
	th.Append(contractx.Turn{Speaker: contractx.SpeakerUser, Content: "my id is 101", Timestamp: testNow})
	if err := th.Transition(PhaseAwaitingPreference, testNow); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if err := store.Save(ctx, th); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "t-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Phase != PhaseAwaitingPreference || got.CustomerID == nil || *got.CustomerID != 101 {
		t.Fatalf("unexpected thread: %+v", got)
	}
	if len(got.Turns) != 1 || got.Turns[0].Content != "my id is 101" {
		t.Fatalf("unexpected turns: %+v", got.Turns)
	}

	got.Phase = PhaseCheckout
	again, _ := store.Load(ctx, "t-1")
	if again.Phase != PhaseAwaitingPreference {
		t.Fatal("Load must not share state with callers")
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	t.Parallel()

	_, err := NewMemoryStore().Load(context.Background(), "nope")
	if !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("Load() error = %v, want ErrThreadNotFound", err)
	}
}

func TestMemoryStoreRejectsShrinkingHistory(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	th := NewThread("t-1", testNow)
	th.Append(
		contractx.Turn{Speaker: contractx.SpeakerUser, Content: "a", Timestamp: testNow},
		contractx.Turn{Speaker: contractx.SpeakerAssistant, Content: "b", Timestamp: testNow},
	)
	if err := store.Save(ctx, th); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	th.Turns = th.Turns[:1]
	if err := store.Save(ctx, th); !errors.Is(err, ErrTurnHistoryShort) {
		t.Fatalf("Save() error = %v, want ErrTurnHistoryShort", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Save(ctx, NewThread("t-1", testNow)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "t-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "t-1"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("Load() after delete error = %v", err)
	}
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.Save(context.Background(), &ConversationThread{}); !errors.Is(err, ErrInvalidThread) {
		t.Fatalf("Save() error = %v, want ErrInvalidThread", err)
	}
	if err := store.Save(context.Background(), nil); !errors.Is(err, ErrNilThread) {
		t.Fatalf("Save(nil) error = %v, want ErrNilThread", err)
	}
}
