package state

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

func TestThreadRowsRoundTrip(t *testing.T) {
	t.Parallel()

	th := NewThread("t-1", testNow)
	th.Identify(103, testNow)
	th.Recommended = []string{"iPhone 16", "Galaxy S24"}
	th.SelectedModel = "iPhone 16"
	th.Append(
		contractx.Turn{ID: "a", Speaker: contractx.SpeakerUser, Content: "103", Timestamp: testNow},
		contractx.Turn{ID: "b", Speaker: contractx.SpeakerTool, ToolName: contractx.ToolGetCustomer, Content: "found", Timestamp: testNow.Add(time.Second)},
	)

	row, turns := rowsFromThread(th)
	if row.Phase != string(PhaseAwaitingID) || len(turns) != 2 {
		t.Fatalf("unexpected rows: %+v %d", row, len(turns))
	}
	if turns[1].Seq != 1 || turns[1].ToolName != contractx.ToolGetCustomer {
		t.Fatalf("unexpected turn row: %+v", turns[1])
	}

	got := threadFromRows(row, turns)
	if got.ThreadID != "t-1" || *got.CustomerID != 103 || got.SelectedModel != "iPhone 16" {
		t.Fatalf("unexpected thread: %+v", got)
	}
	if len(got.Turns) != 2 || got.Turns[1].Speaker != contractx.SpeakerTool {
		t.Fatalf("unexpected turns: %+v", got.Turns)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestNewPostgresStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(context.Background(), PostgresConfig{}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

// Runs only when STORE_TEST_POSTGRES_DSN points at a disposable database.
func TestPostgresStoreIntegration(t *testing.T) {
	dsn := os.Getenv("STORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STORE_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, PostgresConfig{DSN: dsn, DialTimeout: 5 * time.Second, AutoMigrate: true})
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	id := "it-" + uuid.NewString()
	t.Cleanup(func() { _ = store.Delete(ctx, id) })

	if _, err := store.Load(ctx, id); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("Load() error = %v, want ErrThreadNotFound", err)
	}

	th := NewThread(id, testNow)
	th.Append(contractx.Turn{Speaker: contractx.SpeakerAssistant, Content: "hello", Timestamp: testNow})
	if err := store.Save(ctx, th); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	th.Identify(101, testNow)
	if err := th.Transition(PhaseAwaitingPreference, testNow); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	th.Append(contractx.Turn{Speaker: contractx.SpeakerUser, Content: "101", Timestamp: testNow.Add(time.Second)})
	if err := store.Save(ctx, th); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Phase != PhaseAwaitingPreference || len(got.Turns) != 2 || got.CustomerID == nil {
		t.Fatalf("unexpected thread: %+v", got)
	}

	short := got.Clone()
	short.Turns = short.Turns[:1]
	if err := store.Save(ctx, short); !errors.Is(err, ErrTurnHistoryShort) {
		t.Fatalf("Save(short) error = %v, want ErrTurnHistoryShort", err)
	}
}
