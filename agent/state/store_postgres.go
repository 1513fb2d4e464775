package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

var _ Store = (*PostgresStore)(nil)

type PostgresConfig struct {
	DSN         string        `envconfig:"DSN" split_words:"true" required:"true"`
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	AutoMigrate bool          `envconfig:"AUTO_MIGRATE" split_words:"true" default:"true"`
}

type threadRow struct {
	bun.BaseModel `bun:"table:conversation_threads,alias:ct"`

	ThreadID         string    `bun:"thread_id,pk"`
	Phase            string    `bun:"phase,notnull"`
	Cycle            int       `bun:"cycle,notnull,default:0"`
	CustomerID       *int      `bun:"customer_id"`
	RemindedForID    bool      `bun:"reminded_for_id,notnull,default:false"`
	Recommended      []string  `bun:"recommended,type:jsonb"`
	SelectedModel    string    `bun:"selected_model"`
	CrossSellOutcome string    `bun:"cross_sell_outcome"`
	LastRequestID    string    `bun:"last_request_id"`
	LastReply        string    `bun:"last_reply"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
	UpdatedAt        time.Time `bun:"updated_at,notnull"`
}

type turnRow struct {
	bun.BaseModel `bun:"table:conversation_turns,alias:tu"`

	ThreadID  string    `bun:"thread_id,pk"`
	Seq       int       `bun:"seq,pk"`
	TurnID    string    `bun:"turn_id,notnull"`
	Speaker   string    `bun:"speaker,notnull"`
	Content   string    `bun:"content,notnull"`
	ToolName  string    `bun:"tool_name,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// PostgresStore keeps thread fields in one row and turns in an append-only table.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	store := NewPostgresStoreFromDB(db)
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store, nil
}

func NewPostgresStoreFromDB(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*threadRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create conversation_threads: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*turnRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create conversation_turns: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Load(ctx context.Context, threadID string) (*ConversationThread, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThread
	}

	var row threadRow
	err := s.db.NewSelect().Model(&row).Where("thread_id = ?", threadID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select thread: %w", err)
	}

	var turns []turnRow
	if err := s.db.NewSelect().Model(&turns).Where("thread_id = ?", threadID).Order("seq ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select turns: %w", err)
	}

	t := threadFromRows(row, turns)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thread loaded from store: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Save(ctx context.Context, t *ConversationThread) error {
	if t == nil {
		return ErrNilThread
	}
	if strings.TrimSpace(t.ThreadID) == "" {
		return ErrInvalidThread
	}

	row, turns := rowsFromThread(t)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		stored, err := tx.NewSelect().Model((*turnRow)(nil)).Where("thread_id = ?", t.ThreadID).Count(ctx)
		if err != nil {
			return fmt.Errorf("count turns: %w", err)
		}
		if stored > len(turns) {
			return fmt.Errorf("%w: stored=%d saving=%d", ErrTurnHistoryShort, stored, len(turns))
		}

		_, err = tx.NewInsert().Model(&row).
			On("CONFLICT (thread_id) DO UPDATE").
			Set("phase = EXCLUDED.phase").
			Set("cycle = EXCLUDED.cycle").
			Set("customer_id = EXCLUDED.customer_id").
			Set("reminded_for_id = EXCLUDED.reminded_for_id").
			Set("recommended = EXCLUDED.recommended").
			Set("selected_model = EXCLUDED.selected_model").
			Set("cross_sell_outcome = EXCLUDED.cross_sell_outcome").
			Set("last_request_id = EXCLUDED.last_request_id").
			Set("last_reply = EXCLUDED.last_reply").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert thread: %w", err)
		}

		fresh := turns[stored:]
		if len(fresh) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&fresh).Exec(ctx); err != nil {
			return fmt.Errorf("insert turns: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*turnRow)(nil)).Where("thread_id = ?", threadID).Exec(ctx); err != nil {
			return fmt.Errorf("delete turns: %w", err)
		}
		if _, err := tx.NewDelete().Model((*threadRow)(nil)).Where("thread_id = ?", threadID).Exec(ctx); err != nil {
			return fmt.Errorf("delete thread: %w", err)
		}
		return nil
	})
}

func rowsFromThread(t *ConversationThread) (threadRow, []turnRow) {
	updated := t.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = updated
	}

	row := threadRow{
		ThreadID:         t.ThreadID,
		Phase:            string(t.Phase),
		Cycle:            t.Cycle,
		CustomerID:       t.CustomerID,
		RemindedForID:    t.RemindedForID,
		Recommended:      t.Recommended,
		SelectedModel:    t.SelectedModel,
		CrossSellOutcome: t.CrossSellOutcome,
		LastRequestID:    t.LastRequestID,
		LastReply:        t.LastReply,
		CreatedAt:        created.UTC(),
		UpdatedAt:        updated.UTC(),
	}

	turns := make([]turnRow, 0, len(t.Turns))
	for i, turn := range t.Turns {
		turns = append(turns, turnRow{
			ThreadID:  t.ThreadID,
			Seq:       i,
			TurnID:    turn.ID,
			Speaker:   string(turn.Speaker),
			Content:   turn.Content,
			ToolName:  turn.ToolName,
			CreatedAt: turn.Timestamp.UTC(),
		})
	}
	return row, turns
}

func threadFromRows(row threadRow, turns []turnRow) *ConversationThread {
	t := &ConversationThread{
		ThreadID:         row.ThreadID,
		Phase:            Phase(row.Phase),
		Cycle:            row.Cycle,
		CustomerID:       row.CustomerID,
		RemindedForID:    row.RemindedForID,
		Recommended:      row.Recommended,
		SelectedModel:    row.SelectedModel,
		CrossSellOutcome: row.CrossSellOutcome,
		LastRequestID:    row.LastRequestID,
		LastReply:        row.LastReply,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
	for _, tr := range turns {
		t.Turns = append(t.Turns, contractx.Turn{
			ID:        tr.TurnID,
			Speaker:   contractx.Speaker(tr.Speaker),
			Content:   tr.Content,
			ToolName:  tr.ToolName,
			Timestamp: tr.CreatedAt.UTC(),
		})
	}
	return t
}
