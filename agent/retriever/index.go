package retriever

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	_ "modernc.org/sqlite"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

const indexSchema = `
CREATE TABLE handsets (
	position INTEGER PRIMARY KEY,
	content TEXT NOT NULL,
	launch_date TEXT NOT NULL,
	embedding BLOB NOT NULL
);
CREATE TABLE index_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// IndexEntry is one embedded corpus row.
type IndexEntry struct {
	Document catalogx.HandsetDocument
	Vector   []float32
}

type IndexMeta struct {
	Embedder  string
	Dimension int
	BuiltAt   time.Time
}

// BuildIndex embeds every document and writes them to a fresh sqlite file at path.
func BuildIndex(ctx context.Context, path string, docs []catalogx.HandsetDocument, embedder Embedder) (IndexMeta, error) {
	if len(docs) == 0 {
		return IndexMeta{}, errors.New("build index: corpus is empty")
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content()
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return IndexMeta{}, fmt.Errorf("build index: embed corpus: %w", err)
	}
	if len(vectors) != len(docs) {
		return IndexMeta{}, fmt.Errorf("build index: got %d vectors for %d documents", len(vectors), len(docs))
	}

	entries := make([]IndexEntry, len(docs))
	for i := range docs {
		entries[i] = IndexEntry{Document: docs[i], Vector: vectors[i]}
	}
	meta := IndexMeta{
		Embedder:  embedder.Name(),
		Dimension: len(vectors[0]),
		BuiltAt:   time.Now().UTC(),
	}
	if err := WriteIndex(ctx, path, entries, meta); err != nil {
		return IndexMeta{}, err
	}
	return meta, nil
}

// WriteIndex replaces any existing file at path.
func WriteIndex(ctx context.Context, path string, entries []IndexEntry, meta IndexMeta) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}

	if err := writeEntries(ctx, db, entries, meta); err != nil {
		db.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("install index file: %w", err)
	}
	return nil
}

func writeEntries(ctx context.Context, db *sql.DB, entries []IndexEntry, meta IndexMeta) error {
	if _, err := db.ExecContext(ctx, indexSchema); err != nil {
		return fmt.Errorf("create index schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO handsets (position, content, launch_date, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			e.Document.Position,
			e.Document.Content(),
			e.Document.LaunchDate.UTC().Format(catalogx.DateLayout),
			encodeVector(e.Vector),
		)
		if err != nil {
			return fmt.Errorf("insert handset %d: %w", e.Document.Position, err)
		}
	}

	metaRows := map[string]string{
		"embedder":  meta.Embedder,
		"dimension": fmt.Sprint(meta.Dimension),
		"built_at":  meta.BuiltAt.UTC().Format(time.RFC3339),
	}
	for k, v := range metaRows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO index_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert index meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// ReadIndex loads every entry in corpus order. A missing or unreadable file is
// reported as ErrRetrievalUnavailable.
func ReadIndex(ctx context.Context, path string) ([]IndexEntry, IndexMeta, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, IndexMeta{}, fmt.Errorf("%w: %v", contractx.ErrRetrievalUnavailable, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, IndexMeta{}, fmt.Errorf("%w: open index: %v", contractx.ErrRetrievalUnavailable, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT position, content, launch_date, embedding FROM handsets ORDER BY position ASC`)
	if err != nil {
		return nil, IndexMeta{}, fmt.Errorf("%w: query index: %v", contractx.ErrRetrievalUnavailable, err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var (
			position int
			content  string
			launch   string
			blob     []byte
		)
		if err := rows.Scan(&position, &content, &launch, &blob); err != nil {
			return nil, IndexMeta{}, fmt.Errorf("%w: scan index row: %v", contractx.ErrRetrievalUnavailable, err)
		}

		var attrs map[string]any
		if err := json.Unmarshal([]byte(content), &attrs); err != nil {
			return nil, IndexMeta{}, fmt.Errorf("%w: decode handset %d: %v", contractx.ErrRetrievalUnavailable, position, err)
		}
		date, err := catalogx.ParseLaunchDate(launch)
		if err != nil {
			return nil, IndexMeta{}, fmt.Errorf("%w: handset %d: %v", contractx.ErrRetrievalUnavailable, position, err)
		}

		entries = append(entries, IndexEntry{
			Document: catalogx.HandsetDocument{
				Position:   position,
				Attributes: attrs,
				LaunchDate: date,
			},
			Vector: decodeVector(blob),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, IndexMeta{}, fmt.Errorf("%w: read index: %v", contractx.ErrRetrievalUnavailable, err)
	}

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, IndexMeta{}, err
	}
	return entries, meta, nil
}

func readMeta(ctx context.Context, db *sql.DB) (IndexMeta, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return IndexMeta{}, fmt.Errorf("%w: query index meta: %v", contractx.ErrRetrievalUnavailable, err)
	}
	defer rows.Close()

	var meta IndexMeta
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return IndexMeta{}, fmt.Errorf("%w: scan index meta: %v", contractx.ErrRetrievalUnavailable, err)
		}
		switch k {
		case "embedder":
			meta.Embedder = v
		case "dimension":
			fmt.Sscan(v, &meta.Dimension)
		case "built_at":
			meta.BuiltAt, _ = time.Parse(time.RFC3339, v)
		}
	}
	return meta, rows.Err()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
