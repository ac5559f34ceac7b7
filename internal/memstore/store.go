// Package memstore is the durable memory store (spec §4.1): a SQLite-backed
// MemoryProvider with per-user partitioning enforced on every query, plus
// the BM25 lexical index and pluggable vector index consulted by retrieval.
//
// Structure mirrors the teacher's internal/memory package: a single
// *sql.DB wrapped by a concrete type, schema loaded with go:embed, WAL mode
// and a busy timeout on the DSN, and one file per group of operations.
package memstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/memengine/core/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// MemoryProvider is the storage contract consulted by every other
// component (ingestion, retrieval, janitor, context assembly). All
// operations are owner-scoped: every read or write implicitly filters by
// the acting user's id so one user's memories are never visible to
// another's queries (spec §3, anti-IDOR).
type MemoryProvider interface {
	Store(ctx context.Context, m *core.Memory) error
	Get(ctx context.Context, userID string, id core.ID) (*core.Memory, error)
	Update(ctx context.Context, userID string, id core.ID, mutate func(*core.Memory) error) (*core.Memory, error)
	Invalidate(ctx context.Context, userID string, id core.ID) error
	Delete(ctx context.Context, userID string, id core.ID) error
	ListByUser(ctx context.Context, userID string, memType core.MemoryType) ([]*core.Memory, error)
	Search(ctx context.Context, owner string, filter Filter, limit int) ([]*core.Memory, error)
	Count(ctx context.Context, userID string) (int, error)
	Close() error
}

// ProvenanceRecorder attaches a mutation event atomically with the store
// change it documents, the same narrow seam internal/janitor consults
// for its own invalidate path.
type ProvenanceRecorder interface {
	AttachToMemory(memoryID core.ID, ev *core.ProvenanceEvent) error
}

// SQLiteMemoryStore is the concrete MemoryProvider.
type SQLiteMemoryStore struct {
	db              *sql.DB
	maxPerUser      int
	maxContentBytes int
	maxRawSrcBytes  int
	provenance      ProvenanceRecorder

	bm25 *BM25Index
}

// Options configures a new store beyond its file path.
type Options struct {
	MaxMemoriesPerUser int
	MaxContentBytes    int
	MaxRawSourceBytes  int
	BM25K1             float64
	BM25B              float64

	// Provenance records an "update" event for every successful Update
	// call (spec §8 "Provenance totality"). Optional; a nil value leaves
	// Update unrecorded, e.g. during early bootstrap before the
	// Provenance Service exists.
	Provenance ProvenanceRecorder
}

// Open creates or opens the SQLite-backed store at path, running the
// embedded schema, and builds an initial in-process BM25 index from any
// rows already present (recovering from a process restart).
func Open(path string, opts Options) (*SQLiteMemoryStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create memstore directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open memstore: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer discipline, matches WAL+busy_timeout intent

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply memstore schema: %w", err)
	}

	s := &SQLiteMemoryStore{
		db:              db,
		maxPerUser:      opts.MaxMemoriesPerUser,
		maxContentBytes: opts.MaxContentBytes,
		maxRawSrcBytes:  opts.MaxRawSourceBytes,
		provenance:      opts.Provenance,
		bm25:            NewBM25Index(opts.BM25K1, opts.BM25B),
	}

	if err := s.rebuildBM25(); err != nil {
		db.Close()
		return nil, fmt.Errorf("rebuild bm25 index: %w", err)
	}

	return s, nil
}

func (s *SQLiteMemoryStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteMemoryStore) rebuildBM25() error {
	rows, err := s.db.Query(`SELECT id, user_id, content, confidence, last_access_at FROM memories WHERE valid = 1`)
	if err != nil {
		return err
	}
	defer rows.Close()

	idx := NewBM25Index(s.bm25.k1, s.bm25.b)
	for rows.Next() {
		var id, userID, content string
		var confidence float64
		var lastAccess time.Time
		if err := rows.Scan(&id, &userID, &content, &confidence, &lastAccess); err != nil {
			return err
		}
		idx.Add(Document{ID: core.ID(id), UserID: userID, Content: content, Confidence: confidence, LastAccessAt: lastAccess})
	}
	s.bm25 = idx
	return rows.Err()
}

// Store validates and persists a new memory, enforcing the per-user
// capacity cap atomically with the insert (spec §4.1/§5: capacity checks
// must not race with insertion).
func (s *SQLiteMemoryStore) Store(ctx context.Context, m *core.Memory) error {
	if m.ID.Empty() {
		m.ID = core.NewID()
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := m.ValidateBounds(s.maxContentBytes, s.maxRawSrcBytes); err != nil {
		return err
	}
	meta, err := core.ValidateMetadata(m.Metadata)
	if err != nil {
		return err
	}
	m.Metadata = meta

	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return core.NewError("memstore.Store", core.CodeInvalidInput, err)
	}

	var embBuf []byte
	if len(m.Embedding) > 0 {
		embBuf, err = encodeEmbedding(m.Embedding)
		if err != nil {
			return core.NewError("memstore.Store", core.CodeInvalidInput, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewError("memstore.Store", core.CodeInternal, err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE user_id = ? AND valid = 1`, m.UserID).Scan(&count); err != nil {
		return core.NewError("memstore.Store", core.CodeInternal, err)
	}
	if count >= s.maxPerUser {
		return core.NewError("memstore.Store", core.CodeCapacityExceeded, fmt.Errorf("user %s already has %d memories", m.UserID, count))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (
			id, user_id, type, content, raw_source, confidence, scope, source,
			extraction_version, embedding, metadata_json, created_at, last_access_at, expires_at, valid, invalidation_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		string(m.ID), m.UserID, string(m.Type), m.Content, nullString(m.RawSource), m.Confidence,
		string(m.Scope), m.Source, m.ExtractionVersion, embBuf, string(metaJSON),
		m.CreatedAt, m.LastAccessAt, nullTime(m.ExpiresAt), nullString(m.InvalidationReason),
	)
	if err != nil {
		return core.NewError("memstore.Store", core.CodeInternal, err)
	}

	if err := tx.Commit(); err != nil {
		return core.NewError("memstore.Store", core.CodeInternal, err)
	}

	s.bm25.Add(Document{ID: m.ID, UserID: m.UserID, Content: m.Content, Confidence: m.Confidence, LastAccessAt: m.LastAccessAt})
	return nil
}

// Get retrieves a memory, scoped strictly to userID. A memory that exists
// but is owned by someone else returns the same CodeNotFound as a memory
// that doesn't exist at all, so existence cannot be enumerated by a
// non-owner (spec §3 anti-enumeration).
func (s *SQLiteMemoryStore) Get(ctx context.Context, userID string, id core.ID) (*core.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, content, raw_source, confidence, scope, source,
		       extraction_version, embedding, metadata_json, created_at, last_access_at, expires_at, valid, invalidation_reason
		FROM memories WHERE id = ? AND user_id = ?`, string(id), userID)

	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, core.NewError("memstore.Get", core.CodeNotFound, fmt.Errorf("memory %s not found", id))
	}
	if err != nil {
		return nil, core.NewError("memstore.Get", core.CodeInternal, err)
	}
	return m, nil
}

// Update loads the memory (owner-scoped), applies mutate, re-validates,
// and persists it, touching last_access_at, bumping extraction_version,
// and recording a provenance "update" event (spec §4.1/§8). Invalidated
// memories cannot be updated: spec §4.1 states the rule explicitly, and
// Get does not filter on valid, so this guard is what actually enforces
// it.
func (s *SQLiteMemoryStore) Update(ctx context.Context, userID string, id core.ID, mutate func(*core.Memory) error) (*core.Memory, error) {
	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !m.Valid {
		return nil, core.NewError("memstore.Update", core.CodeInvalidInput, fmt.Errorf("memory %s is invalidated", id))
	}
	if err := mutate(m); err != nil {
		return nil, err
	}
	m.LastAccessAt = time.Now().UTC()
	m.ExtractionVersion++
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := m.ValidateBounds(s.maxContentBytes, s.maxRawSrcBytes); err != nil {
		return nil, err
	}
	meta, err := core.ValidateMetadata(m.Metadata)
	if err != nil {
		return nil, err
	}
	m.Metadata = meta

	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, core.NewError("memstore.Update", core.CodeInvalidInput, err)
	}
	var embBuf []byte
	if len(m.Embedding) > 0 {
		embBuf, err = encodeEmbedding(m.Embedding)
		if err != nil {
			return nil, core.NewError("memstore.Update", core.CodeInvalidInput, err)
		}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET content=?, raw_source=?, confidence=?, scope=?, source=?,
			extraction_version=?, embedding=?, metadata_json=?, last_access_at=?, expires_at=?, valid=?, invalidation_reason=?
		WHERE id=? AND user_id=?`,
		m.Content, nullString(m.RawSource), m.Confidence, string(m.Scope), m.Source,
		m.ExtractionVersion, embBuf, string(metaJSON), m.LastAccessAt, nullTime(m.ExpiresAt),
		boolToInt(m.Valid), nullString(m.InvalidationReason), string(id), userID,
	)
	if err != nil {
		return nil, core.NewError("memstore.Update", core.CodeInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, core.NewError("memstore.Update", core.CodeNotFound, fmt.Errorf("memory %s not found", id))
	}

	s.bm25.Update(Document{ID: m.ID, UserID: m.UserID, Content: m.Content, Confidence: m.Confidence, LastAccessAt: m.LastAccessAt})

	if s.provenance != nil {
		_ = s.provenance.AttachToMemory(m.ID, &core.ProvenanceEvent{
			MemoryID:  m.ID,
			Kind:      core.ProvenanceUpdate,
			Actor:     userID,
			Timestamp: m.LastAccessAt,
			Metadata:  map[string]any{"extraction_version": m.ExtractionVersion},
		})
	}
	return m, nil
}

// Invalidate marks a memory as no longer retrievable without deleting its
// provenance trail — used by contradiction handling and explicit
// supersession (spec §4.5).
func (s *SQLiteMemoryStore) Invalidate(ctx context.Context, userID string, id core.ID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET valid=0, invalidation_reason='invalidated', last_access_at=? WHERE id=? AND user_id=?`, time.Now().UTC(), string(id), userID)
	if err != nil {
		return core.NewError("memstore.Invalidate", core.CodeInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewError("memstore.Invalidate", core.CodeNotFound, fmt.Errorf("memory %s not found", id))
	}
	s.bm25.Remove(id)
	return nil
}

// Delete permanently removes a memory row.
func (s *SQLiteMemoryStore) Delete(ctx context.Context, userID string, id core.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id=? AND user_id=?`, string(id), userID)
	if err != nil {
		return core.NewError("memstore.Delete", core.CodeInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewError("memstore.Delete", core.CodeNotFound, fmt.Errorf("memory %s not found", id))
	}
	s.bm25.Remove(id)
	return nil
}

// ListByUser returns every non-invalidated memory for a user, optionally
// filtered by type (pass "" for all types).
func (s *SQLiteMemoryStore) ListByUser(ctx context.Context, userID string, memType core.MemoryType) ([]*core.Memory, error) {
	query := `SELECT id, user_id, type, content, raw_source, confidence, scope, source,
	       extraction_version, embedding, metadata_json, created_at, last_access_at, expires_at, valid, invalidation_reason
	FROM memories WHERE user_id = ? AND valid = 1`
	args := []any{userID}
	if memType != "" {
		query += ` AND type = ?`
		args = append(args, string(memType))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewError("memstore.ListByUser", core.CodeInternal, err)
	}
	defer rows.Close()

	var out []*core.Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, core.NewError("memstore.ListByUser", core.CodeInternal, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Filter is the typed predicate set spec §4.1's search(owner, filter,
// limit) composes with the mandatory owner predicate: memory_type,
// scope, source, a created_at range, and valid_only. The zero value
// matches every type/scope/source and, like ListByUser, defaults to
// live memories only — set ValidOnly to a false pointer to include
// invalidated memories.
type Filter struct {
	MemoryType    core.MemoryType
	Scope         core.Scope
	Source        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	ValidOnly     *bool
}

// Search returns userID's memories matching filter, newest first,
// capped at limit (0 or negative means unbounded). This is the
// MemoryProvider `search` operation of spec §4.1/§6; ListByUser remains
// the narrower type-only listing internal callers (ingestion dedup,
// janitor passes) already depend on.
func (s *SQLiteMemoryStore) Search(ctx context.Context, owner string, filter Filter, limit int) ([]*core.Memory, error) {
	query := `SELECT id, user_id, type, content, raw_source, confidence, scope, source,
	       extraction_version, embedding, metadata_json, created_at, last_access_at, expires_at, valid, invalidation_reason
	FROM memories WHERE user_id = ?`
	args := []any{owner}

	if filter.ValidOnly == nil || *filter.ValidOnly {
		query += ` AND valid = 1`
	}
	if filter.MemoryType != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.MemoryType))
	}
	if filter.Scope != "" {
		query += ` AND scope = ?`
		args = append(args, string(filter.Scope))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.CreatedAfter != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query += ` AND created_at <= ?`
		args = append(args, *filter.CreatedBefore)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewError("memstore.Search", core.CodeInternal, err)
	}
	defer rows.Close()

	var out []*core.Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, core.NewError("memstore.Search", core.CodeInternal, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListUsers enumerates every distinct user id with at least one live
// memory, consulted by internal/janitor.Service to schedule its
// per-user consolidation pass.
func (s *SQLiteMemoryStore) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM memories WHERE valid = 1`)
	if err != nil {
		return nil, core.NewError("memstore.ListUsers", core.CodeInternal, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, core.NewError("memstore.ListUsers", core.CodeInternal, err)
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

// Count returns the active (non-invalidated) memory count for userID.
func (s *SQLiteMemoryStore) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE user_id = ? AND valid = 1`, userID).Scan(&n)
	if err != nil {
		return 0, core.NewError("memstore.Count", core.CodeInternal, err)
	}
	return n, nil
}

// BM25Search is consulted directly by the hybrid retrieval pipeline,
// restricted to one user's partition.
func (s *SQLiteMemoryStore) BM25Search(userID, query string, topN int) []ScoredDoc {
	return s.bm25.Search(userID, query, topN)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*core.Memory, error) {
	return scanMemoryRows(row)
}

func scanMemoryRows(row rowScanner) (*core.Memory, error) {
	var m core.Memory
	var id, userID, typ, scope string
	var rawSource sql.NullString
	var embBuf []byte
	var metaJSON string
	var expiresAt sql.NullTime
	var valid int
	var invalidationReason sql.NullString

	if err := row.Scan(&id, &userID, &typ, &m.Content, &rawSource, &m.Confidence, &scope, &m.Source,
		&m.ExtractionVersion, &embBuf, &metaJSON, &m.CreatedAt, &m.LastAccessAt, &expiresAt, &valid, &invalidationReason); err != nil {
		return nil, err
	}

	m.ID = core.ID(id)
	m.UserID = userID
	m.Type = core.MemoryType(typ)
	m.Scope = core.Scope(scope)
	m.RawSource = rawSource.String
	m.Valid = valid != 0
	m.InvalidationReason = invalidationReason.String
	if expiresAt.Valid {
		t := expiresAt.Time
		m.ExpiresAt = &t
	}
	if len(embBuf) > 0 {
		vec, err := decodeEmbedding(embBuf)
		if err != nil {
			return nil, err
		}
		m.Embedding = vec
	}
	if metaJSON != "" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
