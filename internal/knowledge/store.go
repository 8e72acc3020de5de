package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/db"
	"github.com/ziadkadry99/handoff/internal/lexicon"
)

// Store manages persistence of knowledge entries and keeps a text index in sync.
type Store struct {
	db    *db.DB
	index Index
	now   func() time.Time
}

// NewStore creates a knowledge store. A nil index selects the FTS5 index.
func NewStore(database *db.DB, index Index) *Store {
	if index == nil {
		index = NewFTSIndex(database)
	}
	return &Store{db: database, index: index, now: time.Now}
}

const entryColumns = `id, question, answer, category, tags, source, confidence, usage_count,
	last_used_at, is_active, created_by, created_at, updated_at`

// Upsert inserts the entry, or replaces the content of the entry with the
// same id. Usage statistics and creation time of an existing entry are kept.
func (s *Store) Upsert(ctx context.Context, e Entry) (*Entry, error) {
	e.Question = strings.TrimSpace(e.Question)
	e.Answer = strings.TrimSpace(e.Answer)
	if e.Question == "" {
		return nil, apperr.Validation("question is required")
	}
	if e.Answer == "" {
		return nil, apperr.Validation("answer is required")
	}
	if e.Confidence < 0 || e.Confidence > 1 || math.IsNaN(e.Confidence) {
		return nil, apperr.Validation("confidence must be between 0 and 1")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if strings.TrimSpace(e.Category) == "" {
		e.Category = DefaultCategory
	}
	if len(e.Tags) == 0 {
		e.Tags = lexicon.ExtractTags(e.Question)
	}
	if e.Source == "" {
		e.Source = SourceAdmin
	}
	switch e.Source {
	case SourceSeed, SourceHumanResolved, SourceAdmin:
	default:
		return nil, apperr.Validation("unknown source %q", e.Source)
	}
	if e.Confidence == 0 {
		e.Confidence = DefaultConfidence
	}

	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	now := db.FormatTime(s.now())

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_entries (id, question, answer, category, tags, source, confidence, is_active, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   question = excluded.question,
		   answer = excluded.answer,
		   category = excluded.category,
		   tags = excluded.tags,
		   source = excluded.source,
		   confidence = excluded.confidence,
		   is_active = 1,
		   updated_at = excluded.updated_at`,
		e.ID, e.Question, e.Answer, e.Category, string(tags), e.Source, e.Confidence, e.CreatedBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting knowledge entry: %w", err)
	}

	stored, err := s.Get(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, *stored)
	return stored, nil
}

// Get retrieves an entry by id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("knowledge entry", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting knowledge entry: %w", err)
	}
	return e, nil
}

// List returns entries matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM knowledge_entries WHERE 1=1`
	args := []any{}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.Active != nil {
		query += " AND is_active = ?"
		args = append(args, boolInt(*filter.Active))
	}

	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning knowledge entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Update applies a partial update to an existing entry.
func (s *Store) Update(ctx context.Context, id string, p Patch) (*Entry, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Question != nil {
		if strings.TrimSpace(*p.Question) == "" {
			return nil, apperr.Validation("question must not be blank")
		}
		e.Question = strings.TrimSpace(*p.Question)
	}
	if p.Answer != nil {
		if strings.TrimSpace(*p.Answer) == "" {
			return nil, apperr.Validation("answer must not be blank")
		}
		e.Answer = strings.TrimSpace(*p.Answer)
	}
	if p.Category != nil {
		e.Category = strings.TrimSpace(*p.Category)
		if e.Category == "" {
			e.Category = DefaultCategory
		}
	}
	if p.Tags != nil {
		e.Tags = *p.Tags
	}
	if p.Confidence != nil {
		c := *p.Confidence
		if c < 0 || c > 1 || math.IsNaN(c) {
			return nil, apperr.Validation("confidence must be between 0 and 1")
		}
		e.Confidence = c
	}
	if p.IsActive != nil {
		e.IsActive = *p.IsActive
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}

	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE knowledge_entries SET question = ?, answer = ?, category = ?, tags = ?, confidence = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		e.Question, e.Answer, e.Category, string(tags), e.Confidence, boolInt(e.IsActive), db.FormatTime(s.now()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating knowledge entry: %w", err)
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, *updated)
	return updated, nil
}

// FindBestTextMatch returns the most relevant active entry for a question
// with its score in [0,1]. A nil entry means no candidate.
func (s *Store) FindBestTextMatch(ctx context.Context, question string) (*Entry, float64, error) {
	hit, err := s.index.Best(ctx, question)
	if err != nil {
		return nil, 0, apperr.Dependency("text index", err)
	}
	if hit == nil {
		return nil, 0, nil
	}

	e, err := s.Get(ctx, hit.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if !e.IsActive {
		return nil, 0, nil
	}
	return e, clampScore(hit.Score), nil
}

// FindByCategory returns the active entry in a category with the highest
// confidence, then the highest usage. A nil entry means the category is empty.
func (s *Store) FindByCategory(ctx context.Context, category string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries
		 WHERE category = ? AND is_active = 1
		 ORDER BY confidence DESC, usage_count DESC, created_at ASC
		 LIMIT 1`, category)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding entry by category: %w", err)
	}
	return e, nil
}

// RecordUsage increments the usage counter of an entry and stamps its last use.
func (s *Store) RecordUsage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_entries SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`,
		db.FormatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperr.NotFound("knowledge entry", id)
	}
	return nil
}

// Deactivate soft-deletes an entry. Deactivating an inactive entry is a no-op.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_entries
		 SET updated_at = CASE WHEN is_active = 1 THEN ? ELSE updated_at END, is_active = 0
		 WHERE id = ?`,
		db.FormatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("deactivating knowledge entry: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperr.NotFound("knowledge entry", id)
	}
	if err := s.index.Remove(ctx, id); err != nil {
		log.Printf("knowledge: removing %s from index: %v", id, err)
	}
	return nil
}

// Count returns the number of stored entries, active or not.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_entries`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting knowledge entries: %w", err)
	}
	return n, nil
}

// Reindex pushes every active entry into the text index and returns how
// many were indexed. Used to warm in-memory indexes at startup.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	active := true
	entries, err := s.List(ctx, ListFilter{Active: &active})
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := s.index.Put(ctx, e); err != nil {
			return 0, apperr.Dependency("text index", err)
		}
	}
	return len(entries), nil
}

// indexSyncOverlap widens each refresh window so rows stamped just before a
// sync but committed after it are still picked up.
const indexSyncOverlap = time.Minute

// SyncIndex pushes every entry changed at or after since into the text
// index, removing the ones that are no longer active. It returns how many
// entries were synced.
func (s *Store) SyncIndex(ctx context.Context, since time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE updated_at >= ? ORDER BY updated_at, id`,
		db.FormatTime(since),
	)
	if err != nil {
		return 0, fmt.Errorf("listing changed knowledge entries: %w", err)
	}
	var changed []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning knowledge entry: %w", err)
		}
		changed = append(changed, *e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading changed knowledge entries: %w", err)
	}

	for _, e := range changed {
		if e.IsActive {
			err = s.index.Put(ctx, e)
		} else {
			err = s.index.Remove(ctx, e.ID)
		}
		if err != nil {
			return 0, apperr.Dependency("text index", err)
		}
	}
	return len(changed), nil
}

// RefreshIndex syncs the text index every interval until ctx is done, so
// entries written by other processes sharing the database become
// searchable without a restart.
func (s *Store) RefreshIndex(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	since := s.now().Add(-indexSyncOverlap)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		start := s.now()
		n, err := s.SyncIndex(ctx, since)
		if err != nil {
			log.Printf("knowledge: refreshing index: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("knowledge: refreshed %d index entries", n)
		}
		since = start.Add(-indexSyncOverlap)
	}
}

func (s *Store) reindex(ctx context.Context, e Entry) {
	var err error
	if e.IsActive {
		err = s.index.Put(ctx, e)
	} else {
		err = s.index.Remove(ctx, e.ID)
	}
	if err != nil {
		log.Printf("knowledge: indexing entry %s: %v", e.ID, err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var e Entry
	var tags, createdAt, updatedAt string
	var lastUsed sql.NullString
	var active int
	err := sc.Scan(&e.ID, &e.Question, &e.Answer, &e.Category, &tags, &e.Source, &e.Confidence, &e.UsageCount,
		&lastUsed, &active, &e.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.IsActive = active == 1
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if e.LastUsedAt, err = db.ParseNullTime(lastUsed); err != nil {
		return nil, fmt.Errorf("parsing last_used_at: %w", err)
	}
	return &e, nil
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
