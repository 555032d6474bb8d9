// Package store persists the project's durable state in SQLite: the
// terminology glossary, a chapter-level translation memory, and batch-run
// checkpoints for resumable multi-chapter jobs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/kazkar/internal/glossary"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		original TEXT NOT NULL COLLATE NOCASE,
		translated TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, original)
	);

	CREATE TABLE IF NOT EXISTS chapter_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		mode TEXT NOT NULL,
		provider TEXT,
		translated_text TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, source_lang, target_lang, mode)
	);

	-- batch_checkpoints tracks progress of multi-chapter jobs for resume support
	CREATE TABLE IF NOT EXISTS batch_checkpoints (
		id TEXT PRIMARY KEY,
		input_dir TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		status TEXT DEFAULT 'running',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS batch_checkpoint_files (
		checkpoint_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (checkpoint_id, file_name),
		FOREIGN KEY (checkpoint_id) REFERENCES batch_checkpoints(id)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON chapter_memory(source_text, source_lang, target_lang, mode);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeKey trims whitespace and applies Unicode NFC normalization so
// memory lookups are stable across byte-different but canonically equal
// inputs.
func normalizeKey(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// --- Glossary ---

// Term is a glossary row with its persistence metadata.
type Term struct {
	ID         string
	SourceLang string
	TargetLang string
	Original   string
	Translated string
	CreatedAt  time.Time
}

// AddTerm inserts or replaces a glossary entry. Uniqueness of the original
// term is case-insensitive within a language pair.
func (s *Store) AddTerm(ctx context.Context, sourceLang, targetLang, original, translated string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO glossary (id, source_lang, target_lang, original, translated)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), sourceLang, targetLang, normalizeKey(original), normalizeKey(translated))
	return err
}

// Entries returns the glossary for a language pair in insertion order, ready
// to hand to the translation pipeline.
func (s *Store) Entries(ctx context.Context, sourceLang, targetLang string) ([]glossary.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT original, translated FROM glossary
		 WHERE source_lang = ? AND target_lang = ?
		 ORDER BY created_at, id`,
		sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []glossary.Entry
	for rows.Next() {
		var e glossary.Entry
		if err := rows.Scan(&e.Original, &e.Translated); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListTerms returns glossary rows, optionally filtered by language codes.
// Empty filter strings match everything.
func (s *Store) ListTerms(ctx context.Context, sourceLang, targetLang string) ([]Term, error) {
	query := `SELECT id, source_lang, target_lang, original, translated, created_at FROM glossary`
	var conds []string
	var args []any
	if sourceLang != "" {
		conds = append(conds, "source_lang = ?")
		args = append(args, sourceLang)
	}
	if targetLang != "" {
		conds = append(conds, "target_lang = ?")
		args = append(args, targetLang)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY source_lang, target_lang, created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.SourceLang, &t.TargetLang, &t.Original, &t.Translated, &t.CreatedAt); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// DeleteTerm removes a glossary entry by ID.
func (s *Store) DeleteTerm(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM glossary WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no glossary entry with id %s", id)
	}
	return nil
}

// --- Chapter memory ---

// ChapterEntry is a row from the chapter_memory table.
type ChapterEntry struct {
	ID         string
	SourceLang string
	TargetLang string
	Mode       string
	Provider   string
	SourceText string
	UsageCount int
	LastUsed   time.Time
}

// GetChapter returns a cached chapter translation, bumping its usage
// counter on a hit.
func (s *Store) GetChapter(ctx context.Context, sourceText, sourceLang, targetLang, mode string) (string, bool, error) {
	key := normalizeKey(sourceText)

	var translated string
	err := s.db.QueryRowContext(ctx,
		`SELECT translated_text FROM chapter_memory
		 WHERE source_text = ? AND source_lang = ? AND target_lang = ? AND mode = ?`,
		key, sourceLang, targetLang, mode).Scan(&translated)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE chapter_memory SET usage_count = usage_count + 1, last_used = ?
		 WHERE source_text = ? AND source_lang = ? AND target_lang = ? AND mode = ?`,
		time.Now(), key, sourceLang, targetLang, mode)
	return translated, true, err
}

// SaveChapter stores a finished chapter translation.
func (s *Store) SaveChapter(ctx context.Context, sourceText, sourceLang, targetLang, mode, providerName, translated string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chapter_memory
		 (id, source_text, source_lang, target_lang, mode, provider, translated_text, usage_count, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		uuid.New().String(), normalizeKey(sourceText), sourceLang, targetLang, mode, providerName, translated,
		time.Now(), time.Now())
	return err
}

// ListChapters returns all chapter memory rows, most recently used first.
func (s *Store) ListChapters(ctx context.Context) ([]ChapterEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_lang, target_lang, mode, COALESCE(provider, ''), source_text, usage_count, last_used
		 FROM chapter_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ChapterEntry
	for rows.Next() {
		var e ChapterEntry
		if err := rows.Scan(&e.ID, &e.SourceLang, &e.TargetLang, &e.Mode, &e.Provider, &e.SourceText, &e.UsageCount, &e.LastUsed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearChapters deletes all chapter memory entries and reports how many.
func (s *Store) ClearChapters(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chapter_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats summarises store contents.
type Stats struct {
	Chapters      int
	GlossaryTerms int
	Checkpoints   int
	TotalUsage    int
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(usage_count), 0) FROM chapter_memory`).Scan(&st.Chapters, &st.TotalUsage); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM glossary`).Scan(&st.GlossaryTerms); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batch_checkpoints`).Scan(&st.Checkpoints); err != nil {
		return nil, err
	}
	return st, nil
}

// --- Batch checkpoints ---

// Checkpoint is one batch job's progress record.
type Checkpoint struct {
	ID         string
	InputDir   string
	OutputDir  string
	TargetLang string
	Status     string
}

// CreateCheckpoint starts tracking a batch job and returns its ID.
func (s *Store) CreateCheckpoint(ctx context.Context, inputDir, outputDir, targetLang string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batch_checkpoints (id, input_dir, output_dir, target_lang) VALUES (?, ?, ?, ?)`,
		id, inputDir, outputDir, targetLang)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetCheckpoint loads a checkpoint by ID.
func (s *Store) GetCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	cp := &Checkpoint{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input_dir, output_dir, target_lang, status FROM batch_checkpoints WHERE id = ?`,
		id).Scan(&cp.ID, &cp.InputDir, &cp.OutputDir, &cp.TargetLang, &cp.Status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no checkpoint with id %s", id)
	}
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// DoneFiles returns the set of file names already completed under a
// checkpoint.
func (s *Store) DoneFiles(ctx context.Context, checkpointID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_name FROM batch_checkpoint_files WHERE checkpoint_id = ?`, checkpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
	return done, rows.Err()
}

// MarkFileDone records one completed file under a checkpoint.
func (s *Store) MarkFileDone(ctx context.Context, checkpointID, fileName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO batch_checkpoint_files (checkpoint_id, file_name) VALUES (?, ?)`,
		checkpointID, fileName)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE batch_checkpoints SET updated_at = ? WHERE id = ?`, time.Now(), checkpointID)
	return err
}

// CompleteCheckpoint marks a batch job finished.
func (s *Store) CompleteCheckpoint(ctx context.Context, checkpointID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE batch_checkpoints SET status = 'completed', updated_at = ? WHERE id = ?`,
		time.Now(), checkpointID)
	return err
}
