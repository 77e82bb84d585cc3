package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"igreels/pkg/metadata"
	"igreels/pkg/models"
)

// PostStore records extracted posts in SQLite so later runs can skip them.
type PostStore struct {
	db  *sql.DB
	now func() time.Time
}

// Stats summarises the store contents.
type Stats struct {
	Total      int            `json:"total"`
	Failed     int            `json:"failed"`
	Last24h    int            `json:"last_24h"`
	LastHour   int            `json:"last_hour"`
	Runs       int            `json:"runs"`
	PerAccount map[string]int `json:"per_account"`
}

// AccountCount is one row of Stats.PerAccount in descending order.
type AccountCount struct {
	Account string
	Posts   int
}

// Accounts returns PerAccount sorted by count, then name.
func (s Stats) Accounts() []AccountCount {
	out := make([]AccountCount, 0, len(s.PerAccount))
	for a, n := range s.PerAccount {
		out = append(out, AccountCount{Account: a, Posts: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Posts != out[j].Posts {
			return out[i].Posts > out[j].Posts
		}
		return out[i].Account < out[j].Account
	})
	return out
}

// OpenPostStore opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenPostStore(path string) (*PostStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; an in-memory database is per connection
	db.SetMaxOpenConns(1)

	s := &PostStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}
	return s, nil
}

// Close closes the database connection
func (s *PostStore) Close() error {
	return s.db.Close()
}

func (s *PostStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		shortcode TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		url TEXT NOT NULL,
		is_video INTEGER,
		type TEXT,
		date TEXT,
		caption TEXT,
		hashtags TEXT,
		mentions TEXT,
		extraction_error INTEGER NOT NULL DEFAULT 0,
		run_id TEXT,
		scraped_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		accounts INTEGER NOT NULL DEFAULT 0,
		posts INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		aborted TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_posts_account ON posts(account);
	CREATE INDEX IF NOT EXISTS idx_posts_scraped_at ON posts(scraped_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// IsProcessed reports whether shortcode was stored with content.
func (s *PostStore) IsProcessed(ctx context.Context, shortcode string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM posts WHERE shortcode = ? AND extraction_error = 0)",
		shortcode).Scan(&exists)
	return exists, err
}

// FilterProcessed drops refs already stored with content, keeping order.
func (s *PostStore) FilterProcessed(ctx context.Context, refs []models.PostRef) ([]models.PostRef, error) {
	out := make([]models.PostRef, 0, len(refs))
	for _, ref := range refs {
		done, err := s.IsProcessed(ctx, ref.Shortcode)
		if err != nil {
			return nil, err
		}
		if !done {
			out = append(out, ref)
		}
	}
	return out, nil
}

// SaveDetails upserts details for account in one transaction. A failed
// detail never overwrites a stored successful one.
func (s *PostStore) SaveDetails(ctx context.Context, runID, account string, details []models.PostDetail) error {
	if len(details) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (shortcode, account, url, is_video, type, date, caption,
			hashtags, mentions, extraction_error, run_id, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shortcode) DO UPDATE SET
			account = excluded.account,
			url = excluded.url,
			is_video = excluded.is_video,
			type = excluded.type,
			date = excluded.date,
			caption = excluded.caption,
			hashtags = excluded.hashtags,
			mentions = excluded.mentions,
			extraction_error = excluded.extraction_error,
			run_id = excluded.run_id,
			scraped_at = excluded.scraped_at
		WHERE excluded.extraction_error = 0 OR posts.extraction_error = 1
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	scrapedAt := s.now().Unix()
	for _, d := range details {
		meta := metadata.FromPostDetail(d)
		hashtags, _ := json.Marshal(meta.Hashtags)
		mentions, _ := json.Marshal(meta.Mentions)

		_, err := stmt.ExecContext(ctx,
			d.Shortcode, account, d.URL,
			nullBool(d.IsVideo), nullString(d.Type), nullString(d.Date), nullString(d.Caption),
			string(hashtags), string(mentions), d.ExtractionError, runID, scrapedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", d.Shortcode, err)
		}
	}
	return tx.Commit()
}

// Details returns the stored posts of account, newest first.
func (s *PostStore) Details(ctx context.Context, account string) ([]models.PostDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT shortcode, url, is_video, type, date, caption, extraction_error
		FROM posts WHERE account = ?
		ORDER BY scraped_at DESC, shortcode
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []models.PostDetail
	for rows.Next() {
		var (
			d       models.PostDetail
			isVideo sql.NullBool
			kind    sql.NullString
			date    sql.NullString
			caption sql.NullString
		)
		if err := rows.Scan(&d.Shortcode, &d.URL, &isVideo, &kind, &date, &caption, &d.ExtractionError); err != nil {
			return nil, err
		}
		if isVideo.Valid {
			d.IsVideo = models.BoolPtr(isVideo.Bool)
		}
		if kind.Valid {
			d.Type = models.StringPtr(kind.String)
		}
		if date.Valid {
			d.Date = models.StringPtr(date.String)
		}
		if caption.Valid {
			d.Caption = models.StringPtr(caption.String)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// StartRun records the beginning of a run.
func (s *PostStore) StartRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING",
		runID, s.now().Unix())
	return err
}

// FinishRun records the totals of a run. aborted is empty for a run that
// ran to completion.
func (s *PostStore) FinishRun(ctx context.Context, runID string, result *models.ScrapeResult, aborted string) error {
	posts, failed := result.Totals()
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, accounts = ?, posts = ?, failed = ?, aborted = ?
		WHERE id = ?
	`, s.now().Unix(), len(result.Accounts()), posts, failed, nullIfEmpty(aborted), runID)
	return err
}

// Stats reports totals relative to now.
func (s *PostStore) Stats(ctx context.Context) (Stats, error) {
	now := s.now()
	stats := Stats{PerAccount: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(extraction_error), 0),
			COALESCE(SUM(CASE WHEN scraped_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN scraped_at >= ? THEN 1 ELSE 0 END), 0)
		FROM posts
	`, now.Add(-24*time.Hour).Unix(), now.Add(-time.Hour).Unix()).
		Scan(&stats.Total, &stats.Failed, &stats.Last24h, &stats.LastHour)
	if err != nil {
		return stats, err
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&stats.Runs); err != nil {
		return stats, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT account, COUNT(*) FROM posts GROUP BY account")
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			account string
			n       int
		)
		if err := rows.Scan(&account, &n); err != nil {
			return stats, err
		}
		stats.PerAccount[account] = n
	}
	return stats, rows.Err()
}

// Cleanup deletes posts and runs older than days and returns the number of
// posts removed.
func (s *PostStore) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", days)
	}
	cutoff := s.now().AddDate(0, 0, -days).Unix()

	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE scraped_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
