// Package store owns the durable job ledger: a SQLite table of ingested jobs
// plus a write-only notification audit log.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/korrio/jobradar/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	budget          REAL NOT NULL DEFAULT 0,
	currency        TEXT NOT NULL DEFAULT 'THB',
	tag_id          TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL DEFAULT '',
	inserted_at     TEXT NOT NULL DEFAULT '',
	url             TEXT NOT NULL DEFAULT '',
	raw_data        TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'pending',
	board_column    TEXT NOT NULL DEFAULT 'inbox',
	notes           TEXT NOT NULL DEFAULT '',
	priority        INTEGER NOT NULL DEFAULT 0,
	analysis        TEXT NOT NULL DEFAULT '',
	synced          INTEGER NOT NULL DEFAULT 0,
	synced_item_id  TEXT NOT NULL DEFAULT '',
	synced_at       DATETIME
);

CREATE TABLE IF NOT EXISTS notifications (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id    TEXT NOT NULL,
	channel   TEXT NOT NULL,
	status    TEXT NOT NULL,
	sent_at   DATETIME,
	error     TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_column ON jobs(board_column);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// Store is the SQLite-backed job ledger. One Store is opened per logical
// session and closed on every exit path; it performs no internal retries.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and ensures the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertJob inserts or refreshes a job keyed by its source ID. On first
// insert the record gets status pending and column inbox. On conflict only
// the listing-owned columns are updated; status, board column, notes,
// priority, analysis and the sync fields are never touched by re-ingestion,
// which keeps the persisted sync flag authoritative across runs.
func (s *Store) UpsertJob(job model.JobRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, title, description, budget, currency, tag_id, category,
			created_at, inserted_at, url, raw_data, status, board_column, notes, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', 'inbox', '', 0)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			budget = excluded.budget,
			currency = excluded.currency,
			tag_id = excluded.tag_id,
			category = excluded.category,
			created_at = excluded.created_at,
			inserted_at = excluded.inserted_at,
			url = excluded.url,
			raw_data = excluded.raw_data`,
		job.ID, job.Title, job.Description, job.Budget, job.Currency, job.TagID,
		job.Category, job.CreatedAt, job.InsertedAt, job.URL, job.RawData,
	)
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", job.ID, err)
	}
	return nil
}

// MarkSynced records a successful external sync. Idempotent when called twice
// with the same item identifier.
func (s *Store) MarkSynced(jobID, itemID string) error {
	if itemID == "" {
		return fmt.Errorf("marking job %s synced: empty item id", jobID)
	}
	_, err := s.db.Exec(`
		UPDATE jobs SET synced = 1, synced_item_id = ?, synced_at = CURRENT_TIMESTAMP
		WHERE id = ?`, itemID, jobID)
	if err != nil {
		return fmt.Errorf("marking job %s synced: %w", jobID, err)
	}
	return nil
}

// IsSynced reports whether a job has been mirrored externally. True only when
// the flag is set AND an item identifier is present; a flag without an
// identifier is treated as a partial write, not as synced.
func (s *Store) IsSynced(jobID string) (bool, error) {
	var synced int
	var itemID string
	err := s.db.QueryRow("SELECT synced, synced_item_id FROM jobs WHERE id = ?", jobID).
		Scan(&synced, &itemID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking sync status for %s: %w", jobID, err)
	}
	return synced == 1 && itemID != "", nil
}

const jobColumns = `id, title, description, budget, currency, tag_id, category,
	created_at, inserted_at, url, raw_data, status, board_column, notes, priority,
	analysis, synced, synced_item_id, synced_at`

func scanJob(row interface{ Scan(...any) error }) (model.JobRecord, error) {
	var j model.JobRecord
	var status, column string
	var synced int
	var syncedAt sql.NullTime
	err := row.Scan(&j.ID, &j.Title, &j.Description, &j.Budget, &j.Currency,
		&j.TagID, &j.Category, &j.CreatedAt, &j.InsertedAt, &j.URL, &j.RawData,
		&status, &column, &j.Notes, &j.Priority, &j.Analysis,
		&synced, &j.SyncedItemID, &syncedAt)
	if err != nil {
		return model.JobRecord{}, err
	}
	j.Status = model.Status(status)
	j.Column = model.Column(column)
	j.Synced = synced == 1
	if syncedAt.Valid {
		t := syncedAt.Time
		j.SyncedAt = &t
	}
	return j, nil
}

// GetJob fetches a single record by source ID.
func (s *Store) GetJob(jobID string) (model.JobRecord, error) {
	row := s.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", jobID)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return model.JobRecord{}, fmt.Errorf("job %s not found", jobID)
	}
	if err != nil {
		return model.JobRecord{}, fmt.Errorf("getting job %s: %w", jobID, err)
	}
	return j, nil
}

// Filter narrows and orders a ListJobs query. Zero values mean "no filter".
type Filter struct {
	Column          model.Column
	Category        string
	Status          model.Status
	Limit           int
	Offset          int
	OrderByPriority bool // default ordering is newest first by creation time
}

// ListJobs returns records matching the filter.
func (s *Store) ListJobs(f Filter) ([]model.JobRecord, error) {
	var conds []string
	var args []any

	if f.Column != "" {
		conds = append(conds, "board_column = ?")
		args = append(args, string(f.Column))
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}

	query := "SELECT " + jobColumns + " FROM jobs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.OrderByPriority {
		query += " ORDER BY priority DESC, created_at DESC"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("listing jobs: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Board returns jobs at or above minBudget grouped by board column, ordered
// by priority then creation time within each column.
func (s *Store) Board(minBudget float64) (map[model.Column][]model.JobRecord, error) {
	rows, err := s.db.Query("SELECT "+jobColumns+` FROM jobs WHERE budget >= ?
		ORDER BY priority DESC, created_at DESC`, minBudget)
	if err != nil {
		return nil, fmt.Errorf("loading board: %w", err)
	}
	defer rows.Close()

	board := make(map[model.Column][]model.JobRecord, len(model.Columns))
	for _, c := range model.Columns {
		board[c] = nil
	}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("loading board: %w", err)
		}
		if _, ok := board[j.Column]; ok {
			board[j.Column] = append(board[j.Column], j)
		}
	}
	return board, rows.Err()
}

// MoveColumn moves a job to another board column. The column set is closed;
// unknown columns are rejected before touching the database.
func (s *Store) MoveColumn(jobID string, to model.Column) error {
	if _, err := model.ParseColumn(string(to)); err != nil {
		return err
	}
	res, err := s.db.Exec("UPDATE jobs SET board_column = ? WHERE id = ?", string(to), jobID)
	if err != nil {
		return fmt.Errorf("moving job %s to %s: %w", jobID, to, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job %s not found", jobID)
	}
	return nil
}

// SetPriority updates a job's priority.
func (s *Store) SetPriority(jobID string, priority int) error {
	res, err := s.db.Exec("UPDATE jobs SET priority = ? WHERE id = ?", priority, jobID)
	if err != nil {
		return fmt.Errorf("setting priority for %s: %w", jobID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job %s not found", jobID)
	}
	return nil
}

// SetNotes replaces a job's free-text notes.
func (s *Store) SetNotes(jobID, notes string) error {
	res, err := s.db.Exec("UPDATE jobs SET notes = ? WHERE id = ?", notes, jobID)
	if err != nil {
		return fmt.Errorf("setting notes for %s: %w", jobID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job %s not found", jobID)
	}
	return nil
}

// setStatus validates the transition against the current state, then applies it.
func (s *Store) setStatus(jobID string, to model.Status) error {
	var current string
	err := s.db.QueryRow("SELECT status FROM jobs WHERE id = ?", jobID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("job %s not found", jobID)
	}
	if err != nil {
		return fmt.Errorf("reading status for %s: %w", jobID, err)
	}
	if !model.CanTransition(model.Status(current), to) {
		return fmt.Errorf("job %s: invalid status transition %s → %s", jobID, current, to)
	}
	if _, err := s.db.Exec("UPDATE jobs SET status = ? WHERE id = ?", string(to), jobID); err != nil {
		return fmt.Errorf("setting status for %s: %w", jobID, err)
	}
	return nil
}

// SaveAnalysis stores the analyzer's opaque output and advances the job to
// analyzed.
func (s *Store) SaveAnalysis(jobID, analysis string) error {
	if err := s.setStatus(jobID, model.StatusAnalyzed); err != nil {
		return err
	}
	if _, err := s.db.Exec("UPDATE jobs SET analysis = ? WHERE id = ?", analysis, jobID); err != nil {
		return fmt.Errorf("saving analysis for %s: %w", jobID, err)
	}
	return nil
}

// MarkNotified advances an analyzed job to notified.
func (s *Store) MarkNotified(jobID string) error {
	return s.setStatus(jobID, model.StatusNotified)
}

// SetError moves a job to the error state, reachable from anywhere.
func (s *Store) SetError(jobID string) error {
	return s.setStatus(jobID, model.StatusError)
}

// PendingAnalysis returns pending jobs at or above the budget threshold,
// newest first.
func (s *Store) PendingAnalysis(minBudget float64) ([]model.JobRecord, error) {
	rows, err := s.db.Query("SELECT "+jobColumns+` FROM jobs
		WHERE status = 'pending' AND budget >= ? ORDER BY created_at DESC`, minBudget)
	if err != nil {
		return nil, fmt.Errorf("listing pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("listing pending jobs: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// AnalyzedJobs returns jobs ready for notification, newest first.
func (s *Store) AnalyzedJobs() ([]model.JobRecord, error) {
	return s.ListJobs(Filter{Status: model.StatusAnalyzed})
}

// LogNotification appends one outcome to the notification audit log. sentAt
// is recorded only for successful sends.
func (s *Store) LogNotification(jobID, channel, status, errText string) error {
	var sentAt *time.Time
	if status == "sent" {
		now := time.Now().UTC()
		sentAt = &now
	}
	_, err := s.db.Exec(`
		INSERT INTO notifications (job_id, channel, status, sent_at, error)
		VALUES (?, ?, ?, ?, ?)`, jobID, channel, status, sentAt, nullable(errText))
	if err != nil {
		return fmt.Errorf("logging notification for %s: %w", jobID, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ColumnStat summarizes one board column.
type ColumnStat struct {
	Column    model.Column
	Count     int
	AvgBudget float64
	MaxBudget float64
}

// ColumnStats returns per-column counts and budget aggregates.
func (s *Store) ColumnStats() ([]ColumnStat, error) {
	rows, err := s.db.Query(`
		SELECT board_column, COUNT(*), COALESCE(AVG(budget), 0), COALESCE(MAX(budget), 0)
		FROM jobs GROUP BY board_column`)
	if err != nil {
		return nil, fmt.Errorf("column stats: %w", err)
	}
	defer rows.Close()

	byColumn := make(map[model.Column]ColumnStat)
	for rows.Next() {
		var st ColumnStat
		var col string
		if err := rows.Scan(&col, &st.Count, &st.AvgBudget, &st.MaxBudget); err != nil {
			return nil, fmt.Errorf("column stats: %w", err)
		}
		st.Column = model.Column(col)
		byColumn[st.Column] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats := make([]ColumnStat, 0, len(model.Columns))
	for _, c := range model.Columns {
		st := byColumn[c]
		st.Column = c
		stats = append(stats, st)
	}
	return stats, nil
}
