package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"acrscan/internal/match"
	"acrscan/internal/services"
)

// Store manages scan history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "database path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas apply per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// BeginScan records a new running scan and returns it with a fresh id.
func (s *Store) BeginScan(ctx context.Context, target string, windowMs int64) (Scan, error) {
	scan := Scan{
		ID:        uuid.NewString(),
		Target:    target,
		Status:    StatusRunning,
		WindowMs:  windowMs,
		StartedAt: s.now().UTC(),
	}
	err := s.execWithoutResultRetry(ctx,
		`INSERT INTO scans (id, target, status, window_ms, started_at) VALUES (?, ?, ?, ?, ?)`,
		scan.ID, scan.Target, scan.Status, scan.WindowMs, scan.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Scan{}, fmt.Errorf("insert scan: %w", err)
	}
	return scan, nil
}

// RecordSegments stores the segments of one kind and stage for a scan,
// replacing whatever was stored for that combination and source before.
func (s *Store) RecordSegments(ctx context.Context, scanID string, kind match.Kind, stage Stage, segments []match.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		sources := map[string]struct{}{}
		for _, seg := range segments {
			if _, seen := sources[seg.Source]; seen {
				continue
			}
			sources[seg.Source] = struct{}{}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM segments WHERE scan_id = ? AND kind = ? AND stage = ? AND source = ?`,
				scanID, string(kind), string(stage), seg.Source,
			); err != nil {
				return fmt.Errorf("clear segments: %w", err)
			}
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO segments (
            scan_id, kind, stage, position, source, status, status_code,
            start_ms, end_ms, played_ms, title, canonical_id, score, alternates_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, seg := range segments {
			alternates, err := marshalAlternates(seg.Alternates)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				scanID, string(kind), string(stage), i, seg.Source, seg.Status.String(), seg.Code,
				seg.Time.Begin, seg.Time.End, seg.PlayedMs,
				nullableString(seg.Title()), nullableString(seg.CanonicalID()), seg.Score, alternates,
			); err != nil {
				return fmt.Errorf("insert segment: %w", err)
			}
		}
		return tx.Commit()
	})
}

// FinishScan closes a scan with its final status.
func (s *Store) FinishScan(ctx context.Context, scanID string, status Status, fileCount int, scanErr error) error {
	message := ""
	if scanErr != nil {
		message = scanErr.Error()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE scans SET status = ?, error_message = ?, file_count = ?, finished_at = ? WHERE id = ?`,
		status, nullableString(message), fileCount, s.now().UTC().Format(time.RFC3339Nano), scanID,
	)
	if err != nil {
		return fmt.Errorf("finish scan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "history", "finish scan", scanID, nil)
	}
	return nil
}

const scanColumns = "id, target, status, error_message, file_count, window_ms, started_at, finished_at"

// ListScans returns the most recent scans first; limit <= 0 lists all.
func (s *Store) ListScans(ctx context.Context, limit int) ([]Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

// GetScan fetches one scan by id or by a unique id prefix.
func (s *Store) GetScan(ctx context.Context, id string) (Scan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Scan{}, services.Wrap(services.ErrValidation, "history", "get scan", "empty id", nil)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+scanColumns+` FROM scans WHERE id = ? OR id LIKE ? ORDER BY started_at DESC LIMIT 2`,
		id, stripLikeWildcards(id)+"%",
	)
	if err != nil {
		return Scan{}, fmt.Errorf("get scan: %w", err)
	}
	defer rows.Close()

	var found []Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return Scan{}, fmt.Errorf("scan row: %w", err)
		}
		if scan.ID == id {
			return scan, nil
		}
		found = append(found, scan)
	}
	if err := rows.Err(); err != nil {
		return Scan{}, err
	}
	switch len(found) {
	case 0:
		return Scan{}, services.Wrap(services.ErrNotFound, "history", "get scan", id, nil)
	case 1:
		return found[0], nil
	default:
		return Scan{}, services.Wrap(services.ErrValidation, "history", "get scan", fmt.Sprintf("id prefix %q is ambiguous", id), nil)
	}
}

// ScanSegments returns the stored segments of a scan in stored order. Empty
// kind or stage match everything.
func (s *Store) ScanSegments(ctx context.Context, scanID string, kind match.Kind, stage Stage) ([]Segment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT scan_id, kind, stage, position, source, status, status_code, start_ms, end_ms,
                played_ms, title, canonical_id, score, alternates_json
         FROM segments
         WHERE scan_id = ? AND (? = '' OR kind = ?) AND (? = '' OR stage = ?)
         ORDER BY kind, stage, source, position`,
		scanID, string(kind), string(kind), string(stage), string(stage),
	)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []Segment
	for rows.Next() {
		var (
			seg        Segment
			kindRaw    string
			stageRaw   string
			title      sql.NullString
			canonical  sql.NullString
			alternates sql.NullString
		)
		if err := rows.Scan(&seg.ScanID, &kindRaw, &stageRaw, &seg.Position, &seg.Source, &seg.Status, &seg.StatusCode,
			&seg.StartMs, &seg.EndMs, &seg.PlayedMs, &title, &canonical, &seg.Score, &alternates); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.Kind = match.Kind(kindRaw)
		seg.Stage = Stage(stageRaw)
		seg.Title = title.String
		seg.CanonicalID = canonical.String
		if alternates.Valid && alternates.String != "" {
			if err := json.Unmarshal([]byte(alternates.String), &seg.Alternates); err != nil {
				return nil, fmt.Errorf("decode alternates: %w", err)
			}
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// Prune deletes scans started before cutoff together with their segments.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	stamp := cutoff.UTC().Format(time.RFC3339Nano)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM segments WHERE scan_id IN (SELECT id FROM scans WHERE started_at < ?)`, stamp,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE started_at < ?`, stamp)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("prune scans: %w", err)
	}
	return removed, nil
}

func scanScan(scanner interface{ Scan(dest ...any) error }) (Scan, error) {
	var (
		scan        Scan
		status      string
		errorMsg    sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&scan.ID, &scan.Target, &status, &errorMsg, &scan.FileCount, &scan.WindowMs, &startedRaw, &finishedRaw); err != nil {
		return Scan{}, err
	}
	scan.Status = Status(status)
	scan.ErrorMessage = errorMsg.String
	scan.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		scan.FinishedAt = parseTime(finishedRaw.String)
	}
	return scan, nil
}

func marshalAlternates(alternates []match.Candidate) (any, error) {
	if len(alternates) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(alternates)
	if err != nil {
		return nil, fmt.Errorf("encode alternates: %w", err)
	}
	return string(data), nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func stripLikeWildcards(value string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(value)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
