package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/muhammad1505/idm-open/internal/checksum"
	"github.com/muhammad1505/idm-open/internal/errs"
	"github.com/muhammad1505/idm-open/internal/segment"
	"github.com/muhammad1505/idm-open/internal/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	dest_path TEXT NOT NULL,
	status TEXT NOT NULL,
	priority INTEGER NOT NULL,
	total_bytes INTEGER NOT NULL,
	downloaded_bytes INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	error TEXT NOT NULL,
	checksum_type TEXT NOT NULL,
	checksum_hex TEXT NOT NULL,
	proxy_url TEXT NOT NULL,
	auth_user TEXT NOT NULL,
	auth_pass TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS segments (
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	segment_index INTEGER NOT NULL,
	range_start INTEGER NOT NULL,
	range_end INTEGER NOT NULL,
	downloaded_bytes INTEGER NOT NULL,
	status TEXT NOT NULL,
	PRIMARY KEY (task_id, segment_index)
);

CREATE TABLE IF NOT EXISTS headers (
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cookies (
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	domain TEXT NOT NULL,
	path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mirrors (
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	rank INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// SQLiteStore persists tasks and segments to a single SQLite file, so a
// queue survives process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates (if needed) and migrates the database at path, returning a
// ready SQLiteStore.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "opening database %s", path)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindStorage, err, "enabling foreign keys")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindStorage, err, "applying schema")
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveTask(t *task.Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "beginning transaction")
	}
	defer tx.Rollback()

	checksumType, checksumHex := "", ""
	if t.Checksum != nil {
		checksumType, checksumHex = string(t.Checksum.Type), t.Checksum.ExpectedHex
	}

	_, err = tx.Exec(`
		INSERT INTO tasks (
			id, url, dest_path, status, priority, total_bytes, downloaded_bytes,
			created_at, updated_at, error, checksum_type, checksum_hex,
			proxy_url, auth_user, auth_pass
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			dest_path = excluded.dest_path,
			status = excluded.status,
			priority = excluded.priority,
			total_bytes = excluded.total_bytes,
			downloaded_bytes = excluded.downloaded_bytes,
			updated_at = excluded.updated_at,
			error = excluded.error,
			checksum_type = excluded.checksum_type,
			checksum_hex = excluded.checksum_hex,
			proxy_url = excluded.proxy_url,
			auth_user = excluded.auth_user,
			auth_pass = excluded.auth_pass
	`,
		t.ID.String(), t.URL, t.DestPath, string(t.Status), t.Priority,
		t.TotalBytes, t.DownloadedBytes, t.CreatedAt, t.UpdatedAt, t.Error,
		checksumType, checksumHex, t.ProxyURL, t.AuthUser, t.AuthPass,
	)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "upserting task %s", t.ID)
	}

	if _, err := tx.Exec(`DELETE FROM headers WHERE task_id = ?`, t.ID.String()); err != nil {
		return errs.Wrap(errs.KindStorage, err, "clearing headers for %s", t.ID)
	}
	for name, value := range t.Headers {
		if _, err := tx.Exec(`INSERT INTO headers (task_id, name, value) VALUES (?, ?, ?)`,
			t.ID.String(), name, value); err != nil {
			return errs.Wrap(errs.KindStorage, err, "inserting header for %s", t.ID)
		}
	}

	if _, err := tx.Exec(`DELETE FROM cookies WHERE task_id = ?`, t.ID.String()); err != nil {
		return errs.Wrap(errs.KindStorage, err, "clearing cookies for %s", t.ID)
	}
	for name, value := range t.Cookies {
		if _, err := tx.Exec(`INSERT INTO cookies (task_id, name, value, domain, path) VALUES (?, ?, ?, '', '')`,
			t.ID.String(), name, value); err != nil {
			return errs.Wrap(errs.KindStorage, err, "inserting cookie for %s", t.ID)
		}
	}

	if _, err := tx.Exec(`DELETE FROM mirrors WHERE task_id = ?`, t.ID.String()); err != nil {
		return errs.Wrap(errs.KindStorage, err, "clearing mirrors for %s", t.ID)
	}
	for rank, mirror := range t.Mirrors {
		if _, err := tx.Exec(`INSERT INTO mirrors (task_id, url, rank) VALUES (?, ?, ?)`,
			t.ID.String(), mirror, rank); err != nil {
			return errs.Wrap(errs.KindStorage, err, "inserting mirror for %s", t.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindStorage, err, "committing task %s", t.ID)
	}
	return nil
}

func (s *SQLiteStore) LoadTask(id task.ID) (*task.Task, error) {
	row := s.db.QueryRow(`
		SELECT url, dest_path, status, priority, total_bytes, downloaded_bytes,
			created_at, updated_at, error, checksum_type, checksum_hex,
			proxy_url, auth_user, auth_pass
		FROM tasks WHERE id = ?
	`, id.String())

	t := &task.Task{ID: id}
	var checksumType, checksumHex string
	err := row.Scan(
		&t.URL, &t.DestPath, &t.Status, &t.Priority, &t.TotalBytes, &t.DownloadedBytes,
		&t.CreatedAt, &t.UpdatedAt, &t.Error, &checksumType, &checksumHex,
		&t.ProxyURL, &t.AuthUser, &t.AuthPass,
	)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.KindNotFound, "task %s not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "loading task %s", id)
	}
	if checksumType != "" {
		t.Checksum = &checksum.Request{Type: checksum.Type(checksumType), ExpectedHex: checksumHex}
	}

	if t.Headers, err = s.loadKV(id, "headers"); err != nil {
		return nil, err
	}
	if t.Cookies, err = s.loadKV(id, "cookies"); err != nil {
		return nil, err
	}
	if t.Mirrors, err = s.loadMirrors(id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) loadKV(id task.ID, table string) (map[string]string, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT name, value FROM %s WHERE task_id = ?`, table), id.String())
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "loading %s for %s", table, id)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, errs.Wrap(errs.KindStorage, err, "scanning %s for %s", table, id)
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadMirrors(id task.ID) ([]string, error) {
	rows, err := s.db.Query(`SELECT url FROM mirrors WHERE task_id = ? ORDER BY rank ASC`, id.String())
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "loading mirrors for %s", id)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, errs.Wrap(errs.KindStorage, err, "scanning mirrors for %s", id)
		}
		out = append(out, url)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListTasks() ([]*task.Task, error) {
	rows, err := s.db.Query(`SELECT id FROM tasks`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "listing tasks")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errs.Wrap(errs.KindStorage, err, "scanning task id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "listing tasks")
	}

	out := make([]*task.Task, 0, len(ids))
	for _, idStr := range ids {
		id, err := task.ParseID(idStr)
		if err != nil {
			return nil, errs.Wrap(errs.KindStorage, err, "parsing task id %s", idStr)
		}
		t, err := s.LoadTask(id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteTask(id task.ID) error {
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id.String()); err != nil {
		return errs.Wrap(errs.KindStorage, err, "deleting task %s", id)
	}
	return nil
}

func (s *SQLiteStore) SaveSegments(taskID task.ID, segments []segment.Segment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM segments WHERE task_id = ?`, taskID.String()); err != nil {
		return errs.Wrap(errs.KindStorage, err, "clearing segments for %s", taskID)
	}
	for _, seg := range segments {
		_, err := tx.Exec(`
			INSERT INTO segments (task_id, segment_index, range_start, range_end, downloaded_bytes, status)
			VALUES (?, ?, ?, ?, ?, ?)
		`, taskID.String(), seg.Index, seg.RangeStart, seg.RangeEnd, seg.DownloadedBytes, string(seg.Status))
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "inserting segment %d for %s", seg.Index, taskID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindStorage, err, "committing segments for %s", taskID)
	}
	return nil
}

func (s *SQLiteStore) LoadSegments(taskID task.ID) ([]segment.Segment, error) {
	rows, err := s.db.Query(`
		SELECT segment_index, range_start, range_end, downloaded_bytes, status
		FROM segments WHERE task_id = ? ORDER BY segment_index ASC
	`, taskID.String())
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "loading segments for %s", taskID)
	}
	defer rows.Close()

	var out []segment.Segment
	for rows.Next() {
		var seg segment.Segment
		var status string
		if err := rows.Scan(&seg.Index, &seg.RangeStart, &seg.RangeEnd, &seg.DownloadedBytes, &status); err != nil {
			return nil, errs.Wrap(errs.KindStorage, err, "scanning segment for %s", taskID)
		}
		if parsed, ok := segment.ParseStatus(status); ok {
			seg.Status = parsed
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}
