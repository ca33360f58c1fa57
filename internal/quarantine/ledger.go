package quarantine

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/Hara602/downloadSentry/internal/model"
)

// Ledger 可选的审计日志. 流水线不依赖它, 隔离目录才是真实状态.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (and migrates) the sqlite ledger at dbPath.
func OpenLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ledger")
	}
	// 单连接即可, 避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS quarantine_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL,
		original_path TEXT NOT NULL,
		quarantine_path TEXT,
		outcome TEXT NOT NULL,
		reason TEXT,
		content_type TEXT,
		masquerade INTEGER NOT NULL DEFAULT 0,
		detected_at TEXT NOT NULL,
		completed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quarantine_records_event ON quarantine_records(event_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create ledger table")
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one row for rec.
func (l *Ledger) Record(rec model.QuarantineRecord) error {
	_, err := l.db.Exec(
		`INSERT INTO quarantine_records
			(event_id, original_path, quarantine_path, outcome, reason, content_type, masquerade, detected_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EventID, rec.OriginalPath, rec.QuarantinePath, string(rec.Outcome), rec.Reason,
		rec.ContentType, rec.Masquerade, rec.DetectedAt.UTC().Format(time.RFC3339Nano), rec.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "ledger insert")
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (l *Ledger) Recent(limit int) ([]model.QuarantineRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(
		`SELECT event_id, original_path, COALESCE(quarantine_path, ''), outcome, COALESCE(reason, ''),
			COALESCE(content_type, ''), masquerade, detected_at, completed_at
		FROM quarantine_records ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "ledger query")
	}
	defer rows.Close()

	var out []model.QuarantineRecord
	for rows.Next() {
		var (
			rec                 model.QuarantineRecord
			outcome             string
			detected, completed string
		)
		if err := rows.Scan(&rec.EventID, &rec.OriginalPath, &rec.QuarantinePath, &outcome, &rec.Reason,
			&rec.ContentType, &rec.Masquerade, &detected, &completed); err != nil {
			return nil, errors.Wrap(err, "ledger scan")
		}
		rec.Outcome = model.Outcome(outcome)
		rec.DetectedAt, _ = time.Parse(time.RFC3339Nano, detected)
		rec.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "ledger rows")
}
