package actions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

// SQLiteRecorder persists call logs, bookings and escalations.
type SQLiteRecorder struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLiteRecorder, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Serialize writers; calls close concurrently.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLiteRecorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS call_logs (
		session_id TEXT PRIMARY KEY,
		caller_id TEXT NOT NULL,
		stream_sid TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		intent TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL,
		summary TEXT NOT NULL,
		booking_made INTEGER NOT NULL DEFAULT 0,
		escalated INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL CHECK(status IN ('completed', 'failed', 'abandoned')),
		avg_latency_ms INTEGER NOT NULL DEFAULT 0,
		buffered_audio_ms REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		caller_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		time TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		requested_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS escalations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		caller_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		utterance TEXT NOT NULL,
		issue_summary TEXT NOT NULL DEFAULT '',
		raised_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_session ON bookings(session_id);
	CREATE INDEX IF NOT EXISTS idx_escalations_session ON escalations(session_id);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRecorder) DispatchBooking(ctx context.Context, req orchestrator.BookingRequest) error {
	phone := req.Fields["phone"]
	if phone == "" {
		phone = req.CallerID
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO bookings (session_id, caller_id, name, phone, date, time, notes, requested_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.SessionID, req.CallerID,
		req.Fields["name"], phone, req.Fields["date"], req.Fields["time"], req.Fields["notes"],
		req.RequestedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) DispatchEscalation(ctx context.Context, req orchestrator.EscalationRequest) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO escalations (session_id, caller_id, intent, utterance, issue_summary, raised_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		req.SessionID, req.CallerID, string(req.Intent), req.Utterance, req.Fields["issue_summary"],
		req.RaisedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

// DispatchCallLog stores the terminal record. A second log for the same
// session replaces the first.
func (r *SQLiteRecorder) DispatchCallLog(ctx context.Context, log orchestrator.CallLog) error {
	transcript, err := json.Marshal(log.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
	INSERT INTO call_logs (session_id, caller_id, stream_sid, started_at, ended_at, duration_ms, intent,
		transcript, summary, booking_made, escalated, status, avg_latency_ms, buffered_audio_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		ended_at = excluded.ended_at,
		duration_ms = excluded.duration_ms,
		intent = excluded.intent,
		transcript = excluded.transcript,
		summary = excluded.summary,
		booking_made = excluded.booking_made,
		escalated = excluded.escalated,
		status = excluded.status,
		avg_latency_ms = excluded.avg_latency_ms,
		buffered_audio_ms = excluded.buffered_audio_ms`,
		log.SessionID, log.CallerID, log.StreamSID,
		log.StartedAt.UTC().Format(time.RFC3339Nano), log.EndedAt.UTC().Format(time.RFC3339Nano),
		log.Duration.Milliseconds(), string(log.Intent), string(transcript), log.Summary,
		log.BookingMade, log.Escalated, string(log.Status),
		log.AvgLatency.Milliseconds(), log.BufferedAudioMs,
	)
	if err != nil {
		return fmt.Errorf("upsert call log: %w", err)
	}
	return nil
}

// CallLog loads a stored call log.
func (r *SQLiteRecorder) CallLog(ctx context.Context, sessionID string) (orchestrator.CallLog, error) {
	var (
		log               orchestrator.CallLog
		started, ended    string
		durationMs, avgMs int64
		intent, status    string
		transcript        string
	)
	err := r.db.QueryRowContext(ctx, `
	SELECT session_id, caller_id, stream_sid, started_at, ended_at, duration_ms, intent,
		transcript, summary, booking_made, escalated, status, avg_latency_ms, buffered_audio_ms
	FROM call_logs WHERE session_id = ?`, sessionID).Scan(
		&log.SessionID, &log.CallerID, &log.StreamSID, &started, &ended, &durationMs, &intent,
		&transcript, &log.Summary, &log.BookingMade, &log.Escalated, &status, &avgMs, &log.BufferedAudioMs,
	)
	if err != nil {
		return orchestrator.CallLog{}, err
	}

	if log.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return orchestrator.CallLog{}, fmt.Errorf("parse started_at: %w", err)
	}
	if log.EndedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
		return orchestrator.CallLog{}, fmt.Errorf("parse ended_at: %w", err)
	}
	if err := json.Unmarshal([]byte(transcript), &log.Transcript); err != nil {
		return orchestrator.CallLog{}, fmt.Errorf("decode transcript: %w", err)
	}
	log.Duration = time.Duration(durationMs) * time.Millisecond
	log.AvgLatency = time.Duration(avgMs) * time.Millisecond
	log.Intent = orchestrator.Intent(intent)
	log.Status = orchestrator.CallStatus(status)
	return log, nil
}

// Booking is a stored booking row.
type Booking struct {
	SessionID string
	Name      string
	Phone     string
	Date      string
	Time      string
}

// Bookings lists the bookings made during a call, oldest first.
func (r *SQLiteRecorder) Bookings(ctx context.Context, sessionID string) ([]Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT session_id, name, phone, date, time FROM bookings
	WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.SessionID, &b.Name, &b.Phone, &b.Date, &b.Time); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// EscalationCount returns how many escalations a call raised.
func (r *SQLiteRecorder) EscalationCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM escalations WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
