package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	pkgerrors "github.com/pkg/errors"

	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/storage"
)

const columns = `id, queue, subject, status, timeStart, timeEnd, requestBody, responseBody`

// Options configures the SQL connection pool.
type Options struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// LockTimeout bounds how long an exclusive insert waits for the
	// per-subject lock on MySQL.
	LockTimeout time.Duration
}

// Store is a storage.Gateway over database/sql.
type Store struct {
	db          *sql.DB
	dialect     Dialect
	lockTimeout time.Duration
}

var (
	_ storage.Gateway           = (*Store)(nil)
	_ storage.ExclusiveInserter = (*Store)(nil)
)

// querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the database. The pool is not verified; call Ping.
func Open(opts Options) (*Store, error) {
	dsn := opts.DSN
	if opts.Dialect == DialectMySQL {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "invalid mysql dsn")
		}
		cfg.ParseTime = true
		if cfg.Loc == nil {
			cfg.Loc = time.UTC
		}
		dsn = cfg.FormatDSN()
	}
	db, err := sql.Open(opts.Dialect.driverName(), dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open database")
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return NewWithDB(db, opts.Dialect, opts.LockTimeout), nil
}

// NewWithDB wraps an existing pool.
func NewWithDB(db *sql.DB, dialect Dialect, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	return &Store{db: db, dialect: dialect, lockTimeout: lockTimeout}
}

// DB exposes the pool, for migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func nullBody(b json.RawMessage) sql.NullString {
	b = message.Body(b)
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func (s *Store) insert(ctx context.Context, q querier, d storage.Draft) (int64, error) {
	args := []any{d.Queue, d.Subject, message.StatusPending.Code(), d.TimeStart.UTC(), nullBody(d.RequestBody)}
	const stmt = `INSERT INTO message (queue, subject, status, timeStart, requestBody) VALUES (?, ?, ?, ?, ?)`

	if s.dialect == DialectPostgres {
		var msgID int64
		if err := q.QueryRowContext(ctx, s.dialect.rebind(stmt+` RETURNING id`), args...).Scan(&msgID); err != nil {
			return 0, pkgerrors.Wrap(err, "failed to insert message")
		}
		return msgID, nil
	}
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to insert message")
	}
	msgID, err := res.LastInsertId()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to read inserted id")
	}
	return msgID, nil
}

func (s *Store) Insert(ctx context.Context, d storage.Draft) (int64, error) {
	return s.insert(ctx, s.db, d)
}

func subjectLockName(queue, subject string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(queue))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(subject))
	return fmt.Sprintf("drumbeat:%x", h.Sum64())
}

// InsertExclusive serialises check and insert per (queue, subject) with a
// database lock: a transaction scoped advisory lock on PostgreSQL, a named
// session lock on MySQL.
func (s *Store) InsertExclusive(ctx context.Context, d storage.Draft) (int64, error) {
	lockName := subjectLockName(d.Queue, d.Subject)

	if s.dialect == DialectPostgres {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, pkgerrors.Wrap(err, "failed to begin transaction")
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockName); err != nil {
			return 0, pkgerrors.Wrap(err, "failed to acquire subject lock")
		}
		msgID, err := s.insertIfAbsent(ctx, tx, d)
		if err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, pkgerrors.Wrap(err, "failed to commit insert")
		}
		return msgID, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to acquire connection")
	}
	defer conn.Close()

	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, lockName, int(s.lockTimeout.Seconds())).Scan(&got); err != nil {
		return 0, pkgerrors.Wrap(err, "failed to acquire subject lock")
	}
	if !got.Valid || got.Int64 != 1 {
		return 0, fmt.Errorf("sqlstore: timed out waiting for lock %s", lockName)
	}
	defer func() {
		// background context: the lock must be released even when ctx is done
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, lockName)
	}()
	return s.insertIfAbsent(ctx, conn, d)
}

func (s *Store) insertIfAbsent(ctx context.Context, q querier, d storage.Draft) (int64, error) {
	_, found, err := s.findPending(ctx, q, d.Queue, d.Subject)
	if err != nil {
		return 0, err
	}
	if found {
		return 0, message.ErrAlreadyScheduled
	}
	return s.insert(ctx, q, d)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (message.Message, error) {
	var (
		m        message.Message
		code     int
		timeEnd  sql.NullTime
		reqBody  sql.NullString
		respBody sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Queue, &m.Subject, &code, &m.TimeStart, &timeEnd, &reqBody, &respBody); err != nil {
		return message.Message{}, err
	}
	st, err := message.Decode(code)
	if err != nil {
		return message.Message{}, fmt.Errorf("message %d: %w", m.ID, err)
	}
	m.Status = st
	m.TimeStart = m.TimeStart.UTC()
	if timeEnd.Valid {
		te := timeEnd.Time.UTC()
		m.TimeEnd = &te
	}
	if reqBody.Valid {
		m.RequestBody = json.RawMessage(reqBody.String)
	}
	if respBody.Valid {
		m.ResponseBody = json.RawMessage(respBody.String)
	}
	return m, nil
}

func (s *Store) Get(ctx context.Context, msgID int64) (message.Message, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+columns+` FROM message WHERE id = ?`), msgID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return message.Message{}, message.ErrNotFound
	}
	if err != nil && !errors.Is(err, message.ErrCorruptState) {
		return message.Message{}, pkgerrors.Wrap(err, "failed to read message")
	}
	return m, err
}

func (s *Store) findPending(ctx context.Context, q querier, queue, subject string) (message.Message, bool, error) {
	row := q.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT `+columns+` FROM message WHERE queue = ? AND subject = ? AND status = ? ORDER BY id LIMIT 1`),
		queue, subject, message.StatusPending.Code())
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return message.Message{}, false, nil
	}
	if err != nil {
		return message.Message{}, false, pkgerrors.Wrap(err, "failed to look up pending message")
	}
	return m, true, nil
}

func (s *Store) FindPending(ctx context.Context, queue, subject string) (message.Message, bool, error) {
	return s.findPending(ctx, s.db, queue, subject)
}

func (s *Store) List(ctx context.Context, queue string, status *message.Status) ([]message.Message, error) {
	query := `SELECT ` + columns + ` FROM message WHERE queue = ?`
	args := []any{queue}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, status.Code())
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list messages")
	}
	defer rows.Close()

	out := make([]message.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to scan message")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list messages")
	}
	return out, nil
}

// Resolve is a conditional UPDATE guarded by status = pending; the affected
// row count tells whether this call won.
func (s *Store) Resolve(ctx context.Context, msgID int64, r storage.Resolution) (bool, error) {
	var (
		res sql.Result
		err error
	)
	pending := message.StatusPending.Code()
	if r.Status.IsFeedback() {
		var timeEnd sql.NullTime
		if r.TimeEnd != nil {
			timeEnd = sql.NullTime{Time: r.TimeEnd.UTC(), Valid: true}
		}
		res, err = s.db.ExecContext(ctx,
			s.dialect.rebind(`UPDATE message SET status = ?, timeEnd = ?, responseBody = ? WHERE id = ? AND status = ?`),
			r.Status.Code(), timeEnd, nullBody(r.ResponseBody), msgID, pending)
	} else {
		res, err = s.db.ExecContext(ctx,
			s.dialect.rebind(`UPDATE message SET status = ? WHERE id = ? AND status = ?`),
			r.Status.Code(), msgID, pending)
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to update message")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to read affected rows")
	}
	return n == 1, nil
}

func (s *Store) Delete(ctx context.Context, msgID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM message WHERE id = ?`), msgID)
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to delete message")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to read affected rows")
	}
	return n > 0, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
