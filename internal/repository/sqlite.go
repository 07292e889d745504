package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"rates-app/internal/domain"
	"rates-app/internal/util"

	"github.com/mattn/go-sqlite3"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS rate_samples (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	char_code TEXT    NOT NULL CHECK (char_code <> ''),
	ts        INTEGER NOT NULL,
	value     REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_samples_code_ts ON rate_samples(char_code, ts);`

const pruneSQL = `
DELETE FROM rate_samples WHERE id IN (
	SELECT id FROM (
		SELECT id, ROW_NUMBER() OVER (
			PARTITION BY char_code ORDER BY ts DESC, id DESC
		) AS rn
		FROM rate_samples
	) WHERE rn > ?
)`

const historySQL = `
SELECT char_code, ts, value FROM (
	SELECT id, char_code, ts, value FROM rate_samples
	WHERE char_code = ?
	ORDER BY ts DESC, id DESC
	LIMIT ?
) ORDER BY ts ASC, id ASC`

type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
	logger *util.RatesLogger
}

var _ domain.RateStore = (*SQLiteStore)(nil)

func NewSQLiteStore(path string, logger *util.RatesLogger) *SQLiteStore {
	return &SQLiteStore{dbPath: path, logger: logger}
}

func (s *SQLiteStore) Init() error {
	var err error

	s.db, err = sql.Open("sqlite3", dsn(s.dbPath))
	if err != nil {
		return storeErr("open", fmt.Errorf("error opening database: %w", err))
	}

	if s.dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		s.db.SetMaxOpenConns(1)
	}

	if err = s.db.Ping(); err != nil {
		return storeErr("open", fmt.Errorf("error connecting to database: %w", err))
	}

	if _, err = s.db.Exec(createTableSQL); err != nil {
		return storeErr("migrate", fmt.Errorf("error creating table: %w", err))
	}

	s.logger.LogEvent(util.LOG_LEVEL_INFO, "SQLiteStore initialized. path -", s.dbPath)
	return nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_busy_timeout=5000"
}

func (s *SQLiteStore) Append(ctx context.Context, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, "append", func(tx *sql.Tx) error {
		return insertSamples(ctx, tx, samples)
	})
}

func (s *SQLiteStore) Prune(ctx context.Context, maxPoints int) error {
	if maxPoints <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, "prune", func(tx *sql.Tx) error {
		return pruneSamples(ctx, tx, maxPoints)
	})
}

func (s *SQLiteStore) Record(ctx context.Context, samples []domain.Sample, maxPoints int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, "record", func(tx *sql.Tx) error {
		if err := insertSamples(ctx, tx, samples); err != nil {
			return err
		}
		if maxPoints <= 0 {
			return nil
		}
		return pruneSamples(ctx, tx, maxPoints)
	})
}

func (s *SQLiteStore) History(ctx context.Context, charCode string, limit int) ([]domain.Sample, error) {
	if limit <= 0 {
		limit = -1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, historySQL, charCode, limit)
	if err != nil {
		return nil, storeErr("history", fmt.Errorf("error querying database: %w", err))
	}
	defer rows.Close()

	samples := make([]domain.Sample, 0)
	for rows.Next() {
		var (
			sample domain.Sample
			ts     int64
		)
		if err := rows.Scan(&sample.CharCode, &ts, &sample.Value); err != nil {
			return nil, storeErr("history", fmt.Errorf("error scanning row: %w", err))
		}
		sample.Timestamp = time.Unix(0, ts).UTC()
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("history", fmt.Errorf("error during rows iteration: %w", err))
	}
	return samples, nil
}

func (s *SQLiteStore) DistinctCodes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT char_code FROM rate_samples ORDER BY char_code ASC")
	if err != nil {
		return nil, storeErr("codes", fmt.Errorf("error querying database: %w", err))
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, storeErr("codes", fmt.Errorf("error scanning row: %w", err))
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("codes", fmt.Errorf("error during rows iteration: %w", err))
	}
	return codes, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// callers hold s.mu
func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return storeErr(op, errors.New("store is not initialized"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(op, fmt.Errorf("begin tx: %w", err))
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.LogEvent(util.LOG_LEVEL_ERROR, "rollback failed during", op, "Err -", rbErr)
		}
		return storeErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr(op, fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func insertSamples(ctx context.Context, tx *sql.Tx, samples []domain.Sample) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO rate_samples(char_code, ts, value) VALUES(?, ?, ?)")
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx, sample.CharCode, sample.Timestamp.UnixNano(), sample.Value); err != nil {
			return fmt.Errorf("error inserting sample %q: %w", sample.CharCode, err)
		}
	}
	return nil
}

func pruneSamples(ctx context.Context, tx *sql.Tx, maxPoints int) error {
	if _, err := tx.ExecContext(ctx, pruneSQL, maxPoints); err != nil {
		return fmt.Errorf("error pruning samples: %w", err)
	}
	return nil
}

func storeErr(op string, err error) error {
	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}

	kind := domain.IOFailure
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		kind = domain.ConstraintViolation
	}
	return &domain.StoreError{Kind: kind, Op: op, Err: err}
}
