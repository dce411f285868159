// Package archive keeps dated comparison snapshots in SQLite so past days
// can be re-evaluated without the original CSV files.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/identity"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

const defaultPath = "data/tennis_edge.db"

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate ensures the snapshot table exists.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS comparisons (
	snapshot_date TEXT NOT NULL,
	position INTEGER NOT NULL,
	tournament_name TEXT NOT NULL,
	tournament_key TEXT NOT NULL,
	round TEXT,
	player1_name TEXT NOT NULL,
	player1_key TEXT NOT NULL,
	player2_name TEXT NOT NULL,
	player2_key TEXT NOT NULL,
	player1_prob REAL NOT NULL,
	player2_prob REAL NOT NULL,
	player1_odds REAL NOT NULL,
	player2_odds REAL NOT NULL,
	book_p1_odds REAL,
	book_p2_odds REAL,
	book_p1_prob REAL,
	book_p2_prob REAL,
	p1_spread REAL,
	p2_spread REAL,
	p1_rel_spread REAL,
	p2_rel_spread REAL,
	join_phase TEXT NOT NULL,
	source_url TEXT,
	PRIMARY KEY (snapshot_date, position)
);
CREATE INDEX IF NOT EXISTS comparisons_match_idx ON comparisons(snapshot_date, tournament_key, player1_key, player2_key);
`

const insertSQL = `
INSERT INTO comparisons (
	snapshot_date, position, tournament_name, tournament_key, round,
	player1_name, player1_key, player2_name, player2_key,
	player1_prob, player2_prob, player1_odds, player2_odds,
	book_p1_odds, book_p2_odds, book_p1_prob, book_p2_prob,
	p1_spread, p2_spread, p1_rel_spread, p2_rel_spread,
	join_phase, source_url
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`

// SaveComparison replaces the snapshot stored for date with rows. Re-running
// a day therefore leaves exactly one snapshot behind.
func (s *Store) SaveComparison(ctx context.Context, date time.Time, rows []odds.ComparisonRow) error {
	day := date.Format(odds.DateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comparisons WHERE snapshot_date = ?`, day); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear snapshot %s: %w", day, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, r := range rows {
		_, err := stmt.ExecContext(ctx,
			day, i,
			r.Tournament.Display, string(r.Tournament.Key), string(r.Round),
			r.Player1.Display, string(r.Player1.Key),
			r.Player2.Display, string(r.Player2.Key),
			r.Player1WinProb, r.Player2WinProb, r.Player1Odds, r.Player2Odds,
			nullable(r.BookP1Odds), nullable(r.BookP2Odds),
			nullable(r.BookP1Prob), nullable(r.BookP2Prob),
			nullable(r.P1Spread), nullable(r.P2Spread),
			nullable(r.P1RelSpread), nullable(r.P2RelSpread),
			string(r.Phase), r.SourceURL,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert row %d of %s: %w", i, day, err)
		}
	}
	return tx.Commit()
}

// LoadComparison returns the snapshot stored for date in its original order.
// A date without a snapshot yields no rows.
func (s *Store) LoadComparison(ctx context.Context, date time.Time) ([]odds.ComparisonRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tournament_name, tournament_key, round,
	player1_name, player1_key, player2_name, player2_key,
	player1_prob, player2_prob, player1_odds, player2_odds,
	book_p1_odds, book_p2_odds, book_p1_prob, book_p2_prob,
	p1_spread, p2_spread, p1_rel_spread, p2_rel_spread,
	join_phase, source_url
FROM comparisons WHERE snapshot_date = ? ORDER BY position`, date.Format(odds.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []odds.ComparisonRow
	for rows.Next() {
		var (
			r                                odds.ComparisonRow
			tKey, p1Key, p2Key, round, phase string
			url                              sql.NullString
			bookP1, bookP2, probP1, probP2   sql.NullFloat64
			spreadP1, spreadP2, relP1, relP2 sql.NullFloat64
		)
		if err := rows.Scan(
			&r.Tournament.Display, &tKey, &round,
			&r.Player1.Display, &p1Key, &r.Player2.Display, &p2Key,
			&r.Player1WinProb, &r.Player2WinProb, &r.Player1Odds, &r.Player2Odds,
			&bookP1, &bookP2, &probP1, &probP2,
			&spreadP1, &spreadP2, &relP1, &relP2,
			&phase, &url,
		); err != nil {
			return nil, err
		}
		r.Tournament.Key = identity.Key(tKey)
		r.Player1.Key = identity.Key(p1Key)
		r.Player2.Key = identity.Key(p2Key)
		r.Round = odds.Round(round)
		r.Phase = odds.JoinPhase(phase)
		r.SourceURL = url.String
		r.BookP1Odds, r.BookP2Odds = fromNull(bookP1), fromNull(bookP2)
		r.BookP1Prob, r.BookP2Prob = fromNull(probP1), fromNull(probP2)
		r.P1Spread, r.P2Spread = fromNull(spreadP1), fromNull(spreadP2)
		r.P1RelSpread, r.P2RelSpread = fromNull(relP1), fromNull(relP2)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Dates lists the archived snapshot dates, oldest first.
func (s *Store) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT snapshot_date FROM comparisons ORDER BY snapshot_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := time.Parse(odds.DateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("bad snapshot date %q: %w", raw, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func nullable(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return odds.Float(n.Float64)
}
