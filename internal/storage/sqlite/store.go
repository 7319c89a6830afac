// Package sqlite stores harvest records in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/metrics"
)

//go:embed schema.sql
var schema string

// Store implements harvest.Store on SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ harvest.Store = (*Store)(nil)

// Open creates the database file (and its directory) if needed and applies
// the schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps :memory: databases alive across calls and
	// serializes writers.
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies the schema.
func New(ctx context.Context, db *sql.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes the summary row and replaces every child row for the date in a
// single transaction. Nothing is written when any statement fails.
func (s *Store) Save(ctx context.Context, rec harvest.DailyHarvestRecord) (err error) {
	day, err := rec.CheckedDay()
	if err != nil {
		metrics.ObserveSave("invalid")
		return err
	}
	snapshot, err := harvest.EncodeSnapshot(rec)
	if err != nil {
		metrics.ObserveSave("invalid")
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.ObserveSave("error")
		return fmt.Errorf("begin save %s: %w", rec.RunDate, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", zap.String("run_date", rec.RunDate), zap.Error(rbErr))
		}
		metrics.ObserveSave("rolled_back")
	}()

	if err = writeRecord(ctx, tx, rec, day, snapshot); err != nil {
		return fmt.Errorf("save %s: %w", rec.RunDate, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save %s: %w", rec.RunDate, err)
	}
	metrics.ObserveSave("ok")
	s.logger.Debug("record saved",
		zap.String("run_date", rec.RunDate),
		zap.Int("districts", len(rec.Districts)),
		zap.Int("rivers", len(rec.Rivers)),
		zap.Int("sockeye", len(rec.SockeyePerDelivery)),
	)
	return nil
}

const upsertSummary = `
INSERT INTO daily_summary (
	run_date, run_day, season, scraped_at,
	catch_daily, catch_cumulative, escapement_daily, escapement_cumulative,
	in_river_estimate, total_run, record_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_date) DO UPDATE SET
	run_day = excluded.run_day,
	season = excluded.season,
	scraped_at = excluded.scraped_at,
	catch_daily = excluded.catch_daily,
	catch_cumulative = excluded.catch_cumulative,
	escapement_daily = excluded.escapement_daily,
	escapement_cumulative = excluded.escapement_cumulative,
	in_river_estimate = excluded.in_river_estimate,
	total_run = excluded.total_run,
	record_json = excluded.record_json`

const upsertDistrict = `
INSERT INTO district_observations (
	run_date, district_id, district_name,
	catch_daily, catch_cumulative, escapement_daily, escapement_cumulative,
	in_river_estimate, total_run
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_date, district_id) DO UPDATE SET
	district_name = excluded.district_name,
	catch_daily = excluded.catch_daily,
	catch_cumulative = excluded.catch_cumulative,
	escapement_daily = excluded.escapement_daily,
	escapement_cumulative = excluded.escapement_cumulative,
	in_river_estimate = excluded.in_river_estimate,
	total_run = excluded.total_run`

const upsertRiver = `
INSERT INTO river_observations (
	run_date, river_name, escapement_daily, escapement_cumulative, in_river_estimate
) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (run_date, river_name) DO UPDATE SET
	escapement_daily = excluded.escapement_daily,
	escapement_cumulative = excluded.escapement_cumulative,
	in_river_estimate = excluded.in_river_estimate`

const upsertSockeye = `
INSERT INTO sockeye_per_delivery (run_date, district_id, avg_per_delivery)
VALUES (?, ?, ?)
ON CONFLICT (run_date, district_id) DO UPDATE SET
	avg_per_delivery = excluded.avg_per_delivery`

var childTables = []string{"district_observations", "river_observations", "sockeye_per_delivery"}

func writeRecord(ctx context.Context, tx *sql.Tx, rec harvest.DailyHarvestRecord, day time.Time, snapshot []byte) error {
	sum := rec.TotalRunSummary
	if _, err := tx.ExecContext(ctx, upsertSummary,
		rec.RunDate, harvest.SortKey(day), rec.Season, rec.ScrapedAt.UTC().Format(time.RFC3339Nano),
		sum.CatchDaily, sum.CatchCumulative, sum.EscapementDaily, sum.EscapementCumulative,
		sum.InRiverEstimate, sum.TotalRun, string(snapshot),
	); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	for _, table := range childTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_date = ?", rec.RunDate); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, d := range rec.Districts {
		if _, err := tx.ExecContext(ctx, upsertDistrict,
			rec.RunDate, d.ID, d.Name,
			d.CatchDaily, d.CatchCumulative, d.EscapementDaily, d.EscapementCumulative,
			d.InRiverEstimate, d.TotalRun,
		); err != nil {
			return fmt.Errorf("upsert district %q: %w", d.ID, err)
		}
	}
	for _, r := range rec.Rivers {
		if _, err := tx.ExecContext(ctx, upsertRiver,
			rec.RunDate, r.Name, r.EscapementDaily, r.EscapementCumulative, r.InRiverEstimate,
		); err != nil {
			return fmt.Errorf("upsert river %q: %w", r.Name, err)
		}
	}
	for id, avg := range rec.SockeyePerDelivery {
		if _, err := tx.ExecContext(ctx, upsertSockeye, rec.RunDate, id, avg); err != nil {
			return fmt.Errorf("upsert sockeye %q: %w", id, err)
		}
	}
	return nil
}

// Get returns the record for runDate with its sockeye map re-joined.
func (s *Store) Get(ctx context.Context, runDate string) (harvest.DailyHarvestRecord, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		"SELECT record_json FROM daily_summary WHERE run_date = ?", runDate,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("%s: %w", runDate, harvest.ErrNotFound)
	}
	if err != nil {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("get %s: %w", runDate, err)
	}
	rec, err := harvest.DecodeSnapshot([]byte(snapshot))
	if err != nil {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("get %s: %w", runDate, err)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT district_id, avg_per_delivery FROM sockeye_per_delivery WHERE run_date = ?", runDate,
	)
	if err != nil {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("get sockeye %s: %w", runDate, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var avg float64
		if err := rows.Scan(&id, &avg); err != nil {
			return harvest.DailyHarvestRecord{}, fmt.Errorf("scan sockeye %s: %w", runDate, err)
		}
		rec.SockeyePerDelivery[id] = avg
	}
	if err := rows.Err(); err != nil {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("get sockeye %s: %w", runDate, err)
	}
	return rec, nil
}

// Latest returns the record with the most recent run date.
func (s *Store) Latest(ctx context.Context) (harvest.DailyHarvestRecord, error) {
	var runDate string
	err := s.db.QueryRowContext(ctx,
		"SELECT run_date FROM daily_summary ORDER BY run_day DESC LIMIT 1",
	).Scan(&runDate)
	if errors.Is(err, sql.ErrNoRows) {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("latest: %w", harvest.ErrNotFound)
	}
	if err != nil {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("latest: %w", err)
	}
	return s.Get(ctx, runDate)
}

// ListDates returns run dates newest first. Season 0 lists every season.
func (s *Store) ListDates(ctx context.Context, season int) ([]string, error) {
	return s.queryStrings(ctx,
		"SELECT run_date FROM daily_summary WHERE (? = 0 OR season = ?) ORDER BY run_day DESC",
		season, season,
	)
}

// SeasonDates returns a season's run dates oldest first.
func (s *Store) SeasonDates(ctx context.Context, season int) ([]string, error) {
	return s.queryStrings(ctx,
		"SELECT run_date FROM daily_summary WHERE season = ? ORDER BY run_day ASC",
		season,
	)
}

// ListSeasons returns the distinct seasons present, newest first.
func (s *Store) ListSeasons(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT season FROM daily_summary ORDER BY season DESC")
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	defer rows.Close()
	seasons := []int{}
	for rows.Next() {
		var season int
		if err := rows.Scan(&season); err != nil {
			return nil, fmt.Errorf("scan season: %w", err)
		}
		seasons = append(seasons, season)
	}
	return seasons, rows.Err()
}

// Range returns every record with start <= day <= end, oldest first.
func (s *Store) Range(ctx context.Context, start, end time.Time) ([]harvest.DailyHarvestRecord, error) {
	from, to := harvest.SortKey(start), harvest.SortKey(end)
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_date, record_json FROM daily_summary WHERE run_day BETWEEN ? AND ? ORDER BY run_day ASC",
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("range %s..%s: %w", from, to, err)
	}
	records := []harvest.DailyHarvestRecord{}
	index := map[string]int{}
	for rows.Next() {
		var runDate, snapshot string
		if err := rows.Scan(&runDate, &snapshot); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan range row: %w", err)
		}
		rec, err := harvest.DecodeSnapshot([]byte(snapshot))
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("range %s: %w", runDate, err)
		}
		index[runDate] = len(records)
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range %s..%s: %w", from, to, err)
	}
	if len(records) == 0 {
		return records, nil
	}

	sockeye, err := s.db.QueryContext(ctx, `
SELECT p.run_date, p.district_id, p.avg_per_delivery
FROM sockeye_per_delivery p
JOIN daily_summary d ON d.run_date = p.run_date
WHERE d.run_day BETWEEN ? AND ?`, from, to)
	if err != nil {
		return nil, fmt.Errorf("range sockeye: %w", err)
	}
	defer sockeye.Close()
	for sockeye.Next() {
		var runDate, id string
		var avg float64
		if err := sockeye.Scan(&runDate, &id, &avg); err != nil {
			return nil, fmt.Errorf("scan range sockeye: %w", err)
		}
		if i, ok := index[runDate]; ok {
			records[i].SockeyePerDelivery[id] = avg
		}
	}
	return records, sockeye.Err()
}

// Delete removes a date and all of its child rows.
func (s *Store) Delete(ctx context.Context, runDate string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete %s: %w", runDate, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, table := range childTables {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_date = ?", runDate); err != nil {
			return fmt.Errorf("delete %s from %s: %w", runDate, table, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM daily_summary WHERE run_date = ?", runDate)
	if err != nil {
		return fmt.Errorf("delete %s: %w", runDate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", runDate, err)
	}
	if n == 0 {
		err = fmt.Errorf("%s: %w", runDate, harvest.ErrNotFound)
		return err
	}
	return tx.Commit()
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
