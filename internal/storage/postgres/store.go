// Package postgres provides a Postgres-backed harvest store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/metrics"
)

//go:embed schema.sql
var schema string

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store needs. pgxmock satisfies it.
type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store implements harvest.Store on Postgres.
type Store struct {
	pool   pool
	logger *zap.Logger
}

var _ harvest.Store = (*Store)(nil)

// NewStore connects to Postgres and applies the schema.
func NewStore(ctx context.Context, cfg StoreConfig, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewStoreWithPool(p, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(p pool, logger *zap.Logger) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: p, logger: logger}, nil
}

// Migrate creates the tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

const upsertSummary = `
INSERT INTO daily_summary (
	run_date, run_day, season, scraped_at,
	catch_daily, catch_cumulative, escapement_daily, escapement_cumulative,
	in_river_estimate, total_run, record_json
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (run_date) DO UPDATE SET
	run_day = EXCLUDED.run_day,
	season = EXCLUDED.season,
	scraped_at = EXCLUDED.scraped_at,
	catch_daily = EXCLUDED.catch_daily,
	catch_cumulative = EXCLUDED.catch_cumulative,
	escapement_daily = EXCLUDED.escapement_daily,
	escapement_cumulative = EXCLUDED.escapement_cumulative,
	in_river_estimate = EXCLUDED.in_river_estimate,
	total_run = EXCLUDED.total_run,
	record_json = EXCLUDED.record_json`

const upsertDistrict = `
INSERT INTO district_observations (
	run_date, district_id, district_name,
	catch_daily, catch_cumulative, escapement_daily, escapement_cumulative,
	in_river_estimate, total_run
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (run_date, district_id) DO UPDATE SET
	district_name = EXCLUDED.district_name,
	catch_daily = EXCLUDED.catch_daily,
	catch_cumulative = EXCLUDED.catch_cumulative,
	escapement_daily = EXCLUDED.escapement_daily,
	escapement_cumulative = EXCLUDED.escapement_cumulative,
	in_river_estimate = EXCLUDED.in_river_estimate,
	total_run = EXCLUDED.total_run`

const upsertRiver = `
INSERT INTO river_observations (
	run_date, river_name, escapement_daily, escapement_cumulative, in_river_estimate
) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (run_date, river_name) DO UPDATE SET
	escapement_daily = EXCLUDED.escapement_daily,
	escapement_cumulative = EXCLUDED.escapement_cumulative,
	in_river_estimate = EXCLUDED.in_river_estimate`

const upsertSockeye = `
INSERT INTO sockeye_per_delivery (run_date, district_id, avg_per_delivery)
VALUES ($1, $2, $3)
ON CONFLICT (run_date, district_id) DO UPDATE SET
	avg_per_delivery = EXCLUDED.avg_per_delivery`

var childTables = []string{"district_observations", "river_observations", "sockeye_per_delivery"}

// Save writes the summary row and replaces every child row for the date in
// one transaction.
func (s *Store) Save(ctx context.Context, rec harvest.DailyHarvestRecord) error {
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
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		metrics.ObserveSave("error")
		return fmt.Errorf("begin save %s: %w", rec.RunDate, err)
	}
	if err := writeRecord(ctx, tx, rec, day, snapshot); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Warn("rollback failed", zap.String("run_date", rec.RunDate), zap.Error(rbErr))
		}
		metrics.ObserveSave("rolled_back")
		return fmt.Errorf("save %s: %w", rec.RunDate, err)
	}
	if err := tx.Commit(ctx); err != nil {
		metrics.ObserveSave("rolled_back")
		return fmt.Errorf("commit save %s: %w", rec.RunDate, err)
	}
	metrics.ObserveSave("ok")
	return nil
}

func writeRecord(ctx context.Context, tx pgx.Tx, rec harvest.DailyHarvestRecord, day time.Time, snapshot []byte) error {
	sum := rec.TotalRunSummary
	if _, err := tx.Exec(ctx, upsertSummary,
		rec.RunDate, day, rec.Season, rec.ScrapedAt.UTC(),
		sum.CatchDaily, sum.CatchCumulative, sum.EscapementDaily, sum.EscapementCumulative,
		sum.InRiverEstimate, sum.TotalRun, snapshot,
	); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	for _, table := range childTables {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE run_date = $1", rec.RunDate); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, d := range rec.Districts {
		if _, err := tx.Exec(ctx, upsertDistrict,
			rec.RunDate, d.ID, d.Name,
			d.CatchDaily, d.CatchCumulative, d.EscapementDaily, d.EscapementCumulative,
			d.InRiverEstimate, d.TotalRun,
		); err != nil {
			return fmt.Errorf("upsert district %q: %w", d.ID, err)
		}
	}
	for _, r := range rec.Rivers {
		if _, err := tx.Exec(ctx, upsertRiver,
			rec.RunDate, r.Name, r.EscapementDaily, r.EscapementCumulative, r.InRiverEstimate,
		); err != nil {
			return fmt.Errorf("upsert river %q: %w", r.Name, err)
		}
	}
	// Sorted so the statement order is stable.
	ids := make([]string, 0, len(rec.SockeyePerDelivery))
	for id := range rec.SockeyePerDelivery {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := tx.Exec(ctx, upsertSockeye, rec.RunDate, id, rec.SockeyePerDelivery[id]); err != nil {
			return fmt.Errorf("upsert sockeye %q: %w", id, err)
		}
	}
	return nil
}

// Get returns the record for runDate with its sockeye map re-joined.
func (s *Store) Get(ctx context.Context, runDate string) (harvest.DailyHarvestRecord, error) {
	var snapshot []byte
	err := s.pool.QueryRow(ctx,
		"SELECT record_json FROM daily_summary WHERE run_date = $1", runDate,
	).Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("%s: %w", runDate, harvest.ErrNotFound)
	}
	if err != nil {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("get %s: %w", runDate, err)
	}
	rec, err := harvest.DecodeSnapshot(snapshot)
	if err != nil {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("get %s: %w", runDate, err)
	}
	rows, err := s.pool.Query(ctx,
		"SELECT district_id, avg_per_delivery FROM sockeye_per_delivery WHERE run_date = $1", runDate,
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
	err := s.pool.QueryRow(ctx,
		"SELECT run_date FROM daily_summary ORDER BY run_day DESC LIMIT 1",
	).Scan(&runDate)
	if errors.Is(err, pgx.ErrNoRows) {
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
		"SELECT run_date FROM daily_summary WHERE ($1::int = 0 OR season = $1) ORDER BY run_day DESC",
		season,
	)
}

// SeasonDates returns a season's run dates oldest first.
func (s *Store) SeasonDates(ctx context.Context, season int) ([]string, error) {
	return s.queryStrings(ctx,
		"SELECT run_date FROM daily_summary WHERE season = $1 ORDER BY run_day ASC",
		season,
	)
}

// ListSeasons returns the distinct seasons present, newest first.
func (s *Store) ListSeasons(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT season FROM daily_summary ORDER BY season DESC")
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
	start, end = harvest.Midnight(start), harvest.Midnight(end)
	rows, err := s.pool.Query(ctx,
		"SELECT run_date, record_json FROM daily_summary WHERE run_day BETWEEN $1 AND $2 ORDER BY run_day ASC",
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}
	records := []harvest.DailyHarvestRecord{}
	index := map[string]int{}
	for rows.Next() {
		var runDate string
		var snapshot []byte
		if err := rows.Scan(&runDate, &snapshot); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan range row: %w", err)
		}
		rec, err := harvest.DecodeSnapshot(snapshot)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("range %s: %w", runDate, err)
		}
		index[runDate] = len(records)
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	sockeye, err := s.pool.Query(ctx, `
SELECT p.run_date, p.district_id, p.avg_per_delivery
FROM sockeye_per_delivery p
JOIN daily_summary d ON d.run_date = p.run_date
WHERE d.run_day BETWEEN $1 AND $2`, start, end)
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

// Delete removes a date. Child rows go with it through ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, runDate string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM daily_summary WHERE run_date = $1", runDate)
	if err != nil {
		return fmt.Errorf("delete %s: %w", runDate, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", runDate, harvest.ErrNotFound)
	}
	return nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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
