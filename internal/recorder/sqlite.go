package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"RetireSentinel/internal/montecarlo"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so reports can read while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			year             INTEGER NOT NULL,
			regime           TEXT,
			withdrawal       REAL,
			flex_rate        REAL,
			cut_pct          REAL,
			action_type      TEXT,
			action_title     TEXT,
			target_liquidity REAL,
			liquidity        REAL,
			total_wealth     REAL,
			runway_months    REAL,
			runway_status    TEXT,
			coverage_before  REAL,
			coverage_after   REAL,
			alarm_active     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_year ON decisions(year)`,

		`CREATE TABLE IF NOT EXISTS simulation_runs (
			id                   TEXT PRIMARY KEY,
			timestamp            INTEGER NOT NULL,
			elapsed_ms           INTEGER,
			method               TEXT,
			runs                 INTEGER,
			seed                 INTEGER,
			stress_preset        TEXT,
			success_rate_pct     REAL,
			depletion_rate_pct   REAL,
			final_wealth_p10     REAL,
			final_wealth_p50     REAL,
			final_wealth_p90     REAL,
			max_drawdown_p50     REAL,
			max_drawdown_p90     REAL,
			car_p10_real         REAL,
			time_share_above_45  REAL,
			loss_carry_saved     REAL,
			summary_json         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON simulation_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS sweep_results (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id              TEXT NOT NULL,
			combo_index         INTEGER NOT NULL,
			combo_json          TEXT,
			success_prob_floor  REAL,
			p10_end_wealth      REAL,
			median_end_wealth   REAL,
			worst5_drawdown     REAL,
			min_runway_observed REAL,
			invalid             INTEGER,
			invalid_reason      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sweep_run ON sweep_results(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordDecision(d *Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO decisions
		(timestamp, year, regime, withdrawal, flex_rate, cut_pct,
		 action_type, action_title, target_liquidity, liquidity, total_wealth,
		 runway_months, runway_status, coverage_before, coverage_after, alarm_active)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), d.Year, d.Regime, d.Withdrawal, d.FlexRate, d.CutPct,
		d.ActionType, d.ActionTitle, d.TargetLiquidity, d.Liquidity, d.TotalWealth,
		d.RunwayMonths, d.RunwayStatus, d.CoverageBefore, d.CoverageAfter, d.AlarmActive,
	)
	return err
}

func (r *SQLiteRecorder) RecordSimulation(run *SimulationRun) error {
	if run == nil || run.Summary == nil {
		return fmt.Errorf("simulation run without summary")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s := run.Summary
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = r.db.Exec(`INSERT INTO simulation_runs
		(id, timestamp, elapsed_ms, method, runs, seed, stress_preset,
		 success_rate_pct, depletion_rate_pct,
		 final_wealth_p10, final_wealth_p50, final_wealth_p90,
		 max_drawdown_p50, max_drawdown_p90, car_p10_real,
		 time_share_above_45, loss_carry_saved, summary_json)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.Unix(), run.Elapsed.Milliseconds(),
		s.Method, s.Runs, s.Seed, s.StressPreset,
		s.SuccessRatePct, s.DepletionRatePct,
		s.FinalWealth.P10, s.FinalWealth.P50, s.FinalWealth.P90,
		s.MaxDrawdownP50, s.MaxDrawdownP90, s.CaRP10Real,
		s.TimeShareAbove45, s.LossCarrySaved, string(raw),
	)
	return err
}

func (r *SQLiteRecorder) RecordSweep(runID string, rows []montecarlo.SweepResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO sweep_results
		(run_id, combo_index, combo_json, success_prob_floor, p10_end_wealth,
		 median_end_wealth, worst5_drawdown, min_runway_observed, invalid, invalid_reason)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		combo, err := json.Marshal(row.Combo)
		if err != nil {
			return fmt.Errorf("encode combo %d: %w", row.ComboIndex, err)
		}
		m := row.Metrics
		if _, err := stmt.Exec(runID, row.ComboIndex, string(combo),
			m.SuccessProbFloor, m.P10EndWealth, m.MedianEndWealth,
			m.Worst5Drawdown, m.MinRunwayObserved, row.Invalid, row.InvalidReason,
		); err != nil {
			return fmt.Errorf("insert combo %d: %w", row.ComboIndex, err)
		}
	}
	return tx.Commit()
}

// RecentDecisions returns up to limit decisions, newest year first.
func (r *SQLiteRecorder) RecentDecisions(limit int) ([]Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT year, regime, withdrawal, flex_rate, cut_pct,
		action_type, action_title, target_liquidity, liquidity, total_wealth,
		runway_months, runway_status, coverage_before, coverage_after, alarm_active
		FROM decisions ORDER BY year DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.Year, &d.Regime, &d.Withdrawal, &d.FlexRate, &d.CutPct,
			&d.ActionType, &d.ActionTitle, &d.TargetLiquidity, &d.Liquidity, &d.TotalWealth,
			&d.RunwayMonths, &d.RunwayStatus, &d.CoverageBefore, &d.CoverageAfter, &d.AlarmActive,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
