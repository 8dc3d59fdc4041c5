// Package store provides crash-safe, transactional persistence for
// cross-market opportunities and the raw signal stream the collector
// ingests, backed by modernc.org/sqlite. Grounded on stadam23-Eve-flipper's
// versioned schema_version migration pattern, generalized from a
// single-process cache to the append-only record stream and settlement
// repository this engine needs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/andrew-starosciak/polymarket-binary-engine/internal/money"
	"github.com/andrew-starosciak/polymarket-binary-engine/pkg/types"
)

// Store wraps a sqlite connection providing every repository this engine
// persists to: cross-market opportunities (the settlement resolver's
// Repository) and the collector's raw signal stream.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at databaseURL and runs
// migrations. databaseURL may be a bare filesystem path or a
// "sqlite://path" / "sqlite:path" URL, matching how DATABASE_URL is
// conventionally shaped.
func Open(databaseURL string) (*Store, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite://"), "sqlite:")
	if path == "" {
		return nil, fmt.Errorf("store: empty database path")
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	version := 0
	s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS cross_market_opportunity (
				id                     TEXT PRIMARY KEY,
				leg1_token_id          TEXT NOT NULL,
				leg2_token_id          TEXT NOT NULL,
				leg1_coin              TEXT NOT NULL,
				leg2_coin              TEXT NOT NULL,
				leg1_direction         TEXT NOT NULL,
				leg2_direction         TEXT NOT NULL,
				expected_leg1_outcome  TEXT NOT NULL,
				expected_leg2_outcome  TEXT NOT NULL,
				realized_leg1_outcome  TEXT,
				realized_leg2_outcome  TEXT,
				total_cost             TEXT NOT NULL,
				realized_pnl           TEXT,
				detected_at            INTEGER NOT NULL,
				window_end_ms          INTEGER NOT NULL,
				settled_at             INTEGER,
				correlation_correct    INTEGER,
				expired                INTEGER NOT NULL DEFAULT 0,
				approximate            INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_cmo_pending ON cross_market_opportunity(settled_at, expired);

			CREATE TABLE IF NOT EXISTS signal_record (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				kind       TEXT NOT NULL,
				ts_ms      INTEGER NOT NULL,
				payload    TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_signal_kind_ts ON signal_record(kind, ts_ms);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// ————————————————————————————————————————————————————————————————————
// Cross-market opportunity repository (settlement.Repository)
// ————————————————————————————————————————————————————————————————————

// InsertOpportunity persists a newly detected opportunity, prior to
// settlement.
func (s *Store) InsertOpportunity(ctx context.Context, opp types.CrossMarketOpportunity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cross_market_opportunity (
			id, leg1_token_id, leg2_token_id, leg1_coin, leg2_coin,
			leg1_direction, leg2_direction, expected_leg1_outcome, expected_leg2_outcome,
			total_cost, detected_at, window_end_ms, expired, approximate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
	`,
		opp.ID.String(), opp.Leg1TokenID, opp.Leg2TokenID, string(opp.Leg1Coin), string(opp.Leg2Coin),
		string(opp.Leg1Direction), string(opp.Leg2Direction), string(opp.ExpectedLeg1Outcome), string(opp.ExpectedLeg2Outcome),
		opp.TotalCost.String(), opp.DetectedAt, opp.WindowEndMs,
	)
	if err != nil {
		return fmt.Errorf("store: insert opportunity: %w", err)
	}
	return nil
}

// PendingOpportunities returns every opportunity not yet settled or
// expired. now is accepted for interface symmetry with the resolver's
// staleness check, which is applied by the caller.
func (s *Store) PendingOpportunities(ctx context.Context, now int64) ([]types.CrossMarketOpportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, leg1_token_id, leg2_token_id, leg1_coin, leg2_coin,
		       leg1_direction, leg2_direction, expected_leg1_outcome, expected_leg2_outcome,
		       total_cost, detected_at, window_end_ms
		  FROM cross_market_opportunity
		 WHERE settled_at IS NULL AND expired = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("store: pending opportunities: %w", err)
	}
	defer rows.Close()

	var out []types.CrossMarketOpportunity
	for rows.Next() {
		var opp types.CrossMarketOpportunity
		var id, leg1Coin, leg2Coin, leg1Dir, leg2Dir, expected1, expected2, totalCost string
		if err := rows.Scan(&id, &opp.Leg1TokenID, &opp.Leg2TokenID, &leg1Coin, &leg2Coin,
			&leg1Dir, &leg2Dir, &expected1, &expected2, &totalCost, &opp.DetectedAt, &opp.WindowEndMs); err != nil {
			return nil, fmt.Errorf("store: scan opportunity: %w", err)
		}
		parsedID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("store: parse opportunity id: %w", err)
		}
		opp.ID = parsedID
		opp.Leg1Coin = types.Coin(leg1Coin)
		opp.Leg2Coin = types.Coin(leg2Coin)
		opp.Leg1Direction = types.Direction(leg1Dir)
		opp.Leg2Direction = types.Direction(leg2Dir)
		opp.ExpectedLeg1Outcome = types.Outcome(expected1)
		opp.ExpectedLeg2Outcome = types.Outcome(expected2)
		cost, err := money.NewFromString(totalCost)
		if err != nil {
			return nil, fmt.Errorf("store: parse total_cost: %w", err)
		}
		opp.TotalCost = cost
		out = append(out, opp)
	}
	return out, rows.Err()
}

// SaveOpportunity upserts the settlement/expiry state of an opportunity
// already persisted by InsertOpportunity.
func (s *Store) SaveOpportunity(ctx context.Context, opp types.CrossMarketOpportunity) error {
	var realized1, realized2 *string
	if opp.RealizedLeg1Outcome != nil {
		v := string(*opp.RealizedLeg1Outcome)
		realized1 = &v
	}
	if opp.RealizedLeg2Outcome != nil {
		v := string(*opp.RealizedLeg2Outcome)
		realized2 = &v
	}
	var pnl *string
	if opp.RealizedPnL != nil {
		v := opp.RealizedPnL.String()
		pnl = &v
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE cross_market_opportunity
		   SET realized_leg1_outcome = ?,
		       realized_leg2_outcome = ?,
		       realized_pnl = ?,
		       settled_at = ?,
		       correlation_correct = ?,
		       expired = ?,
		       approximate = ?
		 WHERE id = ?
	`,
		realized1, realized2, pnl, opp.SettledAt, boolPtrToInt(opp.CorrelationCorrect), boolToInt(opp.Expired), boolToInt(opp.Approximate),
		opp.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("store: save opportunity: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolPtrToInt(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

// ————————————————————————————————————————————————————————————————————
// Signal record batch insert (collector sinks)
// ————————————————————————————————————————————————————————————————————

// SignalRecord is one collector record of any kind, stored as an
// opaque JSON payload tagged by kind and timestamp. A single generic
// table is deliberately used in place of one schema per record kind
// (order book, funding, liquidations, trade ticks, CVD, odds, news):
// the collector's sinks all share the same batch-or-flush write path,
// and downstream analysis reads back by kind, so one wide append-only
// log serves every producer without six near-identical tables.
type SignalRecord struct {
	Kind      string
	TimestampMs int64
	Payload   string // JSON-encoded record body
}

// InsertSignalBatch inserts records in a single transaction, matching
// the collector sink's batch-of-100-or-5s-flush cadence.
func (s *Store) InsertSignalBatch(ctx context.Context, records []SignalRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO signal_record (kind, ts_ms, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Kind, r.TimestampMs, r.Payload); err != nil {
			return fmt.Errorf("store: insert signal record: %w", err)
		}
	}
	return tx.Commit()
}

// RecentSignals returns up to limit records of the given kind, most
// recent first.
func (s *Store) RecentSignals(ctx context.Context, kind string, limit int) ([]SignalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, ts_ms, payload FROM signal_record
		 WHERE kind = ?
		 ORDER BY ts_ms DESC
		 LIMIT ?
	`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent signals: %w", err)
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var r SignalRecord
		if err := rows.Scan(&r.Kind, &r.TimestampMs, &r.Payload); err != nil {
			return nil, fmt.Errorf("store: scan signal record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WaitForHealthy blocks until the database responds or ctx is done,
// used at startup before the collector begins accepting sink writes.
func (s *Store) WaitForHealthy(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := s.db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
