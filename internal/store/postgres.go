package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flagdeck/flagdeck/flags"
)

// PostgresStore is a PostgreSQL implementation of Store. Flag documents,
// strategies and kill switches are stored as JSONB; per-environment
// state lives in flag_states.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store on an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const listFlagsSQL = `
SELECT f.doc, f.archived_at, s.enabled, s.strategy
FROM flags f
LEFT JOIN flag_states s ON s.flag_key = f.key AND s.env = $1
ORDER BY f.key`

func (p *PostgresStore) ListFlags(ctx context.Context, env string) ([]FlagRecord, error) {
	rows, err := p.pool.Query(ctx, listFlagsSQL, env)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	var recs []FlagRecord
	for rows.Next() {
		rec, err := scanFlagRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

const getFlagSQL = `
SELECT f.doc, f.archived_at, s.enabled, s.strategy
FROM flags f
LEFT JOIN flag_states s ON s.flag_key = f.key AND s.env = $2
WHERE f.key = $1`

func (p *PostgresStore) GetFlag(ctx context.Context, key, env string) (*FlagRecord, error) {
	row := p.pool.QueryRow(ctx, getFlagSQL, key, env)
	rec, err := scanFlagRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrFlagNotFound, key)
		}
		return nil, err
	}
	return &rec, nil
}

func (p *PostgresStore) ListKillSwitches(ctx context.Context) ([]flags.KillSwitch, error) {
	rows, err := p.pool.Query(ctx, `SELECT doc FROM kill_switches ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list kill switches: %w", err)
	}
	defer rows.Close()

	var out []flags.KillSwitch
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var ks flags.KillSwitch
		if err := json.Unmarshal(doc, &ks); err != nil {
			return nil, fmt.Errorf("decode kill switch: %w", err)
		}
		out = append(out, ks)
	}
	return out, rows.Err()
}

const upsertFlagSQL = `
INSERT INTO flags (key, doc, archived_at, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE
SET doc = EXCLUDED.doc, archived_at = EXCLUDED.archived_at, updated_at = now()`

const upsertStateSQL = `
INSERT INTO flag_states (flag_key, env, enabled, strategy, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (flag_key, env) DO UPDATE
SET enabled = EXCLUDED.enabled, strategy = EXCLUDED.strategy, updated_at = now()`

func (p *PostgresStore) UpsertFlag(ctx context.Context, env string, rec FlagRecord) error {
	if err := rec.Flag.Validate(); err != nil {
		return err
	}
	if rec.Strategy != nil {
		if err := rec.Strategy.Validate(); err != nil {
			return err
		}
	}

	doc, err := json.Marshal(rec.Flag)
	if err != nil {
		return err
	}

	archived := pgtype.Timestamptz{}
	if rec.Flag.ArchivedAt != nil {
		archived = pgtype.Timestamptz{Time: *rec.Flag.ArchivedAt, Valid: true}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("upsert flag: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, upsertFlagSQL, rec.Flag.Key, doc, archived); err != nil {
		return fmt.Errorf("upsert flag %s: %w", rec.Flag.Key, err)
	}

	if rec.Config != nil {
		var strategy []byte
		if rec.Strategy != nil {
			strategy, err = json.Marshal(rec.Strategy)
			if err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, upsertStateSQL, rec.Flag.Key, env, rec.Config.Enabled, strategy); err != nil {
			return fmt.Errorf("upsert flag state %s/%s: %w", rec.Flag.Key, env, err)
		}
	}

	return tx.Commit(ctx)
}

func (p *PostgresStore) SetFlagArchived(ctx context.Context, key string, archived bool) error {
	var sql string
	if archived {
		sql = `UPDATE flags SET archived_at = now(), updated_at = now() WHERE key = $1`
	} else {
		sql = `UPDATE flags SET archived_at = NULL, updated_at = now() WHERE key = $1`
	}
	tag, err := p.pool.Exec(ctx, sql, key)
	if err != nil {
		return fmt.Errorf("archive flag %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrFlagNotFound, key)
	}
	return nil
}

const upsertKillSwitchSQL = `
INSERT INTO kill_switches (key, doc, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE
SET doc = EXCLUDED.doc, updated_at = now()`

func (p *PostgresStore) UpsertKillSwitch(ctx context.Context, ks flags.KillSwitch) error {
	if ks.Key == "" {
		return fmt.Errorf("kill switch key is required")
	}
	doc, err := json.Marshal(ks)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, upsertKillSwitchSQL, ks.Key, doc); err != nil {
		return fmt.Errorf("upsert kill switch %s: %w", ks.Key, err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// scanFlagRecord decodes one row of the flags/flag_states join.
func scanFlagRecord(row pgx.Row) (FlagRecord, error) {
	var (
		doc      []byte
		archived pgtype.Timestamptz
		enabled  pgtype.Bool
		strategy []byte
	)
	if err := row.Scan(&doc, &archived, &enabled, &strategy); err != nil {
		return FlagRecord{}, err
	}

	var rec FlagRecord
	if err := json.Unmarshal(doc, &rec.Flag); err != nil {
		return FlagRecord{}, fmt.Errorf("decode flag: %w", err)
	}
	if archived.Valid {
		t := archived.Time
		rec.Flag.ArchivedAt = &t
	}
	if enabled.Valid {
		rec.Config = &flags.FlagConfig{Enabled: enabled.Bool}
		if len(strategy) > 0 {
			var strat flags.Strategy
			if err := json.Unmarshal(strategy, &strat); err != nil {
				return FlagRecord{}, fmt.Errorf("decode strategy: %w", err)
			}
			rec.Strategy = &strat
			rec.Config.StrategyID = &strat.ID
		}
	}
	return rec, nil
}
