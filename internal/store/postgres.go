package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/grantbridge/vetting-cli/internal/model"
)

// pgxPool is the subset of pgxpool.Pool the store uses, abstracted for
// testing with pgxmock.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS vetting_results (
	id          TEXT PRIMARY KEY,
	ein         TEXT NOT NULL,
	result      JSONB NOT NULL,
	vetted_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	attribution TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revocations (
	ein                TEXT PRIMARY KEY,
	legal_name         TEXT NOT NULL,
	city               TEXT,
	state              TEXT,
	revocation_date    TIMESTAMPTZ,
	reinstatement_date TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sanctions_entities (
	entity_number INTEGER PRIMARY KEY,
	name          TEXT NOT NULL,
	entity_type   TEXT NOT NULL,
	program       TEXT
);

CREATE TABLE IF NOT EXISTS sanctions_aliases (
	entity_number INTEGER NOT NULL REFERENCES sanctions_entities(entity_number),
	alias         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vetting_results_ein ON vetting_results(ein, vetted_at DESC);
CREATE INDEX IF NOT EXISTS idx_sanctions_aliases_entity ON sanctions_aliases(entity_number);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetLatest(ctx context.Context, ein string) (*model.CachedResult, error) {
	var cached model.CachedResult
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT result, vetted_at, attribution FROM vetting_results
		 WHERE ein = $1 ORDER BY vetted_at DESC LIMIT 1`,
		ein,
	).Scan(&resultJSON, &cached.VettedAt, &cached.Attribution)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get latest result %s", ein)
	}
	if err := json.Unmarshal(resultJSON, &cached.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached result")
	}
	return &cached, nil
}

func (s *PostgresStore) Save(ctx context.Context, result model.VettingResult, attribution string) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO vetting_results (id, ein, result, vetted_at, attribution) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), result.EIN, resultJSON, time.Now().UTC(), attribution,
	)
	return eris.Wrapf(err, "postgres: save result %s", result.EIN)
}

func (s *PostgresStore) CheckRevocation(ctx context.Context, ein string) (*model.RevocationCheck, error) {
	var legalName string
	var revocationDate, reinstatementDate *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT legal_name, revocation_date, reinstatement_date FROM revocations WHERE ein = $1`,
		ein,
	).Scan(&legalName, &revocationDate, &reinstatementDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.RevocationCheck{Found: false, Revoked: false, Detail: "not on revocation list"}, nil
		}
		return nil, eris.Wrapf(err, "postgres: check revocation %s", ein)
	}

	check := &model.RevocationCheck{Found: true, LegalName: legalName, RevocationDate: revocationDate}
	switch {
	case reinstatementDate != nil:
		check.Detail = "revocation reinstated " + reinstatementDate.Format("2006-01-02")
	case revocationDate != nil:
		check.Revoked = true
		check.Detail = "tax-exempt status auto-revoked " + revocationDate.Format("2006-01-02")
	default:
		check.Revoked = true
		check.Detail = "tax-exempt status auto-revoked"
	}
	return check, nil
}

func (s *PostgresStore) ReplaceRevocations(ctx context.Context, records []model.RevocationRecord) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin revocations tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM revocations`); err != nil {
		return 0, eris.Wrap(err, "postgres: clear revocations")
	}

	for _, rec := range records {
		if _, err := tx.Exec(ctx,
			`INSERT INTO revocations (ein, legal_name, city, state, revocation_date, reinstatement_date)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (ein) DO UPDATE SET legal_name = $2, city = $3, state = $4,
			   revocation_date = $5, reinstatement_date = $6`,
			rec.EIN, rec.LegalName, rec.City, rec.State, rec.RevocationDate, rec.ReinstatementDate,
		); err != nil {
			return 0, eris.Wrapf(err, "postgres: insert revocation %s", rec.EIN)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit revocations")
	}
	return len(records), nil
}

func (s *PostgresStore) AllSanctions(ctx context.Context) ([]model.SanctionsRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_number, name, entity_type, program FROM sanctions_entities ORDER BY entity_number`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sanctions entities")
	}
	defer rows.Close()

	var records []model.SanctionsRecord
	byNumber := make(map[int]int)
	for rows.Next() {
		var rec model.SanctionsRecord
		var program *string
		if err := rows.Scan(&rec.EntityNumber, &rec.Name, &rec.EntityType, &program); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sanctions entity")
		}
		if program != nil {
			rec.Program = *program
		}
		byNumber[rec.EntityNumber] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate sanctions entities")
	}

	aliasRows, err := s.pool.Query(ctx, `SELECT entity_number, alias FROM sanctions_aliases`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sanctions aliases")
	}
	defer aliasRows.Close()

	for aliasRows.Next() {
		var num int
		var alias string
		if err := aliasRows.Scan(&num, &alias); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sanctions alias")
		}
		if idx, ok := byNumber[num]; ok {
			records[idx].Aliases = append(records[idx].Aliases, alias)
		}
	}
	return records, eris.Wrap(aliasRows.Err(), "postgres: iterate sanctions aliases")
}

func (s *PostgresStore) ReplaceSanctions(ctx context.Context, records []model.SanctionsRecord) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin sanctions tx")
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"sanctions_aliases", "sanctions_entities"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table); err != nil {
			return 0, eris.Wrapf(err, "postgres: clear %s", table)
		}
	}

	for _, rec := range records {
		if _, err := tx.Exec(ctx,
			`INSERT INTO sanctions_entities (entity_number, name, entity_type, program) VALUES ($1, $2, $3, $4)`,
			rec.EntityNumber, rec.Name, rec.EntityType, rec.Program,
		); err != nil {
			return 0, eris.Wrapf(err, "postgres: insert entity %d", rec.EntityNumber)
		}
		for _, alias := range rec.Aliases {
			if _, err := tx.Exec(ctx,
				`INSERT INTO sanctions_aliases (entity_number, alias) VALUES ($1, $2)`,
				rec.EntityNumber, alias,
			); err != nil {
				return 0, eris.Wrapf(err, "postgres: insert alias for %d", rec.EntityNumber)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit sanctions")
	}
	return len(records), nil
}
