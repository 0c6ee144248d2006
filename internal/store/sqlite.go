package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/grantbridge/vetting-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS vetting_results (
	id          TEXT PRIMARY KEY,
	ein         TEXT NOT NULL,
	result      TEXT NOT NULL,
	vetted_at   DATETIME NOT NULL,
	attribution TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revocations (
	ein                TEXT PRIMARY KEY,
	legal_name         TEXT NOT NULL,
	city               TEXT,
	state              TEXT,
	revocation_date    DATETIME,
	reinstatement_date DATETIME
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetLatest(ctx context.Context, ein string) (*model.CachedResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT result, vetted_at, attribution FROM vetting_results
		 WHERE ein = ? ORDER BY vetted_at DESC LIMIT 1`,
		ein,
	)

	var cached model.CachedResult
	var resultJSON string
	err := row.Scan(&resultJSON, &cached.VettedAt, &cached.Attribution)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get latest result %s", ein)
	}
	if err := json.Unmarshal([]byte(resultJSON), &cached.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached result")
	}
	return &cached, nil
}

func (s *SQLiteStore) Save(ctx context.Context, result model.VettingResult, attribution string) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vetting_results (id, ein, result, vetted_at, attribution) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), result.EIN, string(resultJSON), time.Now().UTC(), attribution,
	)
	return eris.Wrapf(err, "sqlite: save result %s", result.EIN)
}

func (s *SQLiteStore) CheckRevocation(ctx context.Context, ein string) (*model.RevocationCheck, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT legal_name, revocation_date, reinstatement_date FROM revocations WHERE ein = ?`,
		ein,
	)

	var legalName string
	var revocationDate, reinstatementDate sql.NullTime
	err := row.Scan(&legalName, &revocationDate, &reinstatementDate)
	if err == sql.ErrNoRows {
		return &model.RevocationCheck{Found: false, Revoked: false, Detail: "not on revocation list"}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: check revocation %s", ein)
	}

	return buildRevocationCheck(legalName, revocationDate, reinstatementDate), nil
}

func (s *SQLiteStore) ReplaceRevocations(ctx context.Context, records []model.RevocationRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin revocations tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM revocations`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear revocations")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO revocations (ein, legal_name, city, state, revocation_date, reinstatement_date)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare revocation insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.EIN, rec.LegalName, rec.City, rec.State,
			nullTime(rec.RevocationDate), nullTime(rec.ReinstatementDate),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert revocation %s", rec.EIN)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit revocations")
	}
	return len(records), nil
}

func (s *SQLiteStore) AllSanctions(ctx context.Context) ([]model.SanctionsRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_number, name, entity_type, program FROM sanctions_entities ORDER BY entity_number`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sanctions entities")
	}
	defer rows.Close()

	var records []model.SanctionsRecord
	byNumber := make(map[int]int)
	for rows.Next() {
		var rec model.SanctionsRecord
		var program sql.NullString
		if err := rows.Scan(&rec.EntityNumber, &rec.Name, &rec.EntityType, &program); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sanctions entity")
		}
		rec.Program = program.String
		byNumber[rec.EntityNumber] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate sanctions entities")
	}

	aliasRows, err := s.db.QueryContext(ctx,
		`SELECT entity_number, alias FROM sanctions_aliases`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sanctions aliases")
	}
	defer aliasRows.Close()

	for aliasRows.Next() {
		var num int
		var alias string
		if err := aliasRows.Scan(&num, &alias); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sanctions alias")
		}
		if idx, ok := byNumber[num]; ok {
			records[idx].Aliases = append(records[idx].Aliases, alias)
		}
	}
	return records, eris.Wrap(aliasRows.Err(), "sqlite: iterate sanctions aliases")
}

func (s *SQLiteStore) ReplaceSanctions(ctx context.Context, records []model.SanctionsRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin sanctions tx")
	}
	defer tx.Rollback()

	for _, table := range []string{"sanctions_aliases", "sanctions_entities"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return 0, eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}

	entityStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sanctions_entities (entity_number, name, entity_type, program) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare entity insert")
	}
	defer entityStmt.Close()

	aliasStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sanctions_aliases (entity_number, alias) VALUES (?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare alias insert")
	}
	defer aliasStmt.Close()

	for _, rec := range records {
		if _, err := entityStmt.ExecContext(ctx, rec.EntityNumber, rec.Name, rec.EntityType, rec.Program); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert entity %d", rec.EntityNumber)
		}
		for _, alias := range rec.Aliases {
			if _, err := aliasStmt.ExecContext(ctx, rec.EntityNumber, alias); err != nil {
				return 0, eris.Wrapf(err, "sqlite: insert alias for %d", rec.EntityNumber)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit sanctions")
	}
	return len(records), nil
}

// helpers

func buildRevocationCheck(legalName string, revocationDate, reinstatementDate sql.NullTime) *model.RevocationCheck {
	check := &model.RevocationCheck{Found: true, LegalName: legalName}
	if revocationDate.Valid {
		d := revocationDate.Time
		check.RevocationDate = &d
	}

	if reinstatementDate.Valid {
		check.Revoked = false
		check.Detail = "revocation reinstated " + reinstatementDate.Time.Format("2006-01-02")
		return check
	}

	check.Revoked = true
	if revocationDate.Valid {
		check.Detail = "tax-exempt status auto-revoked " + revocationDate.Time.Format("2006-01-02")
	} else {
		check.Detail = "tax-exempt status auto-revoked"
	}
	return check
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
