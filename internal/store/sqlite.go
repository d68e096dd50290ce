package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/openings-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS normalized_records (
	id            TEXT PRIMARY KEY,
	city          TEXT NOT NULL,
	dataset       TEXT NOT NULL,
	address       TEXT NOT NULL,
	lat           REAL,
	lon           REAL,
	business_name TEXT,
	record_type   TEXT,
	status        TEXT,
	description   TEXT,
	event_date    DATETIME,
	payload       TEXT,
	imported_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS events (
	id                  TEXT PRIMARY KEY,
	city                TEXT NOT NULL,
	address             TEXT NOT NULL,
	name                TEXT,
	rule                TEXT NOT NULL,
	signal_strength     INTEGER NOT NULL,
	predicted_open_week DATETIME NOT NULL,
	evidence            TEXT NOT NULL,
	created_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	city           TEXT NOT NULL,
	address        TEXT NOT NULL,
	name           TEXT,
	phone          TEXT,
	email          TEXT,
	score          REAL NOT NULL,
	components     TEXT,
	project_stage  TEXT,
	days_remaining INTEGER NOT NULL DEFAULT 0,
	intelligence   TEXT,
	evidence       TEXT NOT NULL,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fusion_runs (
	id         TEXT PRIMARY KEY,
	city       TEXT NOT NULL,
	stats      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_city_dataset ON normalized_records(city, dataset);
CREATE INDEX IF NOT EXISTS idx_records_address ON normalized_records(address);
CREATE INDEX IF NOT EXISTS idx_events_city ON events(city);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fusion_runs_city ON fusion_runs(city);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertRecords(ctx context.Context, records []model.NormalizedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert records")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO normalized_records
		 (id, city, dataset, address, lat, lon, business_name, record_type, status, description, event_date, payload, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert record")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range records {
		r := records[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		payloadJSON, err := marshalNullable(r.Payload)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal payload")
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.City, r.Dataset, r.Address,
			nullFloat(r.Lat), nullFloat(r.Lon),
			r.BusinessName, r.Type, r.Status, r.Description,
			nullTime(r.EventDate), payloadJSON, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert record %s", r.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert records")
	}
	return len(records), nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.NormalizedRecord, error) {
	query := `SELECT id, city, dataset, address, lat, lon, business_name, record_type, status, description, event_date, payload
	          FROM normalized_records WHERE 1=1`
	var args []any

	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	if filter.Dataset != "" {
		query += ` AND dataset = ?`
		args = append(args, filter.Dataset)
	}
	query += ` ORDER BY event_date, id LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50000
	}
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []model.NormalizedRecord
	for rows.Next() {
		var (
			r          model.NormalizedRecord
			lat, lon   sql.NullFloat64
			eventDate  sql.NullTime
			payloadStr sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.City, &r.Dataset, &r.Address, &lat, &lon,
			&r.BusinessName, &r.Type, &r.Status, &r.Description, &eventDate, &payloadStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		if lat.Valid {
			r.Lat = &lat.Float64
		}
		if lon.Valid {
			r.Lon = &lon.Float64
		}
		if eventDate.Valid {
			d := eventDate.Time.UTC()
			r.EventDate = &d
		}
		if payloadStr.Valid && payloadStr.String != "" {
			if err := json.Unmarshal([]byte(payloadStr.String), &r.Payload); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal payload")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) SaveEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save events")
	}
	defer tx.Rollback()

	for i := range events {
		ev := &events[i]
		evidenceJSON, err := json.Marshal(ev.Evidence)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal evidence")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO events
			 (id, city, address, name, rule, signal_strength, predicted_open_week, evidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.City, ev.Address, ev.Name, ev.Rule, ev.SignalStrength,
			ev.PredictedOpenWeek, string(evidenceJSON), ev.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert event %s", ev.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save events")
}

func (s *SQLiteStore) ListEvents(ctx context.Context, city string) ([]model.Event, error) {
	query := `SELECT id, city, address, name, rule, signal_strength, predicted_open_week, evidence, created_at
	          FROM events WHERE 1=1`
	var args []any
	if city != "" {
		query += ` AND city = ?`
		args = append(args, city)
	}
	query += ` ORDER BY signal_strength DESC, address`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var ev model.Event
		var evidenceJSON string
		if err := rows.Scan(&ev.ID, &ev.City, &ev.Address, &ev.Name, &ev.Rule,
			&ev.SignalStrength, &ev.PredictedOpenWeek, &evidenceJSON, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		if err := json.Unmarshal([]byte(evidenceJSON), &ev.Evidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal evidence")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) SaveLeads(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save leads")
	}
	defer tx.Rollback()

	for i := range leads {
		l := &leads[i]
		componentsJSON, err := marshalNullable(l.Components)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal components")
		}
		intelJSON, err := marshalNullable(l.Intelligence)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal intelligence")
		}
		evidenceJSON, err := json.Marshal(l.Evidence)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal lead evidence")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO leads
			 (id, city, address, name, phone, email, score, components, project_stage, days_remaining, intelligence, evidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.City, l.Address, l.Name, l.Phone, l.Email, l.Score,
			componentsJSON, l.ProjectStage, l.DaysRemaining, intelJSON,
			string(evidenceJSON), l.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert lead %s", l.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save leads")
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, city, address, name, phone, email, score, components, project_stage, days_remaining, intelligence, evidence, created_at
	          FROM leads WHERE 1=1`
	var args []any

	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	if filter.MinScore > 0 {
		query += ` AND score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY score DESC, created_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, city, address, name, phone, email, score, components, project_stage, days_remaining, intelligence, evidence, created_at
		 FROM leads WHERE id = ?`, id)
	return scanLead(row)
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete lead %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) SaveRun(ctx context.Context, city string, stats model.RunStats) (string, error) {
	id := uuid.New().String()
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal run stats")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fusion_runs (id, city, stats, created_at) VALUES (?, ?, ?, ?)`,
		id, city, string(statsJSON), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}
	return id, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// marshalNullable returns nil for nil maps/pointers so the column stays
// NULL instead of holding the string "null".
func marshalNullable(v any) (any, error) {
	switch x := v.(type) {
	case map[string]string:
		if x == nil {
			return nil, nil
		}
	case map[string]float64:
		if x == nil {
			return nil, nil
		}
	case *model.BusinessIntelligence:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var (
		l              model.Lead
		componentsJSON sql.NullString
		intelJSON      sql.NullString
		evidenceJSON   string
	)
	err := row.Scan(&l.ID, &l.City, &l.Address, &l.Name, &l.Phone, &l.Email,
		&l.Score, &componentsJSON, &l.ProjectStage, &l.DaysRemaining,
		&intelJSON, &evidenceJSON, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("lead not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan lead")
	}

	if componentsJSON.Valid && componentsJSON.String != "" {
		if err := json.Unmarshal([]byte(componentsJSON.String), &l.Components); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal components")
		}
	}
	if intelJSON.Valid && intelJSON.String != "" {
		l.Intelligence = &model.BusinessIntelligence{}
		if err := json.Unmarshal([]byte(intelJSON.String), l.Intelligence); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal intelligence")
		}
	}
	if err := json.Unmarshal([]byte(evidenceJSON), &l.Evidence); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal lead evidence")
	}
	return &l, nil
}
