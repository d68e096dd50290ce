package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/openings-cli/internal/db"
	"github.com/sells-group/openings-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS normalized_records (
	id            TEXT PRIMARY KEY,
	city          TEXT NOT NULL,
	dataset       TEXT NOT NULL,
	address       TEXT NOT NULL,
	lat           DOUBLE PRECISION,
	lon           DOUBLE PRECISION,
	business_name TEXT,
	record_type   TEXT,
	status        TEXT,
	description   TEXT,
	event_date    TIMESTAMPTZ,
	payload       JSONB,
	imported_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	id                  TEXT PRIMARY KEY,
	city                TEXT NOT NULL,
	address             TEXT NOT NULL,
	name                TEXT,
	rule                TEXT NOT NULL,
	signal_strength     INTEGER NOT NULL,
	predicted_open_week TIMESTAMPTZ NOT NULL,
	evidence            JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	city           TEXT NOT NULL,
	address        TEXT NOT NULL,
	name           TEXT,
	phone          TEXT,
	email          TEXT,
	score          DOUBLE PRECISION NOT NULL,
	components     JSONB,
	project_stage  TEXT,
	days_remaining INTEGER NOT NULL DEFAULT 0,
	intelligence   JSONB,
	evidence       JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS fusion_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	city       TEXT NOT NULL,
	stats      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_city_dataset ON normalized_records(city, dataset);
CREATE INDEX IF NOT EXISTS idx_records_address ON normalized_records(address);
CREATE INDEX IF NOT EXISTS idx_events_city ON events(city);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fusion_runs_city ON fusion_runs(city);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var recordColumns = []string{
	"id", "city", "dataset", "address", "lat", "lon", "business_name",
	"record_type", "status", "description", "event_date", "payload", "imported_at",
}

// InsertRecords bulk-upserts via a temp table so a city re-import refreshes
// rows in place.
func (s *PostgresStore) InsertRecords(ctx context.Context, records []model.NormalizedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(records))
	for i := range records {
		r := records[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		payloadJSON, err := marshalNullable(r.Payload)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal payload")
		}
		rows = append(rows, []any{
			r.ID, r.City, r.Dataset, r.Address,
			nullFloat(r.Lat), nullFloat(r.Lon),
			r.BusinessName, r.Type, r.Status, r.Description,
			nullTime(r.EventDate), payloadJSON, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "normalized_records",
		Columns:      recordColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert records")
	}
	return int(n), nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.NormalizedRecord, error) {
	query := `SELECT id, city, dataset, address, lat, lon, business_name, record_type, status, description, event_date, payload
	          FROM normalized_records WHERE 1=1`
	var args []any

	if filter.City != "" {
		args = append(args, filter.City)
		query += ` AND city = $` + itoa(len(args))
	}
	if filter.Dataset != "" {
		args = append(args, filter.Dataset)
		query += ` AND dataset = $` + itoa(len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50000
	}
	args = append(args, limit)
	query += ` ORDER BY event_date, id LIMIT $` + itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.NormalizedRecord
	for rows.Next() {
		var (
			r           model.NormalizedRecord
			payloadJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.City, &r.Dataset, &r.Address, &r.Lat, &r.Lon,
			&r.BusinessName, &r.Type, &r.Status, &r.Description, &r.EventDate, &payloadJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &r.Payload); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal payload")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

var eventColumns = []string{
	"id", "city", "address", "name", "rule", "signal_strength",
	"predicted_open_week", "evidence", "created_at",
}

// SaveEvents appends via COPY; events are immutable once emitted.
func (s *PostgresStore) SaveEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(events))
	for i := range events {
		ev := &events[i]
		evidenceJSON, err := json.Marshal(ev.Evidence)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal evidence")
		}
		rows = append(rows, []any{
			ev.ID, ev.City, ev.Address, ev.Name, ev.Rule, ev.SignalStrength,
			ev.PredictedOpenWeek, evidenceJSON, ev.CreatedAt,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "events", eventColumns, rows)
	return eris.Wrap(err, "postgres: save events")
}

func (s *PostgresStore) ListEvents(ctx context.Context, city string) ([]model.Event, error) {
	query := `SELECT id, city, address, name, rule, signal_strength, predicted_open_week, evidence, created_at
	          FROM events`
	var args []any
	if city != "" {
		query += ` WHERE city = $1`
		args = append(args, city)
	}
	query += ` ORDER BY signal_strength DESC, address`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var ev model.Event
		var evidenceJSON []byte
		if err := rows.Scan(&ev.ID, &ev.City, &ev.Address, &ev.Name, &ev.Rule,
			&ev.SignalStrength, &ev.PredictedOpenWeek, &evidenceJSON, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		if err := json.Unmarshal(evidenceJSON, &ev.Evidence); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal evidence")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) SaveLeads(ctx context.Context, leads []model.Lead) error {
	for i := range leads {
		l := &leads[i]
		componentsJSON, err := marshalNullable(l.Components)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal components")
		}
		intelJSON, err := marshalNullable(l.Intelligence)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal intelligence")
		}
		evidenceJSON, err := json.Marshal(l.Evidence)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal lead evidence")
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO leads
			 (id, city, address, name, phone, email, score, components, project_stage, days_remaining, intelligence, evidence, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (id) DO UPDATE SET
			   score = EXCLUDED.score, components = EXCLUDED.components,
			   project_stage = EXCLUDED.project_stage, days_remaining = EXCLUDED.days_remaining,
			   intelligence = EXCLUDED.intelligence, evidence = EXCLUDED.evidence`,
			l.ID, l.City, l.Address, l.Name, l.Phone, l.Email, l.Score,
			componentsJSON, l.ProjectStage, l.DaysRemaining, intelJSON,
			string(evidenceJSON), l.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "postgres: upsert lead %s", l.ID)
		}
	}
	return nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, city, address, name, phone, email, score, components, project_stage, days_remaining, intelligence, evidence, created_at
	          FROM leads WHERE 1=1`
	var args []any

	if filter.City != "" {
		args = append(args, filter.City)
		query += ` AND city = $` + itoa(len(args))
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		query += ` AND score >= $` + itoa(len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` ORDER BY score DESC, created_at DESC LIMIT $` + itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, city, address, name, phone, email, score, components, project_stage, days_remaining, intelligence, evidence, created_at
		 FROM leads WHERE id = $1`, id)
	l, err := scanPgLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("lead not found")
	}
	return l, err
}

func (s *PostgresStore) DeleteLead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, city string, stats model.RunStats) (string, error) {
	id := uuid.New().String()
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal run stats")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO fusion_runs (id, city, stats, created_at) VALUES ($1, $2, $3, $4)`,
		id, city, statsJSON, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert run")
	}
	return id, nil
}

func scanPgLead(row scannable) (*model.Lead, error) {
	var (
		l              model.Lead
		componentsJSON []byte
		intelJSON      []byte
		evidenceJSON   []byte
	)
	err := row.Scan(&l.ID, &l.City, &l.Address, &l.Name, &l.Phone, &l.Email,
		&l.Score, &componentsJSON, &l.ProjectStage, &l.DaysRemaining,
		&intelJSON, &evidenceJSON, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	if len(componentsJSON) > 0 {
		if err := json.Unmarshal(componentsJSON, &l.Components); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal components")
		}
	}
	if len(intelJSON) > 0 {
		l.Intelligence = &model.BusinessIntelligence{}
		if err := json.Unmarshal(intelJSON, l.Intelligence); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal intelligence")
		}
	}
	if err := json.Unmarshal(evidenceJSON, &l.Evidence); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal lead evidence")
	}
	return &l, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
