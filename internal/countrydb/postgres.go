package countrydb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/config"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS appointments (
		id          BIGSERIAL PRIMARY KEY,
		insured_id  VARCHAR(5)  NOT NULL,
		schedule_id BIGINT      NOT NULL,
		country_iso CHAR(2)     NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS appointments_country_created_idx
		ON appointments (country_iso, created_at DESC)`,
}

// DB is the part of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Factory opens the database of one country.
type Factory func(ctx context.Context, country models.CountryISO) (DB, error)

// PoolFactory opens a pgx pool from <CC>_DATABASE_URL / <CC>_DB_MAX_CONNS.
func PoolFactory(ctx context.Context, country models.CountryISO) (DB, error) {
	dbCfg, err := config.CountryDatabase(country)
	if err != nil {
		return nil, err
	}
	pc, err := pgxpool.ParseConfig(dbCfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse %s database config: %w", country, err)
	}
	pc.MaxConns = dbCfg.MaxConns

	p, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create %s pool: %w", country, err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping %s database: %w", country, err)
	}
	return p, nil
}

// Postgres stores each country in its own database. Pools are opened lazily
// on first use and reused for the life of the process.
type Postgres struct {
	mu      sync.Mutex
	pools   map[models.CountryISO]DB
	factory Factory
	log     *slog.Logger
	now     func() time.Time
}

// NewPostgres returns a store that opens databases through factory.
func NewPostgres(factory Factory, log *slog.Logger) *Postgres {
	return &Postgres{
		pools:   make(map[models.CountryISO]DB),
		factory: factory,
		log:     log.With("component", "country_store"),
		now:     time.Now,
	}
}

func (s *Postgres) pool(ctx context.Context, country models.CountryISO) (DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.pools[country]; ok {
		return db, nil
	}
	db, err := s.factory(ctx, country)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("bootstrap %s schema: %w", country, err)
		}
	}
	s.pools[country] = db
	s.log.Info("country database ready", "country", country)
	return db, nil
}

func (s *Postgres) Append(ctx context.Context, country models.CountryISO, req models.AppointmentRequest) error {
	if err := checkPartition(country, req); err != nil {
		return err
	}
	db, err := s.pool(ctx, country)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorageWrite, err)
	}

	_, err = db.Exec(ctx,
		`INSERT INTO appointments (insured_id, schedule_id, country_iso, created_at) VALUES ($1, $2, $3, $4)`,
		req.InsuredID, req.ScheduleID, string(req.CountryISO), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert %s appointment: %v", apperr.ErrStorageWrite, country, err)
	}
	return nil
}

func (s *Postgres) ListByCountry(ctx context.Context, country models.CountryISO) ([]models.CountryAppointmentRow, error) {
	db, err := s.pool(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorageRead, err)
	}

	rows, err := db.Query(ctx,
		`SELECT insured_id, schedule_id, country_iso, created_at
		   FROM appointments
		  WHERE country_iso = $1
		  ORDER BY created_at DESC, id DESC`,
		string(country),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s appointments: %v", apperr.ErrStorageRead, country, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CountryAppointmentRow, error) {
		var (
			r  models.CountryAppointmentRow
			cc string
		)
		err := row.Scan(&r.InsuredID, &r.ScheduleID, &cc, &r.CreatedAt)
		r.CountryISO = models.CountryISO(cc)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s appointments: %v", apperr.ErrStorageRead, country, err)
	}
	return out, nil
}

// Close releases every pool opened so far.
func (s *Postgres) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, db := range s.pools {
		db.Close()
		delete(s.pools, c)
	}
}
