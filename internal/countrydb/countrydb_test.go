package countrydb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/logging"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

func request(insured string, schedule int, c models.CountryISO) models.AppointmentRequest {
	return models.AppointmentRequest{InsuredID: insured, ScheduleID: schedule, CountryISO: c}
}

func TestMemory_NewestFirstAndIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Unix(1_700_000_000, 0)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	_ = m.Append(ctx, models.CountryPE, request("00001", 1, models.CountryPE))
	_ = m.Append(ctx, models.CountryCL, request("00002", 2, models.CountryCL))
	_ = m.Append(ctx, models.CountryPE, request("00003", 3, models.CountryPE))

	pe, _ := m.ListByCountry(ctx, models.CountryPE)
	if len(pe) != 2 || pe[0].InsuredID != "00003" || pe[1].InsuredID != "00001" {
		t.Fatalf("unexpected PE rows: %+v", pe)
	}
	cl, _ := m.ListByCountry(ctx, models.CountryCL)
	if len(cl) != 1 || cl[0].InsuredID != "00002" {
		t.Fatalf("unexpected CL rows: %+v", cl)
	}
}

func TestMemory_SameInstantKeepsReverseInsertion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	fixed := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return fixed }

	for i := 1; i <= 3; i++ {
		_ = m.Append(ctx, models.CountryCL, request("00001", i, models.CountryCL))
	}
	rows, _ := m.ListByCountry(ctx, models.CountryCL)
	if rows[0].ScheduleID != 3 || rows[2].ScheduleID != 1 {
		t.Fatalf("unexpected order: %+v", rows)
	}
}

func TestMemory_RejectsForeignRow(t *testing.T) {
	m := NewMemory()
	err := m.Append(context.Background(), models.CountryPE, request("00001", 1, models.CountryCL))
	if !errors.Is(err, ErrPartitionMismatch) {
		t.Fatalf("expected partition mismatch, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	if _, err := Open("memory", logging.Discard()); err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, err := Open("postgres", logging.Discard()); err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if _, err := Open("mysql", logging.Discard()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

type fakeDB struct {
	mu      sync.Mutex
	execs   []string
	args    [][]any
	execErr error
	closed  bool
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil && strings.HasPrefix(sql, "INSERT") {
		return pgconn.CommandTag{}, f.execErr
	}
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported by fake")
}

func (f *fakeDB) Close() { f.closed = true }

func TestPostgres_OpensEachCountryOnce(t *testing.T) {
	ctx := context.Background()
	dbs := map[models.CountryISO]*fakeDB{}
	opens := 0
	s := NewPostgres(func(_ context.Context, c models.CountryISO) (DB, error) {
		opens++
		dbs[c] = &fakeDB{}
		return dbs[c], nil
	}, logging.Discard())

	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, models.CountryPE, request("01234", i+1, models.CountryPE)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Append(ctx, models.CountryCL, request("01234", 9, models.CountryCL)); err != nil {
		t.Fatalf("append: %v", err)
	}

	if opens != 2 {
		t.Fatalf("expected one open per country, got %d", opens)
	}
	pe := dbs[models.CountryPE]
	// schema bootstrap + three inserts
	if len(pe.execs) != len(schema)+3 {
		t.Fatalf("unexpected PE statements: %v", pe.execs)
	}
	last := pe.args[len(pe.args)-1]
	if last[0] != "01234" || last[1] != 3 || last[2] != "PE" {
		t.Fatalf("unexpected insert args: %v", last)
	}

	s.Close()
	if !pe.closed || !dbs[models.CountryCL].closed {
		t.Fatal("expected pools closed")
	}
}

func TestPostgres_Errors(t *testing.T) {
	ctx := context.Background()

	failing := NewPostgres(func(context.Context, models.CountryISO) (DB, error) {
		return nil, errors.New("connection refused")
	}, logging.Discard())
	if err := failing.Append(ctx, models.CountryPE, request("01234", 1, models.CountryPE)); !errors.Is(err, apperr.ErrStorageWrite) {
		t.Fatalf("expected storage write error, got %v", err)
	}
	if _, err := failing.ListByCountry(ctx, models.CountryPE); !errors.Is(err, apperr.ErrStorageRead) {
		t.Fatalf("expected storage read error, got %v", err)
	}

	db := &fakeDB{execErr: errors.New("disk full")}
	s := NewPostgres(func(context.Context, models.CountryISO) (DB, error) { return db, nil }, logging.Discard())
	if err := s.Append(ctx, models.CountryPE, request("01234", 1, models.CountryPE)); !errors.Is(err, apperr.ErrStorageWrite) {
		t.Fatalf("expected storage write error, got %v", err)
	}
}
