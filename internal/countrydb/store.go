// Package countrydb is the per-country append-only appointment log.
//
// Every country is its own partition: a row is written to, and read back from,
// the partition of its country only.
package countrydb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kylejryan/appointment-lifecycle/internal/config"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

// ErrPartitionMismatch is returned when a request is appended to another country's partition.
var ErrPartitionMismatch = errors.New("request country does not match partition")

// Store is the country store capability.
type Store interface {
	Append(ctx context.Context, country models.CountryISO, req models.AppointmentRequest) error
	ListByCountry(ctx context.Context, country models.CountryISO) ([]models.CountryAppointmentRow, error)
}

// Open returns the store implementation selected by driver.
func Open(driver string, log *slog.Logger) (Store, error) {
	switch driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverPostgres:
		return NewPostgres(PoolFactory, log), nil
	default:
		return nil, fmt.Errorf("unknown country store driver %q", driver)
	}
}

func checkPartition(country models.CountryISO, req models.AppointmentRequest) error {
	if !country.Valid() {
		return fmt.Errorf("unknown country partition %q", country)
	}
	if req.CountryISO != country {
		return fmt.Errorf("%w: %s into %s", ErrPartitionMismatch, req.CountryISO, country)
	}
	return nil
}
