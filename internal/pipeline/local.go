// Package pipeline assembles the full appointment lifecycle in one process.
package pipeline

import (
	"log/slog"
	"strings"

	"github.com/kylejryan/appointment-lifecycle/internal/country"
	"github.com/kylejryan/appointment-lifecycle/internal/countrydb"
	"github.com/kylejryan/appointment-lifecycle/internal/intake"
	"github.com/kylejryan/appointment-lifecycle/internal/memstore"
	"github.com/kylejryan/appointment-lifecycle/internal/messaging"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
	"github.com/kylejryan/appointment-lifecycle/internal/reconcile"
)

// StatusQueue is the name of the queue feeding the reconciler.
const StatusQueue = "appointment-status"

// Local is the in-process deployment: the appointment store, one queue and
// processor per country, and the status queue consumed by the reconciler.
type Local struct {
	Appointments *memstore.Appointments
	Countries    countrydb.Store
	Bus          *messaging.Bus
	Intake       *intake.Handler
}

// CountryQueue returns the queue name subscribed to c.
func CountryQueue(c models.CountryISO) string {
	return "appointment-" + strings.ToLower(string(c))
}

// NewLocal wires every stage on top of countries and an in-memory bus.
func NewLocal(countries countrydb.Store, maxReceives int, log *slog.Logger) *Local {
	bus := messaging.NewBus(maxReceives, log)
	appointments := memstore.NewAppointments(log)

	for _, c := range models.Countries {
		q := bus.Queue(CountryQueue(c))
		bus.SubscribeCountry(c, q)
		bus.Consume(q, country.NewProcessor(c, countries, bus, log).Handle)
	}

	status := bus.Queue(StatusQueue)
	bus.RouteProcessed(status)
	bus.Consume(status, reconcile.New(appointments, log).Handle)

	return &Local{
		Appointments: appointments,
		Countries:    countries,
		Bus:          bus,
		Intake:       intake.NewHandler(intake.NewOrchestrator(appointments, bus, log), log),
	}
}
