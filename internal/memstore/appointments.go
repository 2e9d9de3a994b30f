// Package memstore is an in-memory appointment store with the same contract as the DynamoDB repo.
package memstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

// Appointments keeps records by id. The mutex gives CompleteIfPending the
// same compare-and-set behaviour DynamoDB's condition expression provides.
type Appointments struct {
	mu   sync.RWMutex
	byID map[string]models.AppointmentRecord
	log  *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewAppointments returns an empty store.
func NewAppointments(log *slog.Logger) *Appointments {
	return &Appointments{
		byID:  make(map[string]models.AppointmentRecord),
		log:   log.With("component", "appointment_store"),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *Appointments) Create(_ context.Context, req models.AppointmentRequest) (models.AppointmentRecord, error) {
	rec := models.NewPendingRecord(s.newID(), req, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[rec.ID] = rec
	return rec, nil
}

func (s *Appointments) FindByInsuredID(_ context.Context, insuredID string) ([]models.AppointmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.AppointmentRecord{}
	for _, r := range s.byID {
		if r.InsuredID == insuredID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Appointments) CompleteIfPending(_ context.Context, insuredID string, scheduleID int, country models.CountryISO) (models.AppointmentRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []models.AppointmentRecord
	for _, r := range s.byID {
		if r.InsuredID == insuredID {
			candidates = append(candidates, r)
		}
	}
	matches := models.PendingMatches(candidates, scheduleID, country)
	if len(matches) == 0 {
		return models.AppointmentRecord{}, false, nil
	}
	if len(matches) > 1 {
		s.log.Warn("several pending appointments share a schedule, completing the oldest",
			"insured_id", insuredID, "schedule_id", scheduleID, "country", country, "matches", len(matches))
	}

	rec := matches[0]
	rec.Status = models.StatusCompleted
	rec.UpdatedAt = models.EpochMillis(s.now())
	s.byID[rec.ID] = rec
	return rec, true, nil
}
