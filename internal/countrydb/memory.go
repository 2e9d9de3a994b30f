package countrydb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

type memRow struct {
	row models.CountryAppointmentRow
	seq uint64
}

// Memory keeps each country's rows in its own slice.
type Memory struct {
	mu         sync.RWMutex
	partitions map[models.CountryISO][]memRow
	seq        uint64
	now        func() time.Time
}

// NewMemory returns an empty in-memory country store.
func NewMemory() *Memory {
	return &Memory{
		partitions: make(map[models.CountryISO][]memRow),
		now:        time.Now,
	}
}

func (m *Memory) Append(_ context.Context, country models.CountryISO, req models.AppointmentRequest) error {
	if err := checkPartition(country, req); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.partitions[country] = append(m.partitions[country], memRow{
		row: models.CountryAppointmentRow{
			InsuredID:  req.InsuredID,
			ScheduleID: req.ScheduleID,
			CountryISO: req.CountryISO,
			CreatedAt:  m.now().UTC(),
		},
		seq: m.seq,
	})
	return nil
}

// ListByCountry returns the partition newest first; rows inserted in the same
// instant keep reverse insertion order.
func (m *Memory) ListByCountry(_ context.Context, country models.CountryISO) ([]models.CountryAppointmentRow, error) {
	m.mu.RLock()
	rows := append([]memRow(nil), m.partitions[country]...)
	m.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].row.CreatedAt.Equal(rows[j].row.CreatedAt) {
			return rows[i].row.CreatedAt.After(rows[j].row.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	out := make([]models.CountryAppointmentRow, len(rows))
	for i, r := range rows {
		out[i] = r.row
	}
	return out, nil
}
