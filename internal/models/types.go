// Package models defines the data models used in the application.
package models

import (
	"sort"
	"strconv"
	"time"
)

// AppointmentStatus represents the lifecycle state of an appointment.
type AppointmentStatus string

// Possible values for AppointmentStatus. The only transition is pending -> completed.
const (
	StatusPending   AppointmentStatus = "pending"
	StatusCompleted AppointmentStatus = "completed"
)

// CountryISO is one of the supported country codes.
type CountryISO string

// Supported countries.
const (
	CountryPE CountryISO = "PE"
	CountryCL CountryISO = "CL"
)

// Countries lists every supported country, in routing order.
var Countries = []CountryISO{CountryPE, CountryCL}

// Valid reports whether c belongs to the supported set.
func (c CountryISO) Valid() bool {
	for _, known := range Countries {
		if c == known {
			return true
		}
	}
	return false
}

// AppointmentRequest is the validated triple that travels through every stage.
type AppointmentRequest struct {
	InsuredID  string     `json:"insuredId" dynamodbav:"insuredId"`
	ScheduleID int        `json:"scheduleId" dynamodbav:"scheduleId"`
	CountryISO CountryISO `json:"countryISO" dynamodbav:"countryISO"`
}

// AppointmentRecord is the durable appointment kept by the appointment store.
type AppointmentRecord struct {
	// DynamoDB partition key; insuredId is projected through insuredId-index.
	ID         string            `json:"id" dynamodbav:"id"`
	InsuredID  string            `json:"insuredId" dynamodbav:"insuredId"`
	ScheduleID int               `json:"scheduleId" dynamodbav:"scheduleId"`
	CountryISO CountryISO        `json:"countryISO" dynamodbav:"countryISO"`
	Status     AppointmentStatus `json:"status" dynamodbav:"status"`
	CreatedAt  string            `json:"createdAt" dynamodbav:"createdAt"` // epoch millis
	UpdatedAt  string            `json:"updatedAt" dynamodbav:"updatedAt"` // epoch millis
}

// Request returns the correlation triple of the record.
func (r AppointmentRecord) Request() AppointmentRequest {
	return AppointmentRequest{InsuredID: r.InsuredID, ScheduleID: r.ScheduleID, CountryISO: r.CountryISO}
}

// CountryAppointmentRow is an append-only fact stored in a country partition.
type CountryAppointmentRow struct {
	InsuredID  string     `json:"insuredId"`
	ScheduleID int        `json:"scheduleId"`
	CountryISO CountryISO `json:"countryISO"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ProcessedEvent correlates a country-side persistence back to a pending appointment.
type ProcessedEvent struct {
	InsuredID  string     `json:"insuredId"`
	ScheduleID int        `json:"scheduleId"`
	CountryISO CountryISO `json:"countryISO"`
}

// EpochMillis renders t the way record timestamps are stored.
func EpochMillis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

// NewPendingRecord builds the initial record for a freshly accepted request.
func NewPendingRecord(id string, req AppointmentRequest, now time.Time) AppointmentRecord {
	ts := EpochMillis(now)
	return AppointmentRecord{
		ID:         id,
		InsuredID:  req.InsuredID,
		ScheduleID: req.ScheduleID,
		CountryISO: req.CountryISO,
		Status:     StatusPending,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

// PendingMatches returns the pending records for (scheduleID, country), oldest first.
// Ties on createdAt fall back to id so the pick is deterministic.
func PendingMatches(records []AppointmentRecord, scheduleID int, country CountryISO) []AppointmentRecord {
	out := make([]AppointmentRecord, 0, 1)
	for _, r := range records {
		if r.ScheduleID == scheduleID && r.CountryISO == country && r.Status == StatusPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, _ := strconv.ParseInt(out[i].CreatedAt, 10, 64)
		cj, _ := strconv.ParseInt(out[j].CreatedAt, 10, 64)
		if ci != cj {
			return ci < cj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
