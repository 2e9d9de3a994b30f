// Package api contains types for the API requests and responses.
package api

import "github.com/kylejryan/appointment-lifecycle/internal/models"

// AppointmentAccepted is the 202 body of POST /appointments.
type AppointmentAccepted struct {
	ID      string                    `json:"id"`
	Status  models.AppointmentStatus  `json:"status"`
	Request models.AppointmentRequest `json:"request"`
}

// AppointmentList is the 200 body of GET /appointments/{insuredId}.
type AppointmentList struct {
	Items []models.AppointmentRecord `json:"items"`
}

// CountryAppointmentList is the body of the country listing on the dev server.
type CountryAppointmentList struct {
	Country models.CountryISO              `json:"countryISO"`
	Items   []models.CountryAppointmentRow `json:"items"`
}

// ErrorBody is the body of every non-2xx response.
type ErrorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}
