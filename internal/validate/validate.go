// Package validate checks the shape of appointment requests wherever they enter the pipeline.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

// Messages returned to clients alongside the individual violations.
const (
	MsgInvalidJSON    = "Invalid JSON body"
	MsgInvalidFields  = "One or more fields are invalid"
	MsgInsuredIDParam = "insuredId path parameter must be exactly five digits"
)

var insuredIDPathRx = regexp.MustCompile(`^\d{5}$`)

// rawRequest keeps each field undecoded so every field can be checked on its own.
type rawRequest struct {
	InsuredID  json.RawMessage `json:"insuredId"`
	ScheduleID json.RawMessage `json:"scheduleId"`
	CountryISO json.RawMessage `json:"countryISO"`
}

// Request parses body and validates it, reporting every violation at once.
func Request(body []byte) (models.AppointmentRequest, error) {
	var raw rawRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.AppointmentRequest{}, &apperr.ValidationError{Message: MsgInvalidJSON}
	}

	var req models.AppointmentRequest
	validators := []func() error{
		func() (err error) { req.InsuredID, err = InsuredID(raw.InsuredID); return },
		func() (err error) { req.ScheduleID, err = ScheduleID(raw.ScheduleID); return },
		func() (err error) { req.CountryISO, err = Country(raw.CountryISO); return },
	}

	var violations []string
	for _, validator := range validators {
		if err := validator(); err != nil {
			violations = append(violations, err.Error())
		}
	}
	if len(violations) > 0 {
		return models.AppointmentRequest{}, &apperr.ValidationError{Message: MsgInvalidFields, Violations: violations}
	}
	return req, nil
}

// InsuredID checks that raw is a string of exactly five characters.
func InsuredID(raw json.RawMessage) (string, error) {
	s, err := str("insuredId", raw)
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(s) != 5 {
		return "", errors.New("insuredId must be exactly 5 characters")
	}
	return s, nil
}

// ScheduleID checks that raw is a positive integral JSON number.
func ScheduleID(raw json.RawMessage) (int, error) {
	if missing(raw) {
		return 0, errors.New("scheduleId is required")
	}
	raw = bytes.TrimSpace(raw)
	if raw[0] == '"' || raw[0] == '{' || raw[0] == '[' || raw[0] == 't' || raw[0] == 'f' {
		return 0, errors.New("scheduleId must be a number")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, errors.New("scheduleId must be a number")
	}
	v, err := n.Int64()
	if err != nil {
		return 0, errors.New("scheduleId must be an integer")
	}
	if v <= 0 {
		return 0, errors.New("scheduleId must be a positive integer")
	}
	return int(v), nil
}

// Country checks that raw is a two-letter code from the supported set.
func Country(raw json.RawMessage) (models.CountryISO, error) {
	s, err := str("countryISO", raw)
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(s) != 2 {
		return "", errors.New("countryISO must be exactly 2 characters")
	}
	c := models.CountryISO(s)
	if !c.Valid() {
		return "", fmt.Errorf("countryISO must be one of %s", supportedCountries())
	}
	return c, nil
}

// InsuredIDPath checks the insuredId path parameter of the lookup endpoint.
func InsuredIDPath(s string) error {
	if !insuredIDPathRx.MatchString(s) {
		return &apperr.ValidationError{Message: MsgInsuredIDParam}
	}
	return nil
}

func str(field string, raw json.RawMessage) (string, error) {
	if missing(raw) {
		return "", fmt.Errorf("%s is required", field)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s must be a string", field)
	}
	return s, nil
}

func missing(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func supportedCountries() string {
	names := make([]string, len(models.Countries))
	for i, c := range models.Countries {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
