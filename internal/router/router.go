// Package router exposes the local pipeline over plain HTTP.
package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kylejryan/appointment-lifecycle/internal/api"
	"github.com/kylejryan/appointment-lifecycle/internal/httpx"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
	"github.com/kylejryan/appointment-lifecycle/internal/pipeline"
)

// New returns the dev server routes for l.
func New(l *pipeline.Local, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	lambda := func(w http.ResponseWriter, req *http.Request) {
		params := map[string]string{}
		if rc := chi.RouteContext(req.Context()); rc != nil {
			for i, k := range rc.URLParams.Keys {
				params[k] = rc.URLParams.Values[i]
			}
		}
		ev, err := httpx.FromRequest(req, params)
		if err != nil {
			resp, _ := httpx.Error(http.StatusBadRequest, "unreadable body")
			httpx.Write(w, resp)
			return
		}
		resp, _ := l.Intake.HandleHTTP(req.Context(), ev)
		httpx.Write(w, resp)
	}
	r.Post("/appointments", lambda)
	r.Get("/appointments/{insuredId}", lambda)

	r.Get("/countries/{countryISO}/appointments", func(w http.ResponseWriter, req *http.Request) {
		c := models.CountryISO(strings.ToUpper(chi.URLParam(req, "countryISO")))
		if !c.Valid() {
			resp, _ := httpx.Error(http.StatusNotFound, "Not Found")
			httpx.Write(w, resp)
			return
		}
		rows, err := l.Countries.ListByCountry(req.Context(), c)
		if err != nil {
			log.Error("list country appointments", "country", c, "error", err)
			resp, _ := httpx.Error(http.StatusInternalServerError, "Country appointments could not be read")
			httpx.Write(w, resp)
			return
		}
		if rows == nil {
			rows = []models.CountryAppointmentRow{}
		}
		resp, _ := httpx.JSON(http.StatusOK, api.CountryAppointmentList{Country: c, Items: rows})
		httpx.Write(w, resp)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		resp, _ := httpx.Error(http.StatusNotFound, "Not Found")
		httpx.Write(w, resp)
	})
	return r
}
