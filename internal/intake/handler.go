package intake

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kylejryan/appointment-lifecycle/internal/api"
	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/httpx"
	"github.com/kylejryan/appointment-lifecycle/internal/metrics"
	"github.com/kylejryan/appointment-lifecycle/internal/validate"
)

const (
	routeCreate = "POST /appointments"
	routeList   = "GET /appointments/{insuredId}"
	routeOther  = "other"
)

// Handler serves the appointment HTTP API on top of an Orchestrator.
type Handler struct {
	o   *Orchestrator
	log *slog.Logger
}

// NewHandler returns the HTTP API for o.
func NewHandler(o *Orchestrator, log *slog.Logger) *Handler {
	return &Handler{o: o, log: log.With("component", "http")}
}

// HandleHTTP routes an API Gateway HTTP API request.
func (h *Handler) HandleHTTP(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := req.RequestContext.HTTP.Method
	path := req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}
	path = strings.TrimSuffix(path, "/")

	var (
		route = routeOther
		resp  events.APIGatewayV2HTTPResponse
		err   error
	)
	switch {
	case method == http.MethodPost && path == "/appointments":
		route = routeCreate
		resp, err = h.create(ctx, req)
	case method == http.MethodGet && strings.HasPrefix(path, "/appointments/"):
		route = routeList
		insuredID, ok := req.PathParameters["insuredId"]
		if !ok {
			insuredID = strings.TrimPrefix(path, "/appointments/")
		}
		resp, err = h.list(ctx, insuredID)
	default:
		resp, err = httpx.Error(http.StatusNotFound, "Not Found")
	}

	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, err
}

func (h *Handler) create(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return httpx.Error(http.StatusBadRequest, validate.MsgInvalidJSON)
		}
		body = decoded
	}

	ack, err := h.o.Submit(ctx, body)
	var ve *apperr.ValidationError
	switch {
	case err == nil:
		return httpx.JSON(http.StatusAccepted, ack)
	case errors.As(err, &ve):
		return httpx.Error(http.StatusBadRequest, ve.Message, ve.Violations...)
	case errors.Is(err, apperr.ErrPublish):
		return httpx.Error(http.StatusInternalServerError,
			fmt.Sprintf("Appointment %s was saved but could not be dispatched", ack.ID))
	default:
		h.log.Error("create appointment", "error", err)
		return httpx.Error(http.StatusInternalServerError, "Appointment could not be saved")
	}
}

func (h *Handler) list(ctx context.Context, insuredID string) (events.APIGatewayV2HTTPResponse, error) {
	items, err := h.o.List(ctx, insuredID)
	var ve *apperr.ValidationError
	switch {
	case err == nil:
		return httpx.JSON(http.StatusOK, api.AppointmentList{Items: items})
	case errors.As(err, &ve):
		return httpx.Error(http.StatusBadRequest, ve.Message, ve.Violations...)
	default:
		h.log.Error("list appointments", "insured_id", insuredID, "error", err)
		return httpx.Error(http.StatusInternalServerError, "Appointments could not be read")
	}
}
