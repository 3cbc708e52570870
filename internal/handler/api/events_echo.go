package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"CourtArb/internal/domain/models"
	domrepo "CourtArb/internal/domain/repository"
	xhttp "CourtArb/pkg/http"
	xlogger "CourtArb/pkg/logger"

	"github.com/labstack/echo/v4"
)

const healthTimeout = 2 * time.Second

// HealthCheck probes one optional backend for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// EventSignal is a signal with the matchup it belongs to.
type EventSignal struct {
	models.Signal
	HomeTeam       models.CanonicalID    `json:"homeTeam"`
	AwayTeam       models.CanonicalID    `json:"awayTeam"`
	LifecycleState models.LifecycleState `json:"lifecycleState"`
}

// EventsEchoHandler serves the read side of the event store.
type EventsEchoHandler struct {
	logger *xlogger.Logger
	store  domrepo.EventReader
	checks []HealthCheck
}

func NewEventsEchoHandler(logger *xlogger.Logger, store domrepo.EventReader, checks ...HealthCheck) *EventsEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &EventsEchoHandler{logger: logger, store: store, checks: checks}
}

func (h *EventsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/events", h.ListEvents)
	g.GET("/events/:id", h.GetEvent)
	g.GET("/signals", h.ListSignals)
	e.GET("/healthz", h.Health)
}

func (h *EventsEchoHandler) ListEvents(c echo.Context) error {
	req := &models.ListEventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	filter := domrepo.EventFilter{State: models.LifecycleState(req.State)}
	if req.HasSignals != "" {
		has := req.HasSignals == "true"
		filter.HasSignals = &has
	}

	events := h.store.List(filter)
	total := int64(len(events))
	if len(events) > req.Limit {
		events = events[:req.Limit]
	}
	return xhttp.ListResponse(c, events, total)
}

func (h *EventsEchoHandler) GetEvent(c echo.Context) error {
	id := c.Param("id")
	ev, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("event %s not found", id).WithError(err))
		}
		h.logger.Error("get event error", xlogger.String("event_id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("get event failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, ev)
}

// ListSignals flattens the current signals of every event, strongest first.
func (h *EventsEchoHandler) ListSignals(c echo.Context) error {
	req := &models.ListSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var out []EventSignal
	for _, ev := range h.store.ListWithSignals() {
		for _, sig := range ev.Signals {
			if req.Direction != "" && string(sig.Direction) != req.Direction {
				continue
			}
			if sig.Confidence < req.MinConfidence {
				continue
			}
			out = append(out, EventSignal{
				Signal:         sig,
				HomeTeam:       ev.HomeTeam,
				AwayTeam:       ev.AwayTeam,
				LifecycleState: ev.LifecycleState,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})

	total := int64(len(out))
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	if out == nil {
		out = []EventSignal{}
	}
	return xhttp.ListResponse(c, out, total)
}

func (h *EventsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	backends := make(map[string]string, len(h.checks))
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("backend", chk.Name), xlogger.Error(err))
			backends[chk.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		backends[chk.Name] = "ok"
	}
	// Probes read the transport status, so it is not folded into the envelope.
	return c.JSON(status, xhttp.APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data: map[string]interface{}{
			"events":   h.store.Len(),
			"backends": backends,
		},
	})
}
