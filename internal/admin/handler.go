package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/architeacher/adaptivebreaker/internal/usecases"
	"github.com/architeacher/adaptivebreaker/internal/usecases/commands"
	"github.com/architeacher/adaptivebreaker/internal/usecases/queries"
	"github.com/architeacher/adaptivebreaker/pkg/breaker"
)

const (
	contentTypeHeader = "Content-Type"
	applicationJSON   = "application/json"

	statusOK = "ok"
)

type Handler struct {
	app       *usecases.AdminApplication
	clock     clockwork.Clock
	startTime time.Time
}

func NewHandler(app *usecases.AdminApplication, clock clockwork.Clock) *Handler {
	return &Handler{
		app:       app,
		clock:     clock,
		startTime: clock.Now().UTC(),
	}
}

// Liveness reports that the process is serving.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    statusOK,
		"timestamp": h.clock.Now().UTC(),
		"uptime":    h.clock.Since(h.startTime).String(),
	})
}

// ListCircuits returns every circuit, optionally filtered with ?phase=.
func (h *Handler) ListCircuits(w http.ResponseWriter, r *http.Request) {
	query := queries.ListCircuitsQuery{}

	if raw := r.URL.Query().Get("phase"); raw != "" {
		var phase breaker.Phase
		if err := phase.UnmarshalText([]byte(raw)); err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}

		query.Phase = &phase
	}

	states, err := h.app.Queries.ListCircuits.Execute(r.Context(), query)
	if err != nil {
		writeError(w, statusFor(err), err)

		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"circuits": states,
		"count":    len(states),
	})
}

func (h *Handler) GetCircuit(w http.ResponseWriter, r *http.Request) {
	state, err := h.app.Queries.GetCircuit.Execute(r.Context(), queries.GetCircuitQuery{Name: chi.URLParam(r, "name")})
	if err != nil {
		writeError(w, statusFor(err), err)

		return
	}

	writeJSONResponse(w, http.StatusOK, state)
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.app.Queries.GetSnapshot.Execute(r.Context(), queries.GetSnapshotQuery{Name: chi.URLParam(r, "name")})
	if err != nil {
		writeError(w, statusFor(err), err)

		return
	}

	writeJSONResponse(w, http.StatusOK, snapshot)
}

func (h *Handler) ResetCircuit(w http.ResponseWriter, r *http.Request) {
	state, err := h.app.Commands.ResetCircuit.Handle(r.Context(), commands.ResetCircuitCommand{Name: chi.URLParam(r, "name")})
	if err != nil {
		writeError(w, statusFor(err), err)

		return
	}

	writeJSONResponse(w, http.StatusOK, state)
}

// ForceOpenCircuit opens a circuit for ?duration= (a Go duration string), or
// for its sleep window when the parameter is absent.
func (h *Handler) ForceOpenCircuit(w http.ResponseWriter, r *http.Request) {
	cmd := commands.ForceOpenCircuitCommand{Name: chi.URLParam(r, "name")}

	if raw := r.URL.Query().Get("duration"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid duration %q: %w", raw, err))

			return
		}

		cmd.Duration = d
	}

	state, err := h.app.Commands.ForceOpenCircuit.Handle(r.Context(), cmd)
	if err != nil {
		writeError(w, statusFor(err), err)

		return
	}

	writeJSONResponse(w, http.StatusOK, state)
}

func (h *Handler) ForceCloseCircuit(w http.ResponseWriter, r *http.Request) {
	state, err := h.app.Commands.ForceCloseCircuit.Handle(r.Context(), commands.ForceCloseCircuitCommand{Name: chi.URLParam(r, "name")})
	if err != nil {
		writeError(w, statusFor(err), err)

		return
	}

	writeJSONResponse(w, http.StatusOK, state)
}

// ListSinks reports the guard state of every notification sink.
func (h *Handler) ListSinks(w http.ResponseWriter, r *http.Request) {
	sinks, err := h.app.Queries.FetchSinks.Execute(r.Context(), queries.FetchSinksQuery{})
	if err != nil {
		writeError(w, statusFor(err), err)

		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"sinks": sinks,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, breaker.ErrCircuitNotFound):
		return http.StatusNotFound
	case errors.Is(err, breaker.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSONResponse(w, status, map[string]string{
		"error": err.Error(),
	})
}

func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set(contentTypeHeader, applicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
