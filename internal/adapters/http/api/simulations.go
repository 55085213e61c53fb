package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/pacer/internal/simulation"
)

// SimulationsHandler handles simulation batch requests.
type SimulationsHandler struct {
	deps Dependencies
}

// NewSimulationsHandler creates a new simulations handler.
func NewSimulationsHandler(deps Dependencies) *SimulationsHandler {
	return &SimulationsHandler{deps: deps}
}

// HandlePostSimulations handles POST /simulations requests and answers with
// the aggregated statistics once the whole batch ran.
func (h *SimulationsHandler) HandlePostSimulations(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_simulations"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req simulation.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	stats, err := h.deps.Simulate(r.Context(), req)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
