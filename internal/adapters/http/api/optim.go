package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/internal/domain/policy"
)

// Layouts accepted for timestamps, most specific first. Zone-less values
// are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// timestamp decodes the datetime strings the decision endpoints accept.
type timestamp struct{ time.Time }

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q; expected RFC3339", s)
}

// decideRequest mirrors the OpenAPI schema of the decision endpoints.
type decideRequest struct {
	CampaignID         string              `json:"campaign_id"`
	Now                timestamp           `json:"now"`
	Deadline           timestamp           `json:"deadline"`
	NumVacancies       *int                `json:"num_vacancies"`
	NumRemainingInPool *int                `json:"num_remaining_in_pool"`
	ImpactedCandidates []model.ImpactEvent `json:"impacted_candidates_data"`
}

func (r decideRequest) validate() error {
	switch {
	case r.Now.IsZero():
		return errors.New("missing now")
	case r.Deadline.IsZero():
		return errors.New("missing deadline")
	case r.NumVacancies == nil:
		return errors.New("missing num_vacancies")
	case r.NumRemainingInPool == nil:
		return errors.New("missing num_remaining_in_pool")
	}
	return nil
}

func (r decideRequest) state() model.CampaignState {
	return model.CampaignState{
		CorrelationID:      r.CampaignID,
		Now:                r.Now.Time,
		Deadline:           r.Deadline.Time,
		NumVacancies:       *r.NumVacancies,
		NumRemainingInPool: *r.NumRemainingInPool,
		ImpactedCandidates: r.ImpactedCandidates,
	}
}

// decisionTuple encodes a decision as [finished, num_candidates_needed,
// callback_time_minutes].
func decisionTuple(d model.Decision) []any {
	return []any{d.Finished, d.NumCandidatesNeeded, d.CallbackMinutes}
}

// OptimHandler serves one policy's decision endpoint.
type OptimHandler struct {
	deps Dependencies
	kind policy.Kind
}

// NewOptimHandler creates a decision handler for kind.
func NewOptimHandler(deps Dependencies, kind policy.Kind) *OptimHandler {
	return &OptimHandler{deps: deps, kind: kind}
}

// HandleDecide handles POST /optim-* requests.
func (h *OptimHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	op := "api.decide." + string(h.kind)
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	req.CampaignID = strings.TrimSpace(req.CampaignID)

	d, err := h.deps.Decide(r.Context(), h.kind, req.CampaignID, req.state())
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionTuple(d))
}
