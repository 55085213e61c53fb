package model

// SimulationJob asks a worker to simulate one campaign end to end.
type SimulationJob struct {
	ID     string // unique id used in logs and results
	Batch  string // batch the result is delivered to
	Policy string // policy kind, e.g. "pacing"
	Seed   uint64 // seed for both the simulator and the policy
}

// SimulationResult summarises one simulated campaign.
type SimulationResult struct {
	JobID          string `json:"job_id"`
	Batch          string `json:"batch,omitempty"`
	Policy         string `json:"policy"`
	Ticks          int    `json:"ticks"`
	Notified       int    `json:"notified"`
	Accepted       int    `json:"accepted"`
	OffersAccepted int    `json:"offers_accepted"`
	Vacancies      int    `json:"vacancies"`
	Fulfilled      bool   `json:"fulfilled"`
	Err            string `json:"error,omitempty"`
}
