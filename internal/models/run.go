package models

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusAborted   = "aborted"
)

// Run is one execution of a stage, as recorded in the history database.
type Run struct {
	ID         string  `json:"id"`
	Stage      Stage   `json:"stage"`
	Status     string  `json:"status"`
	PoolTag    string  `json:"poolTag,omitempty"`
	Source     string  `json:"source,omitempty"`
	Params     string  `json:"params,omitempty"`
	Summary    Summary `json:"summary"`
	Error      string  `json:"error,omitempty"`
	StartedAt  string  `json:"startedAt"`
	FinishedAt string  `json:"finishedAt,omitempty"`
}

// OutcomeRecord is a persisted per-wallet outcome.
type OutcomeRecord struct {
	ID               int64         `json:"id"`
	RunID            string        `json:"runId"`
	Wallet           string        `json:"wallet"`
	Stage            Stage         `json:"stage"`
	Status           OutcomeStatus `json:"status"`
	TxID             string        `json:"txId,omitempty"`
	TxURL            string        `json:"txUrl,omitempty"`
	Amount           string        `json:"amount"`
	Reason           string        `json:"reason,omitempty"`
	RetriesExhausted bool          `json:"retriesExhausted"`
	CreatedAt        string        `json:"createdAt"`
}
