package workflow

import "time"

// Report is the outcome of one reconciliation run.
type Report struct {
	RunId              string              `json:"run_id"`
	StoreId            string              `json:"store_id"`
	PendingOnly        bool                `json:"pending_only"`
	LedgerScope        LedgerScope         `json:"ledger_scope"`
	StartedAt          time.Time           `json:"started_at"`
	FinishedAt         time.Time           `json:"finished_at"`
	UpdatedProducts    []string            `json:"updated_products"`
	UnresolvedProducts []UnresolvedProduct `json:"unresolved_products"`
	FailedProducts     []FailedProduct     `json:"failed_products"`
	SkippedConferences []SkippedConference `json:"skipped_conferences"`
	Deltas             []StockDelta        `json:"deltas"`
	Cancelled          bool                `json:"cancelled"`
}

type UnresolvedProduct struct {
	Name string `json:"name"`
	// PendingQuantity sums the received quantities of every conference line carrying the name.
	PendingQuantity int          `json:"pending_quantity"`
	ConferenceIds   []int        `json:"conference_ids"`
	Suggestions     []Suggestion `json:"suggestions"`
}

type FailedProduct struct {
	ConferenceId int    `json:"conference_id"`
	Name         string `json:"name"`
	Stage        string `json:"stage"`
	Error        string `json:"error"`
}

type SkippedConference struct {
	ConferenceId int    `json:"conference_id"`
	Reason       string `json:"reason"`
}

const (
	stageResolve = "resolve"
	stageApply   = "apply"
)

// UnresolvedNames lists the unresolved product names in report order.
func (r *Report) UnresolvedNames() []string {
	names := make([]string, 0, len(r.UnresolvedProducts))
	for _, p := range r.UnresolvedProducts {
		names = append(names, p.Name)
	}
	return names
}
