package harness

// TraceEvent records one executed step: the clock time, the command and its
// arguments, and the outcome ("ok" or the rejection code).
type TraceEvent struct {
	Seq     int               `json:"seq"`
	At      string            `json:"at"`
	Op      string            `json:"op"`
	Args    map[string]string `json:"args,omitempty"`
	Outcome string            `json:"outcome"`
	CheckID string            `json:"check_id,omitempty"`
	Awards  *awardsView       `json:"awards,omitempty"`
	Expired []string          `json:"expired,omitempty"`
}

type awardsView struct {
	Sender   int `json:"sender"`
	Receiver int `json:"receiver"`
}

// UserState is a user's record in the final snapshot.
type UserState struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	SentToday int    `json:"sent_today"`
}

// CheckState is a check's record in the final snapshot.
type CheckState struct {
	ID         string `json:"id"`
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	Status     string `json:"status"`
	SentAt     string `json:"sent_at"`
	Deadline   string `json:"deadline"`
	ResolvedAt string `json:"resolved_at,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the executed scenario's name.
	Scenario string `json:"scenario"`

	// Pass is true when every expect clause and final-state assertion held.
	Pass bool `json:"pass"`

	// Trace lists executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Users and Checks snapshot the final state: every seeded user, every
	// created check.
	Users  []UserState  `json:"users"`
	Checks []CheckState `json:"checks"`

	// Errors lists assertion failures. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result for a scenario.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Users:    []UserState{},
		Checks:   []CheckState{},
	}
}

// AddTrace appends a trace event, stamping its sequence number.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace)
	r.Trace = append(r.Trace, ev)
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
