package check

// EventType names the committed transition an event describes.
type EventType string

const (
	EventCheckCreated   EventType = "check_created"
	EventCheckConfirmed EventType = "check_confirmed"
	EventCheckSnoozed   EventType = "check_snoozed"
	EventCheckExpired   EventType = "check_expired"
)

// ScoreSnapshot is a user's score as of the commit that produced an event.
type ScoreSnapshot struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// Event is published after every committed transition. It carries the full
// post-transition check and the affected users' score snapshots, so a
// consumer never observes a terminal status without its score effect.
//
// Delivery is best-effort, at-least-once. Engine correctness does not depend
// on any event being delivered.
type Event struct {
	Type   EventType       `json:"type"`
	Check  Check           `json:"check"`
	Awards ScoreDelta      `json:"awards"`
	Scores []ScoreSnapshot `json:"scores,omitempty"`
}
