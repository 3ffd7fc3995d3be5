package check

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Check.
//
// The state machine has a single non-terminal state:
//
//	Pending --confirm--> Confirmed
//	Pending --snooze---> Snoozed
//	Pending --expire---> Expired
//
// Once a Check leaves Pending it is immutable. Exactly one of the three
// transitions wins for any given Check; all three are expressed as a
// conditional write on (id, status=Pending).
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusSnoozed   Status = "snoozed"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusSnoozed || s == StatusExpired
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusSnoozed, StatusExpired:
		return true
	}
	return false
}

// User is a participant record. The engine is the sole writer: score moves
// only through engine-awarded points and the daily counter resets lazily the
// first time the engine observes the user on a new calendar day.
//
// Version is the optimistic-concurrency token for user updates. Every
// committed mutation increments it.
type User struct {
	ID            string
	Score         int
	SentToday     int
	LastResetDate string // calendar date "2006-01-02" in the deployment timezone
	Version       int64
}

// DayFormat is the calendar-date layout used for quota rollover.
const DayFormat = "2006-01-02"

// Day returns t's calendar date in loc, formatted for LastResetDate.
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayFormat)
}

// Check is a single challenge instance from sender to receiver.
// Records are append-only history: never deleted, mutated exactly once when
// one of confirm/snooze/expire commits.
type Check struct {
	ID         string
	Sender     string
	Receiver   string
	Message    string
	SentAt     time.Time
	Deadline   time.Time
	Status     Status
	ResolvedAt time.Time // zero while Pending
}

// NewID returns a fresh check identifier. Random, not time-derived.
func NewID() string {
	return uuid.NewString()
}

// PairKey returns the normalized unordered-pair key for two user ids.
// Both directions of a pair map to the same key, which is what lets the
// store enforce pairwise exclusivity with a single uniqueness predicate.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// Participant reports whether id is the sender or receiver of c.
func (c Check) Participant(id string) bool {
	return id == c.Sender || id == c.Receiver
}

// Overdue reports whether the deadline has passed at now.
// A check exactly at its deadline is not overdue: confirm and snooze remain
// legal through the deadline instant itself.
func (c Check) Overdue(now time.Time) bool {
	return now.After(c.Deadline)
}

// Remaining returns the time left before the deadline, floored at zero.
func (c Check) Remaining(now time.Time) time.Duration {
	if d := c.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ScoreDelta describes the points awarded by one committed transition.
type ScoreDelta struct {
	Sender   int
	Receiver int
}

// Total returns the combined points awarded to both participants.
func (d ScoreDelta) Total() int { return d.Sender + d.Receiver }

func (d ScoreDelta) String() string {
	return fmt.Sprintf("sender+%d receiver+%d", d.Sender, d.Receiver)
}
