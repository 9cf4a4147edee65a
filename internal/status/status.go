// ABOUTME: Agent status enum and the fixed transition policy table.
// ABOUTME: Pure data, no dependencies; every transition attempt is checked here.

package status

// Status is an agent's operational state.
type Status string

// The finite set of agent states.
const (
	Available Status = "Available"
	Busy      Status = "Busy"
	Wrap      Status = "Wrap"
	Break     Status = "Break"
	NotReady  Status = "Not Ready"
	Offline   Status = "Offline"
)

// all lists every status in display order.
var all = []Status{Available, Busy, Wrap, Break, NotReady, Offline}

// transitions maps each status to the statuses it may legally move to.
// Self-loops are never allowed and unknown statuses have no targets
// (lookups fail closed). The disconnect path is the single documented
// exception: it forces Offline without consulting this table.
var transitions = map[Status][]Status{
	Available: {Busy, Break, NotReady, Offline},
	Busy:      {Available, Wrap, NotReady},
	Wrap:      {Available, NotReady},
	Break:     {Available, NotReady},
	NotReady:  {Available, Offline},
	Offline:   {Available},
}

// All returns every recognized status.
func All() []Status {
	out := make([]Status, len(all))
	copy(out, all)
	return out
}

// Valid reports whether s is a recognized status.
func Valid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// AllowedNextStates returns the statuses that current may legally move to.
// Unknown statuses return an empty set.
func AllowedNextStates(current Status) []Status {
	targets, ok := transitions[current]
	if !ok {
		return nil
	}
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// CanTransition reports whether the move from current to target is allowed
// by the table. Fails closed for unknown statuses.
func CanTransition(current, target Status) bool {
	for _, t := range transitions[current] {
		if t == target {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
