package model

import "time"

// Summary aggregates every Outcome of one scan run.
// It is built by the result reporter once the outcome stream is closed.
type Summary struct {
	// Input is the target list the run was started with (file path or "-").
	Input string `json:"input,omitempty"`

	// Total is the number of endpoints that were scheduled.
	Total int `json:"total"`

	// Completed is the number of outcomes received.
	// It equals Total unless the run was interrupted.
	Completed int `json:"completed"`

	// Alive lists confirmed endpoints in completion order.
	Alive []Endpoint `json:"alive"`

	// Kinds counts outcomes by kind, including KindNone.
	Kinds map[ErrorKind]int `json:"kinds"`

	// StartedAt is when the reporter started consuming outcomes.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the wall time between StartedAt and the stream closing.
	Elapsed time.Duration `json:"elapsed"`

	// Interrupted is true when the run was cancelled before every endpoint
	// was scheduled.
	Interrupted bool `json:"interrupted,omitempty"`
}

// NewSummary creates an empty Summary for a run of total endpoints.
func NewSummary(total int) *Summary {
	return &Summary{
		Total: total,
		Alive: make([]Endpoint, 0),
		Kinds: make(map[ErrorKind]int),
	}
}

// Record adds one outcome to the summary.
func (s *Summary) Record(o Outcome) {
	s.Completed++
	s.Kinds[o.Kind]++
	if o.Alive() {
		s.Alive = append(s.Alive, o.Endpoint)
	}
}

// AliveCount returns the number of alive endpoints.
func (s *Summary) AliveCount() int {
	return len(s.Alive)
}

// FailedCount returns the number of completed probes that were not alive.
func (s *Summary) FailedCount() int {
	return s.Completed - len(s.Alive)
}

// Count returns the number of outcomes of the given kind.
func (s *Summary) Count(kind ErrorKind) int {
	if s.Kinds == nil {
		return 0
	}
	return s.Kinds[kind]
}
