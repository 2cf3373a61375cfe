package wait

import "time"

// Status enumerates possible waiting statuses.
type Status int

const (
	Start Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	return [...]string{"start", "ready", "failed"}[s]
}

// Message is a status update emitted by a wait operation.
type Message interface {
	// Status is the status of the wait operation when the message was emitted.
	Status() Status
	// Target is the display name of the event being waited.
	Target() string
	// ElapsedTime is the duration between the wait start and the message emission.
	ElapsedTime() time.Duration
	// Err is the failure for Failed messages and nil otherwise.
	Err() error
}
