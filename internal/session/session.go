// Package session holds the per-call state shared by the voice webhook,
// the recording callbacks and the call-log sink.
package session

import "time"

// State tracks where a call sits in its lifecycle. Transitions only move
// forward: AwaitingFirstSpeech -> InConversation -> a terminal state ->
// Completed.
type State string

const (
	StateAwaitingFirstSpeech State = "AWAITING_FIRST_SPEECH"
	StateInConversation      State = "IN_CONVERSATION"
	StateEscalated           State = "ESCALATED"
	StateBooked              State = "BOOKED"
	StateDropped             State = "DROPPED"
	StateCompleted           State = "COMPLETED"
)

// Outcome is the business result reported in the call log.
type Outcome string

const (
	OutcomeQuoteProvided     Outcome = "QUOTE_PROVIDED"
	OutcomeAppointmentBooked Outcome = "APPOINTMENT_BOOKED"
	OutcomeEscalated         Outcome = "ESCALATED"
	OutcomeCallDropped       Outcome = "CALL_DROPPED"
)

// CallType mirrors the platform's call classification vocabulary.
type CallType string

const (
	CallTypeAIResolved   CallType = "AI_RESOLVED"
	CallTypeWarmTransfer CallType = "WARM_TRANSFER"
	CallTypeAppointment  CallType = "APPOINTMENT"
	CallTypeDropped      CallType = "DROPPED"
)

// Speaker labels one side of a transcript turn.
type Speaker string

const (
	SpeakerCustomer Speaker = "CUSTOMER"
	SpeakerAgent    Speaker = "AI"
)

// Turn is one utterance in the human-readable transcript.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"message"`
}

// Message is one entry of the generator-native conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Call is the mutable record of one phone call. All access goes through
// Store so that webhooks for the same call id never interleave.
type Call struct {
	ID           string
	CallerNumber string
	StoreID      string
	StartedAt    time.Time
	EndedAt      time.Time

	State    State
	Issue    string
	CallType CallType
	Outcome  Outcome

	Turns   []Turn
	History []Message

	RecordingSegments   []string
	MergedRecordingPath string

	// LogFlushed flips once when the terminal call log has been handed to
	// the sink; it guards the exactly-once flush contract.
	LogFlushed bool
}

// Terminal reports whether the call has reached a terminal state.
func (c *Call) Terminal() bool {
	switch c.State {
	case StateEscalated, StateBooked, StateDropped, StateCompleted:
		return true
	}
	return false
}

// AppendTurn records one exchange side in both the transcript and the
// generator history.
func (c *Call) AppendTurn(speaker Speaker, role, text string) {
	c.Turns = append(c.Turns, Turn{Speaker: speaker, Text: text})
	c.History = append(c.History, Message{Role: role, Content: text})
}
