// Package call implements the per-call state machine: greeting, business
// hours gating, escalation and booking triggers, knowledge-backed response
// generation and terminal call-log flushing.
package call

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/storevoice/storevoice/internal/behavior"
	"github.com/storevoice/storevoice/internal/classify"
	"github.com/storevoice/storevoice/internal/service/agent"
	"github.com/storevoice/storevoice/internal/session"
	"github.com/storevoice/storevoice/internal/telephony"
)

const (
	voiceName = "alice"
	language  = "en-US"

	gatherTimeoutSeconds = 15
	dialTimeoutSeconds   = 20
)

// bookingTriggers are the utterance words that flag appointment intent.
var bookingTriggers = []string{"appointment", "book", "schedule"}

// BehaviorSource exposes the active store-policy snapshot.
type BehaviorSource interface {
	Current() *behavior.Snapshot
}

// Retriever returns ranked knowledge snippets for an utterance.
type Retriever interface {
	Ready() bool
	Retrieve(ctx context.Context, utterance string) ([]string, error)
}

// Responder generates the next agent utterance.
type Responder interface {
	Generate(ctx context.Context, req agent.Request) (string, error)
}

// LogSink persists a completed call summary.
type LogSink interface {
	Flush(ctx context.Context, call session.Call) error
}

// Carrier is the slice of the telephony REST API the orchestrator uses.
type Carrier interface {
	StartCallRecording(ctx context.Context, callSID, statusCallback string) error
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// TaskRunner accepts background side effects off the response path.
type TaskRunner interface {
	Submit(name string, fn func(context.Context) error) bool
}

// Config carries the store identity and routing settings for call handling.
type Config struct {
	StoreID         string
	StoreName       string
	PublicURL       string
	ManagerNumber   string
	AppointmentLink string
	Location        *time.Location
}

// Orchestrator sequences one telephony response per inbound voice event.
type Orchestrator struct {
	cfg       Config
	store     *session.Store
	behavior  BehaviorSource
	retriever Retriever
	responder Responder
	sink      LogSink
	carrier   Carrier
	runner    TaskRunner

	now func() time.Time
}

// New wires the orchestrator. All collaborators are required.
func New(cfg Config, store *session.Store, src BehaviorSource, retriever Retriever, responder Responder, sink LogSink, carrier Carrier, runner TaskRunner) *Orchestrator {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		behavior:  src,
		retriever: retriever,
		responder: responder,
		sink:      sink,
		carrier:   carrier,
		runner:    runner,
		now:       func() time.Time { return time.Now().In(loc) },
	}
}

// HandleTurn processes one inbound voice event and always yields a TwiML
// response: a reply-plus-gather, a transfer, or an apology-and-hangup. It
// never returns nil.
func (o *Orchestrator) HandleTurn(ctx context.Context, callID, callerNumber, speech string) *telephony.VoiceResponse {
	created := o.store.CreateIfAbsent(callID, func(c *session.Call) {
		c.CallerNumber = callerNumber
		c.StoreID = o.cfg.StoreID
		c.StartedAt = time.Now().UTC()
	})

	if created {
		callbackURL := o.cfg.PublicURL + "/recording-status"
		o.runner.Submit("recording-start:"+callID, func(taskCtx context.Context) error {
			return o.carrier.StartCallRecording(taskCtx, callID, callbackURL)
		})
	}

	var resp *telephony.VoiceResponse
	o.store.Mutate(callID, func(c *session.Call) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[voice] turn for call %s panicked: %v", callID, rec)
				resp = o.failTurn(c)
			}
		}()
		resp = o.turn(ctx, c, speech)
	})

	if resp == nil {
		// Session vanished mid-turn; still give the caller a response.
		resp = apologyResponse()
	}
	return resp
}

// turn runs the state machine with the session lock held.
func (o *Orchestrator) turn(ctx context.Context, c *session.Call, speech string) *telephony.VoiceResponse {
	snapshot := o.behavior.Current()

	// Greeting turn: first contact, or a gather timeout re-invoking with
	// no speech. Both replay the greeting cycle.
	if speech == "" {
		return o.greetingTurn(c, snapshot)
	}

	if c.State == session.StateAwaitingFirstSpeech {
		c.State = session.StateInConversation
	}

	// First classification wins; later utterances never change the issue.
	if c.Issue == "" {
		c.Issue = classify.Classify(speech)
		log.Printf("[voice] call %s issue classified as %s", c.ID, c.Issue)
	}

	lower := strings.ToLower(speech)

	if resp := o.escalationCheck(c, snapshot, lower); resp != nil {
		return resp
	}

	o.bookingCheck(c, lower)

	return o.respondTurn(ctx, c, snapshot, speech)
}

func (o *Orchestrator) greetingTurn(c *session.Call, snapshot *behavior.Snapshot) *telephony.VoiceResponse {
	if !snapshot.IsOpen(o.now()) {
		o.markDropped(c)
		o.flushOnce(c)
		return telephony.NewVoiceResponse().
			Say(snapshot.ClosedMessage(), voiceName, "").
			Hangup()
	}

	return telephony.NewVoiceResponse().
		Say(snapshot.Greeting(o.cfg.StoreName), voiceName, language).
		GatherSpeech(o.voiceWebhookURL(), gatherTimeoutSeconds, language)
}

// escalationCheck bridges the call to a human when a transfer keyword is
// heard. A hit short-circuits the rest of the turn.
func (o *Orchestrator) escalationCheck(c *session.Call, snapshot *behavior.Snapshot, lower string) *telephony.VoiceResponse {
	if o.cfg.ManagerNumber == "" {
		return nil
	}

	for _, keyword := range snapshot.EscalationKeywords() {
		if !strings.Contains(lower, keyword) {
			continue
		}

		if !c.Terminal() {
			c.State = session.StateEscalated
		}
		c.CallType = session.CallTypeWarmTransfer
		c.Outcome = session.OutcomeEscalated
		o.flushOnce(c)

		log.Printf("[voice] call %s escalated on keyword %q", c.ID, keyword)
		return telephony.NewVoiceResponse().
			Say("Connecting you to a human agent.", voiceName, "").
			Dial(o.cfg.ManagerNumber, dialTimeoutSeconds)
	}
	return nil
}

// bookingCheck marks appointment intent and sends the booking link, but the
// turn continues: the caller still gets a spoken reply.
func (o *Orchestrator) bookingCheck(c *session.Call, lower string) {
	if c.State == session.StateBooked {
		return
	}

	matched := false
	for _, trigger := range bookingTriggers {
		if strings.Contains(lower, trigger) {
			matched = true
			break
		}
	}
	if !matched {
		return
	}

	if !c.Terminal() {
		c.State = session.StateBooked
	}
	c.CallType = session.CallTypeAppointment
	c.Outcome = session.OutcomeAppointmentBooked

	to := c.CallerNumber
	link := o.cfg.AppointmentLink
	o.runner.Submit("booking-sms:"+c.ID, func(taskCtx context.Context) error {
		body := fmt.Sprintf("Thank you for calling! You can book your appointment here: %s", link)
		_, err := o.carrier.SendSMS(taskCtx, to, body)
		return err
	})

	o.flushOnce(c)
	log.Printf("[voice] call %s booking flow triggered", c.ID)
}

// respondTurn retrieves knowledge, generates the agent reply and appends
// the exchange to the transcript.
func (o *Orchestrator) respondTurn(ctx context.Context, c *session.Call, snapshot *behavior.Snapshot, speech string) *telephony.VoiceResponse {
	if !o.retriever.Ready() {
		o.markDropped(c)
		o.flushOnce(c)
		return telephony.NewVoiceResponse().
			Say("System is initializing. Please try again shortly.", voiceName, "").
			Hangup()
	}

	snippets, err := o.retriever.Retrieve(ctx, speech)
	if err != nil {
		// Retrieval failure degrades to an uninformed reply, not a drop.
		log.Printf("[voice] retrieval failed for call %s: %v", c.ID, err)
		snippets = nil
	}

	reply, err := o.responder.Generate(ctx, agent.Request{
		StoreName: o.cfg.StoreName,
		Tone:      snapshot.Tone,
		Hours:     snapshot.FormatHours(),
		Context:   snippets,
		History:   c.History,
		Utterance: speech,
	})
	if err != nil {
		log.Printf("[voice] response generation failed for call %s: %v", c.ID, err)
		return o.failTurn(c)
	}

	c.AppendTurn(session.SpeakerCustomer, "user", speech)
	c.AppendTurn(session.SpeakerAgent, "assistant", reply)

	return telephony.NewVoiceResponse().
		Say(reply, voiceName, language).
		GatherSpeech(o.voiceWebhookURL(), gatherTimeoutSeconds, language)
}

// FinishCall handles the natural end of a call (signaled by the recording
// completing): flush the log if no terminal transition did it, then retire
// the session.
func (o *Orchestrator) FinishCall(callID string) {
	o.store.Mutate(callID, func(c *session.Call) {
		// Recording callbacks arrive after the call ends and can recreate a
		// session for an id whose terminal flush already retired it. Such a
		// session never saw a voice turn; retire it without logging anything.
		if c.CallerNumber == "" && c.State == session.StateAwaitingFirstSpeech && len(c.Turns) == 0 {
			o.store.Remove(callID)
			return
		}

		if c.LogFlushed {
			// Booking keeps the session alive for the rest of the
			// conversation; the call is over now, so retire it.
			if c.State == session.StateBooked {
				c.State = session.StateCompleted
				o.store.Remove(callID)
			}
			return
		}

		c.State = session.StateCompleted
		o.flushOnce(c)
	})
}

// markDropped forces the terminal dropped state, preserving monotonic
// transitions.
func (o *Orchestrator) markDropped(c *session.Call) {
	if !c.Terminal() {
		c.State = session.StateDropped
	}
	c.CallType = session.CallTypeDropped
	c.Outcome = session.OutcomeCallDropped
}

// failTurn is the outermost error boundary: any unrecoverable turn failure
// drops the call, flushes the log best-effort and yields the apology.
func (o *Orchestrator) failTurn(c *session.Call) *telephony.VoiceResponse {
	o.markDropped(c)
	o.flushOnce(c)
	return apologyResponse()
}

// flushOnce hands the call summary to the sink exactly once. On sink
// success the session is retired, except after booking where the
// conversation goes on. On failure the session is retained for diagnosis;
// no automatic retry is scheduled.
func (o *Orchestrator) flushOnce(c *session.Call) {
	if c.LogFlushed {
		return
	}
	c.LogFlushed = true
	if c.EndedAt.IsZero() {
		c.EndedAt = time.Now().UTC()
	}

	snapshot := *c
	snapshot.Turns = append([]session.Turn(nil), c.Turns...)
	snapshot.History = append([]session.Message(nil), c.History...)
	snapshot.RecordingSegments = append([]string(nil), c.RecordingSegments...)

	callID := c.ID
	o.runner.Submit("calllog-flush:"+callID, func(taskCtx context.Context) error {
		if err := o.sink.Flush(taskCtx, snapshot); err != nil {
			return fmt.Errorf("flush call %s: %w", callID, err)
		}
		if snapshot.State != session.StateBooked {
			o.store.Mutate(callID, func(c *session.Call) {
				c.State = session.StateCompleted
			})
			o.store.Remove(callID)
		}
		return nil
	})
}

func (o *Orchestrator) voiceWebhookURL() string {
	return o.cfg.PublicURL + "/voice"
}

func apologyResponse() *telephony.VoiceResponse {
	return telephony.NewVoiceResponse().
		Say("Sorry. There was a server error.", voiceName, "").
		Hangup()
}
