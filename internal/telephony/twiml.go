package telephony

import (
	"encoding/xml"
	"fmt"
)

// TwiML verb elements. Only the verbs this service emits are modeled.

// Say speaks text to the caller.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Gather listens for caller speech and posts the result back to Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	SpeechModel   string   `xml:"speechModel,attr,omitempty"`
}

// Dial bridges the call to another number.
type Dial struct {
	XMLName xml.Name `xml:"Dial"`
	Timeout int      `xml:"timeout,attr,omitempty"`
	Number  string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// VoiceResponse accumulates TwiML verbs in emission order.
type VoiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// NewVoiceResponse returns an empty TwiML response document.
func NewVoiceResponse() *VoiceResponse {
	return &VoiceResponse{}
}

// Say appends a spoken prompt.
func (r *VoiceResponse) Say(text, voice, language string) *VoiceResponse {
	r.Verbs = append(r.Verbs, Say{Voice: voice, Language: language, Text: text})
	return r
}

// GatherSpeech appends a speech-gather directive posting back to action.
func (r *VoiceResponse) GatherSpeech(action string, timeoutSeconds int, language string) *VoiceResponse {
	r.Verbs = append(r.Verbs, Gather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		Timeout:       timeoutSeconds,
		SpeechTimeout: "auto",
		Language:      language,
		SpeechModel:   "phone_call",
	})
	return r
}

// Dial appends a bridge to number with a bounded ring timeout.
func (r *VoiceResponse) Dial(number string, timeoutSeconds int) *VoiceResponse {
	r.Verbs = append(r.Verbs, Dial{Number: number, Timeout: timeoutSeconds})
	return r
}

// Hangup appends a hangup directive.
func (r *VoiceResponse) Hangup() *VoiceResponse {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// HasGather reports whether the document contains a speech-gather directive.
func (r *VoiceResponse) HasGather() bool {
	for _, v := range r.Verbs {
		if _, ok := v.(Gather); ok {
			return true
		}
	}
	return false
}

// Render serializes the document with the XML declaration the carrier
// expects.
func (r *VoiceResponse) Render() (string, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal twiml: %w", err)
	}
	return xml.Header + string(body), nil
}
