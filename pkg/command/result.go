package command

import (
	"encoding/json"
	"fmt"
)

// Failure messages surfaced in [Result.Error]. Transports forward them
// verbatim, so they are part of the wire contract.
const (
	MsgRoutingFailed  = "Failed to determine command type"
	MsgLowConfidence  = "Low confidence in command type"
	MsgNoneRecognized = "No valid command recognized"
)

// HandlerFailedMessage returns the [Result.Error] text used when the
// extraction stage for category c fails.
func HandlerFailedMessage(c Category) string {
	return fmt.Sprintf("Failed to process command with %s handler", c)
}

// RouterDecision is the normalised answer of the routing stage.
type RouterDecision struct {
	Category   Category
	Confidence float64

	// Alternatives lists other plausible categories, most likely first.
	// Never nil after normalisation.
	Alternatives []Category

	// Rationale is the model's free-text explanation, if it gave one.
	Rationale string

	// Converted is true when the answer named a raw verb instead of a
	// category and the category was derived from the verb table.
	Converted bool

	// Raw is the decoded answer object as the model produced it.
	Raw map[string]any
}

// ExtractedCommand is the normalised answer of an extraction stage.
type ExtractedCommand struct {
	Category   Category
	Confidence float64
	Payload    Payload
}

// Stage identifies which pipeline stage produced the [Details] attached to a
// [Result].
type Stage string

const (
	StageRouter  Stage = "router"
	StageHandler Stage = "handler"
)

// Details is the structured command carried by a [Result]. Router-stage
// details (near-misses) have no payload but keep the router's raw answer.
type Details struct {
	Stage        Stage
	Category     Category
	Payload      Payload
	Alternatives []Category
	Rationale    string
	Converted    bool
	Raw          map[string]any
}

// FromRouter builds router-stage details from a routing decision.
func FromRouter(d RouterDecision) *Details {
	return &Details{
		Stage:        StageRouter,
		Category:     d.Category,
		Alternatives: nonNil(d.Alternatives),
		Rationale:    d.Rationale,
		Converted:    d.Converted,
		Raw:          d.Raw,
	}
}

type detailsJSON struct {
	Stage        Stage          `json:"stage"`
	Category     Category       `json:"category"`
	Payload      map[string]any `json:"payload,omitempty"`
	Alternatives []Category     `json:"alternatives"`
	Rationale    string         `json:"rationale,omitempty"`
	Converted    bool           `json:"converted"`
	Raw          map[string]any `json:"raw,omitempty"`
}

// MarshalJSON implements json.Marshaler. Alternatives always encode as an
// array.
func (d Details) MarshalJSON() ([]byte, error) {
	out := detailsJSON{
		Stage:        d.Stage,
		Category:     d.Category,
		Alternatives: nonNil(d.Alternatives),
		Rationale:    d.Rationale,
		Converted:    d.Converted,
		Raw:          d.Raw,
	}
	if d.Payload != nil {
		out.Payload = d.Payload.Fields()
	}
	return json.Marshal(out)
}

// Result is the only value returned by a recognizer. It is produced for every
// request, including total backend failure.
type Result struct {
	Recognized bool
	// Command may be set when Recognized is false so callers can inspect a
	// near-miss.
	Command    *Details
	Confidence float64
	// Error is empty on success.
	Error string
}

type resultJSON struct {
	Recognized bool     `json:"recognized"`
	Command    *Details `json:"command"`
	Confidence float64  `json:"confidence"`
	Error      *string  `json:"error"`
}

// MarshalJSON implements json.Marshaler, encoding the result as
// {recognized, command, confidence, error} with null for absent values.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Recognized: r.Recognized,
		Command:    r.Command,
		Confidence: r.Confidence,
	}
	if r.Error != "" {
		e := r.Error
		out.Error = &e
	}
	return json.Marshal(out)
}

// Failed builds an unrecognised result.
func Failed(msg string, confidence float64, cmd *Details) Result {
	return Result{Command: cmd, Confidence: confidence, Error: msg}
}

func nonNil(c []Category) []Category {
	if c == nil {
		return []Category{}
	}
	return c
}
