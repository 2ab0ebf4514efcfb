package recognizer

import (
	"context"
	"errors"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/glyphcmd/internal/inference"
	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/prompt"
	"github.com/MrWong99/glyphcmd/pkg/command"
)

var errUnresolvable = errors.New("router answer names no usable category")

// TwoStage routes an utterance with the base template, then extracts the
// command with the routed category's template.
//
// The final confidence is the smaller of the two stage confidences, so a
// command is accepted only when both stages are sure of it.
type TwoStage struct {
	pipeline
}

var _ Recognizer = (*TwoStage)(nil)

// NewTwoStage returns a two-stage recognizer reading templates from store
// and sending prompts to client.
func NewTwoStage(store *prompt.Store, client inference.Client, opts ...Option) *TwoStage {
	return &TwoStage{pipeline{
		strategy: StrategyTwoStage,
		store:    store,
		client:   client,
		options:  buildOptions(opts),
	}}
}

// Recognize implements [Recognizer].
func (r *TwoStage) Recognize(ctx context.Context, text string, vocab command.Vocabulary) command.Result {
	return r.run(ctx, text, func(ctx context.Context, set *prompt.Set) (command.Result, string) {
		return r.recognize(ctx, set, text, vocab)
	})
}

func (r *TwoStage) recognize(ctx context.Context, set *prompt.Set, text string, vocab command.Vocabulary) (command.Result, string) {
	decision, err := r.route(ctx, set, text, vocab)
	if err != nil {
		r.stageFailed(ctx, command.StageRouter, decision.Category, err)
		return command.Failed(command.MsgRoutingFailed, 0, nil), outcomeRoutingFailed
	}

	if decision.Confidence < LowConfidenceThreshold {
		return command.Failed(command.MsgLowConfidence, decision.Confidence, command.FromRouter(decision)), outcomeLowConfidence
	}

	extracted, err := r.extract(ctx, set, decision.Category, text, vocab)
	if err != nil {
		r.stageFailed(ctx, command.StageHandler, decision.Category, err)
		return command.Failed(command.HandlerFailedMessage(decision.Category), decision.Confidence, command.FromRouter(decision)), outcomeHandlerFailed
	}

	final := math.Min(decision.Confidence, extracted.Confidence)
	details := &command.Details{
		Stage:        command.StageHandler,
		Category:     decision.Category,
		Payload:      extracted.Payload,
		Alternatives: decision.Alternatives,
		Rationale:    decision.Rationale,
		Converted:    decision.Converted,
	}
	if final < AcceptanceThreshold {
		return command.Result{Command: details, Confidence: final}, outcomeRejected
	}
	return command.Result{Recognized: true, Command: details, Confidence: final}, outcomeRecognized
}

// route runs the router stage. The returned decision is usable only when err
// is nil.
func (r *TwoStage) route(ctx context.Context, set *prompt.Set, text string, vocab command.Vocabulary) (command.RouterDecision, error) {
	ctx, span := observe.StartSpan(ctx, "route")
	defer span.End()

	raw, err := r.ask(ctx, set, command.Base, command.StageRouter, text, vocab)
	if err != nil {
		return command.RouterDecision{}, err
	}
	decision, err := r.parser.ParseRouter(raw)
	if err != nil {
		return command.RouterDecision{}, err
	}
	span.SetAttributes(
		attribute.String("category", decision.Category.String()),
		attribute.Float64("confidence", decision.Confidence),
		attribute.Bool("converted", decision.Converted),
	)
	if !resolvable(set, decision.Category) {
		return decision, errUnresolvable
	}
	return decision, nil
}

// extract runs the handler stage for c.
func (r *TwoStage) extract(ctx context.Context, set *prompt.Set, c command.Category, text string, vocab command.Vocabulary) (command.ExtractedCommand, error) {
	ctx, span := observe.StartSpan(ctx, "extract", traceCategory(c))
	defer span.End()

	raw, err := r.ask(ctx, set, c, command.StageHandler, text, vocab)
	if err != nil {
		return command.ExtractedCommand{}, err
	}
	extracted, err := r.parser.ParseCommand(raw, c)
	if err != nil {
		return command.ExtractedCommand{}, err
	}
	span.SetAttributes(attribute.Float64("confidence", extracted.Confidence))
	return extracted, nil
}

// resolvable reports whether a router category can be handed to the
// extraction stage: it must be a real category with a template of its own
// or one of the built-in handler categories.
func resolvable(set *prompt.Set, c command.Category) bool {
	switch c {
	case "", command.Unknown, command.Base:
		return false
	}
	if c.IsHandler() {
		return true
	}
	_, ok := set.Lookup(c)
	return ok
}
