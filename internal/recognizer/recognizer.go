// Package recognizer turns an utterance into a [command.Result] by asking an
// inference backend to classify and then extract the command.
//
// Two strategies are available. [TwoStage] routes the utterance to a
// category with the base template, gates on the router's confidence and then
// runs the category's own template. [Scan] runs every category template and
// keeps the most confident answer. Both read the template set once per
// request, keep no per-request state and never return an error: every
// failure is reported inside the result.
package recognizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/glyphcmd/internal/answer"
	"github.com/MrWong99/glyphcmd/internal/inference"
	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/prompt"
	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Confidence thresholds of the two-stage strategy.
const (
	// LowConfidenceThreshold stops a recognition after routing when the
	// router is less sure than this.
	LowConfidenceThreshold = 0.3

	// AcceptanceThreshold is the minimum final confidence of a recognised
	// command.
	AcceptanceThreshold = 0.5
)

// Strategy selects a recognition algorithm.
type Strategy string

const (
	StrategyTwoStage Strategy = "two_stage"
	StrategyScan     Strategy = "scan"
)

// Outcome labels used in logs and metrics.
const (
	outcomeRecognized    = "recognized"
	outcomeRejected      = "rejected"
	outcomeEmpty         = "empty"
	outcomeRoutingFailed = "routing_failed"
	outcomeLowConfidence = "low_confidence"
	outcomeHandlerFailed = "handler_failed"
	outcomeNoneMatched   = "none_recognized"
)

// Recognizer maps an utterance to a command.
type Recognizer interface {
	// Recognize always returns a result; backend and decode failures are
	// reported through Result.Error.
	Recognize(ctx context.Context, text string, vocab command.Vocabulary) command.Result
}

// Option configures a recognizer.
type Option func(*options)

type options struct {
	parser      *answer.Parser
	metrics     *observe.Metrics
	model       string
	concurrency int
}

// WithParser replaces the default answer parser.
func WithParser(p *answer.Parser) Option {
	return func(o *options) { o.parser = p }
}

// WithMetrics records recognitions into m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithModel sets the model passed with every inference request. Empty keeps
// the backend's configured model.
func WithModel(id string) Option {
	return func(o *options) { o.model = id }
}

// WithConcurrency bounds the parallel inference calls of [Scan]. Values
// below 1 mean one call per template at once.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.parser == nil {
		o.parser = answer.NewParser()
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// New returns the recognizer for strategy. An empty strategy selects
// [StrategyTwoStage].
func New(strategy Strategy, store *prompt.Store, client inference.Client, opts ...Option) (Recognizer, error) {
	switch strategy {
	case "", StrategyTwoStage:
		return NewTwoStage(store, client, opts...), nil
	case StrategyScan:
		return NewScan(store, client, opts...), nil
	default:
		return nil, fmt.Errorf("recognizer: unknown strategy %q (want %q or %q)", strategy, StrategyTwoStage, StrategyScan)
	}
}

// pipeline holds what both strategies share.
type pipeline struct {
	strategy Strategy
	store    *prompt.Store
	client   inference.Client
	options
}

// run wraps a strategy body with the recognition span, metrics and the
// empty-utterance short circuit.
func (p *pipeline) run(ctx context.Context, text string, body func(ctx context.Context, set *prompt.Set) (command.Result, string)) command.Result {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "recognize",
		trace.WithAttributes(
			attribute.String("strategy", string(p.strategy)),
			attribute.Int("utterance.length", len(text)),
		),
	)
	defer span.End()

	var (
		res     command.Result
		outcome string
	)
	if strings.TrimSpace(text) == "" {
		res, outcome = command.Result{}, outcomeEmpty
	} else {
		res, outcome = body(ctx, p.store.Current())
	}

	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Float64("confidence", res.Confidence),
	)
	p.metrics.RecordRecognition(ctx, string(p.strategy), outcome, res.Confidence, time.Since(start))
	observe.Logger(ctx).Info("command recognition finished",
		"strategy", string(p.strategy),
		"outcome", outcome,
		"recognized", res.Recognized,
		"confidence", res.Confidence,
		"duration", time.Since(start),
	)
	return res
}

// ask compiles the template for c, sends it and returns the raw reply.
func (p *pipeline) ask(ctx context.Context, set *prompt.Set, c command.Category, stage command.Stage, text string, vocab command.Vocabulary) (string, error) {
	body := prompt.Compile(set.Get(c), text, vocab)
	return p.client.Infer(ctx, inference.Request{
		Prompt: body,
		Model:  p.model,
		Stage:  string(stage),
	})
}

// stageFailed logs and counts a failed stage. Decode failures are labelled
// with their answer kind; everything else is a transport failure.
func (p *pipeline) stageFailed(ctx context.Context, stage command.Stage, c command.Category, err error) {
	kind := "transport"
	if k := answer.KindOf(err); k != 0 {
		kind = k.String()
	}
	p.metrics.RecordStageFailure(ctx, string(stage), kind)
	observe.Logger(ctx).Warn("recognition stage failed",
		"stage", string(stage),
		"category", c.String(),
		"kind", kind,
		"err", err,
	)
}
