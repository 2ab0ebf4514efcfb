package recognizer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glyphcmd/internal/inference"
	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/internal/prompt"
	"github.com/MrWong99/glyphcmd/pkg/command"
)

// ScanOrder is the order in which [Scan] evaluates templates. It decides
// ties: on equal confidence the earlier category wins.
var ScanOrder = append(append([]command.Category{}, command.Handlers...), command.Base)

// Scan sends the utterance to every category template and keeps the answer
// with the highest confidence above zero. It has no low-confidence gate and
// no acceptance threshold.
type Scan struct {
	pipeline
}

var _ Recognizer = (*Scan)(nil)

// NewScan returns a scanning recognizer reading templates from store and
// sending prompts to client.
func NewScan(store *prompt.Store, client inference.Client, opts ...Option) *Scan {
	return &Scan{pipeline{
		strategy: StrategyScan,
		store:    store,
		client:   client,
		options:  buildOptions(opts),
	}}
}

// Recognize implements [Recognizer].
func (s *Scan) Recognize(ctx context.Context, text string, vocab command.Vocabulary) command.Result {
	return s.run(ctx, text, func(ctx context.Context, set *prompt.Set) (command.Result, string) {
		return s.recognize(ctx, set, text, vocab)
	})
}

type candidate struct {
	ok  bool
	cmd command.ExtractedCommand
}

func (s *Scan) recognize(ctx context.Context, set *prompt.Set, text string, vocab command.Vocabulary) (command.Result, string) {
	order := scanOrder(set)
	results := make([]candidate, len(order))

	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, c := range order {
		g.Go(func() error {
			cmd, err := s.try(ctx, set, c, text, vocab)
			if err != nil {
				s.stageFailed(ctx, command.StageHandler, c, err)
				return nil
			}
			results[i] = candidate{ok: true, cmd: cmd}
			return nil
		})
	}
	_ = g.Wait()

	best := -1
	for i, r := range results {
		if !r.ok || r.cmd.Confidence <= 0 {
			continue
		}
		if best < 0 || r.cmd.Confidence > results[best].cmd.Confidence {
			best = i
		}
	}
	if best < 0 {
		return command.Failed(command.MsgNoneRecognized, 0, nil), outcomeNoneMatched
	}

	win := results[best].cmd
	return command.Result{
		Recognized: true,
		Command: &command.Details{
			Stage:    command.StageHandler,
			Category: win.Category,
			Payload:  win.Payload,
		},
		Confidence: win.Confidence,
	}, outcomeRecognized
}

func (s *Scan) try(ctx context.Context, set *prompt.Set, c command.Category, text string, vocab command.Vocabulary) (command.ExtractedCommand, error) {
	ctx, span := observe.StartSpan(ctx, "extract", traceCategory(c))
	defer span.End()

	raw, err := s.ask(ctx, set, c, command.StageHandler, text, vocab)
	if err != nil {
		return command.ExtractedCommand{}, err
	}
	return s.parser.ParseCommand(raw, c)
}

// scanOrder returns [ScanOrder] restricted to categories the set has its own
// template for, followed by any further categories the set defines, sorted.
// Base is always last.
func scanOrder(set *prompt.Set) []command.Category {
	seen := make(map[command.Category]bool, len(ScanOrder))
	var out []command.Category
	for _, c := range ScanOrder {
		seen[c] = true
		if c == command.Base {
			continue
		}
		if _, ok := set.Lookup(c); ok {
			out = append(out, c)
		}
	}
	for _, c := range set.Categories() {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return append(out, command.Base)
}

func traceCategory(c command.Category) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("category", c.String()))
}
