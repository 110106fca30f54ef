// Package translate sends the text spans of a parsed file to a language model
// in as few requests as practical and falls back to the original text for any
// request that fails or answers with the wrong number of items.
//
// The model only ever sees plain strings. Positions, timings and speaker
// headers stay in the codec entries and never cross this boundary.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"transponster/internal/codec"
	"transponster/internal/logging"
)

const (
	DefaultMaxBatchItems = 40
	DefaultMaxBatchChars = 6000
)

// ErrCountMismatch is returned by a Model, or synthesized by the Translator,
// when a reply does not carry one item per request item.
var ErrCountMismatch = errors.New("translation count mismatch")

// Model translates a list of plain strings. The reply must have the same
// length and order as texts.
type Model interface {
	TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error)
}

// Waiter paces requests. *rate.Limiter and *ratelimit.Limiter both satisfy it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Unit is one translatable span. Entry is the position of the codec entry it
// came from.
type Unit struct {
	Entry      int
	Original   string
	Translated string
	OK         bool
}

// Result carries the translated units in input order.
type Result struct {
	Units        []Unit
	Untranslated []int
	Requests     int
}

// Translated counts the units that hold model output.
func (r Result) Translated() int {
	count := 0
	for _, unit := range r.Units {
		if unit.OK && strings.TrimSpace(unit.Original) != "" {
			count++
		}
	}
	return count
}

// Partial reports that some spans were translated and some fell back.
func (r Result) Partial() bool {
	return len(r.Untranslated) > 0 && r.Translated() > 0
}

// Failed reports that spans needed translating and none were.
func (r Result) Failed() bool {
	return len(r.Untranslated) > 0 && r.Translated() == 0
}

// Translator batches units for a Model.
type Translator struct {
	model    Model
	maxItems int
	maxChars int
	limiter  Waiter
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithMaxBatchItems caps the number of spans per request.
func WithMaxBatchItems(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.maxItems = n
		}
	}
}

// WithMaxBatchChars caps the total characters per request. A single span
// longer than the cap is sent alone.
func WithMaxBatchChars(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.maxChars = n
		}
	}
}

// WithLimiter paces requests to the model.
func WithLimiter(w Waiter) Option {
	return func(t *Translator) {
		t.limiter = w
	}
}

// WithRequestTimeout bounds each model request. A request that runs out of
// time falls back like any other failed batch; batches already translated
// are kept.
func WithRequestTimeout(d time.Duration) Option {
	return func(t *Translator) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New constructs a Translator around model.
func New(model Model, opts ...Option) *Translator {
	t := &Translator{
		model:    model,
		maxItems: DefaultMaxBatchItems,
		maxChars: DefaultMaxBatchChars,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate fills Translated for every unit it can. Each batch gets exactly
// one attempt; on failure, including a request timeout, every unit of that
// batch keeps its original text and is listed in Result.Untranslated. The only
// error returned is ctx's own.
func (t *Translator) Translate(ctx context.Context, units []Unit, targetLanguage string) (Result, error) {
	result := Result{Units: make([]Unit, len(units))}
	copy(result.Units, units)

	var pending []int
	for i := range result.Units {
		unit := &result.Units[i]
		unit.Translated = unit.Original
		unit.OK = strings.TrimSpace(unit.Original) == ""
		if !unit.OK {
			pending = append(pending, i)
		}
	}

	for _, batch := range t.plan(result.Units, pending) {
		if err := ctx.Err(); err != nil {
			t.markUntranslated(&result, pending)
			return result, err
		}
		if err := t.translateBatch(ctx, &result, batch, targetLanguage); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				t.markUntranslated(&result, pending)
				return result, ctxErr
			}
			logging.WarnWithContext(logging.WithContext(ctx, t.logger), "translation batch fell back to original text", "translation_batch_failed",
				logging.String(logging.FieldErrorHint, "check the model name and API key"),
				logging.String(logging.FieldImpact, "these spans stay untranslated"),
				logging.Int("spans", len(batch)),
				logging.String("language", targetLanguage),
				logging.Error(err),
			)
		}
	}
	t.markUntranslated(&result, pending)
	return result, nil
}

func (t *Translator) translateBatch(ctx context.Context, result *Result, batch []int, lang string) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for rate limiter: %w", err)
		}
	}
	texts := make([]string, len(batch))
	for i, idx := range batch {
		texts[i] = result.Units[idx].Original
	}
	result.Requests++
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	replies, err := t.model.TranslateBatch(ctx, texts, lang)
	if err != nil {
		return err
	}
	if len(replies) != len(texts) {
		return fmt.Errorf("%w: sent %d, received %d", ErrCountMismatch, len(texts), len(replies))
	}
	for i, idx := range batch {
		if strings.TrimSpace(replies[i]) == "" {
			continue
		}
		result.Units[idx].Translated = replies[i]
		result.Units[idx].OK = true
	}
	return nil
}

// plan groups pending unit positions into consecutive batches bounded by item
// count and character budget.
func (t *Translator) plan(units []Unit, pending []int) [][]int {
	var (
		batches [][]int
		current []int
		chars   int
	)
	for _, idx := range pending {
		size := len([]rune(units[idx].Original))
		if len(current) > 0 && (len(current) >= t.maxItems || chars+size > t.maxChars) {
			batches = append(batches, current)
			current, chars = nil, 0
		}
		current = append(current, idx)
		chars += size
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (t *Translator) markUntranslated(result *Result, pending []int) {
	result.Untranslated = result.Untranslated[:0]
	for _, idx := range pending {
		unit := &result.Units[idx]
		if !unit.OK {
			unit.Translated = unit.Original
			result.Untranslated = append(result.Untranslated, unit.Entry)
		}
	}
}

// UnitsFromEntries builds one unit per codec entry.
func UnitsFromEntries(entries []codec.Entry) []Unit {
	texts := codec.Texts(entries)
	units := make([]Unit, len(texts))
	for i, text := range texts {
		units[i] = Unit{Entry: i, Original: text}
	}
	return units
}

// Translations returns a slice indexed by entry position for codec.Rebuild.
// Entries whose unit fell back are left blank so the rebuild keeps the
// original bytes.
func Translations(units []Unit) []string {
	size := 0
	for _, unit := range units {
		if unit.Entry+1 > size {
			size = unit.Entry + 1
		}
	}
	out := make([]string, size)
	for _, unit := range units {
		if unit.OK && unit.Entry >= 0 {
			out[unit.Entry] = unit.Translated
		}
	}
	return out
}
