package translate_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transponster/internal/codec"
	"transponster/internal/translate"
)

type fakeModel struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(call int, texts []string) ([]string, error)
}

func (m *fakeModel) TranslateBatch(_ context.Context, texts []string, _ string) ([]string, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, append([]string(nil), texts...))
	m.mu.Unlock()
	if m.respond != nil {
		return m.respond(call, texts)
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = strings.ToUpper(text)
	}
	return out, nil
}

func units(texts ...string) []translate.Unit {
	out := make([]translate.Unit, len(texts))
	for i, text := range texts {
		out[i] = translate.Unit{Entry: i, Original: text}
	}
	return out
}

func TestTranslateSingleBatchPreservesOrder(t *testing.T) {
	model := &fakeModel{}
	tr := translate.New(model)

	result, err := tr.Translate(context.Background(), units("one", "two", "three"), "en")
	require.NoError(t, err)
	require.Len(t, model.calls, 1)
	assert.Equal(t, []string{"one", "two", "three"}, model.calls[0])
	assert.Equal(t, []string{"ONE", "TWO", "THREE"}, translate.Translations(result.Units))
	assert.Empty(t, result.Untranslated)
	assert.False(t, result.Partial())
	assert.Equal(t, 1, result.Requests)
}

func TestTranslateNeverSendsEmptySpans(t *testing.T) {
	model := &fakeModel{}
	tr := translate.New(model)

	result, err := tr.Translate(context.Background(), units("", "hi", "   "), "en")
	require.NoError(t, err)
	require.Len(t, model.calls, 1)
	assert.Equal(t, []string{"hi"}, model.calls[0])
	assert.Empty(t, result.Untranslated)
	assert.Equal(t, 1, result.Translated())
}

func TestTranslateSplitsByItemsAndChars(t *testing.T) {
	model := &fakeModel{}
	tr := translate.New(model, translate.WithMaxBatchItems(2), translate.WithMaxBatchChars(8))

	result, err := tr.Translate(context.Background(), units("aaa", "bbb", "ccc", "dddddddddddd", "e"), "en")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"aaa", "bbb"}, {"ccc"}, {"dddddddddddd"}, {"e"}}, model.calls)
	assert.Equal(t, 4, result.Requests)
}

func TestTranslateCountMismatchFallsBackForWholeBatch(t *testing.T) {
	model := &fakeModel{respond: func(call int, texts []string) ([]string, error) {
		if call == 0 {
			return []string{"ONLY ONE"}, nil
		}
		out := make([]string, len(texts))
		for i := range texts {
			out[i] = "ok"
		}
		return out, nil
	}}
	tr := translate.New(model, translate.WithMaxBatchItems(3))

	result, err := tr.Translate(context.Background(), units("a", "b", "c", "d"), "en")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, result.Untranslated)
	for _, unit := range result.Units[:3] {
		assert.False(t, unit.OK)
		assert.Equal(t, unit.Original, unit.Translated)
	}
	assert.Equal(t, "ok", result.Units[3].Translated)
	assert.True(t, result.Partial())
	assert.False(t, result.Failed())
}

func TestTranslateModelErrorFallsBack(t *testing.T) {
	model := &fakeModel{respond: func(int, []string) ([]string, error) {
		return nil, errors.New("upstream 502")
	}}
	tr := translate.New(model)

	result, err := tr.Translate(context.Background(), units("a", "b"), "en")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, result.Untranslated)
	assert.True(t, result.Failed())
	assert.Equal(t, []string{"", ""}, translate.Translations(result.Units))
}

func TestTranslateBlankReplyKeepsOriginal(t *testing.T) {
	model := &fakeModel{respond: func(_ int, texts []string) ([]string, error) {
		return []string{"A", " "}, nil
	}}
	tr := translate.New(model)

	result, err := tr.Translate(context.Background(), units("a", "b"), "en")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, result.Untranslated)
	assert.Equal(t, "b", result.Units[1].Translated)
}

func TestTranslateReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &fakeModel{respond: func(call int, texts []string) ([]string, error) {
		cancel()
		return nil, context.Canceled
	}}
	tr := translate.New(model, translate.WithMaxBatchItems(1))

	result, err := tr.Translate(ctx, units("a", "b"), "en")
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, model.calls, 1)
	assert.Equal(t, []int{0, 1}, result.Untranslated)
}

// stallingModel answers the first request and blocks on later ones until
// their context ends.
type stallingModel struct {
	calls int
}

func (m *stallingModel) TranslateBatch(ctx context.Context, texts []string, _ string) ([]string, error) {
	m.calls++
	if m.calls > 1 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = strings.ToUpper(text)
	}
	return out, nil
}

func TestTranslateRequestTimeoutKeepsEarlierBatches(t *testing.T) {
	model := &stallingModel{}
	tr := translate.New(model, translate.WithMaxBatchItems(1), translate.WithRequestTimeout(50*time.Millisecond))

	result, err := tr.Translate(context.Background(), units("a", "b", "c"), "en")
	require.NoError(t, err)
	assert.Equal(t, 3, model.calls)
	assert.Equal(t, []string{"A", "", ""}, translate.Translations(result.Units))
	assert.Equal(t, []int{1, 2}, result.Untranslated)
	assert.True(t, result.Partial())
}

type countingWaiter struct{ waits int }

func (w *countingWaiter) Wait(context.Context) error {
	w.waits++
	return nil
}

func TestTranslateWaitsOnLimiterPerRequest(t *testing.T) {
	waiter := &countingWaiter{}
	tr := translate.New(&fakeModel{}, translate.WithMaxBatchItems(1), translate.WithLimiter(waiter))

	_, err := tr.Translate(context.Background(), units("a", "b", "c"), "en")
	require.NoError(t, err)
	assert.Equal(t, 3, waiter.waits)
}

func TestPipelineWithCodec(t *testing.T) {
	raw := "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n"
	entries, err := codec.ParseSubtitle(raw)
	require.NoError(t, err)

	model := &fakeModel{respond: func(_ int, texts []string) ([]string, error) {
		return []string{"Bonjour", "Monde"}, nil
	}}
	result, err := translate.New(model).Translate(context.Background(), translate.UnitsFromEntries(entries), "fr")
	require.NoError(t, err)

	got := codec.RebuildSubtitle(entries, translate.Translations(result.Units))
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nBonjour\n\n2\n00:00:03,000 --> 00:00:04,000\nMonde\n", got)
}
