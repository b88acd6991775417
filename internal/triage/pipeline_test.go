package triage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/school-support/internal/classifier"
	"github.com/spec-kit/school-support/internal/domain"
)

type mockClassifier struct {
	ClassifyFunc func(ctx context.Context, systemPrompt, userText string) (string, error)
	prompts      []string
	inputs       []string
}

func (m *mockClassifier) Classify(ctx context.Context, systemPrompt, userText string) (string, error) {
	m.prompts = append(m.prompts, systemPrompt)
	m.inputs = append(m.inputs, userText)
	return m.ClassifyFunc(ctx, systemPrompt, userText)
}

func replying(reply string) *mockClassifier {
	return &mockClassifier{ClassifyFunc: func(context.Context, string, string) (string, error) {
		return reply, nil
	}}
}

func failing() *mockClassifier {
	return &mockClassifier{ClassifyFunc: func(context.Context, string, string) (string, error) {
		return "", classifier.ErrUnavailable
	}}
}

type countingRecorder map[string]int

func (c countingRecorder) RecordFallback(phase string) { c[phase]++ }

func TestSelfHelp(t *testing.T) {
	p := NewPipeline(replying(" Check the HDMI cable is plugged in. "), DefaultConfig(), nil, nil)
	assert.Equal(t, "Check the HDMI cable is plugged in.", p.SelfHelp(context.Background(), "projector blank"))

	rec := countingRecorder{}
	p = NewPipeline(failing(), DefaultConfig(), nil, rec)
	assert.Equal(t, FallbackSelfHelp, p.SelfHelp(context.Background(), "projector blank"))
	assert.Equal(t, 1, rec[PhaseSelfHelp])

	p = NewPipeline(replying("   "), DefaultConfig(), nil, nil)
	assert.Equal(t, FallbackSelfHelp, p.SelfHelp(context.Background(), "projector blank"))
}

func TestAutoTag(t *testing.T) {
	defaults := DefaultConfig().DefaultTags

	tests := []struct {
		name  string
		reply string
		want  domain.Tags
	}{
		{
			name:  "plain json",
			reply: `{"main_cat":"Hardware","sub_cat":"Projector","priority":"Medium"}`,
			want:  domain.Tags{MainCategory: "Hardware", SubCategory: "Projector", Priority: domain.PriorityMedium},
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"main_cat\": \"Network\", \"sub_cat\": \"Wi-Fi\", \"priority\": \"High\"}\n```",
			want:  domain.Tags{MainCategory: "Network", SubCategory: "Wi-Fi", Priority: domain.PriorityHigh},
		},
		{name: "prose", reply: "I think this is a projector issue.", want: defaults},
		{name: "missing field", reply: `{"main_cat":"Hardware","priority":"Low"}`, want: defaults},
		{name: "unknown priority", reply: `{"main_cat":"Hardware","sub_cat":"Printer","priority":"Urgent"}`, want: defaults},
		{name: "trailing data", reply: `{"main_cat":"Hardware","sub_cat":"Printer","priority":"Low"} {}`, want: defaults},
		{name: "array", reply: `[{"main_cat":"Hardware"}]`, want: defaults},
		{name: "empty", reply: "", want: defaults},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPipeline(replying(tc.reply), DefaultConfig(), nil, nil)
			assert.Equal(t, tc.want, p.AutoTag(context.Background(), "anything"))
		})
	}
}

func TestAutoTagFallbackIsDeterministic(t *testing.T) {
	p := NewPipeline(failing(), DefaultConfig(), nil, nil)
	first := p.AutoTag(context.Background(), "printer jam")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.AutoTag(context.Background(), "printer jam"))
	}
	assert.Equal(t, domain.Tags{MainCategory: "General", SubCategory: "Other_General", Priority: domain.PriorityMedium}, first)
}

func TestAutoTagPromptListsTaxonomy(t *testing.T) {
	mock := replying(`{"main_cat":"General","sub_cat":"Furniture","priority":"Low"}`)
	p := NewPipeline(mock, DefaultConfig(), nil, nil)
	p.AutoTag(context.Background(), "broken chair")

	require.Len(t, mock.prompts, 1)
	prompt := mock.prompts[0]
	assert.Contains(t, prompt, "1. Hardware: Projector, Computer, Printer, Sound, Peripherals, Other_Hardware.")
	assert.Contains(t, prompt, "4. General: Admin, Furniture, Other_General.")
	assert.Contains(t, prompt, "Priority Rules: High (Safety/Exam/Server)")
	assert.Equal(t, "broken chair", mock.inputs[0])
}

func TestSummarize(t *testing.T) {
	mock := replying("[Issue] Projector flicker [Action] Replaced HDMI cable")
	p := NewPipeline(mock, DefaultConfig(), nil, nil)

	got := p.Summarize(context.Background(), "projector bulb flickers", "[2024-03-01 09:30:00] TSS: replaced cable")
	assert.Equal(t, "[Issue] Projector flicker [Action] Replaced HDMI cable", got)
	assert.True(t, strings.HasPrefix(mock.inputs[0], "Issue: projector bulb flickers. Remarks: "))

	p = NewPipeline(failing(), DefaultConfig(), nil, nil)
	assert.Equal(t, FallbackSummary, p.Summarize(context.Background(), "x", "y"))
}

func TestDecodeTagsErrors(t *testing.T) {
	_, err := DecodeTags(`{"main_cat":"", "sub_cat":"OS", "priority":"Low"}`)
	assert.Error(t, err)

	_, err = DecodeTags("```")
	assert.Error(t, err)

	tags, err := DecodeTags(`{"main_cat":" Software ","sub_cat":"OS","priority":"Low","reason":"minor"}`)
	require.NoError(t, err)
	assert.Equal(t, "Software", tags.MainCategory)
}

func TestPipelinePassesContext(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")
	mock := &mockClassifier{ClassifyFunc: func(ctx context.Context, _, _ string) (string, error) {
		if ctx.Value(ctxKey{}) != "marker" {
			return "", errors.New("context not propagated")
		}
		return "Restart the PC.", nil
	}}
	p := NewPipeline(mock, DefaultConfig(), nil, nil)
	assert.Equal(t, "Restart the PC.", p.SelfHelp(ctx, "pc slow"))
}
