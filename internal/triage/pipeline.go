package triage

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/school-support/internal/domain"
)

// Phase names used in logs and metrics.
const (
	PhaseSelfHelp = "self_help"
	PhaseAutoTag  = "auto_tag"
	PhaseSummary  = "summary"
)

// Classifier sends a system prompt and user text to the language endpoint.
type Classifier interface {
	Classify(ctx context.Context, systemPrompt, userText string) (string, error)
}

// FallbackRecorder counts phases that fell back to their default output.
type FallbackRecorder interface {
	RecordFallback(phase string)
}

// Pipeline runs the three triage phases. None of them returns an error: every failure
// resolves to the configured fallback.
type Pipeline struct {
	classifier Classifier
	cfg        Config
	logger     *zap.Logger
	recorder   FallbackRecorder
}

// NewPipeline builds a pipeline. recorder may be nil.
func NewPipeline(classifier Classifier, cfg Config, logger *zap.Logger, recorder FallbackRecorder) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{classifier: classifier, cfg: cfg, logger: logger, recorder: recorder}
}

// SelfHelp suggests one simple step the requester can try before raising a ticket.
func (p *Pipeline) SelfHelp(ctx context.Context, description string) string {
	reply, err := p.classifier.Classify(ctx, p.cfg.SelfHelpPrompt, description)
	if err != nil || strings.TrimSpace(reply) == "" {
		p.fallback(PhaseSelfHelp, err)
		return p.cfg.SelfHelpFallback
	}
	return strings.TrimSpace(reply)
}

// AutoTag classifies the description into a category triple.
func (p *Pipeline) AutoTag(ctx context.Context, description string) domain.Tags {
	reply, err := p.classifier.Classify(ctx, p.cfg.AutoTagPrompt(), description)
	if err != nil {
		p.fallback(PhaseAutoTag, err)
		return p.cfg.DefaultTags
	}
	tags, err := DecodeTags(reply)
	if err != nil {
		p.fallback(PhaseAutoTag, err)
		return p.cfg.DefaultTags
	}
	if !p.cfg.Taxonomy.Contains(tags.MainCategory, tags.SubCategory) {
		p.logger.Debug("classifier returned category outside taxonomy",
			zap.String("main_category", tags.MainCategory),
			zap.String("sub_category", tags.SubCategory))
	}
	return tags
}

// Summarize condenses the description and remark log of a resolved ticket.
func (p *Pipeline) Summarize(ctx context.Context, description, remarks string) string {
	reply, err := p.classifier.Classify(ctx, p.cfg.SummaryPrompt, SummaryInput(description, remarks))
	if err != nil || strings.TrimSpace(reply) == "" {
		p.fallback(PhaseSummary, err)
		return p.cfg.SummaryFallback
	}
	return strings.TrimSpace(reply)
}

func (p *Pipeline) fallback(phase string, err error) {
	p.logger.Warn("triage phase fell back to default", zap.String("phase", phase), zap.Error(err))
	if p.recorder != nil {
		p.recorder.RecordFallback(phase)
	}
}
