package triage

import (
	"fmt"
	"strings"

	"github.com/spec-kit/school-support/internal/domain"
)

// Fallback outputs used whenever the classifier cannot produce a usable answer.
const (
	FallbackSelfHelp = "Please check connections and restart device."
	FallbackSummary  = "[System] AI Summary Unavailable"
)

// Config carries the prompts, taxonomy and fallbacks for the three phases.
type Config struct {
	SelfHelpPrompt   string
	SummaryPrompt    string
	Taxonomy         domain.Taxonomy
	PriorityRules    string
	SelfHelpFallback string
	SummaryFallback  string
	DefaultTags      domain.Tags
}

// DefaultConfig returns the prompts and fallbacks used in production.
func DefaultConfig() Config {
	return Config{
		SelfHelpPrompt: "You are a helpful school IT assistant. Provide exactly ONE simple, non-technical " +
			"troubleshooting step the user can try physically (e.g. check cables). Max 20 words. No jargon.",
		SummaryPrompt: "You are an IT Archivist. Summarize ticket into: '[Issue] ... [Action] ...'. " +
			"Retain technical keywords. Max 30 words.",
		Taxonomy:         domain.DefaultTaxonomy(),
		PriorityRules:    "High (Safety/Exam/Server), Medium (Work stoppage), Low (Minor)",
		SelfHelpFallback: FallbackSelfHelp,
		SummaryFallback:  FallbackSummary,
		DefaultTags: domain.Tags{
			MainCategory: "General",
			SubCategory:  "Other_General",
			Priority:     domain.PriorityMedium,
		},
	}
}

// AutoTagPrompt renders the classification prompt from the configured taxonomy.
func (c Config) AutoTagPrompt() string {
	var b strings.Builder
	b.WriteString(`You are an IT Classifier. Return ONLY a JSON: {"main_cat": "...", "sub_cat": "...", "priority": "..."}.`)
	b.WriteString("\nTaxonomy:")
	for i, cat := range c.Taxonomy {
		fmt.Fprintf(&b, "\n%d. %s: %s.", i+1, cat.Name, strings.Join(cat.Subs, ", "))
	}
	fmt.Fprintf(&b, "\nPriority Rules: %s.", c.PriorityRules)
	return b.String()
}

// SummaryInput formats the text sent to the summarization phase.
func SummaryInput(description, remarks string) string {
	return fmt.Sprintf("Issue: %s. Remarks: %s", description, remarks)
}
