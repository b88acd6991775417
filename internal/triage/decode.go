package triage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/school-support/internal/domain"
)

var validate = validator.New()

type tagPayload struct {
	MainCategory string `json:"main_cat" validate:"required"`
	SubCategory  string `json:"sub_cat" validate:"required"`
	Priority     string `json:"priority" validate:"required,oneof=High Medium Low"`
}

// DecodeTags parses a classifier reply into a category triple. Markdown code fences are
// stripped first; anything other than a single object with all three fields and a known
// priority is an error.
func DecodeTags(raw string) (domain.Tags, error) {
	clean := strings.ReplaceAll(raw, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return domain.Tags{}, errors.New("empty classification reply")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	var payload tagPayload
	if err := dec.Decode(&payload); err != nil {
		return domain.Tags{}, fmt.Errorf("decode tags: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Tags{}, errors.New("decode tags: trailing data after object")
	}

	payload.MainCategory = strings.TrimSpace(payload.MainCategory)
	payload.SubCategory = strings.TrimSpace(payload.SubCategory)
	payload.Priority = strings.TrimSpace(payload.Priority)
	if err := validate.Struct(payload); err != nil {
		return domain.Tags{}, fmt.Errorf("validate tags: %w", err)
	}

	return domain.Tags{
		MainCategory: payload.MainCategory,
		SubCategory:  payload.SubCategory,
		Priority:     domain.TicketPriority(payload.Priority),
	}, nil
}
