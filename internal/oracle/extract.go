package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/reqchat/internal/requirements"
)

// Extraction is the structured result of a requirement extraction call.
type Extraction struct {
	Requirements      requirements.Document `json:"requirements"`
	AssistantResponse string                `json:"assistantResponse"`
}

// Extract asks the oracle for the requirements contained in message, given
// the current store as context. The returned document always carries five
// non-nil categories.
func (c *Client) Extract(ctx context.Context, message string, current requirements.Document) (Extraction, error) {
	if strings.TrimSpace(message) == "" {
		return Extraction{}, errors.New("extract: message is empty")
	}

	var out Extraction
	if err := c.call(ctx, "extract", BuildExtractionPrompt(message, current), extractionSchema(), &out); err != nil {
		return Extraction{}, err
	}
	out.Requirements = out.Requirements.Clone()
	if err := requirements.CheckDocument(&out.Requirements); err != nil {
		return Extraction{}, fmt.Errorf("extract: %w: %v", ErrMalformed, err)
	}
	return out, nil
}

// GenerateArchitecture asks the oracle to design an architecture for doc.
func (c *Client) GenerateArchitecture(ctx context.Context, doc requirements.Document, preferred string) (*requirements.Architecture, error) {
	var arch requirements.Architecture
	if err := c.call(ctx, "architecture", BuildArchitecturePrompt(doc, preferred), architectureSchema(), &arch); err != nil {
		return nil, err
	}
	if err := requirements.CheckArchitecture(&arch); err != nil {
		return nil, fmt.Errorf("architecture: %w: %v", ErrMalformed, err)
	}
	return &arch, nil
}

// Validate asks the oracle to assess doc.
func (c *Client) Validate(ctx context.Context, doc requirements.Document) (requirements.ValidationResult, error) {
	var v requirements.ValidationResult
	if err := c.call(ctx, "validate", BuildValidationPrompt(doc), validationSchema(), &v); err != nil {
		return requirements.ValidationResult{}, err
	}
	if err := requirements.CheckValidation(&v); err != nil {
		return requirements.ValidationResult{}, fmt.Errorf("validate: %w: %v", ErrMalformed, err)
	}
	return v, nil
}
