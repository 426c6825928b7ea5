package reducto

import (
	"context"
	"encoding/json"
	"fmt"

	"shipdocs/internal/formfill"
	"shipdocs/internal/util"
)

type EditOptions struct {
	EnableOverflowPages   bool   `json:"enable_overflow_pages"`
	LLMProviderPreference string `json:"llm_provider_preference,omitempty"`
	Color                 string `json:"color,omitempty"`
}

// DefaultEditOptions are the options every fill uses.
func DefaultEditOptions(color string) EditOptions {
	if color == "" {
		color = "#000000"
	}
	return EditOptions{LLMProviderPreference: "openai", Color: color}
}

type EditRequest struct {
	DocumentURL      string              `json:"document_url"`
	EditInstructions string              `json:"edit_instructions"`
	EditOptions      *EditOptions        `json:"edit_options,omitempty"`
	FormSchema       formfill.FormSchema `json:"form_schema,omitempty"`
}

type EditResult struct {
	DocumentURL string              `json:"document_url"`
	FormSchema  formfill.FormSchema `json:"form_schema"`
	Credits     float64             `json:"credits"`
}

// Edit fills a template. With no FormSchema the platform detects fields
// itself and returns the schema it used.
func (c *Client) Edit(ctx context.Context, req EditRequest) (EditResult, error) {
	body, err := c.postJSON(ctx, "edit", "/edit", req)
	if err != nil {
		return EditResult{}, err
	}
	var resp struct {
		DocumentURL string              `json:"document_url"`
		FormSchema  formfill.FormSchema `json:"form_schema"`
		Usage       struct {
			Credits float64 `json:"credits"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return EditResult{}, fmt.Errorf("decode edit response: %w", err)
	}
	if resp.DocumentURL == "" {
		return EditResult{}, fmt.Errorf("%w: reducto edit returned no document_url", util.ErrUpstream)
	}
	return EditResult{DocumentURL: resp.DocumentURL, FormSchema: resp.FormSchema, Credits: resp.Usage.Credits}, nil
}
