package reducto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"shipdocs/internal/models"
	"shipdocs/internal/util"
)

type parseResponse struct {
	JobID    string  `json:"job_id"`
	Duration float64 `json:"duration"`
	Usage    struct {
		NumPages int     `json:"num_pages"`
		Credits  float64 `json:"credits"`
	} `json:"usage"`
	Result     parseResult `json:"result"`
	StudioLink string      `json:"studio_link"`
}

type parseResult struct {
	Type   string      `json:"type"`
	Chunks []wireChunk `json:"chunks"`
	URL    string      `json:"url"`
}

type wireChunk struct {
	Content string      `json:"content"`
	Blocks  []wireBlock `json:"blocks"`
}

type wireBlock struct {
	Type       string          `json:"type"`
	Content    string          `json:"content"`
	BBox       *models.BBox    `json:"bbox"`
	Confidence json.RawMessage `json:"confidence"`
}

// Parse runs the parser over an uploaded file reference. Results that the
// platform returns by URL are fetched and inlined.
func (c *Client) Parse(ctx context.Context, documentURL string) (models.ParsedDocument, error) {
	body, err := c.postJSON(ctx, "parse", "/parse", map[string]any{
		"input": documentURL,
		"formatting": map[string]any{
			"table_output_format": "json",
		},
	})
	if err != nil {
		return models.ParsedDocument{}, err
	}
	var pr parseResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return models.ParsedDocument{}, fmt.Errorf("decode parse response: %w", err)
	}
	chunks := pr.Result.Chunks
	if pr.Result.Type == "url" {
		if pr.Result.URL == "" {
			return models.ParsedDocument{}, fmt.Errorf("%w: parse result type url without url", util.ErrUpstream)
		}
		raw, err := c.Download(ctx, pr.Result.URL)
		if err != nil {
			return models.ParsedDocument{}, err
		}
		chunks, err = decodeRemoteChunks(raw)
		if err != nil {
			return models.ParsedDocument{}, err
		}
	}
	out := models.ParsedDocument{
		JobID:      pr.JobID,
		Duration:   pr.Duration,
		Usage:      models.ParseUsage{NumPages: pr.Usage.NumPages, Credits: pr.Usage.Credits},
		Chunks:     make([]models.ParsedChunk, 0, len(chunks)),
		StudioLink: pr.StudioLink,
	}
	for _, ch := range chunks {
		pc := models.ParsedChunk{Content: util.SanitizeText(ch.Content), Blocks: make([]models.ParsedBlock, 0, len(ch.Blocks))}
		for _, b := range ch.Blocks {
			pc.Blocks = append(pc.Blocks, models.ParsedBlock{
				Type:       b.Type,
				Content:    util.SanitizeText(b.Content),
				BBox:       b.BBox,
				Confidence: confidenceString(b.Confidence),
			})
		}
		out.Chunks = append(out.Chunks, pc)
	}
	return out, nil
}

// decodeRemoteChunks accepts either a bare chunk array or an object
// carrying a chunks field.
func decodeRemoteChunks(raw []byte) ([]wireChunk, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var chunks []wireChunk
		if err := json.Unmarshal(raw, &chunks); err != nil {
			return nil, fmt.Errorf("decode remote parse result: %w", err)
		}
		return chunks, nil
	}
	var wrapped struct {
		Chunks []wireChunk `json:"chunks"`
		Result *struct {
			Chunks []wireChunk `json:"chunks"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode remote parse result: %w", err)
	}
	if wrapped.Result != nil && len(wrapped.Result.Chunks) > 0 {
		return wrapped.Result.Chunks, nil
	}
	return wrapped.Chunks, nil
}

func confidenceString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
