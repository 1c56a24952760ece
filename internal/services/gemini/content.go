package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// QualityAssessment is the model's verdict on whether a caption alone can
// produce a useful note.
type QualityAssessment struct {
	SufficientDetail bool    `json:"sufficient_detail"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
}

// Tags groups the tag facets emitted by enhancement.
type Tags struct {
	Topic  []string `json:"topic"`
	Type   []string `json:"type"`
	Action []string `json:"action"`
}

// Reference is a link to a resource named or shown in the content.
type Reference struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// EnhancedContent is the structured note content produced by enhancement.
type EnhancedContent struct {
	Title      string      `json:"title"`
	Summary    string      `json:"summary"`
	KeyPoints  []string    `json:"key_points"`
	Tags       Tags        `json:"tags"`
	References []Reference `json:"references"`
	Transcript string      `json:"transcript,omitempty"`
}

// CheckQuality asks the fast model whether the caption carries enough detail
// to enhance from text alone.
func (c *Client) CheckQuality(ctx context.Context, description string) (QualityAssessment, error) {
	var empty QualityAssessment
	description = strings.TrimSpace(description)
	if description == "" {
		return empty, errors.New("gemini quality: description required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.qualityTimeout())
	defer cancel()

	payload, err := c.generateJSON(ctx, c.cfg.QualityModel, qualityCheckPrompt, []part{{Text: description}}, "quality check")
	if err != nil {
		return empty, err
	}
	var parsed QualityAssessment
	if err := DecodeModelJSON(payload, &parsed); err != nil {
		return empty, fmt.Errorf("gemini quality: parse payload: %w", err)
	}
	parsed.Confidence = clampConfidence(parsed.Confidence)
	parsed.Reasoning = strings.TrimSpace(parsed.Reasoning)
	return parsed, nil
}

// EnhanceText produces structured note content from the caption alone.
func (c *Client) EnhanceText(ctx context.Context, description, author string) (*EnhancedContent, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.New("gemini enhance: description required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.enhanceTimeout())
	defer cancel()

	prompt := buildCaptionPrompt(description, author)
	payload, err := c.generateJSON(ctx, c.cfg.EnhanceModel, textEnhancementPrompt, []part{{Text: prompt}}, "text enhancement")
	if err != nil {
		return nil, err
	}
	return decodeEnhancement(payload)
}

// EnhanceVideo uploads the media file, waits for it to become ACTIVE, and
// produces structured note content from the video plus caption. The uploaded
// file is deleted after the request regardless of outcome.
func (c *Client) EnhanceVideo(ctx context.Context, mediaPath, description string) (*EnhancedContent, error) {
	mediaPath = strings.TrimSpace(mediaPath)
	if mediaPath == "" {
		return nil, errors.New("gemini enhance: media path required")
	}

	uploadCtx, cancelUpload := context.WithTimeout(ctx, c.uploadTimeout())
	uploaded, err := c.uploadFile(uploadCtx, mediaPath)
	cancelUpload()
	if err != nil {
		return nil, err
	}
	defer func() {
		// Best effort; orphaned files expire server side after 48 hours.
		_ = c.deleteFile(context.WithoutCancel(ctx), uploaded.Name)
	}()

	waitCtx, cancelWait := context.WithTimeout(ctx, c.uploadTimeout())
	active, err := c.waitForActive(waitCtx, uploaded.Name)
	cancelWait()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.enhanceTimeout())
	defer cancel()
	parts := []part{
		{FileData: &fileData{MIMEType: active.MIMEType, FileURI: active.URI}},
		{Text: buildCaptionPrompt(description, "")},
	}
	payload, err := c.generateJSON(ctx, c.cfg.EnhanceModel, videoEnhancementPrompt, parts, "video enhancement")
	if err != nil {
		return nil, err
	}
	return decodeEnhancement(payload)
}

func decodeEnhancement(payload string) (*EnhancedContent, error) {
	var parsed EnhancedContent
	if err := DecodeModelJSON(payload, &parsed); err != nil {
		return nil, fmt.Errorf("gemini enhance: parse payload: %w", err)
	}
	parsed.Title = strings.TrimSpace(parsed.Title)
	parsed.Summary = strings.TrimSpace(parsed.Summary)
	parsed.Transcript = strings.TrimSpace(parsed.Transcript)
	parsed.KeyPoints = trimAll(parsed.KeyPoints)
	parsed.References = trimReferences(parsed.References)
	parsed.Tags.Topic = trimAll(parsed.Tags.Topic)
	parsed.Tags.Type = trimAll(parsed.Tags.Type)
	parsed.Tags.Action = trimAll(parsed.Tags.Action)
	if parsed.Title == "" && parsed.Summary == "" {
		return nil, errors.New("gemini enhance: response carries no usable content")
	}
	return &parsed, nil
}

func trimReferences(refs []Reference) []Reference {
	var out []Reference
	for _, ref := range refs {
		ref.Title = strings.TrimSpace(ref.Title)
		ref.URL = strings.TrimSpace(ref.URL)
		ref.Description = strings.TrimSpace(ref.Description)
		if ref.Title == "" && ref.URL == "" {
			continue
		}
		out = append(out, ref)
	}
	return out
}

func trimAll(values []string) []string {
	var out []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
