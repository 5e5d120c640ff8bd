package gemini

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"google.golang.org/genai"

	"github.com/linkhive/linkhive-api/internal/domain"
)

// promptTemplate asks for a single short paragraph; the model sometimes
// pads output with quotes or whitespace, which Describe strips.
const promptTemplate = `Write one short paragraph (at most 50 words) describing the web page
saved at this bookmark, suitable as a catalog description. Respond with
the paragraph only, no preamble.

URL: {{.URL}}
{{- if .Title}}
Title: {{.Title}}
{{- end}}
{{- if .Metadata}}
Known metadata: {{printf "%s" .Metadata}}
{{- end}}
`

type promptData struct {
	URL      string
	Title    string
	Metadata []byte
}

// Generator produces bookmark descriptions through the Gemini API. It
// implements the worker's DescriptionGenerator boundary.
type Generator struct {
	client *genai.Client
	model  string
	prompt *template.Template
	logger *slog.Logger
}

// NewGenerator creates a Generator. The API key and model name must be
// set; transient API failures are left to the job retry policy rather
// than retried here.
func NewGenerator(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", ErrInvalidConfig)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create client: %v", ErrInvalidConfig, err)
	}

	prompt, err := template.New("describe").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	return &Generator{
		client: client,
		model:  model,
		prompt: prompt,
		logger: logger.With("component", "gemini_generator"),
	}, nil
}

// Describe generates a short description for the bookmark.
func (g *Generator) Describe(ctx context.Context, bookmark *domain.Bookmark) (string, error) {
	var buf bytes.Buffer
	if err := g.prompt.Execute(&buf, promptData{
		URL:      bookmark.URL,
		Title:    bookmark.Title,
		Metadata: bookmark.Metadata,
	}); err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}

	g.logger.DebugContext(ctx, "requesting description",
		"bookmark_id", bookmark.ID,
		"model", g.model)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(buf.String()), nil)
	if err != nil {
		return "", fmt.Errorf("generate content call failed: %w", err)
	}

	text := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Text()), `"`))
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}
