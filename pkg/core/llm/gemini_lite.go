package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiLiteProvider is the cheap/fast tier used for bulk numeric scans.
// It rides the previous-generation SDK, which is still the stable path for
// the small flash models.
type GeminiLiteProvider struct {
	Model string // e.g. "gemini-1.5-flash-8b"
}

var _ Provider = (*GeminiLiteProvider)(nil)

func (p *GeminiLiteProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (*Completion, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	modelName := p.Model
	if modelName == "" {
		modelName = "gemini-1.5-flash-8b"
	}
	if val := optString(options, "model"); val != "" {
		modelName = val
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}
	defer client.Close()

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	if optBool(options, "json") {
		model.ResponseMIMEType = "application/json"
	}
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini lite generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini lite returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	completion := &Completion{
		Text:  sb.String(),
		Model: modelName,
	}
	if resp.UsageMetadata != nil {
		completion.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completion.ResponseTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return completion, nil
}
