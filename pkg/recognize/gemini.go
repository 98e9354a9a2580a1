package recognize

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcribePrompt asks for a plain transcription; date extraction stays in
// this process so scanned and hand-typed dates go through the same
// validation.
const transcribePrompt = `Transcribe every piece of printed text visible in this image of a product package.
Return the raw text only, one line per printed line. Do not translate,
interpret or reformat anything; keep digits, separators and punctuation
exactly as printed. If no text is visible, return an empty response.`

const geminiTimeout = 30 * time.Second

// GeminiRecognizer implements TextRecognizer using a Gemini vision model.
type GeminiRecognizer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiRecognizer creates a recognizer backed by the given model.
func NewGeminiRecognizer(apiKey string, modelName string) (*GeminiRecognizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiRecognizer{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// RecognizeText sends the snapshot image to the model and returns the
// transcription.
func (g *GeminiRecognizer) RecognizeText(ctx context.Context, snap Snapshot) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	var buf bytes.Buffer
	if err := png.Encode(&buf, snap.Image); err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	parts := []genai.Part{
		genai.ImageData("png", buf.Bytes()),
		genai.Text(transcribePrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close closes the underlying client.
func (g *GeminiRecognizer) Close() error {
	return g.client.Close()
}
