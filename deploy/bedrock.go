package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockGenerator produces a service file-set by prompting a Claude model
// through AWS Bedrock. Callers should fall back to the static scaffold when
// generation fails.
type BedrockGenerator struct {
	client    *bedrockruntime.Client
	model     string
	maxTokens int
}

// claudeRequest is the request format for Claude models via Bedrock
type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response format from Claude models
type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

const generatorSystemPrompt = `You generate minimal Python FastAPI microservices.
Respond with a single JSON object mapping file names to file contents.
Always include "main.py" exposing a FastAPI app named "app" with a GET /health
route, and "requirements.txt". Respond with JSON only, no prose.`

// NewBedrockGenerator creates a generator for the given region and model
func NewBedrockGenerator(ctx context.Context, region, modelID string, maxTokens int) (*BedrockGenerator, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &BedrockGenerator{
		client:    bedrockruntime.NewFromConfig(cfg),
		model:     modelID,
		maxTokens: maxTokens,
	}, nil
}

// Generate asks the model for a filename -> content map implementing the idea
func (g *BedrockGenerator) Generate(ctx context.Context, idea string) (map[string]string, error) {
	request := claudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        g.maxTokens,
		System:           generatorSystemPrompt,
		Messages: []claudeMessage{
			{Role: "user", Content: "Generate a microservice for this idea: " + idea},
		},
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.model),
		Body:        reqBody,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke model: %w", err)
	}

	var response claudeResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(response.Content) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	files, err := parseFileSet(response.Content[0].Text)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// parseFileSet extracts the filename -> content object from the model text,
// tolerating surrounding prose or code fences
func parseFileSet(text string) (map[string]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var files map[string]string
	if err := json.Unmarshal([]byte(text[start:end+1]), &files); err != nil {
		return nil, fmt.Errorf("failed to parse generated file set: %w", err)
	}
	if _, ok := files["main.py"]; !ok {
		return nil, fmt.Errorf("generated file set missing main.py")
	}
	return files, nil
}
