package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/citypulse/search/taxonomy"
)

// ModelClassification is the strict JSON schema the model must return.
type ModelClassification struct {
	IntentType string   `json:"intentType"`
	Categories []string `json:"categories"`
	Mood       string   `json:"mood,omitempty"`
	Budget     string   `json:"budget,omitempty"`
	GroupSize  string   `json:"groupSize,omitempty"`
	Keywords   []string `json:"keywords"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// ModelClassifier is the optional model-assisted classifier contract. The
// pipeline is fully functional with a nil classifier.
type ModelClassifier interface {
	ClassifyQuery(ctx context.Context, query string) (*ModelClassification, error)
}

// ModelConfig configures the OpenAI-compatible classifier client.
type ModelConfig struct {
	Provider       string // openai, deepseek, or any OpenAI-compatible endpoint
	Model          string
	APIKey         string
	BaseURL        string
	TimeoutSeconds int // 0 means defaultModelTimeout
}

const (
	modelTemperature    = 0.3
	modelMaxTokens      = 150
	defaultModelTimeout = 5 * time.Second
)

const classifyPrompt = `You classify short local-discovery queries. Respond with ONLY a JSON object:
{"intentType":"place|event|both","categories":["food","nightlife","music","art","history","fitness","outdoor","social","other"],"mood":"","budget":"free|budget|moderate|upscale","groupSize":"solo|date|small_group|large_group","keywords":[],"confidence":0.0,"reasoning":""}
Categories must come from the listed set. Keywords are the search terms a
places or ticketing catalog would match. No prose outside the JSON.`

// openAIClassifier implements ModelClassifier over an OpenAI-compatible API.
type openAIClassifier struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewModelClassifier creates the classifier client. Returns an error when no
// API key is configured.
func NewModelClassifier(cfg ModelConfig) (ModelClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model classifier requires an API key")
	}
	timeout := defaultModelTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	switch cfg.Provider {
	case "deepseek":
		clientConfig.BaseURL = "https://api.deepseek.com"
	case "openai", "":
		// go-openai default
	}
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
			TLSHandshakeTimeout: 3 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openAIClassifier{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

// ClassifyQuery implements ModelClassifier.
func (c *openAIClassifier) ClassifyQuery(ctx context.Context, query string) (*ModelClassification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   modelMaxTokens,
		Temperature: modelTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifyPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("model classify failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	mc, err := parseModelOutput(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	slog.Debug("model classification",
		"query_len", len(query),
		"intent", mc.IntentType,
		"confidence", mc.Confidence,
		"tokens", resp.Usage.TotalTokens,
		"latency_ms", time.Since(start).Milliseconds())
	return mc, nil
}

// parseModelOutput tolerates code fences but otherwise requires the strict
// schema: bad JSON is a ModelCallFailure and the rule result is used.
func parseModelOutput(content string) (*ModelClassification, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var mc ModelClassification
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &mc); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	switch mc.IntentType {
	case string(KindPlace), string(KindEvent), string(KindBoth):
	default:
		mc.IntentType = string(KindBoth)
	}
	// Restrict categories to the closed set, dropping unknowns.
	valid := mc.Categories[:0]
	for _, c := range mc.Categories {
		if taxonomy.Category(c).Valid() {
			valid = append(valid, c)
		}
	}
	mc.Categories = valid
	if mc.Confidence < 0 {
		mc.Confidence = 0
	}
	if mc.Confidence > 1 {
		mc.Confidence = 1
	}
	return &mc, nil
}
