package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/parley/pkg/configutil"
	"github.com/harunnryd/parley/pkg/dialogue"
	"github.com/harunnryd/parley/pkg/llm"
	"github.com/harunnryd/parley/pkg/logging"
	"github.com/harunnryd/parley/pkg/metrics"
	"github.com/harunnryd/parley/pkg/resilience"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Settings is the vendors.llm.settings block for provider "openai". Any
// OpenAI-compatible chat completions endpoint works.
type Settings struct {
	APIKey           string        `mapstructure:"api_key"`
	Model            string        `mapstructure:"model"`
	BaseURL          string        `mapstructure:"base_url"`
	Endpoint         string        `mapstructure:"endpoint"`
	Temperature      *float64      `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	SystemPrompt     string        `mapstructure:"system_prompt"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Retries          *int          `mapstructure:"retries"`
	CircuitThreshold int           `mapstructure:"circuit_threshold"`
	CircuitCooldown  time.Duration `mapstructure:"circuit_cooldown"`
}

var SettingsSchema = configutil.Schema{
	Required: []string{"api_key", "model"},
	Optional: []string{
		"base_url", "endpoint", "temperature", "max_tokens", "system_prompt", "timeout",
		"retries", "circuit_threshold", "circuit_cooldown",
	},
}

// Adapter is a raw chat completions client. It reports failures as typed
// errors; see Build for the conversational wrapping.
type Adapter struct {
	APIKey       string
	Model        string
	Endpoint     string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	Client       *http.Client
}

func NewAdapter(s Settings) *Adapter {
	endpoint := s.Endpoint
	if strings.TrimSpace(endpoint) == "" {
		endpoint = strings.TrimRight(configutil.StringValue(s.BaseURL, defaultBaseURL), "/") + "/chat/completions"
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	temperature := 0.7
	if s.Temperature != nil {
		temperature = *s.Temperature
	}
	return &Adapter{
		APIKey:       s.APIKey,
		Model:        s.Model,
		Endpoint:     endpoint,
		Temperature:  temperature,
		MaxTokens:    s.MaxTokens,
		SystemPrompt: s.SystemPrompt,
		Client:       &http.Client{Timeout: timeout},
	}
}

// Build wraps the adapter the way the gateway uses it: retries for transient
// failures, a breaker for rate limits and apologies for everything else.
func Build(s Settings, obs metrics.Observer) llm.Generator {
	base := NewAdapter(s)
	retry := llm.NewRetryGenerator(base, llm.RetryConfig{
		MaxAttempts: configutil.IntValue(s.Retries, 2) + 1,
		Jitter:      0.2,
	})
	breaker := llm.NewCircuitBreakerGenerator(retry, resilience.NewCircuitBreaker(s.CircuitThreshold, s.CircuitCooldown))
	breaker.SetObserver(obs)
	return llm.NewApologyGenerator(breaker, llm.DefaultApologies(), logging.NewComponentLogger(slog.Default(), "openai_llm"))
}

func (a *Adapter) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (a *Adapter) Generate(ctx context.Context, history []dialogue.Message) (string, error) {
	body, err := json.Marshal(a.buildRequest(history))
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", resilience.RateLimitError{Provider: "openai", Message: string(b)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", llm.StatusError{Provider: "openai", Code: resp.StatusCode, Body: string(b)}
	}
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", llm.ErrMalformedResponse)
	}
	return payload.Choices[0].Message.Content, nil
}

func (a *Adapter) buildRequest(history []dialogue.Message) chatRequest {
	msgs := make([]chatMessage, 0, len(history)+1)
	if strings.TrimSpace(a.SystemPrompt) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: a.SystemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return chatRequest{
		Model:       a.Model,
		Messages:    msgs,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	}
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

var _ llm.Generator = (*Adapter)(nil)
