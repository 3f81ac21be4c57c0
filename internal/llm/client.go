package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// maxResponseLogBytes is the max length of a completion body to log in full (to avoid huge logs).
const maxResponseLogBytes = 4096

// Client wraps the OpenAI API for story text, illustration prompts and images.
type Client struct {
	api         *openai.Client
	textModel   string
	imageModel  string
	imageSize   string
	maxTokens   int
	temperature float32
	maxRetries  int
	retryDelay  time.Duration
}

// NewClient creates a new LLM client.
// baseURL: optional API base override (e.g. a local proxy); empty uses the default.
// imageSize: 256x256, 512x512 or 1024x1024 (model permitting).
func NewClient(apiKey, baseURL, textModel, imageModel, imageSize string, maxTokens int, temperature float32, maxRetries int, retryDelay time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	log.Info().
		Str("text_model", textModel).
		Str("image_model", imageModel).
		Str("image_size", imageSize).
		Str("base_url", baseURL).
		Int("max_retries", maxRetries).
		Msg("LLM client initialized")

	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		textModel:   textModel,
		imageModel:  imageModel,
		imageSize:   imageSize,
		maxTokens:   maxTokens,
		temperature: temperature,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
	}
}

// withRetries runs fn up to maxRetries+1 times with a fixed delay between
// attempts. Terminal kinds (quota, credentials, policy) stop the loop early.
func (c *Client) withRetries(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Str("op", op).
				Int("attempt", attempt+1).
				Err(err).
				Msg("Retrying provider call")
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return classifyError(ctx.Err())
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		err = classifyError(err)
		if !retryable(err) {
			return err
		}
	}
	return err
}

// logResponse logs a completion response, truncating if over maxResponseLogBytes.
func logResponse(caller, raw string) {
	if len(raw) <= maxResponseLogBytes {
		log.Debug().Str("caller", caller).Str("response", raw).Msg("Provider response")
		return
	}
	log.Debug().
		Str("caller", caller).
		Str("response", raw[:maxResponseLogBytes]+"... [truncated]").
		Int("response_len", len(raw)).
		Msg("Provider response")
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
