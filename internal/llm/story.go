package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/fableforge/tales/internal/models"
)

// storySystemPrompt is the fixed framing for every generation request.
const storySystemPrompt = "You are an educational writing assistant. Write narratives of roughly 150-200 words, suitable for classroom use."

// StoryResult is the outcome of a text generation call.
type StoryResult struct {
	Text      string
	WordCount int
	Model     string
}

// GenerateStory generates the narrative for the given parameters in a single
// chat-completion call. Quota, credential and timeout failures surface as
// distinct error kinds; transient failures are retried with a fixed delay.
func (c *Client) GenerateStory(ctx context.Context, params models.StoryParams) (*StoryResult, error) {
	literature := params.Literature
	if literature == "" {
		literature = "story"
	}
	genre := params.Genre
	if genre == "" {
		genre = "fantasy"
	}

	userPrompt := fmt.Sprintf(`Write a %s in the %s genre.
Main character: %s
Plot: %s
Ending: %s
At most 200 words.`, literature, genre, params.MainCharacter, params.Plot, params.Ending)

	log.Debug().
		Str("model", c.textModel).
		Str("literature", literature).
		Str("genre", genre).
		Msg("Generating story text")

	var text string
	err := c.withRetries(ctx, "GenerateStory", func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.textModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: storySystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices in completion response")
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return fmt.Errorf("empty completion")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("story generation failed: %w", err)
	}

	logResponse("GenerateStory", text)
	log.Info().
		Int("text_length", len(text)).
		Msg("Story text generation complete")

	return &StoryResult{
		Text:      text,
		WordCount: len(strings.Fields(text)),
		Model:     c.textModel,
	}, nil
}
