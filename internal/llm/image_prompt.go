package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// GenerateImagePrompt derives a concise illustration prompt from the
// generated story. Failures fall back to a deterministic local prompt so the
// image stage always has something to work with.
func (c *Client) GenerateImagePrompt(ctx context.Context, storyText string) string {
	prompt := fmt.Sprintf(`You write prompts for AI image generators.

Based on the following story, write one concise illustration prompt (max 80 words).
Describe the scene, main character and mood. Style: simple, friendly cartoon
suitable for an educational storybook.

Story:
%s

Return ONLY the prompt, no explanations.`, storyText)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.textModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   200,
		Temperature: 0.8,
	})
	if err != nil {
		log.Warn().Err(classifyError(err)).Msg("Image prompt generation failed, using fallback")
		return fallbackImagePrompt(storyText)
	}
	if len(resp.Choices) == 0 {
		return fallbackImagePrompt(storyText)
	}

	imagePrompt := strings.TrimSpace(resp.Choices[0].Message.Content)
	if imagePrompt == "" {
		log.Warn().Msg("Provider returned empty image prompt, using fallback")
		return fallbackImagePrompt(storyText)
	}

	logResponse("GenerateImagePrompt", imagePrompt)
	return imagePrompt
}

// fallbackImagePrompt builds a usable prompt from the story text alone (used
// when the prompt call fails or returns empty).
func fallbackImagePrompt(storyText string) string {
	sample := strings.TrimSpace(storyText)
	if sample == "" {
		sample = "a cheerful scene from a children's story"
	} else if len(sample) > 150 {
		sample = sample[:150] + "..."
	}
	return "Simple illustration for: " + sample + " Friendly cartoon style, educational storybook."
}
