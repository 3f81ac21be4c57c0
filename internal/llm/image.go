package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// softenedImagePrompt replaces a prompt the safety filter refused. Generic on
// purpose: the one retry it feeds must not trip the filter again.
const softenedImagePrompt = "A gentle, family-friendly storybook illustration of a peaceful scene, soft colors, cartoon style."

// Image is a generated illustration, base64-encoded as returned by the API.
type Image struct {
	B64        string
	Raw        []byte // decoded payload, used for blob-storage uploads
	Size       int    // length of the base64 payload
	Resolution string
	Model      string
}

// GenerateImage generates one illustration for the prompt. A content-policy
// refusal triggers exactly one retry with a softened generic prompt; other
// transient failures get the standard bounded retries. Callers treat any
// returned error as non-fatal for the overall request.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	log.Debug().
		Str("prompt", truncateForLog(prompt, 80)).
		Str("model", c.imageModel).
		Msg("Generating image")

	img, err := c.generateImageOnce(ctx, prompt)
	if err == nil {
		return img, nil
	}
	if errors.Is(err, ErrContentPolicy) {
		log.Warn().Err(err).Msg("Image prompt refused by content policy, retrying with softened prompt")
		img, err = c.generateImageOnce(ctx, softenedImagePrompt)
		if err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image generation failed: %w", err)
}

func (c *Client) generateImageOnce(ctx context.Context, prompt string) (*Image, error) {
	var b64 string
	err := c.withRetries(ctx, "GenerateImage", func() error {
		resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
			Model:          c.imageModel,
			Prompt:         prompt,
			Size:           c.imageSize,
			N:              1,
			Quality:        openai.CreateImageQualityStandard,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
			return fmt.Errorf("no image data in response")
		}
		b64 = resp.Data[0].B64JSON
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}

	log.Info().
		Int("image_b64_bytes", len(b64)).
		Int("image_raw_bytes", len(raw)).
		Str("resolution", c.imageSize).
		Msg("Image generation complete")

	return &Image{
		B64:        b64,
		Raw:        raw,
		Size:       len(b64),
		Resolution: c.imageSize,
		Model:      c.imageModel,
	}, nil
}
