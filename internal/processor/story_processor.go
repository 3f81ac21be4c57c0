// Package processor runs the generation-and-persistence pipeline: text
// generation, illustration generation, size-constrained persistence and
// response shaping. Stages run strictly in order; image and persistence
// failures degrade to warnings instead of failing the request.
package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fableforge/tales/internal/config"
	"github.com/fableforge/tales/internal/database"
	"github.com/fableforge/tales/internal/images"
	"github.com/fableforge/tales/internal/llm"
	"github.com/fableforge/tales/internal/models"
)

// LLM is the slice of the llm client the pipeline uses.
type LLM interface {
	GenerateStory(ctx context.Context, params models.StoryParams) (*llm.StoryResult, error)
	GenerateImagePrompt(ctx context.Context, storyText string) string
	GenerateImage(ctx context.Context, prompt string) (*llm.Image, error)
}

// StoryStore persists stories. Nil store means no database is configured;
// the pipeline still returns generated content.
type StoryStore interface {
	Create(ctx context.Context, story *models.Story) (*database.CreateResult, error)
	SetIllustrationURL(ctx context.Context, id uuid.UUID, url string) error
}

// BlobStore uploads illustration bytes and returns a durable URL.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// StoryProcessor handles the story generation pipeline
type StoryProcessor struct {
	llm    LLM
	store  StoryStore
	blob   BlobStore
	config *config.Config
}

// NewStoryProcessor creates a new story processor. store and blob may be nil
// when the database or blob storage is not configured.
func NewStoryProcessor(llmClient LLM, store StoryStore, blob BlobStore, cfg *config.Config) *StoryProcessor {
	return &StoryProcessor{
		llm:    llmClient,
		store:  store,
		blob:   blob,
		config: cfg,
	}
}

// Process runs one generation request end-to-end. Only text generation
// failures return an error; everything downstream is reported inside the
// response.
func (p *StoryProcessor) Process(ctx context.Context, params models.StoryParams) (*models.GenerateStoryResponse, error) {
	start := time.Now()

	// Stage 1: story text. Fatal on failure.
	story, err := p.llm.GenerateStory(ctx, params)
	if err != nil {
		return nil, err
	}

	// Stage 2: illustration prompt, then the image itself. Non-fatal: the
	// request proceeds without an illustration when this stage gives up.
	prompt := p.llm.GenerateImagePrompt(ctx, story.Text)
	image, imgErr := p.llm.GenerateImage(ctx, prompt)
	if imgErr != nil {
		log.Warn().Err(imgErr).Msg("Image generation failed, continuing without illustration")
	}

	bounded := p.boundIllustration(image)

	// Stage 3: best-effort persistence.
	outcome := p.persistStory(ctx, params, story.Text, &bounded)

	resp := &models.GenerateStoryResponse{
		Success: true,
		Story:   story.Text,
		Metadata: models.GenerationMetadata{
			TotalTimeMs: time.Since(start).Milliseconds(),
			TextLength:  len(story.Text),
			WordCount:   story.WordCount,
			Model:       story.Model,
			HasImage:    bounded.B64 != "" || bounded.URL != "",
		},
		Database: outcome,
	}
	if image != nil || bounded.B64 != "" {
		meta := &models.ImageMetadata{
			StoredBytes: len(bounded.B64),
			Strategy:    bounded.Strategy,
		}
		if image != nil {
			meta.OriginalBytes = image.Size
			meta.Resolution = image.Resolution
		}
		resp.Metadata.Image = meta
	}
	if bounded.URL != "" {
		resp.IllustrationURL = bounded.URL
	} else {
		resp.IllustrationB64 = bounded.B64
	}

	log.Info().
		Int64("total_time_ms", resp.Metadata.TotalTimeMs).
		Int("text_length", resp.Metadata.TextLength).
		Bool("has_image", resp.Metadata.HasImage).
		Bool("saved", outcome.Saved).
		Msg("Story generation complete")

	return resp, nil
}

// boundedIllustration is an illustration payload guaranteed to fit the
// configured storage limit (or be empty).
type boundedIllustration struct {
	B64      string
	Raw      []byte // original decoded bytes, kept for blob-storage uploads
	MimeType string
	Strategy string // which bounding strategy was applied; empty when none needed
	URL      string // set by persistStory in blob-storage mode
}

// boundIllustration brings the generated image under MaxImageBytes per the
// configured strategy. A nil image (generation failed) yields the
// deterministic placeholder, or nothing when the strategy is omit.
func (p *StoryProcessor) boundIllustration(image *llm.Image) boundedIllustration {
	if image == nil {
		// Blob mode stores URLs only; a failed generation means no
		// illustration rather than an inline placeholder the record would
		// never carry.
		if p.blob != nil {
			return boundedIllustration{}
		}
		if p.config.ImageStrategy == config.ImageStrategyOmit {
			return boundedIllustration{Strategy: config.ImageStrategyOmit}
		}
		return boundedIllustration{
			B64:      images.Placeholder(),
			MimeType: images.PlaceholderMimeType,
			Strategy: config.ImageStrategyPlaceholder,
		}
	}

	// Blob-storage mode stores a URL, not an inline payload, so the database
	// size limit does not apply; the raw bytes are uploaded as-is.
	if p.blob != nil {
		return boundedIllustration{B64: image.B64, Raw: image.Raw, MimeType: "image/png"}
	}

	if image.Size <= p.config.MaxImageBytes {
		return boundedIllustration{B64: image.B64, Raw: image.Raw, MimeType: "image/png"}
	}

	switch p.config.ImageStrategy {
	case config.ImageStrategyShrink:
		result, err := images.Shrink(image.Raw, images.Options{
			MaxEncodedBytes: p.config.MaxImageBytes,
			TargetWidth:     p.config.ImageTargetWidth,
			TargetHeight:    p.config.ImageTargetHeight,
			Quality:         p.config.JPEGQuality,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Image shrink failed, substituting placeholder")
			return boundedIllustration{
				B64:      images.Placeholder(),
				MimeType: images.PlaceholderMimeType,
				Strategy: config.ImageStrategyPlaceholder,
			}
		}
		return boundedIllustration{
			B64:      result.B64,
			Raw:      result.Raw,
			MimeType: "image/jpeg",
			Strategy: config.ImageStrategyShrink,
		}
	case config.ImageStrategyOmit:
		return boundedIllustration{Strategy: config.ImageStrategyOmit}
	case config.ImageStrategyTruncate:
		// Best-effort by explicit configuration: a cut base64 string is not
		// guaranteed to decode as an image.
		return boundedIllustration{
			B64:      image.B64[:p.config.MaxImageBytes],
			MimeType: "image/png",
			Strategy: config.ImageStrategyTruncate,
		}
	default:
		return boundedIllustration{
			B64:      images.Placeholder(),
			MimeType: images.PlaceholderMimeType,
			Strategy: config.ImageStrategyPlaceholder,
		}
	}
}
