package processor

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fableforge/tales/internal/models"
)

// Persistence outcome codes surfaced in the response.
const (
	CodeNoDatabaseURL    = "NO_DATABASE_URL"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeSchemaFallback   = "SCHEMA_FALLBACK"
	CodeUploadFailed     = "UPLOAD_FAILED"
)

// truncationMarker is appended when story text is cut to the configured bound.
const truncationMarker = "... [truncated]"

// persistStory writes one story best-effort. It never returns an error: every
// failure mode becomes a saved=false outcome or a warning, and the generated
// content is returned to the caller regardless. In blob-storage mode the
// record is created text-only first, then a second write attaches the
// uploaded illustration URL.
func (p *StoryProcessor) persistStory(ctx context.Context, params models.StoryParams, text string, illustration *boundedIllustration) models.DatabaseOutcome {
	if p.store == nil {
		log.Warn().Msg("No database configured, skipping persistence")
		return models.DatabaseOutcome{
			Saved:   false,
			Code:    CodeNoDatabaseURL,
			Warning: "DATABASE_URL is not configured; story was not persisted",
		}
	}

	story := &models.Story{
		ID:            uuid.New(),
		Text:          truncateText(text, p.config.MaxStoryLength),
		MainCharacter: sanitizeMeta(params.MainCharacter, p.config.MetadataMaxLen),
		Plot:          sanitizeMeta(params.Plot, p.config.MetadataMaxLen),
		Ending:        sanitizeMeta(params.Ending, p.config.MetadataMaxLen),
		Genre:         sanitizeMeta(params.Genre, p.config.MetadataMaxLen),
		Literature:    sanitizeMeta(params.Literature, p.config.MetadataMaxLen),
		CreatedAt:     time.Now(),
	}
	if p.blob == nil {
		story.IllustrationB64 = illustration.B64
	}

	result, err := p.store.Create(ctx, story)
	if err != nil {
		log.Error().Err(err).Msg("Story persistence failed")
		return models.DatabaseOutcome{
			Saved:   false,
			Code:    CodeConnectionFailed,
			Warning: "story could not be persisted: " + err.Error(),
		}
	}

	outcome := models.DatabaseOutcome{Saved: true, StoryID: &story.ID}
	if result.UsedFallback {
		outcome.Code = CodeSchemaFallback
		outcome.Warning = "schema is missing metadata columns; base fields were written"
	}

	if p.blob != nil && len(illustration.Raw) > 0 {
		p.attachIllustrationURL(ctx, story.ID, illustration, &outcome)
	}

	log.Info().
		Str("story_id", story.ID.String()).
		Int("text_length", len(story.Text)).
		Int("image_bytes", len(story.IllustrationB64)).
		Bool("fallback", result.UsedFallback).
		Msg("Story persisted")

	return outcome
}

// attachIllustrationURL uploads the illustration bytes and records the URL on
// the already-created story. Upload or update failure degrades to a warning.
func (p *StoryProcessor) attachIllustrationURL(ctx context.Context, storyID uuid.UUID, illustration *boundedIllustration, outcome *models.DatabaseOutcome) {
	ext := "png"
	if illustration.MimeType == "image/jpeg" {
		ext = "jpg"
	}
	key := fmt.Sprintf("stories/%s/illustration.%s", storyID, ext)

	url, err := p.blob.Upload(ctx, key, illustration.Raw, illustration.MimeType)
	if err != nil {
		log.Warn().Err(err).Str("story_id", storyID.String()).Msg("Illustration upload failed")
		outcome.Code = CodeUploadFailed
		outcome.Warning = "illustration upload failed; story saved without image"
		return
	}
	if url == "" {
		log.Warn().Str("story_id", storyID.String()).Msg("S3_PUBLIC_URL not configured, illustration URL not recorded")
		outcome.Code = CodeUploadFailed
		outcome.Warning = "blob storage has no public URL; story saved without image"
		return
	}
	if err := p.store.SetIllustrationURL(ctx, storyID, url); err != nil {
		log.Warn().Err(err).Str("story_id", storyID.String()).Msg("Failed to attach illustration URL")
		outcome.Code = CodeUploadFailed
		outcome.Warning = "illustration uploaded but URL could not be recorded"
		return
	}
	illustration.URL = url
}

// truncateText bounds text to maxLen bytes, appending the truncation marker.
// Applied on write only; reads return stored text verbatim.
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	keep := maxLen - len(truncationMarker)
	if keep <= 0 {
		return truncateRunes(text, maxLen)
	}
	return truncateRunes(text, keep) + truncationMarker
}

// sanitizeMeta trims and bounds a metadata field, substituting the sentinel
// for empty values so the library view never sees NULL.
func sanitizeMeta(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.MetadataNotProvided
	}
	return truncateRunes(s, maxLen)
}

// truncateRunes cuts s to at most n bytes without splitting a multibyte rune.
// Postgres rejects parameters carrying invalid UTF-8, so a byte-boundary cut
// would turn an overlength field into a failed insert.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
