package models

import (
	"time"

	"github.com/google/uuid"
)

// MetadataNotProvided is the sentinel stored for metadata fields the user left
// empty. Stored instead of NULL so the library view never has to null-check.
const MetadataNotProvided = "not provided"

// Story is the persisted record combining generated text, optional
// illustration and the request metadata that produced it.
type Story struct {
	ID              uuid.UUID `json:"id"`
	Text            string    `json:"text"`
	IllustrationB64 string    `json:"illustration_b64,omitempty"`
	IllustrationURL string    `json:"illustration_url,omitempty"`
	MainCharacter   string    `json:"main_character"`
	Plot            string    `json:"plot"`
	Ending          string    `json:"ending"`
	Genre           string    `json:"genre"`
	Literature      string    `json:"literature"`
	CreatedAt       time.Time `json:"created_at"`
}

// StoryParams carries the user-supplied story parameters through the pipeline.
type StoryParams struct {
	MainCharacter string `json:"mainCharacter"`
	Plot          string `json:"plot"`
	Ending        string `json:"ending"`
	Genre         string `json:"genre"`
	Literature    string `json:"literature"`
}

// GenerateStoryRequest is the POST /v1/stories/generate body.
type GenerateStoryRequest struct {
	MainCharacter string `json:"mainCharacter"`
	Plot          string `json:"plot"`
	Ending        string `json:"ending"`
	Genre         string `json:"genre"`
	Literature    string `json:"literature"`
}

// Params returns the request as pipeline parameters.
func (r GenerateStoryRequest) Params() StoryParams {
	return StoryParams{
		MainCharacter: r.MainCharacter,
		Plot:          r.Plot,
		Ending:        r.Ending,
		Genre:         r.Genre,
		Literature:    r.Literature,
	}
}

// ImageMetadata describes what happened to the illustration payload.
type ImageMetadata struct {
	OriginalBytes int    `json:"original_bytes"`
	StoredBytes   int    `json:"stored_bytes"`
	Resolution    string `json:"resolution,omitempty"`
	Strategy      string `json:"strategy,omitempty"`
}

// GenerationMetadata carries timings and sizes for the response.
type GenerationMetadata struct {
	TotalTimeMs int64          `json:"total_time_ms"`
	TextLength  int            `json:"text_length"`
	WordCount   int            `json:"word_count"`
	Model       string         `json:"model"`
	HasImage    bool           `json:"has_image"`
	Image       *ImageMetadata `json:"image,omitempty"`
}

// DatabaseOutcome reports the best-effort persistence result. Saved=false
// never fails the request; the generated content is still returned.
type DatabaseOutcome struct {
	Saved   bool       `json:"saved"`
	StoryID *uuid.UUID `json:"story_id,omitempty"`
	Code    string     `json:"code,omitempty"` // NO_DATABASE_URL, CONNECTION_FAILED, SCHEMA_FALLBACK
	Warning string     `json:"warning,omitempty"`
}

// GenerateStoryResponse is the 200 payload for a generation request.
type GenerateStoryResponse struct {
	Success         bool               `json:"success"`
	Story           string             `json:"story"`
	IllustrationB64 string             `json:"illustration_b64,omitempty"`
	IllustrationURL string             `json:"illustration_url,omitempty"`
	Metadata        GenerationMetadata `json:"metadata"`
	Database        DatabaseOutcome    `json:"database"`
}

// ListStoriesResponse is the GET /v1/stories payload, newest first.
type ListStoriesResponse struct {
	Stories []*Story `json:"stories"`
	Count   int      `json:"count"`
}
