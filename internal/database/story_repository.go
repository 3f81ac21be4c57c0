package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/fableforge/tales/internal/models"
)

// pqUndefinedColumn is the Postgres error code for undefined_column.
const pqUndefinedColumn = "42703"

// CreateResult reports how a story write landed.
type CreateResult struct {
	// UsedFallback is true when the full insert was rejected by the schema
	// and the story was written with the guaranteed base fields only.
	UsedFallback bool
}

// StoryRepository handles story-related database operations
type StoryRepository struct {
	db *DB
}

// NewStoryRepository creates a new StoryRepository
func NewStoryRepository(db *DB) *StoryRepository {
	return &StoryRepository{db: db}
}

// Create writes one story. It attempts the full insert first; if the schema
// lacks the extended metadata columns (typed undefined_column error), it
// retries once with the base fields only and flags the fallback in the result.
func (r *StoryRepository) Create(ctx context.Context, story *models.Story) (*CreateResult, error) {
	query := `
		INSERT INTO stories (
			id, text, illustration_b64, illustration_url,
			main_character, plot, ending, genre, literature, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		story.ID, story.Text, story.IllustrationB64, story.IllustrationURL,
		story.MainCharacter, story.Plot, story.Ending, story.Genre,
		story.Literature, story.CreatedAt,
	)
	if err == nil {
		return &CreateResult{}, nil
	}
	if !isUndefinedColumn(err) {
		return nil, err
	}

	log.Warn().
		Err(err).
		Str("story_id", story.ID.String()).
		Msg("Schema missing extended columns, retrying with base fields")

	fallback := `
		INSERT INTO stories (id, text, illustration_b64, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, fallback,
		story.ID, story.Text, story.IllustrationB64, story.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("fallback insert: %w", err)
	}

	return &CreateResult{UsedFallback: true}, nil
}

// SetIllustrationURL attaches an uploaded illustration URL to a story and
// clears the inline payload so the URL is the single source of truth.
func (r *StoryRepository) SetIllustrationURL(ctx context.Context, id uuid.UUID, url string) error {
	query := `UPDATE stories SET illustration_url = $1, illustration_b64 = '' WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, url, id)
	return err
}

// ListRecent retrieves the newest stories, newest first.
func (r *StoryRepository) ListRecent(ctx context.Context, limit int) ([]*models.Story, error) {
	query := `
		SELECT id, text, illustration_b64, illustration_url,
			main_character, plot, ending, genre, literature, created_at
		FROM stories
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []*models.Story
	for rows.Next() {
		story := &models.Story{}
		err := rows.Scan(
			&story.ID, &story.Text, &story.IllustrationB64, &story.IllustrationURL,
			&story.MainCharacter, &story.Plot, &story.Ending, &story.Genre,
			&story.Literature, &story.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}

	return stories, rows.Err()
}

// isUndefinedColumn reports whether err is the typed Postgres undefined_column
// error. Never matches on the message text.
func isUndefinedColumn(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUndefinedColumn
}
