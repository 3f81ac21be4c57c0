package config

import "testing"

// TestLoad_ClampsBounds asserts nonsense size settings are raised to usable
// minimums instead of flowing into the pipeline.
func TestLoad_ClampsBounds(t *testing.T) {
	t.Setenv("MAX_STORY_LENGTH", "5")
	t.Setenv("METADATA_MAX_LENGTH", "0")
	t.Setenv("LIBRARY_PAGE_SIZE", "-1")
	t.Setenv("JPEG_QUALITY", "0")

	cfg := Load()

	if cfg.MaxStoryLength < 100 {
		t.Errorf("MaxStoryLength %d not clamped", cfg.MaxStoryLength)
	}
	if cfg.MetadataMaxLen < 1 {
		t.Errorf("MetadataMaxLen %d not clamped", cfg.MetadataMaxLen)
	}
	if cfg.LibraryPageSize < 1 {
		t.Errorf("LibraryPageSize %d not clamped", cfg.LibraryPageSize)
	}
	if cfg.JPEGQuality < 1 {
		t.Errorf("JPEGQuality %d not clamped", cfg.JPEGQuality)
	}
}
