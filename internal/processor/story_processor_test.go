package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fableforge/tales/internal/config"
	"github.com/fableforge/tales/internal/database"
	"github.com/fableforge/tales/internal/llm"
	"github.com/fableforge/tales/internal/models"
)

// fakeLLM is a minimal LLM for pipeline tests.
type fakeLLM struct {
	storyErr   error
	imageErr   error
	image      *llm.Image
	storyCalls int
	imageCalls int
}

func (f *fakeLLM) GenerateStory(ctx context.Context, params models.StoryParams) (*llm.StoryResult, error) {
	f.storyCalls++
	if f.storyErr != nil {
		return nil, f.storyErr
	}
	return &llm.StoryResult{Text: "Ana found a hidden letter and, in the end, forgave her sister.", WordCount: 12, Model: "gpt-4o"}, nil
}

func (f *fakeLLM) GenerateImagePrompt(ctx context.Context, storyText string) string {
	return "a letter on a wooden table, cartoon style"
}

func (f *fakeLLM) GenerateImage(ctx context.Context, prompt string) (*llm.Image, error) {
	f.imageCalls++
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	if f.image != nil {
		return f.image, nil
	}
	return &llm.Image{B64: "aGVsbG8=", Raw: []byte("hello"), Size: 8, Resolution: "512x512", Model: "dall-e-3"}, nil
}

// fakeStore records writes and can simulate fallback or failure.
type fakeStore struct {
	created      *models.Story
	createCalls  int
	createErr    error
	usedFallback bool
	urlSet       string
	urlErr       error
}

func (f *fakeStore) Create(ctx context.Context, story *models.Story) (*database.CreateResult, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = story
	return &database.CreateResult{UsedFallback: f.usedFallback}, nil
}

func (f *fakeStore) SetIllustrationURL(ctx context.Context, id uuid.UUID, url string) error {
	if f.urlErr != nil {
		return f.urlErr
	}
	f.urlSet = url
	return nil
}

// fakeBlob records uploads.
type fakeBlob struct {
	uploadedKey string
	uploadedLen int
	err         error
}

func (f *fakeBlob) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploadedKey = key
	f.uploadedLen = len(data)
	return "http://blob.local/" + key, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxStoryLength:       10000,
		MetadataMaxLen:       200,
		MaxImageBytes:        100 * 1024,
		ImageStrategy:        config.ImageStrategyShrink,
		ImageTargetWidth:     320,
		ImageTargetHeight:    240,
		JPEGQuality:          60,
		GenerationMaxRetries: 2,
		GenerationRetryDelay: time.Millisecond,
	}
}

func params() models.StoryParams {
	return models.StoryParams{
		MainCharacter: "Ana",
		Plot:          "finds a hidden letter",
		Ending:        "forgives her sister",
		Genre:         "drama",
		Literature:    "short story",
	}
}

// TestProcess_Success asserts the full pipeline produces a saved story with
// an inline illustration.
func TestProcess_Success(t *testing.T) {
	store := &fakeStore{}
	p := NewStoryProcessor(&fakeLLM{}, store, nil, testConfig())

	resp, err := p.Process(context.Background(), params())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !resp.Success || resp.Story == "" {
		t.Errorf("bad response: %+v", resp)
	}
	if resp.IllustrationB64 == "" {
		t.Error("illustration empty")
	}
	if !resp.Database.Saved || resp.Database.StoryID == nil {
		t.Errorf("database outcome: %+v", resp.Database)
	}
	if store.created == nil {
		t.Fatal("store not called")
	}
	if store.created.MainCharacter != "Ana" || store.created.Genre != "drama" {
		t.Errorf("metadata not persisted: %+v", store.created)
	}
}

// TestProcess_TextFailureFatal asserts a text-stage failure aborts the
// pipeline before any write.
func TestProcess_TextFailureFatal(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeLLM{storyErr: fmt.Errorf("story generation failed: %w", llm.ErrQuotaExceeded)}
	p := NewStoryProcessor(gen, store, nil, testConfig())

	_, err := p.Process(context.Background(), params())
	if !errors.Is(err, llm.ErrQuotaExceeded) {
		t.Errorf("expected quota error, got %v", err)
	}
	if store.createCalls != 0 {
		t.Errorf("store called %d times after fatal text failure", store.createCalls)
	}
	if gen.imageCalls != 0 {
		t.Errorf("image stage ran %d times after fatal text failure", gen.imageCalls)
	}
}

// TestProcess_ImageFailureNonFatal asserts the request succeeds with a
// placeholder illustration when image generation fails.
func TestProcess_ImageFailureNonFatal(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeLLM{imageErr: fmt.Errorf("image generation failed: %w", llm.ErrContentPolicy)}
	p := NewStoryProcessor(gen, store, nil, testConfig())

	resp, err := p.Process(context.Background(), params())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Story == "" {
		t.Error("story empty")
	}
	if resp.Metadata.Image == nil || resp.Metadata.Image.Strategy != config.ImageStrategyPlaceholder {
		t.Errorf("expected placeholder strategy, got %+v", resp.Metadata.Image)
	}
	if !resp.Database.Saved {
		t.Errorf("database outcome: %+v", resp.Database)
	}
}

// TestProcess_NoStoreNonFatal asserts generation succeeds without a database.
func TestProcess_NoStoreNonFatal(t *testing.T) {
	p := NewStoryProcessor(&fakeLLM{}, nil, nil, testConfig())

	resp, err := p.Process(context.Background(), params())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Story == "" {
		t.Error("story empty")
	}
	if resp.Database.Saved {
		t.Error("saved true without a store")
	}
	if resp.Database.Code != CodeNoDatabaseURL {
		t.Errorf("code %q", resp.Database.Code)
	}
}

// TestProcess_StoreErrorNonFatal asserts a connectivity failure is reported
// in the outcome without failing the request.
func TestProcess_StoreErrorNonFatal(t *testing.T) {
	store := &fakeStore{createErr: fmt.Errorf("dial tcp: connection refused")}
	p := NewStoryProcessor(&fakeLLM{}, store, nil, testConfig())

	resp, err := p.Process(context.Background(), params())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Database.Saved {
		t.Error("saved true after store error")
	}
	if resp.Database.Code != CodeConnectionFailed {
		t.Errorf("code %q", resp.Database.Code)
	}
	if resp.Story == "" {
		t.Error("story lost on persistence failure")
	}
}

// TestProcess_SchemaFallbackWarning asserts the fallback write is transparent
// except for the warning flag.
func TestProcess_SchemaFallbackWarning(t *testing.T) {
	store := &fakeStore{usedFallback: true}
	p := NewStoryProcessor(&fakeLLM{}, store, nil, testConfig())

	resp, err := p.Process(context.Background(), params())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !resp.Database.Saved {
		t.Error("saved false on fallback write")
	}
	if resp.Database.Code != CodeSchemaFallback || resp.Database.Warning == "" {
		t.Errorf("outcome %+v", resp.Database)
	}
}

// TestProcess_OversizedImageBounded asserts the persisted payload never
// exceeds the configured limit.
func TestProcess_OversizedImageBounded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxImageBytes = 64
	cfg.ImageStrategy = config.ImageStrategyTruncate

	big := strings.Repeat("QUJD", 100) // 400 bytes of base64
	store := &fakeStore{}
	gen := &fakeLLM{image: &llm.Image{B64: big, Raw: []byte("x"), Size: len(big), Resolution: "512x512"}}
	p := NewStoryProcessor(gen, store, nil, cfg)

	if _, err := p.Process(context.Background(), params()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := len(store.created.IllustrationB64); got > cfg.MaxImageBytes {
		t.Errorf("persisted image %d bytes exceeds limit %d", got, cfg.MaxImageBytes)
	}
}

// TestProcess_OversizedImageOmitted asserts the omit strategy drops the field.
func TestProcess_OversizedImageOmitted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxImageBytes = 4
	cfg.ImageStrategy = config.ImageStrategyOmit

	store := &fakeStore{}
	p := NewStoryProcessor(&fakeLLM{}, store, nil, cfg)

	if _, err := p.Process(context.Background(), params()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if store.created.IllustrationB64 != "" {
		t.Errorf("illustration not omitted: %d bytes", len(store.created.IllustrationB64))
	}
}

// TestProcess_BlobStorage asserts the URL variant creates the record first,
// uploads, then attaches the URL.
func TestProcess_BlobStorage(t *testing.T) {
	store := &fakeStore{}
	blob := &fakeBlob{}
	p := NewStoryProcessor(&fakeLLM{}, store, blob, testConfig())

	resp, err := p.Process(context.Background(), params())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if store.created == nil {
		t.Fatal("store not called")
	}
	if store.created.IllustrationB64 != "" {
		t.Error("inline payload stored in blob mode")
	}
	if blob.uploadedKey == "" || blob.uploadedLen == 0 {
		t.Error("no upload performed")
	}
	if store.urlSet == "" || resp.IllustrationURL != store.urlSet {
		t.Errorf("url not attached: set=%q resp=%q", store.urlSet, resp.IllustrationURL)
	}
}

// TestProcess_BlobImageFailureNoInline asserts a failed image in blob mode
// stores and reports no illustration at all: no inline placeholder, no
// upload, has_image false.
func TestProcess_BlobImageFailureNoInline(t *testing.T) {
	store := &fakeStore{}
	blob := &fakeBlob{}
	gen := &fakeLLM{imageErr: fmt.Errorf("image generation failed: %w", llm.ErrTimeout)}
	p := NewStoryProcessor(gen, store, blob, testConfig())

	resp, err := p.Process(context.Background(), params())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.IllustrationB64 != "" || resp.IllustrationURL != "" {
		t.Errorf("illustration reported despite failed generation: b64=%d url=%q",
			len(resp.IllustrationB64), resp.IllustrationURL)
	}
	if resp.Metadata.HasImage {
		t.Error("has_image true with no stored illustration")
	}
	if store.created == nil || store.created.IllustrationB64 != "" {
		t.Errorf("record state: %+v", store.created)
	}
	if blob.uploadedKey != "" {
		t.Errorf("unexpected upload %q", blob.uploadedKey)
	}
	if !resp.Database.Saved {
		t.Errorf("database outcome: %+v", resp.Database)
	}
}

// TestProcess_BlobUploadFailureWarns asserts an upload failure degrades to a
// warning on an otherwise saved story.
func TestProcess_BlobUploadFailureWarns(t *testing.T) {
	store := &fakeStore{}
	blob := &fakeBlob{err: fmt.Errorf("put object: 503")}
	p := NewStoryProcessor(&fakeLLM{}, store, blob, testConfig())

	resp, err := p.Process(context.Background(), params())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !resp.Database.Saved {
		t.Error("saved false after upload failure")
	}
	if resp.Database.Code != CodeUploadFailed {
		t.Errorf("code %q", resp.Database.Code)
	}
	if resp.IllustrationURL != "" {
		t.Errorf("url %q set despite failed upload", resp.IllustrationURL)
	}
}
