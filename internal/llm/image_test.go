package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// imageStub serves the image-generation endpoint, recording prompts and
// refusing the first refuseN requests with a content-policy error.
type imageStub struct {
	prompts []string
	refuseN int
}

func (s *imageStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.prompts = append(s.prompts, req.Prompt)

		if len(s.prompts) <= s.refuseN {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"message": "Your request was rejected by the safety system.",
					"type":    "invalid_request_error",
					"code":    "content_policy_violation",
				},
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]string{{"b64_json": "aGVsbG8="}},
		})
	}
}

func imageTestClient(baseURL string) *Client {
	return NewClient("test-key", baseURL, "gpt-4o", "dall-e-3", "512x512", 500, 0.7, 2, time.Millisecond)
}

// TestGenerateImage_SoftensPromptOnce asserts a content-policy refusal gets
// exactly one retry carrying the softened generic prompt.
func TestGenerateImage_SoftensPromptOnce(t *testing.T) {
	stub := &imageStub{refuseN: 1}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	img, err := imageTestClient(srv.URL).GenerateImage(context.Background(), "a dramatic duel at dawn")
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if img == nil || img.B64 == "" {
		t.Fatal("no image returned after softened retry")
	}
	if len(stub.prompts) != 2 {
		t.Fatalf("requests %d != 2", len(stub.prompts))
	}
	if stub.prompts[0] != "a dramatic duel at dawn" {
		t.Errorf("first prompt rewritten: %q", stub.prompts[0])
	}
	if stub.prompts[1] != softenedImagePrompt {
		t.Errorf("retry prompt %q is not the softened prompt", stub.prompts[1])
	}
}

// TestGenerateImage_SecondRefusalGivesUp asserts a refusal of the softened
// prompt ends the attempt: no third request, error carries the policy kind.
func TestGenerateImage_SecondRefusalGivesUp(t *testing.T) {
	stub := &imageStub{refuseN: 2}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	_, err := imageTestClient(srv.URL).GenerateImage(context.Background(), "a dramatic duel at dawn")
	if err == nil {
		t.Fatal("expected error after second refusal")
	}
	if !errors.Is(err, ErrContentPolicy) {
		t.Errorf("error kind: %v", err)
	}
	if len(stub.prompts) != 2 {
		t.Errorf("requests %d != 2, softened prompt must not be retried again", len(stub.prompts))
	}
}
