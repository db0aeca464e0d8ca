package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func sampleRequest() SummaryRequest {
	patch := "@@ -1,2 +1,3 @@\n+func Parse() {}"
	return SummaryRequest{
		Repository:    "alice/parser",
		CommitSHA:     "abc123",
		CommitMessage: "add parser",
		File: models.FileChange{
			Filename:  "parser.go",
			Status:    models.FileModified,
			Additions: 1,
			Patch:     &patch,
		},
	}
}

func TestNewSummarizer_ProviderSelection(t *testing.T) {
	ctx := context.Background()

	s, err := NewSummarizer(ctx, Config{Provider: ProviderNone})
	require.NoError(t, err)
	assert.IsType(t, NoopSummarizer{}, s)

	s, err = NewSummarizer(ctx, Config{Provider: ProviderGemini})
	require.NoError(t, err)
	assert.IsType(t, NoopSummarizer{}, s, "missing key disables summaries")

	s, err = NewSummarizer(ctx, Config{Provider: "OpenAI", OpenAIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, s)

	_, err = NewSummarizer(ctx, Config{Provider: "claude"})
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
}

func TestOpenAIClient_Summarize(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  Adds a parser entry point.\n"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", "", server.URL)
	summary, err := client.Summarize(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Adds a parser entry point.", summary)

	assert.Equal(t, DefaultOpenAIModel, got["model"])
	assert.EqualValues(t, 256, got["max_tokens"])
	assert.InDelta(t, 0.4, got["temperature"], 0.001)
}

func TestOpenAIClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   apperrors.Kind
	}{
		{401, apperrors.KindUnauthorized},
		{429, apperrors.KindRateLimited},
		{503, apperrors.KindTransientHost},
		{400, apperrors.KindExternal},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			}))
			defer server.Close()

			_, err := NewOpenAIClient("sk-test", "", server.URL).Summarize(context.Background(), sampleRequest())
			assert.Equal(t, tt.want, apperrors.KindOf(err), "got %v", err)
		})
	}
}

func TestResponseText(t *testing.T) {
	_, err := responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	text, err := responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "Adds "}, {Text: "a parser."}}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Adds a parser.", text)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(sampleRequest())
	assert.Contains(t, prompt, "parser.go")
	assert.Contains(t, prompt, "+func Parse() {}")

	req := sampleRequest()
	req.File.Patch = nil
	assert.Contains(t, buildPrompt(req), "No diff is available")

	assert.Greater(t, EstimateTokens(sampleRequest()), int64(summaryMaxOutputTokens))
}

type stubSummarizer struct {
	calls   int
	summary string
}

func (s *stubSummarizer) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	s.calls++
	return s.summary, nil
}

type mapCache map[string]string

func (m mapCache) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	v, ok := m[key]
	if ok {
		*(target.(*string)) = v
	}
	return ok, nil
}

func (m mapCache) Set(ctx context.Context, key string, value interface{}) error {
	m[key] = value.(string)
	return nil
}

func TestCachedSummarizer(t *testing.T) {
	inner := &stubSummarizer{summary: "Adds a parser."}
	store := mapCache{}
	s := NewCachedSummarizer(inner, store)

	for i := 0; i < 3; i++ {
		summary, err := s.Summarize(context.Background(), sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, "Adds a parser.", summary)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Contains(t, store, "gitbuddy:summary:abc123:parser.go")
}
