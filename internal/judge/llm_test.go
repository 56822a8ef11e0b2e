package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *LLMJudge) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	j := NewLLMJudge(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
		Timeout: 2 * time.Second,
	})
	return srv, j
}

func completionReply(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return body
}

func TestLLMJudgeScore(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    float64
	}{
		{name: "plain number", reply: "7", want: 7},
		{name: "decimal", reply: "7.5", want: 7.5},
		{name: "number with prose", reply: "Rating: 4 out of 10", want: 4},
		{name: "above scale clamps", reply: "15", want: 10},
		{name: "zero", reply: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, j := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				_, _ = w.Write(completionReply(tt.reply))
			})

			score, err := j.Score(context.Background(), "a thoughtful message", 1, 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, score)
		})
	}
}

func TestLLMJudgeSendsMessageText(t *testing.T) {
	var req chatCompletionRequest
	_, j := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write(completionReply("5"))
	})

	_, err := j.Score(context.Background(), "does anyone understand staking?", 1, 100)
	require.NoError(t, err)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "test-model", req.Model)
	assert.Contains(t, req.Messages[1].Content, "does anyone understand staking?")
	assert.Zero(t, req.Temperature)
}

func TestLLMJudgeErrors(t *testing.T) {
	t.Run("server error is unavailable", func(t *testing.T) {
		_, j := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := j.Score(context.Background(), "a thoughtful message", 1, 100)
		assert.ErrorIs(t, err, ErrJudgeUnavailable)
	})

	t.Run("rate limited is unavailable", func(t *testing.T) {
		_, j := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := j.Score(context.Background(), "a thoughtful message", 1, 100)
		assert.ErrorIs(t, err, ErrJudgeUnavailable)
	})

	t.Run("invalid json is malformed", func(t *testing.T) {
		_, j := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		})
		_, err := j.Score(context.Background(), "a thoughtful message", 1, 100)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("empty choices is malformed", func(t *testing.T) {
		_, j := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		})
		_, err := j.Score(context.Background(), "a thoughtful message", 1, 100)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("no number in reply is malformed", func(t *testing.T) {
		_, j := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(completionReply("I cannot rate this message."))
		})
		_, err := j.Score(context.Background(), "a thoughtful message", 1, 100)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("missing api key", func(t *testing.T) {
		j := NewLLMJudge(Config{Model: "test-model"})
		_, err := j.Score(context.Background(), "a thoughtful message", 1, 100)
		assert.ErrorIs(t, err, ErrJudgeUnavailable)
	})

	t.Run("cancelled context", func(t *testing.T) {
		_, j := newStubServer(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			_, _ = w.Write(completionReply("5"))
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := j.Score(ctx, "a thoughtful message", 1, 100)
		assert.ErrorIs(t, err, ErrJudgeUnavailable)
	})
}

func TestExtractScore(t *testing.T) {
	tests := []struct {
		content string
		want    float64
		wantErr bool
	}{
		{content: "8", want: 8},
		{content: "  3.25 ", want: 3.25},
		{content: "score is 6/10", want: 6},
		{content: "12", want: 10},
		{content: "none", wantErr: true},
		{content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			got, err := extractScore(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
