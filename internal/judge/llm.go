package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-engage-bot/internal/metrics"
)

const defaultBaseURL = "https://api.openai.com/v1"

// maxScore is the upper bound of the judge scale.
const maxScore = 10.0

// engagementPrompt instructs the model to act as a strict engagement
// judge. Low-effort content must score zero so judged and fallback
// behavior agree on trivial messages.
const engagementPrompt = `Rate the following message for community engagement on a scale of 0-10.

STRICT SCORING RULES:
- Only meaningful, unique, and helpful content gets points
- Simple greetings, acknowledgments, or basic responses get 0 points
- Must contribute something valuable to the conversation

GIVE 0 POINTS FOR:
- Simple greetings: "ok", "gm", "hello", "hi", "thanks", "good", "nice"
- Basic acknowledgments, one-word responses, spam or irrelevant content

GIVE POINTS ONLY FOR:
- Thoughtful questions that encourage discussion
- Detailed explanations, insights, helpful advice
- Original ideas, perspectives, or constructive feedback

Scoring guide:
0: greetings, basic responses, spam, non-contributing content
1-3: minimal contribution
4-6: somewhat helpful or informative
7-8: good contribution with clear value
9-10: excellent, highly valuable, unique contribution

Message: %q

Respond with only the numeric rating (0-10).`

var scorePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// LLMJudge scores messages via an OpenAI-compatible chat completions
// endpoint. It is the primary Judge implementation.
type LLMJudge struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
}

// Config holds LLMJudge construction parameters.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewLLMJudge creates an LLM-backed judge.
func NewLLMJudge(cfg Config) *LLMJudge {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &LLMJudge{
		// The HTTP client timeout backstops the per-call context.
		http:    &http.Client{Timeout: timeout + time.Second},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Score rates one message. The call is bounded by the configured
// timeout regardless of the caller's context.
func (j *LLMJudge) Score(ctx context.Context, text string, userID, groupID int64) (float64, error) {
	if j.apiKey == "" {
		return 0, fmt.Errorf("%w: api key is empty", ErrJudgeUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	reqBody := chatCompletionRequest{
		Model: j.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a strict community engagement judge. Reply with a single number."},
			{Role: "user", Content: fmt.Sprintf(engagementPrompt, text)},
		},
		Temperature: 0,
		MaxTokens:   16,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal request: %v", ErrJudgeUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrJudgeUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+j.apiKey)

	start := time.Now()
	resp, err := j.http.Do(httpReq)
	if err != nil {
		metrics.ObserveJudgeCall(j.model, start, err)
		return 0, fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveJudgeCall(j.model, start, err)
		return 0, fmt.Errorf("%w: read response: %v", ErrJudgeUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("%w: unexpected status %d", ErrJudgeUnavailable, resp.StatusCode)
		metrics.ObserveJudgeCall(j.model, start, err)
		return 0, err
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		metrics.ObserveJudgeCall(j.model, start, err)
		return 0, fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, err)
	}
	if len(completion.Choices) == 0 {
		metrics.ObserveJudgeCall(j.model, start, ErrMalformedResponse)
		return 0, fmt.Errorf("%w: empty choices", ErrMalformedResponse)
	}
	metrics.ObserveJudgeCall(j.model, start, nil)

	score, err := extractScore(completion.Choices[0].Message.Content)
	if err != nil {
		return 0, err
	}

	log.Debug().
		Int64("user_id", userID).
		Int64("group_id", groupID).
		Float64("score", score).
		Msg("judge scored message")

	return score, nil
}

// extractScore pulls the first number out of the model's reply and
// clamps it to the judge scale. Free-form prose without any number is a
// malformed response.
func extractScore(content string) (float64, error) {
	match := scorePattern.FindString(content)
	if match == "" {
		return 0, fmt.Errorf("%w: no numeric score in %q", ErrMalformedResponse, content)
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %q: %v", ErrMalformedResponse, match, err)
	}
	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}
	return score, nil
}
