// Package speech synthesizes lecture audio with word-level timings through an
// external text-to-speech service.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	intschemas "github.com/jonathan/lecture-pipeline/internal/schemas"
	"github.com/jonathan/lecture-pipeline/internal/types"
	"github.com/jonathan/lecture-pipeline/schemas"
)

const (
	defaultVoice        = "alloy"
	defaultSpeakingRate = 1.0
	requestTimeout      = 5 * time.Minute
)

// Client implements pipeline.AudioSynthesizer against an HTTP speech API that
// accepts a script and returns an audio reference plus per-word timings.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a speech client for the given service endpoint.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type synthesisRequest struct {
	Blocks       []synthesisBlock `json:"blocks"`
	Voice        string           `json:"voice"`
	SpeakingRate float64          `json:"speaking_rate"`
}

type synthesisBlock struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type synthesisResponse struct {
	AudioRef        string  `json:"audio_ref"`
	DurationSeconds float64 `json:"duration_seconds"`
	WordTimings     []struct {
		Word          string  `json:"word"`
		StartTime     float64 `json:"start_time"`
		EndTime       float64 `json:"end_time"`
		ScriptBlockID string  `json:"script_block_id"`
	} `json:"word_timings"`
}

// Synthesize sends the full script to the speech service in one request and
// returns the audio reference with its word timing track.
func (c *Client) Synthesize(ctx context.Context, blocks []types.ScriptBlock, agent types.AgentConfig) (*types.SynthesisResult, error) {
	if len(blocks) == 0 {
		return nil, pipeline.NewValidationError("no script blocks to synthesize")
	}

	voice := agent.Voice
	if voice == "" {
		voice = defaultVoice
	}
	rate := agent.SpeakingRate
	if rate == 0 {
		rate = defaultSpeakingRate
	}

	req := synthesisRequest{Voice: voice, SpeakingRate: rate}
	for _, b := range blocks {
		req.Blocks = append(req.Blocks, synthesisBlock{ID: b.ID, Text: b.Text})
	}

	resp, err := c.post(ctx, "/v1/synthesize", req)
	if err != nil {
		return nil, err
	}

	if len(resp.WordTimings) == 0 {
		return nil, pipeline.NewInvalidResponseError("speech service returned no word timings", nil)
	}

	result := &types.SynthesisResult{
		AudioRef:        resp.AudioRef,
		DurationSeconds: resp.DurationSeconds,
	}
	for _, wt := range resp.WordTimings {
		result.WordTimings = append(result.WordTimings, types.WordTiming{
			Word:          wt.Word,
			StartTime:     wt.StartTime,
			EndTime:       wt.EndTime,
			ScriptBlockID: wt.ScriptBlockID,
		})
	}
	if err := validateTimings(result.WordTimings); err != nil {
		return nil, err
	}
	return result, nil
}

// validateTimings gates the service's timing track the same way model
// outputs are gated: schema first, then the ordering contract the playback
// index relies on (sorted by start, non-overlapping).
func validateTimings(timings []types.WordTiming) error {
	raw, err := json.Marshal(timings)
	if err != nil {
		return pipeline.NewInternalError("failed to encode word timings", err)
	}
	schema, err := schemas.Load(schemas.WordTimings)
	if err != nil {
		return pipeline.NewInternalError("failed to load word timings schema", err)
	}
	if err := intschemas.ValidateJSONString(schema, string(raw)); err != nil {
		return pipeline.NewInvalidResponseError("speech service returned invalid word timings", err)
	}

	for i, wt := range timings {
		if wt.EndTime < wt.StartTime {
			return pipeline.NewInvalidResponseError(
				fmt.Sprintf("word timing %d (%q) ends before it starts", i, wt.Word), nil)
		}
		if i > 0 && wt.StartTime < timings[i-1].EndTime {
			return pipeline.NewInvalidResponseError(
				fmt.Sprintf("word timings %d and %d overlap", i-1, i), nil)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload synthesisRequest) (*synthesisResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pipeline.NewInternalError("failed to encode synthesis request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, pipeline.NewInternalError("failed to build synthesis request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pipeline.NewExternalServiceError("speech service unreachable", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, pipeline.NewExternalServiceError("failed to read speech service response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyStatus(httpResp.StatusCode, respBody)
	}

	var resp synthesisResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, pipeline.NewInvalidResponseError("speech service returned malformed JSON", err)
	}
	return &resp, nil
}

// classifyStatus maps service status codes onto the pipeline error taxonomy.
// Client-side rejections are permanent; rate limits and server errors retry.
func classifyStatus(status int, body []byte) error {
	message := fmt.Sprintf("speech service returned status %d: %s", status, truncate(body, 200))
	switch {
	case status == http.StatusTooManyRequests:
		return pipeline.NewExternalServiceError(message, nil)
	case status >= 400 && status < 500:
		return &pipeline.ClassifiedError{Code: pipeline.CodeExternalService, Message: message}
	default:
		return pipeline.NewExternalServiceError(message, nil)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
