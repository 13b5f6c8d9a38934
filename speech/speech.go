// Package speech talks to the speech-to-text service that turns a player's
// uploaded recording into candidate transcriptions.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"saythat-server/gameerrors"
)

const defaultEndpoint = "https://speech.googleapis.com/v1/speech:recognize"

// Request carries the recognition settings for one recording.
type Request struct {
	Encoding        string
	LanguageCode    string
	ProfanityFilter bool
}

// Recognizer transcribes the audio stored at audioURL. Each element of the
// result is one alternative: a string or a list whose first element is a string.
type Recognizer interface {
	Recognize(ctx context.Context, audioURL string, req Request) ([]any, error)
}

// FirstTranscript normalizes a recognizer result to a single string. Only the
// first alternative is used. An empty result is an empty transcription.
func FirstTranscript(results []any) (string, error) {
	if len(results) == 0 {
		return "", nil
	}
	switch v := results[0].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []string:
		if len(v) == 0 {
			return "", nil
		}
		return v[0], nil
	case []any:
		if len(v) == 0 {
			return "", nil
		}
		if s, ok := v[0].(string); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("speech: first alternative is %T: %w", results[0], gameerrors.ErrUnexpectedShape)
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the recognize endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client is a Recognizer backed by the Cloud Speech REST API.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("speech: apiKey must not be empty")
	}
	c := &Client{
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type recognizeConfig struct {
	Encoding        string `json:"encoding"`
	LanguageCode    string `json:"languageCode"`
	ProfanityFilter bool   `json:"profanityFilter"`
}

type recognitionAudio struct {
	URI string `json:"uri"`
}

type recognizeRequest struct {
	Config recognizeConfig  `json:"config"`
	Audio  recognitionAudio `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Recognize sends one synchronous recognition request. The alternatives of
// the first result are returned in the service's ranking order.
func (c *Client) Recognize(ctx context.Context, audioURL string, req Request) ([]any, error) {
	body, err := json.Marshal(recognizeRequest{
		Config: recognizeConfig{
			Encoding:        req.Encoding,
			LanguageCode:    req.LanguageCode,
			ProfanityFilter: req.ProfanityFilter,
		},
		Audio: recognitionAudio{URI: audioURL},
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("speech: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("speech: recognize: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech: recognize: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("speech: decode response: %w", err)
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	alts := out.Results[0].Alternatives
	results := make([]any, 0, len(alts))
	for _, a := range alts {
		results = append(results, strings.TrimSpace(a.Transcript))
	}
	return results, nil
}
