// Package translate wraps the machine translation service used to expand a
// scene's English nouns into every supported language.
package translate

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

	"golang.org/x/time/rate"

	"saythat-server/gameerrors"
)

const defaultEndpoint = "https://translation.googleapis.com/language/translate/v2"

// Translator translates text between generic language codes. The result is a
// string or a list of alternatives whose first element may itself be a list.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (any, error)
}

// FirstAlternative reduces a translation result to its first alternative,
// descending into nested lists.
func FirstAlternative(result any) (string, error) {
	for depth := 0; depth < 4; depth++ {
		switch v := result.(type) {
		case string:
			if v == "" {
				return "", fmt.Errorf("translate: empty translation: %w", gameerrors.ErrUnexpectedShape)
			}
			return v, nil
		case []string:
			if len(v) == 0 {
				return "", fmt.Errorf("translate: no alternatives: %w", gameerrors.ErrUnexpectedShape)
			}
			result = v[0]
		case []any:
			if len(v) == 0 {
				return "", fmt.Errorf("translate: no alternatives: %w", gameerrors.ErrUnexpectedShape)
			}
			result = v[0]
		default:
			return "", fmt.Errorf("translate: result is %T: %w", result, gameerrors.ErrUnexpectedShape)
		}
	}
	return "", fmt.Errorf("translate: result nested too deeply: %w", gameerrors.ErrUnexpectedShape)
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the translate endpoint URL.
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

// WithRateLimit caps outgoing requests at qps with the given burst. A
// non-positive qps disables limiting.
func WithRateLimit(qps float64, burst int) Option {
	return func(c *Client) {
		if qps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// Client is a Translator backed by the Cloud Translation v2 REST API.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client. By default requests are limited to 10 per second
// with a burst of 10.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("translate: apiKey must not be empty")
	}
	c := &Client{
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second/10), 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type translateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// Translate waits for a limiter token and translates text from one generic
// code to another. Every returned alternative is a string.
func (c *Client) Translate(ctx context.Context, text, from, to string) (any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("translate: %s: %w", to, err)
		}
	}
	body, err := json.Marshal(translateRequest{Q: []string{text}, Source: from, Target: to, Format: "text"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translate: %s: %w", to, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("translate: %s: status %d: %s", to, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("translate: decode response: %w", err)
	}
	alts := make([]any, 0, len(out.Data.Translations))
	for _, t := range out.Data.Translations {
		alts = append(alts, t.TranslatedText)
	}
	return alts, nil
}
