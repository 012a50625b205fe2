package images

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultLookupURL is the bulk image lookup endpoint.
	DefaultLookupURL = "https://caos.boldsystems.org:443/api/images"
	// DefaultObjectBaseURL prefixes an asset id to form its public URL.
	DefaultObjectBaseURL = "https://caos.boldsystems.org:443/api/objects/"

	defaultUserAgent   = "boldrank/dev"
	defaultHTTPTimeout = 90 * time.Second
)

// Asset pairs a process id with the id of an image stored for it.
type Asset struct {
	ProcessID string
	ObjectID  string
}

// StatusError is returned for non-2xx lookup responses.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("image lookup failed (%s)", e.Status)
	}
	return fmt.Sprintf("image lookup failed (%s): %s", e.Status, e.Body)
}

// DecodeError wraps a response body that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode image lookup response: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// ClientConfig describes the lookup client.
type ClientConfig struct {
	LookupURL  string
	UserAgent  string
	HTTPClient *http.Client
}

// Client calls the bulk lookup endpoint.
type Client struct {
	lookupURL *url.URL
	userAgent string
	http      *http.Client
}

// NewClient validates the configuration and applies defaults.
func NewClient(cfg ClientConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.LookupURL)
	if raw == "" {
		raw = DefaultLookupURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("images: parse lookup url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("images: lookup url %q must be absolute", raw)
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{lookupURL: parsed, userAgent: userAgent, http: client}, nil
}

// Lookup fetches the assets recorded for the given process ids in one request.
func (c *Client) Lookup(ctx context.Context, processIDs []string) ([]Asset, error) {
	if c == nil {
		return nil, errors.New("images: client is nil")
	}
	if len(processIDs) == 0 {
		return nil, nil
	}

	endpoint := *c.lookupURL
	escaped := make([]string, len(processIDs))
	for i, id := range processIDs {
		escaped[i] = url.QueryEscape(id)
	}
	endpoint.RawQuery = "processids=" + strings.Join(escaped, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("images: build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("images: lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("images: read lookup response: %w", err)
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, nil
	}

	var entries []assetEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, &DecodeError{Err: err}
	}
	assets := make([]Asset, 0, len(entries))
	for _, entry := range entries {
		if entry.ProcessID == "" || entry.ObjectID == "" {
			continue
		}
		assets = append(assets, Asset{ProcessID: string(entry.ProcessID), ObjectID: string(entry.ObjectID)})
	}
	return assets, nil
}

type assetEntry struct {
	ProcessID looseString `json:"processid"`
	ObjectID  looseString `json:"objectid"`
}

// looseString accepts JSON strings and numbers; the index has served object
// ids as both.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = looseString(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*s = looseString(number.String())
	return nil
}
