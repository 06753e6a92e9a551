package grounding

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
)

// MaxTerms is the most display terms a lookup yields.
const MaxTerms = 3

// ErrNotConfigured is returned when no grounding endpoint or token is set.
var ErrNotConfigured = errors.New("grounding service not configured")

// Document is the structured response of the grounding service.
type Document map[string]any

// Client maps free text to standardized terminology.
type Client interface {
	Construe(ctx context.Context, text string) (Document, error)
}

type phenomlClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewPhenoMLClient returns a client for the construe/extract endpoint under
// baseURL, authenticated with a bearer token.
func NewPhenoMLClient(baseURL, token string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &phenomlClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type construeRequest struct {
	Text          string   `json:"text"`
	TargetSystems []string `json:"target_systems"`
}

func (c *phenomlClient) Construe(ctx context.Context, text string) (Document, error) {
	if c.baseURL == "" || c.token == "" {
		return nil, ErrNotConfigured
	}
	jsonBody, err := json.Marshal(construeRequest{
		Text:          text,
		TargetSystems: []string{"ICD10", "SNOMED"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/construe/extract", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grounding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("grounding API error: %s - %s", resp.Status, string(respBody))
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode grounding response: %w", err)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return Document{}, nil
	}
	return Document(doc), nil
}
