package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when a speech service has no endpoint.
var ErrNotConfigured = errors.New("speech service not configured")

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type httpTranscriber struct {
	url        string
	httpClient *http.Client
}

// NewHTTPTranscriber returns a client that uploads WAV audio as multipart
// form field "file" and reads {"text": ...} back.
func NewHTTPTranscriber(url string, timeout time.Duration) Transcriber {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpTranscriber{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sttResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (c *httpTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if c.url == "" {
		return "", ErrNotConfigured
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("STT API error: %s - %s", resp.Status, string(respBody))
	}

	var result sttResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

type httpSynthesizer struct {
	baseURL    string
	apiKey     string
	voiceID    string
	httpClient *http.Client
}

// NewHTTPSynthesizer returns a client for an ElevenLabs-style text-to-speech
// endpoint: POST {baseURL}/{voiceID} with the key in "xi-api-key".
func NewHTTPSynthesizer(baseURL, apiKey, voiceID string, timeout time.Duration) Synthesizer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpSynthesizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		voiceID: voiceID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type ttsRequest struct {
	Text          string `json:"text"`
	ModelID       string `json:"model_id"`
	VoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	} `json:"voice_settings"`
}

func (c *httpSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	voiceID := c.voiceID
	if voiceID == "" {
		voiceID = "21m00Tcm4TlvDq8ikWAM"
	}

	reqBody := ttsRequest{
		Text:    text,
		ModelID: "eleven_multilingual_v2",
	}
	reqBody.VoiceSettings.Stability = 0.5
	reqBody.VoiceSettings.SimilarityBoost = 0.75

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+voiceID, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("xi-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("TTS API error: %s - %s", resp.Status, string(body))
	}
	return io.ReadAll(resp.Body)
}
