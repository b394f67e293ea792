package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"roadassist-platform/internal/config"
)

// OpenAIAnalyzer relays images to an OpenAI-compatible chat-completions
// endpoint. The image travels inline as a data URL; the response's first
// choice is the summary.
type OpenAIAnalyzer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

const defaultAnalyzeTimeout = 30 * time.Second

const analyzePrompt = "You are assisting a roadside assistance service. Describe the vehicle damage or situation in this photo in two or three sentences. Focus on what a tow or repair dispatcher needs to know."

func NewOpenAIAnalyzer(cfg config.VisionConfig) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("vision: api key is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultAnalyzeTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAnalyzer{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (a *OpenAIAnalyzer) Name() string { return "openai" }

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, image []byte, contentType string) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
	payload := chatRequest{
		Model: a.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: analyzePrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		MaxTokens: 300,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RejectionError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("vision: unparseable provider response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &RejectionError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
