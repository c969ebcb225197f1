package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/snapcal/snapcal/internal/provider"
	"github.com/snapcal/snapcal/pkg/models"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultTimeout     = 60 * time.Second
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 1000
	defaultMaxAttempts = 2
	defaultRetryDelay  = 2 * time.Second
)

// analysisPrompt demands a bare JSON object in the AnalysisResult shape.
const analysisPrompt = `Analyze this food image and provide a detailed nutritional breakdown.
Return ONLY a valid JSON object with the following structure:
{
    "meal_name": "descriptive name of the meal",
    "total_calories": total calories as integer,
    "confidence": confidence level between 0 and 1,
    "ingredients": [
        {
            "name": "ingredient name",
            "quantity": amount as number,
            "unit": "grams/cups/pieces/etc",
            "calories": calories as integer,
            "protein": protein in grams,
            "carbs": carbohydrates in grams,
            "fat": fat in grams
        }
    ],
    "totals": {
        "calories": total calories,
        "protein": total protein in grams,
        "carbs": total carbs in grams,
        "fat": total fat in grams
    }
}
Be as accurate as possible with portion sizes and nutritional values. Return only valid JSON, no additional text.`

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessageOut `json:"message"`
}

type chatMessageOut struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Provider calls the OpenAI chat-completions endpoint with a meal photo
// and decodes the structured nutrition answer. One Analyze call owns its
// whole retry budget.
type Provider struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	maxAttempts int
	retryDelay  time.Duration
	httpClient  *http.Client
	verbose     bool
}

func New(cfg *provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	p := &Provider{
		apiKey:      cfg.APIKey,
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		maxTokens:   defaultMaxTokens,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		verbose:     cfg.Verbose,
	}
	if cfg.BaseURL != "" {
		p.baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		p.model = cfg.Model
	}
	if cfg.MaxTokens > 0 {
		p.maxTokens = cfg.MaxTokens
	}
	if cfg.MaxAttempts > 0 {
		p.maxAttempts = cfg.MaxAttempts
	}
	if cfg.RetryDelay > 0 {
		p.retryDelay = cfg.RetryDelay
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	p.httpClient = &http.Client{Timeout: timeout}

	return p, nil
}

// Analyze sends the photo and returns the decoded result. Transport
// failures and unclassified non-2xx statuses are retried after a fixed
// delay until the attempt budget runs out; 401, 429 and decode failures
// are terminal on first occurrence.
func (p *Provider) Analyze(ctx context.Context, jpeg []byte) (*models.AnalysisResult, *models.Usage, error) {
	payload, err := p.buildRequestBody(jpeg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		result, usage, err := p.performRequest(ctx, payload)
		if err == nil {
			return result, usage, nil
		}
		lastErr = err

		if !provider.IsRetryable(err) {
			return nil, nil, err
		}

		if attempt < p.maxAttempts {
			if p.verbose {
				fmt.Fprintf(os.Stderr, "attempt %d/%d failed: %v; retrying in %s\n",
					attempt, p.maxAttempts, err, p.retryDelay)
			}
			select {
			case <-ctx.Done():
				return nil, nil, fmt.Errorf("%w: %v", provider.ErrNetwork, ctx.Err())
			case <-time.After(p.retryDelay):
			}
		}
	}

	return nil, nil, lastErr
}

func (p *Provider) buildRequestBody(jpeg []byte) ([]byte, error) {
	base64Image := base64.StdEncoding.EncodeToString(jpeg)

	req := &chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []chatContent{
					{Type: "text", Text: analysisPrompt},
					{
						Type:     "image_url",
						ImageURL: &imageURL{URL: "data:image/jpeg;base64," + base64Image},
					},
				},
			},
		},
		MaxTokens:      p.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	return json.Marshal(req)
}

func (p *Provider) performRequest(ctx context.Context, payload []byte) (*models.AnalysisResult, *models.Usage, error) {
	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", provider.ErrNetwork, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	p.logRequest(http.MethodPost, url, httpReq.Header, len(payload))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", provider.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read response: %v", provider.ErrNetwork, err)
	}

	p.logResponse(resp.StatusCode, resp.Header, body)

	switch resp.StatusCode {
	case http.StatusOK:
		return p.decodeResponse(body)
	case http.StatusUnauthorized:
		return nil, nil, provider.ErrInvalidCredential
	case http.StatusTooManyRequests:
		return nil, nil, provider.ErrRateLimited
	default:
		return nil, nil, fmt.Errorf("%w: status %d", provider.ErrNetwork, resp.StatusCode)
	}
}

func (p *Provider) decodeResponse(body []byte) (*models.AnalysisResult, *models.Usage, error) {
	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", provider.ErrDecoding, err)
	}

	if chatResp.Error != nil {
		return nil, nil, fmt.Errorf("%w: %s", provider.ErrDecoding, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, nil, fmt.Errorf("%w: no response choices", provider.ErrDecoding)
	}

	content := StripCodeFences(chatResp.Choices[0].Message.Content)

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", provider.ErrDecoding, err)
	}

	var usage *models.Usage
	if chatResp.Usage != nil {
		usage = &models.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
		}
	}

	return &result, usage, nil
}

// StripCodeFences removes a markdown code-fence wrapper from a model
// answer, if present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (p *Provider) logRequest(method, url string, headers http.Header, bodyLen int) {
	if !p.verbose {
		return
	}

	fmt.Fprintln(os.Stderr, "--- REQUEST ---")
	fmt.Fprintf(os.Stderr, "%s %s\n", method, url)
	fmt.Fprintln(os.Stderr, "Headers:")
	for key, values := range headers {
		for _, value := range values {
			if strings.ToLower(key) == "authorization" {
				value = "[REDACTED]"
			}
			fmt.Fprintf(os.Stderr, "  %s: %s\n", key, value)
		}
	}
	fmt.Fprintf(os.Stderr, "Body: [%d bytes, image content truncated]\n", bodyLen)
	fmt.Fprintln(os.Stderr, "---------------")
}

func (p *Provider) logResponse(statusCode int, headers http.Header, body []byte) {
	if !p.verbose {
		return
	}

	fmt.Fprintln(os.Stderr, "--- RESPONSE ---")
	fmt.Fprintf(os.Stderr, "Status: %d\n", statusCode)
	fmt.Fprintln(os.Stderr, "Headers:")
	for key, values := range headers {
		for _, value := range values {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", key, value)
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(os.Stderr, "Body:")
		var prettyJSON bytes.Buffer
		if err := json.Indent(&prettyJSON, body, "  ", "  "); err == nil {
			fmt.Fprintf(os.Stderr, "  %s\n", prettyJSON.String())
		} else {
			fmt.Fprintf(os.Stderr, "  %s\n", string(body))
		}
	}
	fmt.Fprintln(os.Stderr, "----------------")
}
