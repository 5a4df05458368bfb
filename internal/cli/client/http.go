package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/nutrirag/internal/api"
	"github.com/cloo-solutions/nutrirag/internal/api/handlers"
)

const (
	envAPIURL = "NUTRIRAG_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClientWithCmd resolves the base URL from the --api-url flag, then
// NUTRIRAG_API_URL (a .env file is honored), then the default.
func NewAPIClientWithCmd(cmd *cobra.Command) *APIClient {
	_ = godotenv.Load()

	var baseURL string
	if cmd != nil {
		if flagURL, err := cmd.Flags().GetString("api-url"); err == nil && flagURL != "" {
			baseURL = flagURL
		}
	}
	if baseURL == "" {
		baseURL = os.Getenv(envAPIURL)
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	timeout := 90 * time.Second
	if cmd != nil {
		if t, err := cmd.Flags().GetDuration("timeout"); err == nil && t > 0 {
			timeout = t
		}
	}
	return NewAPIClient(baseURL, timeout)
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Code       string
	Answer     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Answer)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Answer)
}

// Query posts a question with optional history to /query
func (c *APIClient) Query(ctx context.Context, req handlers.QueryRequest) (string, error) {
	return c.do(ctx, http.MethodPost, "/query", req)
}

// Test calls the liveness route
func (c *APIClient) Test(ctx context.Context) (string, error) {
	return c.do(ctx, http.MethodGet, "/test", nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}) (string, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var answer api.AnswerResponse
	if err := json.Unmarshal(respBody, &answer); err != nil {
		if resp.StatusCode >= 400 {
			return "", &APIError{StatusCode: resp.StatusCode, Answer: string(respBody)}
		}
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", &APIError{StatusCode: resp.StatusCode, Code: answer.Error, Answer: answer.Answer}
	}
	return answer.Answer, nil
}
