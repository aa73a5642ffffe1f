package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/contentive/topic-analysis-service/internal/config"
	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/observability"
)

// Endpoint labels used for logging, metrics, and error reporting.
const (
	EndpointInitiate   = "initiate"
	EndpointSendPage   = "send_page"
	EndpointPoll       = "poll"
	EndpointResults    = "results"
	EndpointContentIDs = "content_ids"
	EndpointSubjects   = "subjects"
)

// API paths on the classification service.
const (
	pathInitiate   = "/analyze/bulk/initiate"
	pathSendPage   = "/analyze/bulk/send"
	pathPoll       = "/poll/analysis"
	pathResults    = "/v2/result/posts"
	pathContentIDs = "/result/customer_ids"
	pathSubjects   = "/result/entities"
)

// maxResponseBody caps decoded response bodies. Result pages carry full
// subject bodies for up to 100 items, so the cap is generous.
const maxResponseBody = 32 << 20

// Client talks to the remote classification service.
type Client struct {
	baseURL    string
	httpClient *HTTPClient
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a classification service client from configuration.
// metrics may be nil in tests.
func NewClient(cfg config.ClassifierConfig, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	httpClient := NewHTTPClient(HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.RateBurst,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		APIKey:     cfg.APIKey,
		OnRateLimited: func() {
			if metrics != nil {
				metrics.RecordClassifierRateLimited()
			}
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With().Str("component", "classifier").Logger(),
		metrics:    metrics,
	}
}

// InitiateBulk registers a new bulk analysis for the given content count and
// returns the service-issued request ID.
func (c *Client) InitiateBulk(ctx context.Context, contentCount int) (string, error) {
	if contentCount < 1 {
		return "", domain.NewValidationError("content_count", "content count must be >= 1")
	}

	var out initiateResponse
	err := c.postJSON(ctx, EndpointInitiate, pathInitiate, initiateRequest{ContentCount: contentCount}, &out)
	if err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", domain.NewExternalAPIError(EndpointInitiate, http.StatusOK, "service returned empty request_id", nil)
	}

	c.logger.Info().
		Str("request_id", out.RequestID).
		Int("content_count", contentCount).
		Msg("bulk analysis initiated")
	return out.RequestID, nil
}

// SendPage submits one page of rendered content items, tagged with its page
// number and the total page count so the service can detect arrival of the
// final page.
func (c *Client) SendPage(ctx context.Context, requestID string, page, pageCount int, contents []ContentPayload) error {
	if requestID == "" {
		return domain.NewValidationError("request_id", "request ID is required")
	}
	if page < 1 || pageCount < 1 || page > pageCount {
		return domain.NewValidationError("page", fmt.Sprintf("invalid page %d of %d", page, pageCount))
	}

	payload := sendPageRequest{
		RequestID:    requestID,
		Page:         page,
		PageCount:    pageCount,
		ContentsData: contents,
	}
	if err := c.postJSON(ctx, EndpointSendPage, pathSendPage, payload, nil); err != nil {
		return err
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Int("page", page).
		Int("page_count", pageCount).
		Int("items", len(contents)).
		Msg("submission page sent")
	return nil
}

// PollAnalysis fetches the current analysis status for the request.
func (c *Client) PollAnalysis(ctx context.Context, requestID string) (*PollStatus, error) {
	if requestID == "" {
		return nil, domain.NewValidationError("request_id", "request ID is required")
	}

	query := url.Values{"request_id": {requestID}}
	var status PollStatus
	if err := c.getJSON(ctx, EndpointPoll, pathPoll, query, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// FetchResultPage retrieves one page from the combined v2 result endpoint:
// per-item subject references plus the subject bodies they reference.
func (c *Client) FetchResultPage(ctx context.Context, requestID string, page int) (*ResultPage, error) {
	if requestID == "" {
		return nil, domain.NewValidationError("request_id", "request ID is required")
	}
	if page < 1 {
		return nil, domain.NewValidationError("page", "page must be >= 1")
	}

	query := url.Values{
		"request_id": {requestID},
		"page":       {strconv.Itoa(page)},
	}
	var result ResultPage
	if err := c.getJSON(ctx, EndpointResults, pathResults, query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchContentIDsPage retrieves one page of per-item subject references from
// the legacy split endpoint.
func (c *Client) FetchContentIDsPage(ctx context.Context, requestID string, page int) (*ContentIDsPage, error) {
	if requestID == "" {
		return nil, domain.NewValidationError("request_id", "request ID is required")
	}
	if page < 1 {
		return nil, domain.NewValidationError("page", "page must be >= 1")
	}

	query := url.Values{
		"request_id": {requestID},
		"page":       {strconv.Itoa(page)},
	}
	var result ContentIDsPage
	if err := c.getJSON(ctx, EndpointContentIDs, pathContentIDs, query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchSubjectsPage retrieves one page of subject bodies from the legacy
// split endpoint.
func (c *Client) FetchSubjectsPage(ctx context.Context, requestID string, page int) (*SubjectsPage, error) {
	if requestID == "" {
		return nil, domain.NewValidationError("request_id", "request ID is required")
	}
	if page < 1 {
		return nil, domain.NewValidationError("page", "page must be >= 1")
	}

	query := url.Values{
		"request_id": {requestID},
		"page":       {strconv.Itoa(page)},
	}
	var result SubjectsPage
	if err := c.getJSON(ctx, EndpointSubjects, pathSubjects, query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	return c.execute(req, endpoint, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", endpoint, err)
	}

	return c.execute(req, endpoint, out)
}

func (c *Client) execute(req *http.Request, endpoint string, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordClassifierRequestFailed(endpoint, "transport")
		}
		return fmt.Errorf("executing %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp, endpoint); err != nil {
		if c.metrics != nil {
			c.metrics.RecordClassifierRequestFailed(endpoint, fmt.Sprintf("status_%d", resp.StatusCode))
		}
		return err
	}

	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
			if c.metrics != nil {
				c.metrics.RecordClassifierRequestFailed(endpoint, "decode")
			}
			return fmt.Errorf("decoding %s response: %w", endpoint, err)
		}
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	}

	if c.metrics != nil {
		c.metrics.RecordClassifierRequest(endpoint, time.Since(start).Seconds())
	}
	return nil
}

func (c *Client) handleErrorResponse(resp *http.Response, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(endpoint, resp.StatusCode, "failed to read error response", err)
	}

	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			message = errResp.Error
		} else if errResp.Message != "" {
			message = errResp.Message
		}
	}

	cause := error(nil)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		cause = domain.ErrRateLimited
	case resp.StatusCode >= 500:
		cause = domain.ErrServiceUnavailable
	}

	return domain.NewExternalAPIError(endpoint, resp.StatusCode, message, cause)
}
