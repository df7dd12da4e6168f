package listingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"listing-composer/internal/logger"
	"listing-composer/internal/model"
	"listing-composer/internal/service"
)

const maxResponseBytes = 1 << 20

// Client talks to the listing service's create endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type createResponseBody struct {
	Success    *bool  `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	ID         string `json:"_id"`
}

// CreateListing posts req to /api/listing/create. Any response that is not a
// rejection or a created record is returned as an error.
func (c *Client) CreateListing(ctx context.Context, req model.ListingRequest) (service.CreateResponse, error) {
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		"component": "ListingApiClient",
		"method":    "CreateListing",
	})

	payload, err := json.Marshal(req)
	if err != nil {
		return service.CreateResponse{}, fmt.Errorf("encode listing: %w", err)
	}

	url := c.baseURL + "/api/listing/create"
	log.Debug("Sending request to listing service", logger.Fields{"url": url})

	resp, err := c.doRequest(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Error("Failed to perform request to listing service", err, nil)
		return service.CreateResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Error("Failed to read response from listing service", err, nil)
		return service.CreateResponse{}, fmt.Errorf("read response: %w", err)
	}

	if err := validateCreateResponse(body); err != nil {
		err = fmt.Errorf("listing service returned status %d: %w", resp.StatusCode, err)
		log.Error("Received malformed response from listing service", err, logger.Fields{"status_code": resp.StatusCode})
		return service.CreateResponse{}, err
	}

	var out createResponseBody
	if err := json.Unmarshal(body, &out); err != nil {
		return service.CreateResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if out.Success != nil && !*out.Success {
		log.Info("Listing service rejected listing", logger.Fields{"status_code": out.StatusCode, "message": out.Message})
		return service.CreateResponse{Rejected: true, Message: out.Message}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("listing service returned non-success status code %d", resp.StatusCode)
		log.Error("Received error response from listing service", err, logger.Fields{"status_code": resp.StatusCode})
		return service.CreateResponse{}, err
	}

	log.Info("Listing created", logger.Fields{"listing_id": out.ID})
	return service.CreateResponse{ListingID: out.ID}, nil
}

func (c *Client) doRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}
