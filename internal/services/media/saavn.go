package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/utils"
)

// maxSaavnBody caps the upstream response size.
const maxSaavnBody = 8 << 20

// SaavnOptions configures the Saavn client.
type SaavnOptions struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// SaavnClient searches songs on a JioSaavn API mirror and returns the raw JSON body.
type SaavnClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *utils.Logger
}

// NewSaavnClient creates a new Saavn client.
func NewSaavnClient(opts SaavnOptions, logger *utils.Logger) *SaavnClient {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext
	transport.ResponseHeaderTimeout = opts.ReadTimeout

	return &SaavnClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.ConnectTimeout + opts.ReadTimeout,
		},
		logger: logger.Named("saavn"),
	}
}

// Search performs GET {base}/api/search/songs?query=<q>.
func (c *SaavnClient) Search(ctx context.Context, query string) ([]byte, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewMissingInputError("query")
	}

	endpoint := c.baseURL + "/api/search/songs?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, models.NewInternalError(err, "failed to build Saavn request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Saavn request failed", "query", query, "error", err)
		return nil, models.NewBackendError(fmt.Errorf("saavn request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, models.NewBackendError(fmt.Errorf("saavn api error: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSaavnBody))
	if err != nil {
		return nil, models.NewBackendError(fmt.Errorf("saavn read: %w", err))
	}
	if len(body) == 0 {
		return nil, models.NewBackendError(errors.New("empty response from saavn"))
	}
	return body, nil
}
