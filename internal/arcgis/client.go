// Package arcgis is the source client for the city's ArcGIS-style feature
// service. It fetches the matching record set in two phases, identifiers
// first and then full attributes in fixed-size batches, and normalizes each
// batch as it lands so the full raw payload is never held at once.
package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"

	"github.com/401-Nick/lra-alerts/internal/config"
	"github.com/401-Nick/lra-alerts/internal/logger"
	"github.com/401-Nick/lra-alerts/internal/models"
	"github.com/401-Nick/lra-alerts/internal/normalize"
)

// ArcGIS responds 200 with an error envelope; these codes mean the token
// was rejected.
const (
	codeInvalidToken = 498
	codeTokenNeeded  = 499
)

// Client pages through the feature service. It is purely a data source:
// no side effects beyond network I/O.
type Client struct {
	http        *retryablehttp.Client
	baseURL     string
	where       string
	pageSize    int
	batchSize   int
	concurrency int
	auth        TokenProvider
	log         *logger.Logger
}

// NewClient builds a source client from configuration. Transient failures
// (network errors, 5xx) are retried with exponential backoff and jitter up
// to cfg.MaxRetries; authentication failures are excluded from that policy
// and handled by the forced-refresh path instead.
func NewClient(cfg config.SourceConfig, auth TokenProvider, log *logger.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 15 * time.Second
	rc.Backoff = jitteredBackoff
	rc.Logger = nil
	rc.HTTPClient.Timeout = 60 * time.Second

	return &Client{
		http:        rc,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		where:       cfg.Where,
		pageSize:    cfg.PageSize,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.FetchConcurrency,
		auth:        auth,
		log:         log.WithComponent("source"),
	}
}

// jitteredBackoff doubles the wait per attempt and adds up to 25% random
// jitter so synchronized retries do not stampede the service.
func jitteredBackoff(min, max time.Duration, attemptNum int, _ *http.Response) time.Duration {
	wait := min << uint(attemptNum)
	if wait > max || wait <= 0 {
		wait = max
	}
	return wait + time.Duration(rand.Int63n(int64(wait)/4+1))
}

// FetchListings returns the complete normalized listing set matching the
// configured predicate.
func (c *Client) FetchListings(ctx context.Context) ([]models.Listing, error) {
	ids, err := c.fetchObjectIDs(ctx)
	if err != nil {
		return nil, err
	}

	c.log.Info("Identifier phase complete", map[string]interface{}{
		"matching_records": len(ids),
	})

	if len(ids) == 0 {
		return []models.Listing{}, nil
	}

	batches := chunkIDs(ids, c.batchSize)
	results := make([][]models.Listing, len(batches))

	// Batch order is irrelevant, so attribute fetches run with bounded
	// concurrency; each batch normalizes immediately.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			features, err := c.fetchFeatures(gctx, batch)
			if err != nil {
				return err
			}
			listings := make([]models.Listing, 0, len(features))
			for _, f := range features {
				listings = append(listings, normalize.Record(f))
			}
			results[i] = listings
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.Listing
	for _, r := range results {
		all = append(all, r...)
	}

	c.log.Info("Attribute phase complete", map[string]interface{}{
		"listings": len(all),
		"batches":  len(batches),
	})

	return all, nil
}

// fetchObjectIDs pages through identifiers for every matching record.
// Paging continues while the service reports exceededTransferLimit or
// returns a full page; the server may truncate below the requested page
// size, so a full page alone is not the only continue signal.
func (c *Client) fetchObjectIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	offset := 0

	for {
		params := url.Values{}
		params.Set("where", c.where)
		params.Set("returnIdsOnly", "true")
		params.Set("resultOffset", strconv.Itoa(offset))
		params.Set("resultRecordCount", strconv.Itoa(c.pageSize))
		params.Set("f", "json")

		resp, err := c.query(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetching identifier page at offset %d: %w", offset, err)
		}

		ids = append(ids, resp.ObjectIDs...)
		got := len(resp.ObjectIDs)
		offset += got

		if got == 0 {
			break
		}
		if !resp.ExceededTransferLimit && got < c.pageSize {
			break
		}
	}

	return ids, nil
}

// fetchFeatures retrieves full attributes and geometry for one identifier
// batch.
func (c *Client) fetchFeatures(ctx context.Context, ids []int64) ([]models.RawRecord, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}

	params := url.Values{}
	params.Set("objectIds", strings.Join(strIDs, ","))
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("f", "json")

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching attribute batch of %d: %w", len(ids), err)
	}
	return resp.Features, nil
}

// queryResponse is the envelope the feature service wraps every answer in.
type queryResponse struct {
	ObjectIDs             []int64            `json:"objectIds"`
	Features              []models.RawRecord `json:"features"`
	ExceededTransferLimit bool               `json:"exceededTransferLimit"`
	Error                 *serviceError      `json:"error"`
}

type serviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *serviceError) authFailure() bool {
	return e.Code == codeInvalidToken || e.Code == codeTokenNeeded
}

// errMalformedBody marks a 200 response whose body could not be used: a
// decode failure or a non-auth error envelope. Retriable once, then
// surfaced as ErrSourceUnavailable.
var errMalformedBody = errors.New("malformed service response")

// query issues one request against the layer's query endpoint. Transport
// retries are handled inside the retryablehttp client; this layer adds two
// non-transport recoveries, each attempted at most once:
//
//   - authentication rejection: force a token refresh and retry, then
//     surface ErrAuthFailed
//   - malformed response body: retry once, then surface
//     ErrSourceUnavailable
func (c *Client) query(ctx context.Context, params url.Values) (*queryResponse, error) {
	authRetried := false
	bodyRetried := false

	for {
		resp, err := c.doQuery(ctx, params)
		if err == nil && resp.Error != nil {
			if resp.Error.authFailure() {
				err = fmt.Errorf("%w: service rejected token (code %d: %s)",
					ErrAuthFailed, resp.Error.Code, resp.Error.Message)
			} else {
				err = fmt.Errorf("%w: service error (code %d): %s",
					errMalformedBody, resp.Error.Code, resp.Error.Message)
			}
		}
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, ErrAuthFailed) {
			if authRetried {
				return nil, err
			}
			authRetried = true
			c.auth.Invalidate()
			c.log.Warn("Authentication rejected, forcing token refresh", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		if errors.Is(err, errMalformedBody) {
			if bodyRetried {
				return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
			}
			bodyRetried = true
			c.log.Warn("Retrying after malformed service response", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		return nil, err
	}
}

// doQuery performs a single (transport-retried) HTTP round trip and
// decodes the envelope.
func (c *Client) doQuery(ctx context.Context, params url.Values) (*queryResponse, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	reqParams := url.Values{}
	for k, vs := range params {
		reqParams[k] = vs
	}
	if token != "" {
		reqParams.Set("token", token)
	}

	endpoint := c.baseURL + "/query?" + reqParams.Encode()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building query request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: service returned HTTP %d", ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: service returned HTTP %d", ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrSourceUnavailable, err)
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("%w: decoding response body: %v", errMalformedBody, err)
	}

	return &qr, nil
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []int64, size int) [][]int64 {
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
