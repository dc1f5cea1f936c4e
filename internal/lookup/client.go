// Package lookup resolves a city code into its hotel codes and coordinates
// by calling the remote hotel search API.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
	"github.com/JakeFAU/hotel-harvester/internal/metrics"
	"github.com/JakeFAU/hotel-harvester/internal/retry"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 32 << 20
	statusOK       = 200
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the remote endpoint.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	Detailed bool
	// SummaryDestination receives a CitySummary for every city with hotels.
	SummaryDestination string
}

// Client performs city lookups through a Retrier.
type Client struct {
	cfg     Config
	doer    Doer
	retrier *retry.Retrier
	sink    harvest.Sink
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New builds a Client. When doer is nil an *http.Client with the configured
// timeout and an instrumented transport is used.
func New(cfg Config, doer Doer, retrier *retry.Retrier, sink harvest.Sink, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("lookup url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if doer == nil {
		doer = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if retrier == nil {
		retrier = retry.New(retry.Config{}, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		doer:    doer,
		retrier: retrier,
		sink:    sink,
		tracer:  otel.Tracer("github.com/JakeFAU/hotel-harvester/internal/lookup"),
		logger:  logger,
	}, nil
}

// Lookup fetches the hotels of one city. On any failure it returns an empty
// result together with an error wrapping harvest.ErrTransport or
// harvest.ErrApplication; both are recoverable for the caller.
func (c *Client) Lookup(ctx context.Context, item harvest.WorkItem) (harvest.LookupResult, error) {
	ctx, span := c.tracer.Start(ctx, "lookup.city", trace.WithAttributes(attribute.String("city_code", string(item))))
	defer span.End()

	start := time.Now()
	res, err := c.lookup(ctx, item)
	metrics.ObserveLookupDuration(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, harvest.Kind(err))
		metrics.ObserveLookupFailure(harvest.Kind(err))
		return harvest.EmptyResult(item), err
	}
	span.SetAttributes(attribute.Int("hotel_count", len(res.HotelCodes)))
	return res, nil
}

func (c *Client) lookup(ctx context.Context, item harvest.WorkItem) (harvest.LookupResult, error) {
	payload, err := json.Marshal(searchRequest{CityCode: string(item), IsDetailedResponse: c.cfg.Detailed})
	if err != nil {
		return harvest.LookupResult{}, fmt.Errorf("marshal request: %w: %w", harvest.ErrApplication, err)
	}

	var (
		status int
		body   []byte
	)
	attempts, err := c.retrier.Do(ctx, func(ctx context.Context) error {
		var doErr error
		status, body, doErr = c.post(ctx, payload)
		return doErr
	}, zap.String("city_code", string(item)))
	if err != nil {
		return harvest.LookupResult{}, fmt.Errorf("lookup %s after %d attempt(s): %w", item, attempts, err)
	}

	if status != http.StatusOK {
		return harvest.LookupResult{}, fmt.Errorf("lookup %s: http status %d: %w", item, status, harvest.ErrApplication)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return harvest.LookupResult{}, fmt.Errorf("lookup %s: empty response body: %w", item, harvest.ErrApplication)
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return harvest.LookupResult{}, fmt.Errorf("lookup %s: decode response: %w: %w", item, harvest.ErrApplication, err)
	}
	if resp.Status.Code != statusOK {
		return harvest.LookupResult{}, fmt.Errorf("lookup %s: api status %d %q: %w",
			item, resp.Status.Code, resp.Status.Description, harvest.ErrApplication)
	}

	res := c.normalize(item, resp)
	if len(resp.Hotels) == 0 {
		c.logger.Info("no hotels found", zap.String("city_code", string(item)))
		return res, nil
	}
	c.writeSummary(ctx, item, resp.Hotels[0].CityName, res.HotelCodes)
	return res, nil
}

// post issues one request. Only failures to complete the exchange are
// reported as errors; the status code is returned for the caller to judge.
func (c *Client) post(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w: %w", harvest.ErrApplication, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" || c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("post: %w: %w", harvest.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w: %w", harvest.ErrTransport, err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) normalize(item harvest.WorkItem, resp searchResponse) harvest.LookupResult {
	res := harvest.EmptyResult(item)
	for _, h := range resp.Hotels {
		res.HotelCodes = append(res.HotelCodes, string(h.HotelCode))
	}
	if len(resp.Hotels) == 0 {
		return res
	}
	first := resp.Hotels[0]
	if lat, ok, err := coordinate(first.Latitude); ok {
		res.Latitude = lat
	} else if err != nil {
		c.logger.Debug("ignoring latitude", zap.String("city_code", string(item)), zap.Error(err))
	}
	if lon, ok, err := coordinate(first.Longitude); ok {
		res.Longitude = lon
	} else if err != nil {
		c.logger.Debug("ignoring longitude", zap.String("city_code", string(item)), zap.Error(err))
	}
	return res
}

func (c *Client) writeSummary(ctx context.Context, item harvest.WorkItem, cityName string, codes []string) {
	if c.sink == nil || c.cfg.SummaryDestination == "" {
		return
	}
	summary := harvest.CitySummary{
		CityCode:   string(item),
		CityName:   cityName,
		HotelCodes: append([]string(nil), codes...),
	}
	if err := c.sink.Append(ctx, c.cfg.SummaryDestination, summary); err != nil {
		c.logger.Warn("summary append failed",
			zap.String("city_code", string(item)),
			zap.String("kind", harvest.Kind(err)),
			zap.Error(err),
		)
	}
}
