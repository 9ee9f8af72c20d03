package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medtriage/claimcheck/internal/domain/claim"
	"github.com/medtriage/claimcheck/pkg/resilience"
)

const (
	diagnosisService  = "diagnosis-reference"
	diagnosisTimeout  = 10 * time.Second
	diagnosisCacheTTL = 24 * time.Hour
)

// DiagnosisClientConfig holds configuration for the diagnosis lookup client.
type DiagnosisClientConfig struct {
	BaseURL    string
	Limits     QuotaLimits
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultDiagnosisClientConfig returns defaults for the public ICD-10-CM
// terminology search service.
func DefaultDiagnosisClientConfig() DiagnosisClientConfig {
	return DiagnosisClientConfig{
		BaseURL:    "https://clinicaltables.nlm.nih.gov/api/icd10cm/v3/search",
		Limits:     StandardLimits(),
		Timeout:    diagnosisTimeout,
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
	}
}

// DiagnosisClient looks up and validates ICD-10 diagnosis codes against a
// remote terminology service, with a 24h response cache, quota tracking, and
// a small embedded fallback table for common codes.
type DiagnosisClient struct {
	config DiagnosisClientConfig
	http   *http.Client
	cache  *Cache[[]claim.DiagnosisCode]
	usage  *UsageTracker
	exec   *resilience.Executor
	logger *zap.Logger
	tracer trace.Tracer
}

// NewDiagnosisClient creates a diagnosis lookup client.
func NewDiagnosisClient(cfg DiagnosisClientConfig, exec *resilience.Executor, logger *zap.Logger) *DiagnosisClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = diagnosisTimeout
	}
	if exec == nil {
		exec = resilience.NewExecutor(logger)
	}
	return &DiagnosisClient{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache:  NewCache[[]claim.DiagnosisCode](diagnosisCacheTTL),
		usage:  NewUsageTracker(diagnosisService, cfg.Limits),
		exec:   exec,
		logger: logger,
		tracer: otel.Tracer(diagnosisService),
	}
}

// Usage returns the quota tracker for observability.
func (c *DiagnosisClient) Usage() *UsageTracker { return c.usage }

// Search queries the terminology service for diagnosis codes matching term.
// Results are cached for 24h; on remote failure a small embedded table of
// common codes serves as fallback, and the fallback result is cached too.
func (c *DiagnosisClient) Search(ctx context.Context, term string, maxResults int) ([]claim.DiagnosisCode, error) {
	ctx, span := c.tracer.Start(ctx, "diagnosis_search",
		trace.WithAttributes(attribute.String("term", term)))
	defer span.End()

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("diagnosis search: %w: empty term", ErrInvalidInput)
	}
	maxResults = clampResults(maxResults)

	if cached, ok := c.cache.Get(term); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return limitCodes(cached, maxResults), nil
	}

	if rlErr, ok := c.usage.Check(); !ok {
		return nil, rlErr
	}

	outcome, err := c.exec.Execute(ctx, diagnosisService, "search",
		func(ctx context.Context) (interface{}, error) {
			var codes []claim.DiagnosisCode
			err := resilience.Retry(ctx, c.logger, "diagnosis_search", c.config.MaxRetries, c.config.BaseDelay,
				func(ctx context.Context) error {
					var callErr error
					codes, callErr = c.fetch(ctx, term, maxResults)
					return callErr
				})
			return codes, err
		},
		&resilience.Fallback{
			Strategy: resilience.StrategyCache,
			Provide: func(cause error) (interface{}, error) {
				c.logger.Warn("diagnosis search degraded to embedded table",
					zap.String("term", term), zap.Error(cause))
				return staticDiagnosisSearch(term), nil
			},
		})
	if err != nil {
		return nil, err
	}

	codes, _ := outcome.Value.([]claim.DiagnosisCode)
	c.cache.Set(term, codes)
	if outcome.FromFallback {
		span.SetAttributes(attribute.Bool("from_fallback", true))
	}
	return limitCodes(codes, maxResults), nil
}

// Validate checks an ICD-10 code. Format-valid codes that fail remote
// validation are still accepted with degraded metadata so the pipeline is
// never blocked on service unavailability.
func (c *DiagnosisClient) Validate(ctx context.Context, code string) (ValidationResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ValidationResult{}, fmt.Errorf("diagnosis validate: %w: empty code", ErrInvalidInput)
	}

	formatValid := IsICD10Format(code)
	category, specialty := CategorizeICD10(code)

	// Exact match against already-cached search results first.
	if cached, ok := c.cache.Get(code); ok {
		for _, d := range cached {
			if strings.EqualFold(d.Code, code) {
				return ValidationResult{
					Code: d.Code, IsValid: true,
					Description: d.Description, Category: d.Category, Specialty: d.Specialty,
				}, nil
			}
		}
	}

	codes, err := c.Search(ctx, code, 10)
	if err == nil {
		for _, d := range codes {
			if strings.EqualFold(d.Code, code) {
				return ValidationResult{
					Code: d.Code, IsValid: true,
					Description: d.Description, Category: d.Category, Specialty: d.Specialty,
				}, nil
			}
		}
	}

	if formatValid {
		// Deliberate precision/availability tradeoff: accept the code rather
		// than block the row on an unreachable terminology service.
		return ValidationResult{
			Code: code, IsValid: true, Degraded: true,
			Description: "Unvalidated code", Category: category, Specialty: specialty,
		}, nil
	}

	return ValidationResult{Code: code, IsValid: false}, nil
}

// fetch performs one remote search call and records it in the usage log.
func (c *DiagnosisClient) fetch(ctx context.Context, term string, maxResults int) ([]claim.DiagnosisCode, error) {
	q := url.Values{}
	q.Set("sf", "code,name")
	q.Set("terms", term)
	q.Set("maxList", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		c.usage.Record(false)
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.usage.Record(false)
		if ctx.Err() != nil || isTimeout(err) {
			return nil, &TimeoutError{Service: diagnosisService, Limit: c.config.Timeout}
		}
		return nil, &RemoteError{Service: diagnosisService, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.usage.Record(false)
		return nil, &RemoteError{Service: diagnosisService, StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.usage.Record(false)
		return nil, &RemoteError{Service: diagnosisService, Message: "read body: " + err.Error()}
	}

	codes, err := parseDiagnosisPayload(body)
	if err != nil {
		c.usage.Record(false)
		return nil, err
	}

	c.usage.Record(true)
	return codes, nil
}

// parseDiagnosisPayload defensively parses the terminology service's
// positional-array payload: [total, [codes...], extra, [[code, name]...]].
func parseDiagnosisPayload(body []byte) ([]claim.DiagnosisCode, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &RemoteError{Service: diagnosisService, Message: "malformed payload: " + err.Error()}
	}
	if len(raw) < 4 {
		return nil, &RemoteError{Service: diagnosisService, Message: "malformed payload: missing display field"}
	}

	var pairs [][]string
	if err := json.Unmarshal(raw[3], &pairs); err != nil {
		return nil, &RemoteError{Service: diagnosisService, Message: "malformed payload: " + err.Error()}
	}

	codes := make([]claim.DiagnosisCode, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 || p[0] == "" {
			continue
		}
		category, specialty := CategorizeICD10(p[0])
		codes = append(codes, claim.DiagnosisCode{
			Code:        strings.ToUpper(p[0]),
			Description: p[1],
			Category:    category,
			Specialty:   specialty,
		})
	}
	return codes, nil
}

func limitCodes(codes []claim.DiagnosisCode, n int) []claim.DiagnosisCode {
	if len(codes) > n {
		return codes[:n]
	}
	return codes
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	if ok {
		return t.Timeout()
	}
	return false
}
