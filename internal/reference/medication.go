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
	medicationService  = "medication-labeling"
	medicationTimeout  = 15 * time.Second
	medicationCacheTTL = 12 * time.Hour
)

// MedicationClientConfig holds configuration for the drug-label client.
type MedicationClientConfig struct {
	BaseURL    string
	APIKey     string
	Limits     QuotaLimits
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultMedicationClientConfig returns defaults for the public drug-label
// search API. The API key, when set, unlocks the enhanced quota tier.
func DefaultMedicationClientConfig(apiKey string) MedicationClientConfig {
	return MedicationClientConfig{
		BaseURL:    "https://api.fda.gov/drug/label.json",
		APIKey:     apiKey,
		Limits:     LimitsForTier(apiKey),
		Timeout:    medicationTimeout,
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
	}
}

// MedicationClient searches a remote drug-labeling service and extracts
// contraindication, warning, and precaution statements. Responses are cached
// for 12h. There is no static fallback; failures propagate.
type MedicationClient struct {
	config MedicationClientConfig
	http   *http.Client
	cache  *Cache[[]MedicationLabel]
	usage  *UsageTracker
	exec   *resilience.Executor
	logger *zap.Logger
	tracer trace.Tracer
}

// NewMedicationClient creates a medication label client.
func NewMedicationClient(cfg MedicationClientConfig, exec *resilience.Executor, logger *zap.Logger) *MedicationClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = medicationTimeout
	}
	if exec == nil {
		exec = resilience.NewExecutor(logger)
	}
	return &MedicationClient{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache:  NewCache[[]MedicationLabel](medicationCacheTTL),
		usage:  NewUsageTracker(medicationService, cfg.Limits),
		exec:   exec,
		logger: logger,
		tracer: otel.Tracer(medicationService),
	}
}

// Usage returns the quota tracker for observability.
func (c *MedicationClient) Usage() *UsageTracker { return c.usage }

// Search queries the labeling service for drug labels matching term.
func (c *MedicationClient) Search(ctx context.Context, term string, maxResults int) ([]MedicationLabel, error) {
	ctx, span := c.tracer.Start(ctx, "medication_search",
		trace.WithAttributes(attribute.String("term", term)))
	defer span.End()

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("medication search: %w: empty term", ErrInvalidInput)
	}
	maxResults = clampResults(maxResults)

	if cached, ok := c.cache.Get(term); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return limitLabels(cached, maxResults), nil
	}

	if rlErr, ok := c.usage.Check(); !ok {
		return nil, rlErr
	}

	// No static fallback for drug labels; an unavailable service must not
	// invent contraindication data.
	outcome, err := c.exec.Execute(ctx, medicationService, "search",
		func(ctx context.Context) (interface{}, error) {
			var labels []MedicationLabel
			err := resilience.Retry(ctx, c.logger, "medication_search", c.config.MaxRetries, c.config.BaseDelay,
				func(ctx context.Context) error {
					var callErr error
					labels, callErr = c.fetch(ctx, term, maxResults)
					return callErr
				})
			return labels, err
		}, nil)
	if err != nil {
		return nil, err
	}

	labels, _ := outcome.Value.([]MedicationLabel)
	c.cache.Set(term, labels)
	return limitLabels(labels, maxResults), nil
}

// fetch performs one remote search call and records it in the usage log.
func (c *MedicationClient) fetch(ctx context.Context, term string, maxResults int) ([]MedicationLabel, error) {
	quoted := `"` + term + `"`
	q := url.Values{}
	q.Set("search", fmt.Sprintf("openfda.brand_name:%s openfda.generic_name:%s", quoted, quoted))
	q.Set("limit", fmt.Sprintf("%d", maxResults))
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		c.usage.Record(false)
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.usage.Record(false)
		if ctx.Err() != nil || isTimeout(err) {
			return nil, &TimeoutError{Service: medicationService, Limit: c.config.Timeout}
		}
		return nil, &RemoteError{Service: medicationService, Message: err.Error()}
	}
	defer resp.Body.Close()

	// The labeling service answers 404 for zero matches; that is an empty
	// result, not a failure.
	if resp.StatusCode == http.StatusNotFound {
		c.usage.Record(true)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.usage.Record(false)
		return nil, &RemoteError{Service: medicationService, StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.usage.Record(false)
		return nil, &RemoteError{Service: medicationService, Message: "read body: " + err.Error()}
	}

	labels, err := parseLabelPayload(body)
	if err != nil {
		c.usage.Record(false)
		return nil, err
	}

	c.usage.Record(true)
	return labels, nil
}

// labelPayload mirrors the subset of the drug-label response the engine uses.
type labelPayload struct {
	Results []struct {
		OpenFDA struct {
			BrandName     []string `json:"brand_name"`
			GenericName   []string `json:"generic_name"`
			SubstanceName []string `json:"substance_name"`
		} `json:"openfda"`
		Contraindications []string `json:"contraindications"`
		Warnings          []string `json:"warnings"`
		Precautions       []string `json:"precautions"`
	} `json:"results"`
}

// parseLabelPayload validates and converts a raw label payload into typed
// results, extracting one statement per labeled text block.
func parseLabelPayload(body []byte) ([]MedicationLabel, error) {
	var payload labelPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &RemoteError{Service: medicationService, Message: "malformed payload: " + err.Error()}
	}

	labels := make([]MedicationLabel, 0, len(payload.Results))
	for _, r := range payload.Results {
		label := MedicationLabel{
			BrandName:         first(r.OpenFDA.BrandName),
			GenericName:       first(r.OpenFDA.GenericName),
			ActiveIngredients: r.OpenFDA.SubstanceName,
		}
		label.Contraindications = append(label.Contraindications,
			statementsFrom(r.Contraindications, claim.SeverityContraindicated)...)
		label.Contraindications = append(label.Contraindications,
			statementsFrom(r.Warnings, claim.SeverityWarning)...)
		label.Contraindications = append(label.Contraindications,
			statementsFrom(r.Precautions, claim.SeverityPrecaution)...)

		if label.BrandName == "" && label.GenericName == "" {
			continue
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// statementsFrom converts raw label text blocks into typed statements.
func statementsFrom(blocks []string, severity claim.Severity) []claim.ContraindicationStatement {
	var out []claim.ContraindicationStatement
	for _, b := range blocks {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		out = append(out, claim.ContraindicationStatement{
			ConditionText: b,
			Severity:      severity,
			Description:   b,
		})
	}
	return out
}

func first(ss []string) string {
	if len(ss) > 0 {
		return ss[0]
	}
	return ""
}

func limitLabels(labels []MedicationLabel, n int) []MedicationLabel {
	if len(labels) > n {
		return labels[:n]
	}
	return labels
}
