// Package openfda queries the openFDA drug label API for interaction
// evidence between drug pairs.
package openfda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/arogya-labs/rxguard/internal/model"
	"github.com/arogya-labs/rxguard/internal/resilience"
)

const (
	defaultBaseURL = "https://api.fda.gov"

	// openFDA allows 240 requests per minute without an API key.
	defaultRequestsPerMinute = 240
)

// Client looks up drug interaction evidence from openFDA.
type Client interface {
	Name() string
	Lookup(ctx context.Context, pair model.Pair) (*model.InteractionRecord, error)
}

// labelResponse is the subset of the drug label search response we read.
type labelResponse struct {
	Results []labelResult `json:"results"`
}

type labelResult struct {
	DrugInteractions []string `json:"drug_interactions"`
	Warnings         []string `json:"warnings"`
	OpenFDA          struct {
		GenericName []string `json:"generic_name"`
		BrandName   []string `json:"brand_name"`
	} `json:"openfda"`
}

// apiError is the envelope openFDA returns on non-2xx responses.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithAPIKey attaches an openFDA API key, which raises the rate limit.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the client-side request budget per minute.
func WithRateLimit(requestsPerMinute int) Option {
	return func(c *httpClient) {
		if requestsPerMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
		}
	}
}

// WithRetryConfig overrides the retry policy for transient failures.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates an openFDA client with client-side rate limiting,
// retries on transient failures, and a circuit breaker.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(float64(defaultRequestsPerMinute)/60.0), 1),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip: resilience.IsTransient,
		}),
	}
	c.retry.OnRetry = resilience.RetryLogger("openfda", "label_search")
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Name() string { return "openfda" }

// Lookup searches drug A's label for an interaction section that names
// drug B, then the reverse. A label that never mentions the partner is
// a definitive miss, returned as (nil, nil).
func (c *httpClient) Lookup(ctx context.Context, pair model.Pair) (*model.InteractionRecord, error) {
	text, err := c.interactionText(ctx, pair.A, pair.B)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text, err = c.interactionText(ctx, pair.B, pair.A)
		if err != nil {
			return nil, err
		}
	}
	if text == "" {
		return nil, nil
	}

	severity := inferSeverity(text)
	return &model.InteractionRecord{
		Pair:        pair,
		Severity:    severity,
		Title:       fmt.Sprintf("%s and %s (FDA label)", pair.A, pair.B),
		Description: excerpt(text, pair.B),
		Source:      c.Name(),
	}, nil
}

// interactionText fetches the label of subject and returns the
// drug_interactions text when it mentions partner, or "" otherwise.
func (c *httpClient) interactionText(ctx context.Context, subject, partner string) (string, error) {
	query := url.Values{}
	query.Set("search", fmt.Sprintf(`openfda.generic_name:%q AND drug_interactions:%q`, subject, partner))
	query.Set("limit", "1")
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}
	endpoint := c.baseURL + "/drug/label.json?" + query.Encode()

	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
			return c.fetchInteractionText(ctx, endpoint, partner)
		})
	})
}

func (c *httpClient) fetchInteractionText(ctx context.Context, endpoint, partner string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "openfda: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", eris.Wrap(err, "openfda: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "openfda: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "openfda: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		// openFDA signals "no matching labels" with a 404 envelope.
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code == "NOT_FOUND" {
			return "", nil
		}
		return "", eris.Errorf("openfda: unexpected status 404: %s", string(body))
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return "", resilience.NewTransientError(
			eris.Errorf("openfda: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	default:
		return "", eris.Errorf("openfda: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result labelResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", eris.Wrap(err, "openfda: unmarshal response")
	}
	if len(result.Results) == 0 {
		return "", nil
	}

	text := strings.Join(result.Results[0].DrugInteractions, " ")
	if !strings.Contains(strings.ToLower(text), strings.ToLower(partner)) {
		return "", nil
	}
	return text, nil
}

// inferSeverity classifies label prose by its strongest keyword. Label
// text has no structured severity, so this is a conservative mapping
// that errs toward the higher band.
func inferSeverity(text string) model.Severity {
	lower := strings.ToLower(text)
	for _, kw := range []string{"contraindicated", "should not be used", "avoid concomitant", "avoid coadministration", "life-threatening", "fatal"} {
		if strings.Contains(lower, kw) {
			return model.SeverityCritical
		}
	}
	for _, kw := range []string{"monitor", "caution", "dose adjustment", "reduce the dose", "increased risk", "may increase", "may decrease"} {
		if strings.Contains(lower, kw) {
			return model.SeverityModerate
		}
	}
	return model.SeverityMinor
}

// excerpt returns the sentence of text that names the partner drug,
// capped to keep stored descriptions readable.
func excerpt(text, partner string) string {
	const maxLen = 400
	lowerPartner := strings.ToLower(partner)
	for _, sentence := range strings.Split(text, ". ") {
		if strings.Contains(strings.ToLower(sentence), lowerPartner) {
			sentence = strings.TrimSpace(sentence)
			if len(sentence) > maxLen {
				return sentence[:maxLen]
			}
			return sentence
		}
	}
	if len(text) > maxLen {
		return text[:maxLen]
	}
	return text
}
