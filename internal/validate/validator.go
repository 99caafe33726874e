package validate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/krzemienski/awesome-researcher/internal/budget"
	"github.com/krzemienski/awesome-researcher/internal/llm"
	"github.com/krzemienski/awesome-researcher/internal/model"
	"github.com/krzemienski/awesome-researcher/internal/util"
	"github.com/krzemienski/awesome-researcher/internal/worker"
)

const validateMaxRetries = 3

// validateSleepFunc is the sleep function used between retries (injectable for tests)
var validateSleepFunc = time.Sleep

// StarCounter reports GitHub stargazer counts
type StarCounter interface {
	Stars(ctx context.Context, rawURL string) (int, error)
}

// Validator checks discovered resources: the URL must be HTTPS and reachable,
// robots.txt must permit fetching, repositories must clear the star minimum,
// and descriptions are trimmed to the length limit.
type Validator struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	classifier *SourceClassifier

	stars    StarCounter // nil disables the star check
	minStars int

	trimmer    llm.Provider // nil disables LLM trimming, falling back to truncation
	trimModel  string
	costs      *budget.CostTracker
	maxDescLen int

	allowInsecure bool
	verbose       bool
}

// Options configures a Validator
type Options struct {
	Timeout    time.Duration
	MaxWorkers int
	UserAgent  string
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	Stars    StarCounter
	MinStars int

	Trimmer    llm.Provider
	TrimModel  string
	Costs      *budget.CostTracker
	MaxDescLen int

	RequestsPerSecond float64
	RespectRobots     bool

	// AllowInsecure accepts plain HTTP URLs
	AllowInsecure bool
	Verbose       bool
}

// NewValidator creates a validator
func NewValidator(opts Options) *Validator {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxDescLen <= 0 {
		opts.MaxDescLen = 100
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}

	proxyFunc := util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy)

	var robots *util.RobotsChecker
	if opts.RespectRobots {
		robots = util.NewRobotsChecker(opts.UserAgent, opts.Timeout)
	}

	return &Validator{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: proxyFunc,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		maxWorkers: opts.MaxWorkers,
		userAgent:  opts.UserAgent,
		robots:     robots,
		limiter:    worker.NewLimiter(opts.RequestsPerSecond, 5),
		classifier: NewSourceClassifier(),
		stars:      opts.Stars,
		minStars:   opts.MinStars,
		trimmer:    opts.Trimmer,
		trimModel:  opts.TrimModel,
		costs:      opts.Costs,
		maxDescLen: opts.MaxDescLen,

		allowInsecure: opts.AllowInsecure,
		verbose:       opts.Verbose,
	}
}

type checkOutcome struct {
	resource model.Resource
	valid    bool
	lowStars bool
	trimmed  bool
}

// Validate checks resources concurrently and returns the survivors in input
// order together with pass statistics
func (v *Validator) Validate(ctx context.Context, resources []model.Resource) ([]model.Resource, model.ValidationStats, error) {
	stats := model.ValidationStats{Checked: len(resources)}
	if len(resources) == 0 {
		return []model.Resource{}, stats, nil
	}

	outcomes := make([]checkOutcome, len(resources))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, v.maxWorkers)

	for i, res := range resources {
		wg.Add(1)
		go func(idx int, r model.Resource) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				outcomes[idx] = checkOutcome{resource: r, valid: false}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			outcomes[idx] = v.checkSingle(ctx, r)
		}(i, res)
	}

	wg.Wait()

	var valid []model.Resource
	for _, out := range outcomes {
		switch {
		case out.valid:
			valid = append(valid, out.resource)
			stats.Valid++
			if out.trimmed {
				stats.Trimmed++
			}
		case out.lowStars:
			stats.LowStars++
		default:
			stats.Invalid++
		}
	}

	v.logf("validation complete: %d valid, %d invalid, %d low stars, %d descriptions trimmed",
		stats.Valid, stats.Invalid, stats.LowStars, stats.Trimmed)

	return valid, stats, nil
}

// checkSingle runs the full check sequence for one resource
func (v *Validator) checkSingle(ctx context.Context, r model.Resource) checkOutcome {
	parsed, err := url.Parse(r.URL)
	if err != nil || parsed.Host == "" {
		v.logf("malformed URL: %s", r.URL)
		return checkOutcome{resource: r}
	}
	if parsed.Scheme != "https" && !v.allowInsecure {
		v.logf("non-HTTPS URL rejected: %s", r.URL)
		return checkOutcome{resource: r}
	}

	if v.robots != nil && !v.robots.IsAllowed(ctx, r.URL) {
		v.logf("robots.txt disallows: %s", r.URL)
		return checkOutcome{resource: r}
	}

	if !v.checkReachableWithRetry(ctx, r.URL) {
		v.logf("unreachable: %s", r.URL)
		return checkOutcome{resource: r}
	}

	if v.stars != nil && v.minStars > 0 && v.classifier.IsRepository(r.URL) {
		if stars, err := v.stars.Stars(ctx, r.URL); err == nil && stars < v.minStars {
			v.logf("below star minimum (%d < %d): %s", stars, v.minStars, r.URL)
			return checkOutcome{resource: r, lowStars: true}
		}
	}

	trimmed := false
	if len([]rune(r.Description)) > v.maxDescLen {
		r.Description = v.trimDescription(ctx, r.Name, r.Description)
		trimmed = true
	}

	return checkOutcome{resource: r, valid: true, trimmed: trimmed}
}

// checkReachableWithRetry sends a HEAD request, retrying transient failures
// with exponential backoff
func (v *Validator) checkReachableWithRetry(ctx context.Context, rawURL string) bool {
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		if attempt > 0 {
			validateSleepFunc(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		status, err := v.headRequest(ctx, rawURL)
		if err != nil {
			if isRetryableNetworkError(err.Error()) {
				continue
			}
			return false
		}
		if status >= 200 && status < 400 {
			return true
		}
		if status == 429 || (status >= 500 && status < 600) {
			continue
		}
		return false
	}
	return false
}

func (v *Validator) headRequest(ctx context.Context, rawURL string) (int, error) {
	if err := v.limiter.Wait(ctx, rawURL); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, nil
}

// trimDescription shortens an overlong description, preferring an LLM
// rewrite and falling back to plain truncation
func (v *Validator) trimDescription(ctx context.Context, name, description string) string {
	if v.trimmer == nil {
		return truncateRunes(description, v.maxDescLen)
	}

	estimated := budget.EstimateTokens(name+description) * 2
	if v.costs != nil && v.costs.WouldExceed(v.trimModel, estimated) {
		v.logf("cost ceiling reached, truncating description for %q", name)
		return truncateRunes(description, v.maxDescLen)
	}

	system := fmt.Sprintf(
		"You are a description editor specialized in creating concise resource descriptions "+
			"for awesome lists. Your task is to trim descriptions to a maximum of %d characters "+
			"while preserving the essential meaning and information.", v.maxDescLen)

	prompt := fmt.Sprintf(
		"Resource title: %s\n\nOriginal description: %s\n\n"+
			"Please create a shorter version of this description that is no more than %d characters "+
			"in length, while preserving the key information. Return only the trimmed description, "+
			"without any explanations or additional text.",
		name, description, v.maxDescLen)

	resp, err := v.trimmer.Complete(ctx, llm.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Model:       v.trimModel,
		MaxTokens:   100,
		Temperature: 0.3,
	})
	if err != nil {
		v.logf("description trim failed for %q: %v, truncating", name, err)
		return truncateRunes(description, v.maxDescLen)
	}

	if v.costs != nil {
		v.costs.AddUsage(resp.Model, resp.PromptTokens, resp.CompletionTokens)
	}

	trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Text), `"`))
	if trimmed == "" {
		return truncateRunes(description, v.maxDescLen)
	}
	return truncateRunes(trimmed, v.maxDescLen)
}

// truncateRunes cuts a string to at most n runes
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

func (v *Validator) logf(format string, args ...interface{}) {
	if v.verbose {
		fmt.Fprintf(os.Stderr, "[validate] "+format+"\n", args...)
	}
}
