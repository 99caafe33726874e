package research

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/krzemienski/awesome-researcher/internal/budget"
	"github.com/krzemienski/awesome-researcher/internal/llm"
	"github.com/krzemienski/awesome-researcher/internal/model"
	"github.com/krzemienski/awesome-researcher/internal/worker"
)

var (
	markdownLinkPattern = regexp.MustCompile(`(?m)^\s*(?:\d+\.|[*+-])?\s*\[([^\]]+)\]\(([^)]+)\)(?:\s*[-–:]\s*(.+?))?\s*$`)
	labeledFieldPattern = regexp.MustCompile(`(?i)^\s*(?:\d+\.|[*+-])?\s*(title|name|url|description)\s*:\s*(.*)$`)
	fencedJSONPattern   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// Researcher discovers candidate resources for each search term in a
// research plan by querying an LLM
type Researcher struct {
	provider   llm.Provider
	costs      *budget.CostTracker
	clock      *budget.WallClock
	model      string
	listTitle  string
	workers    int
	maxRetries int
	verbose    bool

	// sleepFunc is replaceable in tests to avoid real backoff delays
	sleepFunc func(time.Duration)
}

// ResearcherOptions configures a Researcher
type ResearcherOptions struct {
	Model      string
	ListTitle  string
	Workers    int
	MaxRetries int
	Verbose    bool
}

// NewResearcher creates a researcher executing plan terms concurrently
func NewResearcher(provider llm.Provider, costs *budget.CostTracker, clock *budget.WallClock, opts ResearcherOptions) *Researcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	return &Researcher{
		provider:   provider,
		costs:      costs,
		clock:      clock,
		model:      opts.Model,
		listTitle:  opts.ListTitle,
		workers:    opts.Workers,
		maxRetries: opts.MaxRetries,
		verbose:    opts.Verbose,
		sleepFunc:  time.Sleep,
	}
}

type termJob struct {
	researcher *Researcher
	category   string
	term       string
	examples   string
}

type termResult struct {
	category  string
	term      string
	resources []model.Resource
	err       error
}

func (r *termResult) GetError() error { return r.err }

func (j *termJob) Execute(ctx context.Context) worker.Result {
	resources, err := j.researcher.researchTerm(ctx, j.category, j.term, j.examples)
	return &termResult{category: j.category, term: j.term, resources: resources, err: err}
}

// Execute runs every term in the plan with bounded concurrency and returns
// all discovered candidates with their category set. Known URLs from the
// plan's exclude list are dropped. Terms past the wall-time or cost limit
// are skipped, not failed.
func (r *Researcher) Execute(ctx context.Context, list *model.AwesomeList, plan *Plan) ([]model.Resource, error) {
	if plan == nil || len(plan.Categories) == 0 {
		return nil, fmt.Errorf("empty research plan")
	}

	exclude := make(map[string]bool, len(plan.ExcludeURLs))
	for _, u := range plan.ExcludeURLs {
		exclude[strings.TrimRight(strings.ToLower(u), "/")] = true
	}

	var jobs []worker.Job
	for _, cp := range plan.Categories {
		examples := r.categoryExamples(list, cp.Category)
		for _, term := range cp.SearchTerms {
			if r.clock != nil && r.clock.Expired() {
				r.logf("wall time limit reached, skipping remaining terms")
				break
			}
			if r.costs != nil && r.costs.WouldExceed(r.model, 2000) {
				r.logf("cost ceiling reached, skipping remaining terms")
				break
			}

			contextualized := term
			if r.listTitle != "" && !strings.Contains(strings.ToLower(term), strings.ToLower(r.listTitle)) {
				contextualized = term + " " + r.listTitle
			}

			jobs = append(jobs, &termJob{
				researcher: r,
				category:   cp.Category,
				term:       contextualized,
				examples:   examples,
			})
		}
	}

	results := worker.RunJobs(ctx, r.workers, jobs)

	var candidates []model.Resource
	failed := 0
	for _, res := range results {
		tr := res.(*termResult)
		if tr.err != nil {
			failed++
			r.logf("term %q failed: %v", tr.term, tr.err)
			continue
		}
		for _, resource := range tr.resources {
			if resource.URL == "" || resource.Name == "" {
				continue
			}
			if exclude[strings.TrimRight(strings.ToLower(resource.URL), "/")] {
				continue
			}
			resource.Category = tr.category
			candidates = append(candidates, resource)
		}
	}

	r.logf("research complete: %d candidates from %d terms (%d failed)", len(candidates), len(jobs), failed)
	return candidates, nil
}

// researchTerm queries the LLM for one term with exponential backoff.
// All attempts failing returns the last error.
func (r *Researcher) researchTerm(ctx context.Context, category, term, examples string) ([]model.Resource, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if attempt > 0 {
			r.sleepFunc(time.Duration(1<<attempt) * time.Second)
		}

		if r.costs != nil && r.costs.WouldExceed(r.model, 2000) {
			return nil, nil
		}

		resources, err := r.queryTerm(ctx, category, term, examples)
		if err == nil {
			return resources, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("research term %q: %w", term, lastErr)
}

func (r *Researcher) queryTerm(ctx context.Context, category, term, examples string) ([]model.Resource, error) {
	topic := r.listTitle
	if topic == "" {
		topic = "programming and technology"
	}

	var sys strings.Builder
	fmt.Fprintf(&sys, "You are a research assistant specializing in finding high-quality resources related to %s ", category)
	fmt.Fprintf(&sys, "in the context of %s. ", topic)
	sys.WriteString("Your task is to discover new, valuable resources (libraries, tools, frameworks, articles, etc.) ")
	sys.WriteString("that would make excellent additions to an Awesome List.\n\n")
	sys.WriteString("Requirements for discovered resources:\n")
	fmt.Fprintf(&sys, "1. Must be high-quality, well-maintained, and relevant to %s within the domain of %s\n", category, topic)
	sys.WriteString("2. Should have an informative title and URL\n")
	sys.WriteString("3. Must include a concise description (max 100 characters)\n\n")
	sys.WriteString("Return the results as a JSON array of objects with \"name\", \"url\" and \"description\" fields.")

	var usr strings.Builder
	fmt.Fprintf(&usr, "Research the term '%s' in the context of '%s'. ", term, category)
	usr.WriteString("Find high-quality resources, tools, libraries, frameworks, articles, or projects that are ")
	usr.WriteString("relevant to this topic and would be valuable additions to an awesome list.")
	if examples != "" {
		usr.WriteString("\n\n" + examples)
	}
	usr.WriteString("\n\nReturn a JSON array where each element has the fields name, url and description (maximum 100 characters).")

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		System:      sys.String(),
		Prompt:      usr.String(),
		Model:       r.model,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	if r.costs != nil {
		cost := r.costs.AddUsage(resp.Model, resp.PromptTokens, resp.CompletionTokens)
		r.logf("term %q: %d tokens, $%.4f", term, resp.TotalTokens(), cost)
	}

	return ParseResources(resp.Text), nil
}

// categoryExamples builds the few-shot example block for a category
func (r *Researcher) categoryExamples(list *model.AwesomeList, category string) string {
	if list == nil {
		return ""
	}

	var items []string
	for _, section := range list.Sections {
		if section.Name != category {
			continue
		}
		for i, item := range section.Items {
			if i >= 3 {
				break
			}
			items = append(items, fmt.Sprintf("%d. %s: %s - %s", i+1, item.Name, item.Description, item.URL))
		}
		break
	}

	if len(items) == 0 {
		return ""
	}
	return "Here are examples of existing resources in this category:\n" +
		strings.Join(items, "\n") +
		"\n\nFind similar high-quality resources that are not already in the list."
}

// ParseResources extracts resources from an LLM response. JSON is tried
// first, then markdown links, then labeled Title/URL/Description blocks.
func ParseResources(content string) []model.Resource {
	if resources := parseJSONResources(content); len(resources) > 0 {
		return resources
	}
	if resources := parseMarkdownResources(content); len(resources) > 0 {
		return resources
	}
	return parseLabeledResources(content)
}

func parseJSONResources(content string) []model.Resource {
	// Strip a code fence if the model wrapped its output in one
	if m := fencedJSONPattern.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	start := strings.IndexAny(content, "[{")
	if start < 0 {
		return nil
	}
	end := strings.LastIndexAny(content, "]}")
	if end <= start {
		return nil
	}
	raw := content[start : end+1]

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		var single map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &single); err != nil {
			return nil
		}
		items = []map[string]interface{}{single}
	}

	var resources []model.Resource
	for _, item := range items {
		if r, ok := normalizeResource(item); ok {
			resources = append(resources, r)
		}
	}
	return resources
}

// normalizeResource accepts the field name variants LLMs produce
func normalizeResource(item map[string]interface{}) (model.Resource, bool) {
	str := func(keys ...string) string {
		for _, key := range keys {
			if v, ok := item[key].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}

	r := model.Resource{
		Name:        str("name", "title", "Name", "Title"),
		URL:         str("url", "URL", "link", "Link"),
		Description: strings.TrimSpace(str("description", "Description", "desc")),
	}
	if r.Name == "" || r.URL == "" {
		return model.Resource{}, false
	}
	return r, true
}

func parseMarkdownResources(content string) []model.Resource {
	var resources []model.Resource
	for _, m := range markdownLinkPattern.FindAllStringSubmatch(content, -1) {
		resources = append(resources, model.Resource{
			Name:        strings.TrimSpace(m[1]),
			URL:         strings.TrimSpace(m[2]),
			Description: strings.TrimSpace(m[3]),
		})
	}
	return resources
}

// parseLabeledResources scans line by line for Title:/URL:/Description:
// fields; each Title or Name line starts a new resource.
func parseLabeledResources(content string) []model.Resource {
	var resources []model.Resource
	var current model.Resource

	flush := func() {
		if current.Name != "" && current.URL != "" {
			resources = append(resources, current)
		}
		current = model.Resource{}
	}

	for _, line := range strings.Split(content, "\n") {
		m := labeledFieldPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "title", "name":
			flush()
			current.Name = strings.TrimSpace(strings.Trim(value, "* "))
		case "url":
			current.URL = value
		case "description":
			current.Description = value
		}
	}
	flush()

	return resources
}

func (r *Researcher) logf(format string, args ...interface{}) {
	if r.verbose {
		fmt.Fprintf(os.Stderr, "[research] "+format+"\n", args...)
	}
}
