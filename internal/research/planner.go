package research

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/krzemienski/awesome-researcher/internal/budget"
	"github.com/krzemienski/awesome-researcher/internal/llm"
	"github.com/krzemienski/awesome-researcher/internal/model"
)

// CategoryPlan describes how a single category will be researched
type CategoryPlan struct {
	Category          string   `json:"category"`
	SearchTerms       []string `json:"search_terms"`
	OriginalItemCount int      `json:"original_item_count"`
}

// Plan is the full research plan across all categories. ExcludeURLs holds
// every URL already present in the source list.
type Plan struct {
	Categories  []CategoryPlan `json:"categories"`
	ExcludeURLs []string       `json:"exclude_urls"`
}

// TermCount returns the total number of search terms across all categories
func (p *Plan) TermCount() int {
	count := 0
	for _, cp := range p.Categories {
		count += len(cp.SearchTerms)
	}
	return count
}

// Planner expands each category of an awesome list into search terms and
// assembles a research plan
type Planner struct {
	provider         llm.Provider
	costs            *budget.CostTracker
	model            string
	termsPerCategory int
	queriesPerPlan   int
	rng              *rand.Rand
	verbose          bool
}

// PlannerOptions configures a Planner
type PlannerOptions struct {
	Model            string
	TermsPerCategory int // Terms requested from the expansion call
	QueriesPerPlan   int // Terms kept per category after shuffling
	Seed             int64
	Verbose          bool
}

// NewPlanner creates a planner. A non-zero seed makes term selection
// deterministic across runs.
func NewPlanner(provider llm.Provider, costs *budget.CostTracker, opts PlannerOptions) *Planner {
	if opts.TermsPerCategory <= 0 {
		opts.TermsPerCategory = 5
	}
	if opts.QueriesPerPlan <= 0 {
		opts.QueriesPerPlan = 3
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	return &Planner{
		provider:         provider,
		costs:            costs,
		model:            opts.Model,
		termsPerCategory: opts.TermsPerCategory,
		queriesPerPlan:   opts.QueriesPerPlan,
		rng:              rand.New(rand.NewSource(seed)),
		verbose:          opts.Verbose,
	}
}

// CreatePlan expands every non-empty category into search terms and returns
// the research plan. Categories whose expansion fails fall back to the
// category name as the single search term.
func (p *Planner) CreatePlan(ctx context.Context, list *model.AwesomeList) (*Plan, error) {
	if list == nil || len(list.Sections) == 0 {
		return nil, fmt.Errorf("empty awesome list")
	}

	plan := &Plan{ExcludeURLs: list.KnownURLs()}

	for _, section := range list.Sections {
		terms, err := p.expandCategory(ctx, list, section)
		if err != nil {
			p.logf("term expansion for %q failed: %v, falling back to category name", section.Name, err)
			terms = []string{section.Name}
		}

		// Shuffle so repeated runs do not always hit the same head terms
		p.rng.Shuffle(len(terms), func(i, j int) {
			terms[i], terms[j] = terms[j], terms[i]
		})
		if len(terms) > p.queriesPerPlan {
			terms = terms[:p.queriesPerPlan]
		}

		plan.Categories = append(plan.Categories, CategoryPlan{
			Category:          section.Name,
			SearchTerms:       terms,
			OriginalItemCount: len(section.Items),
		})
	}

	return plan, nil
}

func (p *Planner) expandCategory(ctx context.Context, list *model.AwesomeList, section model.Section) ([]string, error) {
	system := p.expansionSystemPrompt(list, section.Name)
	prompt := p.expansionUserPrompt(list, section)

	estimated := budget.EstimateTokens(system+prompt) * 2
	if p.costs != nil && p.costs.WouldExceed(p.model, estimated) {
		return nil, fmt.Errorf("cost ceiling would be exceeded")
	}

	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Model:       p.model,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("expand terms: %w", err)
	}

	if p.costs != nil {
		cost := p.costs.AddUsage(resp.Model, resp.PromptTokens, resp.CompletionTokens)
		p.logf("expanded %q: %d tokens, $%.4f", section.Name, resp.TotalTokens(), cost)
	}

	terms := parseTermLines(resp.Text)
	if len(terms) == 0 {
		return nil, fmt.Errorf("no terms in response")
	}
	if len(terms) > p.termsPerCategory {
		terms = terms[:p.termsPerCategory]
	}
	return terms, nil
}

func (p *Planner) expansionSystemPrompt(list *model.AwesomeList, category string) string {
	var names []string
	for _, s := range list.Sections {
		names = append(names, s.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a term expansion assistant for research in the '%s' category of an Awesome %s list. ", category, list.Title)
	fmt.Fprintf(&b, "This is an 'Awesome List' about %s.", list.Title)
	if list.Tagline != "" {
		b.WriteString(" " + list.Tagline)
	}
	fmt.Fprintf(&b, "\n\nThe list contains the following categories: %s\n\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Your task is to generate alternative search terms and adjacent topics that can be used to ")
	fmt.Fprintf(&b, "discover new resources in the '%s' category that would be valuable additions to this list. ", category)
	fmt.Fprintf(&b, "Focus on generating specific, technical terms related to %s rather than generic descriptions.", list.Title)
	return b.String()
}

func (p *Planner) expansionUserPrompt(list *model.AwesomeList, section model.Section) string {
	var examples []string
	for _, item := range section.Items {
		if len(examples) >= 5 {
			break
		}
		if item.Description != "" {
			examples = append(examples, item.Name+": "+item.Description)
		} else {
			examples = append(examples, item.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I need to expand my search terms for researching '%s' in the context of %s. ", section.Name, list.Title)
	if len(examples) > 0 {
		fmt.Fprintf(&b, "Here are some examples of existing items in this category:\n\n%s\n\n", strings.Join(examples, "\n"))
	}
	fmt.Fprintf(&b, "Please suggest %d additional search terms or adjacent topics that could help ", p.termsPerCategory)
	b.WriteString("discover new, high-quality resources for this category. Each term should be specific enough ")
	b.WriteString("to yield focused results, relevant to the topic of the list, and directly related to this category. ")
	b.WriteString("Return just the list of terms, each on a separate line, without numbering or explanation.")
	return b.String()
}

// parseTermLines extracts one term per non-empty line, stripping common
// bullet and numbering prefixes
func parseTermLines(text string) []string {
	var terms []string
	for _, line := range strings.Split(text, "\n") {
		term := strings.TrimSpace(line)
		term = strings.TrimLeft(term, "-*+ \t")
		for i := 0; i < len(term); i++ {
			if term[i] >= '0' && term[i] <= '9' {
				continue
			}
			if term[i] == '.' || term[i] == ')' {
				term = strings.TrimSpace(term[i+1:])
			}
			break
		}
		term = strings.Trim(term, `"'`)
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

func (p *Planner) logf(format string, args ...interface{}) {
	if p.verbose {
		fmt.Fprintf(os.Stderr, "[planner] "+format+"\n", args...)
	}
}
