package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/krzemienski/awesome-researcher/internal/budget"
	"github.com/krzemienski/awesome-researcher/internal/llm"
	"github.com/krzemienski/awesome-researcher/internal/model"
)

// stubProvider returns canned responses keyed by a substring of the prompt,
// falling back to Default
type stubProvider struct {
	mu        sync.Mutex
	responses map[string]string
	Default   string
	err       error
	failures  int // Complete errors this many times before succeeding
	calls     int
}

func (s *stubProvider) Name() string                         { return "stub" }
func (s *stubProvider) IsAvailable(ctx context.Context) bool { return true }

func (s *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.failures > 0 {
		s.failures--
		return nil, errors.New("transient failure")
	}
	if s.err != nil {
		return nil, s.err
	}

	text := s.Default
	for key, resp := range s.responses {
		if strings.Contains(req.Prompt, key) || strings.Contains(req.System, key) {
			text = resp
			break
		}
	}

	return &llm.CompletionResponse{
		Text:             text,
		Model:            "gpt-4o",
		PromptTokens:     100,
		CompletionTokens: 50,
	}, nil
}

func testList() *model.AwesomeList {
	return &model.AwesomeList{
		Title:   "Video",
		Tagline: "A curated list of video resources.",
		Sections: []model.Section{
			{
				Name: "Players",
				Items: []model.Resource{
					{Name: "Video.js", URL: "https://videojs.com", Description: "HTML5 player", Category: "Players"},
				},
			},
			{
				Name: "Encoding",
				Items: []model.Resource{
					{Name: "FFmpeg", URL: "https://ffmpeg.org", Description: "Video processing", Category: "Encoding"},
				},
			},
		},
	}
}

func TestPlanner_CreatePlan(t *testing.T) {
	provider := &stubProvider{
		Default: "streaming protocols\nadaptive bitrate\nvideo codecs\nplayer SDKs\nlow latency playback",
	}
	costs := budget.NewCostTracker(10.0)

	planner := NewPlanner(provider, costs, PlannerOptions{
		Model:          "gpt-4.1",
		QueriesPerPlan: 3,
		Seed:           42,
	})

	plan, err := planner.CreatePlan(context.Background(), testList())
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}

	if len(plan.Categories) != 2 {
		t.Fatalf("expected 2 category plans, got %d", len(plan.Categories))
	}
	for _, cp := range plan.Categories {
		if len(cp.SearchTerms) != 3 {
			t.Errorf("category %q: expected 3 terms after shuffle cap, got %d", cp.Category, len(cp.SearchTerms))
		}
		if cp.OriginalItemCount != 1 {
			t.Errorf("category %q: expected original item count 1, got %d", cp.Category, cp.OriginalItemCount)
		}
	}

	if len(plan.ExcludeURLs) != 2 {
		t.Errorf("expected 2 exclude URLs, got %d", len(plan.ExcludeURLs))
	}
	if plan.TermCount() != 6 {
		t.Errorf("expected 6 total terms, got %d", plan.TermCount())
	}
}

func TestPlanner_Deterministic(t *testing.T) {
	terms := "alpha\nbeta\ngamma\ndelta\nepsilon"

	runPlan := func() *Plan {
		planner := NewPlanner(&stubProvider{Default: terms}, nil, PlannerOptions{
			Model:          "gpt-4.1",
			QueriesPerPlan: 2,
			Seed:           7,
		})
		plan, err := planner.CreatePlan(context.Background(), testList())
		if err != nil {
			t.Fatalf("CreatePlan failed: %v", err)
		}
		return plan
	}

	first, second := runPlan(), runPlan()
	for i := range first.Categories {
		got := strings.Join(second.Categories[i].SearchTerms, "|")
		want := strings.Join(first.Categories[i].SearchTerms, "|")
		if got != want {
			t.Errorf("seeded plans differ for %q: %s vs %s", first.Categories[i].Category, want, got)
		}
	}
}

func TestPlanner_ExpansionFailureFallsBack(t *testing.T) {
	provider := &stubProvider{err: errors.New("api down")}

	planner := NewPlanner(provider, nil, PlannerOptions{Model: "gpt-4.1", Seed: 1})
	plan, err := planner.CreatePlan(context.Background(), testList())
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}

	// Category name is the fallback search term
	for _, cp := range plan.Categories {
		if len(cp.SearchTerms) != 1 || cp.SearchTerms[0] != cp.Category {
			t.Errorf("expected fallback term %q, got %v", cp.Category, cp.SearchTerms)
		}
	}
}

func TestPlanner_EmptyList(t *testing.T) {
	planner := NewPlanner(&stubProvider{}, nil, PlannerOptions{})
	if _, err := planner.CreatePlan(context.Background(), &model.AwesomeList{}); err == nil {
		t.Error("expected error for empty list")
	}
}

func TestParseTermLines(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{"term one\nterm two", []string{"term one", "term two"}},
		{"- bullet term\n* star term", []string{"bullet term", "star term"}},
		{"1. numbered\n2) paren", []string{"numbered", "paren"}},
		{"\"quoted term\"", []string{"quoted term"}},
		{"3D rendering tools", []string{"3D rendering tools"}},
		{"\n\n", nil},
	}

	for _, tc := range cases {
		got := parseTermLines(tc.input)
		if len(got) != len(tc.want) {
			t.Errorf("parseTermLines(%q) = %v, want %v", tc.input, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("parseTermLines(%q)[%d] = %q, want %q", tc.input, i, got[i], tc.want[i])
			}
		}
	}
}

func newTestResearcher(provider llm.Provider) *Researcher {
	r := NewResearcher(provider, nil, nil, ResearcherOptions{
		Model:     "gpt-4o",
		ListTitle: "Video",
		Workers:   2,
	})
	r.sleepFunc = func(time.Duration) {}
	return r
}

func TestResearcher_Execute(t *testing.T) {
	provider := &stubProvider{
		Default: `[
			{"name": "Shaka Player", "url": "https://github.com/shaka-project/shaka-player", "description": "Adaptive media player"},
			{"name": "hls.js", "url": "https://github.com/video-dev/hls.js", "description": "HLS in the browser"}
		]`,
	}

	plan := &Plan{
		Categories: []CategoryPlan{
			{Category: "Players", SearchTerms: []string{"adaptive streaming"}},
		},
	}

	candidates, err := newTestResearcher(provider).Execute(context.Background(), testList(), plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	for _, c := range candidates {
		if c.Category != "Players" {
			t.Errorf("expected category 'Players', got %q", c.Category)
		}
	}
}

func TestResearcher_ExcludesKnownURLs(t *testing.T) {
	provider := &stubProvider{
		Default: `[
			{"name": "Video.js", "url": "https://videojs.com/", "description": "Already listed"},
			{"name": "New Player", "url": "https://newplayer.dev", "description": "Not listed"}
		]`,
	}

	plan := &Plan{
		Categories:  []CategoryPlan{{Category: "Players", SearchTerms: []string{"players"}}},
		ExcludeURLs: []string{"https://videojs.com"},
	}

	candidates, err := newTestResearcher(provider).Execute(context.Background(), testList(), plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Trailing slash must not defeat the exclusion
	if len(candidates) != 1 || candidates[0].Name != "New Player" {
		t.Fatalf("expected only 'New Player', got %+v", candidates)
	}
}

func TestResearcher_RetriesTransientFailures(t *testing.T) {
	provider := &stubProvider{
		failures: 2,
		Default:  `[{"name": "A", "url": "https://a.dev", "description": "d"}]`,
	}

	plan := &Plan{
		Categories: []CategoryPlan{{Category: "Players", SearchTerms: []string{"x"}}},
	}

	candidates, err := newTestResearcher(provider).Execute(context.Background(), testList(), plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate after retries, got %d", len(candidates))
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", provider.calls)
	}
}

func TestResearcher_FailedTermDoesNotAbortRun(t *testing.T) {
	provider := &stubProvider{
		responses: map[string]string{
			"good term": `[{"name": "A", "url": "https://a.dev", "description": "d"}]`,
		},
		err: nil,
	}
	// Stub default with no parseable content yields zero resources, not errors
	provider.Default = "nothing useful here"

	plan := &Plan{
		Categories: []CategoryPlan{
			{Category: "Players", SearchTerms: []string{"good term", "bad term"}},
		},
	}

	candidates, err := newTestResearcher(provider).Execute(context.Background(), testList(), plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
}

func TestResearcher_WallClockStopsSubmission(t *testing.T) {
	provider := &stubProvider{Default: `[{"name": "A", "url": "https://a.dev", "description": "d"}]`}

	clock := budget.NewWallClock(1 * time.Nanosecond)
	time.Sleep(time.Millisecond)

	r := NewResearcher(provider, nil, clock, ResearcherOptions{Model: "gpt-4o", Workers: 2})
	r.sleepFunc = func(time.Duration) {}

	plan := &Plan{
		Categories: []CategoryPlan{{Category: "Players", SearchTerms: []string{"a", "b", "c"}}},
	}

	candidates, err := r.Execute(context.Background(), testList(), plan)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates past the wall clock, got %d", len(candidates))
	}
	if provider.calls != 0 {
		t.Errorf("expected no API calls past the wall clock, got %d", provider.calls)
	}
}

func TestParseResources_JSON(t *testing.T) {
	content := "Here are some resources:\n```json\n[{\"name\": \"A\", \"url\": \"https://a.dev\", \"description\": \"tool\"}]\n```"

	resources := ParseResources(content)
	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}
	if resources[0].Name != "A" || resources[0].URL != "https://a.dev" {
		t.Errorf("unexpected resource: %+v", resources[0])
	}
}

func TestParseResources_FieldVariants(t *testing.T) {
	content := `[{"title": "B", "link": "https://b.dev", "desc": "other keys"}]`

	resources := ParseResources(content)
	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}
	if resources[0].Name != "B" || resources[0].URL != "https://b.dev" || resources[0].Description != "other keys" {
		t.Errorf("unexpected resource: %+v", resources[0])
	}
}

func TestParseResources_MarkdownFallback(t *testing.T) {
	content := `Some discoveries:
* [Tool One](https://one.dev) - First tool.
2. [Tool Two](https://two.dev): Second tool.`

	resources := ParseResources(content)
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d: %+v", len(resources), resources)
	}
	if resources[1].Name != "Tool Two" || resources[1].Description != "Second tool." {
		t.Errorf("unexpected resource: %+v", resources[1])
	}
}

func TestParseResources_LabeledBlocks(t *testing.T) {
	content := `Title: Tool Three
URL: https://three.dev
Description: Third tool.

Title: Tool Four
URL: https://four.dev
Description: Fourth tool.`

	resources := ParseResources(content)
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d: %+v", len(resources), resources)
	}
	if resources[0].Name != "Tool Three" || resources[0].URL != "https://three.dev" {
		t.Errorf("unexpected resource: %+v", resources[0])
	}
}

func TestParseResources_LabeledBlocksAdjacent(t *testing.T) {
	content := `1. Name: Tool Five
URL: https://five.dev
Description: Fifth tool.
2. Name: Tool Six
URL: https://six.dev
Description: Sixth tool.`

	resources := ParseResources(content)
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d: %+v", len(resources), resources)
	}
	if resources[0].Name != "Tool Five" || resources[1].Name != "Tool Six" {
		t.Errorf("unexpected resources: %+v", resources)
	}
	if resources[1].URL != "https://six.dev" || resources[1].Description != "Sixth tool." {
		t.Errorf("unexpected resource: %+v", resources[1])
	}
}

func TestParseResources_Garbage(t *testing.T) {
	if resources := ParseResources("no structured content at all"); len(resources) != 0 {
		t.Errorf("expected no resources, got %+v", resources)
	}
}
