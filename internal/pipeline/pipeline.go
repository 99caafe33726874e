package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/krzemienski/awesome-researcher/internal/budget"
	"github.com/krzemienski/awesome-researcher/internal/cache"
	"github.com/krzemienski/awesome-researcher/internal/dedup"
	"github.com/krzemienski/awesome-researcher/internal/embed"
	"github.com/krzemienski/awesome-researcher/internal/gitstar"
	"github.com/krzemienski/awesome-researcher/internal/llm"
	"github.com/krzemienski/awesome-researcher/internal/model"
	"github.com/krzemienski/awesome-researcher/internal/parser"
	"github.com/krzemienski/awesome-researcher/internal/render"
	"github.com/krzemienski/awesome-researcher/internal/research"
	"github.com/krzemienski/awesome-researcher/internal/validate"
)

// Pipeline orchestrates a full research run: parse the source list, plan
// and execute the research, deduplicate, validate, and render the updated
// list with its artifacts.
type Pipeline struct {
	cfg      *model.Config
	parser   *parser.Parser
	provider llm.Provider
	embedder embed.Provider
	stars    *gitstar.Client
	costs    *budget.CostTracker
	seed     int64
}

// NewPipeline wires the pipeline from configuration. The LLM provider and
// embedding provider are both required: a run cannot proceed without them.
func NewPipeline(cfg *model.Config, seed int64) (*Pipeline, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("init LLM provider: %w", err)
	}

	// Embeddings always go through OpenAI, whatever the chat provider is
	embedKey := os.Getenv("OPENAI_API_KEY")
	if embedKey == "" {
		embedKey = cfg.LLM.APIKey
	}
	embedBase := ""
	if cfg.LLM.Provider == "" || cfg.LLM.Provider == "openai" {
		embedBase = cfg.LLM.BaseURL
	}
	embedder, err := embed.NewOpenAIProvider(
		embedKey, embedBase, cfg.Dedup.EmbeddingModel, cfg.Dedup.EmbeddingBatchSize)
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}

	var readmeCache cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Dir != "" {
			readmeCache = cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
		} else {
			readmeCache = cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
		}
	}

	return &Pipeline{
		cfg:      cfg,
		parser:   parser.NewParser(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, readmeCache),
		provider: provider,
		embedder: embedder,
		stars:    gitstar.NewClient(os.Getenv("GITHUB_TOKEN"), readmeCache),
		costs:    budget.NewCostTracker(cfg.Budget.CostCeilingUSD),
		seed:     seed,
	}, nil
}

// RunResult is everything a completed research run produced
type RunResult struct {
	List            *model.AwesomeList
	NewLinks        []model.Resource
	DedupStats      model.DedupStats
	ValidationStats model.ValidationStats
	CostReport      budget.Report
	OutputDir       string
	ArtifactPaths   []string
	Elapsed         time.Duration
}

// Run executes the full pipeline against one awesome-list repository
func (p *Pipeline) Run(ctx context.Context, repoURL string) (*RunResult, error) {
	clock := budget.NewWallClock(p.cfg.Budget.WallTime)
	verbose := p.cfg.Output.Verbose

	// 1. Fetch and parse the source list
	list, err := p.parser.FetchAndParse(ctx, repoURL)
	if err != nil {
		return nil, fmt.Errorf("parse awesome list: %w", err)
	}
	p.logf("parsed %q: %d sections, %d items", list.Title, len(list.Sections), list.ItemCount())

	// 2. Plan the research
	planner := research.NewPlanner(p.provider, p.costs, research.PlannerOptions{
		Model:   p.cfg.LLM.PlannerModel,
		Seed:    p.seed,
		Verbose: verbose,
	})
	plan, err := planner.CreatePlan(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("create research plan: %w", err)
	}
	p.logf("research plan: %d categories, %d terms", len(plan.Categories), plan.TermCount())

	// 3. Discover candidates
	researcher := research.NewResearcher(p.provider, p.costs, clock, research.ResearcherOptions{
		Model:     p.cfg.LLM.ResearchModel,
		ListTitle: list.Title,
		Workers:   p.cfg.Concurrency.ResearchWorkers,
		Verbose:   verbose,
	})
	candidates, err := researcher.Execute(ctx, list, plan)
	if err != nil {
		return nil, fmt.Errorf("research: %w", err)
	}
	p.logf("discovered %d candidates", len(candidates))

	// 4. Deduplicate. An embedding failure aborts the run rather than
	// risking duplicate entries in the output.
	engine := dedup.NewEngine(dedup.ConfigFromModel(p.cfg.Dedup, verbose), p.embedder, list.KnownURLs())
	unique, dedupStats, err := engine.Deduplicate(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("deduplicate: %w", err)
	}
	p.logf("dedup: %d of %d candidates survived (ratio %.2f)",
		dedupStats.Final, dedupStats.Candidates, dedupStats.DuplicateRatio)

	// 5. Validate survivors
	validator := validate.NewValidator(validate.Options{
		Timeout:           p.cfg.Validation.Timeout,
		MaxWorkers:        p.cfg.Concurrency.ValidationWorkers,
		UserAgent:         p.cfg.HTTP.UserAgent,
		HTTPProxy:         p.cfg.HTTP.HTTPProxy,
		HTTPSProxy:        p.cfg.HTTP.HTTPSProxy,
		NoProxy:           p.cfg.HTTP.NoProxy,
		Stars:             p.stars,
		MinStars:          p.cfg.Validation.MinStars,
		Trimmer:           p.provider,
		TrimModel:         p.cfg.LLM.ValidatorModel,
		Costs:             p.costs,
		MaxDescLen:        p.cfg.Validation.MaxDescriptionLen,
		RequestsPerSecond: p.cfg.Validation.RequestsPerSecond,
		RespectRobots:     p.cfg.Validation.RespectRobots,
		AllowInsecure:     !p.cfg.Validation.RequireHTTPS,
		Verbose:           verbose,
	})
	valid, validationStats, err := validator.Validate(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	// 6. Render the updated list and persist artifacts
	renderer := render.NewRenderer(verbose)
	categorized := renderer.Categorize(list, valid)
	merged := renderer.Merge(list, categorized)

	outputDir := filepath.Join(p.cfg.Output.Dir, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	writer, err := render.NewArtifactWriter(outputDir)
	if err != nil {
		return nil, err
	}

	costReport := p.costs.GenerateReport()
	paths, err := writer.WriteAll(render.RunArtifacts{
		UpdatedList: renderer.RenderList(merged),
		Report:      render.RenderReport(categorized),
		NewLinks:    valid,
		DedupStats:  dedupStats,
		Validation:  validationStats,
		CostReport:  costReport,
	})
	if err != nil {
		return nil, fmt.Errorf("write artifacts: %w", err)
	}

	p.costs.WarnIfNearCeiling(0.8)

	return &RunResult{
		List:            merged,
		NewLinks:        valid,
		DedupStats:      dedupStats,
		ValidationStats: validationStats,
		CostReport:      costReport,
		OutputDir:       outputDir,
		ArtifactPaths:   paths,
		Elapsed:         clock.Elapsed(),
	}, nil
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "[pipeline] "+format+"\n", args...)
	}
}
