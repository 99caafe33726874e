package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/krzemienski/awesome-researcher/internal/model"
	"github.com/krzemienski/awesome-researcher/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	outputDir    string
	timeout      time.Duration
	wallTime     time.Duration
	costCeiling  float64
	userAgent    string
	maxBytes     int64
	noCache      bool
	cacheDir     string
	llmProvider  string
	plannerModel string
	researchMdl  string
	minStars     int
	noRobots     bool
	seed         int64
	workers      int
)

// researchCmd represents the research command
var researchCmd = &cobra.Command{
	Use:   "research <repo-url>",
	Short: "Research an awesome list and produce an updated version",
	Long: `Research fetches an awesome-list README from GitHub, expands each
category into search terms, discovers new candidate resources with an
LLM, deduplicates them against the list and each other, validates the
survivors, and renders the updated list.

Example:
  awesome-researcher research https://github.com/krzemienski/awesome-video
  awesome-researcher research https://github.com/owner/list --min-stars 100 --cost-ceiling 5
  awesome-researcher research https://github.com/owner/list --seed 42 --output runs/`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

func init() {
	rootCmd.AddCommand(researchCmd)

	// Output flags
	researchCmd.Flags().StringVarP(&outputDir, "output", "o", "runs", "output directory for run artifacts")

	// Budget flags
	researchCmd.Flags().DurationVar(&wallTime, "wall-time", 10*time.Minute, "wall-clock limit for the research phase")
	researchCmd.Flags().Float64Var(&costCeiling, "cost-ceiling", 10.0, "maximum API spend in USD")

	// HTTP flags
	researchCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request HTTP timeout")
	researchCmd.Flags().StringVar(&userAgent, "ua", "awesome-researcher/0.1 (+https://github.com/krzemienski/awesome-researcher)", "HTTP User-Agent")
	researchCmd.Flags().Int64Var(&maxBytes, "max-bytes", 2_000_000, "max response bytes to read")
	researchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable README and star-count caching")
	researchCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "persist the cache to this directory")

	// LLM flags
	researchCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	researchCmd.Flags().StringVar(&plannerModel, "planner-model", "gpt-4.1", "model for term expansion and planning")
	researchCmd.Flags().StringVar(&researchMdl, "research-model", "gpt-4o", "model for candidate discovery")

	// Validation flags
	researchCmd.Flags().IntVar(&minStars, "min-stars", 50, "minimum GitHub stars for repository resources (0 disables)")
	researchCmd.Flags().BoolVar(&noRobots, "no-robots", false, "skip robots.txt checks during validation")

	// Research flags
	researchCmd.Flags().Int64Var(&seed, "seed", 0, "random seed for deterministic term selection (0 = random)")
	researchCmd.Flags().IntVar(&workers, "workers", 4, "concurrent research workers")
}

func runResearch(cmd *cobra.Command, args []string) error {
	repoURL := args[0]

	cfg := model.DefaultConfig()
	cfg.HTTP.Timeout = timeout
	cfg.HTTP.UserAgent = userAgent
	cfg.HTTP.MaxBodyBytes = maxBytes
	cfg.LLM.Provider = llmProvider
	cfg.LLM.PlannerModel = plannerModel
	cfg.LLM.ResearchModel = researchMdl
	cfg.Budget.CostCeilingUSD = costCeiling
	cfg.Budget.WallTime = wallTime
	cfg.Cache.Enabled = !noCache
	cfg.Cache.Dir = cacheDir
	cfg.Validation.MinStars = minStars
	cfg.Validation.RespectRobots = !noRobots
	cfg.Concurrency.ResearchWorkers = workers
	cfg.Output.Dir = outputDir
	cfg.Output.Verbose = verbose

	if err := resolveAPIKey(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), wallTime+5*time.Minute)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Researching: %s\n", repoURL)
		fmt.Fprintf(os.Stderr, "Cost ceiling: $%.2f, wall time: %v\n\n", costCeiling, wallTime)
	}

	p, err := pipeline.NewPipeline(cfg, seed)
	if err != nil {
		return err
	}

	result, err := p.Run(ctx, repoURL)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	fmt.Printf("Done in %v\n", result.Elapsed.Round(time.Second))
	fmt.Printf("  Candidates:  %d\n", result.DedupStats.Candidates)
	fmt.Printf("  Duplicates:  %d (ratio %.2f)\n",
		result.DedupStats.Candidates-result.DedupStats.Final, result.DedupStats.DuplicateRatio)
	fmt.Printf("  Validated:   %d of %d\n", result.ValidationStats.Valid, result.ValidationStats.Checked)
	fmt.Printf("  New links:   %d\n", len(result.NewLinks))
	fmt.Printf("  Total spend: $%.4f\n", result.CostReport.TotalUSD)
	fmt.Printf("  Artifacts:   %s\n", result.OutputDir)

	return nil
}

// resolveAPIKey loads the provider API key from the environment
func resolveAPIKey(cfg *model.Config) error {
	switch cfg.LLM.Provider {
	case "openai", "":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
		// The embedding provider still needs an OpenAI key
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set (required for embeddings)")
		}
	}
	return nil
}
