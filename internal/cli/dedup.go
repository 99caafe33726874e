package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/krzemienski/awesome-researcher/internal/dedup"
	"github.com/krzemienski/awesome-researcher/internal/embed"
	"github.com/krzemienski/awesome-researcher/internal/model"
	"github.com/spf13/cobra"
)

var (
	dedupKnownFile   string
	dedupStatsFile   string
	dedupFuzzy       int
	dedupSemantic    float64
	dedupSkipEmbed   bool
	dedupEmbedModel  string
	dedupStrictCats  []string
	dedupCrossSensit []string
)

// dedupCmd represents the dedup command
var dedupCmd = &cobra.Command{
	Use:   "dedup <candidates.json>",
	Short: "Run the deduplication engine on a candidate file",
	Long: `Dedup runs the four-layer deduplication engine offline against a JSON
file of candidate resources, printing the survivors as JSON and the
layer statistics to stderr.

The input file holds an array of objects with name, url, description
and category fields - the same shape research writes to new_links.json.

Example:
  awesome-researcher dedup candidates.json
  awesome-researcher dedup candidates.json --known known_urls.json --stats stats.json
  awesome-researcher dedup candidates.json --skip-semantic`,
	Args: cobra.ExactArgs(1),
	RunE: runDedup,
}

func init() {
	rootCmd.AddCommand(dedupCmd)

	dedupCmd.Flags().StringVar(&dedupKnownFile, "known", "", "JSON file with an array of URLs already in the list")
	dedupCmd.Flags().StringVar(&dedupStatsFile, "stats", "", "write layer statistics to this JSON file")
	dedupCmd.Flags().IntVar(&dedupFuzzy, "fuzzy-threshold", 2, "Levenshtein distance treated as a duplicate title")
	dedupCmd.Flags().Float64Var(&dedupSemantic, "semantic-threshold", 0.85, "cosine similarity treated as a semantic duplicate")
	dedupCmd.Flags().BoolVar(&dedupSkipEmbed, "skip-semantic", false, "skip the embedding layer (no API calls)")
	dedupCmd.Flags().StringVar(&dedupEmbedModel, "embedding-model", "text-embedding-3-small", "embedding model for the semantic layer")
	dedupCmd.Flags().StringSliceVar(&dedupStrictCats, "strict-category", nil, "categories using the stricter fuzzy threshold")
	dedupCmd.Flags().StringSliceVar(&dedupCrossSensit, "cross-sensitive", nil, "categories compared across category boundaries")
}

func runDedup(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read candidates: %w", err)
	}

	var candidates []model.Resource
	if err := json.Unmarshal(data, &candidates); err != nil {
		return fmt.Errorf("parse candidates: %w", err)
	}

	var known []string
	if dedupKnownFile != "" {
		knownData, err := os.ReadFile(dedupKnownFile)
		if err != nil {
			return fmt.Errorf("read known URLs: %w", err)
		}
		if err := json.Unmarshal(knownData, &known); err != nil {
			return fmt.Errorf("parse known URLs: %w", err)
		}
	}

	cfg := dedup.DefaultConfig()
	cfg.FuzzyThreshold = dedupFuzzy
	cfg.SemanticThreshold = dedupSemantic
	cfg.StrictCategories = dedupStrictCats
	cfg.CrossCategorySensitive = dedupCrossSensit
	cfg.Verbose = verbose

	var embedder embed.Provider
	if !dedupSkipEmbed {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set (use --skip-semantic to run without embeddings)")
		}
		embedder, err = embed.NewOpenAIProvider(apiKey, "", dedupEmbedModel, 0)
		if err != nil {
			return err
		}
	}

	engine := dedup.NewEngine(cfg, embedder, known)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	survivors, stats, err := engine.Deduplicate(ctx, candidates)
	if err != nil {
		return fmt.Errorf("dedup failed: %w", err)
	}

	out, err := json.MarshalIndent(survivors, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal survivors: %w", err)
	}
	fmt.Println(string(out))

	fmt.Fprintf(os.Stderr, "%d candidates, %d survivors (case %d, fuzzy %d, domain %d, known %d, semantic %d)\n",
		stats.Candidates, stats.Final, stats.CaseFiltered, stats.FuzzyFiltered,
		stats.DomainFiltered, stats.OriginalFiltered, stats.SemanticFiltered)

	if dedupStatsFile != "" {
		statsData, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		if err := os.WriteFile(dedupStatsFile, append(statsData, '\n'), 0o644); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
	}

	return nil
}
