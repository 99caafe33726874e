package dedup

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/krzemienski/awesome-researcher/internal/embed"
	"github.com/krzemienski/awesome-researcher/internal/model"
)

// Config holds the tunable thresholds of the deduplication engine
type Config struct {
	// FuzzyThreshold is the maximum Levenshtein distance between two titles
	// for them to count as duplicates
	FuzzyThreshold int

	// StrictFuzzyThreshold replaces FuzzyThreshold for candidates whose
	// category is in StrictCategories
	StrictFuzzyThreshold int

	// SemanticThreshold is the minimum cosine similarity for two resources
	// in the same category to count as duplicates
	SemanticThreshold float64

	// CrossCategoryThreshold is the relaxed (higher) bar applied when the
	// pair spans categories and one of them is cross-category sensitive
	CrossCategoryThreshold float64

	// DuplicateRatioLimit triggers a warning when exceeded; the run continues
	DuplicateRatioLimit float64

	// StrictCategories get the tighter fuzzy threshold
	StrictCategories []string

	// CrossCategorySensitive categories are checked for semantic duplicates
	// even across category boundaries
	CrossCategorySensitive []string

	// Verbose enables per-layer progress output on stderr
	Verbose bool
}

// DefaultConfig returns the standard engine thresholds
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:         2,
		StrictFuzzyThreshold:   1,
		SemanticThreshold:      0.85,
		CrossCategoryThreshold: 0.88,
		DuplicateRatioLimit:    0.3,
	}
}

// ConfigFromModel converts model.DedupConfig to dedup.Config
func ConfigFromModel(mc model.DedupConfig, verbose bool) Config {
	return Config{
		FuzzyThreshold:         mc.FuzzyThreshold,
		StrictFuzzyThreshold:   mc.StrictFuzzyThreshold,
		SemanticThreshold:      mc.SemanticThreshold,
		CrossCategoryThreshold: mc.CrossCategoryThreshold,
		DuplicateRatioLimit:    mc.DuplicateRatioLimit,
		StrictCategories:       mc.StrictCategories,
		CrossCategorySensitive: mc.CrossCategorySensitive,
		Verbose:                verbose,
	}
}

// Engine filters candidate resources through four ordered layers of
// duplicate detection: case-insensitive title match, fuzzy title distance,
// canonical URL identity, and semantic embedding similarity, plus a filter
// against the URLs already present in the source list.
//
// Layers run cheapest first so most duplicates never reach the embedding
// call. The engine never mutates its inputs and keeps no state between runs;
// the known-URL set is fixed at construction.
type Engine struct {
	cfg      Config
	embedder embed.Provider

	knownURLs map[string]struct{} // lowercased, trailing slash stripped

	// Canonical forms of knownURLs, computed on first use and reused
	knownCanonical map[string]struct{}

	strict        map[string]struct{}
	crossCategory map[string]struct{}
}

// NewEngine creates a deduplication engine. knownURLs are the URLs already
// present in the document; they are normalized here once.
func NewEngine(cfg Config, embedder embed.Provider, knownURLs []string) *Engine {
	known := make(map[string]struct{}, len(knownURLs))
	for _, u := range knownURLs {
		known[strings.TrimRight(strings.ToLower(u), "/")] = struct{}{}
	}

	return &Engine{
		cfg:           cfg,
		embedder:      embedder,
		knownURLs:     known,
		strict:        lowerSet(cfg.StrictCategories),
		crossCategory: lowerSet(cfg.CrossCategorySensitive),
	}
}

// Deduplicate runs all layers over the candidates in input order and returns
// the survivors together with per-layer statistics. The only error case is
// an embedding provider failure; a partial semantic layer is meaningless, so
// it aborts the run for the caller to retry or give up.
func (e *Engine) Deduplicate(ctx context.Context, candidates []model.Resource) ([]model.Resource, model.DedupStats, error) {
	if len(candidates) == 0 {
		return nil, model.NewDedupStats(0, 0, 0, 0, 0, 0, 0), nil
	}

	caseKept, caseRemoved := e.dedupByCase(candidates)
	e.logf("case layer removed %d of %d", caseRemoved, len(candidates))

	fuzzyKept, fuzzyRemoved := e.dedupByFuzzy(caseKept)
	e.logf("fuzzy layer removed %d of %d", fuzzyRemoved, len(caseKept))

	domainKept, domainRemoved := e.dedupByDomain(fuzzyKept)
	e.logf("domain layer removed %d of %d", domainRemoved, len(fuzzyKept))

	originalKept, originalRemoved := e.filterKnown(domainKept)
	e.logf("known-list filter removed %d of %d", originalRemoved, len(domainKept))

	semanticKept, semanticRemoved, err := e.dedupBySemantic(ctx, originalKept)
	if err != nil {
		return nil, model.DedupStats{}, fmt.Errorf("semantic layer: %w", err)
	}
	e.logf("semantic layer removed %d of %d", semanticRemoved, len(originalKept))

	stats := model.NewDedupStats(
		len(candidates),
		caseRemoved, fuzzyRemoved, domainRemoved, originalRemoved, semanticRemoved,
		len(semanticKept),
	)

	if stats.DuplicateRatio > e.cfg.DuplicateRatioLimit {
		fmt.Fprintf(os.Stderr,
			"Warning: duplicate ratio %.2f exceeds limit %.2f; upstream queries may lack differentiation\n",
			stats.DuplicateRatio, e.cfg.DuplicateRatioLimit)
	}

	return semanticKept, stats, nil
}

// dedupByCase removes candidates whose lowercased title was already seen.
// First occurrence wins.
func (e *Engine) dedupByCase(candidates []model.Resource) ([]model.Resource, int) {
	seen := make(map[string]struct{}, len(candidates))
	kept := make([]model.Resource, 0, len(candidates))
	removed := 0

	for _, c := range candidates {
		title := strings.ToLower(c.Name)
		if _, dup := seen[title]; dup {
			removed++
			continue
		}
		seen[title] = struct{}{}
		kept = append(kept, c)
	}

	return kept, removed
}

// dedupByFuzzy removes candidates whose title is within the Levenshtein
// threshold of any previously accepted title. Strict categories use the
// tighter threshold. O(n²·L), fine at the tens-to-hundreds scale a run sees.
func (e *Engine) dedupByFuzzy(candidates []model.Resource) ([]model.Resource, int) {
	kept := make([]model.Resource, 0, len(candidates))
	accepted := make([]string, 0, len(candidates))
	removed := 0

	for _, c := range candidates {
		title := strings.ToLower(c.Name)
		threshold := e.fuzzyThresholdFor(c.Category)

		dup := false
		for _, ref := range accepted {
			if levenshtein.ComputeDistance(title, ref) <= threshold {
				dup = true
				break
			}
		}

		if dup {
			removed++
			continue
		}
		accepted = append(accepted, title)
		kept = append(kept, c)
	}

	return kept, removed
}

func (e *Engine) fuzzyThresholdFor(category string) int {
	if _, ok := e.strict[strings.ToLower(category)]; ok {
		return e.cfg.StrictFuzzyThreshold
	}
	return e.cfg.FuzzyThreshold
}

// dedupByDomain removes candidates whose canonical URL was already seen, or
// whose (hostname, title) pair was: the same tool on the same host under the
// same name is one resource even when the paths differ.
func (e *Engine) dedupByDomain(candidates []model.Resource) ([]model.Resource, int) {
	seenCanonical := make(map[string]struct{}, len(candidates))
	seenHostTitle := make(map[string]struct{}, len(candidates))
	kept := make([]model.Resource, 0, len(candidates))
	removed := 0

	for _, c := range candidates {
		canonical := CanonicalURL(c.URL)

		dup := false
		if _, ok := seenCanonical[canonical]; ok {
			dup = true
		}

		hostTitle := ""
		if host := Hostname(c.URL); host != "" {
			hostTitle = host + "\x00" + strings.ToLower(c.Name)
			if _, ok := seenHostTitle[hostTitle]; ok {
				dup = true
			}
		}

		if dup {
			removed++
			continue
		}

		seenCanonical[canonical] = struct{}{}
		if hostTitle != "" {
			seenHostTitle[hostTitle] = struct{}{}
		}
		kept = append(kept, c)
	}

	return kept, removed
}

// filterKnown removes candidates already present in the source list, by raw
// normalized URL and by canonical URL. Tracked separately from
// inter-candidate duplicates: rediscovering existing entries is a different
// upstream failure mode than low query differentiation.
func (e *Engine) filterKnown(candidates []model.Resource) ([]model.Resource, int) {
	kept := make([]model.Resource, 0, len(candidates))
	removed := 0

	for _, c := range candidates {
		raw := strings.TrimRight(strings.ToLower(c.URL), "/")
		if _, ok := e.knownURLs[raw]; ok {
			removed++
			continue
		}
		if _, ok := e.canonicalKnown()[CanonicalURL(c.URL)]; ok {
			removed++
			continue
		}
		kept = append(kept, c)
	}

	return kept, removed
}

// canonicalKnown computes the canonical forms of the known set once
func (e *Engine) canonicalKnown() map[string]struct{} {
	if e.knownCanonical == nil {
		e.knownCanonical = make(map[string]struct{}, len(e.knownURLs))
		for u := range e.knownURLs {
			e.knownCanonical[CanonicalURL(u)] = struct{}{}
		}
	}
	return e.knownCanonical
}

// dedupBySemantic removes candidates whose embedding is too similar to a
// previously accepted candidate's. Embeddings for all remaining candidates
// are obtained in one batched provider call, then compared incrementally in
// input order against accepted survivors only.
func (e *Engine) dedupBySemantic(ctx context.Context, candidates []model.Resource) ([]model.Resource, int, error) {
	if len(candidates) == 0 {
		return nil, 0, nil
	}

	// No provider means the semantic layer is disabled
	if e.embedder == nil {
		return candidates, 0, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.EmbeddingText()
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(candidates) {
		return nil, 0, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(candidates), len(vectors))
	}

	for i := range vectors {
		vectors[i] = l2Normalize(vectors[i])
	}

	type accepted struct {
		category string
		vec      []float32
	}

	kept := make([]model.Resource, 0, len(candidates))
	acc := make([]accepted, 0, len(candidates))
	removed := 0

	for i, c := range candidates {
		category := strings.ToLower(c.Category)

		dup := false
		for _, a := range acc {
			if e.semanticDuplicate(category, a.category, dot(vectors[i], a.vec)) {
				dup = true
				break
			}
		}

		if dup {
			removed++
			continue
		}
		acc = append(acc, accepted{category: category, vec: vectors[i]})
		kept = append(kept, c)
	}

	return kept, removed, nil
}

// semanticDuplicate applies the category gate: same-category pairs use the
// base threshold; cross-category pairs are only merged when one side is
// cross-category sensitive, and then at the relaxed (higher) bar since those
// matches are noisier.
func (e *Engine) semanticDuplicate(catA, catB string, similarity float64) bool {
	if catA == catB {
		return similarity >= e.cfg.SemanticThreshold
	}
	if e.isCrossCategorySensitive(catA) || e.isCrossCategorySensitive(catB) {
		return similarity >= e.cfg.CrossCategoryThreshold
	}
	return false
}

func (e *Engine) isCrossCategorySensitive(category string) bool {
	_, ok := e.crossCategory[category]
	return ok
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.cfg.Verbose {
		fmt.Fprintf(os.Stderr, "dedup: "+format+"\n", args...)
	}
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}

// l2Normalize scales a vector to unit length; zero vectors pass through
// unchanged
func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// dot returns the cosine similarity of two unit vectors
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
