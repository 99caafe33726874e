package model

import "time"

// Config is the complete runtime configuration, loadable from
// ~/.awesome-researcher/config.yaml and overridable by flags and
// AWESOME_RESEARCHER_* environment variables
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" json:"http"`
	LLM         LLMConfig         `yaml:"llm" json:"llm"`
	Dedup       DedupConfig       `yaml:"dedup" json:"dedup"`
	Validation  ValidationConfig  `yaml:"validation" json:"validation"`
	Budget      BudgetConfig      `yaml:"budget" json:"budget"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" json:"concurrency"`
	Output      OutputConfig      `yaml:"output" json:"output"`
}

// HTTPConfig controls outbound HTTP behavior
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" json:"http_proxy,omitempty"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" json:"https_proxy,omitempty"`
	NoProxy      string        `yaml:"no_proxy,omitempty" json:"no_proxy,omitempty"`
}

// LLMConfig selects the chat-completion provider used by the planner,
// researcher and description trimming
type LLMConfig struct {
	Provider       string `yaml:"provider" json:"provider"` // openai, anthropic, ollama
	PlannerModel   string `yaml:"planner_model" json:"planner_model"`
	ResearchModel  string `yaml:"research_model" json:"research_model"`
	ValidatorModel string `yaml:"validator_model" json:"validator_model"`
	APIKey         string `yaml:"-" json:"-"` // From env only, never persisted
	BaseURL        string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Timeout        int    `yaml:"timeout" json:"timeout"` // seconds
	MaxTokens      int    `yaml:"max_tokens" json:"max_tokens"`
}

// DedupConfig holds the tunable thresholds of the deduplication engine
type DedupConfig struct {
	FuzzyThreshold         int      `yaml:"fuzzy_threshold" json:"fuzzy_threshold"`
	StrictFuzzyThreshold   int      `yaml:"strict_fuzzy_threshold" json:"strict_fuzzy_threshold"`
	SemanticThreshold      float64  `yaml:"semantic_threshold" json:"semantic_threshold"`
	CrossCategoryThreshold float64  `yaml:"cross_category_threshold" json:"cross_category_threshold"`
	DuplicateRatioLimit    float64  `yaml:"duplicate_ratio_limit" json:"duplicate_ratio_limit"`
	StrictCategories       []string `yaml:"strict_categories,omitempty" json:"strict_categories,omitempty"`
	CrossCategorySensitive []string `yaml:"cross_category_sensitive,omitempty" json:"cross_category_sensitive,omitempty"`
	EmbeddingModel         string   `yaml:"embedding_model" json:"embedding_model"`
	EmbeddingBatchSize     int      `yaml:"embedding_batch_size" json:"embedding_batch_size"`
}

// ValidationConfig controls URL and popularity checks on survivors
type ValidationConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RequireHTTPS      bool          `yaml:"require_https" json:"require_https"`
	RespectRobots     bool          `yaml:"respect_robots" json:"respect_robots"`
	MinStars          int           `yaml:"min_stars" json:"min_stars"`
	MaxDescriptionLen int           `yaml:"max_description_len" json:"max_description_len"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
}

// BudgetConfig bounds the spend of a single run
type BudgetConfig struct {
	CostCeilingUSD float64       `yaml:"cost_ceiling_usd" json:"cost_ceiling_usd"`
	WallTime       time.Duration `yaml:"wall_time" json:"wall_time"`
}

// CacheConfig controls the README fetch cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Dir     string        `yaml:"dir,omitempty" json:"dir,omitempty"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// ConcurrencyConfig sets worker counts for the parallel phases
type ConcurrencyConfig struct {
	ResearchWorkers   int `yaml:"research_workers" json:"research_workers"`
	ValidationWorkers int `yaml:"validation_workers" json:"validation_workers"`
}

// OutputConfig controls run artifacts and verbosity
type OutputConfig struct {
	Dir     string `yaml:"dir" json:"dir"`
	Verbose bool   `yaml:"verbose" json:"verbose"`
}

// DefaultConfig returns the built-in defaults, the lowest layer of the
// configuration hierarchy
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "awesome-researcher/0.1 (+https://github.com/krzemienski/awesome-researcher)",
			MaxBodyBytes: 2_000_000,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			PlannerModel:   "gpt-4.1",
			ResearchModel:  "gpt-4o",
			ValidatorModel: "gpt-4o",
			Timeout:        30,
			MaxTokens:      2000,
		},
		Dedup: DedupConfig{
			FuzzyThreshold:         2,
			StrictFuzzyThreshold:   1,
			SemanticThreshold:      0.85,
			CrossCategoryThreshold: 0.88,
			DuplicateRatioLimit:    0.3,
			EmbeddingModel:         "text-embedding-3-small",
			EmbeddingBatchSize:     2048,
		},
		Validation: ValidationConfig{
			Timeout:           10 * time.Second,
			MaxRetries:        3,
			RequireHTTPS:      true,
			RespectRobots:     true,
			MinStars:          50,
			MaxDescriptionLen: 100,
			RequestsPerSecond: 2.0,
			Burst:             5,
		},
		Budget: BudgetConfig{
			CostCeilingUSD: 10.0,
			WallTime:       10 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     1 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			ResearchWorkers:   4,
			ValidationWorkers: 20,
		},
		Output: OutputConfig{
			Dir: "runs",
		},
	}
}
