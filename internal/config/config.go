package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/loomlabs/loom/internal/service"
)

// Load reads the .env file specified by LOOM_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("LOOM_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// EmbeddingDim returns the embedding dimension the candidate index is
// built for. Defaults to 1536, the dimension of text-embedding-3-small.
func EmbeddingDim() int {
	dim, err := strconv.Atoi(os.Getenv("EMBEDDING_DIM"))
	if err != nil || dim <= 0 {
		return 1536
	}
	return dim
}

// ScoreWeights returns the scoring policy, overridable per component.
// Invalid overrides are rejected at startup by Weights.Validate.
func ScoreWeights() service.Weights {
	w := service.DefaultWeights()
	if v, err := strconv.ParseFloat(os.Getenv("WEIGHT_SEMANTIC"), 64); err == nil {
		w.Semantic = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("WEIGHT_COMPLEMENTARITY"), 64); err == nil {
		w.Complementarity = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("WEIGHT_FEASIBILITY"), 64); err == nil {
		w.Feasibility = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("WEIGHT_PROFICIENCY"), 64); err == nil {
		w.Proficiency = v
	}
	return w
}

// MatchConfig returns the serving-path policy with env overrides applied
// on top of the defaults.
func MatchConfig() service.MatchConfig {
	cfg := service.DefaultMatchConfig()
	if v, err := strconv.Atoi(os.Getenv("MATCH_TOP_K")); err == nil && v > 0 {
		cfg.TopK = v
	}
	if v, err := strconv.Atoi(os.Getenv("MATCH_CANDIDATE_K")); err == nil && v > 0 {
		cfg.CandidateK = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("MATCH_SIMILARITY_THRESHOLD"), 64); err == nil {
		cfg.SimilarityThreshold = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("MATCH_MIN_OVERALL"), 64); err == nil {
		cfg.MinOverall = v
	}
	if v, err := strconv.Atoi(os.Getenv("MATCH_SCORING_SHARDS")); err == nil && v > 0 {
		cfg.Shards = v
	}
	if v, err := time.ParseDuration(os.Getenv("MATCH_SCORING_BUDGET")); err == nil && v > 0 {
		cfg.Budget = v
	}
	if v, err := strconv.ParseBool(os.Getenv("MATCH_DETECT_SYNERGIES")); err == nil {
		cfg.DetectSynergies = v
	}
	return cfg
}

// SynergyThreshold returns the minimum reverse-match score for a synergy
// pair to be reported.
func SynergyThreshold() float64 {
	v, err := strconv.ParseFloat(os.Getenv("SYNERGY_THRESHOLD"), 64)
	if err != nil || v <= 0 || v > 1 {
		return service.DefaultSynergyThreshold
	}
	return v
}

// CalibratorInterval returns how often the calibrator folds new outcomes
// into the published statistics.
func CalibratorInterval() time.Duration {
	v, err := time.ParseDuration(os.Getenv("CALIBRATOR_INTERVAL"))
	if err != nil || v <= 0 {
		return 5 * time.Minute
	}
	return v
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
