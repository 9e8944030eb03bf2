package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	StorageBackend string
	DataDir        string
	DBPath         string
	OutputDir      string

	ExtractionAPIURL  string
	MatchBatchAPIURL  string
	MatchSingleAPIURL string
	MatchLimit        int
	MatchTimeoutMs    int
	MatchRateLimitRPS int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	LLMTimeoutMs  int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
		StorageBackend: getEnv("STORAGE_BACKEND", "json"),
		DataDir:        getEnv("DATA_DIR", filepath.Join(cwd, "data")),
		DBPath:         getEnv("DB_PATH", filepath.Join(cwd, "data", "orders.db")),
		OutputDir:      getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		ExtractionAPIURL:  getEnv("EXTRACTION_API_URL", "https://plankton-app-qajlk.ondigitalocean.app/extraction_api"),
		MatchBatchAPIURL:  getEnv("MATCH_BATCH_API_URL", "https://endeavor-interview-api-gzwki.ondigitalocean.app/match/batch"),
		MatchSingleAPIURL: getEnv("MATCH_SINGLE_API_URL", "https://endeavor-interview-api-gzwki.ondigitalocean.app/match"),
		MatchLimit:        getEnvInt("MATCH_LIMIT", 5),
		MatchTimeoutMs:    getEnvInt("MATCH_TIMEOUT_MS", 30000),
		MatchRateLimitRPS: getEnvInt("MATCH_RATE_LIMIT_RPS", 5),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4"),
		LLMTimeoutMs:  getEnvInt("LLM_TIMEOUT_MS", 60000),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
