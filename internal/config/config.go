// Package config loads runtime configuration once at process start.
// Stage agents receive it by value; nothing reads the environment after
// Load returns.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the explicit configuration handed into the pipeline wiring.
type Config struct {
	// Model names the generator model. Empty selects the client default.
	Model string
	// APIKey for the generator service; read by the genai client from
	// the environment, surfaced here so wiring can fail fast when unset.
	APIKey string
	// ResultsDir receives per-stage result files.
	ResultsDir string
	// PostgresDSN switches stage persistence to the database when set.
	PostgresDSN string
	// Concurrency bounds parallel generator calls in the writer stage.
	Concurrency int
	// RPS throttles generator calls; 0 disables the limiter.
	RPS float64

	// S3 mirror settings; Endpoint empty means no mirroring.
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

// Load reads .env (if present) and the environment. It never fails on a
// missing .env file; explicit environment variables win over file
// values, which is godotenv's default behavior.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Model:       strings.TrimSpace(os.Getenv("TESTFORGE_MODEL")),
		APIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		ResultsDir:  envDefault("TESTFORGE_RESULTS_DIR", "output"),
		PostgresDSN: strings.TrimSpace(os.Getenv("RESULT_STORE_PG_DSN")),
		Concurrency: envInt("TESTFORGE_CONCURRENCY", 2),
		RPS:         envFloat("TESTFORGE_RPS", 0),
		S3Endpoint:  strings.TrimSpace(os.Getenv("TESTFORGE_S3_ENDPOINT")),
		S3Region:    strings.TrimSpace(os.Getenv("TESTFORGE_S3_REGION")),
		S3AccessKey: strings.TrimSpace(os.Getenv("TESTFORGE_S3_ACCESS_KEY")),
		S3SecretKey: strings.TrimSpace(os.Getenv("TESTFORGE_S3_SECRET_KEY")),
		S3Bucket:    strings.TrimSpace(os.Getenv("TESTFORGE_S3_BUCKET")),
		S3UseSSL:    envBool("TESTFORGE_S3_USE_SSL"),
	}
}

func envDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}
