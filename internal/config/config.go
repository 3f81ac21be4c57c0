package config

import (
	"os"
	"strconv"
	"time"
)

// Image shrink strategies for oversized illustrations.
const (
	ImageStrategyShrink      = "shrink"      // decode, resize, re-encode as JPEG
	ImageStrategyPlaceholder = "placeholder" // substitute the deterministic SVG placeholder
	ImageStrategyOmit        = "omit"        // drop the illustration entirely
	ImageStrategyTruncate    = "truncate"    // best-effort: cut the base64 string, may not decode
)

// Illustration storage modes.
const (
	StorageInline = "inline" // base64 payload stored in the stories table
	StorageS3     = "s3"     // bytes uploaded to S3, URL stored in the stories table
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string

	// Database
	DatabaseURL string

	// OpenAI
	OpenAIAPIKey     string
	OpenAIBaseURL    string // optional override, e.g. a local proxy
	TextModel        string
	ImageModel       string
	ImageSize        string // 256x256, 512x512 or 1024x1024
	TextMaxTokens    int
	TextTemperature  float32

	// Story bounds
	MaxStoryLength  int // chars; overlength text is truncated with a marker
	MetadataMaxLen  int // chars per metadata field
	LibraryPageSize int

	// Illustration
	MaxImageBytes       int // max stored base64 payload size
	ImageStrategy       string
	ImageTargetWidth    int
	ImageTargetHeight   int
	JPEGQuality         int
	IllustrationStorage string

	// Retries
	GenerationMaxRetries int
	GenerationRetryDelay time.Duration

	// S3/Storage (used when IllustrationStorage is "s3")
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3PublicURL string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		TextModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		ImageModel:      getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		ImageSize:       getEnv("IMAGE_SIZE", "1024x1024"),
		TextMaxTokens:   getEnvInt("TEXT_MAX_TOKENS", 500),
		TextTemperature: float32(getEnvFloat("TEXT_TEMPERATURE", 0.7)),

		MaxStoryLength:  clampMin(getEnvInt("MAX_STORY_LENGTH", 10000), 100),
		MetadataMaxLen:  clampMin(getEnvInt("METADATA_MAX_LENGTH", 200), 1),
		LibraryPageSize: clampMin(getEnvInt("LIBRARY_PAGE_SIZE", 50), 1),

		MaxImageBytes:       getEnvInt("MAX_IMAGE_BYTES", 100*1024),
		ImageStrategy:       getEnv("IMAGE_STRATEGY", ImageStrategyShrink),
		ImageTargetWidth:    getEnvInt("IMAGE_TARGET_WIDTH", 320),
		ImageTargetHeight:   getEnvInt("IMAGE_TARGET_HEIGHT", 240),
		JPEGQuality:         clampMin(getEnvInt("JPEG_QUALITY", 60), 1),
		IllustrationStorage: getEnv("ILLUSTRATION_STORAGE", StorageInline),

		GenerationMaxRetries: getEnvInt("GENERATION_MAX_RETRIES", 2),
		GenerationRetryDelay: getEnvDuration("GENERATION_RETRY_DELAY", 2*time.Second),

		S3Endpoint:  getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", "tales-illustrations"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
