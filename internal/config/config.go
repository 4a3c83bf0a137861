package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App           AppConfig
	Tracing       TracingConfig
	Database      DatabaseConfig
	Queue         QueueConfig
	Redis         RedisConfig
	Storage       StorageConfig
	Keys          APIKeys
	Ai            AIConfig
	Transcription TranscriptionConfig
	Visuals       VisualConfig
	Assembly      AssemblyConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	NatsURL            string
	WorkDir            string
	OpsJWTSecret       string
	CorsAllowedOrigins string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type DatabaseConfig struct {
	Connection string
}

type QueueConfig struct {
	Transport     string // "jetstream" or "memory"
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	AckWait       time.Duration
	Concurrency   int
	Retention     time.Duration
	JanitorSpec   string
	DedupeWindow  time.Duration
	StreamName    string
	SubjectPrefix string
}

type RedisConfig struct {
	URL         string
	ChunkLogTTL time.Duration
	UseChunkLog bool
}

type StorageConfig struct {
	Backend       string // "nats" or "local"
	Bucket        string
	LocalRoot     string
	PublicBaseURL string
	SigningSecret string
}

type APIKeys struct {
	OpenAI      string
	HuggingFace string
	Deepgram    string
	OcrSpace    string
	Unsplash    string
}

type AIConfig struct {
	LLMProvider          string // primary: "openai", "ollama", "huggingface"
	LLMModel             string
	FallbackLLMProvider  string
	FallbackLLMModel     string
	OllamaBaseURL        string
	HuggingFaceBaseURL   string
	TranscriptionModel   string
	VisionModel          string
	DeepgramModel        string
	OcrSpaceBaseURL      string
	PromptMaxChars       int
	StructureTemperature float64
	StructureMaxTokens   int
}

type TranscriptionConfig struct {
	DirectSizeThreshold  int64
	TargetChunkBytes     int64
	MinChunkSeconds      float64
	MaxChunkSeconds      float64
	Concurrency          int
	SecondaryConcurrency int
	MaxAttempts          int
	RetryDelay           time.Duration
	FFmpegBinary         string
	FFprobeBinary        string
}

type VisualConfig struct {
	SearchCount   int
	MinSimilarity float64
	CacheTTL      time.Duration
	RatePerSecond float64
	Burst         int
}

type AssemblyConfig struct {
	ContentFormat string // "html" or "lexical"
	MinTags       int
	MaxTags       int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3100"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/pipeline.log"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			WorkDir:            getEnv("PIPELINE_WORK_DIR", os.TempDir()),
			OpsJWTSecret:       getEnv("OPS_JWT_SECRET", ""),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-notetaking-pipeline"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Queue: QueueConfig{
			Transport:     getEnv("QUEUE_TRANSPORT", "jetstream"),
			MaxAttempts:   getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),
			BaseBackoff:   getEnvAsDuration("QUEUE_BASE_BACKOFF", 5*time.Second),
			MaxBackoff:    getEnvAsDuration("QUEUE_MAX_BACKOFF", 5*time.Minute),
			AckWait:       getEnvAsDuration("QUEUE_ACK_WAIT", 15*time.Minute),
			Concurrency:   getEnvAsInt("QUEUE_CONCURRENCY", 8),
			Retention:     getEnvAsDuration("JOB_RETENTION", 24*time.Hour),
			JanitorSpec:   getEnv("JOB_JANITOR_SPEC", "@every 10m"),
			DedupeWindow:  getEnvAsDuration("QUEUE_DEDUPE_WINDOW", 10*time.Minute),
			StreamName:    getEnv("QUEUE_STREAM", "PIPELINE"),
			SubjectPrefix: getEnv("QUEUE_SUBJECT_PREFIX", "pipeline"),
		},
		Redis: RedisConfig{
			URL:         getEnv("REDIS_URL", "redis://localhost:6379"),
			ChunkLogTTL: getEnvAsDuration("CHUNK_LOG_TTL", 6*time.Hour),
			UseChunkLog: getEnvAsBool("REDIS_CHUNK_LOG", true),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", "nats"),
			Bucket:        getEnv("STORAGE_BUCKET", "sources"),
			LocalRoot:     getEnv("STORAGE_LOCAL_ROOT", "./uploads"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:3100/objects"),
			SigningSecret: getEnv("STORAGE_SIGNING_SECRET", ""),
		},
		Keys: APIKeys{
			OpenAI:      getEnv("OPENAI_API_KEY", ""),
			HuggingFace: getEnv("HUGGINGFACE_API_KEY", ""),
			Deepgram:    getEnv("DEEPGRAM_API_KEY", ""),
			OcrSpace:    getEnv("OCR_SPACE_API_KEY", ""),
			Unsplash:    getEnv("UNSPLASH_ACCESS_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:          getEnv("LLM_PROVIDER", "openai"),
			LLMModel:             getEnv("LLM_MODEL", "gpt-4o-mini"),
			FallbackLLMProvider:  getEnv("FALLBACK_LLM_PROVIDER", "ollama"),
			FallbackLLMModel:     getEnv("FALLBACK_LLM_MODEL", "llama3"),
			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceBaseURL:   getEnv("HUGGINGFACE_BASE_URL", ""),
			TranscriptionModel:   getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
			VisionModel:          getEnv("VISION_MODEL", "gpt-4o-mini"),
			DeepgramModel:        getEnv("DEEPGRAM_MODEL", "nova-2"),
			OcrSpaceBaseURL:      getEnv("OCR_SPACE_BASE_URL", "https://api.ocr.space/parse/image"),
			PromptMaxChars:       getEnvAsInt("PROMPT_MAX_CHARS", 48000),
			StructureTemperature: getEnvAsFloat("STRUCTURE_TEMPERATURE", 0.4),
			StructureMaxTokens:   getEnvAsInt("STRUCTURE_MAX_TOKENS", 4096),
		},
		Transcription: TranscriptionConfig{
			DirectSizeThreshold:  getEnvAsInt64("TRANSCRIPTION_DIRECT_THRESHOLD_BYTES", 25*1024*1024),
			TargetChunkBytes:     getEnvAsInt64("TRANSCRIPTION_TARGET_CHUNK_BYTES", 20*1024*1024),
			MinChunkSeconds:      getEnvAsFloat("TRANSCRIPTION_MIN_CHUNK_SECONDS", 10),
			MaxChunkSeconds:      getEnvAsFloat("TRANSCRIPTION_MAX_CHUNK_SECONDS", 600),
			Concurrency:          getEnvAsInt("TRANSCRIPTION_CONCURRENCY", 12),
			SecondaryConcurrency: getEnvAsInt("TRANSCRIPTION_SECONDARY_CONCURRENCY", 5),
			MaxAttempts:          getEnvAsInt("TRANSCRIPTION_CHUNK_ATTEMPTS", 3),
			RetryDelay:           getEnvAsDuration("TRANSCRIPTION_RETRY_DELAY", 2*time.Second),
			FFmpegBinary:         getEnv("FFMPEG_BINARY", "ffmpeg"),
			FFprobeBinary:        getEnv("FFPROBE_BINARY", "ffprobe"),
		},
		Visuals: VisualConfig{
			SearchCount:   getEnvAsInt("VISUAL_SEARCH_COUNT", 5),
			MinSimilarity: getEnvAsFloat("VISUAL_MIN_SIMILARITY", 0.15),
			CacheTTL:      getEnvAsDuration("VISUAL_SEARCH_CACHE_TTL", time.Hour),
			RatePerSecond: getEnvAsFloat("VISUAL_SEARCH_RATE", 5),
			Burst:         getEnvAsInt("VISUAL_SEARCH_BURST", 5),
		},
		Assembly: AssemblyConfig{
			ContentFormat: getEnv("NOTE_CONTENT_FORMAT", "html"),
			MinTags:       getEnvAsInt("NOTE_MIN_TAGS", 3),
			MaxTags:       getEnvAsInt("NOTE_MAX_TAGS", 5),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseInt(strValue, 10, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("90s", "5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
