package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Domains understood by the retriever, persona defaults and grader.
const (
	DomainDocuments = "documents"
	DomainReddit    = "reddit"
	DomainPapers    = "papers"
)

type LLMConfig struct {
	Provider       string  `toml:"provider"`
	Model          string  `toml:"model"`
	EmbeddingModel string  `toml:"embedding_model"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	MaxRetries     int     `toml:"max_retries"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
}

type GraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type RetrievalConfig struct {
	Domain              string             `toml:"domain"`
	VectorIndex         string             `toml:"vector_index"`
	EmbeddingDimensions int                `toml:"embedding_dimensions"`
	PreviewLength       int                `toml:"preview_length"`
	CountFactor         float64            `toml:"count_factor"`
	DefaultLimit        int                `toml:"default_limit"`
	Weights             map[string]float64 `toml:"weights"`
}

type PersonaConfig struct {
	// Backend is "file" or "redis".
	Backend           string `toml:"backend"`
	Path              string `toml:"path"`
	RedisKey          string `toml:"redis_key"`
	StrictKeywordGate bool   `toml:"strict_keyword_gate"`
	ContextFanOut     int    `toml:"context_fan_out"`
	HistoryWindow     int    `toml:"history_window"`
}

type RedisConfig struct {
	URL string `toml:"url"`
}

type IngestConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	MinSharedTopics     int     `toml:"min_shared_topics"`
	MinSharedEntities   int     `toml:"min_shared_entities"`
	MaxContentLength    int     `toml:"max_content_length"`
	EmbedPrefixLength   int     `toml:"embed_prefix_length"`
	ExtractionPrompt    string  `toml:"extraction_prompt"`
}

type ServerConfig struct {
	Port string `toml:"port"`
	Mode string `toml:"mode"`
}

type EvaluationConfig struct {
	TraceDB   string `toml:"trace_db"`
	K         int    `toml:"k"`
	ReportDir string `toml:"report_dir"`
}

type TelemetryConfig struct {
	Enabled      bool    `toml:"enabled"`
	ServiceName  string  `toml:"service_name"`
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	SampleRate   float64 `toml:"sample_rate"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ConcurrencyConfig struct {
	BulkIngest int `toml:"bulk_ingest"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Graph       GraphConfig       `toml:"graph"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Persona     PersonaConfig     `toml:"persona"`
	Redis       RedisConfig       `toml:"redis"`
	Ingest      IngestConfig      `toml:"ingest"`
	Server      ServerConfig      `toml:"server"`
	Evaluation  EvaluationConfig  `toml:"evaluation"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
	Log         LogConfig         `toml:"log"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
}

// Default returns a configuration that talks to a local Neo4j and Ollama.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "ollama",
			Model:          "granite4:micro-h",
			EmbeddingModel: "mxbai-embed-large:latest",
			BaseURL:        "http://localhost:11434",
			MaxRetries:     2,
			MaxTokens:      1000,
			Temperature:    0.7,
		},
		Graph: GraphConfig{
			URI:  "bolt://localhost:7687",
			User: "neo4j",
		},
		Retrieval: RetrievalConfig{
			Domain:              DomainDocuments,
			EmbeddingDimensions: 1024,
			CountFactor:         0.1,
			DefaultLimit:        5,
		},
		Persona: PersonaConfig{
			Backend:       "file",
			Path:          "data/persona.json",
			RedisKey:      "steinbot:persona",
			ContextFanOut: 5,
			HistoryWindow: 6,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Ingest: IngestConfig{
			SimilarityThreshold: 0.75,
			MinSharedTopics:     1,
			MinSharedEntities:   2,
			MaxContentLength:    10000,
			EmbedPrefixLength:   2000,
		},
		Server: ServerConfig{
			Port: "8080",
			Mode: "release",
		},
		Evaluation: EvaluationConfig{
			TraceDB:   "data/traces.db",
			K:         5,
			ReportDir: "evaluation/results",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "steinbot",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Concurrency: ConcurrencyConfig{
			BulkIngest: 4,
		},
	}
}

// Load reads a TOML file on top of Default. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// ApplyEnv overrides configuration values with environment variables when set.
func (c *Config) ApplyEnv() {
	setString(&c.Graph.URI, "NEO4J_URI")
	setString(&c.Graph.User, "NEO4J_USERNAME")
	setString(&c.Graph.User, "NEO4J_USER")
	setString(&c.Graph.Password, "NEO4J_PASSWORD")
	setString(&c.Graph.Database, "NEO4J_DATABASE")

	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")

	setString(&c.Retrieval.Domain, "STEINBOT_DOMAIN")
	setString(&c.Persona.Path, "PERSONA_PATH")
	setString(&c.Persona.Backend, "PERSONA_BACKEND")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Server.Port, "PORT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Telemetry.OTLPEndpoint, "OTLP_ENDPOINT")

	if v := os.Getenv("TELEMETRY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Telemetry.Enabled = b
		}
	}
}

// Validate checks the values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	switch c.Retrieval.Domain {
	case DomainDocuments, DomainReddit, DomainPapers:
	default:
		return fmt.Errorf("unknown retrieval domain %q", c.Retrieval.Domain)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "ollama", "openai", "gemini", "claude":
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}

	switch c.Persona.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("unknown persona backend %q", c.Persona.Backend)
	}

	if c.Ingest.SimilarityThreshold <= 0 || c.Ingest.SimilarityThreshold > 1 {
		return fmt.Errorf("ingest.similarity_threshold must be in (0, 1], got %v", c.Ingest.SimilarityThreshold)
	}
	if c.Ingest.MinSharedTopics < 1 || c.Ingest.MinSharedEntities < 1 {
		return fmt.Errorf("ingest shared-count thresholds must be positive")
	}
	if c.Retrieval.EmbeddingDimensions <= 0 {
		return fmt.Errorf("retrieval.embedding_dimensions must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
