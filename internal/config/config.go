package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	// LLM Configuration
	AnthropicAPIKey string
	OpenAIAPIKey    string
	TavilyAPIKey    string
	DefaultProvider string
	DefaultModel    string
	// Graph executor guardrails
	MaxIterations           int
	ExecutionTimeoutSeconds int
	ToolTimeoutSeconds      int
	EventChannelCapacity    int
	// Context manager
	MaxContextTokens     int
	SummaryPromptPath    string
	SummarizeModel       string
	// Debug flags
	Debug bool // Enables DEBUG features like SSE event IDs
	// Tool execution
	TavilyEnabled    bool
	MCPServerCommand string
	MCPServerArgs    string
	MCPServerURL     string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := supabaseURL + "/auth/v1/.well-known/jwks.json"

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: jwksURL,
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,
		// LLM Configuration
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		TavilyAPIKey:    getEnv("TAVILY_API_KEY", ""),
		DefaultProvider: getEnv("DEFAULT_PROVIDER", "anthropic"),
		DefaultModel:    getEnv("DEFAULT_MODEL", "claude-haiku-4-5-20251001"),
		// Graph executor guardrails
		MaxIterations:           max(MinIterations, min(getEnvInt("MAX_ITERATIONS", 25), MaxIterationsCeiling)),
		ExecutionTimeoutSeconds: getEnvInt("EXECUTION_TIMEOUT_SECONDS", 300),
		ToolTimeoutSeconds:      getEnvInt("TOOL_TIMEOUT_SECONDS", 30),
		EventChannelCapacity:    getEnvInt("EVENT_CHANNEL_CAPACITY", 1024),
		// Context manager
		MaxContextTokens:  getEnvInt("MAX_CONTEXT_TOKENS", 150000),
		SummaryPromptPath: getEnv("SUMMARY_PROMPT_PATH", ""),
		SummarizeModel:    getEnv("SUMMARIZE_MODEL", "claude-haiku-4-5-20251001"),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
		// Tool execution
		TavilyEnabled:    getEnv("TAVILY_API_KEY", "") != "",
		MCPServerCommand: getEnv("MCP_SERVER_COMMAND", ""),
		MCPServerArgs:    getEnv("MCP_SERVER_ARGS", ""),
		MCPServerURL:     getEnv("MCP_SERVER_URL", ""),
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	case "dev":
		return "dev_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
