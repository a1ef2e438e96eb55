package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"

	"meridian/internal/auth"
	"meridian/internal/capabilities"
	"meridian/internal/config"
	"meridian/internal/contextmgr"
	"meridian/internal/contextmgr/tokencache"
	"meridian/internal/graph"
	"meridian/internal/llmclient"
	"meridian/internal/llmclient/anthropic"
	"meridian/internal/llmclient/lorem"
	"meridian/internal/llmclient/openai"
	"meridian/internal/middleware"
	"meridian/internal/repository/postgres"
	"meridian/internal/service/llm/tools"
	"meridian/internal/service/llm/tools/external"
	"meridian/internal/toolexec"
	"meridian/internal/toolexec/local"
	"meridian/internal/toolexec/mcp"
	"meridian/internal/transport/sse"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logOutput := io.Writer(os.Stdout)
	if logFile, err := config.SetupLogFile("logs", 10); err != nil {
		log.Printf("warning: failed to set up log file, logging to stdout only: %v", err)
	} else {
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected", "max_conns", 25, "min_conns", 5)

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger}

	threadRepo := postgres.NewThreadRepository(repoConfig)
	messageRepo := postgres.NewMessageRepository(repoConfig)
	blockRepo := postgres.NewBlockRepository(repoConfig)

	llmRouter := buildLLMRouter(cfg, logger)

	toolClient, err := buildToolClient(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize tool execution: %v", err)
	}

	toolDescriptors, err := toolClient.ListTools(ctx)
	if err != nil {
		logger.Warn("failed to list tools at startup", "error", err)
	}

	executor := graph.New(llmRouter, toolClient,
		graph.WithLogger(logger),
		graph.WithDefaultMaxIterations(cfg.MaxIterations),
		graph.WithDefaultExecutionTimeout(cfg.ExecutionTimeoutSeconds),
		graph.WithDefaultToolTimeout(cfg.ToolTimeoutSeconds),
		graph.WithDefaultChannelCapacity(cfg.EventChannelCapacity),
		graph.WithEventIDs(cfg.Debug),
	)

	template, err := contextmgr.LoadTemplate(cfg.SummaryPromptPath, "")
	if err != nil {
		log.Fatalf("failed to load summary prompt template: %v", err)
	}
	tokenizer := buildTokenizer(cfg, logger)
	summarizer := contextmgr.NewLLMSummarizer(llmRouter, cfg.SummarizeModel)
	contextStore := postgres.NewContextStore(threadRepo, messageRepo)
	ctxManager := contextmgr.New(contextStore, tokenizer, summarizer, template, cfg.MaxContextTokens,
		contextmgr.WithLogger(logger))

	replayer := graph.NewReplayer(blockRepo)

	runConfig := graph.Config{Tools: toolDescriptors}
	sseHandler := sse.NewHandler(executor, blockRepo, replayer, ctxManager, messageRepo, runConfig, logger)

	capRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("failed to load model capabilities: %v", err)
	}

	jwtVerifier, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("failed to initialize JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Use(middleware.Recovery(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     strings.Join([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", middleware.AuthMiddleware(jwtVerifier))

	api.Get("/models", func(c *fiber.Ctx) error {
		providers := capRegistry.GetAllProviders()
		out := make(fiber.Map, len(providers))
		for _, p := range providers {
			models, err := capRegistry.ListProviderModels(p)
			if err != nil {
				continue
			}
			out[p] = models
		}
		return c.JSON(out)
	})

	api.Post("/threads", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(string)
		thread, err := threadRepo.CreateThread(c.Context(), userID, time.Now().Unix())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to create thread")
		}
		return c.JSON(thread)
	})

	api.Post("/threads/:threadID/messages", sseHandler.SendMessage)
	api.Get("/threads/:threadID/runs/:runID", sseHandler.Reconnect)

	logger.Info("server listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// buildLLMRouter wires every configured model provider adapter behind
// one dispatcher the graph's LLM node sees as a single llmclient.Client.
func buildLLMRouter(cfg *config.Config, logger *slog.Logger) *llmclient.Router {
	var clients []llmclient.Client

	if cfg.AnthropicAPIKey != "" {
		adapter, err := anthropic.New(cfg.AnthropicAPIKey)
		if err != nil {
			logger.Warn("anthropic adapter not available", "error", err)
		} else {
			clients = append(clients, adapter)
		}
	}
	if cfg.OpenAIAPIKey != "" {
		adapter, err := openai.New(cfg.OpenAIAPIKey)
		if err != nil {
			logger.Warn("openai adapter not available", "error", err)
		} else {
			clients = append(clients, adapter)
		}
	}
	// The lorem adapter always registers last: it only claims
	// "lorem-*" model ids, so it never shadows a real provider, and it
	// keeps local development and tests working without API keys.
	clients = append(clients, lorem.New())

	return llmclient.NewRouter(clients...)
}

// buildToolClient prefers a configured MCP server; otherwise it falls
// back to the in-process native tool registry.
func buildToolClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (toolexec.Client, error) {
	if strings.TrimSpace(cfg.MCPServerCommand) != "" || strings.TrimSpace(cfg.MCPServerURL) != "" {
		var args []string
		if cfg.MCPServerArgs != "" {
			args = strings.Fields(cfg.MCPServerArgs)
		}
		client, err := mcp.Connect(ctx, mcp.ServerConfig{
			Name:    "praxis-tools",
			Command: cfg.MCPServerCommand,
			Args:    args,
			URL:     cfg.MCPServerURL,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("connected to MCP tool server")
		return client, nil
	}

	registry := local.NewRegistry()
	if cfg.TavilyEnabled {
		tavily := external.NewTavilyClient(cfg.TavilyAPIKey)
		toolConfig := tools.DefaultToolConfig()
		registry.Register(toolexec.ToolDescriptor{
			Name:        "web_search",
			Description: "Search the web for current information via Tavily.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":       map[string]any{"type": "string"},
					"max_results": map[string]any{"type": "integer"},
					"topic":       map[string]any{"type": "string", "enum": []string{"general", "news", "finance"}},
				},
				"required": []string{"query"},
			},
		}, tools.NewWebSearchTool(tavily, toolConfig))
		logger.Info("registered web_search tool via Tavily")
	}
	return registry, nil
}

// buildTokenizer prefers counting tokens through Anthropic's API
// (cached) and falls back to a character-count heuristic whenever
// that call fails or no Anthropic key is configured.
func buildTokenizer(cfg *config.Config, logger *slog.Logger) contextmgr.Tokenizer {
	fallback := contextmgr.CharCountTokenizer{}
	if cfg.AnthropicAPIKey == "" {
		return fallback
	}
	adapter, err := anthropic.New(cfg.AnthropicAPIKey)
	if err != nil {
		logger.Warn("anthropic tokenizer not available, using character-count heuristic", "error", err)
		return fallback
	}
	primary := contextmgr.NewAnthropicTokenizer(adapter.RawClient(), cfg.SummarizeModel, tokencache.New(tokencache.Config{}))
	return &contextmgr.FallbackTokenizer{Primary: primary, Fallback: fallback, Logger: logger}
}
