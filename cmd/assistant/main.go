package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recipeassistant"
	"recipeassistant/memory"
	"recipeassistant/nutrition"
	"recipeassistant/oracle"
	"recipeassistant/oracle/bedrock"
	"recipeassistant/oracle/mock"
	"recipeassistant/oracle/ollama"
	"recipeassistant/oracle/openai"
	"recipeassistant/retrieval"
	embed "recipeassistant/retrieval/ollama"
	"recipeassistant/router"
	"recipeassistant/slack"
	"recipeassistant/storage"
	"recipeassistant/tools"
)

var demoMessages = []string{
	"Suggest a recipe",
	"What is the nutritional value of the previous recipe",
}

func main() {
	ctx := context.Background()

	var modelConfig recipeassistant.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var credentials recipeassistant.CredentialsConfig
	if err := envdecode.Decode(&credentials); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var agentConfig recipeassistant.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	slog.SetDefault(recipeassistant.NewLogger(os.Stderr, agentConfig.LogLevel))

	model, err := newChatModel(ctx, modelConfig, credentials, agentConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create chat model", "provider", modelConfig.Provider, "error", err)
		return
	}
	o := oracle.New(model)

	var engineOpts []retrieval.Option
	if agentConfig.EmbeddingModel != "" {
		engineOpts = append(engineOpts, retrieval.WithEmbedder(embed.NewEmbedder(embed.EmbedderConfig{
			BaseURL: agentConfig.BaseOllamaEndpoint,
			Model:   agentConfig.EmbeddingModel,
		})))
		slog.Info("SETUP: Recipe retrieval uses embeddings", "model", agentConfig.EmbeddingModel)
	}
	engine := retrieval.NewEngine(storage.NewFileRecipeState(agentConfig.ArtifactsRecipesPath), engineOpts...)
	if err := engine.Index(ctx); err != nil {
		slog.Error("SETUP: Failed to index recipes", "path", agentConfig.ArtifactsRecipesPath, "error", err)
		return
	}

	nutritionClient := nutrition.NewClient(nutrition.ClientOpts{
		Endpoint:   agentConfig.NutritionEndpoint,
		AppID:      credentials.EdamamAppID,
		AppKey:     credentials.EdamamAppKey,
		HTTPClient: &http.Client{Timeout: agentConfig.ToolTimeout},
	})

	conv := memory.NewConversation()
	registry, err := tools.NewRegistry(
		tools.NewQAChat(o, conv),
		tools.NewRecipeSearch(engine),
		tools.NewNutritionInfo(o, nutritionClient),
		tools.NewCalculator(o),
	)
	if err != nil {
		slog.Error("SETUP: Failed to create tool registry", "error", err)
		return
	}

	logger, cleanup, err := newCoordinationLogger(agentConfig.CoordinationLogDir, cmp.Or(modelConfig.ModelID, modelConfig.Provider))
	if err != nil {
		slog.Error("SETUP: Failed to create coordination logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("Failed to flush coordination log", "error", err)
		}
	}()

	tracerProvider, meterProvider, otelShutdown, err := recipeassistant.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	tracer := tracerProvider.Tracer(recipeassistant.TracerNameRouter)
	ctx, span := tracer.Start(ctx, recipeassistant.TracerNameRouter, trace.WithAttributes(
		attribute.String("model.provider", modelConfig.Provider),
		attribute.String("model.id", modelConfig.ModelID),
		attribute.Int("model.max_tokens", int(modelConfig.MaxTokens)),
		attribute.Float64("model.temperature", float64(modelConfig.Temperature)),
		attribute.Float64("model.top_p", float64(modelConfig.TopP)),
	))
	defer span.End()

	r := router.New(o, registry, conv,
		router.WithMaxIterations(agentConfig.MaxIterations),
		router.WithToolTimeout(agentConfig.ToolTimeout),
		router.WithOracleTimeout(agentConfig.OracleTimeout),
		router.WithLogger(logger),
		router.WithTracer(tracer),
		router.WithMeter(meterProvider.Meter(recipeassistant.TracerNameRouter)),
	)

	slackClient := slack.NewClient(agentConfig.SlackWebhookURL, &http.Client{Timeout: 10 * time.Second})

	messages := demoMessages
	if len(os.Args) > 1 {
		messages = os.Args[1:]
	}

	for _, message := range messages {
		fmt.Printf("User: %s\n", message)

		answer, err := r.Handle(ctx, message)
		if err != nil {
			slog.Error("RESULT: Error handling message", "message", message, "error", err)
			answer = router.UserFacingError(err)
		}
		fmt.Printf("Agent: %s\n\n", answer)

		if slackClient.Enabled() {
			if err := slackClient.PostExchange(ctx, "", message, answer); err != nil {
				slog.Error("Failed to post exchange to Slack", "error", err)
			}
		}
	}

	if agentConfig.Debug {
		recipeassistant.Dump(conv.Turns())
	}
}

// newChatModel builds the configured provider's chat model. An empty model
// id selects the provider's own default model.
func newChatModel(
	ctx context.Context,
	modelConfig recipeassistant.ModelConfig,
	credentials recipeassistant.CredentialsConfig,
	agentConfig recipeassistant.AgentConfig,
) (oracle.ChatModel, error) {
	switch modelConfig.Provider {
	case "openai":
		return openai.NewClient(openai.ClientOpts{
			APIKey:      credentials.OpenAIAPIKey,
			HTTPClient:  &http.Client{Timeout: agentConfig.OracleTimeout},
			ModelID:     modelConfig.ModelID,
			MaxTokens:   int(modelConfig.MaxTokens),
			Temperature: modelConfig.Temperature,
			TopP:        modelConfig.TopP,
		}), nil
	case "bedrock":
		brc, err := newBedrockRuntimeClient(ctx, agentConfig.OracleTimeout)
		if err != nil {
			return nil, err
		}
		return bedrock.NewLLMClient(brc, bedrock.LLMOptions{
			ModelID:     modelConfig.ModelID,
			MaxTokens:   modelConfig.MaxTokens,
			Temperature: modelConfig.Temperature,
			TopP:        modelConfig.TopP,
		}), nil
	case "ollama":
		return ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: agentConfig.BaseOllamaEndpoint,
			ModelID:      modelConfig.ModelID,
			HTTPClient:   &http.Client{Timeout: agentConfig.OracleTimeout},
		}), nil
	case "mock":
		return mock.NewChatModel(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", modelConfig.Provider)
	}
}

func newBedrockRuntimeClient(ctx context.Context, timeout time.Duration) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRetryMaxAttempts(5),
		config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(timeout)),
	)
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

func newCoordinationLogger(dir, modelID string) (recipeassistant.CoordinationLogger, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := recipeassistant.NewCoordinationLogFilePath(dir, modelID)
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := recipeassistant.NewFileCoordinationLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
