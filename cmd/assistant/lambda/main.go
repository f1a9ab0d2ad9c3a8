package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"recipeassistant"
	"recipeassistant/memory"
	"recipeassistant/nutrition"
	"recipeassistant/oracle"
	"recipeassistant/oracle/bedrock"
	"recipeassistant/retrieval"
	"recipeassistant/router"
	"recipeassistant/storage"
	"recipeassistant/tools"
)

type Params struct {
	Message string `json:"message"`
}

type Results struct {
	Output string `json:"output"`
}

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
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

		// S3 config from env
		s3Bucket := os.Getenv("ARTIFACTS_S3_BUCKET")
		recipesKey := os.Getenv("ARTIFACTS_RECIPES_S3_KEY")
		if s3Bucket == "" || recipesKey == "" {
			return Results{}, fmt.Errorf("missing S3 config: ARTIFACTS_S3_BUCKET, ARTIFACTS_RECIPES_S3_KEY must be set")
		}

		awsCfg, err := config.LoadDefaultConfig(ctx,
			config.WithRetryMaxAttempts(5),
			config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(agentConfig.OracleTimeout)),
		)
		if err != nil {
			return Results{}, fmt.Errorf("failed to load AWS config: %w", err)
		}

		engine := retrieval.NewEngine(storage.NewS3RecipeState(s3.NewFromConfig(awsCfg), s3Bucket, recipesKey))
		if err := engine.Index(ctx); err != nil {
			slog.Error("SETUP: Failed to index recipes from S3", "error", err)
			return Results{}, err
		}
		slog.Info("SETUP: S3 recipe state indexed")

		// An unset MODEL_ID leaves ModelID empty, which selects the Bedrock default model.
		o := oracle.New(bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
			ModelID:     modelConfig.ModelID,
			MaxTokens:   modelConfig.MaxTokens,
			Temperature: modelConfig.Temperature,
			TopP:        modelConfig.TopP,
		}))

		// Each invocation is a fresh conversation.
		conv := memory.NewConversation()
		registry, err := tools.NewRegistry(
			tools.NewQAChat(o, conv),
			tools.NewRecipeSearch(engine),
			tools.NewNutritionInfo(o, nutrition.NewClient(nutrition.ClientOpts{
				Endpoint:   agentConfig.NutritionEndpoint,
				AppID:      credentials.EdamamAppID,
				AppKey:     credentials.EdamamAppKey,
				HTTPClient: &http.Client{Timeout: agentConfig.ToolTimeout},
			})),
			tools.NewCalculator(o),
		)
		if err != nil {
			slog.Error("SETUP: Failed to create tool registry", "error", err)
			return Results{}, err
		}

		tracerProvider, meterProvider, otelShutdown, err := recipeassistant.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		r := router.New(o, registry, conv,
			router.WithMaxIterations(agentConfig.MaxIterations),
			router.WithToolTimeout(agentConfig.ToolTimeout),
			router.WithOracleTimeout(agentConfig.OracleTimeout),
			router.WithLogger(recipeassistant.NewStdoutCoordinationLogger()),
			router.WithTracer(tracerProvider.Tracer(recipeassistant.TracerNameLambda)),
			router.WithMeter(meterProvider.Meter(recipeassistant.TracerNameLambda)),
		)

		output, err := r.Handle(ctx, params.Message)
		if err != nil {
			slog.Error("RESULT: Error handling message", "error", err)
			return Results{Output: router.UserFacingError(err)}, nil
		}

		return Results{Output: output}, nil
	}

	lambda.Start(fn)
}
