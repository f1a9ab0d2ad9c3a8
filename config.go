package recipeassistant

import "time"

// ModelConfig selects the chat model. An empty ModelID leaves the choice to
// the provider's default model.
type ModelConfig struct {
	Provider    string  `env:"ORACLE_PROVIDER,default=openai"`
	ModelID     string  `env:"MODEL_ID"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1024"`
	Temperature float32 `env:"TEMPERATURE,default=0"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

// CredentialsConfig holds the upstream credentials. Missing values are not
// validated here; they surface later as authentication failures.
type CredentialsConfig struct {
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	EdamamAppID  string `env:"EDAMAM_APP_ID"`
	EdamamAppKey string `env:"EDAMAM_APP_KEY"`
}

type AgentConfig struct {
	ArtifactsRecipesPath string        `env:"ARTIFACTS_RECIPES_PATH,default=artifacts/recipes.json"`
	BaseOllamaEndpoint   string        `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	EmbeddingModel       string        `env:"EMBEDDING_MODEL"`
	MaxIterations        int           `env:"MAX_ITERATIONS,default=5"`
	ToolTimeout          time.Duration `env:"TOOL_TIMEOUT,default=30s"`
	OracleTimeout        time.Duration `env:"ORACLE_TIMEOUT,default=60s"`
	NutritionEndpoint    string        `env:"NUTRITION_ENDPOINT,default=https://api.edamam.com/api/nutrition-details"`
	SlackWebhookURL      string        `env:"SLACK_WEBHOOK_URL"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	CoordinationLogDir   string        `env:"COORDINATION_LOG_DIR,default=./logs"`
	Debug                bool          `env:"DEBUG,default=false"`
}
