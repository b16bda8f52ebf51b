package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"keeper-bot/handler"
	"keeper-bot/internal/integrations/openai"
	"keeper-bot/internal/integrations/paramstore"
	"keeper-bot/internal/integrations/telegram"
	"keeper-bot/internal/repository"
	"keeper-bot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	tables := repository.Tables{
		UserData:     mustEnv("USER_TABLE"),
		Meta:         mustEnv("META_TABLE"),
		Messages:     mustEnv("USER_MESSAGES_TABLE"),
		KeywordIndex: mustEnv("KEYWORD_INDEX_TABLE"),
	}
	paramPrefix := mustEnv("PARAM_PREFIX")
	openaiModel := os.Getenv("OPENAI_MODEL")
	historyLimit := envInt("HISTORY_LIMIT", 10)
	searchLimit := envInt("SEARCH_LIMIT", 10)
	pollerEnabled := envBool("ENABLE_POLLER", true)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), tables)
	if err != nil {
		slog.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}
	tgClient, err := telegram.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create Telegram client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix, openaiModel)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	bot, err := usecase.NewBotService(store, tgClient, openaiClient, historyLimit, searchLimit)
	if err != nil {
		slog.Error("failed to create bot service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(bot, pollerEnabled)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
