package main

import (
	"context"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/derslik/tutor/internal/ai"
	"github.com/derslik/tutor/internal/config"
	"github.com/derslik/tutor/internal/conversation"
	"github.com/derslik/tutor/internal/db"
	"github.com/derslik/tutor/internal/httpapi"
	"github.com/derslik/tutor/internal/httpapi/handlers"
	"github.com/derslik/tutor/internal/models"
	"github.com/derslik/tutor/internal/prompt"
	"github.com/derslik/tutor/internal/quota"
	"github.com/derslik/tutor/internal/speech"
	"github.com/derslik/tutor/internal/store/rabbitmq"
	"github.com/derslik/tutor/internal/turn"
)

func providerRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	return reg
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	provider, err := providerRegistry(cfg).Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	store := &conversation.Router{
		Users: conversation.NewRepo(gdb),
		Anon:  conversation.NewAnonStore(rdb, cfg.AnonSessionTTL),
	}
	ledger := quota.NewLedger(gdb, rdb, cfg.MeterAnonymous, cfg.AnonTurnLimit, cfg.AnonSessionTTL)
	tts := speech.NewEdgeTTS(cfg.TTSCommand, cfg.TTSVoice, cfg.TTSRate)

	orc := turn.NewOrchestrator(
		store,
		ledger,
		models.NewProfiles(gdb),
		prompt.NewAssembler(),
		provider,
		tts,
		cfg.ChatContextWindowSize,
		cfg.CompletionTimeout,
		cfg.SpeechTimeout,
	)

	// async path is optional: the server still serves sync turns when the
	// broker is down
	var rabbit *rabbitmq.Publisher
	if p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		log.Printf("rabbit unavailable, async asks disabled: %v", err)
	} else {
		rabbit = p
		defer rabbit.Close()
	}

	h := handlers.NewHandler(gdb, cfg, orc, store, ledger, turn.NewJobRepo(gdb), rabbit)
	r := httpapi.NewRouter(cfg, h)

	log.Printf("server listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
