package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/derslik/tutor/internal/ai"
	"github.com/derslik/tutor/internal/config"
	"github.com/derslik/tutor/internal/conversation"
	"github.com/derslik/tutor/internal/db"
	"github.com/derslik/tutor/internal/identity"
	"github.com/derslik/tutor/internal/models"
	"github.com/derslik/tutor/internal/prompt"
	"github.com/derslik/tutor/internal/quota"
	"github.com/derslik/tutor/internal/turn"
)

type jobMsg struct {
	JobID string `json:"job_id"`
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

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

	provider, err := reg.Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	store := &conversation.Router{
		Users: conversation.NewRepo(gdb),
		Anon:  conversation.NewAnonStore(rdb, cfg.AnonSessionTTL),
	}
	ledger := quota.NewLedger(gdb, rdb, cfg.MeterAnonymous, cfg.AnonTurnLimit, cfg.AnonSessionTTL)

	// async jobs skip speech synthesis, so no tts here
	orc := turn.NewOrchestrator(
		store,
		ledger,
		models.NewProfiles(gdb),
		prompt.NewAssembler(),
		provider,
		nil,
		cfg.ChatContextWindowSize,
		cfg.CompletionTimeout,
		cfg.SpeechTimeout,
	)

	jobs := turn.NewJobRepo(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// must match the publisher's declaration
	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				var m jobMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, orc, jobs, m.JobID); err != nil {
					log.Printf("worker=%d job %s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			deliveries <- d
		}
	}
}

func handleJob(ctx context.Context, orc *turn.Orchestrator, jobs *turn.JobRepo, jobID string) error {
	_ = jobs.MarkRunning(ctx, jobID)

	j, err := jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	res, err := orc.RunText(ctx, identity.User(j.UserID), j.Prompt)
	if err != nil {
		_ = jobs.MarkFailed(ctx, jobID, err.Error())
		// quota and validation outcomes are final, do not retry them
		if errors.Is(err, turn.ErrQuotaExhausted) || errors.Is(err, turn.ErrEmptyMessage) {
			return nil
		}
		return err
	}

	return jobs.MarkSucceeded(ctx, jobID, res.AssistantTurnID)
}
