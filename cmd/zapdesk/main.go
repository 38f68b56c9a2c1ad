// Package main contains the entrypoint for the zapdesk inbox service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"zapdesk/internal/app"
	"zapdesk/internal/chat"
	"zapdesk/internal/config"
	"zapdesk/internal/database"
	"zapdesk/internal/dedup"
	"zapdesk/internal/domain"
	"zapdesk/internal/events"
	"zapdesk/internal/gateway"
	"zapdesk/internal/logger"
	"zapdesk/internal/scheduler"
	"zapdesk/internal/server"
	"zapdesk/internal/suggest"
	"zapdesk/internal/tasks"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires all components together and blocks until shutdown. It
// returns the process exit code so main stays trivially testable.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	directory := domain.NewDirectory(cfg.Inbox.Departments, cfg.Inbox.Workflows, cfg.Inbox.Agents)

	var publisher chat.Publisher
	if cfg.Broker.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange, log)
		if err != nil {
			log.Error("Failed to connect to broker", "error", err)
			return 1
		}
		defer amqpPub.Close()
		publisher = amqpPub
	} else {
		log.Info("No broker configured, chat update broadcasting disabled")
	}

	manager := chat.NewManager(chat.NewReducer(directory, directory), store, publisher, directory, log)

	stored, err := store.LoadChats(ctx)
	if err != nil {
		log.Error("Failed to load persisted chats", "error", err)
		return 1
	}
	manager.Load(stored)
	log.Info("Loaded persisted chats", "count", len(stored))

	var deduper dedup.Deduper
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Warn("Failed to close redis client", "error", err)
			}
		}()
		deduper = dedup.NewRedisDeduper(redisClient, cfg.Redis.TTL, log)
	} else {
		log.Info("No redis configured, using in-process webhook dedup")
		deduper = dedup.NewMemoryDeduper(cfg.Redis.TTL)
	}

	dispatcher := gateway.NewClient(cfg.Provider, log)
	sender := chat.NewSender(manager, dispatcher, directory, directory, log)

	suggester, err := suggest.NewClient(ctx, cfg.Suggest, log)
	if err != nil {
		log.Error("Failed to initialize suggestion client", "error", err)
		return 1
	}

	srv := server.New(cfg.Server, server.Deps{
		Logger:       log,
		Manager:      manager,
		Sender:       sender,
		Deduper:      deduper,
		Suggester:    suggester,
		Agents:       directory,
		Workflows:    directory,
		WebhookToken: cfg.Server.WebhookToken,
	})

	sched, err := scheduler.New(log, cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Store:  store,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	runErr := app.New(log, srv, sched, cfg.Server.ShutdownTimeout).Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Service stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Service stopped gracefully")
	return 0
}
