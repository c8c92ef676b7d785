package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"example.com/socialfeed/cmd/server"
	"example.com/socialfeed/cmd/worker"
	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/cache"
	"example.com/socialfeed/internal/feed"
	config "example.com/socialfeed/internal/init"
	"example.com/socialfeed/internal/store"
	"example.com/socialfeed/internal/upload"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	mode := cfg.Mode

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Postgres store connection
	st, err := store.New(ctx)
	if err != nil {
		log.Fatalf("Postgres connection failed: %v", err)
	}
	defer st.Close()

	// Initialize the redis feed cache. An unreachable cache at startup is
	// fatal; once running, cache failures degrade to store queries.
	feedCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.FeedCacheTTL)
	defer feedCache.Close()
	if err := feedCache.Ping(ctx); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Run application depending on selected mode
	switch mode {
	case "server":
		kafkaWriter, err := appkafka.NewKafkaWriter(kafkaCfg)
		if err != nil {
			log.Fatalf("Kafka writer init failed: %v", err)
		}
		defer kafkaWriter.Close()

		svc := feed.New(st, feedCache, upload.Disabled{}, cfg.FeedCacheMax)
		server.Run(ctx, svc, st, kafkaWriter, cfg.ServerAddr, cfg.FeedLimit)
	case "worker":
		kafkaReader := appkafka.NewKafkaReader(kafkaCfg)
		defer kafkaReader.Close()

		w := worker.New(st, feedCache, kafkaReader, 0, 0, cfg.FeedCacheMax)
		w.Run(ctx)
	default:
		log.Fatalf("unknown mode: %s", mode)
	}

	log.Println("Shutdown completed")
}
