package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	"github.com/jonathan/lecture-pipeline/internal/queue"
	"github.com/jonathan/lecture-pipeline/internal/server"
	"github.com/jonathan/lecture-pipeline/internal/store/postgres"
	"github.com/jonathan/lecture-pipeline/internal/worker"
)

var (
	servePort    int
	serveWorkers int
	serveVariant string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server and worker pool",
	Long: `Start an HTTP server that accepts lecture jobs, plus a Redis-backed worker
pool that processes them. Without REDIS_URL, jobs are processed in-process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 4, "Worker pool size")
	serveCmd.Flags().StringVar(&serveVariant, "variant", "", "Pipeline variant: legacy or vision_first")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	databaseURL, err := requireEnv("DATABASE_URL")
	if err != nil {
		return err
	}
	apiKey, err := requireEnv("GEMINI_API_KEY")
	if err != nil {
		return err
	}
	speechURL, err := requireEnv("SPEECH_URL")
	if err != nil {
		return err
	}

	variant, err := parseVariant(serveVariant)
	if err != nil {
		return err
	}

	st, err := postgres.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	llmClient, err := newLLMClient(ctx, apiKey)
	if err != nil {
		return err
	}
	defer llmClient.Close() //nolint:errcheck

	collab := buildCollaborators(llmClient, speechURL, os.Getenv("SPEECH_API_KEY"))
	orch := pipeline.New(st, collab, pipeline.WithVariant(variant))

	// With Redis configured, the worker pool owns processing; otherwise the
	// server processes jobs in-process.
	var q queue.Queue
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close() //nolint:errcheck

		q = queue.NewRedisQueue(rdb, "lecture:jobs")
		pool := worker.NewPool(q, worker.NewPipelineProcessor(orch), serveWorkers)
		reaper := worker.NewReaper(q, time.Minute)
		go pool.Run(ctx)
		go reaper.Run(ctx)
	}

	srv, err := server.New(server.Config{
		Port:         servePort,
		Store:        st,
		Orchestrator: orch,
		Queue:        q,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
