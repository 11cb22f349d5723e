package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/ingest"
	"github.com/apca/claimaudit/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve runs the ClaimAudit HTTP API:
- POST /v1/policies  ingest a policy document
- POST /v1/claims    submit a claim
- POST /v1/audits    audit a claim against indexed policies
- POST /v1/feedback  record a human reviewer verdict

Example:
  claimaudit serve
  claimaudit serve --addr :9090
  DATABASE_URL=postgres://... claimaudit serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := loadConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to build embedder: %w", err)
	}

	chunks, records, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = chunks.Close() }()
	defer func() { _ = records.Close() }()

	provider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(
		ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		embedder, chunks, logger)
	service := buildAuditService(cfg, embedder, chunks, provider, logger)

	srv := server.New(server.Deps{
		Store:    records,
		Chunks:   chunks,
		Pipeline: pipeline,
		Auditor:  service,
		Logger:   logger,
	})

	logger.Info("starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("vector_backend", cfg.Vector.Backend))

	if verbose {
		fmt.Fprintf(os.Stderr, "Listening on %s\n", cfg.Server.Addr)
	}
	return srv.Run(cfg.Server.Addr)
}
