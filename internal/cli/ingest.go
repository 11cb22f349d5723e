package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/apca/claimaudit/internal/ingest"
	"github.com/apca/claimaudit/internal/model"
	"github.com/apca/claimaudit/internal/worker"
)

var (
	ingestPayer         string
	ingestEffectiveDate string
	ingestWorkers       int
	ingestTimeout       time.Duration
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file|directory>...",
	Short: "Ingest policy documents into the chunk index",
	Long: `Ingest chunks, embeds and indexes policy documents so audits can
retrieve them. Accepts markdown, plain text and HTML files; directories
are walked for supported extensions. Policy names default to the file
name.

Example:
  claimaudit ingest --payer "Acme Health" policies/
  claimaudit ingest --payer "Acme Health" --effective-date 2025-01-01 knee.md shoulder.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestPayer, "payer", "", "payer the policies belong to (required)")
	ingestCmd.Flags().StringVar(&ingestEffectiveDate, "effective-date", "", "effective date (YYYY-MM-DD)")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent documents (overrides config)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "total timeout for the batch")
	_ = ingestCmd.MarkFlagRequired("payer")
}

var ingestExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".html":     true,
	".htm":      true,
}

// collectDocuments expands the argument list into individual files
func collectDocuments(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && ingestExtensions[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("cannot walk %s: %w", arg, err)
		}
	}
	return paths, nil
}

func policyName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(name, "_", " ")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	cfg := loadConfig()
	if ingestWorkers > 0 {
		cfg.Ingest.Workers = ingestWorkers
	}

	var effectiveDate time.Time
	if ingestEffectiveDate != "" {
		parsed, err := time.Parse("2006-01-02", ingestEffectiveDate)
		if err != nil {
			return fmt.Errorf("effective-date must be YYYY-MM-DD: %w", err)
		}
		effectiveDate = parsed
	}

	paths, err := collectDocuments(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no policy documents found")
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

	pipeline := ingest.NewPipeline(
		ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		embedder, chunks, logger)
	limiter := worker.NewLimiter(cfg.Ingest.RequestsPerSecond, cfg.Ingest.Workers)

	fmt.Fprintf(os.Stderr, "Ingesting %d documents with %d workers...\n", len(paths), cfg.Ingest.Workers)

	metaByID := make(map[string]model.PolicyMetadata, len(paths))
	pool := worker.NewPool(cfg.Ingest.Workers)
	pool.Start()
	for _, path := range paths {
		meta := model.PolicyMetadata{
			PolicyID:      uuid.NewString(),
			Name:          policyName(path),
			Payer:         ingestPayer,
			EffectiveDate: effectiveDate,
			Status:        "active",
			CreatedAt:     time.Now().UTC(),
		}
		metaByID[meta.PolicyID] = meta
		pool.Submit(worker.IngestJob{
			Path:     path,
			Meta:     meta,
			Pipeline: pipeline,
			Limiter:  limiter,
		})
	}
	results := pool.Wait()

	successCount := 0
	failureCount := 0
	for _, r := range results {
		res, ok := r.(worker.IngestResult)
		if !ok {
			continue
		}
		if res.Err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", res.Path, res.Err)
			continue
		}

		meta := metaByID[res.PolicyID]
		meta.ChunkCount = res.Chunks
		if err := records.SavePolicy(ctx, meta); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "FAIL %s: save metadata: %v\n", res.Path, err)
			continue
		}
		successCount++
		fmt.Fprintf(os.Stderr, "OK   %s (%d chunks, policy %s)\n", res.Path, res.Chunks, res.PolicyID)
	}

	fmt.Fprintf(os.Stderr, "\nIngested %d of %d documents (%d failed)\n", successCount, len(paths), failureCount)
	if failureCount > 0 {
		return fmt.Errorf("%d documents failed", failureCount)
	}
	return nil
}
