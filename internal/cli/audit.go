package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/model"
)

var auditOut string

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <claim.json>",
	Short: "Audit a single claim against indexed policies",
	Long: `Audit runs one claim through the full workflow: retrieve policy
evidence, draft a decision, verify citations, refine if the draft
fabricated evidence, and score confidence. The result is printed as
JSON and recorded in the store.

Example:
  claimaudit audit claim.json
  claimaudit audit claim.json --json result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditOut, "json", "", "write the audit result to this path instead of stdout")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := loadConfig()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read claim file: %w", err)
	}
	var claim model.Claim
	if err := json.Unmarshal(raw, &claim); err != nil {
		return fmt.Errorf("cannot parse claim file: %w", err)
	}
	claim.EnsureID()

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

	service := buildAuditService(cfg, embedder, chunks, provider, logger)

	out, err := service.Audit(ctx, claim)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	if err := records.SaveClaim(ctx, claim); err != nil {
		logger.Warn("failed to record claim", zap.Error(err))
	}
	if err := records.SaveAudit(ctx, out); err != nil {
		logger.Warn("failed to record audit", zap.Error(err))
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode result: %w", err)
	}

	if auditOut != "" {
		if err := os.WriteFile(auditOut, encoded, 0644); err != nil {
			return fmt.Errorf("cannot write result: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Audit %s: %s (confidence %.2f) written to %s\n",
			out.AuditID, out.Decision, out.Confidence, auditOut)
		return nil
	}

	fmt.Println(string(encoded))
	return nil
}
