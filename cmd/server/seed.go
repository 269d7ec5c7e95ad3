package main

import (
	"context"
	"fmt"

	"greenledger/config"
	"greenledger/internal/history"
	"greenledger/internal/kv"
	"greenledger/internal/models"
	"greenledger/internal/qrcode"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedCount int
	seedForce bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write demo QR history entries",
	Long:  `Write demo QR history entries into the configured storage. Existing history is kept unless --force is given.`,
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", history.DefaultSeedCount, "number of entries to generate")
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "replace an existing history")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedCount <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	cfg := config.Load()
	ctx := context.Background()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	entries := history.SeedEntries(qrcode.Default(), seedCount)
	written := 0
	err = kv.UpdateJSON(ctx, a.store, kv.KeyQRHistory, func(v *[]models.QRHistoryEntry, exists bool) error {
		if exists && !seedForce {
			return kv.ErrSkip
		}
		*v = entries
		written = len(entries)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed history: %w", err)
	}

	if written == 0 {
		a.logger.Info("History already present, nothing written (use --force to replace)")
		return nil
	}
	a.logger.Info("QR history seeded",
		zap.Int("count", written),
		zap.String("backend", cfg.Storage.Backend))
	return nil
}
