package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/functree/modules/functionality/infrastructure/persistence"
	"github.com/iota-uz/functree/modules/functionality/services"
	"github.com/iota-uz/functree/pkg/composables"
	"github.com/iota-uz/functree/pkg/logging"
)

type benchReport struct {
	Scenario   string  `json:"scenario"`
	Iterations int     `json:"iterations"`
	Ties       int     `json:"ties"`
	MinKey     float64 `json:"min_key"`
	MaxKey     float64 `json:"max_key"`
	Finite     bool    `json:"finite"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	StartedAt  string  `json:"started_at"`
	FinishedAt string  `json:"finished_at"`
}

func newBenchCmd() *cobra.Command {
	var (
		iterations int
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Alternate ABOVE/BELOW moves between two siblings in memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations <= 0 {
				return fmt.Errorf("--iterations must be positive")
			}
			report, err := runAlternatingMoves(cmd.Context(), iterations)
			if err != nil {
				return err
			}
			raw, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			if outputPath == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			}
			if err := ensureDir(outputPath); err != nil {
				return err
			}
			return os.WriteFile(outputPath, append(raw, '\n'), 0o644)
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", 2000, "number of moves")
	cmd.Flags().StringVar(&outputPath, "output", "", "write the JSON report to this path")
	return cmd
}

// runAlternatingMoves moves the first of two siblings below and then above the
// second, iterations times, and records how the keys behave.
func runAlternatingMoves(ctx context.Context, iterations int) (benchReport, error) {
	ctx = composables.WithLogger(ctx, logrus.NewEntry(logging.ConsoleLogger(logrus.ErrorLevel)))
	repo := persistence.NewMemoryRepository()
	svc := services.NewFunctionalityService(repo, repo, nil, nil)
	tenantID := uuid.New()

	report := benchReport{
		Scenario:   "alternating_moves",
		Iterations: iterations,
		MinKey:     math.Inf(1),
		MaxKey:     math.Inf(-1),
		Finite:     true,
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	folder, err := svc.CreateNode(ctx, tenantID, services.CreateNodeInput{Kind: services.NodeKindFolder, Name: "bench"})
	if err != nil {
		return report, err
	}
	a, err := svc.CreateNode(ctx, tenantID, services.CreateNodeInput{Kind: services.NodeKindLeaf, Name: "a", ReferenceID: &folder.ID})
	if err != nil {
		return report, err
	}
	b, err := svc.CreateNode(ctx, tenantID, services.CreateNodeInput{Kind: services.NodeKindLeaf, Name: "b", ReferenceID: &folder.ID})
	if err != nil {
		return report, err
	}

	samples := make([]float64, 0, iterations)
	for i := 0; i < iterations; i++ {
		pos := services.PositionBelow
		if i%2 == 1 {
			pos = services.PositionAbove
		}
		started := time.Now()
		moved, err := svc.MoveNode(ctx, tenantID, services.MoveNodeInput{NodeID: a.ID, ReferenceID: &b.ID, Position: pos})
		if err != nil {
			return report, fmt.Errorf("move %d: %w", i, err)
		}
		samples = append(samples, float64(time.Since(started).Microseconds())/1000)

		siblings, err := repo.FindChildren(ctx, tenantID, &folder.ID)
		if err != nil {
			return report, err
		}
		for j, s := range siblings {
			report.observeKey(s.OrderKey)
			if j > 0 && siblings[j-1].OrderKey == s.OrderKey && (s.ID == moved.ID || siblings[j-1].ID == moved.ID) {
				report.Ties++
			}
		}
	}

	report.P50Ms, report.P95Ms, report.P99Ms = percentiles(samples)
	report.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	return report, nil
}

func (r *benchReport) observeKey(k float64) {
	if math.IsNaN(k) || math.IsInf(k, 0) || k < 0 {
		r.Finite = false
	}
	r.MinKey = math.Min(r.MinKey, k)
	r.MaxKey = math.Max(r.MaxKey, k)
}
