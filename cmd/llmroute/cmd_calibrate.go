package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Miguel57216/LLM-Route/internal/batch"
	"github.com/Miguel57216/LLM-Route/internal/router"
)

type calibration struct {
	Router         string  `json:"router"`
	StrongFraction float64 `json:"strong_fraction"`
	Threshold      float64 `json:"threshold"`
	Model          string  `json:"model"`
	Prompts        int     `json:"prompts"`
	Failed         int     `json:"failed"`
}

func newCalibrateCommand(a *app) *cobra.Command {
	var (
		routerName     string
		strongFraction float64
	)
	cmd := &cobra.Command{
		Use:   "calibrate <prompts-file>",
		Short: "Find the threshold that routes a given fraction of prompts to the strong model",
		Long: `Estimate the strong model's win rate for every prompt in the file (one per
line, "-" for stdin) and print the threshold at which the requested fraction
of them would be routed to the strong model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts, err := readPrompts(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(prompts) == 0 {
				return errors.New("no prompts to calibrate on")
			}
			b, err := a.newBroker()
			if err != nil {
				return err
			}
			if routerName == "" {
				routerName = b.DefaultRouter()
			}

			results, summary, err := b.RouteBatch(cmd.Context(), routerName, prompts, nil)
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Err != nil {
					a.logger.Warn("estimate failed", "index", r.Index, "error", r.Err)
				}
			}
			threshold, err := batch.CalibrateThreshold(batch.WinRates(results), strongFraction)
			if err != nil {
				return err
			}
			return writeJSONTo(cmd.OutOrStdout(), calibration{
				Router:         routerName,
				StrongFraction: strongFraction,
				Threshold:      threshold,
				Model:          router.ModelName(routerName, threshold),
				Prompts:        summary.Total,
				Failed:         summary.Failed,
			})
		},
	}
	cmd.Flags().StringVar(&routerName, "router", "", "router name (default: routing.default_router)")
	cmd.Flags().Float64Var(&strongFraction, "strong-fraction", 0.5, "fraction of prompts to route to the strong model")
	return cmd
}
