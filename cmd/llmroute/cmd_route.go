package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Miguel57216/LLM-Route/internal/broker"
	"github.com/Miguel57216/LLM-Route/internal/store"
)

func newRouteCommand(a *app) *cobra.Command {
	var (
		routerName string
		threshold  float64
		model      string
	)
	cmd := &cobra.Command{
		Use:   "route [prompt...]",
		Short: "Route one prompt and print the decision as JSON",
		Example: `  llmroute route --router sw_ranking "Prove that there are infinitely many primes"
  llmroute route --model router-sw_ranking-0.3 "Say hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.newBroker()
			if err != nil {
				return err
			}
			req := broker.RouteRequest{
				Prompt: strings.Join(args, " "),
				Router: routerName,
				Model:  model,
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}
			res, err := b.Route(cmd.Context(), req, store.SourceCLI)
			if err != nil {
				return err
			}
			return writeJSONTo(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&routerName, "router", "", "router name (default: routing.default_router)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "win-rate threshold (default: routing.threshold)")
	cmd.Flags().StringVar(&model, "model", "", "router model name such as router-sw_ranking-0.3")
	return cmd
}

// newBroker builds a broker without a decision log or events, for one-shot
// commands.
func (a *app) newBroker() (*broker.Broker, error) {
	engines, err := broker.BuildEngines(a.cfg, a.dependencies())
	if err != nil {
		return nil, err
	}
	return broker.New(engines, a.cfg.Routing.DefaultRouter, nil, nil, a.cfg.Batch.Workers, a.logger)
}
