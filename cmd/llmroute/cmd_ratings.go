package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Miguel57216/LLM-Route/internal/arena"
	"github.com/Miguel57216/LLM-Route/internal/estimator"
	"github.com/Miguel57216/LLM-Route/internal/rating"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newRatingsCommand(a *app) *cobra.Command {
	var (
		battlesPath string
		numTiers    int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "ratings",
		Short: "Fit and print the model ratings and tiers of an arena dataset",
		Long: `Fit unweighted ratings over every battle in the dataset and print them with
their tier. The dataset defaults to routers.sw_ranking.battles_path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			swParams := a.cfg.Routers[estimator.NameSWRanking]
			if battlesPath == "" {
				battlesPath, _ = swParams["battles_path"].(string)
			}
			if battlesPath == "" {
				return errors.New("no battles dataset: pass --battles or set routers.sw_ranking.battles_path")
			}
			if !cmd.Flags().Changed("tiers") {
				if n, ok := intParam(swParams["num_tiers"]); ok {
					numTiers = n
				}
			}

			battles, err := arena.LoadBattles(battlesPath)
			if err != nil {
				return err
			}
			ratings, err := rating.Fit(battles, nil, rating.DefaultOptions())
			if err != nil {
				return err
			}
			tiers, err := rating.AssignTiers(ratings, numTiers)
			if err != nil {
				return err
			}

			ranked := ratings.Ranked()
			if asJSON {
				type row struct {
					rating.Entry
					Tier string `json:"tier"`
				}
				rows := make([]row, len(ranked))
				for i, e := range ranked {
					rows[i] = row{Entry: e, Tier: tiers.Label(e.Name)}
				}
				return writeJSONTo(cmd.OutOrStdout(), rows)
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("#", "MODEL", "RATING", "TIER").
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				})
			for i, e := range ranked {
				t.Row(strconv.Itoa(i+1), e.Name, fmt.Sprintf("%.1f", e.Rating), tiers.Label(e.Name))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			fmt.Fprintf(cmd.OutOrStdout(), "%d battles, %d models, %d tiers\n", len(battles), len(ranked), tiers.NumTiers())
			return nil
		},
	}
	cmd.Flags().StringVar(&battlesPath, "battles", "", "battle dataset (.json, .jsonl, optionally .gz or .zst)")
	cmd.Flags().IntVar(&numTiers, "tiers", estimator.DefaultNumTiers, "number of tiers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// intParam reads an integer router parameter as decoded from YAML or TOML.
func intParam(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	}
	return 0, false
}
