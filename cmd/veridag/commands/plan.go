package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/veridag/veridag/pkg/engine"
)

func newPlanCommand() *cobra.Command {
	var (
		file    string
		outFile string
		dotFile string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan an execution graph into ordered stages",
		Long: `Compile a statement file and group the resulting graph into
dependency-ordered execution stages.

The plan:
  - Rejects graphs with dependency cycles, reporting the cycle path
  - Places every node one stage after its deepest dependency
  - Marks stages with more than one node as parallel`,
		Example: `  # Plan and print stages
  veridag plan -f statements.yaml

  # Plan with a DOT visualization of the staged graph
  veridag plan -f statements.yaml --dot plan.dot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, warnings, err := compileFile(file)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				log.Warn().
					Str("code", w.Code).
					Str("declaration", w.Declaration).
					Msg(w.Message)
			}

			plan, err := engine.NewPlanner().Plan(graph)
			if err != nil {
				return err
			}

			log.Info().
				Str("graph", graph.Meta.Name).
				Int("stages", len(plan.Stages)).
				Dur("estimated", plan.EstimatedDuration).
				Msg("Plan built")

			if dotFile != "" {
				if err := os.WriteFile(dotFile, []byte(plan.ToDOT()), 0644); err != nil {
					return fmt.Errorf("failed to write DOT file: %w", err)
				}
				log.Info().Str("path", dotFile).Msg("DOT graph written")
			}

			if jsonOutput || outFile != "" {
				return writeJSON(outFile, plan)
			}

			for _, stage := range plan.Stages {
				mode := "sequential"
				if stage.Parallel {
					mode = "parallel"
				}
				fmt.Printf("stage %d (%s):\n", stage.Order, mode)
				for _, id := range stage.Nodes {
					fmt.Printf("  %s\n", id)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "statement file path")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output plan file (optional)")
	cmd.Flags().StringVar(&dotFile, "dot", "", "output DOT graph file (optional)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
