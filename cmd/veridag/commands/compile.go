package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/veridag/veridag/pkg/config"
	"github.com/veridag/veridag/pkg/engine"
)

func newCompileCommand() *cobra.Command {
	var (
		file    string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile statements into an execution graph",
		Long: `Compile a declarative statement file into a content-addressed
execution graph.

The compiler:
  - Emits nodes per declaration (entities become aggregate and
    projection pairs, pipelines become transform chains, alerts fan
    out into notifications)
  - Links data, event, condition, and dependency edges
  - Warns about unresolved references instead of failing
  - Stamps the graph with a hash of its content`,
		Example: `  # Compile and print the graph
  veridag compile -f statements.yaml

  # Compile to a file
  veridag compile -f statements.yaml -o graph.json`,
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

			log.Info().
				Str("graph", graph.Meta.Name).
				Str("hash", graph.Meta.ContentHash).
				Int("nodes", len(graph.Nodes)).
				Int("edges", len(graph.Edges)).
				Int("entry_points", len(graph.EntryPoints)).
				Msg("Graph compiled")

			return writeJSON(outFile, graph)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "statement file path")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output graph file (default: stdout)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// compileFile loads a statement file and compiles it into a graph.
func compileFile(path string) (*engine.ExecutionGraph, []engine.CompilationWarning, error) {
	loader := config.NewLoader()
	name, statements, err := loader.Load(path)
	if err != nil {
		return nil, nil, err
	}

	compiler := engine.NewCompiler(name)
	graph, err := compiler.Compile(statements)
	if err != nil {
		return nil, nil, err
	}
	return graph, compiler.Warnings(), nil
}

// writeJSON marshals v and writes it to path, or stdout when path is empty.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
