// Package commands implements the vexora CLI.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	vexora "github.com/PeterKuehne/vexora"
)

var (
	configPath string
	verbose    bool
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vexora",
		Short: "Document chunking and hierarchical retrieval for RAG",
		Long: `vexora ingests documents (markdown, text, PDF) into hierarchical
chunks with semantic boundaries, stores them with embeddings, and
serves fused keyword+vector search with section context.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to vexora.toml (default ./vexora.toml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewExpandCmd())
	cmd.AddCommand(NewDeleteCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// newLogger returns a text logger at debug level when --verbose is set,
// otherwise a discard logger.
func newLogger() *slog.Logger {
	if !verbose {
		return vexora.NopLogger()
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
