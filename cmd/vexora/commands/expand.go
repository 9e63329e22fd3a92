package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	vexora "github.com/PeterKuehne/vexora"
)

var (
	expandLevel  int
	expandPerDoc int
)

// NewExpandCmd creates the expand command.
func NewExpandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand <document-id>...",
		Short: "Return all chunks of the given documents",
		Long: `Fetch every chunk of one or more documents regardless of query
relevance (document expansion).

Examples:
  vexora expand 0198c2f4-7a11-7bbd-9617-33a1c52e9db1
  vexora expand --level=2 doc-a doc-b`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExpand,
	}

	cmd.Flags().IntVar(&expandLevel, "level", -1, "Restrict to one hierarchy level (0=doc, 1=section, 2=content)")
	cmd.Flags().IntVar(&expandPerDoc, "per-doc", 0, "Per-document chunk cap (0 = default)")

	return cmd
}

func runExpand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close(ctx)

	opts := vexora.ExpandOptions{PerDocumentCap: expandPerDoc}
	if expandLevel >= 0 {
		opts.Level = &expandLevel
	}

	chunks, err := newRetriever(d).GetChunksByDocumentIDs(ctx, args, opts)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No chunks.")
		return nil
	}
	for _, c := range chunks {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d/%d %s (level %d)\n",
			c.DocumentID, c.ChunkIndex, c.TotalChunks, c.Path, c.Level)
		fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", excerpt(c.Content, 300))
	}
	return nil
}
