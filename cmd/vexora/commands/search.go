package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	vexora "github.com/PeterKuehne/vexora"
)

var (
	searchLimit     int
	searchAlpha     float32
	searchThreshold float32
	searchDocs      []string
	searchLevel     int
	searchContext   bool
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid keyword+vector search over stored chunks",
		Long: `Search stored chunks with a fused keyword and vector query.

Examples:
  vexora search "quarterly revenue by region"
  vexora search --limit=5 --context "maintenance schedule"
  vexora search --documents=doc-a,doc-b "safety procedures"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum results (0 = default)")
	cmd.Flags().Float32Var(&searchAlpha, "alpha", -1, "Keyword/vector blend: 0 = pure keyword, 1 = pure vector (-1 = default)")
	cmd.Flags().Float32Var(&searchThreshold, "threshold", 0, "Drop results scoring below this")
	cmd.Flags().StringSliceVar(&searchDocs, "documents", nil, "Restrict to these document IDs")
	cmd.Flags().IntVar(&searchLevel, "level", -1, "Restrict to one hierarchy level (0=doc, 1=section, 2=content)")
	cmd.Flags().BoolVar(&searchContext, "context", false, "Prepend section context to content results")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close(ctx)

	retriever := newRetriever(d)

	req := vexora.SearchRequest{
		Query:                args[0],
		Limit:                searchLimit,
		Threshold:            searchThreshold,
		AllowedDocumentIDs:   searchDocs,
		IncludeParentContext: searchContext,
	}
	if searchAlpha >= 0 {
		req.Alpha = &searchAlpha
	}
	if searchLevel >= 0 {
		req.LevelFilter = &searchLevel
	}

	start := time.Now()
	resp, err := retriever.Search(ctx, req)
	if err != nil {
		return err
	}
	d.inst.RecordSearch(ctx, len(resp.Results), time.Since(start))

	if len(resp.Results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results.")
		return nil
	}
	for i, r := range resp.Results {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. [%.3f] %s (doc %s, chunk %d/%d, level %d)\n",
			i+1, r.Score, r.Path, r.DocumentID, r.ChunkIndex, r.TotalChunks, r.Level)
		fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", excerpt(r.Content, 300))
	}
	return nil
}

// newRetriever builds a HybridRetriever from deps with CLI defaults applied.
func newRetriever(d *deps) *vexora.HybridRetriever {
	opts := []vexora.RetrieverOption{
		vexora.WithDefaultAlpha(float32(d.cfg.Search.Alpha)),
		vexora.WithDefaultLimit(d.cfg.Search.TopK),
		vexora.WithRetrieverLogger(newLogger()),
		vexora.WithMetadataStore(d.meta),
	}
	if d.tracer != nil {
		opts = append(opts, vexora.WithRetrieverTracer(d.tracer))
	}
	return vexora.NewHybridRetriever(d.store, d.embedding, opts...)
}

// excerpt flattens newlines and truncates for single-line display.
func excerpt(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
