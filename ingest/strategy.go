package ingest

import "fmt"

// Strategy determines how text blocks are chunked.
type Strategy string

const (
	// StrategySemantic groups sentences at embedding-similarity breakpoints.
	StrategySemantic Strategy = "semantic"

	// StrategyFixed uses word windows with overlap. Cheap, no embeddings.
	StrategyFixed Strategy = "fixed"

	// StrategyHybrid tries semantic chunking and falls back to fixed when
	// embeddings are unavailable (default).
	StrategyHybrid Strategy = "hybrid"
)

// ParseStrategy converts a config string to a Strategy. Empty means hybrid.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategySemantic, StrategyFixed, StrategyHybrid:
		return Strategy(s), nil
	case "":
		return StrategyHybrid, nil
	}
	return "", fmt.Errorf("unknown chunking strategy %q", s)
}
