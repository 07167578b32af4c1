package markov

import (
	"context"
	"fmt"
	"log/slog"
)

// Prune deletes every transition of the model seen minCount times or fewer and
// returns how many were removed. Pruning a small quote corpus quickly leaves
// dead ends, so it is mostly useful after training on large text.
func (g *Generator) Prune(ctx context.Context, model Model, minCount int) (int64, error) {
	res, err := g.stmtPrune.ExecContext(ctx, model.ID, minCount)
	if err != nil {
		return 0, fmt.Errorf("could not prune model %d: %w", model.ID, err)
	}
	removed, _ := res.RowsAffected()

	g.logger.InfoContext(ctx, "Model pruned",
		slog.String("model_name", model.Name),
		slog.Int("min_count", minCount),
		slog.Int64("transitions_removed", removed),
	)
	return removed, nil
}
