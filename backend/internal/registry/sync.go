package registry

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// syncRelationships brings the graph in line with a person's connexion names.
// It is additive unless PruneEdges is set, and safe to re-run: nodes and
// edges are upserted. A name with no saved person yet is recorded as pending
// and linked when a person of that name is saved; pending connexions that
// name this person are linked here. Unresolved names and the person's own
// name are returned as skipped.
func (r *Registry) syncRelationships(ctx context.Context, id int64, name string, connexions []string) ([]string, error) {
	if err := r.graph.UpsertNode(ctx, id); err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(connexions))
	if err := r.resolvePending(ctx, id, name, wanted); err != nil {
		return nil, err
	}

	if r.opts.PruneEdges {
		if err := r.records.DeletePendingFrom(ctx, id); err != nil {
			return nil, err
		}
	}

	var skipped []string
	seen := make(map[string]struct{}, len(connexions))

	for _, target := range connexions {
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}

		row, found, err := r.records.FindByName(ctx, target)
		if err != nil {
			return skipped, err
		}
		if !found {
			if err := r.records.AddPending(ctx, id, target); err != nil {
				return skipped, err
			}
			r.logger.Warn("Connexion pending: no such person yet",
				zap.Int64("person_id", id),
				zap.String("connexion", target),
			)
			skipped = append(skipped, target)
			continue
		}
		if row.ID == id {
			r.logger.Warn("Connexion skipped: person lists itself",
				zap.Int64("person_id", id),
				zap.String("connexion", target),
			)
			skipped = append(skipped, target)
			continue
		}

		if err := r.graph.UpsertEdge(ctx, id, row.ID); err != nil {
			return skipped, err
		}
		wanted[row.ID] = struct{}{}
	}

	if r.opts.PruneEdges {
		if err := r.pruneEdges(ctx, id, wanted); err != nil {
			return skipped, err
		}
	}

	return skipped, nil
}

// resolvePending links every person that was waiting on name to id. The
// linked ids are added to wanted so pruning keeps them.
func (r *Registry) resolvePending(ctx context.Context, id int64, name string, wanted map[int64]struct{}) error {
	waiting, err := r.records.PendingFor(ctx, name)
	if err != nil {
		return err
	}

	for _, from := range waiting {
		if from != id {
			if err := r.graph.UpsertEdge(ctx, id, from); err != nil {
				return err
			}
			wanted[from] = struct{}{}
			r.logger.Info("Pending connexion linked",
				zap.Int64("person_id", from),
				zap.Int64("connexion_id", id),
				zap.String("connexion", name),
			)
		}
		if err := r.records.DeletePending(ctx, from, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) pruneEdges(ctx context.Context, id int64, wanted map[int64]struct{}) error {
	current, err := r.graph.Neighbors(ctx, id)
	if err != nil {
		return err
	}
	for _, n := range current {
		if _, keep := wanted[n]; keep {
			continue
		}
		if err := r.graph.DeleteEdge(ctx, id, n); err != nil {
			return err
		}
		r.logger.Debug("Connexion pruned", zap.Int64("person_id", id), zap.Int64("neighbor_id", n))
	}
	return nil
}
