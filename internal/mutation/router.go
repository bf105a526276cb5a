package mutation

import (
	"context"
	"fmt"
	"reflect"

	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/ports"
	"github.com/aretw0/topograph/pkg/rules"
)

// RouterResult is the outcome of a router template resync. Edges is the
// template as stored after the call; Removed lists template edges that were
// dropped. AuditIDs follow the order the changes were written.
type RouterResult struct {
	Router   domain.Node   `json:"router"`
	Edges    []domain.Edge `json:"edges"`
	Removed  []string      `json:"removed,omitempty"`
	AuditIDs []string      `json:"auditIds"`
}

// ResyncRouter regenerates the template edges of a router towards
// neighborIDs, cycled in the given order. Template edges no longer produced
// are deleted, changed ones rewritten and new ones created, each with its own
// audit record; unchanged edges are left alone. An empty neighbor list removes
// the template. Edges not owned by the router are never touched, and a
// template id already taken by one of them is a conflict.
func (s *Service) ResyncRouter(ctx context.Context, channelID, routerID string, neighborIDs []string) (*RouterResult, error) {
	if err := checkStruct(nodeRef{ChannelID: channelID, NodeID: routerID}); err != nil {
		return nil, s.reject(OpResyncRouter, channelID, err)
	}
	neighborIDs, err := neighborList(routerID, neighborIDs)
	if err != nil {
		return nil, s.reject(OpResyncRouter, channelID, err)
	}

	res := RouterResult{Edges: []domain.Edge{}, AuditIDs: []string{}}
	err = s.run(ctx, OpResyncRouter, channelID, func(ctx context.Context, tx ports.Tx) error {
		ch, err := tx.FindChannel(ctx, channelID)
		if err != nil {
			return err
		}
		router, ok := ch.Node(routerID)
		if !ok {
			return domain.NotFound(domain.ErrNodeNotFound, routerID)
		}
		if domain.Classify(router) != domain.KindRouter {
			return domain.Validationf("node %q is not a router", routerID)
		}
		neighbors := make([]domain.Node, 0, len(neighborIDs))
		for _, id := range neighborIDs {
			n, ok := ch.Node(id)
			if !ok {
				return domain.NotFound(domain.ErrNodeNotFound, id)
			}
			neighbors = append(neighbors, n)
		}

		var fresh []domain.Edge
		wanted := make(map[string]bool)
		for _, e := range rules.ResyncRouterEdges(ch.Edges, router, neighbors) {
			if rules.IsTemplateEdgeOf(e, routerID) {
				fresh = append(fresh, e)
				wanted[e.ID] = true
			}
		}

		for _, old := range ch.Edges {
			if !rules.IsTemplateEdgeOf(old, routerID) || wanted[old.ID] {
				continue
			}
			if err := tx.DeleteEdge(ctx, channelID, old.ID); err != nil {
				return err
			}
			id, err := s.audit(ctx, tx, channelID, domain.EntityEdge, old.ID, domain.ActionDelete, old, nil)
			if err != nil {
				return err
			}
			res.Removed = append(res.Removed, old.ID)
			res.AuditIDs = append(res.AuditIDs, id)
		}

		for _, e := range fresh {
			action := domain.ActionCreate
			var before any
			if old, exists := ch.Edge(e.ID); exists {
				if !rules.IsTemplateEdgeOf(old, routerID) {
					return domain.Conflict("duplicate_id", fmt.Sprintf("edge %q already exists", e.ID))
				}
				if reflect.DeepEqual(old, e) {
					continue
				}
				action, before = domain.ActionEdit, old
			}
			if err := tx.PutEdge(ctx, channelID, e); err != nil {
				return err
			}
			id, err := s.audit(ctx, tx, channelID, domain.EntityEdge, e.ID, action, before, e)
			if err != nil {
				return err
			}
			res.AuditIDs = append(res.AuditIDs, id)
		}

		res.Router = router
		res.Edges = append(res.Edges, fresh...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// neighborList validates neighbor ids and drops repeats, keeping first
// occurrences in order.
func neighborList(routerID string, ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !ValidID(id) {
			return nil, domain.Validationf("neighbor %q is not a valid node id", id)
		}
		if id == routerID {
			return nil, domain.Validationf("router %q cannot be its own neighbor", routerID)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
