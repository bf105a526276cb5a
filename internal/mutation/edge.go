package mutation

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/topograph/pkg/allocator"
	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/handles"
	"github.com/aretw0/topograph/pkg/ports"
	"github.com/aretw0/topograph/pkg/rules"
)

// ReconnectEdge moves either end of an edge and/or changes its handles.
//
// New endpoints must exist. When a node end changes without a new handle, the
// previous handle is re-validated against the new node. Handle failures are
// conflicts. A null handle clears it. Satellite to IRD enforcement and
// auto-labelling are re-applied before the edge is written.
func (s *Service) ReconnectEdge(ctx context.Context, channelID, edgeID string, patch EdgePatch) (*EdgeResult, error) {
	if err := checkStruct(edgeRef{ChannelID: channelID, EdgeID: edgeID}); err != nil {
		return nil, s.reject(OpReconnectEdge, channelID, err)
	}
	if patch.empty() {
		return nil, s.reject(OpReconnectEdge, channelID,
			domain.Validationf("patch must set at least one of source, sourceHandle, target, targetHandle"))
	}
	source, err := endpoint("source", patch.Source)
	if err != nil {
		return nil, s.reject(OpReconnectEdge, channelID, err)
	}
	target, err := endpoint("target", patch.Target)
	if err != nil {
		return nil, s.reject(OpReconnectEdge, channelID, err)
	}

	var res EdgeResult
	err = s.run(ctx, OpReconnectEdge, channelID, func(ctx context.Context, tx ports.Tx) error {
		edge, err := tx.FindEdge(ctx, channelID, edgeID)
		if err != nil {
			return err
		}
		before := edge.Clone()

		if source != "" {
			edge.Source = source
		}
		if target != "" {
			edge.Target = target
		}
		src, err := tx.FindNode(ctx, channelID, edge.Source)
		if err != nil {
			return err
		}
		dst, err := tx.FindNode(ctx, channelID, edge.Target)
		if err != nil {
			return err
		}

		edge.SourceHandle, err = resolveHandle(src, domain.HandleSource, patch.SourceHandle,
			before.SourceHandle, edge.Source != before.Source)
		if err != nil {
			return err
		}
		edge.TargetHandle, err = resolveHandle(dst, domain.HandleTarget, patch.TargetHandle,
			before.TargetHandle, edge.Target != before.Target)
		if err != nil {
			return err
		}

		edge = rules.ApplyEdge(edge, []domain.Node{src, dst})
		if err := tx.PutEdge(ctx, channelID, edge); err != nil {
			return err
		}
		id, err := s.audit(ctx, tx, channelID, domain.EntityEdge, edgeID, domain.ActionReconnect, before, edge)
		if err != nil {
			return err
		}
		res = EdgeResult{Edge: edge, AuditID: id}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// resolveHandle decides the handle of one edge end after a reconnect.
func resolveHandle(n domain.Node, t domain.HandleType, patch Optional, previous string, nodeChanged bool) (string, error) {
	requested := previous
	switch {
	case patch.IsNull():
		return "", nil
	case patch.Set:
		requested = *patch.Value
	case !nodeChanged:
		return previous, nil
	}
	if handles.IsNullLike(requested) {
		return "", nil
	}
	check := handles.Ensure(n, requested, t)
	if !check.OK {
		return "", domain.Conflict(string(check.Code), check.Error)
	}
	return check.HandleID, nil
}

// UpdateEdgeTooltip sets or clears the tooltip title and body independently.
func (s *Service) UpdateEdgeTooltip(ctx context.Context, channelID, edgeID string, patch TooltipPatch) (*EdgeResult, error) {
	if err := checkStruct(edgeRef{ChannelID: channelID, EdgeID: edgeID}); err != nil {
		return nil, s.reject(OpUpdateEdgeTooltip, channelID, err)
	}
	if !patch.TooltipTitle.Set && !patch.Tooltip.Set {
		return nil, s.reject(OpUpdateEdgeTooltip, channelID,
			domain.Validationf("patch must set at least one of tooltipTitle, tooltip"))
	}
	title, err := tooltipText("tooltipTitle", patch.TooltipTitle, canon.MaxTooltipTitleLength)
	if err != nil {
		return nil, s.reject(OpUpdateEdgeTooltip, channelID, err)
	}
	body, err := tooltipText("tooltip", patch.Tooltip, canon.MaxTooltipLength)
	if err != nil {
		return nil, s.reject(OpUpdateEdgeTooltip, channelID, err)
	}

	return s.editEdge(ctx, OpUpdateEdgeTooltip, channelID, edgeID, func(e *domain.Edge, _ []domain.Node) {
		if patch.TooltipTitle.Set {
			e.Data.TooltipTitle = title
		}
		if patch.Tooltip.Set {
			e.Data.Tooltip = body
		}
	})
}

// UpdateEdgeLabel sets a manual label. The edge stops being auto-labelled and
// an edge generated by a router template is detached from it.
func (s *Service) UpdateEdgeLabel(ctx context.Context, channelID, edgeID, label string) (*EdgeResult, error) {
	if err := checkStruct(edgeRef{ChannelID: channelID, EdgeID: edgeID}); err != nil {
		return nil, s.reject(OpUpdateEdgeLabel, channelID, err)
	}
	label = strings.TrimSpace(label)
	if err := checkVar("label", label, fmt.Sprintf("max=%d", domain.MaxLabelLength)); err != nil {
		return nil, s.reject(OpUpdateEdgeLabel, channelID, err)
	}

	return s.editEdge(ctx, OpUpdateEdgeLabel, channelID, edgeID, func(e *domain.Edge, _ []domain.Node) {
		e.Label = label
		e.Data.AutoLabel = false
		e.Data.RouterTemplate = ""
	})
}

// UpdateEdgeDirection changes the direction, restyles the edge and re-derives
// its auto label. Satellite to IRD edges stay forward.
func (s *Service) UpdateEdgeDirection(ctx context.Context, channelID, edgeID, direction string) (*EdgeResult, error) {
	if err := checkStruct(edgeRef{ChannelID: channelID, EdgeID: edgeID}); err != nil {
		return nil, s.reject(OpUpdateEdgeDirection, channelID, err)
	}
	d, ok := domain.ParseDirection(direction)
	if !ok {
		return nil, s.reject(OpUpdateEdgeDirection, channelID,
			domain.Validationf("direction must be one of ida, vuelta, bi"))
	}

	return s.editEdge(ctx, OpUpdateEdgeDirection, channelID, edgeID, func(e *domain.Edge, endpoints []domain.Node) {
		animated := e.Style.Animated
		e.Direction = d
		e.Style = rules.StyleFor(d)
		e.Style.Animated = animated
		*e = rules.ApplyEdge(*e, endpoints)
	})
}

// editEdge runs an in-place edit of one edge with the edit action.
func (s *Service) editEdge(ctx context.Context, op, channelID, edgeID string, edit func(e *domain.Edge, endpoints []domain.Node)) (*EdgeResult, error) {
	var res EdgeResult
	err := s.run(ctx, op, channelID, func(ctx context.Context, tx ports.Tx) error {
		edge, err := tx.FindEdge(ctx, channelID, edgeID)
		if err != nil {
			return err
		}
		var endpoints []domain.Node
		for _, id := range []string{edge.Source, edge.Target} {
			if n, err := tx.FindNode(ctx, channelID, id); err == nil {
				endpoints = append(endpoints, n)
			}
		}

		before := edge.Clone()
		edit(&edge, endpoints)
		if err := tx.PutEdge(ctx, channelID, edge); err != nil {
			return err
		}
		id, err := s.audit(ctx, tx, channelID, domain.EntityEdge, edgeID, domain.ActionEdit, before, edge)
		if err != nil {
			return err
		}
		res = EdgeResult{Edge: edge, AuditID: id}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateEdge adds an edge. Endpoints must exist; explicit handles must be
// valid on their node, and missing ones are allocated around the ports
// already in use. Edge rules are applied before the write.
func (s *Service) CreateEdge(ctx context.Context, channelID string, raw any) (*EdgeResult, error) {
	if err := checkStruct(channelRef{ChannelID: channelID}); err != nil {
		return nil, s.reject(OpCreateEdge, channelID, err)
	}
	edge, ok := canon.NormalizeEdge(raw)
	if !ok {
		return nil, s.reject(OpCreateEdge, channelID, domain.Validationf("edge must be an object with id, source and target"))
	}
	if err := checkStruct(edgeRef{ChannelID: channelID, EdgeID: edge.ID}); err != nil {
		return nil, s.reject(OpCreateEdge, channelID, err)
	}

	var res EdgeResult
	err := s.run(ctx, OpCreateEdge, channelID, func(ctx context.Context, tx ports.Tx) error {
		ch, err := tx.FindChannel(ctx, channelID)
		if err != nil {
			return err
		}
		if _, exists := ch.Edge(edge.ID); exists {
			return domain.Conflict("duplicate_id", fmt.Sprintf("edge %q already exists", edge.ID))
		}
		src, ok := ch.Node(edge.Source)
		if !ok {
			return domain.NotFound(domain.ErrNodeNotFound, edge.Source)
		}
		dst, ok := ch.Node(edge.Target)
		if !ok {
			return domain.NotFound(domain.ErrNodeNotFound, edge.Target)
		}

		explicitSource, explicitTarget := edge.SourceHandle != "", edge.TargetHandle != ""
		if explicitSource {
			if edge.SourceHandle, err = resolveHandle(src, domain.HandleSource, Value(edge.SourceHandle), "", true); err != nil {
				return err
			}
		}
		if explicitTarget {
			if edge.TargetHandle, err = resolveHandle(dst, domain.HandleTarget, Value(edge.TargetHandle), "", true); err != nil {
				return err
			}
		}

		ledger := allocator.NewLedger()
		ledger.ClaimEdges(ch.Edges)
		allocated := allocator.AllocateEdge(ledger, ch.NodeIndex(), edge)
		if explicitSource {
			allocated.SourceHandle = edge.SourceHandle
		}
		if explicitTarget {
			allocated.TargetHandle = edge.TargetHandle
		}
		if allocated.Style.Stroke == "" {
			animated := allocated.Style.Animated
			allocated.Style = rules.StyleFor(allocated.Direction)
			allocated.Style.Animated = animated
		}
		edge = rules.ApplyEdge(allocated, []domain.Node{src, dst})

		if err := tx.PutEdge(ctx, channelID, edge); err != nil {
			return err
		}
		id, err := s.audit(ctx, tx, channelID, domain.EntityEdge, edge.ID, domain.ActionCreate, nil, edge)
		if err != nil {
			return err
		}
		res = EdgeResult{Edge: edge, AuditID: id}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteEdge removes one edge.
func (s *Service) DeleteEdge(ctx context.Context, channelID, edgeID string) (*EdgeResult, error) {
	if err := checkStruct(edgeRef{ChannelID: channelID, EdgeID: edgeID}); err != nil {
		return nil, s.reject(OpDeleteEdge, channelID, err)
	}

	var res EdgeResult
	err := s.run(ctx, OpDeleteEdge, channelID, func(ctx context.Context, tx ports.Tx) error {
		edge, err := tx.FindEdge(ctx, channelID, edgeID)
		if err != nil {
			return err
		}
		if err := tx.DeleteEdge(ctx, channelID, edgeID); err != nil {
			return err
		}
		id, err := s.audit(ctx, tx, channelID, domain.EntityEdge, edgeID, domain.ActionDelete, edge, nil)
		if err != nil {
			return err
		}
		res = EdgeResult{Edge: edge, AuditID: id}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
