package mutation

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/ports"
	"github.com/aretw0/topograph/pkg/rules"
)

// UpdateNodePosition moves a node. position must hold two finite JSON numbers
// (see coordinates); numeric strings are rejected.
func (s *Service) UpdateNodePosition(ctx context.Context, channelID, nodeID string, position any) (*NodeResult, error) {
	if err := checkStruct(nodeRef{ChannelID: channelID, NodeID: nodeID}); err != nil {
		return nil, s.reject(OpUpdateNodePosition, channelID, err)
	}
	pos, err := coordinates(position)
	if err != nil {
		return nil, s.reject(OpUpdateNodePosition, channelID, err)
	}

	var res NodeResult
	err = s.run(ctx, OpUpdateNodePosition, channelID, func(ctx context.Context, tx ports.Tx) error {
		node, err := tx.FindNode(ctx, channelID, nodeID)
		if err != nil {
			return err
		}
		before := node.Clone()
		node.Position = pos
		if err := tx.PutNode(ctx, channelID, node); err != nil {
			return err
		}
		id, err := s.audit(ctx, tx, channelID, domain.EntityNode, nodeID, domain.ActionMove, before, node)
		if err != nil {
			return err
		}
		res = NodeResult{Node: node, AuditID: id}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateNodeLabel renames a node and re-derives the labels of its
// auto-labelled edges in the same transaction. The node's audit record comes
// first, followed by one edit record per relabelled edge. A blank label is
// stored as the node id, the same form a bulk save produces. A blank label falls back to the
// node id wherever a label is displayed.
func (s *Service) UpdateNodeLabel(ctx context.Context, channelID, nodeID, label string) (*NodeResult, error) {
	if err := checkStruct(nodeRef{ChannelID: channelID, NodeID: nodeID}); err != nil {
		return nil, s.reject(OpUpdateNodeLabel, channelID, err)
	}
	label = strings.TrimSpace(label)
	if err := checkVar("label", label, fmt.Sprintf("max=%d", domain.MaxLabelLength)); err != nil {
		return nil, s.reject(OpUpdateNodeLabel, channelID, err)
	}

	var res NodeResult
	err := s.run(ctx, OpUpdateNodeLabel, channelID, func(ctx context.Context, tx ports.Tx) error {
		ch, err := tx.FindChannel(ctx, channelID)
		if err != nil {
			return err
		}
		node, ok := ch.Node(nodeID)
		if !ok {
			return domain.NotFound(domain.ErrNodeNotFound, nodeID)
		}
		before := node.Clone()
		node.Data.Label = label
		if label == "" {
			node.Data.Label = canon.Truncate(nodeID, domain.MaxLabelLength)
		}
		if err := tx.PutNode(ctx, channelID, node); err != nil {
			return err
		}
		id, err := s.audit(ctx, tx, channelID, domain.EntityNode, nodeID, domain.ActionEdit, before, node)
		if err != nil {
			return err
		}
		res.Node, res.AuditID = node, id

		nodes := ch.NodeIndex()
		nodes[nodeID] = node
		for _, e := range ch.Edges {
			if !e.Touches(nodeID) || !rules.IsAutoLabelled(e) {
				continue
			}
			relabelled := rules.AutoLabelEdge(e, []domain.Node{nodes[e.Source], nodes[e.Target]})
			if relabelled.Label == e.Label {
				continue
			}
			if err := tx.PutEdge(ctx, channelID, relabelled); err != nil {
				return err
			}
			if _, err := s.audit(ctx, tx, channelID, domain.EntityEdge, e.ID, domain.ActionEdit, e, relabelled); err != nil {
				return err
			}
			res.Edges = append(res.Edges, relabelled)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateNode adds a node. raw is canonicalized like a bulk entry; an entry
// without an id is rejected and an existing id is a conflict.
func (s *Service) CreateNode(ctx context.Context, channelID string, raw any) (*NodeResult, error) {
	if err := checkStruct(channelRef{ChannelID: channelID}); err != nil {
		return nil, s.reject(OpCreateNode, channelID, err)
	}
	node, ok := canon.NormalizeNode(raw)
	if !ok {
		return nil, s.reject(OpCreateNode, channelID, domain.Validationf("node must be an object with an id"))
	}
	if err := checkStruct(nodeRef{ChannelID: channelID, NodeID: node.ID}); err != nil {
		return nil, s.reject(OpCreateNode, channelID, err)
	}

	var res NodeResult
	err := s.run(ctx, OpCreateNode, channelID, func(ctx context.Context, tx ports.Tx) error {
		if _, err := tx.FindChannel(ctx, channelID); err != nil {
			return err
		}
		if _, err := tx.FindNode(ctx, channelID, node.ID); err == nil {
			return domain.Conflict("duplicate_id", fmt.Sprintf("node %q already exists", node.ID))
		}
		if err := tx.PutNode(ctx, channelID, node); err != nil {
			return err
		}
		id, err := s.audit(ctx, tx, channelID, domain.EntityNode, node.ID, domain.ActionCreate, nil, node)
		if err != nil {
			return err
		}
		res = NodeResult{Node: node, AuditID: id}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteNode removes a node and every edge incident on it. Each removed
// entity gets its own audit record; the result carries the node's.
func (s *Service) DeleteNode(ctx context.Context, channelID, nodeID string) (*NodeResult, error) {
	if err := checkStruct(nodeRef{ChannelID: channelID, NodeID: nodeID}); err != nil {
		return nil, s.reject(OpDeleteNode, channelID, err)
	}

	var res NodeResult
	err := s.run(ctx, OpDeleteNode, channelID, func(ctx context.Context, tx ports.Tx) error {
		ch, err := tx.FindChannel(ctx, channelID)
		if err != nil {
			return err
		}
		node, ok := ch.Node(nodeID)
		if !ok {
			return domain.NotFound(domain.ErrNodeNotFound, nodeID)
		}

		for _, e := range ch.Edges {
			if !e.Touches(nodeID) {
				continue
			}
			if err := tx.DeleteEdge(ctx, channelID, e.ID); err != nil {
				return err
			}
			if _, err := s.audit(ctx, tx, channelID, domain.EntityEdge, e.ID, domain.ActionDelete, e, nil); err != nil {
				return err
			}
			res.Edges = append(res.Edges, e)
		}

		if err := tx.DeleteNode(ctx, channelID, nodeID); err != nil {
			return err
		}
		id, err := s.audit(ctx, tx, channelID, domain.EntityNode, nodeID, domain.ActionDelete, node, nil)
		if err != nil {
			return err
		}
		res.Node, res.AuditID = node, id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
