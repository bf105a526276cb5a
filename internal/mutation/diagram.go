package mutation

import (
	"context"
	"errors"

	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/diagram"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/ports"
)

// DiagramResult is the outcome of a whole-diagram save.
type DiagramResult struct {
	Channel *domain.Channel `json:"channel"`
	Report  diagram.Report  `json:"report"`
}

// SaveDiagram replaces the whole diagram of a channel, creating the channel if
// needed. raw has the bulk {nodes, edges} shape and runs through the full
// preparation pipeline; entries it cannot use are dropped and counted in the
// report. The channel id always comes from channelID. A payload without a
// signal keeps the stored one.
func (s *Service) SaveDiagram(ctx context.Context, channelID string, raw any) (*DiagramResult, error) {
	if err := checkStruct(channelRef{ChannelID: channelID}); err != nil {
		return nil, s.reject(OpSaveDiagram, channelID, err)
	}
	if canon.ToRaw(raw) == nil {
		return nil, s.reject(OpSaveDiagram, channelID, domain.Validationf("diagram must be an object with nodes and edges"))
	}

	prepared, report := diagram.Prepare(raw)
	prepared.ID = channelID

	var res DiagramResult
	err := s.run(ctx, OpSaveDiagram, channelID, func(ctx context.Context, tx ports.Tx) error {
		if prepared.SignalID == "" {
			current, err := tx.FindChannel(ctx, channelID)
			switch {
			case err == nil:
				prepared.SignalID = current.SignalID
			case !errors.Is(err, domain.ErrChannelNotFound):
				return err
			}
		}
		if err := tx.ReplaceDiagram(ctx, &prepared); err != nil {
			return err
		}
		saved, err := tx.FindChannel(ctx, channelID)
		if err != nil {
			return err
		}
		res = DiagramResult{Channel: saved, Report: report}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveDiscarded("dropped_node", report.DroppedNodes)
	s.metrics.ObserveDiscarded("dropped_edge", report.DroppedEdges)
	s.metrics.ObserveDiscarded("duplicate_node", report.DuplicateNodes)
	s.metrics.ObserveDiscarded("duplicate_edge", report.DuplicateEdges)
	s.metrics.ObserveDiscarded("unresolved_edge", report.UnresolvedEdges)
	s.metrics.ObserveCollisions(len(report.Collisions))
	if !report.Clean() {
		s.logger.Info("Diagram saved with discarded entries",
			"channel_id", channelID,
			"dropped_nodes", report.DroppedNodes,
			"dropped_edges", report.DroppedEdges,
			"duplicate_nodes", report.DuplicateNodes,
			"duplicate_edges", report.DuplicateEdges,
			"unresolved_edges", report.UnresolvedEdges,
		)
	}
	return &res, nil
}

// LoadDiagram returns the committed diagram in canonical form.
func (s *Service) LoadDiagram(ctx context.Context, channelID string) (*domain.Channel, error) {
	if err := checkStruct(channelRef{ChannelID: channelID}); err != nil {
		return nil, err
	}
	stored, err := s.sessions.Load(ctx, channelID)
	if err != nil {
		return nil, classify(err)
	}
	ch := canon.NormalizeChannel(stored)
	return &ch, nil
}
