package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"hotornot/models"
	"hotornot/service"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NodeServer is the inbound side of the node-to-node protocol. It listens on
// this node's subject tree and dispatches to the settlement and betting
// services.
type NodeServer struct {
	bus            *NATSClient
	nodeID         string
	settlement     service.SettlementService
	betting        service.BettingService
	handlerTimeout time.Duration
}

// NewNodeServer creates a new node server
func NewNodeServer(bus *NATSClient, nodeID string, settlement service.SettlementService, betting service.BettingService) *NodeServer {
	return &NodeServer{
		bus:            bus,
		nodeID:         nodeID,
		settlement:     settlement,
		betting:        betting,
		handlerTimeout: 30 * time.Second,
	}
}

// Start subscribes to this node's subjects
func (s *NodeServer) Start() error {
	if err := s.bus.Subscribe(nodeSubject(s.nodeID, opPlaceBet), s.handlePlaceBet); err != nil {
		return err
	}
	if err := s.bus.Subscribe(nodeSubject(s.nodeID, opGetBetOutcome), s.handleGetBetOutcome); err != nil {
		return err
	}
	if err := s.bus.Subscribe(nodeSubject(s.nodeID, opEarnings), s.handleEarnings); err != nil {
		return err
	}

	log.WithField("nodeID", s.nodeID).Info("Node server listening")
	return nil
}

func (s *NodeServer) handlePlaceBet(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.handlerTimeout)
	defer cancel()

	var req placeBetRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.WithError(err).Error("Malformed place bet request")
		s.reply(msg, placeBetResponse{ErrorCode: models.ErrorCode(err)})
		return
	}

	logger := log.WithFields(log.Fields{
		"requestID":      req.RequestID,
		"bettor":         req.Bettor,
		"betMakerNodeID": req.BetMakerNodeID,
		"postID":         req.Arg.PostID,
	})

	status, err := s.settlement.ReceiveBet(ctx, req.Bettor, req.BetMakerNodeID, req.Arg)
	if err != nil {
		logger.WithError(err).Info("Rejected incoming bet")
		s.reply(msg, placeBetResponse{RequestID: req.RequestID, ErrorCode: models.ErrorCode(err)})
		return
	}

	logger.WithFields(log.Fields{
		"slot": status.OngoingSlot,
		"room": status.OngoingRoom,
	}).Info("Accepted incoming bet")
	s.reply(msg, placeBetResponse{RequestID: req.RequestID, Status: status})
}

func (s *NodeServer) handleGetBetOutcome(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.handlerTimeout)
	defer cancel()

	var req getBetOutcomeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.WithError(err).Error("Malformed outcome request")
		s.reply(msg, getBetOutcomeResponse{ErrorCode: models.ErrorCode(err)})
		return
	}

	outcome, err := s.settlement.GetBetOutcome(ctx, req.PostID, req.Bettor)
	if err != nil {
		s.reply(msg, getBetOutcomeResponse{RequestID: req.RequestID, ErrorCode: models.ErrorCode(err)})
		return
	}
	s.reply(msg, getBetOutcomeResponse{RequestID: req.RequestID, Outcome: outcome})
}

func (s *NodeServer) handleEarnings(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.handlerTimeout)
	defer cancel()

	var m earningsMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.WithError(err).Error("Malformed earnings notification")
		return
	}

	if err := s.betting.ReceiveEarnings(ctx, m.Notification); err != nil {
		// The resolve sweep retries this outcome later
		log.WithError(err).WithFields(log.Fields{
			"postNodeID": m.Notification.PostNodeID,
			"postID":     m.Notification.PostID,
		}).Error("Failed to apply earnings notification")
	}
}

func (s *NodeServer) reply(msg *nats.Msg, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("Failed to marshal reply")
		return
	}
	if err := msg.Respond(data); err != nil {
		log.WithError(err).Error("Failed to send reply")
	}
}
