package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"hotornot/models"
	"hotornot/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// messageBus is the slice of the NATS client the node client needs.
type messageBus interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Publish(ctx context.Context, subject string, data []byte) error
}

// NodeClient is the outbound side of the node-to-node protocol. It implements
// both the peer call surface and the earnings notifier.
type NodeClient struct {
	bus messageBus
}

var _ service.PostNodeClient = (*NodeClient)(nil)
var _ service.EarningsNotifier = (*NodeClient)(nil)

// NewNodeClient creates a new node client
func NewNodeClient(bus messageBus) *NodeClient {
	return &NodeClient{bus: bus}
}

// PlaceBet asks the post-owner node to accept a bet on behalf of the bettor
func (c *NodeClient) PlaceBet(ctx context.Context, postNodeID string, bettor models.Principal, betMakerNodeID string, arg models.PlaceBetArg) (*models.BettingStatus, error) {
	req := placeBetRequest{
		RequestID:      uuid.New().String(),
		Bettor:         bettor,
		BetMakerNodeID: betMakerNodeID,
		Arg:            arg,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal place bet request: %w", err)
	}

	log.WithFields(log.Fields{
		"requestID":  req.RequestID,
		"postNodeID": postNodeID,
		"postID":     arg.PostID,
	}).Debug("Placing bet on peer node")

	replyData, err := c.bus.Request(ctx, nodeSubject(postNodeID, opPlaceBet), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPostNodeCallFailed, err)
	}

	var reply placeBetResponse
	if err := json.Unmarshal(replyData, &reply); err != nil {
		return nil, fmt.Errorf("%w: malformed reply: %v", models.ErrPostNodeCallFailed, err)
	}
	if reply.ErrorCode != "" {
		return nil, models.ErrorFromCode(reply.ErrorCode)
	}
	if reply.Status == nil {
		return nil, fmt.Errorf("%w: reply carries neither status nor error", models.ErrPostNodeCallFailed)
	}
	return reply.Status, nil
}

// GetBetOutcome asks the post-owner node for the settled outcome of the
// bettor's bet on a post
func (c *NodeClient) GetBetOutcome(ctx context.Context, postNodeID string, postID int64, bettor models.Principal) (*models.BetOutcome, error) {
	req := getBetOutcomeRequest{
		RequestID: uuid.New().String(),
		PostID:    postID,
		Bettor:    bettor,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outcome request: %w", err)
	}

	replyData, err := c.bus.Request(ctx, nodeSubject(postNodeID, opGetBetOutcome), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPostNodeCallFailed, err)
	}

	var reply getBetOutcomeResponse
	if err := json.Unmarshal(replyData, &reply); err != nil {
		return nil, fmt.Errorf("%w: malformed reply: %v", models.ErrPostNodeCallFailed, err)
	}
	if reply.ErrorCode != "" {
		return nil, models.ErrorFromCode(reply.ErrorCode)
	}
	if reply.Outcome == nil {
		return nil, fmt.Errorf("%w: reply carries neither outcome nor error", models.ErrPostNodeCallFailed)
	}
	return reply.Outcome, nil
}

// NotifyEarnings delivers a settlement result to a bet-maker node.
// Fire-and-forget: the publish either lands or the bet-maker's sweep picks the
// outcome up later.
func (c *NodeClient) NotifyEarnings(ctx context.Context, betMakerNodeID string, notification models.EarningsNotification) error {
	msg := earningsMessage{
		PostOwnerNodeID: notification.PostNodeID,
		Notification:    notification,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal earnings notification: %w", err)
	}
	return c.bus.Publish(ctx, nodeSubject(betMakerNodeID, opEarnings), data)
}
