package infrastructure

import (
	"fmt"

	"hotornot/models"
)

// Subject layout for node-to-node calls. Each node listens on its own subject
// tree; the node ID doubles as the bus address.
const (
	subjectPrefix = "hotornot.node"

	opPlaceBet      = "place_bet"
	opGetBetOutcome = "get_bet_outcome"
	opEarnings      = "earnings"
)

func nodeSubject(nodeID, op string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, nodeID, op)
}

// placeBetRequest asks a post-owner node to accept a bet. RequestID correlates
// logs across the two nodes.
type placeBetRequest struct {
	RequestID      string             `json:"request_id"`
	Bettor         models.Principal   `json:"bettor"`
	BetMakerNodeID string             `json:"bet_maker_node_id"`
	Arg            models.PlaceBetArg `json:"arg"`
}

type placeBetResponse struct {
	RequestID string                `json:"request_id"`
	ErrorCode string                `json:"error_code,omitempty"`
	Status    *models.BettingStatus `json:"status,omitempty"`
}

type getBetOutcomeRequest struct {
	RequestID string           `json:"request_id"`
	PostID    int64            `json:"post_id"`
	Bettor    models.Principal `json:"bettor"`
}

type getBetOutcomeResponse struct {
	RequestID string             `json:"request_id"`
	ErrorCode string             `json:"error_code,omitempty"`
	Outcome   *models.BetOutcome `json:"outcome,omitempty"`
}

// earningsMessage carries a settlement result to a bet-maker node. No reply is
// expected; the bet-maker's reconciliation sweep covers lost deliveries.
type earningsMessage struct {
	PostOwnerNodeID string                      `json:"post_owner_node_id"`
	Notification    models.EarningsNotification `json:"notification"`
}
