package cmd

import (
	"context"
	"fmt"
	"time"

	"hotornot/config"
	"hotornot/database"
	"hotornot/events"
	"hotornot/infrastructure"
	"hotornot/repository"
	"hotornot/scheduler"
	"hotornot/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the node
func Run(ctx context.Context) error {
	log.Info("Starting hot-or-not node...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Connect to the message bus
	log.WithField("servers", cfg.NATSURL).Info("Connecting to NATS...")
	busClient := infrastructure.NewNATSClient(cfg.NATSURL, cfg.NodeID)
	if err := busClient.Connect(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	nodeClient := infrastructure.NewNodeClient(busClient)

	// Initialize services
	ledgerService := service.NewLedgerService(uowFactory, cfg)
	postService := service.NewPostService(uowFactory)
	_ = postService // not yet exposed over the node server
	bettingService := service.NewBettingService(uowFactory, nodeClient, cfg)
	settlementService := service.NewSettlementService(uowFactory, nodeClient, cfg)

	// Credit the signup airdrop. Idempotent across restarts.
	if err := ledgerService.MintAirdrop(ctx); err != nil {
		return fmt.Errorf("failed to mint signup airdrop: %w", err)
	}

	// Start the node server
	nodeServer := infrastructure.NewNodeServer(busClient, cfg.NodeID, settlementService, bettingService)
	if err := nodeServer.Start(); err != nil {
		return fmt.Errorf("failed to start node server: %w", err)
	}

	// Start background workers. Timers are rebuilt from durable state.
	slotScheduler := scheduler.NewSlotScheduler(uowFactory, settlementService, cfg)
	slotScheduler.Subscribe(eventBus)
	stopScheduler := slotScheduler.Start(ctx)

	resolveWorker := scheduler.NewResolveWorker(bettingService, cfg)
	stopResolver := resolveWorker.Start(ctx)

	log.WithFields(log.Fields{
		"nodeID":      cfg.NodeID,
		"environment": cfg.Environment,
	}).Info("Node is running")
	<-ctx.Done()

	// Cleanup resources
	log.Info("Shutting down node...")
	stopResolver()
	stopScheduler()

	if err := busClient.Close(); err != nil {
		log.WithError(err).Error("Error closing NATS connection")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}

	return nil
}
