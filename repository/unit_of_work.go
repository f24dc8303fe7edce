package repository

import (
	"context"
	"fmt"

	"hotornot/database"
	"hotornot/events"
	"hotornot/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the service.UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	ledgerRepo       service.LedgerRepository
	postRepo         service.PostRepository
	betRegistryRepo  service.BetRegistryRepository
	placedBetRepo    service.PlacedBetRepository
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories bound to the transaction
	u.ledgerRepo = newLedgerRepositoryWithTx(tx)
	u.postRepo = newPostRepositoryWithTx(tx)
	u.betRegistryRepo = newBetRegistryRepositoryWithTx(tx)
	u.placedBetRepo = newPlacedBetRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	// Flush pending events only after a successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction. No-op after Commit.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// LedgerRepository returns the ledger repository for this unit of work
func (u *unitOfWork) LedgerRepository() service.LedgerRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

// PostRepository returns the post repository for this unit of work
func (u *unitOfWork) PostRepository() service.PostRepository {
	if u.postRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.postRepo
}

// BetRegistryRepository returns the bet registry repository for this unit of work
func (u *unitOfWork) BetRegistryRepository() service.BetRegistryRepository {
	if u.betRegistryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.betRegistryRepo
}

// PlacedBetRepository returns the placed bet repository for this unit of work
func (u *unitOfWork) PlacedBetRepository() service.PlacedBetRepository {
	if u.placedBetRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.placedBetRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
