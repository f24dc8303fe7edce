package service

import (
	"context"
	"fmt"

	"hotornot/events"
	"hotornot/models"
)

type postService struct {
	uowFactory UnitOfWorkFactory
}

// NewPostService creates a new post service
func NewPostService(uowFactory UnitOfWorkFactory) PostService {
	return &postService{
		uowFactory: uowFactory,
	}
}

// AddPost creates a post. A betting-enabled post gets its full pending slot
// set; the post-created event lets the scheduler arm tabulation timers. The
// betting flag is immutable after creation.
func (s *postService) AddPost(ctx context.Context, creator models.Principal, description, videoUID string, bettingEnabled bool) (*models.Post, error) {
	if creator.IsAnonymous() {
		return nil, models.ErrUserNotLoggedIn
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	post := &models.Post{
		CreatorPrincipal: creator,
		Description:      description,
		VideoUID:         videoUID,
		BettingEnabled:   bettingEnabled,
	}
	if err := uow.PostRepository().Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	var pendingSlots []int64
	if bettingEnabled {
		pendingSlots = models.AllSlots()
		if err := uow.PostRepository().InitPendingSlots(ctx, post.ID, pendingSlots); err != nil {
			return nil, fmt.Errorf("failed to init pending slots: %w", err)
		}
	}

	uow.EventBus().Publish(events.PostCreatedEvent{
		PostID:         post.ID,
		CreatedAt:      post.CreatedAt,
		BettingEnabled: bettingEnabled,
		PendingSlots:   pendingSlots,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return post, nil
}

// GetPost retrieves a post by ID
func (s *postService) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	post, err := uow.PostRepository().GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, models.ErrPostNotFound
	}

	return post, nil
}

// DeletePost removes a post. Tabulation timers already armed for it will find
// nothing and skip gracefully.
func (s *postService) DeletePost(ctx context.Context, postID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.PostRepository().Delete(ctx, postID); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
