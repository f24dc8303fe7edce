package service

import (
	"context"
	"testing"

	"hotornot/events"
	"hotornot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupPostMocks() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockPostRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockPostRepo := new(MockPostRepository)

	mockUoW.SetRepositories(nil, mockPostRepo, nil, nil)
	mockFactory.On("Create").Return(mockUoW)

	return mockFactory, mockUoW, mockPostRepo
}

func TestPostService_AddPost_BettingEnabled(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockPostRepo := setupPostMocks()

	svc := NewPostService(mockFactory)

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("Create", ctx, mock.MatchedBy(func(p *models.Post) bool {
		return p.CreatorPrincipal == "alice" && p.BettingEnabled
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Post).ID = 42
	})
	mockPostRepo.On("InitPendingSlots", ctx, int64(42), mock.MatchedBy(func(slots []int64) bool {
		return len(slots) == models.TotalSlots && slots[0] == 1 && slots[len(slots)-1] == models.TotalSlots
	})).Return(nil)

	post, err := svc.AddPost(ctx, models.Principal("alice"), "a video", "vid-123", true)

	require.NoError(t, err)
	assert.Equal(t, int64(42), post.ID)

	published := mockUoW.PublishedEvents()
	require.Len(t, published, 1)
	created, ok := published[0].(events.PostCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(42), created.PostID)
	assert.Len(t, created.PendingSlots, models.TotalSlots)
	mockPostRepo.AssertExpectations(t)
}

func TestPostService_AddPost_BettingDisabled(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockPostRepo := setupPostMocks()

	svc := NewPostService(mockFactory)

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("Create", ctx, mock.Anything).Return(nil)

	_, err := svc.AddPost(ctx, models.Principal("alice"), "a video", "vid-123", false)

	require.NoError(t, err)
	mockPostRepo.AssertNotCalled(t, "InitPendingSlots", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostService_AddPost_Anonymous(t *testing.T) {
	mockFactory, _, _ := setupPostMocks()

	svc := NewPostService(mockFactory)

	_, err := svc.AddPost(context.Background(), models.AnonymousPrincipal, "a video", "vid-123", true)

	assert.ErrorIs(t, err, models.ErrUserNotLoggedIn)
}

func TestPostService_GetPost_NotFound(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockPostRepo := setupPostMocks()

	svc := NewPostService(mockFactory)

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(99)).Return(nil, nil)

	_, err := svc.GetPost(ctx, 99)

	assert.ErrorIs(t, err, models.ErrPostNotFound)
}
