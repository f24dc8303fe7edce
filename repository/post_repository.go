package repository

import (
	"context"
	"fmt"

	"hotornot/database"
	"hotornot/models"

	"github.com/jackc/pgx/v5"
)

// PostRepository implements the service.PostRepository interface
type PostRepository struct {
	q queryable
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *database.DB) *PostRepository {
	return &PostRepository{q: db.Pool}
}

// newPostRepositoryWithTx creates a new post repository with a transaction
func newPostRepositoryWithTx(tx queryable) *PostRepository {
	return &PostRepository{q: tx}
}

// Create creates a new post, assigning its node-local ID
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (creator_principal, description, video_uid, betting_enabled)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		post.CreatorPrincipal,
		post.Description,
		post.VideoUID,
		post.BettingEnabled,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	return nil
}

// GetByID retrieves a post by its ID; nil if absent
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `
		SELECT id, creator_principal, description, video_uid, betting_enabled, created_at
		FROM posts
		WHERE id = $1
	`

	var post models.Post
	err := r.q.QueryRow(ctx, query, id).Scan(
		&post.ID,
		&post.CreatorPrincipal,
		&post.Description,
		&post.VideoUID,
		&post.BettingEnabled,
		&post.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}

	return &post, nil
}

// Delete removes a post; pending slots cascade
func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	return nil
}

// InitPendingSlots records the full set of slots awaiting tabulation
func (r *PostRepository) InitPendingSlots(ctx context.Context, postID int64, slots []int64) error {
	query := `
		INSERT INTO post_pending_slots (post_id, slot_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, postID, slots); err != nil {
		return fmt.Errorf("failed to init pending slots for post %d: %w", postID, err)
	}
	return nil
}

// GetPendingSlots returns the slots of a post still awaiting tabulation
func (r *PostRepository) GetPendingSlots(ctx context.Context, postID int64) ([]int64, error) {
	query := `
		SELECT slot_id FROM post_pending_slots
		WHERE post_id = $1
		ORDER BY slot_id
	`

	rows, err := r.q.Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending slots for post %d: %w", postID, err)
	}
	defer rows.Close()

	var slots []int64
	for rows.Next() {
		var slot int64
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("failed to scan pending slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// HasPendingSlot reports whether the slot still awaits tabulation
func (r *PostRepository) HasPendingSlot(ctx context.Context, postID, slotID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM post_pending_slots WHERE post_id = $1 AND slot_id = $2)`
	if err := r.q.QueryRow(ctx, query, postID, slotID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending slot: %w", err)
	}
	return exists, nil
}

// LockPendingSlot takes a row lock on the slot's pending entry, held until the
// surrounding transaction ends. Tabulation deletes the row inside its own
// transaction, so a caller that fails to find it here is racing a slot that
// has already closed.
func (r *PostRepository) LockPendingSlot(ctx context.Context, postID, slotID int64) (bool, error) {
	var one int
	query := `SELECT 1 FROM post_pending_slots WHERE post_id = $1 AND slot_id = $2 FOR UPDATE`
	err := r.q.QueryRow(ctx, query, postID, slotID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock pending slot: %w", err)
	}
	return true, nil
}

// RemovePendingSlot removes a slot from the pending set. Returns false if the
// slot was already removed.
func (r *PostRepository) RemovePendingSlot(ctx context.Context, postID, slotID int64) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM post_pending_slots WHERE post_id = $1 AND slot_id = $2`,
		postID, slotID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove pending slot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAllPendingSlots returns every pending slot across all posts, paired
// with the post's creation time. This is the complete input needed to
// reconstruct tabulation timers after a restart.
func (r *PostRepository) ListAllPendingSlots(ctx context.Context) ([]*models.PendingSlot, error) {
	query := `
		SELECT pps.post_id, pps.slot_id, p.created_at
		FROM post_pending_slots pps
		JOIN posts p ON p.id = pps.post_id
		ORDER BY pps.post_id, pps.slot_id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending slots: %w", err)
	}
	defer rows.Close()

	var pending []*models.PendingSlot
	for rows.Next() {
		var p models.PendingSlot
		if err := rows.Scan(&p.PostID, &p.SlotID, &p.PostCreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending slot: %w", err)
		}
		pending = append(pending, &p)
	}

	return pending, rows.Err()
}
