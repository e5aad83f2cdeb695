package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/garba-app/apiserver/types"
)

// ImageRepository handles persistence for user image metadata. The image
// payload itself lives in object storage under the row's storage key.
type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) Get(ctx context.Context, id int64) (types.UserImage, error) {
	const query = `
		SELECT id, user_id, email_id, photo_type, storage_key, created_at, updated_at
		FROM user_images
		WHERE id = $1`
	var image types.UserImage
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&image.ID,
		&image.UserID,
		&image.Email,
		&image.PhotoType,
		&image.StorageKey,
		&image.CreatedAt,
		&image.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.UserImage{}, ErrNotFound
		}
		return types.UserImage{}, err
	}
	return image, nil
}

func (r *ImageRepository) Create(ctx context.Context, image types.UserImage) (types.UserImage, error) {
	now := time.Now()
	image.CreatedAt = now
	image.UpdatedAt = now

	const query = `
		INSERT INTO user_images (user_id, email_id, photo_type, storage_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		image.UserID,
		image.Email,
		image.PhotoType,
		image.StorageKey,
		image.CreatedAt,
		image.UpdatedAt,
	).Scan(&image.ID); err != nil {
		return types.UserImage{}, err
	}
	return image, nil
}

// Touch bumps updated_at after the payload at the row's storage key has
// been overwritten in place.
func (r *ImageRepository) Touch(ctx context.Context, id int64) error {
	const query = `UPDATE user_images SET updated_at = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
