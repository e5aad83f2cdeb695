package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/garba-app/apiserver/types"
)

const userColumns = `id, full_name, email, mobile, password_hash, age, gender, garba_skill,
		location, bio, wallet_amount, profile_pic_id, plan_mode, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks a user up case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByMobile looks a user up by exact mobile number.
func (r *UserRepository) GetByMobile(ctx context.Context, mobile string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE mobile = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, mobile))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) ExistsByMobile(ctx context.Context, mobile string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE mobile = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, mobile).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateWithImage inserts the user and, when image is non-nil, its profile
// image row plus the back-reference, all in one transaction. Either both
// records land or neither does.
func (r *UserRepository) CreateWithImage(ctx context.Context, user types.User, image *types.UserImage) (types.User, *types.UserImage, error) {
	now := time.Now()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.User{}, nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertUser = `
		INSERT INTO users (full_name, email, mobile, password_hash, age, gender, garba_skill,
			location, bio, wallet_amount, plan_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertUser,
		user.FullName,
		user.Email,
		user.Mobile,
		user.PasswordHash,
		user.Age,
		user.Gender,
		user.GarbaSkill,
		user.Location,
		user.Bio,
		user.WalletAmount,
		user.PlanMode,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, nil, mapUniqueViolation(err)
	}

	if image != nil {
		image.UserID = user.ID
		image.CreatedAt = now
		image.UpdatedAt = now

		const insertImage = `
			INSERT INTO user_images (user_id, email_id, photo_type, storage_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			insertImage,
			image.UserID,
			image.Email,
			image.PhotoType,
			image.StorageKey,
			image.CreatedAt,
			image.UpdatedAt,
		).Scan(&image.ID); err != nil {
			return types.User{}, nil, err
		}

		const linkImage = `UPDATE users SET profile_pic_id = $1 WHERE id = $2`
		if _, err := tx.ExecContext(ctx, linkImage, image.ID, user.ID); err != nil {
			return types.User{}, nil, err
		}
		user.ProfilePicID = &image.ID
	}

	if err := tx.Commit(); err != nil {
		return types.User{}, nil, err
	}
	return user, image, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET full_name = $1,
			age = $2,
			gender = $3,
			garba_skill = $4,
			location = $5,
			bio = $6,
			wallet_amount = $7,
			profile_pic_id = $8,
			plan_mode = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.FullName,
		user.Age,
		user.Gender,
		user.GarbaSkill,
		user.Location,
		user.Bio,
		user.WalletAmount,
		user.ProfilePicID,
		user.PlanMode,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(1) FROM users`
	var total int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *UserRepository) CountByPlan(ctx context.Context, plan string) (int64, error) {
	const query = `SELECT COUNT(1) FROM users WHERE plan_mode = $1`
	var total int64
	if err := r.db.QueryRowContext(ctx, query, plan).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Mobile,
		&user.PasswordHash,
		&user.Age,
		&user.Gender,
		&user.GarbaSkill,
		&user.Location,
		&user.Bio,
		&user.WalletAmount,
		&user.ProfilePicID,
		&user.PlanMode,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}
