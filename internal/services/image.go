package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garba-app/apiserver/internal/store"
	"github.com/garba-app/apiserver/types"
	"github.com/google/uuid"
)

const imageContentType = "image/jpeg"

// ImageRepository defines persistence operations for image metadata.
type ImageRepository interface {
	Get(ctx context.Context, id int64) (types.UserImage, error)
	Create(ctx context.Context, image types.UserImage) (types.UserImage, error)
	Touch(ctx context.Context, id int64) error
}

// PayloadStore defines the object-storage operations for image payloads.
type PayloadStore interface {
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ImageService owns the profile-image lifecycle: one live image per user,
// created on first attach and overwritten in place thereafter.
type ImageService struct {
	repo     ImageRepository
	payloads PayloadStore
	logger   *slog.Logger
}

func NewImageService(repo ImageRepository, payloads PayloadStore, logger *slog.Logger) *ImageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageService{repo: repo, payloads: payloads, logger: logger}
}

// Stage uploads the payload and returns an unsaved metadata row for it.
// The caller persists the row (possibly inside a wider transaction) or
// calls Discard to drop the staged payload.
func (s *ImageService) Stage(ctx context.Context, email string, data []byte) (types.UserImage, error) {
	image := types.UserImage{
		Email:      email,
		PhotoType:  types.PhotoTypeProfile,
		StorageKey: fmt.Sprintf("images/%s", uuid.NewString()),
	}
	if err := s.payloads.PutBytes(ctx, image.StorageKey, data, imageContentType); err != nil {
		return types.UserImage{}, err
	}
	return image, nil
}

// Discard removes a staged payload whose metadata row never landed.
func (s *ImageService) Discard(ctx context.Context, image types.UserImage) {
	if err := s.payloads.Delete(ctx, image.StorageKey); err != nil {
		s.logger.Warn("failed to discard staged image payload",
			"storageKey", image.StorageKey, "error", err)
	}
}

// Attach creates a fresh image record for the user. Used on first-ever
// attachment; replacement goes through AttachOrReplace.
func (s *ImageService) Attach(ctx context.Context, userID int64, email string, data []byte) (types.UserImage, error) {
	image, err := s.Stage(ctx, email, data)
	if err != nil {
		return types.UserImage{}, err
	}
	image.UserID = userID

	created, err := s.repo.Create(ctx, image)
	if err != nil {
		s.Discard(ctx, image)
		return types.UserImage{}, err
	}
	return created, nil
}

// AttachOrReplace stores new payload bytes for the user and returns the ID
// of the live image record:
//
//  1. user has an image reference and the record exists: the payload at the
//     record's storage key is overwritten in place, ID unchanged;
//  2. user has an image reference but the record is gone (a dangling
//     reference): a fresh record is created, healing the pointer;
//  3. user has no image reference: a fresh record is created.
func (s *ImageService) AttachOrReplace(ctx context.Context, user types.User, data []byte) (int64, error) {
	if user.ProfilePicID != nil {
		existing, err := s.repo.Get(ctx, *user.ProfilePicID)
		switch {
		case err == nil:
			if putErr := s.payloads.PutBytes(ctx, existing.StorageKey, data, imageContentType); putErr != nil {
				return 0, putErr
			}
			if touchErr := s.repo.Touch(ctx, existing.ID); touchErr != nil {
				return 0, touchErr
			}
			return existing.ID, nil
		case errors.Is(err, store.ErrNotFound):
			// The user points at an image row that no longer exists.
			// Self-heal by creating a fresh record, but flag it: the
			// reference should never have dangled in the first place.
			s.logger.Warn("dangling profile image reference, creating replacement",
				"userId", user.ID, "profilePicId", *user.ProfilePicID)
		default:
			return 0, err
		}
	}

	created, err := s.Attach(ctx, user.ID, user.Email, data)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// Fetch returns the payload bytes for an image ID. No ownership check
// happens here; callers that need one must resolve through the owning
// user's reference first.
func (s *ImageService) Fetch(ctx context.Context, imageID int64) ([]byte, error) {
	image, err := s.repo.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}
	return s.payloads.GetBytes(ctx, image.StorageKey)
}
