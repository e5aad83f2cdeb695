package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/garba-app/apiserver/internal/events"
	"github.com/garba-app/apiserver/internal/store"
	"github.com/garba-app/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByMobile(ctx context.Context, mobile string) (types.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByMobile(ctx context.Context, mobile string) (bool, error)
	CreateWithImage(ctx context.Context, user types.User, image *types.UserImage) (types.User, *types.UserImage, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Count(ctx context.Context) (int64, error)
	CountByPlan(ctx context.Context, plan string) (int64, error)
}

// EventPublisher publishes account lifecycle events. Publishing is always
// best effort; a broker failure never fails the request that triggered it.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, topic string, event events.UserEvent) (string, error)
}

// RegisterInput carries an already-validated registration request.
type RegisterInput struct {
	FullName   string
	Email      string
	Mobile     string
	Password   string
	Age        *int
	Gender     string
	GarbaSkill string
	Location   string
	Bio        string
	Picture    []byte
}

// UpdateProfileInput carries a partial profile update. Nil fields are
// left untouched.
type UpdateProfileInput struct {
	FullName   *string
	Age        *int
	GarbaSkill *string
	Location   *string
	Bio        *string
	Picture    []byte
}

// UserService encapsulates account use-cases: registration, login,
// profile reads and updates, and aggregate stats.
type UserService struct {
	repo      UserRepository
	images    *ImageService
	tokens    *TokenService
	publisher EventPublisher
	logger    *slog.Logger
}

func NewUserService(repo UserRepository, images *ImageService, tokens *TokenService, publisher EventPublisher, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		repo:      repo,
		images:    images,
		tokens:    tokens,
		publisher: publisher,
		logger:    logger,
	}
}

// Register creates an account. Email and mobile uniqueness are checked in
// that order, and a collision on both is reported as one combined conflict.
// The user row and its optional image row land in a single transaction;
// a staged image payload is discarded if the transaction fails.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	email := strings.TrimSpace(input.Email)
	mobile := strings.TrimSpace(input.Mobile)

	emailExists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return types.User{}, err
	}
	mobileExists, err := s.repo.ExistsByMobile(ctx, mobile)
	if err != nil {
		return types.User{}, err
	}
	if emailExists || mobileExists {
		return types.User{}, &ConflictError{
			Email:       email,
			Mobile:      mobile,
			EmailTaken:  emailExists,
			MobileTaken: mobileExists,
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user := types.User{
		FullName:     strings.TrimSpace(input.FullName),
		Email:        email,
		Mobile:       mobile,
		PasswordHash: string(hash),
		Age:          input.Age,
		Gender:       input.Gender,
		GarbaSkill:   input.GarbaSkill,
		Location:     input.Location,
		Bio:          input.Bio,
		WalletAmount: 0,
		PlanMode:     types.PlanTrial,
	}

	var image *types.UserImage
	if len(input.Picture) > 0 {
		staged, stageErr := s.images.Stage(ctx, email, input.Picture)
		if stageErr != nil {
			return types.User{}, stageErr
		}
		image = &staged
	}

	created, _, err := s.repo.CreateWithImage(ctx, user, image)
	if err != nil {
		if image != nil {
			s.images.Discard(ctx, *image)
		}
		// A concurrent registration can slip past the existence checks
		// and trip a unique index instead.
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			return types.User{}, &ConflictError{Email: email, Mobile: mobile, EmailTaken: true}
		case errors.Is(err, store.ErrDuplicateMobile):
			return types.User{}, &ConflictError{Email: email, Mobile: mobile, MobileTaken: true}
		}
		return types.User{}, err
	}

	s.publish(ctx, events.TopicUserRegistered, created)
	return created, nil
}

// Login authenticates by email (case-insensitive, when the identifier
// contains "@") or by exact mobile number, and issues a session token.
// Unknown identifier and wrong password are indistinguishable.
func (s *UserService) Login(ctx context.Context, identifier, password string) (types.User, string, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		user types.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.repo.GetByEmail(ctx, identifier)
	} else {
		user, err = s.repo.GetByMobile(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return types.User{}, "", err
	}
	return user, token, nil
}

// GetProfile returns the user with the given ID.
func (s *UserService) GetProfile(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile applies a partial update. Only supplied fields change;
// new picture bytes go through the attach-or-replace branch and the
// resulting image ID is persisted back on the user.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, input UpdateProfileInput) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if input.FullName != nil && strings.TrimSpace(*input.FullName) != "" {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Age != nil {
		user.Age = input.Age
	}
	if input.GarbaSkill != nil {
		user.GarbaSkill = *input.GarbaSkill
	}
	if input.Location != nil {
		user.Location = *input.Location
	}
	if input.Bio != nil {
		user.Bio = *input.Bio
	}

	if len(input.Picture) > 0 {
		imageID, imageErr := s.images.AttachOrReplace(ctx, user, input.Picture)
		if imageErr != nil {
			return types.User{}, imageErr
		}
		user.ProfilePicID = &imageID
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}

	s.publish(ctx, events.TopicProfileUpdated, updated)
	return updated, nil
}

// Stats counts users in total and per plan tier over the current set.
func (s *UserService) Stats(ctx context.Context) (types.UserStats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return types.UserStats{}, err
	}
	trial, err := s.repo.CountByPlan(ctx, types.PlanTrial)
	if err != nil {
		return types.UserStats{}, err
	}
	basic, err := s.repo.CountByPlan(ctx, types.PlanBasic)
	if err != nil {
		return types.UserStats{}, err
	}
	premium, err := s.repo.CountByPlan(ctx, types.PlanPremium)
	if err != nil {
		return types.UserStats{}, err
	}
	return types.UserStats{
		TotalUsers:       total,
		TrialPlanUsers:   trial,
		BasicPlanUsers:   basic,
		PremiumPlanUsers: premium,
	}, nil
}

func (s *UserService) publish(ctx context.Context, topic string, user types.User) {
	if s.publisher == nil {
		return
	}
	event := events.UserEvent{
		UserID:   user.ID,
		Email:    user.Email,
		PlanMode: user.PlanMode,
	}
	if _, err := s.publisher.PublishUserEvent(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish user event", "topic", topic, "userId", user.ID, "error", err)
	}
}
