package types

import "time"

// Plan tiers a user can be on. Every user is always on exactly one of these.
const (
	PlanTrial   = "trial"
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// User represents a registered account in the system.
type User struct {
	// ID is the unique identifier of the user. Real user IDs are
	// always positive; the admin principal never appears in this table.
	ID int64 `json:"id" db:"id"`

	// FullName is the user's display name.
	FullName string `json:"fullName" db:"full_name"`

	// Email is unique across users, compared case-insensitively and
	// stored lowercased.
	Email string `json:"email" db:"email"`

	// Mobile is the user's mobile number, unique by exact match.
	Mobile string `json:"mobile" db:"mobile"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// It is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Age is optional; when set it is between 0 and 120.
	Age *int `json:"age,omitempty" db:"age"`

	// Gender is optional free text, e.g. "Male", "Female", "Other".
	Gender string `json:"gender,omitempty" db:"gender"`

	// GarbaSkill is the user's self-declared skill level,
	// e.g. "Beginner", "Intermediate", "Expert".
	GarbaSkill string `json:"garbaSkill,omitempty" db:"garba_skill"`

	// Location is optional free text.
	Location string `json:"location,omitempty" db:"location"`

	// Bio is an optional biography, at most 500 characters.
	Bio string `json:"bio,omitempty" db:"bio"`

	// WalletAmount is the user's wallet balance. Never negative,
	// defaults to zero on registration.
	WalletAmount float64 `json:"walletAmount" db:"wallet_amount"`

	// ProfilePicID references the user's profile image row, if any.
	// It is the sole linkage between a user and their image.
	ProfilePicID *int64 `json:"profilePicId,omitempty" db:"profile_pic_id"`

	// PlanMode is the user's plan tier: trial, basic, or premium.
	PlanMode string `json:"planMode" db:"plan_mode"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserStats is an aggregate count over the full current user set.
type UserStats struct {
	TotalUsers       int64 `json:"totalUsers"`
	TrialPlanUsers   int64 `json:"trialPlanUsers"`
	BasicPlanUsers   int64 `json:"basicPlanUsers"`
	PremiumPlanUsers int64 `json:"premiumPlanUsers"`
}
