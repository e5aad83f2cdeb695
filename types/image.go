package types

import "time"

// PhotoTypeProfile tags a user's profile picture. A user has at most one
// image of this type at any time.
const PhotoTypeProfile = "profile"

// UserImage is the metadata row for one stored image. The payload bytes
// live in object storage under StorageKey; replacing a picture overwrites
// the object at the same key, so the row ID stays stable.
type UserImage struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"userId" db:"user_id"`
	Email      string    `json:"emailId" db:"email_id"`
	PhotoType  string    `json:"photoType" db:"photo_type"`
	StorageKey string    `json:"-" db:"storage_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
