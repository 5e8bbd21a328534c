package models

import "time"

// User represents an application account created on first social login.
// Identity is the (ExternalID, ExternalProvider) pair, unique per user.
type User struct {
	ID               string    `bson:"_id,omitempty" json:"id"`
	ExternalID       string    `bson:"externalId" json:"external_id" validate:"required"`
	ExternalProvider string    `bson:"externalProvider" json:"external_provider" validate:"required,oneof=facebook instagram"`
	Name             string    `bson:"name" json:"name" validate:"required,min=1,max=100"`
	Email            string    `bson:"email" json:"email" validate:"omitempty,email"`
	AvatarURL        string    `bson:"avatarUrl,omitempty" json:"avatar_url,omitempty" validate:"omitempty,url"`
	IsAdmin          bool      `bson:"isAdmin" json:"is_admin"`
	CreatedAt        time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updated_at"`
}
