package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user tiers
type Role string

const (
	RoleFree    Role = "free"
	RolePremium Role = "premium"
	RoleTrainer Role = "PT"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleFree, RolePremium, RoleTrainer, RoleAdmin:
		return true
	}
	return false
}

// User represents an account of any tier. Premium state is owned by the
// premium lifecycle: Role == RolePremium implies PremiumExpireDate != nil.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`

	PremiumExpireDate *time.Time          `bson:"premiumExpireDate,omitempty" json:"premiumExpireDate,omitempty"`
	TrainerID         *primitive.ObjectID `bson:"trainerId,omitempty" json:"trainerId,omitempty"` // Assigned PT
	AvatarKey         string              `bson:"avatarKey,omitempty" json:"-"`                   // Object key in media storage

	HasUnreadNotification bool `bson:"hasUnreadNotification" json:"hasUnreadNotification"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsTrainer() bool {
	return u.Role == RoleTrainer
}

func (u *User) IsPremium() bool {
	return u.Role == RolePremium
}

// PremiumExpired reports whether a premium user must be downgraded at now.
// A premium user without an expiry date is treated as expired.
func (u *User) PremiumExpired(now time.Time) bool {
	if u.Role != RolePremium {
		return false
	}
	return u.PremiumExpireDate == nil || u.PremiumExpireDate.Before(now)
}
