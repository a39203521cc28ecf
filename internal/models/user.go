package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents the application user account.
type User struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email                 string             `bson:"email" json:"email"`
	PasswordHash          string             `bson:"passwordHash" json:"-"`
	FullName              string             `bson:"fullName" json:"fullName"`
	Phone                 string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address               string             `bson:"address,omitempty" json:"address,omitempty"`
	City                  string             `bson:"city,omitempty" json:"city,omitempty"`
	District              string             `bson:"district,omitempty" json:"district,omitempty"`
	Ward                  string             `bson:"ward,omitempty" json:"ward,omitempty"`
	Role                  Role               `bson:"role" json:"role"`
	IsVerified            bool               `bson:"isVerified" json:"isVerified"`
	VerificationCode      string             `bson:"verificationCode,omitempty" json:"-"`
	VerificationExpiresAt *time.Time         `bson:"verificationExpiresAt,omitempty" json:"-"`
	ResetCode             string             `bson:"resetCode,omitempty" json:"-"`
	ResetExpiresAt        *time.Time         `bson:"resetExpiresAt,omitempty" json:"-"`
	Favorites             []string           `bson:"favorites" json:"favorites"`
	CreatedAt             time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt" json:"updatedAt"`
}
