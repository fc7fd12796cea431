package models

import (
	"time"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
)

// User represents an account known to the API (mapped from verified token claims)
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Sub       string    `bson:"sub" json:"sub"` // token subject
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	Role      string    `bson:"role,omitempty" json:"role,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Author returns the reference embedded in comments. The subject is the stable id.
func (u *User) Author() annotation.User {
	return annotation.User{ID: u.Sub, Name: u.Name, Email: u.Email, Role: u.Role}
}
