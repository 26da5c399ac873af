package model

import "time"

// DefaultDisplayName is used when the identity provider supplies neither a
// name nor an email.
const DefaultDisplayName = "Member"

type Household struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// Profile is a household member. HouseholdID is nil while the member is
// between households.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AvatarColor string    `json:"avatar_color"`
	HouseholdID *string   `json:"household_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
