package domain

import "time"

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is a studio account with a local credit balance.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user bypasses credit accounting.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// AdminConfig holds the payment hand-off settings.
type AdminConfig struct {
	WhatsAppNumber string  `json:"whatsapp_number"`
	PricePerCredit float64 `json:"price_per_credit"`
}
