package model

import "time"

// Customer is a person who books. Guests have no UserID; customers who
// register are linked to their account.
type Customer struct {
	ID        string    `json:"id"`                // customers.id
	UserID    *uint64   `json:"user_id,omitempty"` // customers.user_id (nullable)
	Name      string    `json:"name"`              // customers.name
	Email     string    `json:"email"`             // customers.email
	Phone     string    `json:"phone"`             // customers.phone
	CreatedAt time.Time `json:"created_at"`        // customers.created_at
}
