package models

import "time"

const (
	ContactStatusPending   = "pending"
	ContactPriorityMedium  = "medium"
	ContactCategoryGeneral = "general"
)

// ContactCategories is the accepted set of contact categories.
var ContactCategories = []string{"general", "support", "feedback", "complaint", "partnership", "other"}

type Contact struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Phone     string    `json:"phone,omitempty"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	UserID    *int64    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
