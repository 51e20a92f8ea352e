package models

import (
	"strings"
	"time"
)

// Contact is a person the tenant does business with.
type Contact struct {
	ID        string    `bson:"_id" json:"id"`
	TenantID  string    `bson:"tenant_id" json:"tenant_id,omitempty"`
	FirstName string    `bson:"first_name" json:"first_name"`
	LastName  string    `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Company   string    `bson:"company,omitempty" json:"company,omitempty"`
	JobTitle  string    `bson:"job_title,omitempty" json:"job_title,omitempty"`
	OwnerID   string    `bson:"owner_id,omitempty" json:"owner_id,omitempty"`
	Tags      []string  `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Validate checks the required contact fields.
func (c *Contact) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" {
		return NewValidationError("first_name", "first name is required")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return NewValidationError("email", "invalid email address")
	}
	return nil
}

// Pagination describes a page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination computes the page count for total records.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// ContactQuery is a paged, optionally searched contact listing.
type ContactQuery struct {
	Page   int
	Limit  int
	Search string
}
