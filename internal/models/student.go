package models

import "time"

type StudentStatus string

const (
	StudentActive   StudentStatus = "active"
	StudentDisabled StudentStatus = "disabled"
)

// Student is a read-only projection of the roster directory. The scoring
// and appeal core only ever reads it, to snapshot display fields.
type Student struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Group  string        `json:"group"`
	Email  *string       `json:"email"`
	Class  *string       `json:"class"`
	Parent *string       `json:"parent"`
	Status StudentStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
