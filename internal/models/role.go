package models

// UserRole is the portal role carried in the auth token. Teachers run
// exams and resolve appeals; students take exams and file them.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)
