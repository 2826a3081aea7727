package repositories

import "context"

// Repository aggregates the record stores the scoring and appeal core
// reads and writes. Submission score fields are mutated only through the
// appeal path; exams are never mutated once their window has opened.
type Repository interface {
	Exam() ExamRepository
	Submission() SubmissionRepository
	Appeal() AppealRepository

	// Student directory (read-only, external roster)
	Student() StudentRepository

	// WithTransaction executes fn against a repository bound to a single
	// database transaction. Either every write inside fn commits or none do.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
