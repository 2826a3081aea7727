package casdoor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// StudentCasdoor is the read-only roster directory backing the appeal
// service's display snapshots. It never writes back to Casdoor.
type StudentCasdoor struct {
	client *casdoorsdk.Client
	redis  *redis.Client
	config CasdoorConfig

	// Cache settings
	cachePrefix string
	cacheTTL    time.Duration
}

func NewStudentCasdoor(config CasdoorConfig, redisClient *redis.Client) repositories.StudentRepository {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	return &StudentCasdoor{
		client:      client,
		redis:       redisClient,
		config:      config,
		cachePrefix: "student:",
		cacheTTL:    15 * time.Minute,
	}
}

// ===== CACHE METHODS =====

func (s *StudentCasdoor) getCacheKey(key string) string {
	return fmt.Sprintf("%s%s", s.cachePrefix, key)
}

func (s *StudentCasdoor) getStudentFromCache(ctx context.Context, key string) (*models.Student, error) {
	if s.redis == nil {
		return nil, nil // Cache not available
	}

	cacheKey := s.getCacheKey(key)
	data, err := s.redis.Get(ctx, cacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Not found in cache
		}
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var student models.Student
	if err := json.Unmarshal([]byte(data), &student); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached student: %w", err)
	}

	return &student, nil
}

func (s *StudentCasdoor) setStudentCache(ctx context.Context, key string, student *models.Student) error {
	if s.redis == nil {
		return nil
	}

	data, err := json.Marshal(student)
	if err != nil {
		return fmt.Errorf("failed to marshal student for cache: %w", err)
	}

	cacheKey := s.getCacheKey(key)
	return s.redis.Set(ctx, cacheKey, data, s.cacheTTL).Err()
}

// ===== CONVERSION METHODS =====

func (s *StudentCasdoor) convertCasdoorUserToStudent(casdoorUser *casdoorsdk.User) *models.Student {
	if casdoorUser == nil {
		return nil
	}

	var createdAt, updatedAt time.Time
	if casdoorUser.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, casdoorUser.CreatedTime)
	}
	if casdoorUser.UpdatedTime != "" {
		updatedAt, _ = time.Parse(time.RFC3339, casdoorUser.UpdatedTime)
	}

	status := models.StudentActive
	if casdoorUser.IsForbidden || casdoorUser.IsDeleted {
		status = models.StudentDisabled
	}

	student := &models.Student{
		ID:        casdoorUser.Id,
		Name:      casdoorUser.DisplayName,
		Group:     s.getPropertyOrDefault(casdoorUser.Properties, "group", casdoorUser.Tag),
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if student.Name == "" {
		student.Name = casdoorUser.Name
	}
	if casdoorUser.Email != "" {
		email := casdoorUser.Email
		student.Email = &email
	}
	if class, ok := casdoorUser.Properties["class"]; ok {
		student.Class = &class
	}
	if parent, ok := casdoorUser.Properties["parent"]; ok {
		student.Parent = &parent
	}

	return student
}

func (s *StudentCasdoor) getPropertyOrDefault(properties map[string]string, key, defaultValue string) string {
	if value, exists := properties[key]; exists {
		return value
	}
	return defaultValue
}

// ===== READ OPERATIONS =====

// GetByID retrieves a student by ID
func (s *StudentCasdoor) GetByID(ctx context.Context, id string) (*models.Student, error) {
	cacheKey := fmt.Sprintf("id:%s", id)
	if cached, err := s.getStudentFromCache(ctx, cacheKey); err == nil && cached != nil {
		return cached, nil
	}

	casdoorUser, err := s.client.GetUserByUserId(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get student from Casdoor: %w", err)
	}

	if casdoorUser == nil {
		return nil, repositories.ErrNotFound
	}

	student := s.convertCasdoorUserToStudent(casdoorUser)
	if student == nil {
		return nil, fmt.Errorf("failed to convert Casdoor user")
	}

	s.setStudentCache(ctx, cacheKey, student)

	return student, nil
}

// List retrieves the full roster
func (s *StudentCasdoor) List(ctx context.Context) ([]*models.Student, error) {
	casdoorUsers, err := s.client.GetUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to list students from Casdoor: %w", err)
	}

	students := make([]*models.Student, 0, len(casdoorUsers))
	for _, casdoorUser := range casdoorUsers {
		if student := s.convertCasdoorUserToStudent(casdoorUser); student != nil {
			students = append(students, student)
		}
	}

	return students, nil
}
