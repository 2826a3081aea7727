package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateSubmissionCache drops the cached copies of one submission and
// the list pages of its exam.
func InvalidateSubmissionCache(ctx context.Context, cm *CacheManager, submissionID, examID uint, studentID string) {
	SafeDelete(ctx, cm.Submission,
		fmt.Sprintf("id:%d", submissionID),
		fmt.Sprintf("exam:%d:student:%s", examID, studentID))
	SafeInvalidatePattern(ctx, cm.Submission, fmt.Sprintf("list:exam:%d:*", examID))
}

// InvalidateAppealCache drops cached appeal records and queue pages.
func InvalidateAppealCache(ctx context.Context, cm *CacheManager, appealID uint) {
	SafeDelete(ctx, cm.Appeal, fmt.Sprintf("id:%d", appealID))
	SafeInvalidatePattern(ctx, cm.Appeal, "list:*")
	SafeInvalidatePattern(ctx, cm.Exists, "appeal:*")
}
