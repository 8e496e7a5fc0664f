package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TWRT/tasks-api/internal/models"
	"github.com/TWRT/tasks-api/internal/repository"
)

type CommentStore interface {
	FindByID(ctx context.Context, id string) (models.Task, error)
	PushComment(ctx context.Context, id string, comment models.Comment, updatedAt time.Time) (repository.UpdateResult, error)
	SetCommentContent(ctx context.Context, id, commentID, content string, updatedAt time.Time) (repository.UpdateResult, error)
	PullComment(ctx context.Context, id, commentID string, updatedAt time.Time) (repository.UpdateResult, error)
}

type CommentService struct {
	store CommentStore
	now   func() time.Time
}

func NewCommentService(store CommentStore, now func() time.Time) *CommentService {
	if now == nil {
		now = utcNow
	}
	return &CommentService{store: store, now: now}
}

func (s *CommentService) AddComment(ctx context.Context, taskID string, comment models.Comment) (models.Task, error) {
	if !validTaskID(taskID) {
		return models.Task{}, taskNotFound()
	}

	now := s.now()
	comment, err := prepareComment(comment, now)
	if err != nil {
		return models.Task{}, err
	}

	result, err := s.store.PushComment(ctx, taskID, comment, now)
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to add comment: %w", err)
	}
	if result.MatchedCount == 0 {
		// Either the task is gone or it already holds a comment with this id.
		_, err := s.store.FindByID(ctx, taskID)
		if errors.Is(err, repository.ErrNoDocuments) {
			return models.Task{}, taskNotFound()
		}
		if err != nil {
			return models.Task{}, fmt.Errorf("Error trying to get task: %w", err)
		}
		return models.Task{}, invalidf("Comment %s already exists", comment.Id)
	}

	return reload(ctx, s.store, taskID)
}

func (s *CommentService) UpdateComment(ctx context.Context, taskID, commentID string, update models.CommentUpdate) (models.Task, error) {
	commentID, ok := canonicalCommentID(commentID)
	if !ok || !validTaskID(taskID) {
		return models.Task{}, commentNotFound()
	}

	result, err := s.store.SetCommentContent(ctx, taskID, commentID, update.Content, s.now())
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to update comment: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.Task{}, commentNotFound()
	}

	return reload(ctx, s.store, taskID)
}

func (s *CommentService) DeleteComment(ctx context.Context, taskID, commentID string) (models.Task, error) {
	commentID, ok := canonicalCommentID(commentID)
	if !ok || !validTaskID(taskID) {
		return models.Task{}, commentNotFound()
	}

	result, err := s.store.PullComment(ctx, taskID, commentID, s.now())
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to delete comment: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.Task{}, commentNotFound()
	}

	return reload(ctx, s.store, taskID)
}

// prepareComment fills in the id and creation time of a new comment.
func prepareComment(comment models.Comment, now time.Time) (models.Comment, error) {
	if comment.Id == "" {
		comment.Id = uuid.NewString()
	} else {
		id, ok := canonicalCommentID(comment.Id)
		if !ok {
			return models.Comment{}, invalidf("Invalid comment id %q", comment.Id)
		}
		comment.Id = id
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now
	}
	return comment, nil
}

func prepareComments(comments []models.Comment, now time.Time) ([]models.Comment, error) {
	out := make([]models.Comment, 0, len(comments))
	seen := make(map[string]bool, len(comments))
	for _, c := range comments {
		prepared, err := prepareComment(c, now)
		if err != nil {
			return nil, err
		}
		if seen[prepared.Id] {
			return nil, invalidf("Duplicate comment id %s", prepared.Id)
		}
		seen[prepared.Id] = true
		out = append(out, prepared)
	}
	return out, nil
}

// canonicalCommentID parses id as a UUID and returns its canonical lowercase form.
func canonicalCommentID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
