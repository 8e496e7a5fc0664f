package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/TWRT/tasks-api/internal/models"
	"github.com/TWRT/tasks-api/internal/repository"
)

// ListLimit caps the number of tasks returned by ListTasks.
const ListLimit = 100

type TaskStore interface {
	FindAll(ctx context.Context, limit int) ([]models.Task, error)
	FindByID(ctx context.Context, id string) (models.Task, error)
	Insert(ctx context.Context, task models.Task) (string, error)
	Replace(ctx context.Context, id string, input models.TaskInput, updatedAt time.Time) (repository.UpdateResult, error)
	Patch(ctx context.Context, id string, patch models.TaskPatch, updatedAt time.Time) (repository.UpdateResult, error)
	Delete(ctx context.Context, id string) (repository.DeleteResult, error)
}

type TaskService struct {
	store TaskStore
	now   func() time.Time
}

// NewTaskService returns a service reading the time from now, or from the
// UTC wall clock when now is nil.
func NewTaskService(store TaskStore, now func() time.Time) *TaskService {
	if now == nil {
		now = utcNow
	}
	return &TaskService{store: store, now: now}
}

func (s *TaskService) ListTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.store.FindAll(ctx, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("Error trying to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (models.Task, error) {
	if !validTaskID(id) {
		return models.Task{}, taskNotFound()
	}
	return reload(ctx, s.store, id)
}

func (s *TaskService) CreateTask(ctx context.Context, input models.TaskInput) (models.Task, error) {
	now := s.now()

	comments, err := prepareComments(input.Comments, now)
	if err != nil {
		return models.Task{}, err
	}

	id, err := s.store.Insert(ctx, models.Task{
		Title:       input.Title,
		Description: input.Description,
		Completed:   input.Completed,
		Comments:    comments,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to create task: %w", err)
	}

	return reload(ctx, s.store, id)
}

func (s *TaskService) ReplaceTask(ctx context.Context, id string, input models.TaskInput) (models.Task, error) {
	if !validTaskID(id) {
		return models.Task{}, taskNotFound()
	}

	now := s.now()
	comments, err := prepareComments(input.Comments, now)
	if err != nil {
		return models.Task{}, err
	}
	input.Comments = comments

	result, err := s.store.Replace(ctx, id, input, now)
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to replace task: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.Task{}, taskNotFound()
	}

	return reload(ctx, s.store, id)
}

func (s *TaskService) PatchTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	if patch.IsEmpty() {
		return models.Task{}, invalidf("No fields to update")
	}
	if !validTaskID(id) {
		return models.Task{}, taskNotFound()
	}

	result, err := s.store.Patch(ctx, id, patch, s.now())
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to update task: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.Task{}, taskNotFound()
	}

	return reload(ctx, s.store, id)
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if !validTaskID(id) {
		return taskNotFound()
	}

	result, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("Error trying to delete task: %w", err)
	}
	if result.DeletedCount == 0 {
		return taskNotFound()
	}
	return nil
}

type taskFinder interface {
	FindByID(ctx context.Context, id string) (models.Task, error)
}

// reload reads the task back after a write so callers see the stored state.
func reload(ctx context.Context, store taskFinder, id string) (models.Task, error) {
	task, err := store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNoDocuments) {
		return models.Task{}, taskNotFound()
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to get task: %w", err)
	}
	return task, nil
}

func validTaskID(id string) bool {
	_, err := xid.FromString(id)
	return err == nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
