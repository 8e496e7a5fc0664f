package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TWRT/tasks-api/internal/models"
)

const tasksCollection = "tasks"

type TaskRepository struct {
	tasks *Collection
}

func NewTaskRepository(ctx context.Context, db *Database) (*TaskRepository, error) {
	tasks, err := db.Collection(ctx, tasksCollection)
	if err != nil {
		return nil, err
	}
	return &TaskRepository{tasks: tasks}, nil
}

func (r *TaskRepository) FindAll(ctx context.Context, limit int) ([]models.Task, error) {
	docs, err := r.tasks.Find(ctx, limit)
	if err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := toTask(doc)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// FindByID returns ErrNoDocuments when no task has the given id.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	doc, err := r.tasks.FindOne(ctx, Filter{ID: id})
	if err != nil {
		return models.Task{}, err
	}
	return toTask(doc)
}

func (r *TaskRepository) Insert(ctx context.Context, task models.Task) (string, error) {
	doc, err := toDocument(task)
	if err != nil {
		return "", err
	}
	return r.tasks.InsertOne(ctx, doc)
}

// Replace overwrites every client-owned field of the task. created_at is kept.
func (r *TaskRepository) Replace(ctx context.Context, id string, input models.TaskInput, updatedAt time.Time) (UpdateResult, error) {
	return r.tasks.UpdateOne(ctx, Filter{ID: id}, Update{
		Set: map[string]any{
			"title":       input.Title,
			"description": input.Description,
			"completed":   input.Completed,
			"comments":    input.Comments,
			"updated_at":  updatedAt,
		},
	})
}

func (r *TaskRepository) Patch(ctx context.Context, id string, patch models.TaskPatch, updatedAt time.Time) (UpdateResult, error) {
	set := map[string]any{"updated_at": updatedAt}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Completed != nil {
		set["completed"] = *patch.Completed
	}
	return r.tasks.UpdateOne(ctx, Filter{ID: id}, Update{Set: set})
}

// PushComment appends comment unless the task already holds a comment with the same id.
func (r *TaskRepository) PushComment(ctx context.Context, id string, comment models.Comment, updatedAt time.Time) (UpdateResult, error) {
	return r.tasks.UpdateOne(ctx,
		Filter{ID: id, NoElem: &ElemMatch{Path: "comments", Field: "id", Value: comment.Id}},
		Update{
			Set:  map[string]any{"updated_at": updatedAt},
			Push: map[string]any{"comments": comment},
		},
	)
}

func (r *TaskRepository) SetCommentContent(ctx context.Context, id, commentID, content string, updatedAt time.Time) (UpdateResult, error) {
	return r.tasks.UpdateOne(ctx,
		Filter{ID: id, Elem: &ElemMatch{Path: "comments", Field: "id", Value: commentID}},
		Update{Set: map[string]any{
			"comments.$.content": content,
			"updated_at":         updatedAt,
		}},
	)
}

func (r *TaskRepository) PullComment(ctx context.Context, id, commentID string, updatedAt time.Time) (UpdateResult, error) {
	return r.tasks.UpdateOne(ctx,
		Filter{ID: id, Elem: &ElemMatch{Path: "comments", Field: "id", Value: commentID}},
		Update{
			Set:  map[string]any{"updated_at": updatedAt},
			Pull: map[string]PullMatch{"comments": {Field: "id", Value: commentID}},
		},
	)
}

func (r *TaskRepository) Delete(ctx context.Context, id string) (DeleteResult, error) {
	return r.tasks.DeleteOne(ctx, Filter{ID: id})
}

func toDocument(task models.Task) (Document, error) {
	b, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("Error trying to encode task: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	delete(doc, "id")
	return doc, nil
}

// toTask decodes a stored document and exposes its _id as the task id.
func toTask(doc Document) (models.Task, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return models.Task{}, err
	}

	var task models.Task
	if err := json.Unmarshal(b, &task); err != nil {
		return models.Task{}, fmt.Errorf("Error trying to decode task: %w", err)
	}

	id, ok := doc[idField].(string)
	if !ok {
		return models.Task{}, fmt.Errorf("task document has no %s", idField)
	}
	task.Id = id
	if task.Comments == nil {
		task.Comments = []models.Comment{}
	}
	return task, nil
}
