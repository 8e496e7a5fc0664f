package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/TWRT/tasks-api/internal/models"
	"github.com/TWRT/tasks-api/internal/schema"
	"github.com/TWRT/tasks-api/internal/service"
)

type TaskHandler struct {
	taskService *service.TaskService
	validator   *schema.Validator
	logger      *log.Logger
}

func NewTaskHandler(taskService *service.TaskService, validator *schema.Validator, logger *log.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		validator:   validator,
		logger:      logger,
	}
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.ListTasks(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.taskService.GetTask(r.Context(), r.PathValue("task_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var input models.TaskInput
	if err := decodeBody(r, h.validator, schema.Task, &input); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) ReplaceTask(w http.ResponseWriter, r *http.Request) {
	var input models.TaskInput
	if err := decodeBody(r, h.validator, schema.Task, &input); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	task, err := h.taskService.ReplaceTask(r.Context(), r.PathValue("task_id"), input)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.taskService.DeleteTask(r.Context(), r.PathValue("task_id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Task deleted successfully",
	})
}

// PatchTask drops null-valued fields before validating what remains, so
// {"title": null} counts as an empty update.
func (h *TaskHandler) PatchTask(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	doc, err := parseJSON(body)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if fields, ok := doc.(map[string]any); ok {
		for k, v := range fields {
			if v == nil {
				delete(fields, k)
			}
		}
	}

	var patch models.TaskPatch
	if err := decodeValidated(h.validator, schema.TaskPatch, doc, &patch); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	task, err := h.taskService.PatchTask(r.Context(), r.PathValue("task_id"), patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
