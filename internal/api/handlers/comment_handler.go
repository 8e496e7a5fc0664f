package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/TWRT/tasks-api/internal/models"
	"github.com/TWRT/tasks-api/internal/schema"
	"github.com/TWRT/tasks-api/internal/service"
)

type CommentHandler struct {
	commentService *service.CommentService
	validator      *schema.Validator
	logger         *log.Logger
}

func NewCommentHandler(commentService *service.CommentService, validator *schema.Validator, logger *log.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		validator:      validator,
		logger:         logger,
	}
}

func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var comment models.Comment
	if err := decodeBody(r, h.validator, schema.Comment, &comment); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	task, err := h.commentService.AddComment(r.Context(), r.PathValue("task_id"), comment)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	var update models.CommentUpdate
	if err := decodeBody(r, h.validator, schema.CommentUpdate, &update); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	task, err := h.commentService.UpdateComment(r.Context(), r.PathValue("task_id"), r.PathValue("comment_id"), update)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	task, err := h.commentService.DeleteComment(r.Context(), r.PathValue("task_id"), r.PathValue("comment_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
