package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/cors"

	"github.com/TWRT/tasks-api/internal/api/handlers"
	"github.com/TWRT/tasks-api/internal/api/middleware"
	"github.com/TWRT/tasks-api/internal/repository"
	"github.com/TWRT/tasks-api/internal/schema"
	"github.com/TWRT/tasks-api/internal/service"
)

type RouterOptions struct {
	CORSOrigins []string
	// Now overrides the clock used for timestamps. Nil means UTC wall time.
	Now func() time.Time
}

func SetupRouter(ctx context.Context, db *repository.Database, logger *log.Logger, opts RouterOptions) (http.Handler, error) {
	mux := http.NewServeMux()

	validator, err := schema.New()
	if err != nil {
		return nil, err
	}

	taskRepo, err := repository.NewTaskRepository(ctx, db)
	if err != nil {
		return nil, err
	}

	taskService := service.NewTaskService(taskRepo, opts.Now)
	commentService := service.NewCommentService(taskRepo, opts.Now)

	taskHandler := handlers.NewTaskHandler(taskService, validator, logger)
	commentHandler := handlers.NewCommentHandler(commentService, validator, logger)
	healthHandler := handlers.NewHealthHandler(db)

	// Collection routes answer with and without the trailing slash.
	mux.HandleFunc("GET /tasks", taskHandler.ListTasks)
	mux.HandleFunc("GET /tasks/{$}", taskHandler.ListTasks)
	mux.HandleFunc("POST /tasks", taskHandler.CreateTask)
	mux.HandleFunc("POST /tasks/{$}", taskHandler.CreateTask)
	mux.HandleFunc("GET /tasks/{task_id}", taskHandler.GetTask)
	mux.HandleFunc("PUT /tasks/{task_id}", taskHandler.ReplaceTask)
	mux.HandleFunc("DELETE /tasks/{task_id}", taskHandler.DeleteTask)
	mux.HandleFunc("PATCH /tasks/{task_id}", taskHandler.PatchTask)

	mux.HandleFunc("POST /tasks/{task_id}/comments", commentHandler.AddComment)
	mux.HandleFunc("POST /tasks/{task_id}/comments/{$}", commentHandler.AddComment)
	mux.HandleFunc("PUT /tasks/{task_id}/comments/{comment_id}", commentHandler.UpdateComment)
	mux.HandleFunc("DELETE /tasks/{task_id}/comments/{comment_id}", commentHandler.DeleteComment)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	return c.Handler(middleware.RequestID(middleware.Logging(logger)(mux))), nil
}
