package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"task-tracker-api/internal/events"
	"task-tracker-api/internal/store"
	"task-tracker-api/internal/validation"

	"github.com/gin-gonic/gin"
)

// UpdateTaskRequest is the full task as the client last saw it. Version must
// be the value from the last read.
type UpdateTaskRequest struct {
	validation.TaskInput
	ID      int64 `json:"id"`
	Version int   `json:"version"`
}

// TaskHandler serves the /api/tasks routes.
type TaskHandler struct {
	store           *store.TaskStore
	publisher       events.Publisher
	validator       *validation.Validator
	logger          *slog.Logger
	defaultPageSize int
	maxPageSize     int
}

// TaskHandlerConfig carries the dependencies of a TaskHandler.
type TaskHandlerConfig struct {
	Store           *store.TaskStore
	Publisher       events.Publisher
	Validator       *validation.Validator
	Logger          *slog.Logger
	DefaultPageSize int
	MaxPageSize     int
}

func NewTaskHandler(cfg TaskHandlerConfig) *TaskHandler {
	h := &TaskHandler{
		store:           cfg.Store,
		publisher:       cfg.Publisher,
		validator:       cfg.Validator,
		logger:          cfg.Logger,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
	}
	if h.publisher == nil {
		h.publisher = events.Nop{}
	}
	if h.validator == nil {
		h.validator = validation.New()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.defaultPageSize < 1 {
		h.defaultPageSize = 5
	}
	if h.maxPageSize < h.defaultPageSize {
		h.maxPageSize = h.defaultPageSize
	}
	return h
}

/*
*
ListTasks handles GET /api/tasks
Query params: page (default 1), pageSize (default from config), status (exact match, optional).
*/
func (h *TaskHandler) ListTasks(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.Query("pageSize"))
	if err != nil || pageSize < 1 {
		pageSize = h.defaultPageSize
	}
	if pageSize > h.maxPageSize {
		pageSize = h.maxPageSize
	}

	result, err := h.store.List(c.Request.Context(), c.Query("status"), page, pageSize)
	if err != nil {
		h.fail(c, err, "Failed to fetch tasks")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTask handles GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to fetch task")
		return
	}
	c.JSON(http.StatusOK, task)
}

/*
*
CreateTask handles POST /api/tasks
Validates the payload, stores it and answers 201 with the stored record.
*/
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req validation.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validator.Task(&req); err != nil {
		h.fail(c, err, "Invalid task")
		return
	}

	created, err := h.store.Create(c.Request.Context(), req.Task())
	if err != nil {
		h.fail(c, err, "Failed to create task")
		return
	}

	h.publish(c.Request.Context(), events.ForTask(events.TaskCreated, created))
	c.Header("Location", "/api/tasks/"+strconv.FormatInt(created.ID, 10))
	c.JSON(http.StatusCreated, created)
}

/*
*
UpdateTask handles PUT /api/tasks/:id
The body carries the whole task; the id must match the path and the version
must match the stored one.
*/
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID != id {
		h.fail(c, store.ErrIDMismatch, "")
		return
	}
	if err := h.validator.Task(&req.TaskInput); err != nil {
		h.fail(c, err, "Invalid task")
		return
	}

	task := req.Task()
	task.ID = req.ID
	task.Version = req.Version

	// subscribers of the old status must learn the task left their view
	previous, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to update task")
		return
	}
	updated, err := h.store.Update(c.Request.Context(), id, task)
	if err != nil {
		h.fail(c, err, "Failed to update task")
		return
	}

	evt := events.ForTask(events.TaskUpdated, updated)
	if previous.Version == task.Version {
		evt = evt.StatusChangedFrom(previous.Status)
	}
	h.publish(c.Request.Context(), evt)
	c.JSON(http.StatusOK, updated)
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	// read first so subscribers filtering on status still see the delete
	existing, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to delete task")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to delete task")
		return
	}

	h.publish(c.Request.Context(), events.ForTask(events.TaskDeleted, existing))
	c.Status(http.StatusNoContent)
}

// TaskStats handles GET /api/tasks/stats
func (h *TaskHandler) TaskStats(c *gin.Context) {
	counts, err := h.store.CountByStatus(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to count tasks")
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"counts": counts,
		"total":  total,
	})
}

func (h *TaskHandler) publish(ctx context.Context, evt events.Event) {
	if err := h.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		h.logger.Warn("publish task event",
			slog.String("type", string(evt.Type)),
			slog.Int64("task_id", evt.TaskID),
			slog.Any("error", err),
		)
	}
}

// fail maps store and validation errors onto status codes. Anything
// unrecognised is logged and reported as a 500 with message.
func (h *TaskHandler) fail(c *gin.Context, err error, message string) {
	var fields validation.FieldErrors
	switch {
	case errors.As(err, &fields):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Validation failed",
			"fields": fields,
		})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, store.ErrIDMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Task id does not match the path"})
	case errors.Is(err, store.ErrInvalidPage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Task was modified by someone else; reload and retry"})
	default:
		_ = c.Error(err)
		h.logger.Error(strings.ToLower(message), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Task id must be a positive integer"})
		return 0, false
	}
	return id, true
}

