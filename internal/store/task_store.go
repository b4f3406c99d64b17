package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"task-tracker-api/internal/display"
	"task-tracker-api/internal/models"

	"gorm.io/gorm"
)

// Page is one slice of a filtered task listing.
type Page struct {
	Tasks      []models.Task `json:"tasks"`
	TotalPages int           `json:"totalPages"`
}

// TaskStore persists task records. Every record it returns has already been
// shaped for display; the stored createdAt stays UTC.
type TaskStore struct {
	db      *gorm.DB
	display *display.Adapter
	now     func() time.Time
}

// Option configures a TaskStore.
type Option func(*TaskStore)

// WithClock overrides the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *TaskStore) {
		s.now = now
	}
}

func New(db *gorm.DB, adapter *display.Adapter, opts ...Option) *TaskStore {
	s := &TaskStore{
		db:      db,
		display: adapter,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TotalPages is ceil(total/pageSize), never less than 1 so that an empty
// listing still reads as "page 1 of 1".
func TotalPages(total int64, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 1
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// List returns one page of tasks, newest first; tasks created at the same
// instant keep insertion order. A blank status matches every task;
// otherwise the match is exact and case-sensitive.
func (s *TaskStore) List(ctx context.Context, status string, page, pageSize int) (Page, error) {
	if page < 1 || pageSize < 1 {
		return Page{}, ErrInvalidPage
	}

	var total int64
	if err := s.filtered(ctx, status).Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("count tasks: %w", err)
	}

	totalPages := TotalPages(total, pageSize)
	tasks := []models.Task{}
	// compare page counts, not offsets; (page-1)*pageSize can overflow
	if int64(page-1) >= int64(totalPages) {
		return Page{Tasks: tasks, TotalPages: totalPages}, nil
	}

	offset := (page - 1) * pageSize
	err := s.filtered(ctx, status).
		Order("created_at desc").
		Order("id asc").
		Limit(pageSize).
		Offset(offset).
		Find(&tasks).Error
	if err != nil {
		return Page{}, fmt.Errorf("list tasks: %w", err)
	}

	return Page{
		Tasks:      s.display.PresentAll(tasks),
		TotalPages: totalPages,
	}, nil
}

// Get looks a task up by primary key.
func (s *TaskStore) Get(ctx context.Context, id int64) (models.Task, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	return s.display.Present(task), nil
}

// Create stores a new task. Any id, createdAt or version on the candidate
// is replaced. Field-level rules are the caller's business.
func (s *TaskStore) Create(ctx context.Context, candidate models.Task) (models.Task, error) {
	task := candidate
	task.ID = 0
	task.Version = 1
	// postgres keeps microseconds; trim so the returned value equals the stored one
	task.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	s.display.Normalize(&task)

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	return s.display.Present(task), nil
}

// Update replaces every mutable field of the task at id with the values in
// updated. The stored createdAt is kept whatever the caller sends.
// updated.Version must equal the stored version; a stale version yields
// ErrConflict, a vanished row ErrNotFound.
func (s *TaskStore) Update(ctx context.Context, id int64, updated models.Task) (models.Task, error) {
	if updated.ID != id {
		return models.Task{}, ErrIDMismatch
	}
	s.display.Normalize(&updated)

	res := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND version = ?", id, updated.Version).
		Updates(map[string]interface{}{
			"title":       updated.Title,
			"description": updated.Description,
			"start_date":  updated.StartDate,
			"end_date":    updated.EndDate,
			"status":      updated.Status,
			"worklog":     updated.Worklog,
			"priority":    updated.Priority,
			"story_stats": updated.StoryStats,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return models.Task{}, fmt.Errorf("update task %d: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		exists, err := s.exists(ctx, id)
		if err != nil {
			return models.Task{}, err
		}
		if !exists {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, ErrConflict
	}

	stored, err := s.find(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	return s.display.Present(stored), nil
}

// Delete removes the task permanently.
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&models.Task{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns how many tasks carry each status label.
func (s *TaskStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}

	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Task{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Ping checks that the database answers.
func (s *TaskStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *TaskStore) filtered(ctx context.Context, status string) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Task{})
	if strings.TrimSpace(status) != "" {
		query = query.Where("status = ?", status)
	}
	return query
}

func (s *TaskStore) find(ctx context.Context, id int64) (models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

func (s *TaskStore) exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check task %d: %w", id, err)
	}
	return count > 0, nil
}
