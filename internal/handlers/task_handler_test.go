package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"task-tracker-api/internal/display"
	"task-tracker-api/internal/events"
	"task-tracker-api/internal/models"
	"task-tracker-api/internal/store"
	"task-tracker-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	ist     = time.FixedZone("IST", 5*3600+30*60)
	created = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, evt events.Event) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func ofType(typ events.Type) interface{} {
	return mock.MatchedBy(func(evt events.Event) bool { return evt.Type == typ })
}

type fixture struct {
	router *gin.Engine
	store  *store.TaskStore
	pub    *mockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustInMemoryDB(t)
	s := store.New(db, display.New(ist), store.WithClock(func() time.Time { return created }))
	pub := new(mockPublisher)
	h := NewTaskHandler(TaskHandlerConfig{
		Store:           s,
		Publisher:       pub,
		DefaultPageSize: 5,
		MaxPageSize:     10,
	})

	r := gin.New()
	api := r.Group("/api/tasks")
	api.GET("", h.ListTasks)
	api.GET("/stats", h.TaskStats)
	api.GET("/:id", h.GetTask)
	api.POST("", h.CreateTask)
	api.PUT("/:id", h.UpdateTask)
	api.DELETE("/:id", h.DeleteTask)

	return &fixture{router: r, store: s, pub: pub}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seed(t *testing.T, n int, status string) []models.Task {
	t.Helper()
	out := make([]models.Task, 0, n)
	for i := 0; i < n; i++ {
		start, _ := models.ParseDate("2024-03-10")
		end, _ := models.ParseDate("2024-03-12")
		task, err := f.store.Create(context.Background(), models.Task{
			Title:       fmt.Sprintf("%s %d", status, i),
			Description: "Desc",
			StartDate:   start,
			EndDate:     end,
			Status:      status,
			Priority:    models.PriorityLow,
		})
		require.NoError(t, err)
		out = append(out, task)
	}
	return out
}

func validPayload() map[string]any {
	return map[string]any{
		"title":       "Sprint Setup",
		"description": "Prepare the board",
		"startDate":   "2024-03-10",
		"endDate":     "2024-03-12T18:45:00",
		"status":      models.StatusInProgress,
		"worklog":     "  kickoff  ",
		"priority":    models.PriorityHigh,
		"storyStats":  []string{"Development", "Unit Testing"},
	}
}

type pageBody struct {
	Tasks      []models.Task `json:"tasks"`
	TotalPages int           `json:"totalPages"`
}

type validationBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestListTasks_Defaults(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 7, models.StatusNotStarted)

	w := f.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)

	page := decode[pageBody](t, w)
	assert.Len(t, page.Tasks, 5)
	assert.Equal(t, 2, page.TotalPages)
}

func TestListTasks_StatusFilter(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 12, models.StatusCompleted)
	f.seed(t, 3, models.StatusInProgress)

	w := f.do(t, http.MethodGet, "/api/tasks?page=1&pageSize=5&status=Completed", nil)
	require.Equal(t, http.StatusOK, w.Code)

	page := decode[pageBody](t, w)
	assert.Len(t, page.Tasks, 5)
	assert.Equal(t, 3, page.TotalPages)
	for _, task := range page.Tasks {
		assert.Equal(t, models.StatusCompleted, task.Status)
	}
}

func TestListTasks_ClampsQuery(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 12, models.StatusCompleted)

	w := f.do(t, http.MethodGet, "/api/tasks?page=abc&pageSize=-3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[pageBody](t, w)
	assert.Len(t, page.Tasks, 5)
	assert.Equal(t, 3, page.TotalPages)

	w = f.do(t, http.MethodGet, "/api/tasks?pageSize=1000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[pageBody](t, w)
	assert.Len(t, page.Tasks, 10)
	assert.Equal(t, 2, page.TotalPages)
}

func TestListTasks_EmptyResult(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/tasks?status=Blocked", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tasks":[],"totalPages":1}`, w.Body.String())
}

func TestGetTask(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, 1, models.StatusNotStarted)[0]

	w := f.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%d", seeded.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[map[string]any](t, w)
	assert.Equal(t, "2024-03-01T14:30:00+05:30", got["createdAt"])
	assert.Equal(t, "2024-03-10T00:00:00", got["startDate"])
	assert.Equal(t, []any{}, got["storyStats"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/tasks/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/tasks/abc", nil).Code)
}

func TestCreateTask_Success(t *testing.T) {
	f := newFixture(t)
	f.pub.On("Publish", mock.Anything, ofType(events.TaskCreated)).Return(nil).Once()

	w := f.do(t, http.MethodPost, "/api/tasks", validPayload())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	task := decode[models.Task](t, w)
	assert.NotZero(t, task.ID)
	assert.Equal(t, fmt.Sprintf("/api/tasks/%d", task.ID), w.Header().Get("Location"))
	assert.Equal(t, "kickoff", task.Worklog)
	assert.Equal(t, "2024-03-12", task.EndDate.String())
	assert.Equal(t, models.StoryStats{"Development", "Unit Testing"}, task.StoryStats)
	assert.Equal(t, 1, task.Version)
	assert.True(t, task.CreatedAt.Equal(created))
	f.pub.AssertExpectations(t)
}

func TestCreateTask_DefaultsStatus(t *testing.T) {
	f := newFixture(t)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	payload := validPayload()
	delete(payload, "status")
	w := f.do(t, http.MethodPost, "/api/tasks", payload)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.StatusNotStarted, decode[models.Task](t, w).Status)
}

func TestCreateTask_StartAfterEndRejected(t *testing.T) {
	f := newFixture(t)

	payload := validPayload()
	payload["startDate"] = "2024-03-15"
	payload["endDate"] = "2024-03-12"
	w := f.do(t, http.MethodPost, "/api/tasks", payload)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[validationBody](t, w)
	assert.Equal(t, "Validation failed", body.Error)
	assert.Equal(t, "beforeend", body.Fields["startDate"])
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreateTask_InvalidFields(t *testing.T) {
	f := newFixture(t)

	payload := validPayload()
	payload["title"] = "Bad!Title"
	payload["priority"] = "Urgent"
	delete(payload, "description")
	w := f.do(t, http.MethodPost, "/api/tasks", payload)
	require.Equal(t, http.StatusBadRequest, w.Code)

	fields := decode[validationBody](t, w).Fields
	assert.Equal(t, "tasktitle", fields["title"])
	assert.Equal(t, "oneof", fields["priority"])
	assert.Equal(t, "required", fields["description"])
}

func TestCreateTask_MalformedBody(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/tasks", `{"title":`).Code)

	payload := validPayload()
	payload["startDate"] = "next tuesday"
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/tasks", payload).Code)
}

func TestCreateTask_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	w := f.do(t, http.MethodPost, "/api/tasks", validPayload())
	assert.Equal(t, http.StatusCreated, w.Code)
}

func updatePayload(task models.Task) map[string]any {
	p := validPayload()
	p["id"] = task.ID
	p["version"] = task.Version
	p["status"] = models.StatusCompleted
	p["createdAt"] = "1999-01-01T00:00:00Z"
	return p
}

func TestUpdateTask_Success(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, 1, models.StatusNotStarted)[0]
	f.pub.On("Publish", mock.Anything, ofType(events.TaskUpdated)).Return(nil).Once()

	w := f.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", seeded.ID), updatePayload(seeded))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	task := decode[models.Task](t, w)
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, "Sprint Setup", task.Title)
	assert.Equal(t, 2, task.Version)
	assert.True(t, task.CreatedAt.Equal(created))
	f.pub.AssertExpectations(t)
}

func TestUpdateTask_IDMismatch(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, 1, models.StatusNotStarted)[0]

	payload := updatePayload(seeded)
	payload["id"] = seeded.ID + 1
	w := f.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", seeded.ID), payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTask_StaleVersion(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, 1, models.StatusNotStarted)[0]
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	path := fmt.Sprintf("/api/tasks/%d", seeded.ID)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, path, updatePayload(seeded)).Code)

	w := f.do(t, http.MethodPut, path, updatePayload(seeded))
	assert.Equal(t, http.StatusConflict, w.Code)
	f.pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestUpdateTask_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/api/tasks/42", updatePayload(models.Task{ID: 42, Version: 1}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, 1, models.StatusInProgress)[0]
	f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(evt events.Event) bool {
		return evt.Type == events.TaskDeleted && evt.TaskID == seeded.ID && evt.Status == models.StatusInProgress
	})).Return(nil).Once()

	path := fmt.Sprintf("/api/tasks/%d", seeded.ID)
	w := f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path, nil).Code)
	f.pub.AssertExpectations(t)
}

func TestTaskStats(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2, models.StatusCompleted)
	f.seed(t, 1, models.StatusInProgress)

	w := f.do(t, http.MethodGet, "/api/tasks/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"counts":{"Completed":2,"In Progress":1},"total":3}`, w.Body.String())
}

func TestListTasks_BlankStatusIsNoFilter(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2, models.StatusCompleted)
	f.seed(t, 1, models.StatusInProgress)

	w := f.do(t, http.MethodGet, "/api/tasks?status=%20", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[pageBody](t, w).Tasks, 3)
}

func TestUpdateTask_StatusChangeCarriesPreviousStatus(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, 1, models.StatusInProgress)[0]
	f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(evt events.Event) bool {
		return evt.Type == events.TaskUpdated &&
			evt.Status == models.StatusCompleted &&
			evt.PreviousStatus == models.StatusInProgress
	})).Return(nil).Once()

	w := f.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", seeded.ID), updatePayload(seeded))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f.pub.AssertExpectations(t)
}

func TestUpdateTask_SameStatusHasNoPreviousStatus(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, 1, models.StatusCompleted)[0]
	f.pub.On("Publish", mock.Anything, mock.MatchedBy(func(evt events.Event) bool {
		return evt.Type == events.TaskUpdated && evt.PreviousStatus == ""
	})).Return(nil).Once()

	w := f.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", seeded.ID), updatePayload(seeded))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f.pub.AssertExpectations(t)
}
