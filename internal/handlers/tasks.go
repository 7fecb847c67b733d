package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"todo-planner/internal/clock"
	"todo-planner/internal/dashboard"
	"todo-planner/internal/middleware"
	"todo-planner/internal/models"
	"todo-planner/internal/services"
)

const dateLayout = "2006-01-02"

type TaskHandler struct {
	taskService services.TaskService
	clock       clock.Clock
	log         zerolog.Logger
}

func NewTaskHandler(taskService services.TaskService, c clock.Clock, log zerolog.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, clock: c, log: log}
}

type TaskRequest struct {
	Title       string `json:"title" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	DueDate     string `json:"due_date" binding:"required,datetime=2006-01-02"`
	Priority    string `json:"priority" binding:"omitempty,oneof=low medium high"`
	Status      string `json:"status"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type TaskResponse struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DueDate      string     `json:"due_date"`
	Priority     string     `json:"priority"`
	PriorityName string     `json:"priority_name"`
	Status       string     `json:"status"`
	StatusName   string     `json:"status_name"`
	StatusColor  string     `json:"status_color"`
	StatusIcon   string     `json:"status_icon"`
	IsOverdue    bool       `json:"is_overdue"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

type DashboardResponse struct {
	SortBy       string         `json:"sort_by"`
	SortLabel    string         `json:"sort_label"`
	SortOptions  []SortOption   `json:"sort_options"`
	All          []TaskResponse `json:"all"`
	Active       []TaskResponse `json:"active"`
	Completed    []TaskResponse `json:"completed"`
	HighPriority []TaskResponse `json:"high_priority"`
	DueToday     []TaskResponse `json:"due_today"`
}

type SortOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var sortOptions = []SortOption{
	{Key: string(dashboard.SortByDueDate), Label: dashboard.SortByDueDate.Label()},
	{Key: string(dashboard.SortByPriority), Label: dashboard.SortByPriority.Label()},
	{Key: string(dashboard.SortByStatus), Label: dashboard.SortByStatus.Label()},
}

func newTaskResponse(t models.Task, today time.Time) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		DueDate:      t.DueDate.Format(dateLayout),
		Priority:     string(t.Priority),
		PriorityName: t.Priority.DisplayName(),
		Status:       string(t.Status),
		StatusName:   t.Status.DisplayName(),
		StatusColor:  t.Status.Color(),
		StatusIcon:   t.Status.Icon(),
		IsOverdue:    t.IsOverdue(today),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func newTaskResponses(tasks []models.Task, today time.Time) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskResponse(t, today))
	}
	return out
}

func (r TaskRequest) toInput() (services.TaskInput, error) {
	due, err := time.Parse(dateLayout, r.DueDate)
	if err != nil {
		return services.TaskInput{}, err
	}
	input := services.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     due,
		Priority:    models.TaskPriority(r.Priority),
	}
	if r.Status != "" {
		status, err := models.ParseTaskStatus(r.Status)
		if err != nil {
			return services.TaskInput{}, err
		}
		input.Status = status
	}
	return input, nil
}

func (h *TaskHandler) GetDashboard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	board, err := h.taskService.GetDashboard(c.Request.Context(), userID, c.Query("sortBy"))
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	today := clock.Today(h.clock)
	c.JSON(http.StatusOK, DashboardResponse{
		SortBy:       string(board.SortKey),
		SortLabel:    board.SortLabel,
		SortOptions:  sortOptions,
		All:          newTaskResponses(board.All, today),
		Active:       newTaskResponses(board.Active, today),
		Completed:    newTaskResponses(board.Completed, today),
		HighPriority: newTaskResponses(board.HighPriority, today),
		DueToday:     newTaskResponses(board.DueToday, today),
	})
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid task data",
			"details": err.Error(),
		})
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, input)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(*task, clock.Today(h.clock)))
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), userID, id)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(*task, clock.Today(h.clock)))
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid task data",
			"details": err.Error(),
		})
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), userID, id, input)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(*task, clock.Today(h.clock)))
}

func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Status is required",
			"details": err.Error(),
		})
		return
	}
	status, err := models.ParseTaskStatus(req.Status)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	task, err := h.taskService.ChangeStatus(c.Request.Context(), userID, id, status)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Status updated to " + task.Status.DisplayName(),
		"task":    newTaskResponse(*task, clock.Today(h.clock)),
	})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), userID, id); err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	}
	return id, ok
}

func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *TaskHandler) handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "invalid_transition",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "task not found",
		})
	case errors.Is(err, services.ErrInvalidTask),
		errors.Is(err, models.ErrUnknownStatus),
		errors.Is(err, models.ErrUnknownPriority):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("task request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to process task request",
		})
	}
}
