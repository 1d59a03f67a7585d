// Package backend is the HTTP client for the command surface exposed by the
// device backend process. The backend owns persistence, queue slot
// assignment and actual device pushes; this package only transports.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"dotflow/internal/models"
)

// API is the command surface consumed by the rest of the application.
type API interface {
	GetTasks(ctx context.Context) ([]models.AutomationTask, error)
	AddTask(ctx context.Context, task models.AutomationTask) (models.AutomationTask, error)
	UpdateTask(ctx context.Context, task models.AutomationTask) (models.AutomationTask, error)
	DeleteTask(ctx context.Context, id string) error

	GetEnabled(ctx context.Context) (bool, error)
	SetEnabled(ctx context.Context, enabled bool) error

	UpdatePriorities(ctx context.Context, orderedIDs []string) error

	GetPlannedForDate(ctx context.Context, date string) ([]models.PlannedQueueItem, error)
	GeneratePlannedForDate(ctx context.Context, date string, order []string) error
	ClearPlannedForDate(ctx context.Context, date string) error

	ExecuteTask(ctx context.Context, taskID, credential string) error
	GetLogs(ctx context.Context, limit int) ([]models.ExecutionLog, error)
}

// Client implements API over HTTP JSON.
type Client struct {
	baseURL string
	http    *http.Client
	// E-ink panels tolerate very few refreshes per minute, so manual and
	// scheduled pushes share one limiter.
	execLimiter *rate.Limiter
}

// NewClient creates a backend client. executePerMinute bounds how many
// execute calls may be issued per minute.
func NewClient(baseURL string, executePerMinute int) *Client {
	if executePerMinute <= 0 {
		executePerMinute = 6
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		execLimiter: rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(executePerMinute)), 1),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend %s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) GetTasks(ctx context.Context) ([]models.AutomationTask, error) {
	var tasks []models.AutomationTask
	err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks)
	return tasks, err
}

func (c *Client) AddTask(ctx context.Context, task models.AutomationTask) (models.AutomationTask, error) {
	var saved models.AutomationTask
	err := c.do(ctx, http.MethodPost, "/api/tasks", task, &saved)
	return saved, err
}

func (c *Client) UpdateTask(ctx context.Context, task models.AutomationTask) (models.AutomationTask, error) {
	var saved models.AutomationTask
	err := c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(task.ID), task, &saved)
	return saved, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetEnabled(ctx context.Context) (bool, error) {
	var out struct {
		Enabled bool `json:"enabled"`
	}
	err := c.do(ctx, http.MethodGet, "/api/enabled", nil, &out)
	return out.Enabled, err
}

func (c *Client) SetEnabled(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPut, "/api/enabled", map[string]bool{"enabled": enabled}, nil)
}

func (c *Client) UpdatePriorities(ctx context.Context, orderedIDs []string) error {
	return c.do(ctx, http.MethodPut, "/api/priorities",
		map[string][]string{"ordered_ids": orderedIDs}, nil)
}

func (c *Client) GetPlannedForDate(ctx context.Context, date string) ([]models.PlannedQueueItem, error) {
	var items []models.PlannedQueueItem
	err := c.do(ctx, http.MethodGet, "/api/planned/"+url.PathEscape(date), nil, &items)
	return items, err
}

func (c *Client) GeneratePlannedForDate(ctx context.Context, date string, order []string) error {
	return c.do(ctx, http.MethodPost, "/api/planned/"+url.PathEscape(date)+"/generate",
		map[string][]string{"order": order}, nil)
}

func (c *Client) ClearPlannedForDate(ctx context.Context, date string) error {
	return c.do(ctx, http.MethodDelete, "/api/planned/"+url.PathEscape(date), nil, nil)
}

func (c *Client) ExecuteTask(ctx context.Context, taskID, credential string) error {
	if err := c.execLimiter.Wait(ctx); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/execute",
		map[string]string{"credential": credential}, nil)
}

func (c *Client) GetLogs(ctx context.Context, limit int) ([]models.ExecutionLog, error) {
	var logs []models.ExecutionLog
	err := c.do(ctx, http.MethodGet, "/api/logs?limit="+strconv.Itoa(limit), nil, &logs)
	return logs, err
}
