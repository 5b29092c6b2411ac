// Package worker runs chat requests as background tasks. Clients submit a
// message, receive an opaque task ID, and poll for the result. Retryable
// provider failures are retried with backoff before a task is marked failed.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"nutracoach/pkg/chat"
	"nutracoach/pkg/config"
	"nutracoach/pkg/llmerrors"
	"nutracoach/pkg/logx"
)

// Task statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// ErrQueueFull is returned when the task queue cannot accept more work.
var ErrQueueFull = errors.New("task queue full")

// Task is one background chat request and its lifecycle state.
type Task struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Message   string         `json:"message"`
	Status    string         `json:"status"`
	Result    *chat.Response `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Pool manages worker goroutines and task state. Completed tasks are kept
// in memory for the configured result TTL, then swept.
type Pool struct {
	svc    *chat.Service
	cfg    config.WorkerConfig
	logger *logx.Logger

	queue chan string

	mu    sync.RWMutex
	tasks map[string]*Task

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool creates a worker pool over the chat service.
func NewPool(svc *chat.Service, cfg config.WorkerConfig) *Pool {
	return &Pool{
		svc:    svc,
		cfg:    cfg,
		logger: logx.NewLogger("worker"),
		queue:  make(chan string, 64),
		tasks:  make(map[string]*Task),
	}
}

// Start launches the worker goroutines and the result sweeper.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.wg.Add(1)
	go p.sweeper(ctx)

	p.logger.Info("Started %d workers", p.cfg.Workers)
}

// Stop cancels all workers and waits for in-flight tasks to settle.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Submit enqueues a chat task and returns its ID.
func (p *Pool) Submit(username, message string) (string, error) {
	task := &Task{
		ID:        uuid.NewString(),
		Username:  username,
		Message:   message,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	p.mu.Lock()
	p.tasks[task.ID] = task
	p.mu.Unlock()

	select {
	case p.queue <- task.ID:
		return task.ID, nil
	default:
		p.mu.Lock()
		delete(p.tasks, task.ID)
		p.mu.Unlock()
		return "", ErrQueueFull
	}
}

// Get returns a snapshot of the task with the given ID.
func (p *Pool) Get(id string) (*Task, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	task, ok := p.tasks[id]
	if !ok {
		return nil, false
	}
	snapshot := *task
	return &snapshot, true
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			p.run(ctx, id)
		}
	}
}

// run executes one task with retry on retryable provider errors.
func (p *Pool) run(ctx context.Context, id string) {
	p.setStatus(id, StatusRunning, nil, "")

	task, ok := p.Get(id)
	if !ok {
		return
	}

	var resp *chat.Response
	var err error
	delay := p.cfg.RetryDelay

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("Task %s retry %d/%d in %v", id, attempt, p.cfg.MaxRetries, delay)
			select {
			case <-ctx.Done():
				p.setStatus(id, StatusFailed, nil, ctx.Err().Error())
				return
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, err = p.svc.Chat(ctx, task.Username, task.Message)
		if err == nil {
			p.setStatus(id, StatusDone, resp, "")
			return
		}

		var llmErr *llmerrors.Error
		if errors.As(err, &llmErr) && !llmErr.IsRetryable() {
			break
		}
	}

	p.logger.Error("Task %s failed: %v", id, err)
	p.setStatus(id, StatusFailed, nil, err.Error())
}

func (p *Pool) setStatus(id, status string, result *chat.Response, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	task, ok := p.tasks[id]
	if !ok {
		return
	}
	task.Status = status
	task.Result = result
	task.Error = errMsg
	task.UpdatedAt = time.Now()
}

// sweeper drops settled tasks older than the result TTL.
func (p *Pool) sweeper(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-p.cfg.ResultTTL)
			p.mu.Lock()
			for id, task := range p.tasks {
				if (task.Status == StatusDone || task.Status == StatusFailed) && task.UpdatedAt.Before(cutoff) {
					delete(p.tasks, id)
				}
			}
			p.mu.Unlock()
		}
	}
}
