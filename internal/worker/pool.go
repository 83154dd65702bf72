package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bank-backoffice/internal/utils"
)

var (
	ErrQueueFull       = errors.New("очередь воркеров переполнена")
	ErrPoolClosed      = errors.New("пул воркеров остановлен")
	ErrShutdownTimeout = errors.New("превышен таймаут остановки пула")
)

// Job: задача для фоновой обработки.
type Job struct {
	ID      string
	Task    func(ctx context.Context) error
	RetryOn func(error) bool // nil: повторять при любой ошибке
	OnDone  func(error)
}

type PoolStats struct {
	TotalJobs     int64 `json:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	ActiveWorkers int   `json:"active_workers"`
	QueuedJobs    int   `json:"queued_jobs"`
}

// WorkerPool выполняет задачи вне пути запроса: инвалидацию кеша после
// коммита и прочую работу, которая не должна задерживать ответ.
type WorkerPool struct {
	workers    int
	maxRetries int
	backoff    time.Duration
	jobQueue   chan Job
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
	stats  PoolStats
}

func NewWorkerPool(workers, queueSize, maxRetries int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	pool := &WorkerPool{
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    100 * time.Millisecond,
		jobQueue:   make(chan Job, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		stats:      PoolStats{ActiveWorkers: workers},
	}

	utils.LogInfo("WorkerPool", "Создан пул: воркеров %d, очередь %d, повторов %d", workers, queueSize, maxRetries)
	return pool
}

// SetBackoff меняет базовую задержку между повторами.
func (p *WorkerPool) SetBackoff(d time.Duration) {
	p.backoff = d
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	utils.LogSuccess("WorkerPool", "Запущено воркеров: %d", p.workers)
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.executeJob(id, job)
		}
	}
}

func (p *WorkerPool) executeJob(workerID int, job Job) {
	startTime := time.Now()
	var err error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			utils.LogWarning("WorkerPool", "Воркер #%d: повтор #%d для задачи %s", workerID, attempt, job.ID)
			select {
			case <-time.After(p.backoff * time.Duration(attempt)):
			case <-p.ctx.Done():
				err = p.ctx.Err()
				attempt = p.maxRetries + 1
				continue
			}
		}

		err = job.Task(p.ctx)
		if err == nil {
			break
		}
		if job.RetryOn != nil && !job.RetryOn(err) {
			break
		}
	}

	p.mu.Lock()
	p.stats.TotalJobs++
	if err == nil {
		p.stats.CompletedJobs++
	} else {
		p.stats.FailedJobs++
	}
	p.mu.Unlock()

	if err == nil {
		utils.LogDebug("WorkerPool", "Воркер #%d: задача %s выполнена за %v", workerID, job.ID, time.Since(startTime))
	} else {
		utils.LogError("WorkerPool", fmt.Sprintf("Воркер #%d: задача %s провалилась", workerID, job.ID), err)
	}

	if job.OnDone != nil {
		job.OnDone(err)
	}
}

// Submit ставит задачу в очередь без ожидания.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		utils.LogWarning("WorkerPool", "Очередь переполнена, задача %s отклонена", job.ID)
		return ErrQueueFull
	}
}

// SubmitBlocking ждёт места в очереди, пока не отменён ctx.
func (p *WorkerPool) SubmitBlocking(ctx context.Context, job Job) error {
	for {
		err := p.Submit(job)
		if !errors.Is(err, ErrQueueFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Shutdown перестаёт принимать задачи и ждёт, пока очередь опустеет.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobQueue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		utils.LogSuccess("WorkerPool", "Все воркеры завершили работу")
		return nil
	case <-time.After(timeout):
		p.cancel()
		utils.LogWarning("WorkerPool", "Превышен таймаут остановки, принудительное завершение")
		return ErrShutdownTimeout
	}
}

func (p *WorkerPool) GetStats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.QueuedJobs = len(p.jobQueue)
	return stats
}
