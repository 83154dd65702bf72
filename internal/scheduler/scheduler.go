// Package scheduler запускает ежедневное начисление процентов по расписанию
// и догоняющий проход при старте.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jasonlvhit/gocron"

	"bank-backoffice/internal/models"
	"bank-backoffice/internal/services"
	"bank-backoffice/internal/utils"
)

// Accruer: проходы начисления, которые умеет запускать планировщик.
type Accruer interface {
	RunDaily(ctx context.Context) (models.InterestRun, error)
	RunMissing(ctx context.Context) (models.InterestRun, error)
}

type Options struct {
	DailyAt    string // чч:мм:сс в часовом поясе Location
	Location   *time.Location
	CatchUp    bool
	RunTimeout time.Duration
}

type Scheduler struct {
	accruer Accruer
	opts    Options
	at      time.Time
	cron    *gocron.Scheduler
	job     *gocron.Job

	mu      sync.Mutex
	stopped chan bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(accruer Accruer, opts Options) (*Scheduler, error) {
	at, err := time.Parse("15:04:05", opts.DailyAt)
	if err != nil {
		return nil, fmt.Errorf("неверное время начисления %q: %w", opts.DailyAt, err)
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 30 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	// Пакетный gocron.ChangeLoc уже созданный планировщик не меняет.
	cron := gocron.NewScheduler()
	cron.ChangeLoc(opts.Location)

	return &Scheduler{
		accruer: accruer,
		opts:    opts,
		at:      at,
		cron:    cron,
	}, nil
}

// Start выполняет догоняющий проход (если включён) и ставит ежедневную задачу.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped != nil {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.opts.CatchUp {
		s.runMissing()
	}

	// Первый запуск считается в поясе банка, а не в поясе процесса.
	first := nextRun(time.Now(), s.at, s.opts.Location)
	job := s.cron.Every(1).Day().At(s.opts.DailyAt).From(&first)
	if err := job.Do(s.runDaily); err != nil {
		s.cron.Clear()
		s.cancel()
		return fmt.Errorf("не удалось запланировать начисление: %w", err)
	}
	s.job = job
	s.stopped = s.cron.Start()

	utils.LogSuccess("Scheduler", "Ежедневное начисление процентов запланировано на %s (%s), ближайшее %s",
		s.opts.DailyAt, s.opts.Location, first.Format(time.RFC3339))
	return nil
}

// NextRun возвращает время ближайшего ежедневного прохода.
// До Start возвращает нулевое время.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextScheduledTime()
}

// nextRun: ближайшее время суток at в поясе loc, строго позже now.
func nextRun(now, at time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	next := time.Date(y, m, d, at.Hour(), at.Minute(), at.Second(), 0, loc)
	if !next.After(now) {
		next = time.Date(y, m, d+1, at.Hour(), at.Minute(), at.Second(), 0, loc)
	}
	return next
}

// Stop останавливает расписание и отменяет идущий проход.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped == nil {
		return
	}
	s.stopped <- true
	s.cron.Clear()
	s.cancel()
	s.stopped = nil
	s.job = nil
	utils.LogInfo("Scheduler", "Планировщик остановлен")
}

func (s *Scheduler) runDaily() {
	s.run(models.InterestRunDaily, s.accruer.RunDaily)
}

func (s *Scheduler) runMissing() {
	s.run(models.InterestRunMissing, s.accruer.RunMissing)
}

func (s *Scheduler) run(kind models.InterestRunKind, fn func(context.Context) (models.InterestRun, error)) {
	base := s.ctx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(base, s.opts.RunTimeout)
	defer cancel()

	run, err := fn(ctx)
	switch {
	case errors.Is(err, services.ErrAccrualInProgress):
		utils.LogWarning("Scheduler", "Проход %s пропущен: уже выполняется", kind)
	case errors.Is(err, services.ErrAlreadyAccrued):
		utils.LogInfo("Scheduler", "Проход %s пропущен: проценты за сегодня уже начислены", kind)
	case err != nil:
		utils.LogError("Scheduler", "Проход "+string(kind)+" завершился ошибкой", err)
	default:
		utils.LogInfo("Scheduler", "Проход %s: счетов %d, начислено %s",
			kind, run.AccountsProcessed, run.TotalInterest.StringFixed(2))
	}
}
