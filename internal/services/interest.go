package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bank-backoffice/internal/cache"
	"bank-backoffice/internal/interest"
	"bank-backoffice/internal/metrics"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/repository"
	"bank-backoffice/internal/utils"
	"bank-backoffice/internal/worker"
)

var (
	ErrAccrualInProgress = errors.New("начисление процентов уже выполняется")
	ErrAlreadyAccrued    = errors.New("дневные проценты за эту дату уже начислены")
)

// Один ключ на оба вида прохода: они меняют одни и те же балансы.
const accrualLockName = "savings"

type InterestService struct {
	store   Store
	cache   *cache.RedisCache
	metrics *metrics.Metrics
	now     Clock
	lockTTL time.Duration
	running atomic.Bool
	invalidator
}

func NewInterestService(store Store, m *metrics.Metrics, clock Clock, lockTTL time.Duration, redisCache *cache.RedisCache, pool *worker.WorkerPool) *InterestService {
	if clock == nil {
		clock = SystemClock(nil)
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &InterestService{
		store:       store,
		cache:       redisCache,
		metrics:     m,
		now:         clock,
		lockTTL:     lockTTL,
		invalidator: invalidator{cache: redisCache, pool: pool},
	}
}

// RunDaily начисляет дневные проценты на все подходящие сберегательные счета.
func (s *InterestService) RunDaily(ctx context.Context) (models.InterestRun, error) {
	return s.run(ctx, models.InterestRunDaily)
}

// RunMissing догоняет дни, за которые проценты не начислялись.
func (s *InterestService) RunMissing(ctx context.Context) (models.InterestRun, error) {
	return s.run(ctx, models.InterestRunMissing)
}

func (s *InterestService) ListRuns(ctx context.Context, limit int) ([]models.InterestRun, error) {
	if limit <= 0 {
		limit = 30
	}
	return s.store.Repos().InterestRuns.ListRecent(ctx, limit)
}

// AccrualStatus показывает, идёт ли сейчас проход: в этом процессе или
// на другой реплике, удерживающей блокировку.
type AccrualStatus struct {
	Running         bool `json:"running"`
	LockedElsewhere bool `json:"locked_elsewhere"`
}

func (s *InterestService) Status(ctx context.Context) (AccrualStatus, error) {
	status := AccrualStatus{Running: s.running.Load()}
	if s.cache == nil || status.Running {
		return status, nil
	}
	held, err := s.cache.Exists(ctx, cache.AccrualLockKey(accrualLockName))
	if err != nil {
		return status, err
	}
	status.LockedElsewhere = held
	return status, nil
}

func (s *InterestService) run(ctx context.Context, kind models.InterestRunKind) (models.InterestRun, error) {
	if !s.running.CompareAndSwap(false, true) {
		utils.LogWarning("InterestService", "Проход %s пропущен: предыдущий ещё выполняется", kind)
		return models.InterestRun{}, ErrAccrualInProgress
	}
	defer s.running.Store(false)

	if s.cache != nil {
		lock, ok, err := s.cache.TryLock(ctx, cache.AccrualLockKey(accrualLockName), s.lockTTL)
		if err != nil {
			return models.InterestRun{}, err
		}
		if !ok {
			utils.LogWarning("InterestService", "Проход %s пропущен: блокировка занята другим экземпляром", kind)
			return models.InterestRun{}, ErrAccrualInProgress
		}
		defer func() {
			if err := s.cache.Unlock(context.WithoutCancel(ctx), lock); err != nil {
				utils.LogWarning("InterestService", "Не удалось снять блокировку начисления: %v", err)
			}
		}()
	}

	tracker := s.metrics.Track("interest_" + string(kind))
	utils.LogInfo("InterestService", "Начало прохода начисления процентов: %s", kind)

	run, postings, err := s.accrue(ctx, kind)
	if errors.Is(err, repository.ErrDailyRunExists) {
		err = ErrAlreadyAccrued
	}
	if errors.Is(err, ErrAlreadyAccrued) {
		tracker.End(nil)
		utils.LogWarning("InterestService", "Проход %s пропущен: проценты за %s уже начислены", kind, s.now().Format("2006-01-02"))
		return models.InterestRun{}, err
	}
	if err := tracker.End(err); err != nil {
		utils.LogError("InterestService", "Проход начисления "+string(kind)+" откатан", err)
		return models.InterestRun{}, err
	}

	keys := make([]string, 0, len(postings)*3)
	for _, p := range postings {
		keys = append(keys, cache.AccountKeys(p.Account.ID, p.Account.ClientID)...)
	}
	s.invalidate(ctx, "interest-"+run.ID, keys...)
	s.metrics.ObserveInterest(string(kind), run.AccountsProcessed, run.TotalInterest)

	utils.LogSuccess("InterestService", "Проход %s завершён: счетов %d, начислено %s (ставка %s)",
		kind, run.AccountsProcessed, run.TotalInterest.StringFixed(2), run.SavingsRate.String())
	return run, nil
}

func (s *InterestService) accrue(ctx context.Context, kind models.InterestRunKind) (models.InterestRun, []interest.Posting, error) {
	var (
		run      models.InterestRun
		postings []interest.Posting
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		rate, err := r.Settings.GetSavingsRate(ctx)
		if err != nil {
			return err
		}
		accounts, err := r.Accounts.ListSavingsForUpdate(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		if kind == models.InterestRunDaily {
			done, err := r.InterestRuns.ExistsForDate(ctx, models.InterestRunDaily, now)
			if err != nil {
				return err
			}
			if done {
				return ErrAlreadyAccrued
			}
		}

		var res interest.Result
		switch kind {
		case models.InterestRunMissing:
			ids := make([]string, 0, len(accounts))
			for _, a := range accounts {
				ids = append(ids, a.ID)
			}
			last, err := r.Transactions.LastInterestDates(ctx, ids)
			if err != nil {
				return err
			}
			res, err = interest.AccrueMissing(accounts, last, rate, now)
			if err != nil {
				return err
			}
		default:
			res, err = interest.AccrueDaily(accounts, rate, now)
			if err != nil {
				return err
			}
		}

		for _, p := range res.Postings {
			if err := r.Accounts.Update(ctx, p.Account); err != nil {
				return err
			}
			if err := r.Transactions.Insert(ctx, p.Transaction); err != nil {
				return err
			}
		}

		run = models.InterestRun{
			ID:                uuid.NewString(),
			Kind:              kind,
			RunDate:           now,
			SavingsRate:       rate,
			AccountsProcessed: res.AccountsProcessed,
			TotalInterest:     res.TotalInterest,
			CreatedAt:         now,
		}
		postings = res.Postings
		return r.InterestRuns.Insert(ctx, run)
	})
	return run, postings, err
}
