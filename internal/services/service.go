package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank-backoffice/internal/cache"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/repository"
	"bank-backoffice/internal/utils"
	"bank-backoffice/internal/worker"
)

var (
	ErrUnauthorizedAccess = errors.New("нет доступа к ресурсу")
	ErrForbiddenRole      = errors.New("операция недоступна для роли")
)

// Store: репозитории вне транзакции и единица работы для составных операций.
type Store interface {
	repository.UnitOfWork
	Repos() repository.Repos
}

// Actor: аутентифицированный пользователь, от имени которого выполняется операция.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) IsStaff() bool {
	return a.Role == models.RoleAdvisor || a.Role == models.RoleAdmin
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// CanAccess: клиент видит только своё, сотрудники банка видят всё.
func (a Actor) CanAccess(ownerID string) bool {
	return a.IsStaff() || a.UserID == ownerID
}

// Clock отдаёт текущее время в часовом поясе банка.
type Clock func() time.Time

func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time { return time.Now().In(loc) }
}

// invalidator сбрасывает ключи кеша после коммита: через пул воркеров,
// а при переполненной очереди синхронно.
type invalidator struct {
	cache *cache.RedisCache
	pool  *worker.WorkerPool
}

func (i invalidator) invalidate(ctx context.Context, reason string, keys ...string) {
	if i.cache == nil || len(keys) == 0 {
		return
	}

	if i.pool != nil {
		job := worker.Job{
			ID: fmt.Sprintf("cache-invalidate-%s", reason),
			Task: func(jobCtx context.Context) error {
				return i.cache.Invalidate(jobCtx, keys...)
			},
		}
		if err := i.pool.Submit(job); err == nil {
			utils.LogDebug("Cache", "Инвалидация кеша (%s) добавлена в очередь", reason)
			return
		}
		utils.LogWarning("Cache", "Пул воркеров недоступен, инвалидация (%s) выполняется синхронно", reason)
	}

	if err := i.cache.Invalidate(ctx, keys...); err != nil {
		utils.LogWarning("Cache", "Не удалось инвалидировать кеш (%s): %v", reason, err)
		return
	}
	utils.LogDebug("Cache", "Инвалидирован кеш (%s): %d ключей", reason, len(keys))
}
