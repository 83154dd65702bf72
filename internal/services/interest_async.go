package services

import (
	"context"
	"errors"
	"fmt"

	"bank-backoffice/internal/models"
	"bank-backoffice/internal/utils"
	"bank-backoffice/internal/worker"
)

var ErrAsyncUnavailable = errors.New("пул воркеров не инициализирован")

// RunAsync ставит проход начисления в очередь пула воркеров и возвращает
// идентификатор задачи. При полной очереди ждёт места, пока жив ctx.
// Занятая блокировка и уже начисленный день не повторяются.
func (s *InterestService) RunAsync(ctx context.Context, kind models.InterestRunKind) (string, error) {
	if s.pool == nil {
		return "", ErrAsyncUnavailable
	}

	run := s.RunDaily
	if kind == models.InterestRunMissing {
		run = s.RunMissing
	}

	jobID := fmt.Sprintf("interest-%s-%d", kind, s.now().UnixMilli())
	job := worker.Job{
		ID: jobID,
		Task: func(ctx context.Context) error {
			_, err := run(ctx)
			return err
		},
		RetryOn: func(err error) bool {
			return !errors.Is(err, ErrAccrualInProgress) && !errors.Is(err, ErrAlreadyAccrued)
		},
		OnDone: func(err error) {
			if err != nil {
				utils.LogError("InterestService", "Фоновый проход "+jobID+" завершился ошибкой", err)
			}
		},
	}

	if err := s.pool.SubmitBlocking(ctx, job); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = worker.ErrQueueFull
		}
		utils.LogError("InterestService", "Не удалось поставить проход в очередь", err)
		return "", err
	}

	utils.LogInfo("InterestService", "Проход %s добавлен в очередь обработки", jobID)
	return jobID, nil
}
