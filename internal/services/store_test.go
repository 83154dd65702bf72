package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"bank-backoffice/internal/cache"
	"bank-backoffice/internal/credit"
	"bank-backoffice/internal/interest"
	"bank-backoffice/internal/ledger"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/repository"
)

// memStore: хранилище в памяти. WithTx откатывает все изменения при ошибке.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	accounts map[string]models.Account
	credits  map[string]models.Credit
	users    map[string]models.User
	txs      []models.Transaction
	runs     []models.InterestRun
	rate     decimal.Decimal

	failTxInsert error
	// afterGetByID вызывается после чтения счёта, вне блокировки.
	afterGetByID func()
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]models.Account{},
		credits:  map[string]models.Credit{},
		users:    map[string]models.User{},
		rate:     decimal.Zero,
	}
}

type memSnapshot struct {
	accounts map[string]models.Account
	credits  map[string]models.Credit
	users    map[string]models.User
	txs      []models.Transaction
	runs     []models.InterestRun
	rate     decimal.Decimal
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		accounts: make(map[string]models.Account, len(s.accounts)),
		credits:  make(map[string]models.Credit, len(s.credits)),
		users:    make(map[string]models.User, len(s.users)),
		txs:      append([]models.Transaction(nil), s.txs...),
		runs:     append([]models.InterestRun(nil), s.runs...),
		rate:     s.rate,
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.credits {
		snap.credits[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.credits = snap.credits
	s.users = snap.users
	s.txs = snap.txs
	s.runs = snap.runs
	s.rate = snap.rate
}

func (s *memStore) Repos() repository.Repos {
	return repository.Repos{
		Accounts:     memAccounts{s},
		Transactions: memTransactions{s},
		Credits:      memCredits{s},
		Settings:     memSettings{s},
		Users:        memUsers{s},
		InterestRuns: memRuns{s},
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s.Repos()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) account(id string) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *memStore) transactionsOf(accountID string) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.txs {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

func (s *memStore) addUser(id, name string, role models.Role) Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = models.User{ID: id, Name: name, Role: role, CreatedAt: time.Now()}
	return Actor{UserID: id, Role: role}
}

func (s *memStore) addAccount(id, clientID string, typ models.AccountType, balance string) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := models.Account{
		ID:        id,
		ClientID:  clientID,
		IBAN:      "FR76" + strings.Repeat("0", 23-len(id)) + id,
		Name:      "Account " + id,
		Balance:   decimal.RequireFromString(balance),
		Type:      typ,
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	s.accounts[id] = a
	return a
}

type memAccounts struct{ s *memStore }

func (r memAccounts) Create(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.accounts {
		if existing.IBAN == a.IBAN {
			return repository.ErrIBANTaken
		}
	}
	a.CreatedAt = time.Now()
	r.s.accounts[a.ID] = *a
	return nil
}

func (r memAccounts) GetByID(_ context.Context, id string) (models.Account, error) {
	r.s.mu.Lock()
	a, ok := r.s.accounts[id]
	hook := r.s.afterGetByID
	r.s.mu.Unlock()
	if !ok {
		return models.Account{}, ledger.ErrAccountNotFound
	}
	if hook != nil {
		hook()
	}
	return a, nil
}

func (r memAccounts) GetByIDForUpdate(ctx context.Context, id string) (models.Account, error) {
	return r.GetByID(ctx, id)
}

func (r memAccounts) GetByIBAN(_ context.Context, code string) (models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.IBAN == code {
			return a, nil
		}
	}
	return models.Account{}, ledger.ErrAccountNotFound
}

func (r memAccounts) filter(keep func(models.Account) bool) []models.Account {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Account
	for _, a := range r.s.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memAccounts) ListByClient(_ context.Context, clientID string) ([]models.Account, error) {
	return r.filter(func(a models.Account) bool { return a.ClientID == clientID }), nil
}

func (r memAccounts) ListAll(context.Context) ([]models.Account, error) {
	return r.filter(func(models.Account) bool { return true }), nil
}

func (r memAccounts) ListSavingsForUpdate(context.Context) ([]models.Account, error) {
	return r.filter(func(a models.Account) bool {
		return a.Type == models.AccountTypeSavings && !a.IsClosed
	}), nil
}

func (r memAccounts) Update(_ context.Context, a models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.ID]; !ok {
		return ledger.ErrAccountNotFound
	}
	r.s.accounts[a.ID] = a
	return nil
}

func (r memAccounts) IBANExists(_ context.Context, code string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.IBAN == code {
			return true, nil
		}
	}
	return false, nil
}

type memTransactions struct{ s *memStore }

func (r memTransactions) Insert(_ context.Context, txs ...models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failTxInsert != nil {
		return r.s.failTxInsert
	}
	r.s.txs = append(r.s.txs, txs...)
	return nil
}

func (r memTransactions) ListByAccountIDs(_ context.Context, ids []string) ([]models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Transaction
	for i := len(r.s.txs) - 1; i >= 0; i-- {
		if want[r.s.txs[i].AccountID] {
			out = append(out, r.s.txs[i])
		}
	}
	return out, nil
}

func (r memTransactions) LastInterestDates(_ context.Context, ids []string) (map[string]time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[string]time.Time{}
	for _, t := range r.s.txs {
		if !want[t.AccountID] || t.RelatedAccountID != nil || !interest.IsInterestLabel(t.Label) {
			continue
		}
		if t.CreatedAt.After(out[t.AccountID]) {
			out[t.AccountID] = t.CreatedAt
		}
	}
	return out, nil
}

type memCredits struct{ s *memStore }

func (r memCredits) Create(_ context.Context, c models.Credit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.credits[c.ID] = c
	return nil
}

func (r memCredits) GetByID(_ context.Context, id string) (models.Credit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.credits[id]
	if !ok {
		return models.Credit{}, credit.ErrCreditNotFound
	}
	return c, nil
}

func (r memCredits) GetByIDForUpdate(ctx context.Context, id string) (models.Credit, error) {
	return r.GetByID(ctx, id)
}

func (r memCredits) filter(keep func(models.Credit) bool) []models.Credit {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Credit
	for _, c := range r.s.credits {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memCredits) ListByClient(_ context.Context, clientID string) ([]models.Credit, error) {
	return r.filter(func(c models.Credit) bool { return c.ClientID == clientID }), nil
}

func (r memCredits) ListByAdvisor(_ context.Context, advisorID string) ([]models.Credit, error) {
	return r.filter(func(c models.Credit) bool { return c.AdvisorID == advisorID }), nil
}

func (r memCredits) ListAll(context.Context) ([]models.Credit, error) {
	return r.filter(func(models.Credit) bool { return true }), nil
}

func (r memCredits) Update(_ context.Context, c models.Credit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.credits[c.ID]; !ok {
		return credit.ErrCreditNotFound
	}
	r.s.credits[c.ID] = c
	return nil
}

type memSettings struct{ s *memStore }

func (r memSettings) GetSavingsRate(context.Context) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.rate, nil
}

func (r memSettings) SetSavingsRate(_ context.Context, rate decimal.Decimal) error {
	if err := interest.ValidateRate(rate); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.rate = rate
	return nil
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Name == u.Name {
			return repository.ErrUserExists
		}
	}
	u.CreatedAt = time.Now()
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByName(_ context.Context, name string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Name == name {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

type memRuns struct{ s *memStore }

func (r memRuns) Insert(_ context.Context, run models.InterestRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if run.Kind == models.InterestRunDaily {
		for _, existing := range r.s.runs {
			if existing.Kind == run.Kind && sameDay(existing.RunDate, run.RunDate) {
				return repository.ErrDailyRunExists
			}
		}
	}
	r.s.runs = append(r.s.runs, run)
	return nil
}

func (r memRuns) ExistsForDate(_ context.Context, kind models.InterestRunKind, day time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, run := range r.s.runs {
		if run.Kind == kind && sameDay(run.RunDate, day) {
			return true, nil
		}
	}
	return false, nil
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func (r memRuns) ListRecent(_ context.Context, limit int) ([]models.InterestRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.InterestRun
	for i := len(r.s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.s.runs[i])
	}
	return out, nil
}

var errStorage = errors.New("сбой хранилища")

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCacheFromClient(client), mr
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
