package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld: блокировка истекла или принадлежит другому владельцу.
var ErrLockNotHeld = errors.New("блокировка не удерживается")

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisCache{client: client}
}

// NewRedisCacheFromClient оборачивает готовый клиент.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Set(ctx, key, data, ttl)
}

func (r *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// Счётчик изменений живёт дольше любого чтения из базы.
const generationTTL = 10 * time.Minute

func generationKey(key string) string {
	return "gen:" + key
}

// Generation возвращает счётчик изменений ключа. Его читают до похода
// в базу и передают в SetJSONIfUnchanged.
func (r *RedisCache) Generation(ctx context.Context, key string) (string, error) {
	gen, err := r.Get(ctx, generationKey(key))
	if IsMiss(err) {
		return "0", nil
	}
	return gen, err
}

// Invalidate удаляет ключи и сдвигает их счётчики изменений.
func (r *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	for _, key := range keys {
		pipe.Incr(ctx, generationKey(key))
		pipe.Expire(ctx, generationKey(key), generationTTL)
	}
	pipe.Del(ctx, keys...)
	_, err := pipe.Exec(ctx)
	return err
}

// SetJSONIfUnchanged кладёт значение, прочитанное из базы, и сразу убирает
// его, если после чтения gen ключ успели инвалидировать.
func (r *RedisCache) SetJSONIfUnchanged(ctx context.Context, key, gen string, value interface{}, ttl time.Duration) error {
	if err := r.SetJSON(ctx, key, value, ttl); err != nil {
		return err
	}
	current, err := r.Generation(ctx, key)
	if err != nil {
		return err
	}
	if current != gen {
		return r.Delete(ctx, key)
	}
	return nil
}

// IsMiss сообщает, что ключа нет в кеше.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Lock: удерживаемая распределённая блокировка.
type Lock struct {
	key   string
	token string
}

func (l *Lock) Key() string { return l.key }

// TryLock пытается занять ключ на ttl. ok=false, если ключ уже занят.
func (r *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{key: key, token: token}, true, nil
}

// Ключ удаляется только владельцем токена.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisCache) Unlock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	n, err := unlockScript.Run(ctx, r.client, []string{lock.key}, lock.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

const (
	AccountInfoTTL    = 60 * time.Second
	ClientAccountsTTL = 300 * time.Second
)

func AccountInfoKey(accountID string) string {
	return "account:info:" + accountID
}

func ClientAccountsKey(clientID string) string {
	return "client:accounts:" + clientID
}

func AccrualLockKey(kind string) string {
	return "lock:interest:" + kind
}

// AccountKeys: все ключи, зависящие от состояния счёта.
func AccountKeys(accountID, clientID string) []string {
	keys := []string{AccountInfoKey(accountID)}
	if clientID != "" {
		keys = append(keys, ClientAccountsKey(clientID))
	}
	return keys
}
