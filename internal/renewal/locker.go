package renewal

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker allows one in-flight renewal per member. Each lock records its
// owner, and only that owner can hand it over or release it. Locks expire
// after their TTL so an abandoned gateway redirect does not block the member
// forever.
type Locker interface {
	Acquire(ctx context.Context, memberID int, owner string) (bool, error)
	// Handoff passes a held lock from one owner to another and restarts its TTL.
	Handoff(ctx context.Context, memberID int, from, to string) (bool, error)
	Release(ctx context.Context, memberID int, owner string) error
}

func paymentOwner(paymentID int) string {
	return "payment:" + strconv.Itoa(paymentID)
}

type heldLock struct {
	owner   string
	expires time.Time
}

type MemoryLocker struct {
	mu   sync.Mutex
	ttl  time.Duration
	held map[int]heldLock
	now  func() time.Time
}

func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	return &MemoryLocker{ttl: ttl, held: make(map[int]heldLock), now: time.Now}
}

// live returns the unexpired lock for memberID. Callers hold l.mu.
func (l *MemoryLocker) live(memberID int) (heldLock, bool) {
	h, ok := l.held[memberID]
	if !ok || !l.now().Before(h.expires) {
		return heldLock{}, false
	}
	return h, true
}

func (l *MemoryLocker) Acquire(_ context.Context, memberID int, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.live(memberID); ok {
		return false, nil
	}
	l.held[memberID] = heldLock{owner: owner, expires: l.now().Add(l.ttl)}
	return true, nil
}

func (l *MemoryLocker) Handoff(_ context.Context, memberID int, from, to string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.live(memberID)
	if !ok || h.owner != from {
		return false, nil
	}
	l.held[memberID] = heldLock{owner: to, expires: l.now().Add(l.ttl)}
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, memberID int, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[memberID]; ok && h.owner == owner {
		delete(l.held, memberID)
	}
	return nil
}

const lockKeyPrefix = "renewal:lock:"

const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

const handoffScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0`

// RedisLocker shares renewal locks between API instances. The key holds the
// owner so compare-and-delete runs atomically on the server.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func lockKey(memberID int) string {
	return lockKeyPrefix + strconv.Itoa(memberID)
}

func (l *RedisLocker) Acquire(ctx context.Context, memberID int, owner string) (bool, error) {
	return l.client.SetNX(ctx, lockKey(memberID), owner, l.ttl).Result()
}

func (l *RedisLocker) Handoff(ctx context.Context, memberID int, from, to string) (bool, error) {
	n, err := l.client.Eval(ctx, handoffScript, []string{lockKey(memberID)}, from, to, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *RedisLocker) Release(ctx context.Context, memberID int, owner string) error {
	return l.client.Eval(ctx, releaseScript, []string{lockKey(memberID)}, owner).Err()
}
