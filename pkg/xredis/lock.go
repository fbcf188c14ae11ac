package xredis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lua 脚本：先比对 token 再删 key，别把别的实例占的锁解了
// KEYS[1]: 锁 key
// ARGV[1]: 持有者 token
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

// DistLock 充值确认用的占锁：同一个 tx hash 同时只放一个请求进来。
// 抢不到就直接拒绝，不自旋等待，等锁的那个请求本来就该被当成重复提交
type DistLock struct {
	client     *redis.Client
	key        string
	token      string        // 持有者标识 (UUID)，谁加锁谁解锁
	expiration time.Duration // 自动过期，持有者崩了锁也能放出来
}

func NewDistLock(client *redis.Client, key string, expiration time.Duration) *DistLock {
	return &DistLock{
		client:     client,
		key:        key,
		token:      uuid.New().String(),
		expiration: expiration,
	}
}

// TryLock 一次性尝试，不阻塞
func (l *DistLock) TryLock(ctx context.Context) (bool, error) {
	// NX: key 不存在才写；PX: 过期毫秒数
	success, err := l.client.SetNX(ctx, l.key, l.token, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Unlock 安全释放 (Lua 保证比对和删除原子)
func (l *DistLock) Unlock(ctx context.Context) (bool, error) {
	res, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.token).Result()
	if err != nil {
		return false, err
	}
	// 1 删除成功；0 key 不在或 token 不匹配
	return res.(int64) == 1, nil
}
