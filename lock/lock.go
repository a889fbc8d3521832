// Package lock 提供按键互斥的锁实现.
//
// Saga 的每次读-改-写都在以 sagaId 为键的锁内完成，不同 Saga 并行执行.
// 单实例部署使用进程内的 Keyed，多副本部署使用基于 Redis 的 Redis 锁.
//
// 基本用法:
//
//	locker := lock.NewKeyed()
//	err := locker.WithLock(ctx, sagaID, func(ctx context.Context) error {
//	    s, err := store.Get(ctx, sagaID)
//	    // 修改并保存
//	    return store.Update(ctx, s)
//	})
package lock

import "context"

// Locker 按键互斥执行.
type Locker interface {
	// WithLock 持有 key 对应的锁执行 fn，fn 返回后释放.
	// 等待锁期间 ctx 取消时返回 ctx.Err()，fn 不会执行.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
