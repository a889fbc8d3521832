package lock

import "errors"

var (
	// ErrLockNotAcquired 无法获取锁.
	ErrLockNotAcquired = errors.New("lock: 获取锁失败")

	// ErrLockNotHeld 锁未被持有（释放或延长时）.
	ErrLockNotHeld = errors.New("lock: 锁未被持有")

	// ErrLockExpired 锁已过期.
	ErrLockExpired = errors.New("lock: 锁已过期")

	// ErrNilCache 缓存实例为空.
	ErrNilCache = errors.New("lock: 缓存实例不能为空")
)
