package errs

import "errors"

var (
	// ErrLockNotHold 一般是出现在你预期你本来持有锁，结果却没有持有锁的地方
	// 比如说续约的时候发现 key 的值已经不是自己的 token 了，
	// 这意味着锁已经过期，并且很可能已经被别人拿走了
	ErrLockNotHold = errors.New("未持有锁")
	// ErrLocked 锁被人持有了，一般是加锁的时候发现的
	ErrLocked = errors.New("加锁失败，锁被人持有")
	// ErrLockReleased 在已经释放的锁上面再次续约
	ErrLockReleased = errors.New("锁已经释放")
	// ErrStoreUnavailable 访问存储失败。加锁的时候遇到这个错误，必须当作没拿到锁处理
	ErrStoreUnavailable = errors.New("锁存储不可用")
	// ErrInvalidConfiguration 锁配置不合法
	ErrInvalidConfiguration = errors.New("非法的锁配置")
)
