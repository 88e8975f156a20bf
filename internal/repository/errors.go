package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示尝试插入或更新的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrLockNotAcquired 表示房间锁已被其他请求持有
	ErrLockNotAcquired = errors.New("repository: lock not acquired")
)

// 特定资源的错误
var (
	ErrRoomNotFound = ErrNotFound
)
