package glock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/bean/option"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const defaultTableName = "distributed_locks"

// Store 基于 GORM 的 KeyStore，也就是基于关系型数据库的实现
// 整体思路就是借助唯一索引和乐观锁来控制状态，从而实现加锁和解锁的功能
// 数据库没有 TTL，所以过期是靠 expiration 字段判断的：
// status 是 locked 并且 expiration 还没到，才算是一条活着的锁记录
type Store struct {
	db        *gorm.DB
	tableName string
	mode      string
	timeout   time.Duration
	now       func() time.Time
}

// NewStore 默认使用 ModeCASFirst
func NewStore(db *gorm.DB, opts ...option.Option[Store]) *Store {
	s := &Store{
		db:        db,
		tableName: defaultTableName,
		mode:      ModeCASFirst,
		// 正常来说，访问 MySQL 虽然不是很快，但是也差不多就是十几二十毫秒的样子
		// 所以 500 ms 绰绰有余了
		timeout: time.Millisecond * 500,
		now:     time.Now,
	}
	option.Apply(s, opts...)
	return s
}

func (s *Store) InitTable() error {
	return s.db.Table(s.tableName).AutoMigrate(&DistributedLock{})
}

func (s *Store) table(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.tableName)
}

func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	switch s.mode {
	case ModeInsertFirst:
		return s.lockByInsertFirst(ctx, key, value, ttl)
	case ModeCASFirst:
		return s.lockByCASFirst(ctx, key, value, ttl)
	default:
		return false, fmt.Errorf("非法的锁模式 %s", s.mode)
	}
}

func (s *Store) lockByInsertFirst(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	err := s.insertLock(ctx, key, value, ttl)
	// 加锁成功
	if err == nil {
		return true, nil
	}
	// 加锁失败有很多种可能，但是不管，我们默认是唯一索引冲突。
	// 因为我们并不知道用户用的是什么数据库，所以没办法检查是不是唯一索引冲突
	return s.casAfterInsert(ctx, key, value, ttl, err)
}

func (s *Store) lockByCASFirst(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.casLock(ctx, key, value, ttl)
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 没有这条数据，说明没人加过锁，尝试直接插入加锁
		err = s.insertLock(ctx, key, value, ttl)
		if err == nil {
			return true, nil
		}
		// 可能刚刚被人插入了
		return s.casAfterInsert(ctx, key, value, ttl, err)
	default:
		return false, errors.Wrap(err, "CAS 加锁")
	}
}

// casAfterInsert 插入失败之后再尝试一次 CAS，
// 如果还是找不到数据，说明插入失败不是因为唯一索引冲突，而是数据库本身有问题
func (s *Store) casAfterInsert(ctx context.Context, key, value string, ttl time.Duration, insertErr error) (bool, error) {
	ok, err := s.casLock(ctx, key, value, ttl)
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, errors.Wrap(insertErr, "插入锁记录")
	default:
		return false, errors.Wrap(err, "CAS 加锁")
	}
}

// 使用 INSERT 来加锁，如果 insert 成功就说明拿到了锁
func (s *Store) insertLock(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.now().UnixMilli()
	return s.table(ctx).Create(&DistributedLock{
		Key:        key,
		Value:      value,
		Status:     StatusLocked,
		Expiration: now + ttl.Milliseconds(),
		Version:    1,
		Utime:      now,
		Ctime:      now,
	}).Error
}

// 使用 CAS 机制来抢锁
func (s *Store) casLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	var lock DistributedLock
	err := s.table(ctx).Where("`key` = ?", key).First(&lock).Error
	if err != nil {
		// 查询失败，可能
		// 1. 数据库中没有数据
		// 2. 查询本身有问题
		return false, err
	}
	now := s.now().UnixMilli()
	if lock.Status == StatusLocked && lock.Value == value {
		// 自己之前加锁成功了。比如说因为超时之类的导致第一次加锁成功了但是没收到成功响应
		return true, nil
	}
	// 还在被人拿着
	if lock.Status == StatusLocked && now < lock.Expiration {
		return false, nil
	}
	// 到这里有两种可能，
	// 1. Status 是 Unlocked
	// 2. Status 是 Locked 但是已经过期了，相当于之前的节点已经放弃锁了
	// 不建议用 utime 作为版本号，因为高并发的环境下，可能有两个毫秒数相同的
	res := s.table(ctx).Where("`key` = ? AND version = ?", key, lock.Version).
		Updates(map[string]any{
			"status":     StatusLocked,
			"utime":      now,
			"value":      value,
			"expiration": now + ttl.Milliseconds(),
			"version":    lock.Version + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	// RowsAffected 是 0 说明刚刚被人抢走
	return res.RowsAffected > 0, nil
}

// DeleteIfEqual 并不会真的删除这一行，而是把状态改成 unlocked，
// 这样下一次 CAS 加锁就不需要插入了
func (s *Store) DeleteIfEqual(ctx context.Context, key, expected string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	now := s.now().UnixMilli()
	res := s.table(ctx).
		Where("`key` = ? AND `value` = ? AND `status` = ?", key, expected, StatusLocked).
		Updates(map[string]any{
			"utime":  now,
			"status": StatusUnlocked,
			// 将过期时间修改为当下。当然不修改也是可以的
			"expiration": now,
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "解锁")
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ExpireIfEqual(ctx context.Context, key, expected string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	now := s.now().UnixMilli()
	res := s.table(ctx).
		// 要确保还没有过期
		Where("`key` = ? AND `value` = ? AND `status` = ? AND expiration > ?", key, expected, StatusLocked, now).
		Updates(map[string]any{
			"utime":      now,
			"expiration": now + ttl.Milliseconds(),
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "续约")
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var cnt int64
	err := s.table(ctx).
		Where("`key` = ? AND `status` = ? AND expiration > ?", key, StatusLocked, s.now().UnixMilli()).
		Count(&cnt).Error
	if err != nil {
		return false, errors.Wrap(err, "查询锁")
	}
	return cnt > 0, nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.table(ctx).
		Where("`key` LIKE ? ESCAPE '!' AND `status` = ? AND expiration > ?",
			likePrefix(prefix), StatusLocked, s.now().UnixMilli()).
		Order("`key`").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, errors.Wrap(err, "查询锁列表")
	}
	return keys, nil
}

// Purge 这里是真的删除
func (s *Store) Purge(ctx context.Context, prefix string) (int64, error) {
	res := s.table(ctx).
		Where("`key` LIKE ? ESCAPE '!'", likePrefix(prefix)).
		Delete(&DistributedLock{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "清理锁")
	}
	return res.RowsAffected, nil
}

var likeReplacer = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likePrefix(prefix string) string {
	return likeReplacer.Replace(prefix) + "%"
}

// DistributedLock 在数据库中保存的代表锁的东西
type DistributedLock struct {
	Id int64 `gorm:"primaryKey;autoIncrement"`
	// 唯一索引
	Key   string `gorm:"type:varchar(256);uniqueIndex"`
	Value string `gorm:"type:varchar(128)"`

	Status uint8

	// int64 够你用到天荒地老
	Version int64

	// 过期时间，毫秒数
	Expiration int64 `gorm:"index"`

	// 记录的是毫秒数
	Utime int64
	Ctime int64
}

const (
	StatusUnlocked uint8 = iota
	StatusLocked
)

func (l DistributedLock) TableName() string {
	return defaultTableName
}
