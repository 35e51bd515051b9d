// Package token 生成锁的 owner token。token 写在存储里面，
// 用来证明锁是自己的，所以每一次加锁都必须不一样
package token

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

const (
	KindUUID      = "uuid"
	KindShortUUID = "shortuuid"
	KindSnowflake = "snowflake"
)

// Valuer 每次调用返回一个新的 token
type Valuer func() string

func UUID() Valuer {
	return func() string {
		return uuid.New().String()
	}
}

// ShortUUID 比 UUID 短一点，存储里面省一点空间
func ShortUUID() Valuer {
	return func() string {
		return shortuuid.New()
	}
}

// Snowflake 用雪花算法生成 token，node 在集群内必须唯一。
// token 的后面会带上主机名，排查问题的时候能直接看出来锁在谁手上
func Snowflake(node int64) (Valuer, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("创建 snowflake 节点失败 %w", err)
	}
	host, _ := os.Hostname()
	return func() string {
		id := n.Generate().String()
		if host == "" {
			return id
		}
		return id + "@" + host
	}, nil
}

// New 根据 kind 创建 Valuer，node 只有 snowflake 用得上
func New(kind string, node int64) (Valuer, error) {
	switch kind {
	case "", KindUUID:
		return UUID(), nil
	case KindShortUUID:
		return ShortUUID(), nil
	case KindSnowflake:
		return Snowflake(node)
	default:
		return nil, fmt.Errorf("未知的 token 类型 %s", kind)
	}
}
