package connmgr

import (
	"fmt"

	"github.com/dep2p/go-btpeer/config"
	"github.com/dep2p/go-btpeer/pkg/types"
)

// DuplicatePolicy 重复连接保留策略
type DuplicatePolicy interface {
	// Name 策略名称
	Name() string

	// Survivor 从按加入顺序排列的重复连接中选出保留者的下标
	Survivor(dups []ConnInfo) int
}

type keepOldest struct{}

func (keepOldest) Name() string { return config.DuplicateKeepOldest }

func (keepOldest) Survivor(dups []ConnInfo) int {
	best := 0
	for i := 1; i < len(dups); i++ {
		if dups[i].AddedAt.Before(dups[best].AddedAt) {
			best = i
		}
	}
	return best
}

type keepNewest struct{}

func (keepNewest) Name() string { return config.DuplicateKeepNewest }

func (keepNewest) Survivor(dups []ConnInfo) int {
	best := 0
	for i := 1; i < len(dups); i++ {
		if !dups[i].AddedAt.Before(dups[best].AddedAt) {
			best = i
		}
	}
	return best
}

var (
	// KeepOldest 保留最早加入的连接
	KeepOldest DuplicatePolicy = keepOldest{}

	// KeepNewest 保留最新加入的连接
	KeepNewest DuplicatePolicy = keepNewest{}
)

// PolicyByName 按配置名称返回策略
func PolicyByName(name string) (DuplicatePolicy, error) {
	switch name {
	case config.DuplicateKeepOldest, "":
		return KeepOldest, nil
	case config.DuplicateKeepNewest:
		return KeepNewest, nil
	default:
		return nil, fmt.Errorf("%w: unknown duplicate policy %q", types.ErrInvalidArgument, name)
	}
}
