package kafka

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// PartitionPolicy 从可用分区中选出一条消息要写入的分区。
// 实现必须支持并发调用；partitions 保证非空。
type PartitionPolicy interface {
	Select(partitions []int) int
}

// RandomPolicy 均匀随机地选择分区。
type RandomPolicy struct{}

// Select 实现 PartitionPolicy。
func (RandomPolicy) Select(partitions []int) int {
	return partitions[rand.IntN(len(partitions))]
}

// RoundRobinPolicy 按顺序轮流选择分区。
type RoundRobinPolicy struct {
	next atomic.Uint64
}

// Select 实现 PartitionPolicy。
func (r *RoundRobinPolicy) Select(partitions []int) int {
	n := r.next.Add(1) - 1
	return partitions[n%uint64(len(partitions))]
}

// NewPartitionPolicy 根据配置名称构造分区策略。
func NewPartitionPolicy(name string) (PartitionPolicy, error) {
	switch name {
	case "", "random":
		return RandomPolicy{}, nil
	case "round_robin":
		return &RoundRobinPolicy{}, nil
	default:
		return nil, fmt.Errorf("kafka: unknown partition policy %q", name)
	}
}
