// Package kafka 提供了向 Kafka 发布任务消息的功能。
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"stenagrafist-go/internal/config"
	"stenagrafist-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// partitionHeader 携带调用方选定的分区号，由 pinnedPartition 读取。
const partitionHeader = "x-stenagrafist-partition"

// Producer 包装一个长生命周期的 kafka.Writer，并缓存启动时查询到的主题分区列表。
// 可被多个请求并发使用。
type Producer struct {
	writer     *kafka.Writer
	topic      string
	partitions []int
}

// NewProducer 查询主题的分区并初始化 Kafka 生产者。
func NewProducer(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	partitions, err := lookupPartitions(ctx, brokers, cfg.Topic)
	if err != nil {
		return nil, err
	}

	p := &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     kafka.BalancerFunc(pinnedPartition),
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic:      cfg.Topic,
		partitions: partitions,
	}
	log.Infof("Kafka 生产者初始化成功, topic: %s, 分区: %v", cfg.Topic, partitions)
	return p, nil
}

// lookupPartitions 依次尝试每个 broker，返回第一个成功的分区查询结果。
func lookupPartitions(ctx context.Context, brokers []string, topic string) ([]int, error) {
	var lastErr error
	for _, broker := range brokers {
		parts, err := kafka.LookupPartitions(ctx, "tcp", broker, topic)
		if err != nil {
			lastErr = err
			log.Warnf("查询 Kafka 分区失败, broker: %s, error: %v", broker, err)
			continue
		}
		ids := make([]int, 0, len(parts))
		for _, p := range parts {
			ids = append(ids, p.ID)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("kafka: topic %q has no partitions", topic)
		}
		sort.Ints(ids)
		return ids, nil
	}
	return nil, fmt.Errorf("kafka: lookup partitions for %q: %w", topic, lastErr)
}

// Topic 返回生产者发布消息的固定主题。
func (p *Producer) Topic() string {
	return p.topic
}

// Partitions 返回启动时缓存的分区列表副本。
func (p *Producer) Partitions() []int {
	out := make([]int, len(p.partitions))
	copy(out, p.partitions)
	return out
}

// Publish 同步地把 payload 写入 topic 的指定分区，直到 broker 确认。
func (p *Producer) Publish(ctx context.Context, topic string, partition int, payload []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: payload,
		Headers: []kafka.Header{
			{Key: partitionHeader, Value: []byte(strconv.Itoa(partition))},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: publish to %s[%d]: %w", topic, partition, err)
	}
	return nil
}

// Close 刷新并关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// pinnedPartition 是 kafka.Writer 的 Balancer：使用消息头里的分区号，
// 若头缺失或分区已不存在则退回第一个可用分区。
func pinnedPartition(msg kafka.Message, partitions ...int) int {
	for _, h := range msg.Headers {
		if h.Key != partitionHeader {
			continue
		}
		want, err := strconv.Atoi(string(h.Value))
		if err != nil {
			break
		}
		for _, p := range partitions {
			if p == want {
				return p
			}
		}
		break
	}
	return partitions[0]
}
