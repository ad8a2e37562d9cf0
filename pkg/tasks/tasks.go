// Package tasks defines the job message handed to the downstream worker over Kafka.
package tasks

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// JobMessage 引用一个已创建的任务及其在对象存储中的文件。
// 线上格式为 msgpack map: {"order_id": <uint>, "file_path": <string>}。
type JobMessage struct {
	TaskID    uint   `msgpack:"order_id" json:"order_id"`
	ObjectKey string `msgpack:"file_path" json:"file_path"`
}

// Encode 将消息编码为紧凑的 msgpack 字节。
func (m JobMessage) Encode() ([]byte, error) {
	if m.TaskID == 0 || m.ObjectKey == "" {
		return nil, errors.New("job message requires task id and object key")
	}
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("encode job message: %w", err)
	}
	return b, nil
}

// Decode 解析 Encode 生成的字节。
func Decode(b []byte) (JobMessage, error) {
	var m JobMessage
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return JobMessage{}, fmt.Errorf("decode job message: %w", err)
	}
	return m, nil
}
