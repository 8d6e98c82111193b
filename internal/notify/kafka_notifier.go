package notify

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/blues/mes/internal/config"
	"github.com/blues/mes/internal/logger"
	"github.com/panjf2000/ants/v2"
)

// KafkaNotifier 基于 Kafka 的通知发布器。
// 通知是尽力而为的旁路效果：投递在协程池中异步执行，
// 失败只记录日志，绝不影响已提交的托管状态变更。
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	pool     *ants.Pool
}

// message 通知消息体
type message struct {
	UserId    string                 `json:"user_id"`
	Kind      string                 `json:"kind"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewKafkaNotifier 创建 Kafka 通知发布器
func NewKafkaNotifier(cfg config.KafkaConfig) (*KafkaNotifier, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, err
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 8
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		producer.Close()
		return nil, err
	}

	logger.Info("Kafka notifier initialized, brokers: %v, topic: %s", cfg.Brokers, cfg.Topic)
	return &KafkaNotifier{
		producer: producer,
		topic:    cfg.Topic,
		pool:     pool,
	}, nil
}

// Notify 异步发布通知，失败只记录日志
func (n *KafkaNotifier) Notify(userId, kind string, payload map[string]interface{}) {
	msg := message{
		UserId:    userId,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	err := n.pool.Submit(func() {
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Error("Failed to marshal notification %s for user %s: %v", kind, userId, err)
			return
		}
		_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
			Topic: n.topic,
			Key:   sarama.StringEncoder(userId),
			Value: sarama.ByteEncoder(data),
		})
		if err != nil {
			logger.Error("Failed to publish notification %s for user %s: %v", kind, userId, err)
			return
		}
		logger.Debug("Published notification %s for user %s", kind, userId)
	})
	if err != nil {
		logger.Error("Failed to submit notification %s for user %s: %v", kind, userId, err)
	}
}

// Close 关闭协程池与生产者
func (n *KafkaNotifier) Close() {
	n.pool.Release()
	if err := n.producer.Close(); err != nil {
		logger.Error("Failed to close Kafka producer: %v", err)
	}
}
