package mq

import (
	"log"
	"time"

	"cashledger/internal/config"

	"github.com/IBM/sarama"
)

var producer sarama.SyncProducer

// InitKafka 初始化 Kafka 同步生产者
// 账务事件不允许丢：等全部副本确认，发送端自带重试
func InitKafka(cfg *config.KafkaConfig) sarama.SyncProducer {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Retry.Backoff = 200 * time.Millisecond
	kafkaConfig.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		log.Fatalf("创建 Kafka 生产者失败: brokers=%v, err=%v", cfg.Brokers, err)
	}

	producer = p
	log.Printf("Kafka 生产者就绪: brokers=%v", cfg.Brokers)
	return p
}

// SendMessage 发送一条事件，key 决定分区，同一单号的事件保序
func SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := producer.SendMessage(msg)
	return err
}

// CloseKafka 关闭生产者
func CloseKafka() {
	if producer != nil {
		producer.Close()
	}
}
