package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/aidingjing/rain-gauge-api/internal/config"
	"github.com/aidingjing/rain-gauge-api/internal/model"
)

// Publisher 异常处理事件发布接口
type Publisher interface {
	PublishResolved(ctx context.Context, detail model.ResolvedDetail) error
	Close() error
}

// ResolvedEvent 异常处理完成事件（JSON 消息体）
type ResolvedEvent struct {
	Type          string  `json:"type"`
	StationCode   string  `json:"stcd"`
	StationName   string  `json:"stnm"`
	ExceptionTime string  `json:"tm"`
	Remark        string  `json:"rem"`
	ResolverName  string  `json:"re_name"`
	Status        int     `json:"status"`
	ResolvedAt    string  `json:"re_time"`
	OldRemark     *string `json:"old_rem"`
}

// NewResolvedEvent 由处理结果构造事件
func NewResolvedEvent(d model.ResolvedDetail) ResolvedEvent {
	return ResolvedEvent{
		Type:          "exception.resolved",
		StationCode:   d.StationCode,
		StationName:   d.StationName,
		ExceptionTime: model.FormatTime(d.ExceptionTime),
		Remark:        d.NewRemark,
		ResolverName:  d.ResolverName,
		Status:        d.Status,
		ResolvedAt:    model.FormatTime(d.ResolvedAt),
		OldRemark:     d.OldRemark,
	}
}

// Key 消息键：同一测站、时刻的事件落在同一分区
func (e ResolvedEvent) Key() string {
	return e.StationCode + "|" + e.ExceptionTime
}

// messageWriter kafka.Writer 的抽象，测试时替换为模拟实现
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 基于 kafka-go 的事件发布器
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher 创建 Kafka 发布器
func NewKafkaPublisher(cfg config.EventsConfig) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		Async:        false,
	}
	return &KafkaPublisher{writer: w, topic: cfg.Topic}
}

// PublishResolved 发布异常处理完成事件
func (p *KafkaPublisher) PublishResolved(ctx context.Context, detail model.ResolvedDetail) error {
	evt := NewResolvedEvent(detail)
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to serialize resolved event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(evt.Key()),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish resolved event: %w", err)
	}
	return nil
}

// Close 关闭发布器
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 未启用事件推送时使用
type NopPublisher struct{}

func (NopPublisher) PublishResolved(context.Context, model.ResolvedDetail) error { return nil }
func (NopPublisher) Close() error                                                { return nil }

// NewPublisher 根据配置创建发布器
func NewPublisher(cfg config.EventsConfig) Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg)
}
