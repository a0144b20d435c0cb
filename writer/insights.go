package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "shoppulse/config"
	"shoppulse/logger"
	"shoppulse/models"
)

// insightEnvelope is the wire shape of a published anomaly insight.
type insightEnvelope struct {
	StoreID     string               `json:"store_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Anomaly     models.AnomalyRecord `json:"anomaly"`
}

// InsightPublisher pushes detected anomalies onto a Kafka topic so
// downstream notifiers can alert merchants.
type InsightPublisher struct {
	writer *kafka.Writer
	log    *logger.Log
}

func NewInsightPublisher(cfg *appconfig.Config) (*InsightPublisher, error) {
	if len(cfg.Storage.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	p := &InsightPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Storage.Kafka.Brokers...),
			Topic:    cfg.Storage.Kafka.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		log: logger.GetLogger(),
	}
	p.log.WithComponent("insight_publisher").WithFields(logger.Fields{
		"brokers": cfg.Storage.Kafka.Brokers,
		"topic":   cfg.Storage.Kafka.Topic,
	}).Debug("insight publisher initialized")
	return p, nil
}

// Publish writes each anomaly as its own message, keyed by store id so a
// store's insights stay ordered within a partition.
func (p *InsightPublisher) Publish(ctx context.Context, storeID string, anomalies []models.AnomalyRecord) error {
	if len(anomalies) == 0 {
		return nil
	}

	now := time.Now().UTC()
	messages := make([]kafka.Message, 0, len(anomalies))
	for _, anomaly := range anomalies {
		data, err := json.Marshal(insightEnvelope{
			StoreID:     storeID,
			GeneratedAt: now,
			Anomaly:     anomaly,
		})
		if err != nil {
			p.log.WithComponent("insight_publisher").WithError(err).Warn("failed to marshal anomaly insight")
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(storeID),
			Value: data,
		})
	}
	if len(messages) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.log.WithComponent("insight_publisher").WithError(err).Warn("failed to publish insights")
		return fmt.Errorf("publish insights for store %s: %w", storeID, err)
	}

	logger.IncrementInsightPublishes(len(messages))
	p.log.WithComponent("insight_publisher").WithFields(logger.Fields{
		"store_id": storeID,
		"count":    len(messages),
	}).Debug("insights published")
	return nil
}

func (p *InsightPublisher) Close() error {
	return p.writer.Close()
}
