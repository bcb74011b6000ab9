package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"towing-system/internal/config"
	"towing-system/internal/logger"
	"towing-system/internal/metrics"
	"towing-system/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner
	saramaCfg.Net.DialTimeout = 3 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishQuoteCreated публикует событие сохранения сметы
func (p *Producer) PublishQuoteCreated(quote *models.Quote) error {
	return p.publishEvent(p.topics.Quotes, newEvent(models.EventTypeQuoteCreated, quote.AccountID, models.QuoteCreatedData{
		QuoteID:    quote.ID,
		DistanceKm: quote.DistanceKm,
		Total:      quote.Total,
		FuelCost:   quote.FuelCost,
	}))
}

// PublishQuoteStatusChanged публикует смену статуса сметы
func (p *Producer) PublishQuoteStatusChanged(accountID, quoteID uuid.UUID, oldStatus, newStatus models.QuoteStatus) error {
	return p.publishEvent(p.topics.Quotes, newEvent(models.EventTypeQuoteStatusChanged, accountID, models.QuoteStatusChangedData{
		QuoteID:   quoteID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}))
}

// PublishServiceCreated публикует создание выезда из сметы
func (p *Producer) PublishServiceCreated(service *models.Service) error {
	return p.publishEvent(p.topics.Services, newEvent(models.EventTypeServiceCreated, service.AccountID, models.ServiceCreatedData{
		ServiceID:  service.ID,
		QuoteID:    service.QuoteID,
		ClientName: service.ClientName,
		Value:      service.Value,
		Cost:       service.Cost,
	}))
}

// PublishServiceStatusChanged публикует смену статуса выезда
func (p *Producer) PublishServiceStatusChanged(accountID, serviceID uuid.UUID, oldStatus, newStatus models.ServiceStatus) error {
	return p.publishEvent(p.topics.Services, newEvent(models.EventTypeServiceStatusChanged, accountID, models.ServiceStatusChangedData{
		ServiceID: serviceID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}))
}

// PublishTransactionCreated публикует новую финансовую операцию
func (p *Producer) PublishTransactionCreated(transaction *models.Transaction) error {
	return p.publishEvent(p.topics.Transactions, newEvent(models.EventTypeTransactionCreated, transaction.AccountID, models.TransactionCreatedData{
		TransactionID: transaction.ID,
		Type:          transaction.Type,
		Category:      transaction.Category,
		Amount:        transaction.Amount,
	}))
}

func newEvent(eventType models.EventType, accountID uuid.UUID, data interface{}) models.Event {
	return models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		AccountID: accountID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// publishEvent отправляет событие; ключ сообщения аккаунт, чтобы события одного аккаунта шли в одну партицию
func (p *Producer) publishEvent(topic string, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		metrics.IncEventPublished(string(event.Type), metrics.ResultError)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.AccountID.String()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		metrics.IncEventPublished(string(event.Type), metrics.ResultError)
		p.log.WithError(err).WithFields(map[string]interface{}{
			"topic":      topic,
			"event_type": event.Type,
		}).Error("Failed to publish event")
		return fmt.Errorf("failed to send message: %w", err)
	}

	metrics.IncEventPublished(string(event.Type), metrics.ResultSuccess)
	p.log.WithFields(map[string]interface{}{
		"topic":      topic,
		"event_type": event.Type,
		"event_id":   event.ID,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}
