package kafka

import (
	"encoding/json"
	"fmt"
	"testing"

	"towing-system/internal/config"
	"towing-system/internal/logger"
	"towing-system/internal/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
)

func newTestProducer(mp sarama.SyncProducer) *Producer {
	return &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Quotes: "quotes", Services: "services", Transactions: "transactions"},
	}
}

func TestPublishEvent(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageAndSucceed()

	event := models.Event{ID: uuid.New(), Type: models.EventTypeQuoteCreated}
	p := newTestProducer(mp)
	if err := p.publishEvent("quotes", event); err != nil {
		t.Fatalf("expected publish success, got %v", err)
	}

	if err := mp.Close(); err != nil {
		t.Fatalf("failed to close mock producer: %v", err)
	}
}

func TestProducer_WrapperMethods(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	for i := 0; i < 5; i++ {
		mp.ExpectSendMessageAndSucceed()
	}

	p := newTestProducer(mp)

	accountID := uuid.New()
	quote := &models.Quote{ID: uuid.New(), AccountID: accountID, DistanceKm: 88.75, Total: 887.5, FuelCost: 86.62}
	service := &models.Service{ID: uuid.New(), AccountID: accountID, QuoteID: quote.ID, ClientName: "Maria", Value: 887.5}
	transaction := &models.Transaction{ID: uuid.New(), AccountID: accountID, Type: models.TransactionTypeExpense, Category: "Combustível", Amount: 250}

	if err := p.PublishQuoteCreated(quote); err != nil {
		t.Fatalf("PublishQuoteCreated failed: %v", err)
	}
	if err := p.PublishQuoteStatusChanged(accountID, quote.ID, models.QuoteStatusPending, models.QuoteStatusApproved); err != nil {
		t.Fatalf("PublishQuoteStatusChanged failed: %v", err)
	}
	if err := p.PublishServiceCreated(service); err != nil {
		t.Fatalf("PublishServiceCreated failed: %v", err)
	}
	if err := p.PublishServiceStatusChanged(accountID, service.ID, models.ServiceStatusPending, models.ServiceStatusInProgress); err != nil {
		t.Fatalf("PublishServiceStatusChanged failed: %v", err)
	}
	if err := p.PublishTransactionCreated(transaction); err != nil {
		t.Fatalf("PublishTransactionCreated failed: %v", err)
	}
}

func TestProducer_MessageKeyedByAccount(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)

	accountID := uuid.New()
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "services" {
			return fmt.Errorf("unexpected topic %q", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != accountID.String() {
			return fmt.Errorf("unexpected key %q", key)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var event models.Event
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.Type != models.EventTypeServiceStatusChanged || event.AccountID != accountID {
			return fmt.Errorf("unexpected event %+v", event)
		}
		return nil
	})

	p := newTestProducer(mp)
	if err := p.PublishServiceStatusChanged(accountID, uuid.New(), models.ServiceStatusInProgress, models.ServiceStatusCompleted); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

func TestProducer_PublishEvent_Failure(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newTestProducer(mp)

	ev := models.Event{ID: uuid.New(), Type: models.EventTypeQuoteCreated}
	err := p.publishEvent("quotes", ev)
	if err == nil {
		t.Fatalf("expected error on send failure")
	}
	_ = p.Close()
}

func TestNewProducer_Error(t *testing.T) {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.KafkaConfig{Brokers: []string{"localhost:0"}}
	if _, err := NewProducer(cfg, log); err == nil {
		t.Fatalf("expected error creating producer")
	}
}

func TestProducer_CloseNil(t *testing.T) {
	var p *Producer
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error on nil producer")
	}
	p = &Producer{}
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error on empty producer, got %v", err)
	}
}
