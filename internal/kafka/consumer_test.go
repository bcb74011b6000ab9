package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"towing-system/internal/config"
	"towing-system/internal/logger"
	"towing-system/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func eventMessage(t *testing.T, event models.Event) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Value: data, Topic: "services", Key: []byte(event.AccountID.String())}
}

func TestConsumer_ProcessMessage(t *testing.T) {
	accountID := uuid.New()

	tests := []struct {
		name      string
		msg       func(t *testing.T) *sarama.ConsumerMessage
		handlerFn EventHandler
		wantErr   bool
		wantCall  bool
	}{
		{
			name: "dispatches by type",
			msg: func(t *testing.T) *sarama.ConsumerMessage {
				return eventMessage(t, models.Event{ID: uuid.New(), Type: models.EventTypeServiceCreated, AccountID: accountID})
			},
			handlerFn: func(ctx context.Context, event *models.Event) error { return nil },
			wantCall:  true,
		},
		{
			name: "no handler is not an error",
			msg: func(t *testing.T) *sarama.ConsumerMessage {
				return eventMessage(t, models.Event{ID: uuid.New(), Type: models.EventTypeTransactionCreated, AccountID: accountID})
			},
		},
		{
			name: "handler error is wrapped",
			msg: func(t *testing.T) *sarama.ConsumerMessage {
				return eventMessage(t, models.Event{ID: uuid.New(), Type: models.EventTypeServiceCreated, AccountID: accountID})
			},
			handlerFn: func(ctx context.Context, event *models.Event) error { return errors.New("cache down") },
			wantErr:   true,
			wantCall:  true,
		},
		{
			name:    "invalid payload",
			msg:     func(*testing.T) *sarama.ConsumerMessage { return &sarama.ConsumerMessage{Value: []byte("not json")} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newConsumer(nil, testLogger())
			var got *models.Event
			if tt.handlerFn != nil {
				c.RegisterHandler(models.EventTypeServiceCreated, func(ctx context.Context, event *models.Event) error {
					got = event
					return tt.handlerFn(ctx, event)
				})
			}

			err := c.processMessage(tt.msg(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.wantCall && (got == nil || got.AccountID != accountID) {
				t.Fatalf("handler not called with the event account, got %+v", got)
			}
		})
	}
}

func TestDecodeEventData(t *testing.T) {
	serviceID := uuid.New()
	msg := eventMessage(t, models.Event{
		ID:   uuid.New(),
		Type: models.EventTypeServiceStatusChanged,
		Data: models.ServiceStatusChangedData{
			ServiceID: serviceID,
			OldStatus: models.ServiceStatusInProgress,
			NewStatus: models.ServiceStatusCompleted,
		},
	})

	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	var data models.ServiceStatusChangedData
	if err := DecodeEventData(&event, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.ServiceID != serviceID || data.NewStatus != models.ServiceStatusCompleted {
		t.Fatalf("unexpected data: %+v", data)
	}

	event.Data = []int{1, 2}
	if err := DecodeEventData(&event, &data); err == nil {
		t.Fatalf("expected decode error for mismatched payload")
	}
}

type mockConsumerGroup struct {
	consumeCount int
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	m.consumeCount++
	_ = handler.Setup(nil)
	<-ctx.Done()
	return ctx.Err()
}
func (m *mockConsumerGroup) Errors() <-chan error      { ch := make(chan error); close(ch); return ch }
func (m *mockConsumerGroup) Close() error              { return nil }
func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked int
}

func (m *mockSession) Claims() map[string][]int32                                               { return nil }
func (m *mockSession) MemberID() string                                                         { return "" }
func (m *mockSession) GenerationID() int32                                                      { return 0 }
func (m *mockSession) MarkOffset(topic string, partition int32, offset int64, metadata string)  {}
func (m *mockSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {}
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string)                 { m.marked++ }
func (m *mockSession) Commit()                                                                  {}
func (m *mockSession) Context() context.Context                                                 { return m.ctx }

type mockClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string              { return "services" }
func (m *mockClaim) Partition() int32           { return 0 }
func (m *mockClaim) InitialOffset() int64       { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64 { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage {
	return m.msgs
}

func TestConsumer_ConsumeClaim_MarksFailedMessages(t *testing.T) {
	c := newConsumer(nil, testLogger())
	handled := 0
	c.RegisterHandler(models.EventTypeServiceCreated, func(ctx context.Context, event *models.Event) error {
		handled++
		return nil
	})

	msgs := make(chan *sarama.ConsumerMessage, 3)
	msgs <- eventMessage(t, models.Event{ID: uuid.New(), Type: models.EventTypeServiceCreated})
	msgs <- &sarama.ConsumerMessage{Value: []byte("{broken")}
	msgs <- eventMessage(t, models.Event{ID: uuid.New(), Type: models.EventTypeServiceCreated})
	close(msgs)

	session := &mockSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, &mockClaim{msgs: msgs}); err != nil {
		t.Fatalf("consume claim failed: %v", err)
	}
	if handled != 2 {
		t.Fatalf("expected 2 handled events, got %d", handled)
	}
	if session.marked != 3 {
		t.Fatalf("every message must be marked, got %d", session.marked)
	}
}

func TestConsumer_ConsumeClaim_StopsOnSessionDone(t *testing.T) {
	c := newConsumer(nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.ConsumeClaim(&mockSession{ctx: ctx}, &mockClaim{msgs: make(chan *sarama.ConsumerMessage)})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("consume claim did not return after session end")
	}
}

func TestNewTestConsumer_StartStop(t *testing.T) {
	mockGroup := &mockConsumerGroup{}
	c := NewTestConsumer(mockGroup, testLogger())
	if c.consumer != mockGroup {
		t.Fatalf("consumer group not set")
	}
	if err := c.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if mockGroup.consumeCount == 0 {
		t.Fatalf("expected Consume called at least once")
	}
}

func TestConsumer_StopNil(t *testing.T) {
	var c *Consumer
	if err := c.Stop(); err != nil {
		t.Fatalf("expected nil for disabled consumer, got %v", err)
	}
}

func TestConsumer_HandlerRegistry(t *testing.T) {
	c := newConsumer(nil, testLogger())
	c.RegisterHandler(models.EventTypeQuoteCreated, func(ctx context.Context, event *models.Event) error { return nil })
	c.RegisterHandler(models.EventTypeQuoteStatusChanged, func(ctx context.Context, event *models.Event) error { return nil })

	if c.HandlerCount() != 2 {
		t.Fatalf("expected 2 handlers, got %d", c.HandlerCount())
	}
	if c.Handler(models.EventTypeServiceCreated) != nil {
		t.Fatalf("unexpected handler for unregistered type")
	}
}

func TestNewConsumer_Error(t *testing.T) {
	cfg := &config.KafkaConfig{Brokers: []string{"localhost:0"}, GroupID: "towing", Topics: config.Topics{Quotes: "quotes"}}
	if _, err := NewConsumer(cfg, testLogger()); err == nil {
		t.Fatalf("expected error creating consumer")
	}
}

func TestConsumer_SetupCleanup(t *testing.T) {
	c := &Consumer{}
	if err := c.Setup(nil); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := c.Cleanup(nil); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
