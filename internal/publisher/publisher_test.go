package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

// --- mock types ---

// mockJetStream implements a minimal JetStreamContext for testing
type mockJetStream struct {
	published []*nats.Msg
	fail      bool
}

func (m *mockJetStream) PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if m.fail {
		return nil, errors.New("mock publish error")
	}
	m.published = append(m.published, msg)
	return &nats.PubAck{Stream: "mock-stream"}, nil
}

// Implement remaining JetStreamContext interface methods as no-ops for testing
func (m *mockJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	return nil, nil
}
func (m *mockJetStream) PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error) {
	return nil, nil
}
func (m *mockJetStream) PublishMsgAsync(msg *nats.Msg, opts ...nats.PubOpt) (nats.PubAckFuture, error) {
	return nil, nil
}
func (m *mockJetStream) PublishAsyncPending() int { return 0 }
func (m *mockJetStream) PublishAsyncComplete() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *mockJetStream) CleanupPublisher() {}
func (m *mockJetStream) Subscribe(subj string, cb nats.MsgHandler, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) SubscribeSync(subj string, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) ChanSubscribe(subj string, ch chan *nats.Msg, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) ChanQueueSubscribe(subj, queue string, ch chan *nats.Msg, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) QueueSubscribe(subj, queue string, cb nats.MsgHandler, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) QueueSubscribeSync(subj, queue string, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) PullSubscribe(subj, durable string, opts ...nats.SubOpt) (*nats.Subscription, error) {
	return nil, nil
}
func (m *mockJetStream) AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	return nil, nil
}
func (m *mockJetStream) UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteStream(name string, opts ...nats.JSOpt) error { return nil }
func (m *mockJetStream) StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	return nil, nil
}
func (m *mockJetStream) Streams(opts ...nats.JSOpt) <-chan *nats.StreamInfo {
	ch := make(chan *nats.StreamInfo)
	close(ch)
	return ch
}
func (m *mockJetStream) PurgeStream(name string, opts ...nats.JSOpt) error { return nil }
func (m *mockJetStream) StreamsInfo(opts ...nats.JSOpt) <-chan *nats.StreamInfo {
	ch := make(chan *nats.StreamInfo)
	close(ch)
	return ch
}
func (m *mockJetStream) StreamNames(opts ...nats.JSOpt) <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}
func (m *mockJetStream) GetMsg(name string, seq uint64, opts ...nats.JSOpt) (*nats.RawStreamMsg, error) {
	return nil, nil
}
func (m *mockJetStream) GetLastMsg(name, subj string, opts ...nats.JSOpt) (*nats.RawStreamMsg, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteMsg(name string, seq uint64, opts ...nats.JSOpt) error { return nil }
func (m *mockJetStream) SecureDeleteMsg(name string, seq uint64, opts ...nats.JSOpt) error {
	return nil
}
func (m *mockJetStream) AddConsumer(stream string, cfg *nats.ConsumerConfig, opts ...nats.JSOpt) (*nats.ConsumerInfo, error) {
	return nil, nil
}
func (m *mockJetStream) UpdateConsumer(stream string, cfg *nats.ConsumerConfig, opts ...nats.JSOpt) (*nats.ConsumerInfo, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteConsumer(stream, consumer string, opts ...nats.JSOpt) error { return nil }
func (m *mockJetStream) ConsumerInfo(stream, name string, opts ...nats.JSOpt) (*nats.ConsumerInfo, error) {
	return nil, nil
}
func (m *mockJetStream) Consumers(stream string, opts ...nats.JSOpt) <-chan *nats.ConsumerInfo {
	ch := make(chan *nats.ConsumerInfo)
	close(ch)
	return ch
}
func (m *mockJetStream) ConsumersInfo(stream string, opts ...nats.JSOpt) <-chan *nats.ConsumerInfo {
	ch := make(chan *nats.ConsumerInfo)
	close(ch)
	return ch
}
func (m *mockJetStream) ConsumerNames(stream string, opts ...nats.JSOpt) <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}
func (m *mockJetStream) AccountInfo(opts ...nats.JSOpt) (*nats.AccountInfo, error) { return nil, nil }
func (m *mockJetStream) StreamNameBySubject(string, ...nats.JSOpt) (string, error) { return "", nil }
func (m *mockJetStream) KeyValue(bucket string) (nats.KeyValue, error)             { return nil, nil }
func (m *mockJetStream) CreateKeyValue(cfg *nats.KeyValueConfig) (nats.KeyValue, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteKeyValue(bucket string) error { return nil }
func (m *mockJetStream) KeyValueStoreNames() <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}
func (m *mockJetStream) KeyValueStores() <-chan nats.KeyValueStatus {
	ch := make(chan nats.KeyValueStatus)
	close(ch)
	return ch
}
func (m *mockJetStream) ObjectStore(bucket string) (nats.ObjectStore, error) { return nil, nil }
func (m *mockJetStream) CreateObjectStore(cfg *nats.ObjectStoreConfig) (nats.ObjectStore, error) {
	return nil, nil
}
func (m *mockJetStream) DeleteObjectStore(bucket string) error { return nil }
func (m *mockJetStream) ObjectStoreNames(opts ...nats.ObjectOpt) <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}
func (m *mockJetStream) ObjectStores(opts ...nats.ObjectOpt) <-chan nats.ObjectStoreStatus {
	ch := make(chan nats.ObjectStoreStatus)
	close(ch)
	return ch
}

// --- helper ---

func newTestPublisher(fail bool) *Publisher {
	js := &mockJetStream{fail: fail}
	return &Publisher{
		nc:      nil,
		js:      js,
		subject: "evt.vault",
		service: "bondvault",
	}
}

// --- tests ---

func TestPublishEnvelope_Success(t *testing.T) {
	pub := newTestPublisher(false)
	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         "evt.vault.deposit",
		EventType:     "deposit",
		Version:       "1.0.0",
		Timestamp:     time.Now(),
		Payload:       json.RawMessage(`{"product_id":0,"amount":"1000000"}`),
	}

	err := pub.PublishEnvelope(context.Background(), "evt.vault.deposit", env)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	js := pub.js.(*mockJetStream)
	if len(js.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(js.published))
	}

	msg := js.published[0]
	if msg.Subject != "evt.vault.deposit" {
		t.Errorf("unexpected subject: %s", msg.Subject)
	}

	// verify headers
	if msg.Header.Get("event_type") != "deposit" {
		t.Errorf("expected header event_type=deposit, got %s", msg.Header.Get("event_type"))
	}
	if msg.Header.Get("service") != "bondvault" {
		t.Errorf("expected header service=bondvault, got %s", msg.Header.Get("service"))
	}

	// verify payload round-trip
	var parsed model.Envelope
	if err := json.Unmarshal(msg.Data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if parsed.EventType != "deposit" {
		t.Errorf("expected event_type=deposit, got %s", parsed.EventType)
	}
}

func TestPublishEnvelope_Failure(t *testing.T) {
	pub := newTestPublisher(true)
	env := &model.Envelope{
		ID:        uuid.New(),
		EventType: "deposit",
	}

	err := pub.PublishEnvelope(context.Background(), "evt.vault.deposit", env)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPublishLedgerEvent(t *testing.T) {
	pub := newTestPublisher(false)
	evt := model.LedgerEvent{
		Type:       model.EventSharesMinted,
		ProductID:  3,
		Actor:      model.Account("alice"),
		Timestamp:  time.Now().UTC(),
		LedgerTime: 1100,
		Shares:     decimal.New(2, 18),
	}

	err := pub.PublishLedgerEvent(context.Background(), evt)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	js := pub.js.(*mockJetStream)
	if len(js.published) != 1 {
		t.Fatal("expected one published message")
	}

	msg := js.published[0]
	if msg.Subject != "evt.vault.shares.minted" {
		t.Errorf("unexpected subject: %s", msg.Subject)
	}

	var env model.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatalf("failed to unmarshal envelope: %v", err)
	}
	if env.EventType != model.EventSharesMinted {
		t.Errorf("expected event_type=%s, got %s", model.EventSharesMinted, env.EventType)
	}

	var payload model.LedgerEvent
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("failed to unmarshal event payload: %v", err)
	}
	if payload.ProductID != 3 {
		t.Errorf("expected product_id=3, got %d", payload.ProductID)
	}
	if !payload.Shares.Equal(decimal.New(2, 18)) {
		t.Errorf("unexpected shares: %s", payload.Shares)
	}
}

func TestHandleEvent_SwallowsPublishErrors(t *testing.T) {
	pub := newTestPublisher(true)

	// Must not panic or block when the wire is unavailable.
	pub.HandleEvent(model.LedgerEvent{Type: model.EventDeposit, ProductID: 1})

	js := pub.js.(*mockJetStream)
	if len(js.published) != 0 {
		t.Fatalf("expected no published messages, got %d", len(js.published))
	}
}
