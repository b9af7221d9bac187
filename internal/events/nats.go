package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// HeaderEventID carries the envelope id so consumers can drop redeliveries
// without decoding the body.
const HeaderEventID = "Hazel-Event-Id"

// relayBuffer bounds how far a slow watcher may fall behind before payloads
// are dropped.
const relayBuffer = 64

func connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name(name)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher sends envelopes on the subject equal to their topic.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := connect(url, "hazel-publisher")
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, event any) error {
	env, err := NewEnvelope(topic, event)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	msg := nats.NewMsg(topic)
	msg.Header.Set(HeaderEventID, env.ID)
	msg.Data = body
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Flush blocks until the server has acknowledged everything published so far.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber is the watch side of the bus. It reconnects forever, so a
// restarted server does not end a long-running watch.
type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	base := []nats.Option{nats.MaxReconnects(-1), nats.ReconnectWait(time.Second)}
	nc, err := connect(url, "hazel-watch", append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// relay hands NATS payloads to a channel without ever blocking the NATS
// dispatch goroutine. Closing discards anything still buffered, so a
// cancelled watcher sees the channel close immediately.
type relay struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func (r *relay) deliver(msg *nats.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- msg.Data:
	default:
	}
}

func (r *relay) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for {
		select {
		case <-r.ch:
		default:
			close(r.ch)
			return
		}
	}
}

// Subscribe accepts NATS wildcards, e.g. AllTopics. The subscription is
// registered on the server before Subscribe returns.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	r := &relay{ch: make(chan []byte, relayBuffer)}
	sub, err := s.conn.Subscribe(topic, r.deliver)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("subscribe %s: flush: %w", topic, err)
	}
	cancel := func() {
		_ = sub.Unsubscribe()
		r.close()
	}
	return r.ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
