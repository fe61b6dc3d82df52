package mqtt

import "sync"

// PublishedMessage records one publish for test assertions.
type PublishedMessage struct {
	Topic    string
	Payload  string
	Retained bool
}

// FakeClient records published messages and lets tests inject inbound
// commands.
type FakeClient struct {
	mu sync.Mutex

	// Messages contains all published messages in order.
	Messages []PublishedMessage

	// PublishError, if set, will be returned by every publish method.
	PublishError error

	// Connected controls the return value of IsConnected.
	Connected bool

	// Closed tracks if Close was called.
	Closed bool

	handler   CommandHandler
	namespace string
}

// NewFakeClient creates a FakeClient publishing under the given namespace.
func NewFakeClient(namespace string) *FakeClient {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &FakeClient{namespace: namespace}
}

// SetCommandHandler registers the handler InjectCommand delivers to.
func (f *FakeClient) SetCommandHandler(h CommandHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

// InjectCommand simulates an inbound command message.
func (f *FakeClient) InjectCommand(payload string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(payload)
	}
}

func (f *FakeClient) record(topic, payload string, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, PublishedMessage{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

// PublishCounter records a counter publish.
func (f *FakeClient) PublishCounter(name string, value uint32) error {
	return f.record(CounterTopic(f.namespace, name), FormatCounterPayload(value), false)
}

// PublishReply records a reply publish.
func (f *FakeClient) PublishReply(channel int, value uint32) error {
	return f.record(ReplyTopic(f.namespace), FormatReplyPayload(channel, value), false)
}

// PublishStatus records a status publish.
func (f *FakeClient) PublishStatus(msg string) error {
	return f.record(StatusTopic(f.namespace), msg, false)
}

// IsConnected reports the scripted connection state.
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// MessagesOn returns the payloads published on one topic, in order.
func (f *FakeClient) MessagesOn(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.Messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Reset clears recorded messages.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	f.Messages = nil
	f.PublishError = nil
	f.Closed = false
	f.mu.Unlock()
}
