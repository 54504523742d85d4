package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/realtime"
	"github.com/kilianp07/railsched/infra/logger"
)

// Handler recomputes a schedule for one disruption.
type Handler interface {
	Handle(ctx context.Context, base model.Snapshot, d realtime.Disruption) (realtime.Outcome, error)
}

// Transport is the subset of PahoClient used by the Listener.
type Transport interface {
	Subscribe(topic, qosKey string, h paho.MessageHandler) error
	Publish(topic, qosKey string, payload []byte) error
	Disconnect()
}

// Reply is published on the result topic for every disruption message.
type Reply struct {
	MessageID  string                    `json:"message_id"`
	Disruption *realtime.Disruption      `json:"disruption,omitempty"`
	Result     *model.OptimizationResult `json:"result,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Timestamp  int64                     `json:"timestamp"`
}

// Listener turns disruption messages into recomputed schedules. Every
// message is applied to the same base snapshot.
type Listener struct {
	tr      Transport
	handler Handler
	cfg     Config
	log     logger.Logger
	hook    func(context.Context, realtime.Outcome)

	mu   sync.RWMutex
	base model.Snapshot
	ctx  context.Context
}

// ListenerOption customizes a Listener.
type ListenerOption func(*Listener)

// WithOutcomeHook calls fn after every successful recomputation.
func WithOutcomeHook(fn func(context.Context, realtime.Outcome)) ListenerOption {
	return func(l *Listener) { l.hook = fn }
}

// WithListenerLogger sets the logger.
func WithListenerLogger(log logger.Logger) ListenerOption {
	return func(l *Listener) { l.log = log }
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewListener builds a Listener publishing through tr.
func NewListener(cfg Config, tr Transport, h Handler, base model.Snapshot, opts ...ListenerOption) *Listener {
	cfg.SetDefaults()
	l := &Listener{tr: tr, handler: h, cfg: cfg, base: base.Clone(), ctx: context.Background()}
	for _, o := range opts {
		o(l)
	}
	if l.log == nil {
		l.log = logger.New("mqtt_listener")
	}
	return l
}

// SetBase replaces the snapshot disruptions are applied to.
func (l *Listener) SetBase(s model.Snapshot) {
	l.mu.Lock()
	l.base = s.Clone()
	l.mu.Unlock()
}

// Start subscribes to the disruption topic. Recomputations run under ctx.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	l.ctx = ctx
	l.mu.Unlock()
	return l.tr.Subscribe(l.cfg.DisruptionTopic, "disruption", l.onMessage)
}

// Stop closes the transport.
func (l *Listener) Stop() { l.tr.Disconnect() }

func (l *Listener) onMessage(_ paho.Client, msg paho.Message) {
	l.mu.RLock()
	ctx, base := l.ctx, l.base
	l.mu.RUnlock()
	reply := l.process(ctx, base, msg.Payload())
	payload, err := json.Marshal(reply)
	if err != nil {
		l.log.Errorf("encode reply %s: %v", reply.MessageID, err)
		return
	}
	if err := l.tr.Publish(l.cfg.ResultTopic, "result", payload); err != nil {
		l.log.Errorf("reply %s not delivered: %v", reply.MessageID, err)
	}
}

func (l *Listener) process(ctx context.Context, base model.Snapshot, payload []byte) Reply {
	reply := Reply{MessageID: uuid.NewString(), Timestamp: time.Now().UnixMilli()}
	var d realtime.Disruption
	if err := json.Unmarshal(payload, &d); err != nil {
		l.log.Warnf("discarding malformed disruption: %v", err)
		reply.Error = fmt.Sprintf("decode disruption: %v", err)
		return reply
	}
	reply.Disruption = &d
	if err := validate.Struct(d); err != nil {
		reply.Error = fmt.Sprintf("invalid disruption: %v", err)
		return reply
	}
	out, err := l.handler.Handle(ctx, base, d)
	if err != nil {
		l.log.Warnf("disruption for %s failed: %v", d.TrainID, err)
		reply.Error = err.Error()
		if out.Result.RunID != "" {
			reply.Result = &out.Result
		}
		return reply
	}
	reply.Result = &out.Result
	if l.hook != nil {
		l.hook(ctx, out)
	}
	return reply
}
