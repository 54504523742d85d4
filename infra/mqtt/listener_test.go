package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
	"github.com/kilianp07/railsched/core/realtime"
	"github.com/kilianp07/railsched/infra/logger"
)

type fakeTransport struct {
	mu        sync.Mutex
	handlers  map[string]paho.MessageHandler
	published map[string][][]byte
	failPub   error
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: map[string]paho.MessageHandler{}, published: map[string][][]byte{}}
}

func (f *fakeTransport) Subscribe(topic, _ string, h paho.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = h
	return nil
}

func (f *fakeTransport) Publish(topic, _ string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPub != nil {
		return f.failPub
	}
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeTransport) Disconnect() { f.closed = true }

func (f *fakeTransport) deliver(topic string, payload string) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(nil, mockMessage{[]byte(payload)})
}

func (f *fakeTransport) replies(t *testing.T, topic string) []Reply {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Reply, 0, len(f.published[topic]))
	for _, p := range f.published[topic] {
		var r Reply
		require.NoError(t, json.Unmarshal(p, &r))
		out = append(out, r)
	}
	return out
}

func baseSnapshot() model.Snapshot {
	return model.Snapshot{
		Trains: []model.Train{
			{ID: "RAJ001", Type: "Rajdhani", Priority: 1},
			{ID: "FRT003", Type: "Freight", Priority: 5},
		},
		Sections: []model.Section{{ID: "SEC001", MaxTrains: 1}},
		Usages: []model.TrainSectionUsage{
			{TrainID: "RAJ001", SectionID: "SEC001", Entry: model.At(8, 0), Exit: model.At(8, 30)},
			{TrainID: "FRT003", SectionID: "SEC001", Entry: model.At(8, 15), Exit: model.At(9, 0)},
		},
	}
}

func reoptimizer(t *testing.T) *realtime.Reoptimizer {
	t.Helper()
	r, err := optimizer.NewRunner(optimizer.Config{
		Seed: 3,
		ACO:  optimizer.ACOConfig{PopulationSize: 3, Iterations: 3},
		GA:   optimizer.GAConfig{PopulationSize: 4, Generations: 3},
	}, nil, optimizer.Deps{})
	require.NoError(t, err)
	return realtime.NewReoptimizer(r, nil)
}

func startListener(t *testing.T, h Handler, opts ...ListenerOption) (*Listener, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	opts = append(opts, WithListenerLogger(logger.NopLogger{}))
	l := NewListener(Config{}, tr, h, baseSnapshot(), opts...)
	require.NoError(t, l.Start(context.Background()))
	return l, tr
}

func TestListenerPublishesRecomputedSchedule(t *testing.T) {
	var hooked []realtime.Outcome
	_, tr := startListener(t, reoptimizer(t), WithOutcomeHook(func(_ context.Context, o realtime.Outcome) {
		hooked = append(hooked, o)
	}))

	tr.deliver("railsched/disruptions", `{"train_id":"FRT003","delay_minutes":20}`)

	replies := tr.replies(t, "railsched/results")
	require.Len(t, replies, 1)
	r := replies[0]
	assert.Empty(t, r.Error)
	require.NotNil(t, r.Result)
	assert.True(t, r.Result.Success)
	assert.NotEmpty(t, r.Result.RunID)
	assert.ElementsMatch(t, []string{"RAJ001", "FRT003"}, r.Result.Order)
	require.Len(t, hooked, 1)
	assert.Equal(t, 20.0, hooked[0].Snapshot.Trains[1].DelayMinutes)
}

func TestListenerDoesNotAccumulateDelays(t *testing.T) {
	var delays []float64
	_, tr := startListener(t, reoptimizer(t), WithOutcomeHook(func(_ context.Context, o realtime.Outcome) {
		delays = append(delays, o.Snapshot.Trains[0].DelayMinutes)
	}))

	tr.deliver("railsched/disruptions", `{"train_id":"RAJ001","delay_minutes":10}`)
	tr.deliver("railsched/disruptions", `{"train_id":"RAJ001","delay_minutes":10}`)

	assert.Equal(t, []float64{10, 10}, delays)
}

func TestListenerRejectsBadPayloads(t *testing.T) {
	_, tr := startListener(t, reoptimizer(t))

	tr.deliver("railsched/disruptions", `not json`)
	tr.deliver("railsched/disruptions", `{"delay_minutes":5}`)
	tr.deliver("railsched/disruptions", `{"train_id":"RAJ001","delay_minutes":-1}`)
	tr.deliver("railsched/disruptions", `{"train_id":"GHOST","delay_minutes":5}`)

	replies := tr.replies(t, "railsched/results")
	require.Len(t, replies, 4)
	for _, r := range replies {
		assert.NotEmpty(t, r.Error)
		assert.NotEmpty(t, r.MessageID)
	}
	assert.Nil(t, replies[0].Disruption)
	assert.Contains(t, replies[3].Error, "unknown train")
}

type erroringHandler struct{}

func (erroringHandler) Handle(_ context.Context, _ model.Snapshot, d realtime.Disruption) (realtime.Outcome, error) {
	res := model.Failed(optimizer.StrategyHybrid, errors.New("boom"))
	res.RunID = "run-1"
	return realtime.Outcome{Disruption: d, Result: res}, errors.New("boom")
}

func TestListenerForwardsHandlerErrors(t *testing.T) {
	_, tr := startListener(t, erroringHandler{})
	tr.deliver("railsched/disruptions", `{"train_id":"RAJ001","delay_minutes":1}`)

	replies := tr.replies(t, "railsched/results")
	require.Len(t, replies, 1)
	assert.Equal(t, "boom", replies[0].Error)
	require.NotNil(t, replies[0].Result)
	assert.Equal(t, "run-1", replies[0].Result.RunID)
}

func TestListenerSetBaseAndStop(t *testing.T) {
	var seen []int
	l, tr := startListener(t, reoptimizer(t), WithOutcomeHook(func(_ context.Context, o realtime.Outcome) {
		seen = append(seen, len(o.Snapshot.Trains))
	}))
	snap := baseSnapshot()
	snap.Trains = snap.Trains[:1]
	snap.Usages = snap.Usages[:1]
	l.SetBase(snap)

	tr.deliver("railsched/disruptions", `{"train_id":"RAJ001","delay_minutes":1}`)
	assert.Equal(t, []int{1}, seen)

	l.Stop()
	assert.True(t, tr.closed)
}

func TestListenerPublishFailureIsLogged(t *testing.T) {
	_, tr := startListener(t, reoptimizer(t))
	tr.failPub = errors.New("offline")
	assert.NotPanics(t, func() {
		tr.deliver("railsched/disruptions", `{"train_id":"RAJ001","delay_minutes":1}`)
	})
	assert.Empty(t, tr.replies(t, "railsched/results"))
}
