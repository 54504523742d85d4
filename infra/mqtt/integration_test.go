//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/railsched/infra/logger"
)

func startMosquitto(t *testing.T) string {
	t.Helper()
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "1883")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func TestListenerAgainstBroker(t *testing.T) {
	broker := startMosquitto(t)
	cfg := Config{Broker: broker, ClientID: "railsched-it", QoS: map[string]byte{"disruption": 1, "result": 1}}
	cfg.SetDefaults()

	var cli *PahoClient
	var err error
	for i := 0; i < 5; i++ {
		if cli, err = NewPahoClient(cfg, logger.NopLogger{}); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err)

	l := NewListener(cfg, cli, reoptimizer(t), baseSnapshot(), WithListenerLogger(logger.NopLogger{}))
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	replies := make(chan Reply, 1)
	probe := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("probe"))
	require.NoError(t, waitToken(probe.Connect()))
	defer probe.Disconnect(250)
	require.NoError(t, waitToken(probe.Subscribe(cfg.ResultTopic, 1, func(_ paho.Client, m paho.Message) {
		var r Reply
		if json.Unmarshal(m.Payload(), &r) == nil {
			replies <- r
		}
	})))
	require.NoError(t, waitToken(probe.Publish(cfg.DisruptionTopic, 1, false, `{"train_id":"FRT003","delay_minutes":15}`)))

	select {
	case r := <-replies:
		assert.Empty(t, r.Error)
		require.NotNil(t, r.Result)
		assert.True(t, r.Result.Success)
	case <-time.After(10 * time.Second):
		t.Fatal("no reply received")
	}
}

func waitToken(tok paho.Token) error {
	if !tok.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt token timeout")
	}
	return tok.Error()
}
