package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/railsched/core/events"
	coremetrics "github.com/kilianp07/railsched/core/metrics"
	"github.com/kilianp07/railsched/infra/logger"
)

// InfluxSink writes optimization events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one optimization_run point plus one fitness_trajectory
// point per generation, stamped one nanosecond apart so they stay distinct.
func (s *InfluxSink) RecordRun(ev events.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, 1+len(ev.FitnessHistory))
	p := write.NewPointWithMeasurement("optimization_run").
		AddTag("run_id", ev.RunID).
		AddTag("method", ev.Method).
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddField("total_delay", round3(ev.TotalDelay)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("trains", ev.Trains).
		AddField("conflicts_resolved", ev.ConflictsResolved).
		SetTime(ev.Time)
	if ev.Err != "" {
		p = p.AddField("error", ev.Err)
	}
	points = append(points, p)
	for gen, f := range ev.FitnessHistory {
		points = append(points, write.NewPointWithMeasurement("fitness_trajectory").
			AddTag("run_id", ev.RunID).
			AddTag("method", ev.Method).
			AddField("generation", gen).
			AddField("best", round3(f)).
			SetTime(ev.Time.Add(time.Duration(gen))))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordStage writes a hybrid stage event.
func (s *InfluxSink) RecordStage(ev events.StageEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("hybrid_stage").
		AddTag("run_id", ev.RunID).
		AddTag("stage", ev.Stage).
		AddTag("action", ev.Action).
		AddField("score", round3(ev.Score)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("fitness_mean", round3(ev.FitnessMean)).
		AddField("fitness_stddev", round3(ev.FitnessStdDev)).
		SetTime(ev.Time)
	if ev.Err != nil {
		p = p.AddField("error", ev.Err.Error())
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client resources.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
