package publisher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/jgoulah/bidgely/internal/config"
	"github.com/jgoulah/bidgely/pkg/models"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeBroker struct {
	messages []message
	err      error
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.messages = append(b.messages, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: b.err}
}

func newTestPublisher(b *fakeBroker) *Publisher {
	return newWithClient(nil, b, "bidgely/", zerolog.Nop())
}

func TestTopics(t *testing.T) {
	p := newTestPublisher(&fakeBroker{})

	if got := p.ReadTopic("HydroOttawa", models.Electric, models.Hour); got != "bidgely/hydroottawa/electric/hour" {
		t.Errorf("read topic = %q", got)
	}
	if got := p.ForecastTopic("Hydro Ottawa", models.Gas); got != "bidgely/hydro_ottawa/gas/forecast" {
		t.Errorf("forecast topic = %q", got)
	}
	if got := topicSegment("a/b+#"); got != "a_b__" {
		t.Errorf("topicSegment = %q", got)
	}
}

func TestPublishRead(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(b)
	start := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)

	err := p.PublishRead("HydroOttawa", models.Electric, models.Hour, models.CostRead{
		StartTime: start, EndTime: start.Add(time.Hour), Consumption: 1.25, Cost: 0.16,
	})
	if err != nil {
		t.Fatalf("PublishRead failed: %v", err)
	}
	if len(b.messages) != 1 || b.messages[0].retained {
		t.Fatalf("messages = %+v", b.messages)
	}

	var got map[string]any
	if err := json.Unmarshal(b.messages[0].payload, &got); err != nil {
		t.Fatal(err)
	}
	if got["consumption"] != 1.25 || got["start_time"] != "2024-06-01T13:00:00Z" {
		t.Errorf("payload = %v", got)
	}
	if _, ok := got["temperature"]; ok {
		t.Error("absent temperature should be omitted")
	}
}

func TestPublishForecastIsRetained(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(b)

	err := p.PublishForecast("HydroOttawa", models.Electric, &models.Forecast{
		StartDate:       time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		UnitOfMeasure:   models.KWh,
		UsageToDate:     120.5,
		ForecastedUsage: 400,
	})
	if err != nil {
		t.Fatalf("PublishForecast failed: %v", err)
	}
	m := b.messages[0]
	if !m.retained || m.topic != "bidgely/hydroottawa/electric/forecast" {
		t.Errorf("message = %s retained=%v", m.topic, m.retained)
	}

	var got forecastMessage
	json.Unmarshal(m.payload, &got)
	if got.StartDate != "2024-05-14" || got.UnitOfMeasure != "kWh" || got.ForecastedUsage != 400 {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublishError(t *testing.T) {
	p := newTestPublisher(&fakeBroker{err: errors.New("not connected")})

	if err := p.PublishRead("u", models.Gas, models.Day, models.CostRead{}); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestNewRequiresEnabledBroker(t *testing.T) {
	if _, err := New(config.MQTTConfig{}, zerolog.Nop()); err == nil {
		t.Error("expected error when disabled")
	}
	if _, err := New(config.MQTTConfig{Enabled: true}, zerolog.Nop()); err == nil {
		t.Error("expected error without broker")
	}
}
