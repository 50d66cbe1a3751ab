package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jgoulah/bidgely/internal/config"
	"github.com/jgoulah/bidgely/pkg/models"
)

const publishTimeout = 10 * time.Second

// tokenPublisher is the part of mqtt.Client the publisher uses
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends reads and forecasts to an MQTT broker
type Publisher struct {
	client      mqtt.Client
	pub         tokenPublisher
	topicPrefix string
	logger      zerolog.Logger
}

// New connects to the configured broker
func New(cfg config.MQTTConfig, logger zerolog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT publishing is not enabled in config")
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "bidgely-" + uuid.NewString()[:8]
	}

	// Configure MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if pw := cfg.GetMQTTPassword(); pw != "" {
		opts.SetPassword(pw)
	}

	// Create and connect client
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", broker)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	logger.Debug().Str("broker", broker).Str("client_id", clientID).Msg("connected to MQTT broker")
	return newWithClient(client, client, cfg.GetTopicPrefix(), logger), nil
}

func newWithClient(client mqtt.Client, pub tokenPublisher, topicPrefix string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		client:      client,
		pub:         pub,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		logger:      logger,
	}
}

// ReadTopic is where reads for a series are published
func (p *Publisher) ReadTopic(utility string, measurement models.MeasurementType, agg models.AggregateType) string {
	return fmt.Sprintf("%s/%s/%s/%s", p.topicPrefix, topicSegment(utility), topicSegment(string(measurement)), agg)
}

// ForecastTopic is where the retained forecast snapshot lives
func (p *Publisher) ForecastTopic(utility string, measurement models.MeasurementType) string {
	return fmt.Sprintf("%s/%s/%s/forecast", p.topicPrefix, topicSegment(utility), topicSegment(string(measurement)))
}

// PublishRead sends one read
func (p *Publisher) PublishRead(utility string, measurement models.MeasurementType, agg models.AggregateType, read models.CostRead) error {
	body, err := json.Marshal(read)
	if err != nil {
		return fmt.Errorf("encoding read: %w", err)
	}
	return p.publish(p.ReadTopic(utility, measurement, agg), false, body)
}

// PublishForecast replaces the retained forecast for a measurement
func (p *Publisher) PublishForecast(utility string, measurement models.MeasurementType, f *models.Forecast) error {
	body, err := json.Marshal(forecastMessage{
		StartDate:       f.StartDate.Format(time.DateOnly),
		EndDate:         f.EndDate.Format(time.DateOnly),
		UnitOfMeasure:   string(f.UnitOfMeasure),
		UsageToDate:     f.UsageToDate,
		CostToDate:      f.CostToDate,
		ForecastedUsage: f.ForecastedUsage,
		ForecastedCost:  f.ForecastedCost,
		TypicalUsage:    f.TypicalUsage,
		TypicalCost:     f.TypicalCost,
	})
	if err != nil {
		return fmt.Errorf("encoding forecast: %w", err)
	}
	return p.publish(p.ForecastTopic(utility, measurement), true, body)
}

// forecastMessage carries billing-cycle bounds as plain dates
type forecastMessage struct {
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	UnitOfMeasure   string  `json:"unit_of_measure"`
	UsageToDate     float64 `json:"usage_to_date"`
	CostToDate      float64 `json:"cost_to_date"`
	ForecastedUsage float64 `json:"forecasted_usage"`
	ForecastedCost  float64 `json:"forecasted_cost"`
	TypicalUsage    float64 `json:"typical_usage"`
	TypicalCost     float64 `json:"typical_cost"`
}

func (p *Publisher) publish(topic string, retained bool, body []byte) error {
	token := p.pub.Publish(topic, 1, retained, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	p.logger.Debug().Str("topic", topic).Int("bytes", len(body)).Msg("published")
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// topicSegment lowercases and strips MQTT wildcards and separators
func topicSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_").Replace(s)
}
