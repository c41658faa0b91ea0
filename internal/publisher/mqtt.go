package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgoulah/contactenergy/internal/config"
	"github.com/jgoulah/contactenergy/pkg/models"
)

// Publisher handles publishing to Home Assistant
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
	logger      *zap.Logger
}

// New creates a new publisher (supports both MQTT and HA HTTP API)
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Validate HA config if enabled
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityID == "" {
			return nil, fmt.Errorf("Home Assistant entity_id is required when enabled")
		}
	}

	var client mqtt.Client
	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		// Configure MQTT client options
		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID("contactenergy-" + uuid.NewString())
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		// Create and connect client
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
		logger.Debug("connected to MQTT broker", zap.String("broker", mqttCfg.Broker))
	}

	return &Publisher{
		client:      client,
		topicPrefix: mqttCfg.GetTopicPrefix(),
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}, nil
}

// Enabled reports whether at least one destination is configured
func (p *Publisher) Enabled() bool {
	return p.haConfig.Enabled || p.client != nil
}

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string            `json:"entity_id"`
	State       string            `json:"state"`
	LastChanged string            `json:"last_changed"`
	LastUpdated string            `json:"last_updated"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// StateMessage is the JSON body published over MQTT for each record
type StateMessage struct {
	ContractID         string   `json:"contract_id"`
	Interval           string   `json:"interval"`
	Timestamp          string   `json:"timestamp"`
	Unit               string   `json:"unit"`
	Currency           string   `json:"currency"`
	Value              float64  `json:"value"`
	DollarValue        *float64 `json:"dollar_value,omitempty"`
	OffpeakValue       *float64 `json:"offpeak_value,omitempty"`
	UnchargedValue     *float64 `json:"uncharged_value,omitempty"`
	OffpeakDollarValue *float64 `json:"offpeak_dollar_value,omitempty"`
}

// Publish sends a usage record to every enabled destination
func (p *Publisher) Publish(ctx context.Context, reading models.StoredUsage) error {
	if !p.Enabled() {
		return fmt.Errorf("no publishing destination is enabled in config")
	}

	if p.haConfig.Enabled {
		if err := p.publishHA(ctx, reading); err != nil {
			return err
		}
	}
	if p.client != nil {
		if err := p.publishMQTT(reading); err != nil {
			return err
		}
	}
	return nil
}

// publishHA sends a usage reading to Home Assistant via the AppDaemon HTTP API
func (p *Publisher) publishHA(ctx context.Context, reading models.StoredUsage) error {
	apiURL := fmt.Sprintf("%s/api/appdaemon/backfill_state", strings.TrimRight(p.haConfig.URL, "/"))
	timestamp := reading.Timestamp.Format(time.RFC3339)

	payload := HAPayload{
		EntityID:    p.haConfig.EntityID,
		State:       fmt.Sprintf("%.3f", reading.Value),
		LastChanged: timestamp,
		LastUpdated: timestamp,
		Attributes: map[string]string{
			"unit_of_measurement": reading.Unit,
			"interval":            string(reading.Interval),
		},
	}
	if reading.DollarValue != nil {
		payload.Attributes["cost"] = fmt.Sprintf("%.2f", *reading.DollarValue)
		payload.Attributes["currency"] = reading.Currency
	}

	return p.postJSON(ctx, apiURL, payload, nil)
}

func (p *Publisher) publishMQTT(reading models.StoredUsage) error {
	msg := StateMessage{
		ContractID:         reading.ContractID,
		Interval:           string(reading.Interval),
		Timestamp:          reading.Timestamp.Format(time.RFC3339),
		Unit:               reading.Unit,
		Currency:           reading.Currency,
		Value:              reading.Value,
		DollarValue:        reading.DollarValue,
		OffpeakValue:       reading.OffpeakValue,
		UnchargedValue:     reading.UnchargedValue,
		OffpeakDollarValue: reading.OffpeakDollarValue,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding MQTT message: %w", err)
	}

	topic := p.Topic(reading.Interval)
	token := p.client.Publish(topic, 1, false, body)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Topic returns the MQTT topic records of an interval are published on
func (p *Publisher) Topic(interval models.Interval) string {
	return fmt.Sprintf("%s/%s/state", p.topicPrefix, interval)
}

// StatsResult is the AppDaemon statistics generation response
type StatsResult struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	TotalHours int `json:"total_hours"`
}

// GenerateStatistics asks AppDaemon to compile statistics from the backfilled states
func (p *Publisher) GenerateStatistics(ctx context.Context) (*StatsResult, error) {
	if !p.haConfig.Enabled {
		return nil, fmt.Errorf("Home Assistant is not enabled in config")
	}

	apiURL := fmt.Sprintf("%s/api/appdaemon/generate_statistics", strings.TrimRight(p.haConfig.URL, "/"))
	payload := map[string]string{"entity_id": p.haConfig.EntityID}

	var result StatsResult
	if err := p.postJSON(ctx, apiURL, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Publisher) postJSON(ctx context.Context, apiURL string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
