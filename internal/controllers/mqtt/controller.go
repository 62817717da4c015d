package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/acmock/internal/conditioner"
	"github.com/Agrid-Dev/acmock/internal/ports"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainSnapshot  bool
	PublishInterval time.Duration

	Username string
	Password string
}

type Controller struct {
	svc ports.ConditionerService
	cfg Config
	log *zap.Logger

	client mqtt.Client
}

func New(svc ports.ConditionerService, cfg Config, log *zap.Logger) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "acmock/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "acmock-" + cfg.DeviceID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
		log: log.With(zap.String("controller", "mqtt")),
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		topic := c.topic("set/+")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("subscribe failed", zap.String("topic", topic), zap.Error(err))
			return
		}
		c.log.Info("subscribed", zap.String("topic", topic))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.log.Warn("connection lost", zap.Error(err))
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.log.Info("connected", zap.String("broker", c.cfg.BrokerURL))

	// Publish loop: publish snapshot on interval, and only when changed.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	last := c.svc.Get()
	c.publishSnapshot(last)

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			cur := c.svc.Get()
			if snapshotChanged(cur, last) {
				c.publishSnapshot(cur)
				last = cur
			}
		}
	}
}

// snapshotChanged ignores Elapsed, which advances on every step.
func snapshotChanged(a, b conditioner.Snapshot) bool {
	a.Elapsed, b.Elapsed = 0, 0
	return !reflect.DeepEqual(a, b)
}

func (c *Controller) publishSnapshot(s conditioner.Snapshot) {
	dto := snapshotDTO{
		Enabled:                s.Enabled,
		TemperatureSetpoint:    s.TemperatureSetpoint,
		TemperatureSetpointMin: s.TemperatureSetpointMin,
		TemperatureSetpointMax: s.TemperatureSetpointMax,
		Mode:                   s.Mode.String(),
		FanSpeed:               s.FanSpeed.String(),
		IndoorTemperature:      s.IndoorTemperature,
		IndoorHumidity:         s.IndoorHumidity,
		OutdoorTemperature:     s.OutdoorTemperature,
		OutdoorHumidity:        s.OutdoorHumidity,
		CompressorOn:           s.CompressorOn,
		TargetTemperature:      s.TargetTemperature,
		HeatGain:               s.HeatGain,
		Power:                  s.Power,
		Energy:                 s.Energy,
	}
	b, _ := json.Marshal(dto)
	c.client.Publish(c.topic("snapshot"), c.cfg.QoS, c.cfg.RetainSnapshot, b)
}

type snapshotDTO struct {
	Enabled                bool    `json:"enabled"`
	TemperatureSetpoint    float64 `json:"temperature_setpoint"`
	TemperatureSetpointMin float64 `json:"temperature_setpoint_min"`
	TemperatureSetpointMax float64 `json:"temperature_setpoint_max"`
	Mode                   string  `json:"mode"`
	FanSpeed               string  `json:"fan_speed"`
	IndoorTemperature      float64 `json:"indoor_temperature"`
	IndoorHumidity         float64 `json:"indoor_humidity"`
	OutdoorTemperature     float64 `json:"outdoor_temperature"`
	OutdoorHumidity        float64 `json:"outdoor_humidity"`
	CompressorOn           bool    `json:"compressor_on"`
	TargetTemperature      float64 `json:"target_temperature"`
	HeatGain               float64 `json:"heat_gain_kw"`
	Power                  float64 `json:"power_kw"`
	Energy                 float64 `json:"energy_kwh"`
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/set/<field>
	t := msg.Topic()
	prefix := strings.TrimRight(c.cfg.BaseTopic, "/") + "/set/"
	if !strings.HasPrefix(t, prefix) {
		return
	}
	field := strings.TrimPrefix(t, prefix)

	if err := c.apply(field, msg.Payload()); err != nil {
		c.log.Debug("command rejected", zap.String("field", field), zap.Error(err))
	}
}

func (c *Controller) apply(field string, payload []byte) error {
	switch field {
	case "enabled":
		v, err := decodeValueStrict[bool](payload)
		if err != nil {
			return err
		}
		c.svc.SetEnabled(v)
		return nil

	case "temperature_setpoint":
		v, err := decodeValueStrict[float64](payload)
		if err != nil {
			return err
		}
		return c.svc.SetSetpoint(v)

	case "temperature_setpoint_min":
		v, err := decodeValueStrict[float64](payload)
		if err != nil {
			return err
		}
		cur := c.svc.Get()
		return c.svc.SetMinMax(v, cur.TemperatureSetpointMax)

	case "temperature_setpoint_max":
		v, err := decodeValueStrict[float64](payload)
		if err != nil {
			return err
		}
		cur := c.svc.Get()
		return c.svc.SetMinMax(cur.TemperatureSetpointMin, v)

	case "mode":
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			return err
		}
		m, err := conditioner.ParseMode(s)
		if err != nil {
			return err
		}
		return c.svc.SetMode(m)

	case "fan_speed":
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			return err
		}
		f, err := conditioner.ParseFanSpeed(s)
		if err != nil {
			return err
		}
		return c.svc.SetFanSpeed(f)

	case "indoor_humidity":
		v, err := decodeValueStrict[float64](payload)
		if err != nil {
			return err
		}
		return c.svc.SetIndoorHumidity(v)

	case "outdoor_temperature":
		v, err := decodeValueStrict[float64](payload)
		if err != nil {
			return err
		}
		cur := c.svc.Get()
		return c.svc.SetOutdoor(v, cur.OutdoorHumidity)

	case "outdoor_humidity":
		v, err := decodeValueStrict[float64](payload)
		if err != nil {
			return err
		}
		cur := c.svc.Get()
		return c.svc.SetOutdoor(cur.OutdoorTemperature, v)

	case "energy_reset":
		c.svc.ResetEnergy()
		return nil
	}
	return fmt.Errorf("unknown field %q", field)
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
