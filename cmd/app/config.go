package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Agrid-Dev/acmock/internal/conditioner"
	modbusctrl "github.com/Agrid-Dev/acmock/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/acmock/internal/controllers/mqtt"
	"github.com/Agrid-Dev/acmock/internal/sim"
	"github.com/Agrid-Dev/acmock/internal/thermal"
)

// EnvPrefix marks environment variables that override the config file.
const EnvPrefix = "ACMOCK_"

type Config struct {
	DeviceID    string            `koanf:"device_id" yaml:"device_id"`
	Controllers ControllersConfig `koanf:"controllers" yaml:"controllers"`

	Conditioner   ConditionerConfig `koanf:"conditioner" yaml:"conditioner"`
	Regulator     RegulatorConfig   `koanf:"regulator" yaml:"regulator"`
	Room          RoomConfig        `koanf:"room" yaml:"room"`
	Air           AirConfig         `koanf:"air" yaml:"air"`
	Envelope      EnvelopeConfig    `koanf:"envelope" yaml:"envelope"`
	InternalGains GainsConfig       `koanf:"internal_gains" yaml:"internal_gains"`
	Unit          UnitConfig        `koanf:"unit" yaml:"unit"`
	Weather       WeatherConfig     `koanf:"weather" yaml:"weather"`
	Simulation    SimulationConfig  `koanf:"simulation" yaml:"simulation"`
}

type ControllersConfig struct {
	HTTP   HTTPConfig   `koanf:"http" yaml:"http"`
	MQTT   MQTTConfig   `koanf:"mqtt" yaml:"mqtt"`
	Modbus ModbusConfig `koanf:"modbus" yaml:"modbus"`
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled" yaml:"enabled"`
	BrokerURL       string        `koanf:"broker_url" yaml:"broker_url"`
	ClientID        string        `koanf:"client_id" yaml:"client_id"`
	BaseTopic       string        `koanf:"base_topic" yaml:"base_topic"`
	QoS             byte          `koanf:"qos" yaml:"qos"`
	RetainSnapshot  bool          `koanf:"retain_snapshot" yaml:"retain_snapshot"`
	PublishInterval time.Duration `koanf:"publish_interval" yaml:"publish_interval"`
	Username        string        `koanf:"username" yaml:"username"`
	Password        string        `koanf:"password" yaml:"-"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
	UnitID  byte   `koanf:"unit_id" yaml:"unit_id"`
}

// ConditionerConfig is the initial state of the unit and the room.
type ConditionerConfig struct {
	Enabled            bool    `koanf:"enabled" yaml:"enabled"`
	Setpoint           float64 `koanf:"temperature_setpoint" yaml:"temperature_setpoint"`
	SetpointMin        float64 `koanf:"temperature_setpoint_min" yaml:"temperature_setpoint_min"`
	SetpointMax        float64 `koanf:"temperature_setpoint_max" yaml:"temperature_setpoint_max"`
	Mode               string  `koanf:"mode" yaml:"mode"`           // "cool" | "fan"
	FanSpeed           string  `koanf:"fan_speed" yaml:"fan_speed"` // "auto" | "low" | "medium" | "high"
	IndoorTemperature  float64 `koanf:"indoor_temperature" yaml:"indoor_temperature"`
	IndoorHumidity     float64 `koanf:"indoor_humidity" yaml:"indoor_humidity"`
	OutdoorTemperature float64 `koanf:"outdoor_temperature" yaml:"outdoor_temperature"`
	OutdoorHumidity    float64 `koanf:"outdoor_humidity" yaml:"outdoor_humidity"`
}

type RegulatorConfig struct {
	Interval          time.Duration `koanf:"interval" yaml:"interval"`
	TimeScale         float64       `koanf:"time_scale" yaml:"time_scale"`
	TriggerHysteresis float64       `koanf:"trigger_hysteresis" yaml:"trigger_hysteresis"`
	TargetHysteresis  float64       `koanf:"target_hysteresis" yaml:"target_hysteresis"`
}

type RoomConfig struct {
	Length     float64 `koanf:"length" yaml:"length"`
	Width      float64 `koanf:"width" yaml:"width"`
	Height     float64 `koanf:"height" yaml:"height"`
	WindowArea float64 `koanf:"window_area" yaml:"window_area"`
	Occupants  int     `koanf:"occupants" yaml:"occupants"`
}

type AirConfig struct {
	SpecificHeat        float64 `koanf:"specific_heat" yaml:"specific_heat"`
	Density             float64 `koanf:"density" yaml:"density"`
	LatentHeat          float64 `koanf:"latent_heat" yaml:"latent_heat"`
	AtmosphericPressure float64 `koanf:"atmospheric_pressure" yaml:"atmospheric_pressure"`
}

type EnvelopeConfig struct {
	WallU             float64 `koanf:"wall_u" yaml:"wall_u"`
	WindowU           float64 `koanf:"window_u" yaml:"window_u"`
	SHGC              float64 `koanf:"shgc" yaml:"shgc"`
	SolarIrradiance   float64 `koanf:"solar_irradiance" yaml:"solar_irradiance"`
	Absorptivity      float64 `koanf:"absorptivity" yaml:"absorptivity"`
	OutsideConvection float64 `koanf:"outside_convection" yaml:"outside_convection"`
}

type GainsConfig struct {
	VentilationPerPerson float64 `koanf:"ventilation_per_person" yaml:"ventilation_per_person"`
	SensiblePerPerson    float64 `koanf:"sensible_per_person" yaml:"sensible_per_person"`
	LatentPerPerson      float64 `koanf:"latent_per_person" yaml:"latent_per_person"`
	ApplianceDensity     float64 `koanf:"appliance_density" yaml:"appliance_density"`
	Lighting             float64 `koanf:"lighting" yaml:"lighting"`
	Auxiliary            float64 `koanf:"auxiliary" yaml:"auxiliary"`
	IncludeWindow        bool    `koanf:"include_window" yaml:"include_window"`
}

type UnitConfig struct {
	RatedCOP        float64 `koanf:"rated_cop" yaml:"rated_cop"`
	CoolingCapacity float64 `koanf:"cooling_capacity" yaml:"cooling_capacity"`
	COPSlope        float64 `koanf:"cop_slope" yaml:"cop_slope"`
	PullDownBand    float64 `koanf:"pull_down_band" yaml:"pull_down_band"`
}

type WeatherConfig struct {
	File string `koanf:"file" yaml:"file"`
	Loop bool   `koanf:"loop" yaml:"loop"`
}

type SimulationConfig struct {
	Step      time.Duration     `koanf:"step" yaml:"step"`
	Duration  time.Duration     `koanf:"duration" yaml:"duration"`
	Output    string            `koanf:"output" yaml:"output"`
	Setpoints []SetpointCommand `koanf:"setpoints" yaml:"setpoints,omitempty"`
}

type SetpointCommand struct {
	At    time.Duration `koanf:"at" yaml:"at"`
	Value float64       `koanf:"value" yaml:"value"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	p := thermal.DefaultParams()
	return Config{
		DeviceID: "default",
		Controllers: ControllersConfig{
			HTTP: HTTPConfig{Enabled: true, Addr: ":8080"},
			MQTT: MQTTConfig{
				BrokerURL:       "tcp://localhost:1883",
				PublishInterval: time.Second,
			},
			Modbus: ModbusConfig{Addr: "127.0.0.1:1502", UnitID: 1},
		},
		Conditioner: ConditionerConfig{
			Enabled:            true,
			Setpoint:           22,
			SetpointMin:        16,
			SetpointMax:        30,
			Mode:               "cool",
			FanSpeed:           "auto",
			IndoorTemperature:  24,
			IndoorHumidity:     50,
			OutdoorTemperature: 34,
			OutdoorHumidity:    70,
		},
		Regulator: RegulatorConfig{
			Interval:          time.Second,
			TimeScale:         1,
			TriggerHysteresis: 1,
			TargetHysteresis:  0.5,
		},
		Room: RoomConfig{
			Length:     p.Room.Length,
			Width:      p.Room.Width,
			Height:     p.Room.Height,
			WindowArea: p.Room.WindowArea,
			Occupants:  p.Room.Occupants,
		},
		Air: AirConfig{
			SpecificHeat:        p.Air.SpecificHeat,
			Density:             p.Air.Density,
			LatentHeat:          p.Air.LatentHeat,
			AtmosphericPressure: p.Air.AtmosphericPressure,
		},
		Envelope: EnvelopeConfig{
			WallU:             p.Envelope.WallU,
			WindowU:           p.Envelope.WindowU,
			SHGC:              p.Envelope.SHGC,
			SolarIrradiance:   p.Envelope.SolarIrradiance,
			Absorptivity:      p.Envelope.Absorptivity,
			OutsideConvection: p.Envelope.OutsideConvection,
		},
		InternalGains: GainsConfig{
			VentilationPerPerson: p.Gains.VentilationPerPerson,
			SensiblePerPerson:    p.Gains.SensiblePerPerson,
			LatentPerPerson:      p.Gains.LatentPerPerson,
			ApplianceDensity:     p.Gains.ApplianceDensity,
			Lighting:             p.Gains.Lighting,
			Auxiliary:            p.Gains.Auxiliary,
			IncludeWindow:        p.Gains.IncludeWindow,
		},
		Unit: UnitConfig{
			RatedCOP:        p.Unit.RatedCOP,
			CoolingCapacity: p.Unit.CoolingCapacity,
			COPSlope:        p.Unit.COPSlope,
			PullDownBand:    p.Unit.PullDownBand,
		},
		Simulation: SimulationConfig{
			Step:     10 * time.Second,
			Duration: 24 * time.Hour,
			Output:   "acmock.csv",
		},
	}
}

// LoadConfig layers defaults, the config file at path (missing file is
// fine), ACMOCK_* environment variables and PORT.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	applyPort(&cfg)
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Config file missing → use defaults
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// applyPort supports PORT (common in containers) unless an explicit
// address was configured through the environment.
func applyPort(cfg *Config) {
	if os.Getenv(EnvPrefix+"CONTROLLERS_HTTP_ADDR") != "" {
		return
	}
	if v := os.Getenv("PORT"); v != "" {
		// listen on all interfaces on that port
		cfg.Controllers.HTTP.Addr = ":" + v
	}
}

var envSections = []string{
	"internal_gains",
	"conditioner",
	"regulator",
	"room",
	"air",
	"envelope",
	"unit",
	"weather",
	"simulation",
}

// envKeyTransform maps an environment key without prefix to a koanf
// path: CONTROLLERS_HTTP_ADDR -> controllers.http.addr,
// ROOM_WINDOW_AREA -> room.window_area. Unknown keys are lowercased.
func envKeyTransform(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(k, "controllers_"); ok {
		controller, field, ok := strings.Cut(rest, "_")
		if !ok {
			return k
		}
		return "controllers." + controller + "." + field
	}

	for _, section := range envSections {
		if field, ok := strings.CutPrefix(k, section+"_"); ok && field != "" {
			return section + "." + field
		}
	}
	return k
}

func (c Config) Snapshot() (conditioner.Snapshot, error) {
	mode, err := conditioner.ParseMode(c.Conditioner.Mode)
	if err != nil {
		return conditioner.Snapshot{}, err
	}
	fan, err := conditioner.ParseFanSpeed(c.Conditioner.FanSpeed)
	if err != nil {
		return conditioner.Snapshot{}, err
	}

	return conditioner.Snapshot{
		Enabled:                c.Conditioner.Enabled,
		TemperatureSetpoint:    c.Conditioner.Setpoint,
		TemperatureSetpointMin: c.Conditioner.SetpointMin,
		TemperatureSetpointMax: c.Conditioner.SetpointMax,
		Mode:                   mode,
		FanSpeed:               fan,
		IndoorTemperature:      c.Conditioner.IndoorTemperature,
		IndoorHumidity:         c.Conditioner.IndoorHumidity,
		OutdoorTemperature:     c.Conditioner.OutdoorTemperature,
		OutdoorHumidity:        c.Conditioner.OutdoorHumidity,
	}, nil
}

func (c Config) ThermalParams() thermal.Params {
	return thermal.Params{
		Room: thermal.RoomParams{
			Length:     c.Room.Length,
			Width:      c.Room.Width,
			Height:     c.Room.Height,
			WindowArea: c.Room.WindowArea,
			Occupants:  c.Room.Occupants,
		},
		Air: thermal.AirParams{
			SpecificHeat:        c.Air.SpecificHeat,
			Density:             c.Air.Density,
			LatentHeat:          c.Air.LatentHeat,
			AtmosphericPressure: c.Air.AtmosphericPressure,
		},
		Envelope: thermal.EnvelopeParams{
			WallU:             c.Envelope.WallU,
			WindowU:           c.Envelope.WindowU,
			SHGC:              c.Envelope.SHGC,
			SolarIrradiance:   c.Envelope.SolarIrradiance,
			Absorptivity:      c.Envelope.Absorptivity,
			OutsideConvection: c.Envelope.OutsideConvection,
		},
		Gains: thermal.GainParams{
			VentilationPerPerson: c.InternalGains.VentilationPerPerson,
			SensiblePerPerson:    c.InternalGains.SensiblePerPerson,
			LatentPerPerson:      c.InternalGains.LatentPerPerson,
			ApplianceDensity:     c.InternalGains.ApplianceDensity,
			Lighting:             c.InternalGains.Lighting,
			Auxiliary:            c.InternalGains.Auxiliary,
			IncludeWindow:        c.InternalGains.IncludeWindow,
		},
		Unit: thermal.UnitParams{
			RatedCOP:        c.Unit.RatedCOP,
			CoolingCapacity: c.Unit.CoolingCapacity,
			COPSlope:        c.Unit.COPSlope,
			PullDownBand:    c.Unit.PullDownBand,
		},
	}
}

func (c Config) RegulatorParams() conditioner.RegulatorParams {
	return conditioner.RegulatorParams{
		TriggerHysteresis: c.Regulator.TriggerHysteresis,
		TargetHysteresis:  c.Regulator.TargetHysteresis,
	}
}

func (c Config) MQTTConfig() mqttctrl.Config {
	m := c.Controllers.MQTT
	return mqttctrl.Config{
		DeviceID:        c.DeviceID,
		BrokerURL:       m.BrokerURL,
		ClientID:        m.ClientID,
		BaseTopic:       m.BaseTopic,
		QoS:             m.QoS,
		RetainSnapshot:  m.RetainSnapshot,
		PublishInterval: m.PublishInterval,
		Username:        m.Username,
		Password:        m.Password,
	}
}

func (c Config) ModbusConfig() modbusctrl.Config {
	return modbusctrl.Config{
		DeviceID: c.DeviceID,
		Addr:     c.Controllers.Modbus.Addr,
		UnitID:   c.Controllers.Modbus.UnitID,
	}
}

func (c Config) SetpointCommands() []sim.SetpointCommand {
	cmds := make([]sim.SetpointCommand, 0, len(c.Simulation.Setpoints))
	for _, s := range c.Simulation.Setpoints {
		cmds = append(cmds, sim.SetpointCommand{At: s.At, Value: s.Value})
	}
	return cmds
}
