package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Agrid-Dev/acmock/internal/conditioner"
	"github.com/Agrid-Dev/acmock/internal/ports"
	"github.com/Agrid-Dev/acmock/internal/thermal"
)

type Server struct {
	svc      ports.ConditionerService
	srv      *http.Server
	deviceID string
	log      *zap.Logger
}

// New returns a runnable server. A nil logger disables request logging.
func New(svc ports.ConditionerService, addr string, deviceID string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	s := &Server{svc: svc, deviceID: deviceID, log: log}

	// Read
	mux.HandleFunc("GET /v1", s.handleGet)
	mux.HandleFunc("GET /v1/loads", s.handleGetLoads)

	// Write: one endpoint per variable
	mux.HandleFunc("POST /v1/enabled", s.handlePostEnabled)
	mux.HandleFunc("POST /v1/temperature_setpoint", s.handlePostSetpoint)
	mux.HandleFunc("POST /v1/temperature_setpoint_min", s.handlePostMinSetpoint)
	mux.HandleFunc("POST /v1/temperature_setpoint_max", s.handlePostMaxSetpoint)
	mux.HandleFunc("POST /v1/mode", s.handlePostMode)
	mux.HandleFunc("POST /v1/fan_speed", s.handlePostFanSpeed)
	mux.HandleFunc("POST /v1/indoor_humidity", s.handlePostIndoorHumidity)
	mux.HandleFunc("POST /v1/outdoor_temperature", s.handlePostOutdoorTemperature)
	mux.HandleFunc("POST /v1/outdoor_humidity", s.handlePostOutdoorHumidity)
	mux.HandleFunc("POST /v1/energy/reset", s.handlePostResetEnergy)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("http controller listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// ---- DTOs ----

type snapshotDTO struct {
	DeviceID               string  `json:"device_id"`
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
	Elapsed                float64 `json:"elapsed_s"`
}

func toDTO(s conditioner.Snapshot) snapshotDTO {
	return snapshotDTO{
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
		Elapsed:                s.Elapsed.Seconds(),
	}
}

type loadsDTO struct {
	DeviceID            string  `json:"device_id"`
	VentilationSensible float64 `json:"ventilation_sensible_kw"`
	VentilationLatent   float64 `json:"ventilation_latent_kw"`
	Wall                float64 `json:"wall_kw"`
	Window              float64 `json:"window_kw"`
	Appliances          float64 `json:"appliances_kw"`
	Occupants           float64 `json:"occupants_kw"`
	Lighting            float64 `json:"lighting_kw"`
	Auxiliary           float64 `json:"auxiliary_kw"`
	Total               float64 `json:"total_kw"`
}

func toLoadsDTO(b thermal.Breakdown) loadsDTO {
	return loadsDTO{
		VentilationSensible: b.VentilationSensible,
		VentilationLatent:   b.VentilationLatent,
		Wall:                b.Wall,
		Window:              b.Window,
		Appliances:          b.Appliances,
		Occupants:           b.Occupants,
		Lighting:            b.Lighting,
		Auxiliary:           b.Auxiliary,
		Total:               b.Total,
	}
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondSnapshot(w)
}

func (s *Server) handleGetLoads(w http.ResponseWriter, _ *http.Request) {
	dto := toLoadsDTO(s.svc.Loads())
	dto.DeviceID = s.deviceID
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handlePostEnabled(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, func(v bool) error {
		s.svc.SetEnabled(v)
		return nil
	})
}

func (s *Server) handlePostSetpoint(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, func(v float64) error {
		return s.svc.SetSetpoint(v)
	})
}

func (s *Server) handlePostMinSetpoint(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, func(v float64) error {
		cur := s.svc.Get()
		return s.svc.SetMinMax(v, cur.TemperatureSetpointMax)
	})
}

func (s *Server) handlePostMaxSetpoint(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, func(v float64) error {
		cur := s.svc.Get()
		return s.svc.SetMinMax(cur.TemperatureSetpointMin, v)
	})
}

func (s *Server) handlePostMode(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "cool"}
	postValue(s, w, r, func(v string) error {
		m, err := conditioner.ParseMode(v)
		if err != nil {
			return err
		}
		return s.svc.SetMode(m)
	})
}

func (s *Server) handlePostFanSpeed(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "high"}
	postValue(s, w, r, func(v string) error {
		f, err := conditioner.ParseFanSpeed(v)
		if err != nil {
			return err
		}
		return s.svc.SetFanSpeed(f)
	})
}

func (s *Server) handlePostIndoorHumidity(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, func(v float64) error {
		return s.svc.SetIndoorHumidity(v)
	})
}

func (s *Server) handlePostOutdoorTemperature(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, func(v float64) error {
		cur := s.svc.Get()
		return s.svc.SetOutdoor(v, cur.OutdoorHumidity)
	})
}

func (s *Server) handlePostOutdoorHumidity(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, func(v float64) error {
		cur := s.svc.Get()
		return s.svc.SetOutdoor(cur.OutdoorTemperature, v)
	})
}

func (s *Server) handlePostResetEnergy(w http.ResponseWriter, _ *http.Request) {
	s.svc.ResetEnergy()
	s.respondSnapshot(w)
}

// ---- generic helpers ----
func (s *Server) respondSnapshot(w http.ResponseWriter) {
	dto := toDTO(s.svc.Get())
	dto.DeviceID = s.deviceID
	writeJSON(w, http.StatusOK, dto)
}

func postValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(T) error) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	if err := apply(*req.Value); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondSnapshot(w)
}

// writeJSON answers 500 when v cannot be encoded (NaN, +Inf).
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
