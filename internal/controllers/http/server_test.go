package httpctrl

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Agrid-Dev/acmock/internal/conditioner"
	"github.com/Agrid-Dev/acmock/internal/testutil"
	"github.com/Agrid-Dev/acmock/internal/thermal"
)

func TestGET_v1_ReturnsStrings(t *testing.T) {
	srv, _ := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	assertStatus(t, rr, http.StatusOK)

	got := decodeJSON[map[string]any](t, rr)
	if got["mode"] != "cool" {
		t.Fatalf("expected mode=cool, got %v", got["mode"])
	}
	if got["fan_speed"] != "auto" {
		t.Fatalf("expected fan_speed=auto, got %v", got["fan_speed"])
	}
	if got["device_id"] != "default" {
		t.Fatalf("expected device_id=default, got %v", got["device_id"])
	}
	if got["heat_gain_kw"] != 2.43 {
		t.Fatalf("expected heat_gain_kw=2.43, got %v", got["heat_gain_kw"])
	}
}

func TestGET_loads(t *testing.T) {
	srv, _ := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1/loads", nil)
	assertStatus(t, rr, http.StatusOK)

	got := decodeJSON[map[string]any](t, rr)
	if got["wall_kw"] != 0.78 || got["total_kw"] != 2.43 {
		t.Fatalf("unexpected loads %v", got)
	}
	if got["device_id"] != "default" {
		t.Fatalf("expected device_id=default, got %v", got["device_id"])
	}
}

func TestPOST_mode_Valid(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/mode", map[string]any{
		"value": "fan",
	})
	assertStatus(t, rr, http.StatusOK)

	if !f.SetModeCalled || f.SetModeArg != conditioner.ModeFan {
		t.Fatalf("expected SetMode(Fan) called, got called=%v arg=%v", f.SetModeCalled, f.SetModeArg)
	}
}

func TestPOST_mode_InvalidPayload(t *testing.T) {
	srv, _ := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/mode", map[string]any{
		"mode": "weird",
	})
	assertStatus(t, rr, http.StatusBadRequest)
	if msg := assertErrorResponse(t, rr); msg != "missing field 'value'" {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestPOST_mode_InvalidString(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/mode", map[string]any{
		"value": "heat",
	})
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
	if f.SetModeCalled {
		t.Fatal("expected SetMode not called")
	}
}

func TestPOST_invalidJSON(t *testing.T) {
	srv, _ := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/enabled", bytes.NewReader([]byte(`{"value":`)))
	srv.srv.Handler.ServeHTTP(rr, req)

	assertStatus(t, rr, http.StatusBadRequest)
	if msg := assertErrorResponse(t, rr); msg != "invalid json" {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestPOST_setpoint(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/temperature_setpoint", 24.5)
	assertStatus(t, rr, http.StatusOK)

	got := decodeJSON[map[string]any](t, rr)
	if got["temperature_setpoint"] != 24.5 || f.SetSetpointArg != 24.5 {
		t.Fatalf("expected setpoint=24.5, got %v", got["temperature_setpoint"])
	}
}

func TestPOST_setpoint_ErrorFromService(t *testing.T) {
	srv, f := newTestServer()
	f.SetSetpointErr = conditioner.ErrSetpointOutOfRange

	rr := postValueEndpoint(t, srv, "/v1/temperature_setpoint", 999)
	assertStatus(t, rr, http.StatusBadRequest)
	if msg := assertErrorResponse(t, rr); msg != conditioner.ErrSetpointOutOfRange.Error() {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestPOST_enabled(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/enabled", false)
	assertStatus(t, rr, http.StatusOK)

	if f.S.Enabled != false {
		t.Fatalf("expected enabled=false, got %v", f.S.Enabled)
	}
}

func TestPOST_fan_speed(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/fan_speed", "high")
	assertStatus(t, rr, http.StatusOK)

	if !f.SetFanSpeedCalled || f.SetFanSpeedArg != conditioner.FanHigh {
		t.Fatalf("expected SetFanSpeed(High), got called=%v arg=%v", f.SetFanSpeedCalled, f.SetFanSpeedArg)
	}
}

func TestPOST_min_setpoint(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/temperature_setpoint_min", 18.0)
	assertStatus(t, rr, http.StatusOK)

	if f.S.TemperatureSetpointMin != 18.0 || f.SetMinMaxMax != 28.0 {
		t.Fatalf("expected min setpoint=18.0 max kept, got %v/%v", f.S.TemperatureSetpointMin, f.SetMinMaxMax)
	}

	f.SetMinMaxErr = conditioner.ErrInvalidMinMax
	rr = postValueEndpoint(t, srv, "/v1/temperature_setpoint_min", 30.0)
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
}

func TestPOST_max_setpoint(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/temperature_setpoint_max", 26.0)
	assertStatus(t, rr, http.StatusOK)

	if f.S.TemperatureSetpointMax != 26.0 || f.SetMinMaxMin != 16.0 {
		t.Fatalf("expected max setpoint=26.0 min kept, got %v/%v", f.S.TemperatureSetpointMax, f.SetMinMaxMin)
	}

	f.SetMinMaxErr = conditioner.ErrInvalidMinMax
	rr = postValueEndpoint(t, srv, "/v1/temperature_setpoint_max", 15.0)
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
}

func TestPOST_indoor_humidity(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/indoor_humidity", 60.0)
	assertStatus(t, rr, http.StatusOK)
	if !f.SetIndoorHumidityCalled || f.SetIndoorHumidityArg != 60 {
		t.Fatalf("expected SetIndoorHumidity(60), got called=%v arg=%v", f.SetIndoorHumidityCalled, f.SetIndoorHumidityArg)
	}

	f.SetIndoorHumidityErr = conditioner.ErrInvalidHumidity
	rr = postValueEndpoint(t, srv, "/v1/indoor_humidity", 160.0)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestPOST_outdoor_keeps_other_field(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/outdoor_temperature", 38.0)
	assertStatus(t, rr, http.StatusOK)
	if f.SetOutdoorTemperature != 38 || f.SetOutdoorHumidity != 70 {
		t.Fatalf("expected SetOutdoor(38, 70), got (%v, %v)", f.SetOutdoorTemperature, f.SetOutdoorHumidity)
	}

	rr = postValueEndpoint(t, srv, "/v1/outdoor_humidity", 40.0)
	assertStatus(t, rr, http.StatusOK)
	if f.SetOutdoorTemperature != 38 || f.SetOutdoorHumidity != 40 {
		t.Fatalf("expected SetOutdoor(38, 40), got (%v, %v)", f.SetOutdoorTemperature, f.SetOutdoorHumidity)
	}
}

func TestPOST_outdoor_temperature_below_magnus_pole(t *testing.T) {
	model, err := thermal.New(thermal.DefaultParams())
	if err != nil {
		t.Fatalf("thermal.New: %v", err)
	}
	c, err := conditioner.New(testutil.NewFakeConditionerService().S, model,
		conditioner.RegulatorParams{TriggerHysteresis: 1, TargetHysteresis: 0.5})
	if err != nil {
		t.Fatalf("conditioner.New: %v", err)
	}
	srv := New(c, ":0", "default", nil)

	rr := postValueEndpoint(t, srv, "/v1/outdoor_temperature", -237.30001)
	assertStatus(t, rr, http.StatusBadRequest)
	assertErrorResponse(t, rr)

	_ = c.Step(time.Minute)
	rr = doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	assertStatus(t, rr, http.StatusOK)
	got := decodeJSON[map[string]any](t, rr)
	if got["outdoor_temperature"] != 34.0 {
		t.Fatalf("expected outdoor_temperature=34, got %v", got["outdoor_temperature"])
	}
	if v, ok := got["indoor_temperature"].(float64); !ok || v >= 24 {
		t.Fatalf("expected indoor_temperature below 24, got %v", got["indoor_temperature"])
	}
}

func TestGET_v1_unencodable_snapshot(t *testing.T) {
	srv, f := newTestServer()
	f.S.IndoorTemperature = math.NaN()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	assertStatus(t, rr, http.StatusInternalServerError)
	assertErrorResponse(t, rr)
}

func TestGET_v1_target_temperature(t *testing.T) {
	srv, f := newTestServer()
	f.S.TargetTemperature = 21.5

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	assertStatus(t, rr, http.StatusOK)
	got := decodeJSON[map[string]any](t, rr)
	if got["target_temperature"] != 21.5 {
		t.Fatalf("expected target_temperature=21.5, got %v", got["target_temperature"])
	}
}

func TestPOST_energy_reset(t *testing.T) {
	srv, f := newTestServer()
	f.S.Energy = 3.2

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/energy/reset", nil)
	assertStatus(t, rr, http.StatusOK)
	if !f.ResetEnergyCalled {
		t.Fatal("expected ResetEnergy called")
	}
	if got := decodeJSON[map[string]any](t, rr); got["energy_kwh"] != 0.0 {
		t.Fatalf("expected energy_kwh=0, got %v", got["energy_kwh"])
	}
}

func TestGET_healthz(t *testing.T) {
	srv, _ := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.srv.Handler.ServeHTTP(rr, req)

	assertStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "ok" {
		t.Fatalf("expected body 'ok', got %s", rr.Body.String())
	}
}

// ---- test helpers ----

func newTestServer() (*Server, *testutil.FakeConditionerService) {
	f := testutil.NewFakeConditionerService()
	deviceID := "default"
	return New(f, ":0", deviceID, nil), f
}

func doJSONRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rr.Code, rr.Body.String())
	}
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("json.Unmarshal: %v body=%s", err, rr.Body.String())
	}
	return v
}

// Handy when you only care about error responses.
func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeJSON[struct {
		Error string `json:"error"`
	}](t, rr)
	if resp.Error == "" {
		t.Fatalf("expected non-empty error field, got body=%s", rr.Body.String())
	}
	return resp.Error
}

func postValueEndpoint[T any](t *testing.T, srv *Server, path string, value T) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONRequest(t, srv.srv.Handler, http.MethodPost, path, struct {
		Value T `json:"value"`
	}{Value: value})
}
