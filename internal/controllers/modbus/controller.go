package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	mbserver "github.com/tbrandon/mbserver"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/acmock/internal/conditioner"
	"github.com/Agrid-Dev/acmock/internal/ports"
)

// Config for the Modbus controller.
type Config struct {
	DeviceID string
	Addr     string
	UnitID   byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.
}

// Holding registers (read/write), x100 for temperatures and humidities.
const (
	HRSetpoint = iota
	HRSetpointMin
	HRSetpointMax
	HRMode
	HRFanSpeed
	HRIndoorHumidity
	HROutdoorTemperature
	HROutdoorHumidity
	holdingRegisterCount
)

// Input registers (read only), x100.
const (
	IRIndoorTemperature = iota
	IRHeatGain
	IRPower
	IREnergy
	inputRegisterCount
)

// Coil 0 is the enabled flag; discrete input 0 the compressor state.
const (
	CoilEnabled        = 0
	DiscreteCompressor = 0
)

var errIllegalAddress = errors.New("illegal data address")

type Controller struct {
	svc ports.ConditionerService
	cfg Config
	log *zap.Logger

	serv *mbserver.Server
}

func New(svc ports.ConditionerService, cfg Config, log *zap.Logger) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{svc: svc, cfg: cfg, log: log.With(zap.String("controller", "modbus"))}, nil
}

// Run starts the Modbus server and registers handlers that apply writes immediately and
// provide reads directly from the conditioner service. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	serv.RegisterFunctionHandler(1, c.handleReadCoils)
	serv.RegisterFunctionHandler(2, c.handleReadDiscreteInputs)
	serv.RegisterFunctionHandler(3, c.handleReadHoldingRegisters)
	serv.RegisterFunctionHandler(4, c.handleReadInputRegisters)
	serv.RegisterFunctionHandler(5, c.handleWriteSingleCoil)
	serv.RegisterFunctionHandler(6, c.handleWriteSingleRegister)
	serv.RegisterFunctionHandler(16, c.handleWriteMultipleRegisters)

	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}
	c.log.Info("modbus controller listening", zap.String("addr", c.cfg.Addr), zap.Uint8("unit_id", c.cfg.UnitID))

	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

// ---- read handlers ----

func (c *Controller) handleReadCoils(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	return readBits(frame, []bool{c.svc.Get().Enabled})
}

func (c *Controller) handleReadDiscreteInputs(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	return readBits(frame, []bool{c.svc.Get().CompressorOn})
}

func (c *Controller) handleReadHoldingRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	s := c.svc.Get()
	regs := make([]uint16, holdingRegisterCount)
	regs[HRSetpoint] = encodeTemp(s.TemperatureSetpoint)
	regs[HRSetpointMin] = encodeTemp(s.TemperatureSetpointMin)
	regs[HRSetpointMax] = encodeTemp(s.TemperatureSetpointMax)
	regs[HRMode] = uint16(s.Mode)
	regs[HRFanSpeed] = uint16(s.FanSpeed)
	regs[HRIndoorHumidity] = encodeTemp(s.IndoorHumidity)
	regs[HROutdoorTemperature] = encodeTemp(s.OutdoorTemperature)
	regs[HROutdoorHumidity] = encodeTemp(s.OutdoorHumidity)
	return readRegisters(frame, regs)
}

func (c *Controller) handleReadInputRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	s := c.svc.Get()
	regs := make([]uint16, inputRegisterCount)
	regs[IRIndoorTemperature] = encodeTemp(s.IndoorTemperature)
	regs[IRHeatGain] = encodeTemp(s.HeatGain)
	regs[IRPower] = encodeTemp(s.Power)
	regs[IREnergy] = encodeTemp(s.Energy)
	return readRegisters(frame, regs)
}

func readBits(frame mbserver.Framer, bits []bool) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := int(binary.BigEndian.Uint16(data[0:2]))
	qty := int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > 2000 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if start+qty > len(bits) {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	byteCount := (qty + 7) / 8
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i := 0; i < qty; i++ {
		if bits[start+i] {
			resp[1+i/8] |= 1 << (i % 8)
		}
	}
	return resp, &mbserver.Success
}

func readRegisters(frame mbserver.Framer, regs []uint16) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := int(binary.BigEndian.Uint16(data[0:2]))
	qty := int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > 125 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if start+qty > len(regs) {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	byteCount := qty * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i, r := range regs[start : start+qty] {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], r)
	}
	return resp, &mbserver.Success
}

// ---- write handlers ----

func (c *Controller) handleWriteSingleCoil(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if addr != CoilEnabled {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	var enabled bool
	switch value {
	case 0x0000:
		enabled = false
	case 0xFF00:
		enabled = true
	default:
		return []byte{}, &mbserver.IllegalDataValue
	}

	c.svc.SetEnabled(enabled)

	// echo request (address + value)
	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

func (c *Controller) handleWriteSingleRegister(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if exc := c.writeException(int(addr), []uint16{value}); exc != nil {
		return []byte{}, exc
	}

	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

func (c *Controller) handleWriteMultipleRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	d := frame.GetData()
	if len(d) < 5 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := binary.BigEndian.Uint16(d[0:2])
	quantity := binary.BigEndian.Uint16(d[2:4])
	byteCount := int(d[4])
	if byteCount != int(quantity)*2 || len(d) < 5+byteCount {
		return []byte{}, &mbserver.IllegalDataValue
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2])
	}
	if exc := c.writeException(int(start), values); exc != nil {
		return []byte{}, exc
	}

	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], start)
	binary.BigEndian.PutUint16(resp[2:4], quantity)
	return resp, &mbserver.Success
}

func (c *Controller) writeException(start int, values []uint16) *mbserver.Exception {
	err := c.writeHoldingRegisters(start, values)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errIllegalAddress):
		return &mbserver.IllegalDataAddress
	default:
		c.log.Debug("register write rejected",
			zap.Int("register", start), zap.Int("quantity", len(values)), zap.Error(err))
		return &mbserver.IllegalDataValue
	}
}

// writeHoldingRegisters stages the whole block on a copy of the current
// state and validates it before anything reaches the service.
func (c *Controller) writeHoldingRegisters(start int, values []uint16) error {
	cur := c.svc.Get()
	next := cur
	for i, v := range values {
		if err := stageHoldingRegister(&next, start+i, v); err != nil {
			return err
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	return c.applyStaged(cur, next)
}

func stageHoldingRegister(s *conditioner.Snapshot, addr int, value uint16) error {
	switch addr {
	case HRSetpoint:
		s.TemperatureSetpoint = decodeTemp(value)
	case HRSetpointMin:
		s.TemperatureSetpointMin = decodeTemp(value)
	case HRSetpointMax:
		s.TemperatureSetpointMax = decodeTemp(value)
	case HRMode:
		s.Mode = conditioner.Mode(value)
	case HRFanSpeed:
		s.FanSpeed = conditioner.FanSpeed(value)
	case HRIndoorHumidity:
		s.IndoorHumidity = decodeTemp(value)
	case HROutdoorTemperature:
		s.OutdoorTemperature = decodeTemp(value)
	case HROutdoorHumidity:
		s.OutdoorHumidity = decodeTemp(value)
	default:
		return errIllegalAddress
	}
	return nil
}

func (c *Controller) applyStaged(cur, next conditioner.Snapshot) error {
	rangeChanged := next.TemperatureSetpointMin != cur.TemperatureSetpointMin ||
		next.TemperatureSetpointMax != cur.TemperatureSetpointMax

	// The union of both ranges holds the current and the new setpoint.
	if rangeChanged {
		lo := min(cur.TemperatureSetpointMin, next.TemperatureSetpointMin)
		hi := max(cur.TemperatureSetpointMax, next.TemperatureSetpointMax)
		if err := c.svc.SetMinMax(lo, hi); err != nil {
			return err
		}
	}
	if next.TemperatureSetpoint != cur.TemperatureSetpoint {
		if err := c.svc.SetSetpoint(next.TemperatureSetpoint); err != nil {
			return err
		}
	}
	if rangeChanged {
		if err := c.svc.SetMinMax(next.TemperatureSetpointMin, next.TemperatureSetpointMax); err != nil {
			return err
		}
	}
	if next.Mode != cur.Mode {
		if err := c.svc.SetMode(next.Mode); err != nil {
			return err
		}
	}
	if next.FanSpeed != cur.FanSpeed {
		if err := c.svc.SetFanSpeed(next.FanSpeed); err != nil {
			return err
		}
	}
	if next.IndoorHumidity != cur.IndoorHumidity {
		if err := c.svc.SetIndoorHumidity(next.IndoorHumidity); err != nil {
			return err
		}
	}
	if next.OutdoorTemperature != cur.OutdoorTemperature || next.OutdoorHumidity != cur.OutdoorHumidity {
		return c.svc.SetOutdoor(next.OutdoorTemperature, next.OutdoorHumidity)
	}
	return nil
}

const TemperatureScale int = 100

func encodeTemp(v float64) uint16 {
	r := min(max(int(math.Round(v*float64(TemperatureScale))), math.MinInt16), math.MaxInt16)
	return uint16(int16(r))
}

func decodeTemp(u uint16) float64 {
	i := int16(u)
	return float64(i) / float64(TemperatureScale)
}
