package controller

import (
	"fmt"

	"github.com/nerrad567/neasmart-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/neasmart-core/internal/installation"
	"github.com/nerrad567/neasmart-core/internal/referential"
	"github.com/nerrad567/neasmart-core/internal/session"
)

// requestType is the message type of every thermostat write.
const requestType = "REQ_TH"

// Session is the part of *session.Session the controller uses.
type Session interface {
	Publish(template string, msg any) (uint16, error)
	Referentials() (referential.Dictionary, error)
	CurrentInstallation() session.CurrentInstallation
	IsAuthenticated() bool
	IsReady() bool
}

// Logger defines the logging interface used by the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Controller reads and writes zones of the installations behind a session.
//
// Thread Safety: All methods are safe for concurrent use.
type Controller struct {
	session Session
	store   *installation.Store
	logger  Logger
}

// New creates a controller over s and the store it feeds.
func New(s Session, store *installation.Store) *Controller {
	return &Controller{session: s, store: store, logger: noopLogger{}}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// IsReady reports whether the installation model is available.
func (c *Controller) IsReady() bool {
	return c.session.IsReady()
}

// IsAuthenticated reports whether the broker has accepted the session.
func (c *Controller) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

// IsConnected reports whether the installation's base station is online.
// Unknown installations report false.
func (c *Controller) IsConnected(unique string) bool {
	in, err := c.store.Installation(unique)
	if err != nil {
		return false
	}
	return in.Connected
}

// Installations returns copies of all installations.
func (c *Controller) Installations() []installation.Installation {
	return c.store.Installations()
}

// Zones returns copies of every zone.
func (c *Controller) Zones() []installation.Zone {
	return c.store.Zones()
}

// Zone returns a copy of the zone with the given number.
func (c *Controller) Zone(number int) (installation.Zone, error) {
	return c.store.Zone(number)
}

// Temperature returns the zone's current temperature, averaged over its
// channels.
func (c *Controller) Temperature(zone int, unit Unit) (float64, error) {
	v, err := c.zoneAverage(zone, func(ch installation.Channel) int { return ch.CurrentTemperature })
	if err != nil {
		return 0, err
	}
	return FromWire(v, unit), nil
}

// TargetTemperature returns the zone's setpoint, averaged over its channels.
func (c *Controller) TargetTemperature(zone int, unit Unit) (float64, error) {
	v, err := c.zoneAverage(zone, func(ch installation.Channel) int { return ch.TargetTemperature })
	if err != nil {
		return 0, err
	}
	return FromWire(v, unit), nil
}

// Humidity returns the zone's relative humidity in percent.
func (c *Controller) Humidity(zone int) (float64, error) {
	return c.zoneAverage(zone, func(ch installation.Channel) int { return ch.Humidity })
}

// EnergyLevel returns the zone's energy level.
func (c *Controller) EnergyLevel(zone int) (EnergyLevel, error) {
	v, err := c.zoneAverage(zone, func(ch installation.Channel) int { return ch.EnergyLevel })
	if err != nil {
		return 0, err
	}
	return EnergyLevel(int(v)), nil
}

// GlobalEnergyLevel returns the energy level of the first installation.
func (c *Controller) GlobalEnergyLevel() (EnergyLevel, error) {
	in, err := c.first()
	if err != nil {
		return 0, err
	}
	return EnergyLevel(in.GlobalEnergyLevel), nil
}

// OperationMode returns the operating mode of the first installation.
func (c *Controller) OperationMode() (OperationMode, error) {
	in, err := c.first()
	if err != nil {
		return OperationModeUnknown, err
	}
	return OperationMode(in.OperatingMode), nil
}

// TemperatureRequest sets a zone's target temperature.
type TemperatureRequest struct {
	Zone        int
	Temperature float64
	Unit        Unit

	// Controller is the index of the base station; zero for most setups.
	Controller int
}

// SetTemperature sends a new target temperature for a zone.
func (c *Controller) SetTemperature(req TemperatureRequest) (uint16, error) {
	if req.Zone <= 0 {
		return 0, fmt.Errorf("%w: zone is required", ErrInvalidRequest)
	}
	unit := req.Unit
	if unit == "" {
		unit = Celsius
	}
	value := ToWire(req.Temperature, unit)

	return c.write(map[string]any{
		"controller": req.Controller,
		"data":       map[string]any{"setpoint_used": value},
		"type":       requestType,
		"zone":       req.Zone,
	}, func() error {
		return c.store.SetZoneTargetTemperature(req.Zone, value)
	})
}

// SetEnergyLevel sends a permanent energy level for a zone.
func (c *Controller) SetEnergyLevel(zone int, level EnergyLevel, controller int) (uint16, error) {
	if zone <= 0 {
		return 0, fmt.Errorf("%w: zone is required", ErrInvalidRequest)
	}
	if !level.Valid() {
		return 0, fmt.Errorf("%w: energy level %d", ErrInvalidRequest, int(level))
	}

	return c.write(map[string]any{
		"controller": controller,
		"data":       map[string]any{"mode_permanent": int(level)},
		"type":       requestType,
		"zone":       zone,
	}, func() error {
		return c.store.SetZoneEnergyLevel(zone, int(level))
	})
}

// SetGlobalEnergyLevel sends an energy level for every zone of the current
// installation.
func (c *Controller) SetGlobalEnergyLevel(level EnergyLevel, controller int) (uint16, error) {
	if !level.Valid() {
		return 0, fmt.Errorf("%w: energy level %d", ErrInvalidRequest, int(level))
	}

	unique := c.session.CurrentInstallation().Unique
	in, err := c.store.Installation(unique)
	if err != nil {
		return 0, err
	}

	return c.write(map[string]any{
		"controller": controller,
		"data": map[string]any{
			"mode_used":     int(level),
			"zone_impacted": in.ZoneNumbers(),
		},
		"type": requestType,
	}, nil)
}

// SetOperationMode sends a new operating mode for the current installation.
func (c *Controller) SetOperationMode(mode OperationMode) (uint16, error) {
	if !mode.Valid() {
		return 0, fmt.Errorf("%w: operation mode %d", ErrInvalidRequest, int(mode))
	}

	unique := c.session.CurrentInstallation().Unique
	return c.write(map[string]any{
		"data": map[string]any{"heat_cool": fmt.Sprintf("%02d", int(mode))},
		"type": requestType,
	}, func() error {
		return c.store.SetOperatingMode(unique, int(mode))
	})
}

// write encodes req with the referentials, applies the optimistic update
// and publishes to the current installation.
func (c *Controller) write(req map[string]any, apply func() error) (uint16, error) {
	dict, err := c.session.Referentials()
	if err != nil {
		return 0, err
	}

	if apply != nil {
		if err := apply(); err != nil {
			return 0, err
		}
	}

	c.logger.Debug("sending request", "data", req["data"])
	return c.session.Publish(mqtt.ClientInstallation, dict.Encode(req))
}

func (c *Controller) zoneAverage(number int, value func(installation.Channel) int) (float64, error) {
	zone, err := c.store.Zone(number)
	if err != nil {
		return 0, err
	}
	if len(zone.Channels) == 0 {
		return 0, fmt.Errorf("%w: %d", ErrNoValue, number)
	}

	sum := 0
	for _, ch := range zone.Channels {
		sum += value(ch)
	}
	return float64(sum) / float64(len(zone.Channels)), nil
}

func (c *Controller) first() (installation.Installation, error) {
	installations := c.store.Installations()
	if len(installations) == 0 {
		return installation.Installation{}, installation.ErrNotReady
	}
	return installations[0], nil
}
