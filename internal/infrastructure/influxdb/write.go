package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/neasmart-core/internal/installation"
)

// Measurement names.
const (
	MeasurementInstallation = "installation"
	MeasurementChannel      = "channel"
)

// InstallationPoint returns the installation-level point for in.
func InstallationPoint(in installation.Installation, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementInstallation,
		map[string]string{
			"installation": in.Unique,
			"name":         in.Name,
		},
		map[string]interface{}{
			"connected":               in.Connected,
			"operating_mode":          in.OperatingMode,
			"global_energy_level":     in.GlobalEnergyLevel,
			"outside_temp":            in.OutsideTemp,
			"outside_temp_filtered":   in.OutsideTempFiltered,
			"pump_on":                 in.PumpOn,
			"mixed_circuit1_setpoint": in.MixedCircuit1Setpoint,
			"mixed_circuit1_supply":   in.MixedCircuit1Supply,
			"mixed_circuit1_return":   in.MixedCircuit1Return,
			"mixed_circuit1_opening":  in.MixedCircuit1Opening,
		},
		ts,
	)
}

// ChannelPoints returns one point per channel of in, in tree order.
func ChannelPoints(in installation.Installation, ts time.Time) []*write.Point {
	var points []*write.Point
	for _, g := range in.Groups {
		for _, z := range g.Zones {
			for _, ch := range z.Channels {
				points = append(points, write.NewPoint(
					MeasurementChannel,
					map[string]string{
						"installation": in.Unique,
						"zone":         strconv.Itoa(z.Number),
						"zone_name":    z.Name,
						"channel":      ch.ID,
					},
					map[string]interface{}{
						"current_temperature": ch.CurrentTemperature,
						"target_temperature":  ch.TargetTemperature,
						"humidity":            ch.Humidity,
						"energy_level":        ch.EnergyLevel,
						"demand":              ch.Demand,
					},
					ts,
				))
			}
		}
	}
	return points
}
