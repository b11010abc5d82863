package installation

// OperatingModeUnknown is used when neither the payload nor a carried-over
// hint provides an operating mode.
const OperatingModeUnknown = -1

// Installation is one NEA Smart base station and its zone tree.
//
// Temperatures are in tenths of a degree Fahrenheit, as on the wire.
type Installation struct {
	ID                  string  `json:"id"`
	Unique              string  `json:"unique"`
	Name                string  `json:"name,omitempty"`
	GlobalEnergyLevel   int     `json:"global_energy_level"`
	Connected           bool    `json:"connected"`
	OperatingMode       int     `json:"operating_mode"`
	Groups              []Group `json:"groups"`
	OutsideTemp         int     `json:"outside_temp"`
	OutsideTempFiltered int     `json:"outsideTempFiltered"`

	LiveTelemetry
}

// LiveTelemetry are the fields refreshed by live-data messages.
type LiveTelemetry struct {
	PumpOn                bool `json:"pumpOn"`
	MixedCircuit1Setpoint int  `json:"mixed_circuit1_setpoint"`
	MixedCircuit1Supply   int  `json:"mixed_circuit1_supply"`
	MixedCircuit1Return   int  `json:"mixed_circuit1_return"`
	MixedCircuit1Opening  int  `json:"mixed_circuit1_opening"`
}

// Group is a named set of zones.
type Group struct {
	ID    string `json:"id"`
	Name  string `json:"group_name"`
	Zones []Zone `json:"zones"`
}

// Zone is a room. Zone numbers are unique across a user's installations.
type Zone struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Number   int       `json:"number"`
	Channels []Channel `json:"channels"`
}

// Channel is one thermostat channel inside a zone.
type Channel struct {
	ID                 string    `json:"id"`
	TargetTemperature  int       `json:"target_temperature"`
	CurrentTemperature int       `json:"current_temperature"`
	EnergyLevel        int       `json:"energy_level"`
	OperatingMode      int       `json:"operating_mode"`
	Humidity           int       `json:"humidity"`
	Demand             int       `json:"demand"`
	Setpoints          Setpoints `json:"setpoints"`
}

// Setpoints are the configured setpoints of a channel.
type Setpoints struct {
	Cooling Cooling `json:"cooling"`
	Heating Heating `json:"heating"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
}

type Cooling struct {
	Normal  int `json:"normal"`
	Reduced int `json:"reduced"`
}

type Heating struct {
	Normal  int `json:"normal"`
	Reduced int `json:"reduced"`
	Standby int `json:"standby"`
}

// DeepCopy returns a copy that shares no slices with the original.
func (in *Installation) DeepCopy() *Installation {
	if in == nil {
		return nil
	}
	cpy := *in
	if in.Groups != nil {
		cpy.Groups = make([]Group, len(in.Groups))
		for i := range in.Groups {
			cpy.Groups[i] = in.Groups[i].deepCopy()
		}
	}
	return &cpy
}

func (g Group) deepCopy() Group {
	if g.Zones != nil {
		zones := make([]Zone, len(g.Zones))
		for i := range g.Zones {
			zones[i] = g.Zones[i].deepCopy()
		}
		g.Zones = zones
	}
	return g
}

func (z Zone) deepCopy() Zone {
	if z.Channels != nil {
		channels := make([]Channel, len(z.Channels))
		copy(channels, z.Channels)
		z.Channels = channels
	}
	return z
}

// ZoneNumbers lists the zone numbers of the installation in tree order.
func (in *Installation) ZoneNumbers() []int {
	var numbers []int
	for _, g := range in.Groups {
		for _, z := range g.Zones {
			numbers = append(numbers, z.Number)
		}
	}
	return numbers
}

// findChannel returns the first channel with the given id.
func (in *Installation) findChannel(id string) *Channel {
	for gi := range in.Groups {
		for zi := range in.Groups[gi].Zones {
			zone := &in.Groups[gi].Zones[zi]
			for ci := range zone.Channels {
				if zone.Channels[ci].ID == id {
					return &zone.Channels[ci]
				}
			}
		}
	}
	return nil
}

// findZone returns the zone with the given number.
func (in *Installation) findZone(number int) *Zone {
	for gi := range in.Groups {
		for zi := range in.Groups[gi].Zones {
			if in.Groups[gi].Zones[zi].Number == number {
				return &in.Groups[gi].Zones[zi]
			}
		}
	}
	return nil
}
