package installation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// User is the directory record for the authenticated account, as returned
// by login and user-state reads.
type User struct {
	ID             string       `json:"_id,omitempty"`
	Email          string       `json:"email,omitempty"`
	DefaultInstall string       `json:"defaultInstall"`
	Installs       []RawInstall `json:"installs"`
	TransactionID  string       `json:"transactionId,omitempty"`
}

// RawInstall is an installation in the directory's wire shape.
type RawInstall struct {
	ID                  string          `json:"_id"`
	Unique              string          `json:"unique"`
	Hash                string          `json:"hash,omitempty"`
	Name                string          `json:"name,omitempty"`
	Connected           bool            `json:"connected"`
	User                *RawInstallUser `json:"user,omitempty"`
	OutsideTemp         int             `json:"outside_temp"`
	OutsideTempFiltered int             `json:"outsideTempFiltered"`
	Groups              []RawGroup      `json:"groups"`
}

// RawInstallUser holds the per-user installation settings.
type RawInstallUser struct {
	// HeatCoolAuto is the operating-mode hint. The server sends either a
	// number or a zero-padded string.
	HeatCoolAuto *FlexInt `json:"heatcool_auto_01,omitempty"`
	ModeUsed     int      `json:"mode_used"`
}

type RawGroup struct {
	ID    string    `json:"_id"`
	Name  string    `json:"group_name"`
	Zones []RawZone `json:"zones"`
}

type RawZone struct {
	ID       string       `json:"_id"`
	Name     string       `json:"name"`
	Number   int          `json:"number"`
	Channels []RawChannel `json:"channels"`
}

type RawChannel struct {
	ID           string    `json:"_id"`
	SetpointUsed int       `json:"setpoint_used"`
	TempZone     int       `json:"temp_zone"`
	ModeUsed     int       `json:"mode_used"`
	Humidity     int       `json:"humidity"`
	Demand       int       `json:"demand"`
	Setpoints    Setpoints `json:"setpoints"`
}

// FlexInt decodes a JSON number or a numeric string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("installation: invalid numeric string %q: %w", s, err)
		}
		*f = FlexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// HasGroups reports whether the first install carries a zone tree.
// A user record without one is not enough to build the model.
func (u *User) HasGroups() bool {
	return u != nil && len(u.Installs) > 0 && len(u.Installs[0].Groups) > 0
}

// OperatingModeHint returns the first install's operating-mode hint.
func (u *User) OperatingModeHint() (int, bool) {
	if u == nil || len(u.Installs) == 0 || u.Installs[0].User == nil || u.Installs[0].User.HeatCoolAuto == nil {
		return 0, false
	}
	return int(*u.Installs[0].User.HeatCoolAuto), true
}

// DefaultInstallation returns the install matching DefaultInstall.
func (u *User) DefaultInstallation() (RawInstall, bool) {
	if u == nil {
		return RawInstall{}, false
	}
	for _, in := range u.Installs {
		if in.Unique == u.DefaultInstall {
			return in, true
		}
	}
	return RawInstall{}, false
}

// DeepCopy returns a copy that shares no slices or pointers with u.
// The copy goes through JSON so new fields are never missed.
func (u *User) DeepCopy() *User {
	if u == nil {
		return nil
	}
	data, err := json.Marshal(u)
	if err != nil {
		cpy := *u
		return &cpy
	}
	var cpy User
	if err := json.Unmarshal(data, &cpy); err != nil {
		shallow := *u
		return &shallow
	}
	return &cpy
}

// CarryOver are values injected into a rebuild that the raw payload lacks.
type CarryOver struct {
	// OperatingMode is the remembered operating-mode hint, if any.
	OperatingMode *int

	// Live is the last known telemetry of the installation with unique
	// LiveUnique. It is only applied to that installation.
	Live       LiveTelemetry
	LiveUnique string
}

// ParseInstallations turns directory installs into the normalised model.
//
// This is a full replace: fields not covered by carry-over take the raw
// payload's value.
func ParseInstallations(raw []RawInstall, carry CarryOver) []Installation {
	installations := make([]Installation, 0, len(raw))

	for _, ri := range raw {
		in := Installation{
			ID:                  ri.ID,
			Unique:              ri.Unique,
			Name:                ri.Name,
			Connected:           ri.Connected,
			OperatingMode:       OperatingModeUnknown,
			OutsideTemp:         ri.OutsideTemp,
			OutsideTempFiltered: ri.OutsideTempFiltered,
			Groups:              make([]Group, 0, len(ri.Groups)),
		}

		if ri.User != nil {
			in.GlobalEnergyLevel = ri.User.ModeUsed
			if ri.User.HeatCoolAuto != nil {
				in.OperatingMode = int(*ri.User.HeatCoolAuto)
			}
		}
		if in.OperatingMode == OperatingModeUnknown && carry.OperatingMode != nil {
			in.OperatingMode = *carry.OperatingMode
		}

		if carry.LiveUnique != "" && carry.LiveUnique == ri.Unique {
			in.LiveTelemetry = carry.Live
		}

		for _, rg := range ri.Groups {
			in.Groups = append(in.Groups, parseGroup(rg, in.OperatingMode))
		}

		installations = append(installations, in)
	}

	return installations
}

func parseGroup(rg RawGroup, operatingMode int) Group {
	g := Group{
		ID:    rg.ID,
		Name:  rg.Name,
		Zones: make([]Zone, 0, len(rg.Zones)),
	}
	for _, rz := range rg.Zones {
		z := Zone{
			ID:       rz.ID,
			Name:     rz.Name,
			Number:   rz.Number,
			Channels: make([]Channel, 0, len(rz.Channels)),
		}
		for _, rc := range rz.Channels {
			z.Channels = append(z.Channels, Channel{
				ID:                 rc.ID,
				TargetTemperature:  rc.SetpointUsed,
				CurrentTemperature: rc.TempZone,
				EnergyLevel:        rc.ModeUsed,
				OperatingMode:      operatingMode,
				Humidity:           rc.Humidity,
				Demand:             rc.Demand,
				Setpoints:          rc.Setpoints,
			})
		}
		g.Zones = append(g.Zones, z)
	}
	return g
}
