package controller

import (
	"fmt"
	"math"
	"strings"
)

// OperationMode is the installation-wide heating/cooling mode.
type OperationMode int

const (
	OperationModeUnknown       OperationMode = -1
	OperationModeHeatingOnly   OperationMode = 1
	OperationModeCoolingOnly   OperationMode = 2
	OperationModeAuto          OperationMode = 3
	OperationModeHeatingManual OperationMode = 5
	OperationModeCoolingManual OperationMode = 6
)

var operationModeNames = map[OperationMode]string{
	OperationModeUnknown:       "unknown",
	OperationModeHeatingOnly:   "heating_only",
	OperationModeCoolingOnly:   "cooling_only",
	OperationModeAuto:          "auto",
	OperationModeHeatingManual: "heating_manual",
	OperationModeCoolingManual: "cooling_manual",
}

func (m OperationMode) String() string {
	if name, ok := operationModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("operation_mode(%d)", int(m))
}

// Valid reports whether m is a mode the controller accepts.
func (m OperationMode) Valid() bool {
	_, ok := operationModeNames[m]
	return ok && m != OperationModeUnknown
}

// ParseOperationMode accepts a mode name as returned by String.
func ParseOperationMode(s string) (OperationMode, error) {
	for m, name := range operationModeNames {
		if strings.EqualFold(name, s) {
			return m, nil
		}
	}
	return OperationModeUnknown, fmt.Errorf("%w: unknown operation mode %q", ErrInvalidRequest, s)
}

// EnergyLevel is the comfort level of a zone or of the whole installation.
type EnergyLevel int

const (
	EnergyLevelPresent EnergyLevel = 0
	EnergyLevelAbsent  EnergyLevel = 1
	EnergyLevelStandby EnergyLevel = 2
	EnergyLevelTiming  EnergyLevel = 3
	EnergyLevelParty   EnergyLevel = 7
	EnergyLevelHoliday EnergyLevel = 11
)

var energyLevelNames = map[EnergyLevel]string{
	EnergyLevelPresent: "present",
	EnergyLevelAbsent:  "absent",
	EnergyLevelStandby: "standby",
	EnergyLevelTiming:  "timing",
	EnergyLevelParty:   "party",
	EnergyLevelHoliday: "holiday",
}

func (l EnergyLevel) String() string {
	if name, ok := energyLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("energy_level(%d)", int(l))
}

// Valid reports whether l is a known level.
func (l EnergyLevel) Valid() bool {
	_, ok := energyLevelNames[l]
	return ok
}

// ParseEnergyLevel accepts a level name as returned by String.
func ParseEnergyLevel(s string) (EnergyLevel, error) {
	for l, name := range energyLevelNames {
		if strings.EqualFold(name, s) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown energy level %q", ErrInvalidRequest, s)
}

// Unit is a temperature unit.
type Unit string

const (
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
)

// ParseUnit accepts "C" or "F" in any case. Empty means Celsius.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToUpper(s) {
	case "", "C":
		return Celsius, nil
	case "F":
		return Fahrenheit, nil
	}
	return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidRequest, s)
}

// FromWire converts a wire value (tenths of °F) to unit. Celsius is
// rounded to one decimal.
func FromWire(tenthsF float64, unit Unit) float64 {
	f := tenthsF / 10
	if unit == Fahrenheit {
		return f
	}
	return math.Round((f-32)/1.8*10) / 10
}

// ToWire converts a temperature in unit to tenths of °F.
func ToWire(temperature float64, unit Unit) int {
	tenths := temperature * 10
	if unit != Fahrenheit {
		tenths = tenths*1.8 + 320
	}
	return int(math.Round(tenths))
}
