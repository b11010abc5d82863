package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/neasmart-core/internal/controller"
	"github.com/nerrad567/neasmart-core/internal/installation"
)

// zoneView is a zone with its channel averages converted to the
// requested unit. Averages are omitted for zones without channels.
type zoneView struct {
	installation.Zone
	Installation      string   `json:"installation,omitempty"`
	Unit              string   `json:"unit"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TargetTemperature *float64 `json:"target_temperature,omitempty"`
	Humidity          *float64 `json:"humidity,omitempty"`
	EnergyLevel       string   `json:"energy_level,omitempty"`
}

func (s *Server) newZoneView(z installation.Zone, unit controller.Unit) zoneView {
	v := zoneView{Zone: z, Unit: string(unit)}

	if unique, err := s.store.InstallationUniqueByZone(z.Number); err == nil {
		v.Installation = unique
	}
	if t, err := s.controller.Temperature(z.Number, unit); err == nil {
		v.Temperature = &t
	}
	if t, err := s.controller.TargetTemperature(z.Number, unit); err == nil {
		v.TargetTemperature = &t
	}
	if h, err := s.controller.Humidity(z.Number); err == nil {
		v.Humidity = &h
	}
	if l, err := s.controller.EnergyLevel(z.Number); err == nil {
		v.EnergyLevel = l.String()
	}
	return v
}

// parseZone reads the {number} URL parameter.
func parseZone(r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// handleListZones returns every zone. The unit query parameter selects
// C (default) or F.
func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	unit, err := controller.ParseUnit(r.URL.Query().Get("unit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	zones := s.controller.Zones()
	views := make([]zoneView, 0, len(zones))
	for _, z := range zones {
		views = append(views, s.newZoneView(z, unit))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"zones": views,
		"count": len(views),
	})
}

// handleGetZone returns one zone by number.
func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	number, ok := parseZone(r)
	if !ok {
		writeBadRequest(w, "zone number must be a positive integer")
		return
	}
	unit, err := controller.ParseUnit(r.URL.Query().Get("unit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	z, err := s.controller.Zone(number)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.newZoneView(z, unit))
}

type temperatureRequest struct {
	Temperature *float64 `json:"temperature"`
	Unit        string   `json:"unit"`
	Controller  int      `json:"controller"`
}

// handleSetTemperature sends a new target temperature for a zone.
func (s *Server) handleSetTemperature(w http.ResponseWriter, r *http.Request) {
	number, ok := parseZone(r)
	if !ok {
		writeBadRequest(w, "zone number must be a positive integer")
		return
	}

	var req temperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Temperature == nil {
		writeBadRequest(w, "temperature is required")
		return
	}
	unit, err := controller.ParseUnit(req.Unit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id, err := s.controller.SetTemperature(controller.TemperatureRequest{
		Zone:        number,
		Temperature: *req.Temperature,
		Unit:        unit,
		Controller:  req.Controller,
	})
	if err != nil {
		s.logger.Warn("setting temperature failed", "zone", number, "error", err)
		writeDomainError(w, err)
		return
	}
	writeAccepted(w, id)
}

// handleSetZoneEnergyLevel sends a permanent energy level for a zone.
func (s *Server) handleSetZoneEnergyLevel(w http.ResponseWriter, r *http.Request) {
	number, ok := parseZone(r)
	if !ok {
		writeBadRequest(w, "zone number must be a positive integer")
		return
	}

	var req energyLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	level, err := controller.ParseEnergyLevel(req.Level)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id, err := s.controller.SetEnergyLevel(number, level, req.Controller)
	if err != nil {
		s.logger.Warn("setting energy level failed", "zone", number, "error", err)
		writeDomainError(w, err)
		return
	}
	writeAccepted(w, id)
}
