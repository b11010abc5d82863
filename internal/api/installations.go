package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/neasmart-core/internal/controller"
	"github.com/nerrad567/neasmart-core/internal/installation"
)

// installationView adds readable names for the mode fields.
type installationView struct {
	installation.Installation
	OperationModeName     string `json:"operation_mode_name"`
	GlobalEnergyLevelName string `json:"global_energy_level_name"`
}

func newInstallationView(in installation.Installation) installationView {
	return installationView{
		Installation:          in,
		OperationModeName:     controller.OperationMode(in.OperatingMode).String(),
		GlobalEnergyLevelName: controller.EnergyLevel(in.GlobalEnergyLevel).String(),
	}
}

// acceptedResponse is returned for writes queued to the broker.
type acceptedResponse struct {
	Status    string `json:"status"`
	MessageID uint16 `json:"message_id"`
}

func writeAccepted(w http.ResponseWriter, id uint16) {
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", MessageID: id})
}

// handleListInstallations returns every installation.
func (s *Server) handleListInstallations(w http.ResponseWriter, _ *http.Request) {
	installations := s.controller.Installations()
	views := make([]installationView, 0, len(installations))
	for _, in := range installations {
		views = append(views, newInstallationView(in))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"installations": views,
		"count":         len(views),
	})
}

// handleGetInstallation returns one installation by its unique id.
func (s *Server) handleGetInstallation(w http.ResponseWriter, r *http.Request) {
	in, err := s.store.Installation(chi.URLParam(r, "unique"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstallationView(*in))
}

type operationModeRequest struct {
	Mode string `json:"mode"`
}

// handleSetOperationMode changes the operating mode of the current
// installation.
func (s *Server) handleSetOperationMode(w http.ResponseWriter, r *http.Request) {
	var req operationModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	mode, err := controller.ParseOperationMode(req.Mode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id, err := s.controller.SetOperationMode(mode)
	if err != nil {
		s.logger.Warn("setting operation mode failed", "mode", mode.String(), "error", err)
		writeDomainError(w, err)
		return
	}
	writeAccepted(w, id)
}

type energyLevelRequest struct {
	Level      string `json:"level"`
	Controller int    `json:"controller"`
}

// handleSetGlobalEnergyLevel sets the energy level of every zone of the
// current installation.
func (s *Server) handleSetGlobalEnergyLevel(w http.ResponseWriter, r *http.Request) {
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

	id, err := s.controller.SetGlobalEnergyLevel(level, req.Controller)
	if err != nil {
		s.logger.Warn("setting global energy level failed", "level", level.String(), "error", err)
		writeDomainError(w, err)
		return
	}
	writeAccepted(w, id)
}
