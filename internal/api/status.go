package api

import "net/http"

// SessionResponse reports the cloud session state.
type SessionResponse struct {
	ClientID         string   `json:"client_id"`
	Email            string   `json:"email"`
	Authenticated    bool     `json:"authenticated"`
	Ready            bool     `json:"ready"`
	Connected        bool     `json:"connected"`
	Disconnects      int      `json:"disconnects"`
	PublishFailures  int      `json:"publish_failures"`
	SchedulerStopped bool     `json:"scheduler_stopped"`
	Tasks            []string `json:"tasks"`
	WebSocketClients int      `json:"websocket_clients"`
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	tasks := s.session.ScheduledTasks()
	if tasks == nil {
		tasks = []string{}
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		ClientID:         s.session.ClientID(),
		Email:            s.session.Email(),
		Authenticated:    s.session.IsAuthenticated(),
		Ready:            s.session.IsReady(),
		Connected:        s.session.IsConnected(),
		Disconnects:      s.session.DisconnectCount(),
		PublishFailures:  s.session.PublishFailures(),
		SchedulerStopped: s.session.SchedulerStopped(),
		Tasks:            tasks,
		WebSocketClients: s.hub.ClientCount(),
	})
}

// handleRefreshLiveData asks the installation for a live data push.
func (s *Server) handleRefreshLiveData(w http.ResponseWriter, _ *http.Request) {
	id, err := s.session.RefreshLiveData()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeAccepted(w, id)
}
