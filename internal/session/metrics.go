package session

// Token refresh outcomes reported to Metrics.
const (
	RefreshOK     = "refreshed"
	RefreshReauth = "reauthenticated"
	RefreshFailed = "failed"
	AuthSucceeded = "success"
	AuthFailed    = "failure"
)

// Metrics records session events. metrics.Session implements it.
type Metrics interface {
	// Disconnected counts an unexpected broker disconnect.
	Disconnected()

	// Published records the outcome of one publish.
	Published(err error)

	// MessageHandled records one inbound message by kind.
	MessageHandled(kind string, err error)

	// TokenRefreshed records a refresh attempt by outcome.
	TokenRefreshed(outcome string)

	// Authenticated records a login attempt by outcome.
	Authenticated(outcome string)

	// SetConnected records the transport state.
	SetConnected(connected bool)

	// SetInstallations records the number of installations in the model.
	SetInstallations(n int)
}

type noopMetrics struct{}

func (noopMetrics) Disconnected()                {}
func (noopMetrics) Published(error)              {}
func (noopMetrics) MessageHandled(string, error) {}
func (noopMetrics) TokenRefreshed(string)        {}
func (noopMetrics) Authenticated(string)         {}
func (noopMetrics) SetConnected(bool)            {}
func (noopMetrics) SetInstallations(int)         {}
