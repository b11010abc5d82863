package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/neasmart-core/internal/directory"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/config"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/neasmart-core/internal/installation"
	"github.com/nerrad567/neasmart-core/internal/message"
	"github.com/nerrad567/neasmart-core/internal/referential"
	"github.com/nerrad567/neasmart-core/internal/scheduler"
)

// Session defaults, used when the config leaves a value unset.
const (
	defaultMaxDisconnects   = 5
	defaultFailureThreshold = 5
	defaultClientIDPrefix   = "app-"

	// minTokenRefreshInterval bounds the proactive refresh cadence for
	// short-lived tokens.
	minTokenRefreshInterval = time.Minute
)

// Scheduled task names.
const (
	TaskUserPoll     = "user-poll"
	TaskLiveData     = "live-data"
	TaskReferentials = "referentials"
	TaskTokenRefresh = "token-refresh"
)

// subscriptions are the topic templates the session listens on.
var subscriptions = mqtt.Topics{}.Subscriptions()

// Transport is the broker connection used by the session.
// *mqtt.Client satisfies it.
type Transport interface {
	Open(id mqtt.Identity, handlers mqtt.Handlers) error
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte) (uint16, error)
	Close() error
	IsConnected() bool
}

// Logger defines the logging interface used by the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Credentials are the end-user login for the identity service.
type Credentials struct {
	Email    string
	Password string
}

// CurrentInstallation identifies the installation whose topics are active.
type CurrentInstallation struct {
	ID     string
	Unique string
	Hash   string
}

// Options holds the collaborators of a Session.
type Options struct {
	// Config supplies broker and schedule settings. Required.
	Config *config.Config

	// Credentials default to Config.Account when empty.
	Credentials Credentials

	// Directory is the identity and directory service. Required.
	Directory directory.Service

	// Transport is the broker connection. Required.
	Transport Transport

	// Store receives the installation model. A new store is created if nil.
	Store *installation.Store

	// Logger is optional.
	Logger Logger

	// Metrics is optional.
	Metrics Metrics

	// NewClientID overrides the broker client id generator.
	NewClientID func() string
}

// Session is the orchestrator for one account.
//
// Thread Safety: All methods are safe for concurrent use.
type Session struct {
	cfg       *config.Config
	creds     Credentials
	dir       directory.Service
	transport Transport
	store     *installation.Store
	router    *message.Router
	metrics   Metrics
	logger    Logger
	clientID  string

	// authMu serialises login, refresh and transport (re)opens.
	authMu sync.Mutex

	mu            sync.RWMutex
	token         directory.TokenData
	current       CurrentInstallation
	referentials  referential.Dictionary
	transactionID string
	authenticated bool
	sched         *scheduler.Scheduler

	disconnects      atomic.Int64
	publishFailures  atomic.Int64
	schedulerStopped atomic.Bool

	// loops tracks every scheduler started, so Close can wait for them.
	loops  sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

var _ message.Handler = (*Session)(nil)

// New creates a session. Call Authenticate to log in and connect.
func New(opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("directory service is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	creds := opts.Credentials
	if creds.Email == "" && creds.Password == "" {
		creds = Credentials{Email: opts.Config.Account.Email, Password: opts.Config.Account.Password}
	}
	if creds.Email == "" {
		return nil, fmt.Errorf("account email is required")
	}

	store := opts.Store
	if store == nil {
		store = installation.NewStore()
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	var metrics Metrics = noopMetrics{}
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}

	newID := opts.NewClientID
	if newID == nil {
		prefix := opts.Config.Broker.ClientIDPrefix
		if prefix == "" {
			prefix = defaultClientIDPrefix
		}
		newID = func() string { return prefix + uuid.NewString() }
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		cfg:       opts.Config,
		creds:     creds,
		dir:       opts.Directory,
		transport: opts.Transport,
		store:     store,
		router:    message.NewRouter(subscriptions...),
		metrics:   metrics,
		logger:    logger,
		clientID:  newID(),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Store returns the installation store fed by this session.
func (s *Session) Store() *installation.Store {
	return s.store
}

// ClientID returns the broker client id of this session.
func (s *Session) ClientID() string {
	return s.clientID
}

// Email returns the login of the account.
func (s *Session) Email() string {
	return s.creds.Email
}

// IsAuthenticated reports whether the broker has accepted the session.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// IsReady reports whether the user record and installations are known.
func (s *Session) IsReady() bool {
	return s.store.Ready()
}

// IsConnected reports whether the transport is currently connected.
func (s *Session) IsConnected() bool {
	return s.transport.IsConnected()
}

// User returns a copy of the current user record, or nil.
func (s *Session) User() *installation.User {
	return s.store.User()
}

// CurrentInstallation returns the installation whose topics are active.
func (s *Session) CurrentInstallation() CurrentInstallation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// InstallIDs lists the ids of all known installations.
func (s *Session) InstallIDs() []string {
	return s.store.InstallIDs()
}

// TransactionID returns the transaction id from the user record, if any.
func (s *Session) TransactionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionID
}

// Referentials returns the referential dictionary. It fails with
// referential.ErrNoReferentials until the server has sent one.
func (s *Session) Referentials() (referential.Dictionary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.referentials == nil {
		return nil, referential.ErrNoReferentials
	}
	return s.referentials, nil
}

// Token returns the current token set.
func (s *Session) Token() directory.TokenData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// DisconnectCount returns the number of unexpected disconnects since the
// last user poll.
func (s *Session) DisconnectCount() int {
	return int(s.disconnects.Load())
}

// PublishFailures returns the number of consecutive publish failures.
func (s *Session) PublishFailures() int {
	return int(s.publishFailures.Load())
}

// SchedulerStopped reports whether the periodic tasks have been stopped.
func (s *Session) SchedulerStopped() bool {
	return s.schedulerStopped.Load()
}

// ScheduledTasks returns the names of the running periodic tasks.
func (s *Session) ScheduledTasks() []string {
	s.mu.RLock()
	sched := s.sched
	s.mu.RUnlock()
	if sched == nil {
		return nil
	}
	return sched.Tasks()
}

func (s *Session) setToken(token directory.TokenData) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// setUser hands the user record to the store and, when the installations
// were rebuilt, recomputes the current installation from it.
func (s *Session) setUser(u *installation.User) {
	if u == nil {
		return
	}

	rebuilt := s.store.SetUser(u)

	s.mu.Lock()
	if u.TransactionID != "" {
		s.transactionID = u.TransactionID
	}
	if rebuilt {
		if in, ok := u.DefaultInstallation(); ok {
			s.current = CurrentInstallation{ID: in.ID, Unique: in.Unique, Hash: in.Hash}
		}
	}
	s.mu.Unlock()

	s.metrics.SetInstallations(len(s.store.InstallIDs()))
}

func (s *Session) placeholders() mqtt.Placeholders {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mqtt.Placeholders{Unique: s.current.Unique, Email: s.creds.Email}
}

func (s *Session) maxDisconnects() int64 {
	if n := s.cfg.Broker.Reconnect.MaxDisconnects; n > 0 {
		return int64(n)
	}
	return defaultMaxDisconnects
}

func (s *Session) failureThreshold() int64 {
	if n := s.cfg.Broker.PublishFailureThreshold; n > 0 {
		return int64(n)
	}
	return defaultFailureThreshold
}
