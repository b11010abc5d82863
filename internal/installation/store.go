package installation

import (
	"fmt"
	"strconv"
	"sync"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the single in-memory source of truth for all installations.
//
// All public methods are thread-safe. Read accessors return deep copies.
type Store struct {
	mu            sync.RWMutex
	user          *User
	installations []Installation // nil until the first rebuild
	carry         CarryOver

	obsMu     sync.Mutex
	observers map[string]func()
	nextSubID uint64

	logger Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		observers: make(map[string]func()),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetUser replaces the user record and rebuilds installations from it.
//
// Before rebuilding it remembers the first install's operating-mode hint
// and snapshots the live telemetry of the current first installation, so
// the rebuilt tree keeps showing them. The rebuild only happens when the
// first install has at least one group; SetUser reports whether it did.
func (s *Store) SetUser(u *User) bool {
	if u == nil {
		return false
	}

	s.mu.Lock()
	s.user = u.DeepCopy()

	if mode, ok := u.OperatingModeHint(); ok {
		s.carry.OperatingMode = &mode
		s.logger.Debug("remembering operating mode", "operating_mode", mode)
	}

	if len(s.installations) > 0 {
		s.carry.Live = s.installations[0].LiveTelemetry
		s.carry.LiveUnique = s.installations[0].Unique
	}

	rebuilt := u.HasGroups()
	if rebuilt {
		s.installations = ParseInstallations(s.user.Installs, s.carry)
	}
	count := len(s.installations)
	s.mu.Unlock()

	if rebuilt {
		s.logger.Info("installations rebuilt", "count", count)
		s.PublishUpdates()
	}
	return rebuilt
}

// Rebuild replaces the installations with ones parsed from raw, applying
// the current carry-over, and notifies observers.
func (s *Store) Rebuild(raw []RawInstall) {
	s.mu.Lock()
	s.installations = ParseInstallations(raw, s.carry)
	s.mu.Unlock()

	s.PublishUpdates()
}

// UpdateLiveData overwrites the live telemetry of the installation with
// the given unique and notifies observers.
func (s *Store) UpdateLiveData(unique string, live LiveTelemetry) error {
	s.mu.Lock()
	in := s.find(unique)
	if in == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInstallationNotFound, unique)
	}
	in.LiveTelemetry = live
	s.mu.Unlock()

	s.PublishUpdates()
	return nil
}

// UpdateChannel sets energy level and target temperature of the first
// channel with channelID in the installation with the given unique, then
// notifies observers once.
func (s *Store) UpdateChannel(unique, channelID string, energyLevel, targetTemperature int) error {
	s.mu.Lock()
	in := s.find(unique)
	if in == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInstallationNotFound, unique)
	}
	ch := in.findChannel(channelID)
	if ch == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	ch.EnergyLevel = energyLevel
	ch.TargetTemperature = targetTemperature
	s.mu.Unlock()

	s.PublishUpdates()
	return nil
}

// SetZoneTargetTemperature sets the target temperature of every channel
// in the zone. Used for optimistic updates before the controller confirms.
func (s *Store) SetZoneTargetTemperature(zone, value int) error {
	return s.updateZone(zone, func(ch *Channel) { ch.TargetTemperature = value })
}

// SetZoneEnergyLevel sets the energy level of every channel in the zone.
func (s *Store) SetZoneEnergyLevel(zone, level int) error {
	return s.updateZone(zone, func(ch *Channel) { ch.EnergyLevel = level })
}

func (s *Store) updateZone(number int, apply func(*Channel)) error {
	s.mu.Lock()
	if s.installations == nil {
		s.mu.Unlock()
		return ErrNotReady
	}
	var zone *Zone
	for i := range s.installations {
		if zone = s.installations[i].findZone(number); zone != nil {
			break
		}
	}
	if zone == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrZoneNotFound, number)
	}
	for i := range zone.Channels {
		apply(&zone.Channels[i])
	}
	s.mu.Unlock()

	s.PublishUpdates()
	return nil
}

// SetOperatingMode sets the operating mode of an installation and all of
// its channels, and remembers it as the carry-over hint.
func (s *Store) SetOperatingMode(unique string, mode int) error {
	s.mu.Lock()
	in := s.find(unique)
	if in == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInstallationNotFound, unique)
	}
	in.OperatingMode = mode
	for gi := range in.Groups {
		for zi := range in.Groups[gi].Zones {
			zone := &in.Groups[gi].Zones[zi]
			for ci := range zone.Channels {
				zone.Channels[ci].OperatingMode = mode
			}
		}
	}
	s.carry.OperatingMode = &mode
	s.mu.Unlock()

	s.PublishUpdates()
	return nil
}

// find returns the installation with the given unique. Caller holds s.mu.
func (s *Store) find(unique string) *Installation {
	for i := range s.installations {
		if s.installations[i].Unique == unique {
			return &s.installations[i]
		}
	}
	return nil
}

// Ready reports whether both the user and the installations are known.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.installations != nil
}

// User returns a copy of the current user record, or nil.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.DeepCopy()
}

// Installations returns deep copies of all installations, or nil before
// the first rebuild.
func (s *Store) Installations() []Installation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.installations == nil {
		return nil
	}
	out := make([]Installation, len(s.installations))
	for i := range s.installations {
		out[i] = *s.installations[i].DeepCopy()
	}
	return out
}

// Installation returns a copy of the installation with the given unique.
func (s *Store) Installation(unique string) (*Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in := s.find(unique)
	if in == nil {
		return nil, fmt.Errorf("%w: %s", ErrInstallationNotFound, unique)
	}
	return in.DeepCopy(), nil
}

// InstallIDs lists the ids of all installations.
func (s *Store) InstallIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.installations))
	for _, in := range s.installations {
		ids = append(ids, in.ID)
	}
	return ids
}

// Zones returns copies of every zone across all installations.
func (s *Store) Zones() []Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zones []Zone
	for _, in := range s.installations {
		for _, g := range in.Groups {
			for _, z := range g.Zones {
				zones = append(zones, z.deepCopy())
			}
		}
	}
	return zones
}

// Zone returns a copy of the zone with the given number.
func (s *Store) Zone(number int) (Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.installations {
		if z := s.installations[i].findZone(number); z != nil {
			return z.deepCopy(), nil
		}
	}
	return Zone{}, fmt.Errorf("%w: %d", ErrZoneNotFound, number)
}

// InstallationUniqueByZone returns the unique of the installation that
// contains the zone.
func (s *Store) InstallationUniqueByZone(number int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.installations {
		if s.installations[i].findZone(number) != nil {
			return s.installations[i].Unique, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrZoneNotFound, number)
}

// RegisterCallback adds an observer under id. Registering an id that is
// already present is a no-op.
func (s *Store) RegisterCallback(id string, fn func()) {
	if fn == nil {
		return
	}
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	if _, exists := s.observers[id]; exists {
		return
	}
	s.observers[id] = fn
}

// RemoveCallback removes the observer registered under id. Unknown ids
// are ignored.
func (s *Store) RemoveCallback(id string) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	delete(s.observers, id)
}

// Subscribe registers fn and returns a function that unregisters it.
// Calling the returned function more than once is safe.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.obsMu.Lock()
	s.nextSubID++
	id := "subscription-" + strconv.FormatUint(s.nextSubID, 10)
	s.obsMu.Unlock()

	s.RegisterCallback(id, fn)

	var once sync.Once
	return func() {
		once.Do(func() { s.RemoveCallback(id) })
	}
}

// ObserverCount returns the number of registered observers.
func (s *Store) ObserverCount() int {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	return len(s.observers)
}

// PublishUpdates calls every observer synchronously. Order is unspecified.
// A panicking observer is logged and does not stop the others.
func (s *Store) PublishUpdates() {
	s.obsMu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		s.notify(fn)
	}
}

func (s *Store) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("observer panic recovered", "panic", r)
		}
	}()
	fn()
}
