// Package installation holds the in-memory model of a user's NEA Smart
// installations and notifies observers on every change.
//
// The model is a tree: Installation → Group → Zone → Channel. It is
// rebuilt wholesale from the directory service's user record (SetUser,
// Rebuild) and mutated in place by broker messages (UpdateLiveData,
// UpdateChannel) and by optimistic local writes from the controller.
//
// Rebuilds carry over two kinds of values the directory payload does not
// include: the operating-mode hint from the first install, and the last
// live telemetry of the first installation. Without the carry-over a
// periodic poll would reset pump and mixed-circuit readings to zero until
// the next live-data message.
//
// All mutations are serialised by the Store. Observers are called after
// the lock is released, so they may read the store from inside the
// notification.
package installation
