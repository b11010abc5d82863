// Package session maintains the authenticated broker session for one
// NEA Smart 2 account.
//
// A Session owns the token set, the current installation, the referential
// dictionary and the periodic tasks. It drives the transport, feeds inbound
// messages through the message router into the installation store, and
// keeps the connection alive across token expiry:
//
//	dir := directory.NewHTTPClient(cfg.Directory)
//	transport := mqtt.New(cfg.Broker)
//	store := installation.NewStore()
//
//	s, err := session.New(session.Options{
//	    Config:    cfg,
//	    Directory: dir,
//	    Transport: transport,
//	    Store:     store,
//	    Logger:    log.Component("session"),
//	})
//	if err != nil {
//	    return err
//	}
//	if err := s.Authenticate(ctx); err != nil {
//	    return err
//	}
//	defer s.Close()
//
// Token refresh falls back to a full login when the refresh token is
// rejected. Other directory failures are logged and retried on the next
// tick. Unexpected disconnects are tolerated up to a ceiling (five by
// default); the next one tears the session down.
package session
