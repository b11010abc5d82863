// Package controller is the zone-level facade over a session.
//
// Reads come from the installation store and convert wire values (tenths
// of a degree Fahrenheit) to the requested unit. Writes build a REQ_TH
// request, rewrite its keys through the referential dictionary, publish it
// to the installation topic and apply the change to the store right away;
// the controller's own channel update confirms it later.
package controller
