// Package preflight provides readiness checks for the filesystem paths and
// remote services Moonrider depends on.
//
// The daemon logs failed checks at startup, and `moonrider preflight` prints
// every result. Notification checks are skipped when no ntfy topic is set.
package preflight
