// Package publishing promotes evaluated candidates into the registry and
// verifies the serving endpoint picks them up.
package publishing
