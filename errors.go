/*
 * Musing
 *
 * A single-host music player server.
 */

// Package musing holds the contracts shared by every subsystem of the
// server: the protocol-level error reasons, the closed tag vocabulary, and
// the product version.
package musing

import "errors"

// ProductVersion is the current version of the musing server, sent to
// clients in the greeting.
const ProductVersion = "0.1.0"

// Error kinds surfaced to clients as the "reason" of an err response.
// Handlers return one of these (or a wrapped variant of one of these) and
// the dispatcher renders it; subsystem packages never talk protocol JSON
// themselves.
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrUnknownKind      = errors.New("unknown kind")
	ErrArgOutOfRange    = errors.New("argument out of range")
	ErrUnknownTag       = errors.New("unknown tag")
	ErrInvalidRegex     = errors.New("invalid regex")
	ErrInvalidPath      = errors.New("invalid path")
	ErrNotInCatalog     = errors.New("not in catalog")
	ErrDeviceUnknown    = errors.New("device unknown")
	ErrIO               = errors.New("io error")
)
