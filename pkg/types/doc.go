// Package types defines the domain types, store and remote-client contracts,
// standard errors, and configuration for the Satchel sync core.
//
// The core keeps a local replica of a user's notes consistent with a remote
// note service across unreliable connectivity. Writes made while offline are
// queued as Operations, newly created entities receive client-generated
// temporary ids, and the processor rewrites those ids once the server assigns
// real ones. Everything in this package is shared vocabulary between the
// queue, registry, processor, and sync engine; implementations live under
// internal/.
package types
