// Package state provides a lightweight FSM/session manager for Telegram bots.
// It is intentionally domain-agnostic: the form accumulator carried by each
// session is a caller-supplied type, and sessions are evicted after a
// configurable idle TTL so abandoned conversations do not pile up in memory.
package state
