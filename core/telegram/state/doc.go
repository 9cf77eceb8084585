// Package state provides a keyed session store for conversational bot flows.
// It is domain-agnostic: callers choose the session payload type.
package state
