// Package filter classifies raw events from the external messaging client
// before they enter the bus. All functions are pure.
package filter

import (
	"strings"

	"github.com/chatwire/wabridge/internal/model"
)

// BroadcastJID is the reserved broadcast-status address. Messages to or
// from it are dropped before dedup, persistence and fan-out.
const BroadcastJID = "status@broadcast"

// sessionCodePrefix is the required prefix of the first field of a
// scannable session code.
const sessionCodePrefix = "2@"

// ValidSessionCode reports whether s looks like a complete, scannable
// session code. The client emits malformed or partial codes during its
// own internal retries; forwarding those corrupts the snapshot.
func ValidSessionCode(s string) bool {
	if s == "" {
		return false
	}
	if strings.Contains(s, "undefined") {
		return false
	}
	parts := strings.Split(s, ",")
	return len(parts) == 5 && strings.HasPrefix(parts[0], sessionCodePrefix)
}

// IsBroadcast reports whether either endpoint of m is the broadcast-status
// address.
func IsBroadcast(m *model.Message) bool {
	if m == nil {
		return false
	}
	return m.From == BroadcastJID || m.To == BroadcastJID
}
