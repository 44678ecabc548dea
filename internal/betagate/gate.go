// Package betagate validates beta access codes against a configured
// allow-list. The gate is independent of billing entitlement: a beta code
// unlocks the app, Pro unlocks paid features.
package betagate

import (
	"errors"
	"strings"
)

// ErrNotConfigured distinguishes a server with no codes at all from a
// plain mismatch: the former is fixed by an operator, the latter by the
// user typing the right code.
var ErrNotConfigured = errors.New("betagate: no invite codes configured")

// Gate holds the normalized allow-list and optional master code.
type Gate struct {
	codes      map[string]struct{}
	masterCode string
}

// New builds a gate from a comma-separated invite-code list and an optional
// master code. Codes are trimmed and uppercased; empties are dropped.
func New(inviteCodes, masterCode string) *Gate {
	g := &Gate{
		codes:      make(map[string]struct{}),
		masterCode: normalize(masterCode),
	}
	for _, c := range strings.Split(inviteCodes, ",") {
		if c = normalize(c); c != "" {
			g.codes[c] = struct{}{}
		}
	}
	return g
}

// Configured reports whether the gate has anything to match against.
func (g *Gate) Configured() bool {
	return len(g.codes) > 0 || g.masterCode != ""
}

// Validate checks a submitted code. Comparison is case-insensitive and
// whitespace-trimmed. Returns ErrNotConfigured when the server has neither
// an allow-list nor a master code.
func (g *Gate) Validate(code string) (bool, error) {
	if !g.Configured() {
		return false, ErrNotConfigured
	}
	code = normalize(code)
	if code == "" {
		return false, nil
	}
	if g.masterCode != "" && code == g.masterCode {
		return true, nil
	}
	_, ok := g.codes[code]
	return ok, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
