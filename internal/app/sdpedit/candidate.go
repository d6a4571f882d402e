package sdpedit

import (
	"strings"

	"github.com/pion/ice/v4"

	"github.com/dkeye/Publisher/internal/domain"
)

// CleanCandidate strips quoting left by some signaling servers.
func CleanCandidate(c string) string {
	return strings.TrimSpace(strings.ReplaceAll(c, `"`, ""))
}

// AllowCandidate reports whether a candidate's transport passes the protocol filter.
// Auto accepts everything. Unparseable candidates are only accepted under Auto.
func AllowCandidate(candidate string, p domain.Protocol) bool {
	if p == domain.ProtocolAuto {
		return true
	}
	tcp, ok := candidateIsTCP(candidate)
	if !ok {
		return false
	}
	if p == domain.ProtocolTCP {
		return tcp
	}
	return !tcp
}

func candidateIsTCP(candidate string) (tcp, ok bool) {
	raw := strings.TrimPrefix(strings.TrimPrefix(candidate, "a="), "candidate:")
	if c, err := ice.UnmarshalCandidate(raw); err == nil {
		return c.NetworkType().IsTCP(), true
	}
	// foundation component transport priority address port ...
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return false, false
	}
	switch strings.ToLower(fields[2]) {
	case "tcp":
		return true, true
	case "udp":
		return false, true
	}
	return false, false
}
