package core

import (
	"github.com/hashicorp/go-version"
)

// ProtocolVersion is the admin-bus wire protocol version this build speaks,
// generalizing the teacher's raw integer version check in protocol.go's
// checkRPCHeader into a proper semver compatibility rule.
const ProtocolVersion = "1.0.0"

// CompatibleVersion reports whether peer, a semver string announced by a
// remote device, is wire-compatible with the local ProtocolVersion: same
// major version, any minor/patch (a remote device on 1.3.0 can talk to one
// on 1.0.0, but a 2.x peer cannot).
func CompatibleVersion(peer string) bool {
	local, err := version.NewVersion(ProtocolVersion)
	if err != nil {
		return false
	}
	remote, err := version.NewVersion(peer)
	if err != nil {
		return false
	}
	return local.Segments()[0] == remote.Segments()[0]
}
