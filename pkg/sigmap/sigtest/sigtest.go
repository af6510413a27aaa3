// Package sigtest collects small helpers end-to-end tests reuse when
// driving real sockets over loopback: a throwaway admin bus rendezvous
// picked per test to avoid collisions between parallel runs, and a polling
// condition-wait used in place of a fixed sleep.
package sigtest

import (
	"math/rand"
	"testing"
	"time"
)

// LoopbackGroup and a port drawn from RandomBusPort give each test its own
// multicast rendezvous on the loopback-reachable 239.x local-scope range,
// so concurrently running tests never cross-talk on the well-known
// transport.DefaultGroup/DefaultPort pair.
const LoopbackGroup = "239.7.7.7"

// RandomBusPort returns a port in a range reserved for test rendezvous,
// distinct from alloc.PortMin/PortSpan's data-plane candidate range.
func RandomBusPort() int {
	return 20000 + rand.Intn(9000)
}

// WaitUntil polls cond every tick until it reports true or timeout elapses,
// failing the test in the latter case. Used instead of a fixed sleep
// wherever a test must wait for a background poll loop to converge (admin
// bus probation, cross-device graph propagation).
func WaitUntil(t *testing.T, timeout, tick time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(tick)
	}
	if !cond() {
		t.Fatalf("condition did not become true within %v", timeout)
	}
}
