package logtree

import (
	"sync/atomic"

	"github.com/keithlinneman/wireup/internal/xerrors"
)

// The installed topology is the one piece of process-wide state in the
// loader. It is written exactly once, during the single-threaded build
// phase at startup, and sealed afterward: every later Install fails.
var active atomic.Pointer[Topology]

// Install makes t the process-wide topology. It succeeds at most once
// per process.
func Install(t *Topology) error {
	if t == nil {
		return xerrors.New("logtree: install of nil topology")
	}
	if !active.CompareAndSwap(nil, t) {
		return xerrors.New("logtree: topology already installed and sealed")
	}
	return nil
}

// Active returns the installed topology, or nil before Install.
func Active() *Topology { return active.Load() }
