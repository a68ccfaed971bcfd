// Package protocols runs protocols expressed as state functions.
package protocols

import (
	"context"
	"errors"
)

// StateFunc changes state S and returns the next StateFunc.
// To report protocol completion StateFunc returns an error wrapping protocols.OK.
// Any other error aborts the protocol.
type StateFunc[S any] func(context.Context, S) (StateFunc[S], error)

// ExitFunc is called at protocol completion using protocol run error status.
type ExitFunc[S any] func(S, error)

// Fsm exposes protocol state S.
type Fsm[S any] interface {
	State() (S, StateFunc[S])
	SetState(sf StateFunc[S])
	ExitHandler() ExitFunc[S]
	SetExitHandler(ef ExitFunc[S])
}

// Run executes fsm state functions until completion.
// It returns nil if the protocol completed with protocols.OK.
func Run[S any](ctx context.Context, fsm Fsm[S]) error {
	var err error
	s, sf := fsm.State()
	defer func() {
		fsm.SetState(sf)
		exh := fsm.ExitHandler()
		if nil != exh {
			state, _ := fsm.State()
			exh(state, err)
		}
	}()

	var next StateFunc[S]
	var errProto error
	for {
		if nil == sf {
			err = newError("nil StateFunc")
			return err
		}
		next, errProto = sf(ctx, s)
		if nil == errProto {
			sf = next
			continue
		}

		if errors.Is(errProto, OK) {
			err = nil
		} else {
			err = wrapError(errProto, "Failed state execution")
		}
		return err
	}
}
