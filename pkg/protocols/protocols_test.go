package protocols

import (
	"context"
	"errors"
	"testing"
)

var errTooFar = errors.New("counter went too far")

type counter struct {
	value   int
	target  int
	visited []string
	sf      StateFunc[*counter]
	exh     ExitFunc[*counter]
}

func (self *counter) State() (*counter, StateFunc[*counter]) {
	return self, self.sf
}

func (self *counter) SetState(sf StateFunc[*counter]) {
	self.sf = sf
}

func (self *counter) ExitHandler() ExitFunc[*counter] {
	return self.exh
}

func (self *counter) SetExitHandler(ef ExitFunc[*counter]) {
	self.exh = ef
}

func increment(_ context.Context, c *counter) (StateFunc[*counter], error) {
	c.visited = append(c.visited, "increment")
	c.value += 1
	return check, nil
}

func check(_ context.Context, c *counter) (StateFunc[*counter], error) {
	c.visited = append(c.visited, "check")
	switch {
	case c.value == c.target:
		return nil, Done("reached %d", c.target)
	case c.value > c.target:
		return nil, errTooFar
	default:
		return increment, nil
	}
}

func TestRunCompletes(t *testing.T) {
	c := &counter{target: 3, sf: increment}
	var exitErr error
	var exited bool
	c.SetExitHandler(func(s *counter, err error) {
		exited = true
		exitErr = err
	})

	err := Run(t.Context(), c)
	if nil != err {
		t.Fatalf("failed Run, got error %v", err)
	}
	if 3 != c.value || 6 != len(c.visited) {
		t.Errorf("failed state control, got value %d, visited %v", c.value, c.visited)
	}
	if !exited || nil != exitErr {
		t.Errorf("failed exit handler control, got (%v, %v)", exited, exitErr)
	}
}

func TestRunFails(t *testing.T) {
	c := &counter{value: 5, target: 3, sf: check}
	var exitErr error
	c.SetExitHandler(func(s *counter, err error) {
		exitErr = err
	})

	err := Run(t.Context(), c)
	if !errors.Is(err, errTooFar) {
		t.Errorf("Run did not fail with errTooFar, got %v", err)
	}
	if !errors.Is(err, Error) {
		t.Errorf("Run error is not a protocols Error, got %v", err)
	}
	if !errors.Is(exitErr, errTooFar) {
		t.Errorf("exit handler did not receive errTooFar, got %v", exitErr)
	}
}

func TestRunNilStateFunc(t *testing.T) {
	c := &counter{target: 1}
	err := Run(t.Context(), c)
	if !errors.Is(err, Error) {
		t.Errorf("Run did not fail with Error, got %v", err)
	}
}

func TestIsError(t *testing.T) {
	testcases := []struct {
		err    error
		expect bool
	}{
		{err: nil, expect: false},
		{err: Done("completed"), expect: false},
		{err: newError("failed"), expect: true},
		{err: errTooFar, expect: true},
	}
	for pos, tc := range testcases {
		if tc.expect != IsError(tc.err) {
			t.Errorf("#%d: failed IsError control for %v", pos, tc.err)
		}
	}
}
