package utils

import (
	"errors"
	"slices"
	"sync"
	"testing"
)

func TestRegistryAddGet(t *testing.T) {
	reg := NewRegistry[string, []byte]()

	err := reg.Add("generic", []byte{1, 2, 3})
	if nil != err {
		t.Fatalf("failed Add, got error %v", err)
	}

	err = reg.Add("generic", []byte{4})
	if !errors.Is(err, ErrNameConflict) {
		t.Errorf("failed conflict control, got error %v", err)
	}

	v, found := reg.Get("generic")
	if !found || !slices.Equal(v, []byte{1, 2, 3}) {
		t.Errorf("failed Get control, got %v %v", v, found)
	}

	_, found = reg.Get("missing")
	if found {
		t.Error("missing name was found")
	}
}

func TestRegistrySetReplaces(t *testing.T) {
	reg := NewRegistry[string, int]()
	reg.Set("a", 1)
	reg.Set("a", 2)
	v, _ := reg.Get("a")
	if 2 != v {
		t.Errorf("failed Set control, %d != 2", v)
	}
}

func TestRegistryNilIsEmpty(t *testing.T) {
	var reg *Registry[string, int]
	if _, found := reg.Get("a"); found {
		t.Error("nil Registry returned a value")
	}
	if 0 != reg.Len() {
		t.Errorf("failed Len control, %d != 0", reg.Len())
	}
	if nil != reg.Names() {
		t.Error("nil Registry returned names")
	}
}

func TestRegistryConcurrentSet(t *testing.T) {
	reg := NewRegistry[string, int]()
	names := []string{"d", "b", "a", "c"}

	var wg sync.WaitGroup
	for pos, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Set(name, pos)
		}()
	}
	wg.Wait()

	if !slices.Equal(reg.Names(), []string{"a", "b", "c", "d"}) {
		t.Errorf("failed Names control, got %v", reg.Names())
	}
}
