package transport

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

type cardMsg struct {
	CardId string `json:"cardId" cbor:"1,keyasint"`
	Nonce  []byte `json:"nonce" cbor:"2,keyasint"`
}

func (self cardMsg) Check() error {
	if "" == self.CardId {
		return errors.New("empty CardId")
	}
	return nil
}

type plainMsg struct {
	Key    string         `json:"key" cbor:"1,keyasint"`
	Fields map[string]any `json:"fields" cbor:"2,keyasint"`
}

func TestSerializerRoundTrip(t *testing.T) {
	testcases := []struct {
		name string
		srz  Serializer
	}{
		{name: "json", srz: JSONSerializer{}},
		{name: "cbor", srz: CBORSerializer{}},
		{name: "safe json", srz: WrapInSafeSerializer(JSONSerializer{})},
		{name: "safe cbor", srz: WrapInSafeSerializer(CBORSerializer{})},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			msg := cardMsg{CardId: "card-01", Nonce: []byte{0, 1, 2, 0xff}}
			srzmsg, err := tc.srz.Marshal(msg)
			if nil != err {
				t.Fatalf("failed Marshal, got error %v", err)
			}
			var readmsg cardMsg
			err = tc.srz.Unmarshal(srzmsg, &readmsg)
			if nil != err {
				t.Fatalf("failed Unmarshal, got error %v", err)
			}
			if !reflect.DeepEqual(msg, readmsg) {
				t.Errorf("failed round trip, %+v != %+v", readmsg, msg)
			}
		})
	}
}

func TestSafeSerializerRejectsInvalid(t *testing.T) {
	srz := WrapInSafeSerializer(JSONSerializer{})

	_, err := srz.Marshal(cardMsg{})
	if !errors.Is(err, ValidationError) {
		t.Errorf("Marshal did not fail with ValidationError, got %v", err)
	}
	if !errors.Is(err, Error) {
		t.Errorf("Marshal error is not a transport Error, got %v", err)
	}

	var msg cardMsg
	err = srz.Unmarshal([]byte(`{"cardId":""}`), &msg)
	if !errors.Is(err, ValidationError) {
		t.Errorf("Unmarshal did not fail with ValidationError, got %v", err)
	}

	err = srz.Unmarshal([]byte(`{"cardId":`), &msg)
	if !errors.Is(err, SerializationError) {
		t.Errorf("Unmarshal did not fail with SerializationError, got %v", err)
	}
}

func TestWrapInSafeSerializerIdempotent(t *testing.T) {
	s1 := WrapInSafeSerializer(CBORSerializer{})
	s2 := WrapInSafeSerializer(s1)
	if _, nested := s2.Serializer.(SafeSerializer); nested {
		t.Error("SafeSerializer was wrapped twice")
	}
}

func TestCBORSerializerDeterministic(t *testing.T) {
	srz := CBORSerializer{}
	msg := plainMsg{Key: "passEntries", Fields: map[string]any{"z": 1, "a": "x", "m": true}}

	first, err := srz.Marshal(msg)
	if nil != err {
		t.Fatalf("failed Marshal, got error %v", err)
	}
	for i := range 8 {
		again, err := srz.Marshal(msg)
		if nil != err {
			t.Fatalf("failed Marshal #%d, got error %v", i, err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("#%d: encoding is not deterministic", i)
		}
	}

	var readmsg plainMsg
	err = srz.Unmarshal(first, &readmsg)
	if nil != err {
		t.Fatalf("failed Unmarshal, got error %v", err)
	}
	if "x" != readmsg.Fields["a"] {
		t.Errorf("failed Fields control, got %+v", readmsg.Fields)
	}
}

func TestCBORSerializerDefaultMapType(t *testing.T) {
	srz := CBORSerializer{}
	srzmsg, err := srz.Marshal(map[string]any{"nested": map[string]any{"count": 2}})
	if nil != err {
		t.Fatalf("failed Marshal, got error %v", err)
	}

	var v any
	err = srz.Unmarshal(srzmsg, &v)
	if nil != err {
		t.Fatalf("failed Unmarshal, got error %v", err)
	}
	top, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("top level is %T, expected map[string]any", v)
	}
	if _, ok = top["nested"].(map[string]any); !ok {
		t.Errorf("nested level is %T, expected map[string]any", top["nested"])
	}
}
