package utils

import (
	"encoding/json"
	"reflect"
	"testing"
)

type installableDump struct {
	Name string    `json:"name"`
	Data HexBinary `json:"data"`
}

func TestHexBinarySerialization(t *testing.T) {
	s1 := installableDump{Name: "activationData", Data: HexBinary{0, 1, 2, 3, 0xfe, 0xff}}
	srzs1, err := json.Marshal(s1)
	if nil != err {
		t.Fatalf("Oops, failed Marshal, got error %v", err)
	}
	if `{"name":"activationData","data":"00010203feff"}` != string(srzs1) {
		t.Errorf("failed json control, got %s", srzs1)
	}
	s2 := installableDump{}
	err = json.Unmarshal(srzs1, &s2)
	if nil != err {
		t.Fatalf("Oops, failed Unmarshal, got error %v", err)
	}
	if !reflect.DeepEqual(s1, s2) {
		t.Errorf("Oops, failed Unmarshal verif, %+v != %+v", s1, s2)
	}
}

func TestHexBinaryInvalidText(t *testing.T) {
	var hb HexBinary
	err := hb.UnmarshalText([]byte("zz"))
	if nil == err {
		t.Error("invalid hex text was accepted")
	}
}
