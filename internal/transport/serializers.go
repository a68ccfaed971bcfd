package transport

// Serializer is an interface that provides methods to Marshal/Unmarshal messages.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Checker is an interface that provides a method Check to validate messages.
type Checker interface {
	Check() error
}

// A SafeSerializer wraps a Serializer ensuring that marshaled/unmarshaled messages are validated.
type SafeSerializer struct {
	Serializer
}

// WrapInSafeSerializer returns a SafeSerializer wrapping s.
func WrapInSafeSerializer(s Serializer) SafeSerializer {
	if c, isSafeSerializer := s.(SafeSerializer); isSafeSerializer {
		return c
	}

	return SafeSerializer{Serializer: s}
}

// Marshal validates v if it is a Checker, then marshals it using the wrapped Serializer.
func (self SafeSerializer) Marshal(v any) ([]byte, error) {
	if c, validate := v.(Checker); validate {
		err := c.Check()
		if nil != err {
			return nil, wrapError(err, ValidationError, "refused marshalling invalid %T", v)
		}
	}

	srzmsg, err := self.Serializer.Marshal(v)
	if nil != err {
		return nil, wrapError(err, SerializationError, "failed marshalling %T", v)
	}

	return srzmsg, nil
}

// Unmarshal unmarshals data into v using the wrapped Serializer, then validates v if it is a Checker.
func (self SafeSerializer) Unmarshal(data []byte, v any) error {
	err := self.Serializer.Unmarshal(data, v)
	if nil != err {
		return wrapError(err, SerializationError, "failed unmarshalling %T", v)
	}

	if c, checkable := v.(Checker); checkable {
		err = c.Check()
		if nil != err {
			return wrapError(err, ValidationError, "unmarshalled invalid %T", v)
		}
	}

	return nil
}

var _ Serializer = SafeSerializer{}
