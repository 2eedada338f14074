package crawler

import (
	"errors"
	"fmt"
)

// TransportKind classifies a transport failure.
type TransportKind string

// Transport failure kinds.
const (
	// KindNetwork covers dial, TLS, timeout and other request-level failures.
	KindNetwork TransportKind = "network"
	// KindStatus is a response outside the 2xx range.
	KindStatus TransportKind = "status"
	// KindEnvelope is a well-formed JSON body carrying an "errors" list.
	KindEnvelope TransportKind = "envelope"
	// KindDecode is a 2xx body that does not match the expected contract.
	KindDecode TransportKind = "decode"
)

var (
	// ErrStructural reports that the expected content region is absent.
	ErrStructural = errors.New("content region not found")
	// ErrAsset reports that an individual media fetch failed.
	ErrAsset = errors.New("asset fetch failed")
)

// TransportError is returned by the response gate and by feed decoding.
type TransportError struct {
	Kind       TransportKind
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport %s failure for %s", e.Kind, e.URL)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TransportKindOf returns the kind of the wrapped *TransportError, or "".
func TransportKindOf(err error) TransportKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
