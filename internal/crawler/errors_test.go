package crawler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportErrorFormattingAndUnwrap(t *testing.T) {
	t.Parallel()

	root := errors.New("connection reset")
	err := fmt.Errorf("fetch page: %w", &TransportError{Kind: KindNetwork, URL: "https://x", Err: root})

	assert.Equal(t, KindNetwork, TransportKindOf(err))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, "fetch page: transport network failure for https://x: connection reset", err.Error())

	status := &TransportError{Kind: KindStatus, URL: "https://y", StatusCode: 404}
	assert.Equal(t, "transport status failure for https://y (status 404)", status.Error())

	assert.Equal(t, TransportKind(""), TransportKindOf(errors.New("plain")))
	assert.Equal(t, TransportKind(""), TransportKindOf(nil))
}
