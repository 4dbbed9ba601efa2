package rerror_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plabayo/rama-go/rerror"
)

func TestErrorMessageFormatting(t *testing.T) {
	t.Parallel()
	e := rerror.New(rerror.KindTimeout, "deadline exceeded")
	assert.Equal(t, "timeout: deadline exceeded", e.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("connection reset")
	e := rerror.Wrap(rerror.KindTransport, sentinel, "dial failed")

	assert.ErrorIs(t, e, sentinel)
	assert.Equal(t, "transport: dial failed: connection reset", e.Error())
}

func TestKindOfUnwrapsChain(t *testing.T) {
	t.Parallel()
	inner := rerror.New(rerror.KindPolicy, "rate limited")
	outer := rerror.Wrap(rerror.KindUpstream, inner, "proxy rejected")

	// The outer error itself classifies as KindUpstream, since it does not
	// delegate classification to its cause.
	assert.Equal(t, rerror.KindUpstream, rerror.KindOf(outer))
	assert.True(t, rerror.Is(inner, rerror.KindPolicy))

	// A plain wrapper around an *Error classifies as the wrapped Kind.
	assert.Equal(t, rerror.KindPolicy, rerror.KindOf(fmt.Errorf("context: %w", inner)))
}

func TestKindOfDefaultsToUpstream(t *testing.T) {
	t.Parallel()
	plain := errors.New("opaque failure")
	assert.Equal(t, rerror.KindUpstream, rerror.KindOf(plain))
}

func TestWithField(t *testing.T) {
	t.Parallel()
	e := rerror.New(rerror.KindProtocol, "bad frame").WithField("stream_id", 7)
	assert.Equal(t, 7, e.Fields["stream_id"])
}
