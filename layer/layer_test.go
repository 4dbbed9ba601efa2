package layer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plabayo/rama-go/layer"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/service"
)

type noState struct{}

func reverseService() service.Service[noState, []byte, []byte] {
	return service.ServiceFuncNoCtx[noState, []byte, []byte](func(req []byte) ([]byte, error) {
		out := make([]byte, len(req))
		for i, b := range req {
			out[len(req)-1-i] = b
		}
		return out, nil
	})
}

// prefixLayer prepends a marker byte to the response, so composition order
// is observable.
func prefixLayer(marker byte) layer.Layer[noState, []byte, []byte] {
	return layer.LayerFunc[noState, []byte, []byte](func(inner service.Service[noState, []byte, []byte]) service.Service[noState, []byte, []byte] {
		return service.ServiceFunc[noState, []byte, []byte](func(ctx *racontext.Context[noState], req []byte) ([]byte, error) {
			resp, err := inner.Serve(ctx, req)
			if err != nil {
				return nil, err
			}
			return append([]byte{marker}, resp...), nil
		})
	})
}

func newCtx() *racontext.Context[noState] {
	return racontext.New(context.Background(), noState{})
}

func TestIdentityPassThrough(t *testing.T) {
	t.Parallel()
	inner := reverseService()
	wrapped := layer.Identity[noState, []byte, []byte]{}.Layer(inner)

	got, err := wrapped.Serve(newCtx(), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("cba"), got)

	want, err := inner.Serve(newCtx(), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEmptyStackIsIdentity(t *testing.T) {
	t.Parallel()
	inner := reverseService()
	stack := layer.NewStack[noState, []byte, []byte]()
	wrapped := stack.Layer(inner)

	got, err := wrapped.Serve(newCtx(), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("cba"), got)
}

func TestStackAppliesOutermostFirst(t *testing.T) {
	t.Parallel()
	inner := reverseService()
	stack := layer.NewStack[noState, []byte, []byte](prefixLayer('A'), prefixLayer('B'))
	wrapped := stack.Layer(inner)

	got, err := wrapped.Serve(newCtx(), []byte("x"))
	require.NoError(t, err)
	// B wraps innermost, so B's marker is applied first, then A's: A is
	// outermost and therefore appears first in the final byte slice.
	assert.Equal(t, []byte("ABx"), got)
}

func TestChainAssociativity(t *testing.T) {
	t.Parallel()
	inner := reverseService()
	a, b := prefixLayer('A'), prefixLayer('B')

	chained := layer.Chain[noState, []byte, []byte](a, b).Layer(inner)
	nested := a.Layer(b.Layer(inner))

	gotChained, err := chained.Serve(newCtx(), []byte("x"))
	require.NoError(t, err)
	gotNested, err := nested.Serve(newCtx(), []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, gotNested, gotChained)
}
