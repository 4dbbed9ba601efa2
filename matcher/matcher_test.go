package matcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/matcher"
	"github.com/plabayo/rama-go/racontext"
)

type noState struct{}
type req struct{ Path string }

func newCtx() *racontext.Context[noState] {
	return racontext.New(context.Background(), noState{})
}

func pathIs(p string) matcher.Matcher[noState, req] {
	return matcher.Func[noState, req](func(capture *extensions.Extensions, _ *racontext.Context[noState], r req) bool {
		if r.Path != p {
			return false
		}
		if capture != nil {
			extensions.Set(capture, r.Path)
		}
		return true
	})
}

func TestPurity(t *testing.T) {
	t.Parallel()
	m := pathIs("/health")
	ctx := newCtx()
	r := req{Path: "/health"}

	first := m.Matches(nil, ctx, r)
	second := m.Matches(nil, ctx, r)
	assert.Equal(t, first, second)
	assert.True(t, first)
}

func TestAndShortCircuits(t *testing.T) {
	t.Parallel()
	calls := 0
	counting := matcher.Func[noState, req](func(*extensions.Extensions, *racontext.Context[noState], req) bool {
		calls++
		return true
	})
	m := matcher.And[noState, req](pathIs("/health"), pathIs("/other"), counting)
	assert.False(t, m.Matches(nil, newCtx(), req{Path: "/health"}))
	assert.Equal(t, 0, calls)
}

func TestOrCommitsOnlyWinningCapture(t *testing.T) {
	t.Parallel()
	m := matcher.Or[noState, req](pathIs("/a"), pathIs("/b"))
	capture := extensions.New()

	ok := m.Matches(capture, newCtx(), req{Path: "/b"})
	require.True(t, ok)

	v, ok := extensions.Get[string](capture)
	require.True(t, ok)
	assert.Equal(t, "/b", v)
}

func TestNoLeakOnFailedMatch(t *testing.T) {
	t.Parallel()
	m := pathIs("/health")
	capture := extensions.New()
	extensions.Set(capture, "pre-existing")

	ok := m.Matches(capture, newCtx(), req{Path: "/other"})
	assert.False(t, ok)

	// The matcher itself wrote nothing into capture since it returned
	// false before reaching the capture write — pre-existing state is
	// untouched.
	v, _ := extensions.Get[string](capture)
	assert.Equal(t, "pre-existing", v)
}

func TestNot(t *testing.T) {
	t.Parallel()
	m := matcher.Not[noState, req](pathIs("/health"))
	assert.True(t, m.Matches(nil, newCtx(), req{Path: "/other"}))
	assert.False(t, m.Matches(nil, newCtx(), req{Path: "/health"}))
}
