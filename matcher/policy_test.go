package matcher_test

import (
	"context"
	"testing"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/stretchr/testify/require"

	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/matcher"
	"github.com/plabayo/rama-go/racontext"
)

const testModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

const testPolicy = `
p, admin, /proxy/config, write
p, viewer, /proxy/config, read
`

func newTestEnforcer(t *testing.T) *casbin.Enforcer {
	t.Helper()
	m, err := model.NewModelFromString(testModel)
	require.NoError(t, err)
	adapter := stringadapter.NewAdapter(testPolicy)
	enforcer, err := casbin.NewEnforcer(m, adapter)
	require.NoError(t, err)
	return enforcer
}

func TestPolicyMatcherDeniesWithoutSubject(t *testing.T) {
	t.Parallel()
	enforcer := newTestEnforcer(t)
	m := matcher.NewPolicyMatcher[noState, req](enforcer, func(r req) matcher.Resource {
		return matcher.Resource{Object: r.Path, Action: "read"}
	})

	capture := extensions.New()
	ok := m.Matches(capture, newCtx(), req{Path: "/proxy/config"})
	require.False(t, ok)

	denial, found := extensions.Get[matcher.LastDenial](capture)
	require.True(t, found)
	require.NotNil(t, denial.Err)
}

func TestPolicyMatcherAllowsRole(t *testing.T) {
	t.Parallel()
	enforcer := newTestEnforcer(t)
	m := matcher.NewPolicyMatcher[noState, req](enforcer, func(r req) matcher.Resource {
		return matcher.Resource{Object: r.Path, Action: "read"}
	})

	ctx := racontext.New(context.Background(), noState{})
	extensions.Set(ctx.Extensions(), matcher.Subject{ID: "u1", Roles: []string{"viewer"}})

	ok := m.Matches(nil, ctx, req{Path: "/proxy/config"})
	require.True(t, ok)
}

func TestPolicyMatcherDeniesWrongAction(t *testing.T) {
	t.Parallel()
	enforcer := newTestEnforcer(t)
	m := matcher.NewPolicyMatcher[noState, req](enforcer, func(r req) matcher.Resource {
		return matcher.Resource{Object: r.Path, Action: "write"}
	})

	ctx := racontext.New(context.Background(), noState{})
	extensions.Set(ctx.Extensions(), matcher.Subject{ID: "u2", Roles: []string{"viewer"}})

	capture := extensions.New()
	ok := m.Matches(capture, ctx, req{Path: "/proxy/config"})
	require.False(t, ok)
}
