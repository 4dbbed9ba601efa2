package matcher

import (
	"github.com/casbin/casbin/v2"

	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
)

// Subject identifies the authenticated principal a PolicyMatcher enforces
// against. PolicyMatcher reads it from the request Context's extensions as
// this type; it is not derived from the UserId / UsernameLabels extensions.
type Subject struct {
	ID    string
	Roles []string
}

// Resource is the (object, action) pair a PolicyMatcher evaluates. Callers
// supply a ResourceFunc to derive it from the request type in scope.
type Resource struct {
	Object string
	Action string
}

// ResourceFunc derives the (object, action) pair to authorize for req.
type ResourceFunc[Req any] func(req Req) Resource

// LastDenial is deposited into the capture Extensions, when one is passed,
// whenever a PolicyMatcher denies a request. A denial is a non-match, so a
// caller that commits captures only on a match (as HijackLayer does) never
// sees it; it reaches only a caller that inspects its own capture after a
// false result.
type LastDenial struct {
	Err *rerror.Error
}

// PolicyMatcher authorizes (subject, object, action) triples against a
// Casbin enforcer. A request with no Subject in its Context extensions is
// always denied: admission control must fail closed.
type PolicyMatcher[S, Req any] struct {
	enforcer casbin.IEnforcer
	resource ResourceFunc[Req]
}

// NewPolicyMatcher builds a PolicyMatcher backed by a pre-configured Casbin
// enforcer (model + policy already loaded by the caller).
func NewPolicyMatcher[S, Req any](enforcer casbin.IEnforcer, resource ResourceFunc[Req]) *PolicyMatcher[S, Req] {
	return &PolicyMatcher[S, Req]{enforcer: enforcer, resource: resource}
}

func (m *PolicyMatcher[S, Req]) Matches(capture *extensions.Extensions, ctx *racontext.Context[S], req Req) bool {
	subject, ok := extensions.Get[Subject](ctx.Extensions())
	if !ok {
		m.deny(capture, rerror.New(rerror.KindPolicy, "no authenticated subject"))
		return false
	}

	res := m.resource(req)
	allowed, err := m.enforceWithRoles(subject, res)
	if err != nil {
		m.deny(capture, rerror.Wrap(rerror.KindPolicy, err, "policy evaluation failed"))
		return false
	}
	if !allowed {
		m.deny(capture, rerror.New(rerror.KindPolicy, "access denied").
			WithField("subject", subject.ID).
			WithField("object", res.Object).
			WithField("action", res.Action))
		return false
	}
	return true
}

// enforceWithRoles checks the subject's own ID first, then each role,
// allowing if any one grants access — mirroring the RBAC-over-Casbin
// pattern of checking both the direct subject and its role grants.
func (m *PolicyMatcher[S, Req]) enforceWithRoles(subject Subject, res Resource) (bool, error) {
	allowed, err := m.enforcer.Enforce(subject.ID, res.Object, res.Action)
	if err != nil {
		return false, err
	}
	if allowed {
		return true, nil
	}
	for _, role := range subject.Roles {
		allowed, err := m.enforcer.Enforce(role, res.Object, res.Action)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

func (m *PolicyMatcher[S, Req]) deny(capture *extensions.Extensions, err *rerror.Error) {
	if capture != nil {
		extensions.Set(capture, LastDenial{Err: err})
	}
}
