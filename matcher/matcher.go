// Package matcher implements the pure boolean predicate used by routers,
// firewalls and hijackers. A Matcher may, while matching, deposit captured
// data (parsed path parameters, policy decision context) into a scratch
// Extensions; the caller commits that scratch into the live Context if and
// only if the overall match succeeds, so a failed match has no observable
// side effects on later alternatives tried by the caller.
package matcher

import (
	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/racontext"
)

// Matcher is a pure, fallible-free predicate over (Context, Request). If
// capture is non-nil, a match may write additional data into it.
type Matcher[S, Req any] interface {
	Matches(capture *extensions.Extensions, ctx *racontext.Context[S], req Req) bool
}

// Func adapts an ordinary function to the Matcher interface.
type Func[S, Req any] func(capture *extensions.Extensions, ctx *racontext.Context[S], req Req) bool

func (f Func[S, Req]) Matches(capture *extensions.Extensions, ctx *racontext.Context[S], req Req) bool {
	return f(capture, ctx, req)
}

// And returns a Matcher that matches iff every m matches. Short-circuits on
// the first non-match; per the no-leak invariant, captures written by
// matchers evaluated before the short-circuit are still discarded by the
// caller, since the overall expression did not succeed.
func And[S, Req any](ms ...Matcher[S, Req]) Matcher[S, Req] {
	return Func[S, Req](func(capture *extensions.Extensions, ctx *racontext.Context[S], req Req) bool {
		for _, m := range ms {
			if !m.Matches(capture, ctx, req) {
				return false
			}
		}
		return true
	})
}

// Or returns a Matcher that matches iff at least one m matches. Only the
// first matcher that succeeds contributes captures to capture; earlier
// non-matching attempts write into a scratch buffer that is thrown away so
// a failed alternative can never pollute a later one's view of capture.
func Or[S, Req any](ms ...Matcher[S, Req]) Matcher[S, Req] {
	return Func[S, Req](func(capture *extensions.Extensions, ctx *racontext.Context[S], req Req) bool {
		for _, m := range ms {
			scratch := extensions.New()
			if m.Matches(scratch, ctx, req) {
				if capture != nil {
					capture.Extend(scratch)
				}
				return true
			}
		}
		return false
	})
}

// Not negates m. Not never deposits captures, since a negated match
// carries no meaningful captured data.
func Not[S, Req any](m Matcher[S, Req]) Matcher[S, Req] {
	return Func[S, Req](func(_ *extensions.Extensions, ctx *racontext.Context[S], req Req) bool {
		return !m.Matches(nil, ctx, req)
	})
}

// Always is a Matcher that matches unconditionally.
func Always[S, Req any]() Matcher[S, Req] {
	return Func[S, Req](func(*extensions.Extensions, *racontext.Context[S], Req) bool { return true })
}
