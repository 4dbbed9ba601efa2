package httpkit

import (
	"net/http"
	"path"
	"strings"

	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/matcher"
	"github.com/plabayo/rama-go/racontext"
)

// capturedPathParams is deposited into a matcher's capture Extensions by
// PathGlob on every successful match, recording the pattern and the
// matched path, mirroring how a router's captured path parameters become
// visible to the matched route.
type capturedPathParams map[string]string

// PathGlob matches req.URL.Path against a shell-style glob pattern
// (path.Match semantics: "*" matches any run of non-"/" characters, "?"
// matches one).
func PathGlob[S any](pattern string) matcher.Matcher[S, *http.Request] {
	return matcher.Func[S, *http.Request](func(capture *extensions.Extensions, _ *racontext.Context[S], req *http.Request) bool {
		ok, err := path.Match(pattern, req.URL.Path)
		if err != nil || !ok {
			return false
		}
		if capture != nil {
			extensions.Set(capture, capturedPathParams{"pattern": pattern, "path": req.URL.Path})
		}
		return true
	})
}

// MethodSet matches if req.Method is one of methods (case-sensitive, as
// HTTP methods are conventionally uppercase).
func MethodSet[S any](methods ...string) matcher.Matcher[S, *http.Request] {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	return matcher.Func[S, *http.Request](func(_ *extensions.Extensions, _ *racontext.Context[S], req *http.Request) bool {
		_, ok := set[req.Method]
		return ok
	})
}

// HeaderPredicate matches if header key's value passes pred. An absent
// header is passed "" to pred, so a predicate wanting "header must be
// absent" can check for the empty string explicitly.
func HeaderPredicate[S any](key string, pred func(value string) bool) matcher.Matcher[S, *http.Request] {
	return matcher.Func[S, *http.Request](func(_ *extensions.Extensions, _ *racontext.Context[S], req *http.Request) bool {
		return pred(req.Header.Get(key))
	})
}

// SocketAddrPredicate matches against the SocketInfo extension recorded by
// the listener at accept time, for IP allow/deny lists and the like.
func SocketAddrPredicate[S any](pred func(info racontext.SocketInfo) bool) matcher.Matcher[S, *http.Request] {
	return matcher.Func[S, *http.Request](func(_ *extensions.Extensions, ctx *racontext.Context[S], _ *http.Request) bool {
		info, ok := extensions.Get[racontext.SocketInfo](ctx.Extensions())
		if !ok {
			return false
		}
		return pred(info)
	})
}

// HTTPVersionSet matches if req.Proto is one of versions (e.g. "HTTP/1.1",
// "HTTP/2.0").
func HTTPVersionSet[S any](versions ...string) matcher.Matcher[S, *http.Request] {
	set := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		set[strings.ToUpper(v)] = struct{}{}
	}
	return matcher.Func[S, *http.Request](func(_ *extensions.Extensions, _ *racontext.Context[S], req *http.Request) bool {
		_, ok := set[strings.ToUpper(req.Proto)]
		return ok
	})
}
