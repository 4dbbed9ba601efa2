package httpkit_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/httpkit"
	"github.com/plabayo/rama-go/racontext"
)

type noState struct{}

func TestConnServiceServesOneRequest(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})
	svc := httpkit.ConnService[noState](handler)

	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		ctx := racontext.New[noState](context.Background(), noState{})
		_, _ = svc.Serve(ctx, conn)
	}()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "hello", string(body))
}

func TestPathGlobMatches(t *testing.T) {
	t.Parallel()
	m := httpkit.PathGlob[noState]("/api/*")
	ctx := racontext.New[noState](context.Background(), noState{})
	req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)

	capture := extensions.New()
	assert.True(t, m.Matches(capture, ctx, req))

	req2 := httptest.NewRequest(http.MethodGet, "/other", nil)
	assert.False(t, m.Matches(extensions.New(), ctx, req2))
}

func TestMethodSetMatches(t *testing.T) {
	t.Parallel()
	m := httpkit.MethodSet[noState](http.MethodGet, http.MethodHead)
	ctx := racontext.New[noState](context.Background(), noState{})

	get := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, m.Matches(nil, ctx, get))

	post := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.False(t, m.Matches(nil, ctx, post))
}

func TestHeaderPredicateMatches(t *testing.T) {
	t.Parallel()
	m := httpkit.HeaderPredicate[noState]("X-Api-Key", func(v string) bool { return v == "secret" })
	ctx := racontext.New[noState](context.Background(), noState{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Api-Key", "secret")
	assert.True(t, m.Matches(nil, ctx, req))

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, m.Matches(nil, ctx, req2))
}

func TestSocketAddrPredicateReadsExtension(t *testing.T) {
	t.Parallel()
	ctx := racontext.New[noState](context.Background(), noState{})
	extensions.Set(ctx.Extensions(), racontext.SocketInfo{
		Peer: netip.MustParseAddrPort("127.0.0.1:9000"),
	})
	m := httpkit.SocketAddrPredicate[noState](func(info racontext.SocketInfo) bool {
		return info.Peer.Addr().String() == "127.0.0.1"
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, m.Matches(nil, ctx, req))
}

func TestHTTPVersionSetMatches(t *testing.T) {
	t.Parallel()
	m := httpkit.HTTPVersionSet[noState]("HTTP/1.1")
	ctx := racontext.New[noState](context.Background(), noState{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Proto = "HTTP/1.1"
	assert.True(t, m.Matches(nil, ctx, req))
}

func TestInspectHandlerReportsRequestShape(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/inspect?x=1", nil)
	rec := httptest.NewRecorder()
	httpkit.InspectHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body httpkit.InspectBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.MethodGet, body.Method)
	assert.Equal(t, "/inspect", body.Path)
}

func TestEchoHandlerReturnsBodyUnchanged(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`))
	rec := httptest.NewRecorder()
	httpkit.EchoHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"a":1}`, rec.Body.String())
}

func TestEchoHandlerRejectsMalformedBody(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	httpkit.EchoHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
