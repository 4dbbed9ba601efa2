// Package dns implements the Resolver collaborator consulted by a
// connector chain's transport stage, with eager/lazy resolution modes
// selected by the racontext.DnsResolveMode extension.
package dns

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
)

var defaultNetResolver = net.DefaultResolver

// Resolver is the DNS collaborator a connector chain's transport stage
// consults before dialing. Address family and record-type lookups are
// kept as separate methods so a caller that only needs one RR type (an
// IPv6-only dialer, a TXT-based service discovery check) never pays for
// the others.
type Resolver interface {
	LookupIPv4(ctx context.Context, host string) ([]netip.Addr, error)
	LookupIPv6(ctx context.Context, host string) ([]netip.Addr, error)
	LookupTXT(ctx context.Context, host string) ([]string, error)
}

// netResolver backs Resolver with net.Resolver (the stdlib's own, itself
// pluggable via net.Resolver.PreferGo / Dial for DoH/DoT transports, which
// this kernel does not itself implement).
type netResolver struct {
	inner lookuper
}

type lookuper interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
	LookupTXT(ctx context.Context, host string) ([]string, error)
}

// NewResolver returns a Resolver backed by the stdlib's net.DefaultResolver.
func NewResolver() Resolver {
	return &netResolver{inner: defaultLookuper{}}
}

type defaultLookuper struct{}

func (defaultLookuper) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	return defaultNetResolver.LookupNetIP(ctx, network, host)
}

func (defaultLookuper) LookupTXT(ctx context.Context, host string) ([]string, error) {
	return defaultNetResolver.LookupTXT(ctx, host)
}

func (r *netResolver) LookupIPv4(ctx context.Context, host string) ([]netip.Addr, error) {
	return r.lookupIP(ctx, "ip4", host)
}

func (r *netResolver) LookupIPv6(ctx context.Context, host string) ([]netip.Addr, error) {
	return r.lookupIP(ctx, "ip6", host)
}

func (r *netResolver) lookupIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	addrs, err := r.inner.LookupNetIP(ctx, network, host)
	if err != nil {
		return nil, rerror.Wrap(rerror.KindTransport, err, "dns lookup").WithField("host", host).WithField("network", network)
	}
	if len(addrs) == 0 {
		return nil, rerror.New(rerror.KindTransport, "dns lookup returned no addresses").WithField("host", host)
	}
	return addrs, nil
}

func (r *netResolver) LookupTXT(ctx context.Context, host string) ([]string, error) {
	records, err := r.inner.LookupTXT(ctx, host)
	if err != nil {
		return nil, rerror.Wrap(rerror.KindTransport, err, "dns txt lookup").WithField("host", host)
	}
	return records, nil
}

type recordKind int

const (
	kindIPv4 recordKind = iota
	kindIPv6
	kindTXT
)

type cacheKey struct {
	kind recordKind
	host string
}

type cacheEntry struct {
	addrs   []netip.Addr
	txt     []string
	expires time.Time
}

// CachingResolver wraps a Resolver with a per-record-type TTL cache,
// honoring racontext.DnsResolveMode. A fresh cached entry is served in
// either mode. DnsResolveEager resolves (and caches) at call time when no
// fresh entry exists; DnsResolveLazy serves a cached
// entry past its TTL while kicking off a background refresh, trading
// staleness for latency on a hot path.
type CachingResolver struct {
	inner Resolver
	ttl   time.Duration

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

// NewCachingResolver wraps inner with an in-memory TTL cache.
func NewCachingResolver(inner Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{inner: inner, ttl: ttl, cache: make(map[cacheKey]cacheEntry)}
}

func (c *CachingResolver) LookupIPv4(ctx context.Context, host string) ([]netip.Addr, error) {
	return c.lookupIPWithMode(ctx, kindIPv4, host, modeFromContext(ctx))
}

func (c *CachingResolver) LookupIPv6(ctx context.Context, host string) ([]netip.Addr, error) {
	return c.lookupIPWithMode(ctx, kindIPv6, host, modeFromContext(ctx))
}

func (c *CachingResolver) LookupTXT(ctx context.Context, host string) ([]string, error) {
	entry, err := c.lookupWithMode(ctx, kindTXT, host, modeFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return entry.txt, nil
}

// extensionsCarrier is the subset of racontext.Context[S] needed to
// recover an embedded extension from a plain context.Context, without
// binding this package to any particular state type S.
type extensionsCarrier interface {
	Extensions() *extensions.Extensions
}

// modeFromContext recovers a racontext.DnsResolveMode previously deposited
// into ctx's Extensions, falling back to DnsResolveEager if ctx isn't a
// racontext.Context or never had one set. This lets the interface methods
// (LookupIPv4/LookupIPv6/LookupTXT) honor a mode carried on the request
// context itself, in addition to the explicit mode ResolveWithMode takes.
func modeFromContext(ctx context.Context) racontext.DnsResolveMode {
	carrier, ok := ctx.(extensionsCarrier)
	if !ok {
		return racontext.DnsResolveMode{Mode: racontext.DnsResolveEager}
	}
	mode, ok := extensions.Get[racontext.DnsResolveMode](carrier.Extensions())
	if !ok {
		return racontext.DnsResolveMode{Mode: racontext.DnsResolveEager}
	}
	return mode
}

// ResolveWithMode resolves host's IPv4 addresses honoring mode's
// eager/lazy semantics. Kept as the IPv4-specific entry point most
// connector transport stages actually need.
func (c *CachingResolver) ResolveWithMode(ctx context.Context, host string, mode racontext.DnsResolveMode) ([]netip.Addr, error) {
	return c.lookupIPWithMode(ctx, kindIPv4, host, mode)
}

// Resolve implements the plain IPv4 Resolve convenience using
// DnsResolveEager semantics.
func (c *CachingResolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	return c.ResolveWithMode(ctx, host, racontext.DnsResolveMode{Mode: racontext.DnsResolveEager})
}

func (c *CachingResolver) lookupIPWithMode(ctx context.Context, kind recordKind, host string, mode racontext.DnsResolveMode) ([]netip.Addr, error) {
	entry, err := c.lookupWithMode(ctx, kind, host, mode)
	if err != nil {
		return nil, err
	}
	return entry.addrs, nil
}

func (c *CachingResolver) lookupWithMode(ctx context.Context, kind recordKind, host string, mode racontext.DnsResolveMode) (cacheEntry, error) {
	key := cacheKey{kind: kind, host: host}

	c.mu.Lock()
	entry, ok := c.cache[key]
	c.mu.Unlock()

	fresh := ok && time.Now().Before(entry.expires)
	if fresh {
		return entry, nil
	}

	if ok && mode.Mode == racontext.DnsResolveLazy {
		go c.refresh(key)
		return entry, nil
	}

	return c.refreshSync(ctx, key)
}

func (c *CachingResolver) refreshSync(ctx context.Context, key cacheKey) (cacheEntry, error) {
	entry, err := c.fetch(ctx, key)
	if err != nil {
		return cacheEntry{}, err
	}
	c.store(key, entry)
	return entry, nil
}

func (c *CachingResolver) refresh(key cacheKey) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if entry, err := c.fetch(ctx, key); err == nil {
		c.store(key, entry)
	}
}

func (c *CachingResolver) fetch(ctx context.Context, key cacheKey) (cacheEntry, error) {
	switch key.kind {
	case kindIPv4:
		addrs, err := c.inner.LookupIPv4(ctx, key.host)
		return cacheEntry{addrs: addrs}, err
	case kindIPv6:
		addrs, err := c.inner.LookupIPv6(ctx, key.host)
		return cacheEntry{addrs: addrs}, err
	default:
		txt, err := c.inner.LookupTXT(ctx, key.host)
		return cacheEntry{txt: txt}, err
	}
}

func (c *CachingResolver) store(key cacheKey, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.expires = time.Now().Add(c.ttl)
	c.cache[key] = entry
}
