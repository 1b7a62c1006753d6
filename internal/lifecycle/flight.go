package lifecycle

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group serializes identical intents: while an intent with a given key is in
// flight, further calls with that key join it and receive its outcome
// instead of issuing their own request.
type Group struct {
	sf singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context shared by everyone waiting on one key. It is
// cancelled once the last waiter has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Do runs fn once per in-flight key. shared reports whether the outcome was
// delivered to more than one caller.
//
// fn runs on a context detached from any single caller. A caller whose ctx
// ends stops waiting and gets a network failure; the shared request is
// cancelled only when every caller has stopped waiting.
func Do[T any](ctx context.Context, g *Group, key string, fn func(ctx context.Context) (T, error)) (v T, shared bool, err error) {
	f := g.join(ctx, key)
	ch := g.sf.DoChan(key, func() (any, error) {
		return fn(f.ctx)
	})
	select {
	case r := <-ch:
		g.leave(key, f, false)
		if r.Err != nil {
			return v, r.Shared, r.Err
		}
		if r.Val != nil {
			v = r.Val.(T)
		}
		return v, r.Shared, nil
	case <-ctx.Done():
		g.leave(key, f, true)
		return v, false, Network(key, ctx.Err())
	}
}

func (g *Group) join(ctx context.Context, key string) *flight {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.flights == nil {
		g.flights = make(map[string]*flight)
	}
	f, ok := g.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		g.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops one waiter. When the last one abandons the flight it is
// cancelled and forgotten so the next caller starts a fresh request
// instead of joining the one being torn down.
func (g *Group) leave(key string, f *flight, abandoned bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if g.flights[key] == f {
		delete(g.flights, key)
	}
	if abandoned {
		g.sf.Forget(key)
	}
	f.cancel()
}
