package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// ErrPoolClosed is returned by Acquire after the pool has been shut down.
var ErrPoolClosed = errors.New("session pool: closed")

// Session is a live, reusable page rendering resource. Sessions are
// expensive to create, so the pool keeps a fixed set alive for the duration
// of a run instead of creating one per page.
type Session interface {
	Fetcher

	// Close releases the resources held by the session.
	Close() error
}

// SessionFactory creates a new ready to use session.
type SessionFactory func(ctx context.Context) (Session, error)

// SessionPoolConfig encapsulates the configuration options for creating a
// new SessionPool.
type SessionPoolConfig struct {
	// Size is the fixed number of sessions the pool holds.
	Size int
	// Factory creates the pooled sessions.
	Factory SessionFactory
	// Logger is the logger for recording session lifecycle events. A nil
	// value disables logging.
	Logger *logrus.Entry
}

func (c *SessionPoolConfig) validate() error {
	var err error

	if c.Size <= 0 {
		err = multierror.Append(err, errors.New("size must be greater than zero"))
	}
	if c.Factory == nil {
		err = multierror.Append(err, errors.New("factory must not be nil"))
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// SessionPool is a fixed capacity pool of sessions. Acquire blocks while
// all sessions are checked out, which caps the number of concurrently open
// sessions at the pool size no matter how many workers fetch pages.
type SessionPool struct {
	conf     SessionPoolConfig
	sessions chan Session

	mu     sync.Mutex
	closed bool
}

// NewSessionPool creates a pool of conf.Size sessions, pre-warming every
// slot up front. A slot whose first creation attempt fails is retried once;
// a second failure aborts pool construction since a source that cannot
// sustain its configured session count is better failed fast than scraped
// at a crawl.
func NewSessionPool(ctx context.Context, conf SessionPoolConfig) (*SessionPool, error) {
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("session pool config validation: %w", err)
	}

	p := &SessionPool{
		conf:     conf,
		sessions: make(chan Session, conf.Size),
	}

	for i := 0; i < conf.Size; i++ {
		session, err := conf.Factory(ctx)
		if err != nil {
			conf.Logger.WithFields(logrus.Fields{
				"slot":  i,
				"cause": err,
			}).Warn("session creation failed, retrying slot")

			session, err = conf.Factory(ctx)
		}
		if err != nil {
			closeErr := p.Shutdown()
			if closeErr != nil {
				conf.Logger.WithField("cause", closeErr).
					Warn("session close failure during pool teardown")
			}

			return nil, fmt.Errorf("session pool: warm slot %d: %w", i, err)
		}

		p.sessions <- session
	}

	return p, nil
}

// Acquire checks a session out of the pool, blocking until one is free or
// the context is cancelled.
func (p *SessionPool) Acquire(ctx context.Context) (Session, error) {
	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}

		return session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a checked out session to the pool. Releasing into a shut
// down pool closes the session instead.
func (p *SessionPool) Release(session Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		if err := session.Close(); err != nil {
			p.conf.Logger.WithField("cause", err).
				Warn("session close failure after pool shutdown")
		}

		return
	}

	p.sessions <- session
}

// Static and compile-time check to ensure PoolFetcher implements the
// Fetcher interface.
var _ Fetcher = (*PoolFetcher)(nil)

// PoolFetcher adapts a SessionPool to the Fetcher interface: each Fetch
// checks a session out for the duration of the page load and returns it
// afterwards, so concurrent callers share the pooled sessions.
type PoolFetcher struct {
	pool *SessionPool
}

// NewPoolFetcher creates a Fetcher backed by the provided pool.
func NewPoolFetcher(pool *SessionPool) *PoolFetcher {
	return &PoolFetcher{pool: pool}
}

// Fetch retrieves the HTML document at the provided URL using a pooled
// session.
func (f *PoolFetcher) Fetch(ctx context.Context, url string) (string, error) {
	session, err := f.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("pool fetch %q: %w", url, err)
	}
	defer f.pool.Release(session)

	return session.Fetch(ctx, url)
}

// Shutdown closes the pool and every session currently checked in. Close
// failures are logged and accumulated; teardown always proceeds to the next
// session.
func (p *SessionPool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil
	}
	p.closed = true
	close(p.sessions)
	p.mu.Unlock()

	var err error
	for session := range p.sessions {
		if closeErr := session.Close(); closeErr != nil {
			p.conf.Logger.WithField("cause", closeErr).
				Warn("session close failure during pool shutdown")

			err = multierror.Append(err, closeErr)
		}
	}

	return err
}
