package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	check "gopkg.in/check.v1"
)

// Initialize and register an instance of the sessionPoolTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(sessionPoolTestSuite))

type sessionPoolTestSuite struct{}

// fakeSession implements the Session interface for pool tests.
type fakeSession struct {
	id       int
	doc      string
	closed   int32
	closeErr error
}

func (s *fakeSession) Fetch(_ context.Context, _ string) (string, error) {
	return s.doc, nil
}

func (s *fakeSession) Close() error {
	atomic.AddInt32(&s.closed, 1)

	return s.closeErr
}

func (s *sessionPoolTestSuite) TestPoolPrewarmsAllSlots(c *check.C) {
	var created int32
	pool, err := NewSessionPool(context.Background(), SessionPoolConfig{
		Size: 3,
		Factory: func(context.Context) (Session, error) {
			return &fakeSession{id: int(atomic.AddInt32(&created, 1))}, nil
		},
	})
	c.Assert(err, check.IsNil)
	defer pool.Shutdown()

	c.Assert(atomic.LoadInt32(&created), check.Equals, int32(3))
}

func (s *sessionPoolTestSuite) TestAcquireBlocksAtCapacity(c *check.C) {
	pool, err := NewSessionPool(context.Background(), SessionPoolConfig{
		Size: 1,
		Factory: func(context.Context) (Session, error) {
			return &fakeSession{}, nil
		},
	})
	c.Assert(err, check.IsNil)
	defer pool.Shutdown()

	session, err := pool.Acquire(context.Background())
	c.Assert(err, check.IsNil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pool.Acquire(ctx)
	c.Assert(errors.Is(err, context.DeadlineExceeded), check.Equals, true)

	pool.Release(session)

	next, err := pool.Acquire(context.Background())
	c.Assert(err, check.IsNil)
	c.Assert(next, check.Equals, session)
	pool.Release(next)
}

func (s *sessionPoolTestSuite) TestFailedSlotIsRetriedOnce(c *check.C) {
	var attempts int32
	pool, err := NewSessionPool(context.Background(), SessionPoolConfig{
		Size: 2,
		Factory: func(context.Context) (Session, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return nil, errors.New("browser crashed on startup")
			}

			return &fakeSession{}, nil
		},
	})
	c.Assert(err, check.IsNil)
	defer pool.Shutdown()

	c.Assert(atomic.LoadInt32(&attempts), check.Equals, int32(3))
}

func (s *sessionPoolTestSuite) TestRepeatedSlotFailureAbortsConstruction(c *check.C) {
	created := &fakeSession{}
	var attempts int32
	_, err := NewSessionPool(context.Background(), SessionPoolConfig{
		Size: 2,
		Factory: func(context.Context) (Session, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return created, nil
			}

			return nil, errors.New("browser crashed on startup")
		},
	})
	c.Assert(err, check.ErrorMatches, ".*warm slot 1.*browser crashed on startup")
	// Sessions warmed before the failure are torn down with the pool.
	c.Assert(atomic.LoadInt32(&created.closed), check.Equals, int32(1))
}

func (s *sessionPoolTestSuite) TestShutdownClosesEverySession(c *check.C) {
	sessions := []*fakeSession{
		{id: 0, closeErr: errors.New("close failed")},
		{id: 1},
		{id: 2},
	}

	var next int32
	pool, err := NewSessionPool(context.Background(), SessionPoolConfig{
		Size: 3,
		Factory: func(context.Context) (Session, error) {
			return sessions[atomic.AddInt32(&next, 1)-1], nil
		},
	})
	c.Assert(err, check.IsNil)

	err = pool.Shutdown()
	// The close failure is reported but does not stop teardown of the
	// remaining sessions.
	c.Assert(err, check.ErrorMatches, "(?s).*close failed.*")
	for _, session := range sessions {
		c.Assert(atomic.LoadInt32(&session.closed), check.Equals, int32(1))
	}
}

func (s *sessionPoolTestSuite) TestAcquireAfterShutdownFails(c *check.C) {
	pool, err := NewSessionPool(context.Background(), SessionPoolConfig{
		Size: 1,
		Factory: func(context.Context) (Session, error) {
			return &fakeSession{}, nil
		},
	})
	c.Assert(err, check.IsNil)
	c.Assert(pool.Shutdown(), check.IsNil)

	_, err = pool.Acquire(context.Background())
	c.Assert(errors.Is(err, ErrPoolClosed), check.Equals, true)
}

func (s *sessionPoolTestSuite) TestReleaseAfterShutdownClosesSession(c *check.C) {
	session := &fakeSession{}
	pool, err := NewSessionPool(context.Background(), SessionPoolConfig{
		Size: 1,
		Factory: func(context.Context) (Session, error) {
			return session, nil
		},
	})
	c.Assert(err, check.IsNil)

	acquired, err := pool.Acquire(context.Background())
	c.Assert(err, check.IsNil)
	c.Assert(pool.Shutdown(), check.IsNil)

	pool.Release(acquired)
	c.Assert(atomic.LoadInt32(&session.closed), check.Equals, int32(1))
}

func (s *sessionPoolTestSuite) TestPoolFetcherChecksSessionsInAndOut(c *check.C) {
	pool, err := NewSessionPool(context.Background(), SessionPoolConfig{
		Size: 1,
		Factory: func(context.Context) (Session, error) {
			return &fakeSession{doc: "<html>rendered</html>"}, nil
		},
	})
	c.Assert(err, check.IsNil)
	defer pool.Shutdown()

	fetcher := NewPoolFetcher(pool)
	for i := 0; i < 3; i++ {
		doc, err := fetcher.Fetch(context.Background(), "https://example.com")
		c.Assert(err, check.IsNil)
		c.Assert(doc, check.Equals, "<html>rendered</html>")
	}
}

func (s *sessionPoolTestSuite) TestConfigValidation(c *check.C) {
	_, err := NewSessionPool(context.Background(), SessionPoolConfig{})
	c.Assert(err, check.ErrorMatches,
		"(?s).*size must be greater than zero.*factory must not be nil.*")
}
