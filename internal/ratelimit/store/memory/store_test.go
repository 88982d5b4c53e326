package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bastion/internal/ratelimit/models"
)

const testWindow = time.Minute

type StoreSuite struct {
	suite.Suite
	now       time.Time
	counters  *CounterStore
	blocks    *BlockStore
	overrides *OverrideStore
	ctx       context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	s.counters = NewCounterStore(clock)
	s.blocks = NewBlockStore(clock)
	s.overrides = NewOverrideStore(clock)
	s.ctx = context.Background()
}

func (s *StoreSuite) TestIncrement() {
	s.Run("first request starts a window", func() {
		count, resetAt, err := s.counters.Increment(s.ctx, "k:first", testWindow)
		s.Require().NoError(err)
		s.Equal(1, count)
		s.Equal(s.now.Add(testWindow), resetAt)
	})

	s.Run("counts accumulate within the window", func() {
		var count int
		for range 5 {
			count, _, _ = s.counters.Increment(s.ctx, "k:acc", testWindow)
		}
		s.Equal(5, count)
	})

	s.Run("window end resets the count", func() {
		_, _, _ = s.counters.Increment(s.ctx, "k:reset", testWindow)
		_, _, _ = s.counters.Increment(s.ctx, "k:reset", testWindow)
		s.now = s.now.Add(testWindow)
		count, resetAt, err := s.counters.Increment(s.ctx, "k:reset", testWindow)
		s.Require().NoError(err)
		s.Equal(1, count)
		s.Equal(s.now.Add(testWindow), resetAt)
	})
}

func (s *StoreSuite) TestDecrement() {
	_, _, _ = s.counters.Increment(s.ctx, "k", testWindow)
	s.Require().NoError(s.counters.Decrement(s.ctx, "k"))
	s.Require().NoError(s.counters.Decrement(s.ctx, "k"))
	s.Equal(0, s.counters.Count("k"))

	s.Require().NoError(s.counters.Decrement(s.ctx, "missing"))
}

func (s *StoreSuite) TestConcurrentIncrementsAreNotLost() {
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.counters.Increment(s.ctx, "k:concurrent", testWindow)
		}()
	}
	wg.Wait()
	s.Equal(100, s.counters.Count("k:concurrent"))
}

func (s *StoreSuite) TestBlocksExpire() {
	s.Require().NoError(s.blocks.Block(s.ctx, models.Block{IP: "10.0.0.1", Reason: "abuse", ExpiresAt: s.now.Add(time.Hour)}))

	b, err := s.blocks.Get(s.ctx, "10.0.0.1")
	s.Require().NoError(err)
	s.Require().NotNil(b)
	s.Equal("abuse", b.Reason)

	s.now = s.now.Add(time.Hour)
	b, err = s.blocks.Get(s.ctx, "10.0.0.1")
	s.Require().NoError(err)
	s.Nil(b)
}

func (s *StoreSuite) TestUnblock() {
	s.Require().NoError(s.blocks.Block(s.ctx, models.Block{IP: "10.0.0.2", ExpiresAt: s.now.Add(time.Hour)}))
	s.Require().NoError(s.blocks.Unblock(s.ctx, "10.0.0.2"))
	b, err := s.blocks.Get(s.ctx, "10.0.0.2")
	s.Require().NoError(err)
	s.Nil(b)
}

func (s *StoreSuite) TestOverrides() {
	s.Require().NoError(s.overrides.Set(s.ctx, "k", models.Override{Max: 2, Window: time.Hour, ExpiresAt: s.now.Add(time.Hour)}))
	o, err := s.overrides.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Require().NotNil(o)
	s.Equal(2, o.Max)

	s.now = s.now.Add(2 * time.Hour)
	o, err = s.overrides.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Nil(o)
}
