package location

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Forken21/botsat/internal/transform"
)

// StoreSuite exercises any Store implementation.
type StoreSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore()
	s.ctx = context.Background()
}

func (s *StoreSuite) observer(lat, lon, alt float64) transform.Observer {
	obs, err := transform.NewObserver(lat, lon, alt)
	s.Require().NoError(err)
	return obs
}

func (s *StoreSuite) TestSetAndGet() {
	s.Run("round trips a location", func() {
		moscow := s.observer(55.75, 37.62, 150)
		s.Require().NoError(s.store.Set(s.ctx, "user-1", moscow))

		got, err := s.store.Get(s.ctx, "user-1")
		s.Require().NoError(err)
		s.InDelta(55.75, got.LatDeg, 1e-12)
		s.InDelta(37.62, got.LonDeg, 1e-12)
		s.InDelta(150, got.AltM, 1e-12)
		s.InDelta(moscow.ECEF().Norm(), got.ECEF().Norm(), 1e-9)
	})

	s.Run("overwrites an existing location", func() {
		s.Require().NoError(s.store.Set(s.ctx, "user-2", s.observer(10, 10, 0)))
		s.Require().NoError(s.store.Set(s.ctx, "user-2", s.observer(-33.9, 18.4, 20)))

		got, err := s.store.Get(s.ctx, "user-2")
		s.Require().NoError(err)
		s.InDelta(-33.9, got.LatDeg, 1e-12)
	})

	s.Run("keeps users apart", func() {
		s.Require().NoError(s.store.Set(s.ctx, "a", s.observer(1, 2, 0)))
		s.Require().NoError(s.store.Set(s.ctx, "b", s.observer(3, 4, 0)))

		a, err := s.store.Get(s.ctx, "a")
		s.Require().NoError(err)
		s.InDelta(1, a.LatDeg, 1e-12)
	})
}

func (s *StoreSuite) TestNotFound() {
	_, err := s.store.Get(s.ctx, "nobody")
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestDelete() {
	s.Require().NoError(s.store.Set(s.ctx, "user-3", s.observer(0, 0, 0)))
	s.Require().NoError(s.store.Delete(s.ctx, "user-3"))

	_, err := s.store.Get(s.ctx, "user-3")
	s.ErrorIs(err, ErrNotFound)

	// Idempotent.
	s.NoError(s.store.Delete(s.ctx, "user-3"))
}

func (s *StoreSuite) TestInvalidUserID() {
	for _, id := range []string{"", "has space", "a:b", strings.Repeat("x", 129)} {
		_, err := s.store.Get(s.ctx, id)
		s.ErrorIs(err, ErrInvalidUser, "Get(%q)", id)
		s.ErrorIs(s.store.Set(s.ctx, id, s.observer(0, 0, 0)), ErrInvalidUser, "Set(%q)", id)
		s.ErrorIs(s.store.Delete(s.ctx, id), ErrInvalidUser, "Delete(%q)", id)
	}
}

func (s *StoreSuite) TestConcurrentUse() {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := "concurrent-" + string(rune('a'+i))
			obs, _ := transform.NewObserver(float64(i), float64(i), 0)
			for range 20 {
				if err := s.store.Set(s.ctx, id, obs); err != nil {
					s.T().Error(err)
					return
				}
				if _, err := s.store.Get(s.ctx, id); err != nil {
					s.T().Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() Store { return NewMemoryStore() }})
}

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		id string
		ok bool
	}{
		{"123456789", true},
		{"telegram-42", true},
		{"", false},
		{"a b", false},
		{"x*", false},
		{strings.Repeat("u", 128), true},
		{strings.Repeat("u", 129), false},
	}
	for _, tt := range tests {
		if err := ValidateUserID(tt.id); (err == nil) != tt.ok {
			t.Errorf("ValidateUserID(%q) = %v", tt.id, err)
		}
	}
}
