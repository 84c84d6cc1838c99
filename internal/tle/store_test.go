package tle

import (
	"slices"
	"sync"
	"testing"
	"time"
)

func TestStoreSwap(t *testing.T) {
	s := NewStore(GroupISS, GroupNOAA)
	if got := s.LoadedGroups(); len(got) != 0 {
		t.Fatalf("empty store reports loaded groups %v", got)
	}
	if s.Get(GroupISS) != nil {
		t.Fatal("Get on empty slot returned a catalog")
	}

	first, _ := Load(GroupISS, "test", []byte(stationsText()), testEpoch)
	if prev := s.Swap(first); prev != nil {
		t.Errorf("first Swap returned %v", prev)
	}
	second, _ := Load(GroupISS, "test", []byte(stationsText()), testEpoch.Add(time.Hour))
	if prev := s.Swap(second); prev != first {
		t.Error("Swap did not return the previous snapshot")
	}
	if s.Get(GroupISS) != second {
		t.Error("Get does not see the new snapshot")
	}
	if got := s.LoadedGroups(); !slices.Equal(got, []string{GroupISS}) {
		t.Errorf("LoadedGroups = %v, want [%s]", got, GroupISS)
	}

	noaa, _ := Load(GroupNOAA, "test", []byte(weatherText()), testEpoch)
	s.Swap(noaa)
	if got := s.LoadedGroups(); !slices.Equal(got, []string{GroupISS, GroupNOAA}) {
		t.Errorf("LoadedGroups = %v, want both groups", got)
	}
}

func TestStoreAddsUnknownGroup(t *testing.T) {
	s := NewStore(GroupISS)
	cat, _ := Load("extra", "test", []byte(weatherText()), testEpoch)
	s.Swap(cat)

	if got := s.Groups(); !slices.Equal(got, []string{"extra", GroupISS}) {
		t.Errorf("Groups = %v", got)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(GroupISS)
	cat, _ := Load(GroupISS, "test", []byte(stationsText()), testEpoch)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Swap(cat)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if c := s.Get(GroupISS); c != nil && c.Len() != 2 {
					t.Errorf("torn snapshot with %d sets", c.Len())
				}
				s.Groups()
			}
		}()
	}
	wg.Wait()
}
