package raffle

import (
	"slices"
	"sync"
	"testing"
)

func TestSampler_Pick(t *testing.T) {
	s := NewSampler(1)

	t.Run("distinct indexes in range", func(t *testing.T) {
		for _, tc := range []struct{ n, k int }{{1, 1}, {5, 1}, {5, 5}, {20, 7}, {100, 15}} {
			got := s.Pick(tc.n, tc.k)
			if len(got) != tc.k {
				t.Fatalf("Pick(%d, %d) returned %d indexes", tc.n, tc.k, len(got))
			}
			seen := map[int]bool{}
			for _, i := range got {
				if i < 0 || i >= tc.n {
					t.Fatalf("Pick(%d, %d) returned out of range index %d", tc.n, tc.k, i)
				}
				if seen[i] {
					t.Fatalf("Pick(%d, %d) returned %d twice", tc.n, tc.k, i)
				}
				seen[i] = true
			}
		}
	})

	t.Run("k is clamped", func(t *testing.T) {
		if got := s.Pick(3, 5); len(got) != 3 {
			t.Errorf("expected 3 indexes, got %v", got)
		}
		if got := s.Pick(3, 0); got != nil {
			t.Errorf("expected nil for k=0, got %v", got)
		}
		if got := s.Pick(0, 1); got != nil {
			t.Errorf("expected nil for empty set, got %v", got)
		}
	})
}

func TestSampler_SeedIsReproducible(t *testing.T) {
	a, b := NewSampler(42), NewSampler(42)
	for i := 0; i < 50; i++ {
		x, y := a.Pick(30, 5), b.Pick(30, 5)
		if !slices.Equal(x, y) {
			t.Fatalf("round %d: %v != %v", i, x, y)
		}
	}
}

func TestSampler_Uniform(t *testing.T) {
	s := NewSampler(2024)

	t.Run("single pick", func(t *testing.T) {
		const trials = 40000
		counts := make([]int, 4)
		for i := 0; i < trials; i++ {
			counts[s.Pick(4, 1)[0]]++
		}
		for i, c := range counts {
			if c < 9400 || c > 10600 {
				t.Errorf("index %d picked %d times, expected about 10000", i, c)
			}
		}
	})

	t.Run("pairs", func(t *testing.T) {
		const trials = 60000
		counts := map[[2]int]int{}
		for i := 0; i < trials; i++ {
			p := s.Pick(4, 2)
			if p[0] > p[1] {
				p[0], p[1] = p[1], p[0]
			}
			counts[[2]int{p[0], p[1]}]++
		}
		if len(counts) != 6 {
			t.Fatalf("expected 6 distinct pairs, got %d", len(counts))
		}
		for pair, c := range counts {
			if c < 9400 || c > 10600 {
				t.Errorf("pair %v picked %d times, expected about 10000", pair, c)
			}
		}
	})
}

func TestSampler_ConcurrentUse(t *testing.T) {
	s := NewSampler(3)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := s.Pick(10, 3); len(got) != 3 {
					t.Errorf("expected 3 indexes, got %v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
