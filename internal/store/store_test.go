package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jmylchreest/blotch/internal/colour"
)

// openTest opens a store in a temp dir with a clock that ticks one second
// per call.
func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sub", "palettes.db"), nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func testPalette(t *testing.T) *colour.Palette {
	t.Helper()
	pix := make([]uint8, 0, 4*16)
	for range 16 {
		pix = append(pix, 0, 128, 255, 255)
	}
	p, err := colour.NewExtractor(nil).Extract(pix, 4, colour.Config{ColorSpace: colour.ColorSpaceRGB})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	return p
}

func TestGetPut(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want miss", ok, err)
	}

	want := testPalette(t)
	if err := s.Put(ctx, "k", "a.png", want); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = ok %v, err %v", ok, err)
	}
	if d := cmp.Diff(want, got, cmpopts.IgnoreUnexported(colour.Entry{}), cmpopts.EquateApprox(0, 1e-9)); d != "" {
		t.Errorf("palette mismatch (-want +got):\n%s", d)
	}

	// Overwrite keeps a single row.
	if err := s.Put(ctx, "k", "b.png", want); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != "b.png" || entries[0].Count != 1 || entries[0].ColorSpace != colour.ColorSpaceRGB {
		t.Errorf("List() = %+v", entries)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "palettes.db")

	s, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := s.Put(ctx, "k", "a.png", testPalette(t)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s.Close()
	if _, ok, err := s.Get(ctx, "k"); err != nil || !ok {
		t.Errorf("Get after reopen = ok %v, err %v", ok, err)
	}
}

func TestPruneKeepsMostRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	p := testPalette(t)

	for _, k := range []string{"a", "b", "c", "d"} {
		if err := s.Put(ctx, k, k+".png", p); err != nil {
			t.Fatal(err)
		}
	}
	// Touching "a" makes it the most recent.
	if _, _, err := s.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune() removed %d, want 2", removed)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	if d := cmp.Diff([]string{"a", "d"}, keys); d != "" {
		t.Errorf("kept keys mismatch (-want +got):\n%s", d)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	p := testPalette(t)
	for _, k := range []string{"a", "b"} {
		if err := s.Put(ctx, k, k, p); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Clear(ctx)
	if err != nil || removed != 2 {
		t.Fatalf("Clear() = %d, %v; want 2", removed, err)
	}
	if entries, _ := s.List(ctx); len(entries) != 0 {
		t.Errorf("List() after Clear = %+v", entries)
	}
}

func TestKey(t *testing.T) {
	pix := []uint8{1, 2, 3, 255, 4, 5, 6, 255}
	cfg := colour.Config{}

	base := Key(pix, 2, cfg)
	if base != Key(pix, 2, colour.DefaultConfig()) {
		t.Error("zero config and defaults produce different keys")
	}
	for name, other := range map[string]string{
		"width":  Key(pix, 1, cfg),
		"pixels": Key([]uint8{1, 2, 3, 255, 4, 5, 7, 255}, 2, cfg),
		"config": Key(pix, 2, colour.Config{QtyMax: 3}),
	} {
		if other == base {
			t.Errorf("changing %s did not change the key", name)
		}
	}
}
