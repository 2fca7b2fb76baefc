package events

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/testutil"
)

const seedYAML = `
events:
  - slug: friday-seminar
    name: Friday Seminar
    priceMinorUnits: 19900
    date: "2026-11-06"
  - slug: open-day
    name: Open Day
    priceMinorUnits: 0
    active: false
`

func TestParseSeeds(t *testing.T) {
	seeds, err := ParseSeeds(strings.NewReader(seedYAML))
	if err != nil {
		t.Fatalf("ParseSeeds() error = %v", err)
	}
	if len(seeds) != 2 || *seeds[0].PriceMinor != 19900 || seeds[0].Active != nil || *seeds[1].Active {
		t.Fatalf("seeds = %+v", seeds)
	}

	bad := []struct {
		name string
		in   string
	}{
		{"missing slug", "events:\n  - name: x\n"},
		{"duplicate", "events:\n  - slug: a\n  - slug: a\n"},
		{"unknown key", "events:\n  - slug: a\n    cost: 5\n"},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSeeds(strings.NewReader(tt.in)); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("ParseSeeds() error = %v, want validation", err)
			}
		})
	}
}

func TestImport(t *testing.T) {
	store := NewStore(testutil.NewDB(t))
	ctx := context.Background()

	seeds, err := ParseSeeds(strings.NewReader(seedYAML))
	if err != nil {
		t.Fatal(err)
	}
	n, err := store.Import(ctx, seeds)
	if err != nil || n != 2 {
		t.Fatalf("Import() = %d, %v", n, err)
	}

	ev, err := store.Get(ctx, "friday-seminar")
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Active || ev.PriceMinor != 19900 || ev.Date != "2026-11-06" {
		t.Errorf("friday-seminar = %+v", ev)
	}
	if ev, _ := store.Get(ctx, "open-day"); ev.Active {
		t.Error("open-day should be inactive")
	}

	// A second import only touches what the file names.
	name := "Friday Seminar (moved)"
	if _, err := store.Import(ctx, []Seed{{Slug: "friday-seminar", Name: &name}}); err != nil {
		t.Fatal(err)
	}
	if ev, _ := store.Get(ctx, "friday-seminar"); ev.Name != name || ev.PriceMinor != 19900 {
		t.Errorf("after re-import = %+v", ev)
	}
}
