package events

import (
	"context"
	"fmt"
	"io"

	"github.com/farellandr/ticketgate/internal/apperr"
	"gopkg.in/yaml.v3"
)

// Seed is one entry of an events YAML file. Omitted keys keep their stored values.
type Seed struct {
	Slug       string  `yaml:"slug"`
	Name       *string `yaml:"name"`
	PriceMinor *int64  `yaml:"priceMinorUnits"`
	Active     *bool   `yaml:"active"`
	Title      *string `yaml:"title"`
	Excerpt    *string `yaml:"excerpt"`
	Date       *string `yaml:"date"`
	Location   *string `yaml:"location"`
	ImageURL   *string `yaml:"imageUrl"`
}

type seedFile struct {
	Events []Seed `yaml:"events"`
}

func ParseSeeds(r io.Reader) ([]Seed, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: parse events file: %v", apperr.ErrValidation, err)
	}

	seen := make(map[string]bool, len(f.Events))
	for i, s := range f.Events {
		if s.Slug == "" {
			return nil, fmt.Errorf("%w: events[%d] has no slug", apperr.ErrValidation, i)
		}
		if seen[s.Slug] {
			return nil, fmt.Errorf("%w: duplicate slug %q", apperr.ErrValidation, s.Slug)
		}
		seen[s.Slug] = true
	}
	return f.Events, nil
}

// Import upserts every seed and stops at the first failure.
func (s *Store) Import(ctx context.Context, seeds []Seed) (int, error) {
	for i, seed := range seeds {
		_, err := s.Upsert(ctx, seed.Slug, Patch{
			Name:       seed.Name,
			PriceMinor: seed.PriceMinor,
			Active:     seed.Active,
			Title:      seed.Title,
			Excerpt:    seed.Excerpt,
			Date:       seed.Date,
			Location:   seed.Location,
			ImageURL:   seed.ImageURL,
		})
		if err != nil {
			return i, fmt.Errorf("import %s: %w", seed.Slug, err)
		}
	}
	return len(seeds), nil
}
