// Package catalog serves the read-only show and showtime seed data.
// The seed ships embedded in the binary; a Catalog never changes after
// construction, so it is safe for concurrent use without locking.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

//go:embed seed.json
var seedJSON []byte

// Catalog indexes shows and showtimes by id.
type Catalog struct {
	shows     []model.Show
	byID      map[string]int
	showtimes map[string]model.Showtime
}

// New builds a catalog from the given shows.  Showtime ids must be
// unique across all shows; the owning show id is filled in when
// missing.
func New(shows []model.Show) (*Catalog, error) {
	c := &Catalog{
		shows:     make([]model.Show, 0, len(shows)),
		byID:      make(map[string]int, len(shows)),
		showtimes: make(map[string]model.Showtime),
	}
	for _, s := range shows {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: show without id (%q)", s.Title)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate show id %q", s.ID)
		}
		sts := make([]model.Showtime, 0, len(s.Showtimes))
		for _, st := range s.Showtimes {
			if st.ShowID == "" {
				st.ShowID = s.ID
			}
			if st.ShowID != s.ID {
				return nil, fmt.Errorf("catalog: showtime %q claims show %q inside show %q", st.ID, st.ShowID, s.ID)
			}
			if _, dup := c.showtimes[st.ID]; dup {
				return nil, fmt.Errorf("catalog: duplicate showtime id %q", st.ID)
			}
			if st.Price <= 0 {
				return nil, fmt.Errorf("catalog: showtime %q has non-positive price", st.ID)
			}
			c.showtimes[st.ID] = st
			sts = append(sts, st)
		}
		s.Showtimes = sts
		c.byID[s.ID] = len(c.shows)
		c.shows = append(c.shows, s)
	}
	return c, nil
}

// Seed returns the catalog built from the embedded seed file.
func Seed() (*Catalog, error) {
	var shows []model.Show
	if err := json.Unmarshal(seedJSON, &shows); err != nil {
		return nil, fmt.Errorf("catalog: decode seed: %w", err)
	}
	return New(shows)
}

// MustSeed is Seed for process start-up and tests; it panics on a
// malformed embedded seed.
func MustSeed() *Catalog {
	c, err := Seed()
	if err != nil {
		panic(err)
	}
	return c
}

// ListShows returns every show in seed order.  The result is a copy.
func (c *Catalog) ListShows() []model.Show {
	out := make([]model.Show, 0, len(c.shows))
	for _, s := range c.shows {
		out = append(out, cloneShow(s))
	}
	return out
}

// GetShow returns the show with the given id or ErrShowNotFound.
func (c *Catalog) GetShow(id string) (model.Show, error) {
	i, ok := c.byID[id]
	if !ok {
		return model.Show{}, fmt.Errorf("show %q: %w", id, model.ErrShowNotFound)
	}
	return cloneShow(c.shows[i]), nil
}

// Showtime resolves a showtime id to its showtime and owning show.
func (c *Catalog) Showtime(id string) (model.Show, model.Showtime, error) {
	st, ok := c.showtimes[id]
	if !ok {
		return model.Show{}, model.Showtime{}, fmt.Errorf("showtime %q: %w", id, model.ErrShowNotFound)
	}
	return cloneShow(c.shows[c.byID[st.ShowID]]), st, nil
}

func cloneShow(s model.Show) model.Show {
	s.Showtimes = append([]model.Showtime(nil), s.Showtimes...)
	return s
}
