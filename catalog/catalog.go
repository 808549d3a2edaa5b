package catalog

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

//go:embed subjects.csv
var subjectsCSV string

// Subject is one immutable catalogue entry: the hidden entity players race
// to guess, with its ordered clue list and the categorical attributes used
// during reveal.
type Subject struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Region string   `json:"region"`
	Role   string   `json:"role"`
	Clues  []string `json:"clues"`
	Weight int      `json:"-"`
}

// Rarity tags are cosmetic, weighted so the flashy ones stay rare.
var rarityWeights = []struct {
	Tag    string
	Weight int
}{
	{"common", 60},
	{"rare", 25},
	{"epic", 12},
	{"legendary", 3},
}

// Catalog is the immutable subject lookup table.
type Catalog struct {
	subjects []Subject
	byID     map[string]Subject
	rng      *rand.Rand
}

// Load parses the embedded subject list. A nil rng gets a time-seeded default.
func Load(rng *rand.Rand) (*Catalog, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	reader := csv.NewReader(strings.NewReader(subjectsCSV))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse subject catalogue: %w", err)
	}

	c := &Catalog{byID: make(map[string]Subject), rng: rng}
	for i, record := range records {
		if i == 0 {
			continue // header
		}
		if len(record) < 6 {
			continue
		}
		weight, err := strconv.Atoi(record[4])
		if err != nil || weight <= 0 {
			weight = 1
		}
		s := Subject{
			ID:     record[0],
			Name:   record[1],
			Region: record[2],
			Role:   record[3],
			Clues:  strings.Split(record[5], ";"),
			Weight: weight,
		}
		if s.ID == "" {
			s.ID = slug.Make(s.Name)
		}
		c.subjects = append(c.subjects, s)
		c.byID[s.ID] = s
	}
	if len(c.subjects) == 0 {
		return nil, fmt.Errorf("subject catalogue is empty")
	}
	return c, nil
}

// Get looks up a subject by ID.
func (c *Catalog) Get(id string) (Subject, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Len returns the number of catalogue entries.
func (c *Catalog) Len() int {
	return len(c.subjects)
}

// PickWeightedRandom selects a subject with probability proportional to its
// rarity weight, skipping excluded IDs. When every subject is excluded it
// falls back to the full catalogue rather than failing.
func (c *Catalog) PickWeightedRandom(exclude map[string]bool) Subject {
	pool := make([]Subject, 0, len(c.subjects))
	total := 0
	for _, s := range c.subjects {
		if exclude[s.ID] {
			continue
		}
		pool = append(pool, s)
		total += s.Weight
	}
	if len(pool) == 0 {
		pool = c.subjects
		for _, s := range pool {
			total += s.Weight
		}
	}

	n := c.rng.Intn(total)
	for _, s := range pool {
		n -= s.Weight
		if n < 0 {
			return s
		}
	}
	return pool[len(pool)-1]
}

// PickRarity rolls one cosmetic rarity tag.
func (c *Catalog) PickRarity() string {
	total := 0
	for _, rw := range rarityWeights {
		total += rw.Weight
	}
	n := c.rng.Intn(total)
	for _, rw := range rarityWeights {
		n -= rw.Weight
		if n < 0 {
			return rw.Tag
		}
	}
	return rarityWeights[0].Tag
}
