// Package catalog holds the static machine configuration.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/arkantrust/vending-checkout/models"
)

// ErrInvalidMachine is returned by New for a malformed machine list.
var ErrInvalidMachine = errors.New("invalid machine definition")

// Default returns the single test machine the backend ships with.
func Default() []models.Machine {
	return []models.Machine{{
		ID:                  "EXPCOCO01",
		DisplayName:         "Loja Teste",
		UnitPriceMinorUnits: 450,
		Active:              true,
	}}
}

// Catalog is a read-only set of machines keyed by id.
type Catalog struct {
	machines map[string]models.Machine
}

// New validates machines and builds a Catalog. Ids must be non-empty and
// unique; unit prices must be positive.
func New(machines []models.Machine) (*Catalog, error) {
	c := &Catalog{machines: make(map[string]models.Machine, len(machines))}
	for _, m := range machines {
		if m.ID == "" {
			return nil, fmt.Errorf("%w: empty id", ErrInvalidMachine)
		}
		if m.UnitPriceMinorUnits <= 0 {
			return nil, fmt.Errorf("%w: %s has non-positive price %d", ErrInvalidMachine, m.ID, m.UnitPriceMinorUnits)
		}
		if _, dup := c.machines[m.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidMachine, m.ID)
		}
		c.machines[m.ID] = m
	}
	return c, nil
}

// Lookup returns the machine with the given id, active or not.
func (c *Catalog) Lookup(id string) (models.Machine, bool) {
	m, ok := c.machines[id]
	return m, ok
}

// All returns every machine sorted by id.
func (c *Catalog) All() []models.Machine {
	items := make([]models.Machine, 0, len(c.machines))
	for _, m := range c.machines {
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
