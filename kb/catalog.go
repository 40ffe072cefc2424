package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/engagement-simulator/model"
)

var (
	ErrUnknownTarget      = errors.New("unknown target profile")
	ErrUnknownEnvironment = errors.New("unknown environment preset")
	ErrDuplicate          = errors.New("catalog entry already exists")
	ErrBadEntry           = errors.New("invalid catalog entry")
)

// Catalog is an in-memory, thread-safe store of target profiles and
// environment presets. Lookups of unknown ids fail fast; there is no
// fallback entry.
type Catalog struct {
	mu sync.RWMutex

	targets      map[model.TargetID]model.TargetProfile
	targetOrder  []model.TargetID
	environments map[model.EnvironmentID]model.EnvironmentPreset
	envOrder     []model.EnvironmentID
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		targets:      make(map[model.TargetID]model.TargetProfile),
		environments: make(map[model.EnvironmentID]model.EnvironmentPreset),
	}
}

// AddTarget registers a target profile. It returns an error if the ID
// already exists or the profile has no height.
func (c *Catalog) AddTarget(p model.TargetProfile) error {
	if p.ID == "" || p.BodyHeight <= 0 {
		return fmt.Errorf("%w: target %q", ErrBadEntry, p.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.targets[p.ID]; exists {
		return fmt.Errorf("%w: target %q", ErrDuplicate, p.ID)
	}
	c.targets[p.ID] = p
	c.targetOrder = append(c.targetOrder, p.ID)
	return nil
}

// AddEnvironment registers an environment preset. LaserOpacity must lie
// in (0, 1].
func (c *Catalog) AddEnvironment(e model.EnvironmentPreset) error {
	if e.ID == "" || e.LaserOpacity <= 0 || e.LaserOpacity > 1 {
		return fmt.Errorf("%w: environment %q", ErrBadEntry, e.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.environments[e.ID]; exists {
		return fmt.Errorf("%w: environment %q", ErrDuplicate, e.ID)
	}
	c.environments[e.ID] = e
	c.envOrder = append(c.envOrder, e.ID)
	return nil
}

// Target returns the profile for id.
func (c *Catalog) Target(id model.TargetID) (model.TargetProfile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.targets[id]
	if !ok {
		return model.TargetProfile{}, fmt.Errorf("%w: %q", ErrUnknownTarget, id)
	}
	return p, nil
}

// Environment returns the preset for id.
func (c *Catalog) Environment(id model.EnvironmentID) (model.EnvironmentPreset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.environments[id]
	if !ok {
		return model.EnvironmentPreset{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, id)
	}
	return e, nil
}

// ListTargets returns the registered profiles in registration order.
func (c *Catalog) ListTargets() []model.TargetProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]model.TargetProfile, 0, len(c.targetOrder))
	for _, id := range c.targetOrder {
		res = append(res, c.targets[id])
	}
	return res
}

// ListEnvironments returns the registered presets in registration order.
func (c *Catalog) ListEnvironments() []model.EnvironmentPreset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]model.EnvironmentPreset, 0, len(c.envOrder))
	for _, id := range c.envOrder {
		res = append(res, c.environments[id])
	}
	return res
}
