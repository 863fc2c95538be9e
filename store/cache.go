package store

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// refCache caches the slow-moving reference tables (key inventory,
// employees). Custody entries are never cached. Entries expire after ttl;
// Invalidate drops them early.
type refCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	keyRefs []KeyReference
	keysAt  time.Time
	emps    []Employee
	empsAt  time.Time
}

func newRefCache(ttl time.Duration) *refCache {
	return &refCache{ttl: ttl}
}

func (c *refCache) keys(load func() ([]KeyReference, error)) ([]KeyReference, error) {
	c.mu.Lock()
	if c.keyRefs != nil && time.Since(c.keysAt) < c.ttl {
		refs := c.keyRefs
		c.mu.Unlock()
		return refs, nil
	}
	c.mu.Unlock()

	refs, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keyRefs = refs
	c.keysAt = time.Now()
	c.mu.Unlock()
	return refs, nil
}

func (c *refCache) employees(load func() ([]Employee, error)) ([]Employee, error) {
	c.mu.Lock()
	if c.emps != nil && time.Since(c.empsAt) < c.ttl {
		emps := c.emps
		c.mu.Unlock()
		return emps, nil
	}
	c.mu.Unlock()

	emps, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.emps = emps
	c.empsAt = time.Now()
	c.mu.Unlock()
	return emps, nil
}

func (c *refCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyRefs = nil
	c.emps = nil
}

func (c *refCache) Dump() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sb strings.Builder
	if c.keyRefs == nil {
		sb.WriteString("keys: (not cached)\n")
	} else {
		fmt.Fprintf(&sb, "keys (%d, loaded %s):\n", len(c.keyRefs), c.keysAt.Format("15:04:05"))
		for _, r := range c.keyRefs {
			fmt.Fprintf(&sb, "  %s x%d\n", r.Key, r.Count)
		}
	}
	if c.emps == nil {
		sb.WriteString("employees: (not cached)")
	} else {
		fmt.Fprintf(&sb, "employees (%d, loaded %s):", len(c.emps), c.empsAt.Format("15:04:05"))
		for _, e := range c.emps {
			fmt.Fprintf(&sb, "\n  %s %s [%s]", e.FirstName, e.LastName, JoinRoles(e.Roles))
		}
	}
	return sb.String()
}
