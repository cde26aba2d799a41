package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/statushub/internal/status"
)

// Object is a catalog entry for a source or sink.
type Object struct {
	ID        status.ObjectID   `json:"id"`
	Name      string            `json:"name"`
	Kind      status.ObjectKind `json:"kind"`
	CreatedAt time.Time         `json:"created_at"`
}

// Catalog allocates object ids and resolves names to ids. It stands in
// for the platform catalog this subsystem collaborates with: creation
// and drop notifications flow from here into the hub.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[status.ObjectID]Object
	byName map[string]status.ObjectID
}

func New() *Catalog {
	return &Catalog{
		byID:   make(map[status.ObjectID]Object),
		byName: make(map[string]status.ObjectID),
	}
}

// Create allocates an id for name and registers the object. Ids are a
// kind prefix plus a random UUID, so they never repeat across process
// restarts and a new object can never inherit a log persisted by an
// earlier one. Readers join on ids but must not parse them.
func (c *Catalog) Create(name string, kind status.ObjectKind) (Object, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Object{}, fmt.Errorf("empty object name")
	}
	if kind != status.ObjectSource && kind != status.ObjectSink {
		return Object{}, fmt.Errorf("unknown object kind %q", kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byName[name]; exists {
		return Object{}, fmt.Errorf("object %q already exists", name)
	}
	prefix := "s"
	if kind == status.ObjectSink {
		prefix = "k"
	}
	obj := Object{
		ID:        status.ObjectID(prefix + uuid.NewString()),
		Name:      name,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	c.byID[obj.ID] = obj
	c.byName[name] = obj.ID
	return obj, nil
}

// Drop removes id from the catalog and returns the dropped entry.
func (c *Catalog) Drop(id status.ObjectID) (Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.byID[id]
	if !ok {
		return Object{}, fmt.Errorf("%w: %s", status.ErrUnknownObject, id)
	}
	delete(c.byID, id)
	delete(c.byName, obj.Name)
	return obj, nil
}

// Lookup resolves an id to its catalog entry.
func (c *Catalog) Lookup(id status.ObjectID) (Object, bool) {
	c.mu.RLock()
	obj, ok := c.byID[id]
	c.mu.RUnlock()
	return obj, ok
}

// Resolve resolves a name to its catalog entry.
func (c *Catalog) Resolve(name string) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	if !ok {
		return Object{}, false
	}
	return c.byID[id], true
}

// List returns registered objects of the given kind ("" for all),
// ordered by name for stable output.
func (c *Catalog) List(kind status.ObjectKind) []Object {
	c.mu.RLock()
	out := make([]Object, 0, len(c.byID))
	for _, obj := range c.byID {
		if kind != "" && obj.Kind != kind {
			continue
		}
		out = append(out, obj)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
