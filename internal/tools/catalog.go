// Package tools declares the invokable tools, binds them to their
// implementations and keeps the catalog in sync with the manifest.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oremus-labs/ol-tool-relay/internal/validator"
)

// Output is what a tool produced.
type Output struct {
	// Text is the human-readable result broadcast to subscribers.
	Text string
	// Value is an optional machine-readable result.
	Value interface{}
}

// Handler executes a tool with already-validated arguments.
type Handler interface {
	Execute(ctx context.Context, args map[string]interface{}) (Output, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args map[string]interface{}) (Output, error)

func (f HandlerFunc) Execute(ctx context.Context, args map[string]interface{}) (Output, error) {
	return f(ctx, args)
}

// Tool is a declared tool with its compiled schema and implementation.
type Tool struct {
	Declaration
	Schema  *validator.Schema
	Handler Handler
}

// Catalog maps tool names to tools. Manifest reloads swap the whole set.
type Catalog struct {
	handlers map[string]Handler

	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewCatalog creates a catalog that can serve the given implementations.
func NewCatalog(handlers map[string]Handler) *Catalog {
	hs := make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		hs[name] = h
	}
	return &Catalog{handlers: hs, tools: map[string]*Tool{}}
}

// Load compiles every declaration and replaces the catalog contents. On error
// the previous contents stay in place. Declarations without an implementation
// are skipped and reported.
func (c *Catalog) Load(m *Manifest) (skipped []string, err error) {
	next := make(map[string]*Tool, len(m.Tools))
	for _, decl := range m.Tools {
		handler, ok := c.handlers[decl.Name]
		if !ok {
			skipped = append(skipped, decl.Name)
			continue
		}
		schema, err := validator.Compile(decl.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", decl.Name, err)
		}
		next[decl.Name] = &Tool{Declaration: decl, Schema: schema, Handler: handler}
	}
	if len(next) == 0 {
		return skipped, fmt.Errorf("manifest declares no implemented tools")
	}

	c.mu.Lock()
	c.tools = next
	c.mu.Unlock()
	return skipped, nil
}

// Lookup returns the tool registered under name.
func (c *Catalog) Lookup(name string) (*Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

// List returns the available declarations sorted by name.
func (c *Catalog) List() []Declaration {
	c.mu.RLock()
	out := make([]Declaration, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t.Declaration)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
