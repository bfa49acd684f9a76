package tool

import (
	"sort"
	"sync"

	"github.com/weft-ai/weft/internal/logging"
	"github.com/weft-ai/weft/internal/provider"
)

// Registry manages tool registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any tool with the same id.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logging.Debug().Str("tool", tool.ID()).Msg("registering tool")
	r.tools[tool.ID()] = tool
}

// Get retrieves a tool by id.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// List returns all registered tools sorted by id.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].ID() < tools[j].ID() })
	return tools
}

// Defs returns provider tool definitions for every registered tool that the
// filter accepts. A nil filter accepts everything.
func (r *Registry) Defs(filter func(toolID string) bool) []provider.ToolDef {
	var defs []provider.ToolDef
	for _, t := range r.List() {
		if filter != nil && !filter(t.ID()) {
			continue
		}
		defs = append(defs, provider.ToolDef{
			Name:        t.ID(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// DefaultRegistry creates a registry with all built-in tools.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewClockTool())
	r.Register(NewCalculatorTool())
	r.Register(NewWebFetchTool())
	return r
}
