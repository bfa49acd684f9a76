// Package capability provides per-agent capability profiles: system
// instructions and tool enablement. The iteration loop reads an immutable
// snapshot once per iteration so concurrent configuration changes never tear
// an in-flight run.
package capability

import (
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/weft-ai/weft/internal/event"
	"github.com/weft-ai/weft/internal/logging"
	"github.com/weft-ai/weft/pkg/types"
)

// DefaultAgent is used when a session names no agent.
const DefaultAgent = "default"

// Snapshot is a read-only view of one agent's capabilities, taken at the
// start of an iteration. It never changes after creation.
type Snapshot struct {
	Agent         string
	SystemPrompt  string
	MaxIterations int

	// tools maps tool id patterns (doublestar wildcards allowed) to
	// enabled/disabled.
	tools map[string]bool
}

// ToolEnabled reports whether a tool may run under this snapshot.
// Exact matches win over wildcard patterns; unmatched tools default to
// enabled.
func (s Snapshot) ToolEnabled(toolID string) bool {
	if enabled, ok := s.tools[toolID]; ok {
		return enabled
	}
	for pattern, enabled := range s.tools {
		if matched, err := doublestar.Match(pattern, toolID); err == nil && matched {
			return enabled
		}
	}
	return true
}

// Source hands out capability snapshots. Profiles can be replaced at any
// time; snapshots already taken are unaffected.
type Source struct {
	mu       sync.RWMutex
	profiles map[string]types.AgentConfig
	bus      *event.Bus
	log      zerolog.Logger
}

// NewSource creates a source from the configured agent profiles.
func NewSource(profiles map[string]types.AgentConfig, bus *event.Bus) *Source {
	s := &Source{
		bus: bus,
		log: logging.For("capability"),
	}
	s.replace(profiles)
	return s
}

// Snapshot returns an immutable capability view for the named agent.
// Unknown agents get an empty profile: no instructions, all tools enabled.
func (s *Source) Snapshot(agent string) Snapshot {
	if agent == "" {
		agent = DefaultAgent
	}

	s.mu.RLock()
	profile := s.profiles[agent]
	s.mu.RUnlock()

	tools := make(map[string]bool, len(profile.Tools))
	for pattern, enabled := range profile.Tools {
		tools[pattern] = enabled
	}

	return Snapshot{
		Agent:         agent,
		SystemPrompt:  profile.Prompt,
		MaxIterations: profile.MaxIterations,
		tools:         tools,
	}
}

// Update replaces all profiles and announces the change on the bus.
func (s *Source) Update(profiles map[string]types.AgentConfig) {
	s.replace(profiles)

	if s.bus != nil {
		for agent := range profiles {
			s.bus.Publish(event.Event{
				Type: event.CapabilityUpdated,
				Data: event.CapabilityUpdatedData{Agent: agent},
			})
		}
	}
	s.log.Info().Int("agents", len(profiles)).Msg("capability profiles updated")
}

func (s *Source) replace(profiles map[string]types.AgentConfig) {
	copied := make(map[string]types.AgentConfig, len(profiles))
	for name, p := range profiles {
		copied[name] = p
	}

	s.mu.Lock()
	s.profiles = copied
	s.mu.Unlock()
}
