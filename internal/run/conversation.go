package run

import (
	"github.com/weft-ai/weft/pkg/types"
)

// Conversation is the ordered message context for one session. It holds
// exactly one system message, always at index 0, rebuilt at the start of
// every iteration from the capability snapshot. A conversation is owned
// exclusively by its active run for the run's lifetime.
type Conversation struct {
	Agent    string
	Messages []types.Message
}

// NewConversation creates a conversation for the given agent.
func NewConversation(agent string) *Conversation {
	return &Conversation{Agent: agent}
}

// SetSystem rebuilds the system message at index 0.
func (c *Conversation) SetSystem(prompt string) {
	system := types.Message{Role: types.RoleSystem, Content: prompt}
	if len(c.Messages) > 0 && c.Messages[0].Role == types.RoleSystem {
		c.Messages[0] = system
		return
	}
	c.Messages = append([]types.Message{system}, c.Messages...)
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg types.Message) {
	c.Messages = append(c.Messages, msg)
}

// snapshot returns a copy of the message slice for later restore.
func (c *Conversation) snapshot() []types.Message {
	return append([]types.Message(nil), c.Messages...)
}

// restore puts the conversation back to a previously taken snapshot. Used
// when a run is cancelled so the conversation looks exactly as it did before
// the run started.
func (c *Conversation) restore(messages []types.Message) {
	c.Messages = messages
}
