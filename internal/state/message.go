package state

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ContentPart is one piece of a (possibly multimodal) message body.
// Type is "text" or "image_url"; exactly one of Text/ImageURL is set.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Message is one turn in the conversation. Content is either a plain
// string (Text set, Parts nil) or a multimodal list (Parts set).
type Message struct {
	ID    string        `json:"id"`
	Role  Role          `json:"role"`
	Text  string        `json:"text,omitempty"`
	Parts []ContentPart `json:"parts,omitempty"`

	// ToolName/ToolCallID are set when Role == RoleTool.
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// IsMultimodal reports whether the message carries structured content
// parts instead of a flat text body.
func (m Message) IsMultimodal() bool {
	return len(m.Parts) > 0
}
