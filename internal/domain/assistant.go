package domain

// AssistantConfig identifies a remote-held assistant: base model, instructions,
// enabled tools, and the uploaded files available for retrieval. The ID is
// issued by the remote service at creation time and reused across runs.
type AssistantConfig struct {
	ID           string
	Name         string
	Model        string
	Instructions string
	Tools        []Tool
	FileIDs      []string
}

// Tool enables one remote capability on an assistant (e.g. "retrieval").
type Tool struct {
	Type string `json:"type"`
}

// DocumentRef is the opaque identifier issued by the remote service for one
// successfully uploaded file. Immutable once issued; it has no effect on runs
// until attached to an assistant configuration.
type DocumentRef struct {
	FileID   string
	Path     string
	Filename string
}
