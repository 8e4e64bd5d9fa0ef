package domain

// Turn is a single persisted review turn: one question submitted to the
// assistant and the answer its run produced.
type Turn struct {
	PK       string
	SK       string
	ThreadID string
	Question string
	Answer   string
	RunID    string
	Status   string
	TTL      int64
}

// ThreadMeta stores aggregate per-thread state.
type ThreadMeta struct {
	PK           string
	SK           string
	ThreadID     string
	LastActivity string
	Turns        int
	TTL          int64
}
