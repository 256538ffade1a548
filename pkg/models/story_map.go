package models

// MapNode is one tale in a story map. Label is the title when present,
// otherwise a truncated body preview.
type MapNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// MapEdge is one continuation relationship in a story map
type MapEdge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Votes    int    `json:"votes"`
}

// StoryMap is the full node/edge set of one story tree
type StoryMap struct {
	Nodes []MapNode `json:"nodes"`
	Edges []MapEdge `json:"edges"`
}
