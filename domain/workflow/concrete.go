package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// ConcreteGraph is a composite template with every placeholder resolved to
// tenant-specific values, ready to hand to the execution engine.
type ConcreteGraph struct {
	Name        string       `json:"name"`
	Strategy    Strategy     `json:"strategy"`
	Nodes       []GraphNode  `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// Hash returns the sha256 hex digest of the graph's canonical JSON
// encoding. Node and connection order is canonicalized first so the hash is
// a pure function of graph content, which the orchestrator's idempotence
// short-circuit depends on.
func (g *ConcreteGraph) Hash() string {
	canonical := ConcreteGraph{
		Name:        g.Name,
		Strategy:    g.Strategy,
		Nodes:       append([]GraphNode(nil), g.Nodes...),
		Connections: append([]Connection(nil), g.Connections...),
	}
	sort.Slice(canonical.Nodes, func(i, j int) bool {
		return canonical.Nodes[i].ID < canonical.Nodes[j].ID
	})
	sort.Slice(canonical.Connections, func(i, j int) bool {
		a, b := canonical.Connections[i], canonical.Connections[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})

	// json.Marshal emits struct fields in declaration order and sorts map
	// keys, so the encoding is stable for identical content.
	data, err := json.Marshal(canonical)
	if err != nil {
		// Marshal of this type cannot fail; keep the signature simple.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
