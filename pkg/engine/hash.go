package engine

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// contentHash computes an order-independent BLAKE2b-256 fingerprint over the
// final node and edge set of a graph. Two graphs compiled from the same
// program hash identically regardless of statement or emission order, which
// makes the hash usable as a plan-cache key.
//
// Volatile metadata (creation time) is deliberately excluded.
func contentHash(nodes map[string]*ExecutionNode, edges []ExecutionEdge) (string, error) {
	lines := make([]string, 0, len(nodes)+len(edges))

	for _, node := range nodes {
		cfg, err := json.Marshal(node.Config)
		if err != nil {
			return "", fmt.Errorf("marshal config for %s: %w", node.ID, err)
		}
		deps := append([]string(nil), node.Dependencies...)
		sort.Strings(deps)
		lines = append(lines, fmt.Sprintf("n|%s|%s|%s|%s|%s",
			node.ID, node.Type, node.Name, strings.Join(deps, ","), cfg))
	}

	for _, edge := range edges {
		lines = append(lines, fmt.Sprintf("e|%s|%s|%s", edge.From, edge.To, edge.Kind))
	}

	// Normalization: sorting the serialized lines removes any dependence on
	// map iteration or edge emission order.
	sort.Strings(lines)

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
