package lookdev

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"slices"
	"strconv"
	"strings"
)

// StructuralHash digests a shader graph's structure and parameters into a
// stable hex string. Nodes, parameters and links are folded in canonical
// order, so the hash is independent of adapter enumeration order. Any
// change to a node type, a parameter value or a link changes the hash.
func StructuralHash(g *ShaderGraph) string {
	h := sha256.New()

	nodes := slices.Clone(g.Nodes)
	slices.SortFunc(nodes, func(a, b ShaderNode) int {
		return strings.Compare(a.Name, b.Name)
	})
	for _, n := range nodes {
		io.WriteString(h, "node\x00")
		io.WriteString(h, n.Name)
		io.WriteString(h, "\x00")
		io.WriteString(h, n.Type)
		io.WriteString(h, "\x00")
		params := slices.Clone(n.Params)
		slices.SortFunc(params, func(a, b NodeParam) int {
			return strings.Compare(a.Name, b.Name)
		})
		for _, p := range params {
			io.WriteString(h, p.Name)
			io.WriteString(h, "\x00")
			io.WriteString(h, p.Enum)
			for _, v := range p.Values {
				io.WriteString(h, "\x00")
				io.WriteString(h, strconv.FormatFloat(v, 'g', -1, 64))
			}
			io.WriteString(h, "\x00")
		}
	}

	links := slices.Clone(g.Links)
	slices.SortFunc(links, func(a, b ShaderLink) int {
		if c := strings.Compare(a.FromNode, b.FromNode); c != 0 {
			return c
		}
		if c := strings.Compare(a.FromSocket, b.FromSocket); c != 0 {
			return c
		}
		if c := strings.Compare(a.ToNode, b.ToNode); c != 0 {
			return c
		}
		return strings.Compare(a.ToSocket, b.ToSocket)
	})
	for _, l := range links {
		io.WriteString(h, "link\x00")
		io.WriteString(h, l.FromNode)
		io.WriteString(h, "\x00")
		io.WriteString(h, l.FromSocket)
		io.WriteString(h, "\x00")
		io.WriteString(h, l.ToNode)
		io.WriteString(h, "\x00")
		io.WriteString(h, l.ToSocket)
		io.WriteString(h, "\x00")
	}

	return hex.EncodeToString(h.Sum(nil))
}
