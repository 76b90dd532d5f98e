package lookdev

import "sort"

// Shader node type identifiers, matching the source application's node
// taxonomy.
const (
	NodeTypePrincipledBSDF = "BSDF_PRINCIPLED"
	NodeTypeImageTexture   = "TEX_IMAGE"
	NodeTypeNormalMap      = "NORMAL_MAP"
	NodeTypeDisplacement   = "DISPLACEMENT"
	NodeTypeOutput         = "OUTPUT_MATERIAL"
)

// NodeParam is one unlinked input value or node setting. Scalar inputs
// carry one value and colors three or four; enum settings use Enum.
type NodeParam struct {
	Name   string
	Values []float64
	Enum   string
}

type ShaderNode struct {
	Name   string
	Type   string
	Params []NodeParam
}

type ShaderLink struct {
	FromNode   string
	FromSocket string
	ToNode     string
	ToSocket   string
}

// ShaderGraph is a host-neutral snapshot of one material's node graph.
// Adapters build it from the live material; the core never touches host
// state through it.
type ShaderGraph struct {
	Nodes []ShaderNode
	Links []ShaderLink
}

func (g *ShaderGraph) node(name string) *ShaderNode {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i]
		}
	}
	return nil
}

func (g *ShaderGraph) firstOfType(nodeType string) *ShaderNode {
	for i := range g.Nodes {
		if g.Nodes[i].Type == nodeType {
			return &g.Nodes[i]
		}
	}
	return nil
}

func (g *ShaderGraph) linksInto(nodeName, socket string) []ShaderLink {
	var out []ShaderLink
	for _, l := range g.Links {
		if l.ToNode == nodeName && l.ToSocket == socket {
			out = append(out, l)
		}
	}
	return out
}

func (g *ShaderGraph) linkedSockets(nodeName string) map[string][]ShaderLink {
	out := make(map[string][]ShaderLink)
	for _, l := range g.Links {
		if l.ToNode == nodeName {
			out[l.ToSocket] = append(out[l.ToSocket], l)
		}
	}
	return out
}

// bsdfChannelSockets maps principled shader input sockets to bake
// channels. Emission appears under both its old and new socket name.
var bsdfChannelSockets = map[string]Channel{
	"Base Color":     ChannelBaseColor,
	"Roughness":      ChannelRoughness,
	"Metallic":       ChannelMetalness,
	"Normal":         ChannelNormal,
	"Emission":       ChannelEmission,
	"Emission Color": ChannelEmission,
}

// constantSockets are the unlinked principled inputs worth carrying to the
// target as material constants.
var constantSockets = map[string]bool{
	"Base Color":         true,
	"Metallic":           true,
	"Roughness":          true,
	"Alpha":              true,
	"IOR":                true,
	"Emission Strength":  true,
	"Specular":           true,
	"Specular IOR Level": true,
}

// GraphAnalysis is the bake plan for one material. Channels lists what
// must be baked and Constants holds the unlinked shader inputs.
// Unsupported names linked sockets the pipeline cannot express in the
// target.
type GraphAnalysis struct {
	Channels    []Channel
	Constants   map[string]AttrValue
	Unsupported []string
}

// AnalyzeGraph decides which channels of a material must be baked. A
// channel needs a bake when the corresponding shader input is driven by
// anything other than a plain image texture. Inputs fed directly by an
// image texture keep their texture. Unlinked inputs become constants.
func AnalyzeGraph(g *ShaderGraph) GraphAnalysis {
	res := GraphAnalysis{Constants: map[string]AttrValue{}}
	bsdf := g.firstOfType(NodeTypePrincipledBSDF)
	if bsdf == nil {
		res.Unsupported = append(res.Unsupported, "no principled shader node")
		return res
	}

	channels := map[Channel]bool{}
	linked := g.linkedSockets(bsdf.Name)

	sockets := make([]string, 0, len(linked))
	for s := range linked {
		sockets = append(sockets, s)
	}
	sort.Strings(sockets)

	for _, socket := range sockets {
		link := linked[socket][0]
		from := g.node(link.FromNode)
		if from == nil {
			continue
		}
		if socket == "Normal" {
			if needsNormalBake(g, from) {
				channels[ChannelNormal] = true
			}
			continue
		}
		if from.Type == NodeTypeImageTexture {
			continue
		}
		ch, ok := bsdfChannelSockets[socket]
		if !ok {
			res.Unsupported = append(res.Unsupported, socket)
			continue
		}
		channels[ch] = true
	}

	if needsDisplacementBake(g) {
		channels[ChannelDisplacement] = true
	}

	for _, p := range bsdf.Params {
		if !constantSockets[p.Name] {
			continue
		}
		if len(linked[p.Name]) > 0 {
			continue
		}
		if v, ok := paramValue(p); ok {
			res.Constants[p.Name] = v
		}
	}

	res.Channels = sortChannels(channels)
	return res
}

// needsNormalBake reports whether the normal input requires baking. A
// normal map node keeps its texture only when its color input comes
// straight from an image texture; an unlinked or procedural color
// input is baked down.
func needsNormalBake(g *ShaderGraph, from *ShaderNode) bool {
	switch from.Type {
	case NodeTypeImageTexture:
		return false
	case NodeTypeNormalMap:
		for _, l := range g.linksInto(from.Name, "Color") {
			src := g.node(l.FromNode)
			if src != nil && src.Type == NodeTypeImageTexture {
				return false
			}
		}
		return true
	}
	return true
}

func needsDisplacementBake(g *ShaderGraph) bool {
	out := g.firstOfType(NodeTypeOutput)
	if out == nil {
		return false
	}
	for _, l := range g.linksInto(out.Name, "Displacement") {
		disp := g.node(l.FromNode)
		if disp == nil || disp.Type != NodeTypeDisplacement {
			continue
		}
		fed := false
		for _, h := range g.linksInto(disp.Name, "Height") {
			src := g.node(h.FromNode)
			if src != nil && src.Type == NodeTypeImageTexture {
				fed = true
				break
			}
		}
		if !fed {
			return true
		}
	}
	return false
}

func paramValue(p NodeParam) (AttrValue, bool) {
	if p.Enum != "" {
		return Enum(p.Enum), true
	}
	switch len(p.Values) {
	case 1:
		return Scalar(p.Values[0]), true
	case 3, 4:
		return Color(p.Values[0], p.Values[1], p.Values[2]), true
	}
	return AttrValue{}, false
}
