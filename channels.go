package lookdev

import (
	"sort"
	"strings"
)

// Channel names one bakeable material aspect. Channel names double as
// texture file stems inside a bundle.
type Channel string

const (
	ChannelBaseColor    Channel = "base_color"
	ChannelRoughness    Channel = "roughness"
	ChannelMetalness    Channel = "metalness"
	ChannelNormal       Channel = "normal"
	ChannelEmission     Channel = "emission"
	ChannelDisplacement Channel = "displacement"
)

// channelRank fixes the processing and report order of channels.
var channelRank = map[Channel]int{
	ChannelBaseColor:    0,
	ChannelRoughness:    1,
	ChannelMetalness:    2,
	ChannelNormal:       3,
	ChannelEmission:     4,
	ChannelDisplacement: 5,
}

func sortChannels(set map[Channel]bool) []Channel {
	out := make([]Channel, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return channelRank[out[i]] < channelRank[out[j]] })
	return out
}

// channelSetFingerprint folds the channel set into a stable string for
// cache keys, so a bake cached under one analysis result is not reused
// after the set of required channels changed.
func channelSetFingerprint(channels []Channel) string {
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = string(ch)
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}

type ColorSpace string

const (
	ColorSpaceSRGB     ColorSpace = "srgb"
	ColorSpaceNonColor ColorSpace = "non-color"
)

// BakeMode selects the renderer bake pass, using the source renderer's
// pass identifiers.
type BakeMode string

const (
	BakeModeDiffuse BakeMode = "DIFFUSE"
	BakeModeRough   BakeMode = "ROUGHNESS"
	BakeModeNormal  BakeMode = "NORMAL"
	BakeModeEmit    BakeMode = "EMIT"
)

type PassFilter string

const PassColor PassFilter = "COLOR"

// ChannelSpec fixes how one channel bakes: pass, pass filters, color
// space, output resolution and supersampling. Specs are keyed by channel
// name; two materials baking the same channel at the same resolution use
// the same spec.
type ChannelSpec struct {
	Channel     Channel
	Mode        BakeMode
	Filter      []PassFilter
	ColorSpace  ColorSpace
	Resolution  int
	Margin      int
	Samples     int
	Supersample int
	NormalSpace string
}

// channelPolicy is the fixed per-channel part of a spec. Base color is
// the only channel kept in display space; everything else is data.
var channelPolicy = map[Channel]struct {
	mode        BakeMode
	filter      []PassFilter
	colorSpace  ColorSpace
	normalSpace string
}{
	ChannelBaseColor:    {BakeModeDiffuse, []PassFilter{PassColor}, ColorSpaceSRGB, ""},
	ChannelRoughness:    {BakeModeRough, nil, ColorSpaceNonColor, ""},
	ChannelMetalness:    {BakeModeEmit, nil, ColorSpaceNonColor, ""},
	ChannelNormal:       {BakeModeNormal, nil, ColorSpaceNonColor, "tangent"},
	ChannelEmission:     {BakeModeEmit, nil, ColorSpaceNonColor, ""},
	ChannelDisplacement: {BakeModeEmit, nil, ColorSpaceNonColor, ""},
}

// buildChannelSpecs assembles the full spec table from the run options.
func buildChannelSpecs(opts Options) map[Channel]ChannelSpec {
	specs := make(map[Channel]ChannelSpec, len(channelPolicy))
	for ch, pol := range channelPolicy {
		spec := ChannelSpec{
			Channel:     ch,
			Mode:        pol.mode,
			Filter:      pol.filter,
			ColorSpace:  pol.colorSpace,
			Resolution:  opts.Resolution,
			Margin:      opts.Margin,
			Samples:     opts.Samples,
			Supersample: opts.Supersample,
			NormalSpace: pol.normalSpace,
		}
		if ov, ok := opts.Channels[string(ch)]; ok {
			if ov.Resolution > 0 {
				spec.Resolution = ov.Resolution
			}
			if ov.Samples > 0 {
				spec.Samples = ov.Samples
			}
			if ov.Supersample > 0 {
				spec.Supersample = ov.Supersample
			}
		}
		specs[ch] = spec
	}
	return specs
}
