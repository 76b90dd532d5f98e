package lookdev

import (
	"encoding/json"
	"fmt"
	"sort"
)

type AttrType uint32

const (
	AttrScalar   AttrType = 0
	AttrColor3   AttrType = 1
	AttrAngle    AttrType = 2 // radians
	AttrDistance AttrType = 3 // meters
	AttrEnum     AttrType = 4
)

func (t AttrType) String() string {
	switch t {
	case AttrScalar:
		return "scalar"
	case AttrColor3:
		return "color"
	case AttrAngle:
		return "angle"
	case AttrDistance:
		return "distance"
	case AttrEnum:
		return "enum"
	}
	return fmt.Sprintf("AttrType(%d)", uint32(t))
}

// AttrValue is one typed attribute value. Exactly one of Num, Color or
// Enum is meaningful, selected by Type.
type AttrValue struct {
	Type  AttrType
	Num   float64
	Color [3]float64
	Enum  string
}

func Scalar(v float64) AttrValue        { return AttrValue{Type: AttrScalar, Num: v} }
func Color(r, g, b float64) AttrValue   { return AttrValue{Type: AttrColor3, Color: [3]float64{r, g, b}} }
func Angle(radians float64) AttrValue   { return AttrValue{Type: AttrAngle, Num: radians} }
func Distance(meters float64) AttrValue { return AttrValue{Type: AttrDistance, Num: meters} }
func Enum(v string) AttrValue           { return AttrValue{Type: AttrEnum, Enum: v} }

func (v AttrValue) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case AttrColor3:
		return json.Marshal(struct {
			Type  string     `json:"type"`
			Value [3]float64 `json:"value"`
		}{v.Type.String(), v.Color})
	case AttrEnum:
		return json.Marshal(struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		}{v.Type.String(), v.Enum})
	default:
		return json.Marshal(struct {
			Type  string  `json:"type"`
			Value float64 `json:"value"`
		}{v.Type.String(), v.Num})
	}
}

type MappingClass uint32

const (
	// MapExact marks a lossless translation, unit conversions included.
	MapExact MappingClass = 0
	// MapApproximated marks a translation with a documented semantic gap.
	MapApproximated MappingClass = 1
	// MapDropped marks a source attribute with no target equivalent or an
	// invalid source value. The target side keeps its default.
	MapDropped MappingClass = 2
)

func (c MappingClass) String() string {
	switch c {
	case MapExact:
		return "exact"
	case MapApproximated:
		return "approximated"
	case MapDropped:
		return "dropped"
	}
	return fmt.Sprintf("MappingClass(%d)", uint32(c))
}

func (c MappingClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *MappingClass) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "exact":
		*c = MapExact
	case "approximated":
		*c = MapApproximated
	case "dropped":
		*c = MapDropped
	default:
		return fmt.Errorf("unknown mapping class %q", s)
	}
	return nil
}

// ReportEntry records the fate of one source attribute. Target is empty
// for dropped attributes and for rules that absorb a source attribute
// into target-model semantics without emitting a value.
type ReportEntry struct {
	Source string       `json:"source"`
	Target string       `json:"target,omitempty"`
	Class  MappingClass `json:"class"`
	Reason string       `json:"reason,omitempty"`
}

// MappingReport accounts for every source attribute of one mapped
// parameter set. Entries are sorted by source attribute name, so two runs
// over the same input produce byte-identical reports.
type MappingReport struct {
	Entries []ReportEntry `json:"entries"`
}

// Counts returns the number of exact, approximated and dropped entries.
func (r MappingReport) Counts() (exact, approximated, dropped int) {
	for _, e := range r.Entries {
		switch e.Class {
		case MapExact:
			exact++
		case MapApproximated:
			approximated++
		case MapDropped:
			dropped++
		}
	}
	return
}

// Rule translates one target attribute from one or more source attributes.
//
// Sources lists the attributes the rule consumes for reporting; each must
// be present for the rule to apply. Convert may read any attribute in the
// record, but only consumed sources appear in the report under this rule.
// A rule with an empty Target absorbs its sources without emitting a
// target value. Rules are tried in order; the first applicable rule wins
// the target attribute.
type Rule struct {
	Target  string
	Sources []string
	Applies func(attrs map[string]AttrValue) bool
	Convert func(attrs map[string]AttrValue) (AttrValue, MappingClass, string)
}

// RuleSet is the ordered rule list for one target parameter model, plus
// target-side defaults used when no rule produced a value.
type RuleSet struct {
	TargetKind string
	Defaults   map[string]AttrValue
	Rules      []Rule
}

// TargetSchema bundles the rule sets for every supported light kind and
// for material constants.
type TargetSchema struct {
	Name     string
	Kinds    map[LightKind]*RuleSet
	Material *RuleSet
}

// MapAttributes runs a rule set over a source attribute record. It
// returns the target attribute values and a report entry for every source
// attribute: consumed ones under their rule's classification, leftovers
// as dropped. The same input always yields the same output.
func MapAttributes(attrs map[string]AttrValue, rs *RuleSet) (map[string]AttrValue, []ReportEntry) {
	out := make(map[string]AttrValue)
	decided := make(map[string]bool)
	bySource := make(map[string]ReportEntry)

	for _, rule := range rs.Rules {
		if rule.Target != "" && decided[rule.Target] {
			continue
		}
		if !sourcesPresent(attrs, rule.Sources) {
			continue
		}
		if rule.Applies != nil && !rule.Applies(attrs) {
			continue
		}
		val, class, reason := rule.Convert(attrs)
		if rule.Target != "" {
			decided[rule.Target] = true
			if class != MapDropped {
				out[rule.Target] = val
			} else if def, ok := rs.Defaults[rule.Target]; ok {
				out[rule.Target] = def
			}
		}
		target := rule.Target
		if class == MapDropped {
			target = ""
		}
		for _, src := range rule.Sources {
			if _, seen := bySource[src]; seen {
				continue
			}
			bySource[src] = ReportEntry{Source: src, Target: target, Class: class, Reason: reason}
		}
	}

	for name, def := range rs.Defaults {
		if !decided[name] {
			out[name] = def
		}
	}

	for name := range attrs {
		if _, seen := bySource[name]; !seen {
			bySource[name] = ReportEntry{Source: name, Class: MapDropped, Reason: "no target equivalent"}
		}
	}

	entries := make([]ReportEntry, 0, len(bySource))
	for _, e := range bySource {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Source < entries[j].Source })
	return out, entries
}

func sourcesPresent(attrs map[string]AttrValue, sources []string) bool {
	for _, s := range sources {
		if _, ok := attrs[s]; !ok {
			return false
		}
	}
	return true
}

// MapLight translates one source light onto the target light model. The
// report covers every source attribute. A light kind the schema does not
// know maps to nothing: all attributes drop and the target kind is empty.
func MapLight(l SourceLight, schema *TargetSchema) (TargetLight, MappingReport) {
	rs := schema.Kinds[l.Kind]
	if rs == nil {
		entries := make([]ReportEntry, 0, len(l.Attrs))
		for name := range l.Attrs {
			entries = append(entries, ReportEntry{
				Source: name,
				Class:  MapDropped,
				Reason: fmt.Sprintf("no target equivalent for %s lights", l.Kind),
			})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Source < entries[j].Source })
		return TargetLight{ID: l.ID, Name: l.Name}, MappingReport{Entries: entries}
	}
	attrs, entries := MapAttributes(l.Attrs, rs)
	return TargetLight{ID: l.ID, Name: l.Name, Kind: rs.TargetKind, Attrs: attrs}, MappingReport{Entries: entries}
}

// MapMaterialConstants translates the constant (unlinked) shader inputs of
// one material onto target material parameters.
func MapMaterialConstants(constants map[string]AttrValue, schema *TargetSchema) (map[string]AttrValue, MappingReport) {
	if schema.Material == nil || len(constants) == 0 {
		return map[string]AttrValue{}, MappingReport{Entries: []ReportEntry{}}
	}
	attrs, entries := MapAttributes(constants, schema.Material)
	return attrs, MappingReport{Entries: entries}
}
