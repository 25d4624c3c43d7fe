package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antaris-inc/go-xtce/xtce"
)

// Build lowers a parsed XTCE element tree into an immutable
// xtce.SpaceSystem, running xtce.NewSpaceSystem's validation pass before
// returning. Elements named in this repo's non-goals (AggregateType,
// RelativeTime, Alarms, Algorithms, Streams, Aliases, MessageSet,
// ServiceSet) have no corresponding field in the XML struct tree and are
// silently dropped by encoding/xml during parsing, so Build never has to
// special-case them.
func Build(root *XMLSpaceSystem) (*xtce.SpaceSystem, error) {
	b := &builder{
		arrayPending: map[string]pendingArray{},
	}
	ss, err := b.buildNode(root, "")
	if err != nil {
		return nil, err
	}
	if err := b.resolveArrays(); err != nil {
		return nil, err
	}
	return xtce.NewSpaceSystem(ss)
}

type pendingArray struct {
	isArgument bool
	qname      string
	elementRef string
	fixedLen   *int
	sizeRef    string
	ownerPT    map[string]xtce.ParameterType
	ownerAT    map[string]xtce.ArgumentType
}

type builder struct {
	parameterTypes map[string]xtce.ParameterType
	argumentTypes  map[string]xtce.ArgumentType
	arrayPending   map[string]pendingArray
}

func (b *builder) buildNode(x *XMLSpaceSystem, parentPath string) (*xtce.SpaceSystem, error) {
	path := parentPath + "/" + x.Name

	node := &xtce.SpaceSystem{
		QualifiedName:  path,
		Header:         x.Header.Version,
		Parameters:     map[string]*xtce.Parameter{},
		Arguments:      map[string]*xtce.Argument{},
		Containers:     map[string]*xtce.Container{},
		ParameterTypes: map[string]xtce.ParameterType{},
		ArgumentTypes:  map[string]xtce.ArgumentType{},
	}

	if err := b.buildParameterTypeSet(path, x.TelemetryMetaData.ParameterTypeSet, node.ParameterTypes); err != nil {
		return nil, err
	}
	if err := b.buildArgumentTypeSet(path, x.CommandMetaData.ArgumentTypeSet, node.ArgumentTypes); err != nil {
		return nil, err
	}

	for _, p := range x.TelemetryMetaData.ParameterSet.Parameters {
		qname := path + "/" + p.Name
		node.Parameters[qname] = &xtce.Parameter{
			QualifiedName: qname,
			TypeRef:       resolveRef(path, p.ParameterTypeRef),
		}
	}

	for _, sc := range x.TelemetryMetaData.ContainerSet.SequenceContainers {
		c, err := b.buildContainer(path, sc.Name, sc.ShortDescription, sc.EntryList, sc.BaseContainer)
		if err != nil {
			return nil, err
		}
		node.Containers[c.Name] = c
	}

	for _, mc := range x.CommandMetaData.MetaCommandSet.MetaCommands {
		if err := b.buildMetaCommand(path, node, mc); err != nil {
			return nil, err
		}
	}

	for _, child := range x.SpaceSystems {
		childSS, err := b.buildNode(&child, path)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childSS)
	}

	return node, nil
}

func (b *builder) buildMetaCommand(path string, node *xtce.SpaceSystem, mc XMLMetaCommand) error {
	qname := path + "/" + mc.Name
	for _, a := range mc.ArgumentList.Arguments {
		aqname := qname + "/" + a.Name
		node.Arguments[aqname] = &xtce.Argument{
			QualifiedName: aqname,
			TypeRef:       resolveRef(path, a.ArgumentTypeRef),
		}
	}

	var baseRef string
	if mc.BaseMetaCommand != nil {
		baseRef = resolveRef(path, mc.BaseMetaCommand.MetaCommandRef)
	}
	// MetaCommand argument names in EntryList are relative to the
	// command itself, not the space system, so qualify them here before
	// delegating to the shared container builder.
	entries := mc.CommandContainer.EntryList
	for i := range entries.Entries {
		if entries.Entries[i].XMLName.Local == "ArgumentRefEntry" {
			entries.Entries[i].ArgumentRef = qname + "/" + entries.Entries[i].ArgumentRef
		}
	}

	c, err := b.buildContainer(path, mc.Name, mc.ShortDescription, entries, &XMLBaseContainer{ContainerRef: baseRef})
	if err != nil {
		return err
	}
	if mc.BaseMetaCommand == nil {
		c.BaseContainerRef = ""
	}
	node.Containers[c.Name] = c
	return nil
}

func (b *builder) buildContainer(path, name, _ string, entryList XMLEntryList, base *XMLBaseContainer) (*xtce.Container, error) {
	qname := path + "/" + name
	c := &xtce.Container{Name: qname}

	if base != nil && base.ContainerRef != "" {
		c.BaseContainerRef = resolveRef(path, base.ContainerRef)
		if base.RestrictionCriteria != nil {
			cl, err := buildComparisonList(path, base.RestrictionCriteria.Comparison, base.RestrictionCriteria.ComparisonList)
			if err != nil {
				return nil, err
			}
			c.Restriction = cl
		}
	}

	entries := make([]xtce.Entry, 0, len(entryList.Entries))
	for _, xe := range entryList.Entries {
		switch xe.XMLName.Local {
		case "ParameterRefEntry":
			e := xtce.Entry{Kind: xtce.EntryParameterRef, ParameterRef: resolveRef(path, xe.ParameterRef)}
			if xe.LocationInContainerInBits != nil {
				loc, err := buildLocation(xe.LocationInContainerInBits)
				if err != nil {
					return nil, err
				}
				e.Location = loc
			}
			entries = append(entries, e)
		case "ArgumentRefEntry":
			entries = append(entries, xtce.Entry{Kind: xtce.EntryArgumentRef, ArgumentRef: xe.ArgumentRef})
		case "ContainerRefEntry":
			e := xtce.Entry{Kind: xtce.EntryContainerRef, ContainerRef: resolveRef(path, xe.ContainerRef)}
			if xe.IncludeCondition != nil {
				cl, err := buildComparisonList(path, xe.IncludeCondition.Comparison, xe.IncludeCondition.ComparisonList)
				if err != nil {
					return nil, err
				}
				e.IncludeCondition = cl
			}
			entries = append(entries, e)
		case "FixedValueEntry":
			sz, err := strconv.Atoi(xe.SizeInBits)
			if err != nil {
				return nil, fmt.Errorf("loader: container %s: bad FixedValueEntry sizeInBits %q: %w", qname, xe.SizeInBits, err)
			}
			hv, err := parseHexBinary(xe.BinaryValue)
			if err != nil {
				return nil, fmt.Errorf("loader: container %s: bad FixedValueEntry binaryValue %q: %w", qname, xe.BinaryValue, err)
			}
			entries = append(entries, xtce.Entry{Kind: xtce.EntryFixedValue, SizeInBits: sz, HexValue: hv})
		default:
			return nil, fmt.Errorf("loader: container %s: unrecognized EntryList element %q", qname, xe.XMLName.Local)
		}
	}

	c.EntryList = entries
	return c, nil
}

func buildLocation(x *XMLLocationInContainerInBits) (*xtce.Location, error) {
	off, err := strconv.Atoi(x.FixedValue)
	if err != nil {
		return nil, fmt.Errorf("loader: bad LocationInContainerInBits fixed value %q: %w", x.FixedValue, err)
	}
	ref := xtce.LocationStartOfContainer
	if strings.EqualFold(x.ReferenceLocation, "previousEntry") {
		ref = xtce.LocationPreviousEntry
	}
	return &xtce.Location{Reference: ref, OffsetBits: off}, nil
}

func buildComparisonList(path string, single *XMLComparison, list *XMLComparisonList) (*xtce.ComparisonList, error) {
	var xs []XMLComparison
	if single != nil {
		xs = append(xs, *single)
	}
	if list != nil {
		xs = append(xs, list.Comparisons...)
	}
	if len(xs) == 0 {
		return nil, nil
	}
	var comps []xtce.Comparison
	for _, x := range xs {
		op, err := parseOperator(x.ComparisonOperator)
		if err != nil {
			return nil, err
		}
		useCal := x.UseCalibratedValue != "false"
		comps = append(comps, xtce.Comparison{
			ParameterRef:       resolveRef(path, x.ParameterRef),
			Operator:           op,
			Value:              x.Value,
			UseCalibratedValue: useCal,
		})
	}
	return &xtce.ComparisonList{Comparisons: comps}, nil
}

func parseOperator(s string) (xtce.Operator, error) {
	switch s {
	case "", "==", "equality":
		return xtce.OpEQ, nil
	case "!=", "inequality":
		return xtce.OpNE, nil
	case "<":
		return xtce.OpLT, nil
	case "<=":
		return xtce.OpLE, nil
	case ">":
		return xtce.OpGT, nil
	case ">=":
		return xtce.OpGE, nil
	default:
		return 0, fmt.Errorf("loader: unrecognized comparison operator %q", s)
	}
}

// resolveRef resolves an XTCE reference relative to the declaring space
// system's qualified path: an absolute reference (leading "/") is used
// verbatim, anything else is taken relative to path.
func resolveRef(path, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "/") {
		return ref
	}
	return path + "/" + ref
}

func parseHexBinary(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}
