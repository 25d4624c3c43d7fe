package xtce

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Parameter associates a qualified name with a parameter type.
type Parameter struct {
	QualifiedName string
	TypeRef       string
}

// Argument associates a qualified name with an argument type.
type Argument struct {
	QualifiedName string
	TypeRef       string
}

// Container is a named, ordered layout of entries, optionally inheriting
// from and restricted against a base container.
type Container struct {
	Name             string
	BaseContainerRef string
	Restriction      *ComparisonList
	EntryList        []Entry

	// inheritedEntries is precomputed at load time: this container's
	// full root-to-leaf entry list, per spec's design note "precompute
	// each container's full inherited entry list to avoid re-walking on
	// every packet."
	inheritedEntries []Entry
}

// SpaceSystem is a namespace node: a qualified name, nested child
// SpaceSystems, and local parameter/argument/container sets, plus (once
// built via NewSpaceSystem) a cross-reference index over the whole tree.
type SpaceSystem struct {
	QualifiedName string
	Header        string
	Children      []*SpaceSystem

	Parameters     map[string]*Parameter
	Arguments      map[string]*Argument
	Containers     map[string]*Container
	ParameterTypes map[string]ParameterType
	ArgumentTypes  map[string]ArgumentType

	// index is populated by NewSpaceSystem over this node and all
	// descendants, keyed by fully qualified name.
	index *schemaIndex
}

// schemaIndex is the whole-tree cross-reference built once at load time.
// nameID interns each qualified name into a compact xxhash-derived id,
// exposed through NameID; decode and encode look names up in the
// string-keyed maps.
type schemaIndex struct {
	parameters     map[string]*Parameter
	arguments      map[string]*Argument
	containers     map[string]*Container
	parameterTypes map[string]ParameterType
	argumentTypes  map[string]ArgumentType

	// childrenOf maps a container name to the containers whose
	// BaseContainerRef names it, so child selection during decode never
	// rescans the whole container set. It is filled by ranging over the
	// containers map, so the order within each slice is not defined.
	childrenOf map[string][]*Container

	nameID map[string]uint64
}

func internName(name string) uint64 {
	return xxhash.Sum64String(name)
}

// NewSpaceSystem builds the cross-reference index over root and its
// descendants, precomputes each container's inherited entry list, and
// detects dangling references and cyclic inheritance. It is the single
// validation pass loaders are expected to run before handing a
// SpaceSystem to DecodePacket/EncodePacket.
func NewSpaceSystem(root *SpaceSystem) (*SpaceSystem, error) {
	idx := &schemaIndex{
		parameters:     map[string]*Parameter{},
		arguments:      map[string]*Argument{},
		containers:     map[string]*Container{},
		parameterTypes: map[string]ParameterType{},
		argumentTypes:  map[string]ArgumentType{},
		childrenOf:     map[string][]*Container{},
		nameID:         map[string]uint64{},
	}
	if err := collect(root, idx); err != nil {
		return nil, err
	}
	assignIndex(root, idx)

	for name, c := range idx.containers {
		if c.BaseContainerRef != "" {
			if _, ok := idx.containers[c.BaseContainerRef]; !ok {
				return nil, &SchemaError{Path: Path{Container: name}, Msg: fmt.Sprintf("dangling base container reference %q", c.BaseContainerRef)}
			}
			idx.childrenOf[c.BaseContainerRef] = append(idx.childrenOf[c.BaseContainerRef], c)
		}
	}

	for name, c := range idx.containers {
		if err := detectCycle(name, idx.containers, map[string]bool{}); err != nil {
			return nil, err
		}
		chain, err := inheritanceChain(c, idx.containers)
		if err != nil {
			return nil, err
		}
		var entries []Entry
		for _, anc := range chain {
			entries = append(entries, anc.EntryList...)
		}
		c.inheritedEntries = entries
	}

	for name, p := range idx.parameters {
		if _, ok := idx.parameterTypes[p.TypeRef]; !ok {
			return nil, &SchemaError{Path: Path{Parameter: name}, Msg: fmt.Sprintf("dangling parameter type reference %q", p.TypeRef)}
		}
	}
	for name, a := range idx.arguments {
		if _, ok := idx.argumentTypes[a.TypeRef]; !ok {
			return nil, &SchemaError{Path: Path{Parameter: name}, Msg: fmt.Sprintf("dangling argument type reference %q", a.TypeRef)}
		}
	}

	return root, nil
}

func collect(node *SpaceSystem, idx *schemaIndex) error {
	for name, p := range node.Parameters {
		if _, exists := idx.parameters[name]; exists {
			return &SchemaError{Path: Path{Parameter: name}, Msg: "duplicate parameter name"}
		}
		idx.parameters[name] = p
		idx.nameID[name] = internName(name)
	}
	for name, a := range node.Arguments {
		if _, exists := idx.arguments[name]; exists {
			return &SchemaError{Path: Path{Parameter: name}, Msg: "duplicate argument name"}
		}
		idx.arguments[name] = a
		idx.nameID[name] = internName(name)
	}
	for name, c := range node.Containers {
		if _, exists := idx.containers[name]; exists {
			return &SchemaError{Path: Path{Container: name}, Msg: "duplicate container name"}
		}
		idx.containers[name] = c
		idx.nameID[name] = internName(name)
	}
	for name, t := range node.ParameterTypes {
		idx.parameterTypes[name] = t
		idx.nameID[name] = internName(name)
	}
	for name, t := range node.ArgumentTypes {
		idx.argumentTypes[name] = t
		idx.nameID[name] = internName(name)
	}
	for _, child := range node.Children {
		if err := collect(child, idx); err != nil {
			return err
		}
	}
	return nil
}

func assignIndex(node *SpaceSystem, idx *schemaIndex) {
	node.index = idx
	for _, child := range node.Children {
		assignIndex(child, idx)
	}
}

func detectCycle(name string, containers map[string]*Container, visiting map[string]bool) error {
	if visiting[name] {
		return &SchemaError{Path: Path{Container: name}, Msg: "cyclic base container inheritance"}
	}
	visiting[name] = true
	defer delete(visiting, name)

	c, ok := containers[name]
	if !ok || c.BaseContainerRef == "" {
		return nil
	}
	return detectCycle(c.BaseContainerRef, containers, visiting)
}

// inheritanceChain returns c's ancestry, root first, c last.
func inheritanceChain(c *Container, containers map[string]*Container) ([]*Container, error) {
	var chain []*Container
	cur := c
	for {
		chain = append([]*Container{cur}, chain...)
		if cur.BaseContainerRef == "" {
			return chain, nil
		}
		base, ok := containers[cur.BaseContainerRef]
		if !ok {
			return nil, &SchemaError{Path: Path{Container: cur.Name}, Msg: fmt.Sprintf("dangling base container reference %q", cur.BaseContainerRef)}
		}
		cur = base
	}
}

// GetParameter resolves a fully qualified parameter name.
func (s *SpaceSystem) GetParameter(name string) (*Parameter, bool) {
	p, ok := s.index.parameters[name]
	return p, ok
}

// GetArgument resolves a fully qualified argument name.
func (s *SpaceSystem) GetArgument(name string) (*Argument, bool) {
	a, ok := s.index.arguments[name]
	return a, ok
}

// GetContainer resolves a fully qualified container name.
func (s *SpaceSystem) GetContainer(name string) (*Container, bool) {
	c, ok := s.index.containers[name]
	return c, ok
}

// GetParameterType resolves a fully qualified parameter type name.
func (s *SpaceSystem) GetParameterType(name string) (ParameterType, bool) {
	t, ok := s.index.parameterTypes[name]
	return t, ok
}

// GetArgumentType resolves a fully qualified argument type name.
func (s *SpaceSystem) GetArgumentType(name string) (ArgumentType, bool) {
	t, ok := s.index.argumentTypes[name]
	return t, ok
}

// ChildrenOf returns the containers whose BaseContainerRef equals name.
// The order of the slice is not defined; declaration order is not kept.
func (s *SpaceSystem) ChildrenOf(name string) []*Container {
	return s.index.childrenOf[name]
}

// NameID returns the compact interned identifier for a qualified name,
// for callers that need a cheap map key instead of the full string. A
// name outside the index is hashed on demand.
func (s *SpaceSystem) NameID(name string) uint64 {
	if id, ok := s.index.nameID[name]; ok {
		return id
	}
	return internName(name)
}
