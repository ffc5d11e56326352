package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fhirlint/bundlecheck/internal/xerrors"
)

// Catalog is the read-only lookup the structural validator and rule engine
// depend on. Implementations must be safe for concurrent reads from any
// number of request goroutines.
type Catalog interface {
	Get(resourceType string) (*Node, bool)
}

// Registry is the production Catalog implementation: it loads
// StructureDefinition JSON (single resource or a Bundle of them, the shape
// HL7 ships profiles-resources.json/profiles-types.json in) into an
// in-memory tree keyed by resource type. Safe for concurrent reads once
// loading has finished; loading itself is also safe to call concurrently
// with reads, guarded by the same mutex.
type Registry struct {
	mu      sync.RWMutex
	byType  map[string]*Node
	version string
}

// NewRegistry returns an empty registry for the given FHIR version tag
// ("R4", "R5", …). The version is opaque to the registry; it is only used by
// callers to pick which registry to query.
func NewRegistry(version string) *Registry {
	return &Registry{
		byType:  make(map[string]*Node),
		version: version,
	}
}

// Version returns the FHIR version tag this registry was constructed for.
func (r *Registry) Version() string {
	return r.version
}

// Get implements Catalog.
func (r *Registry) Get(resourceType string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byType[resourceType]
	return n, ok
}

// Size returns the number of resource types registered.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// Register inserts a prebuilt root node, keyed by its Type field. Exposed so
// tests (and in-memory callers per the spec's mocked-catalog pattern) can
// construct a Catalog without going through JSON.
func (r *Registry) Register(root *Node) error {
	if root == nil {
		return fmt.Errorf("cannot register nil schema node")
	}
	if root.Type == "" {
		return fmt.Errorf("schema node must have a type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[root.Type] = root
	return nil
}

// LoadFromFile reads path and loads its StructureDefinition(s) into the
// registry. Supports both a single StructureDefinition and a Bundle of them.
func (r *Registry) LoadFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, xerrors.WrapPathf(path, "reading schema file: %w", err)
	}
	return r.LoadFromJSON(data)
}

// LoadFromJSON auto-detects Bundle vs single StructureDefinition and loads
// accordingly.
func (r *Registry) LoadFromJSON(data []byte) (int, error) {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, xerrors.WrapPath("<root>", fmt.Errorf("%w: %v", xerrors.ErrInvalidJSON, err))
	}

	switch probe.ResourceType {
	case "Bundle":
		return r.LoadFromBundle(data)
	case "StructureDefinition":
		root, err := ParseStructureDefinition(data)
		if err != nil {
			return 0, err
		}
		if err := r.Register(root); err != nil {
			return 0, err
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: unsupported resourceType %q", xerrors.ErrInvalidSpec, probe.ResourceType)
	}
}

// LoadFromBundle loads every StructureDefinition entry in a Bundle JSON.
// Non-StructureDefinition entries and individually malformed entries are
// skipped rather than failing the whole load.
func (r *Registry) LoadFromBundle(data []byte) (int, error) {
	var bundle struct {
		Entry []struct {
			Resource json.RawMessage `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		return 0, fmt.Errorf("%w: parsing bundle: %v", xerrors.ErrInvalidJSON, err)
	}

	count := 0
	for _, entry := range bundle.Entry {
		var probe struct {
			ResourceType string `json:"resourceType"`
		}
		if err := json.Unmarshal(entry.Resource, &probe); err != nil {
			continue
		}
		if probe.ResourceType != "StructureDefinition" {
			continue
		}
		root, err := ParseStructureDefinition(entry.Resource)
		if err != nil {
			continue
		}
		if err := r.Register(root); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// rawElement is the JSON shape of one ElementDefinition, kept as raw
// messages for every field we don't need to fully decode so fixed[x]/
// pattern[x] keys (which are type-suffixed: fixedUri, fixedCodeableConcept,
// patternCoding, …) can be located dynamically instead of hardcoded per
// FHIR data type.
type rawElement map[string]json.RawMessage

func (e rawElement) str(key string) string {
	raw, ok := e[key]
	if !ok {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}

func (e rawElement) fixedOrPattern(prefix string) json.RawMessage {
	for key, val := range e {
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return val
		}
	}
	return nil
}

type rawTypeRef struct {
	Code          string   `json:"code"`
	TargetProfile []string `json:"targetProfile,omitempty"`
}

type rawBinding struct {
	Strength string `json:"strength"`
	ValueSet string `json:"valueSet"`
}

type rawDiscriminator struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type rawSlicing struct {
	Discriminator []rawDiscriminator `json:"discriminator"`
	Rules         string             `json:"rules"`
}

// ParseStructureDefinition builds a Node tree from a single StructureDefinition
// JSON document, using its snapshot element list (falling back to the
// differential when no snapshot is present, as some profile bundles ship
// only a differential).
func ParseStructureDefinition(data []byte) (*Node, error) {
	var doc struct {
		ResourceType string `json:"resourceType"`
		Type         string `json:"type"`
		Snapshot     *struct {
			Element []rawElement `json:"element"`
		} `json:"snapshot"`
		Differential *struct {
			Element []rawElement `json:"element"`
		} `json:"differential"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidJSON, err)
	}
	if doc.ResourceType != "StructureDefinition" {
		return nil, fmt.Errorf("%w: resourceType %q is not StructureDefinition", xerrors.ErrInvalidSpec, doc.ResourceType)
	}

	var elements []rawElement
	switch {
	case doc.Snapshot != nil && len(doc.Snapshot.Element) > 0:
		elements = doc.Snapshot.Element
	case doc.Differential != nil:
		elements = doc.Differential.Element
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: StructureDefinition %q has no elements", xerrors.ErrInvalidSpec, doc.Type)
	}

	root, err := buildTree(elements)
	if err != nil {
		return nil, err
	}
	// The root ElementDefinition rarely carries its own "type" array (a
	// resource's type is implicit in its name); take it from the
	// StructureDefinition's own "type" field instead.
	if doc.Type != "" {
		root.Type = doc.Type
	}
	return root, nil
}

// buildTree converts the flat, depth-ordered ElementDefinition list into a
// Node tree keyed by dotted path. FHIR snapshots always list a path's parent
// before the path itself, so a single left-to-right pass with a path->Node
// index suffices; no second sort should be necessary, but we defensively
// sort by path depth to tolerate out-of-order differentials.
func buildTree(elements []rawElement) (*Node, error) {
	sort.SliceStable(elements, func(i, j int) bool {
		return strings.Count(elements[i].str("path"), ".") < strings.Count(elements[j].str("path"), ".")
	})

	byPath := make(map[string]*Node, len(elements))
	var root *Node

	for _, e := range elements {
		path := e.str("path")
		if path == "" {
			continue
		}
		node := nodeFromElement(e, path)

		if !strings.Contains(path, ".") {
			root = node
			byPath[path] = node
			continue
		}

		parentPath := path[:strings.LastIndex(path, ".")]
		parent, ok := byPath[parentPath]
		if !ok {
			// Orphaned element (parent wasn't emitted, e.g. a bare
			// differential); skip rather than fail the whole load.
			continue
		}
		parent.Children = append(parent.Children, node)
		byPath[path] = node
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root element found", xerrors.ErrInvalidSpec)
	}
	return root, nil
}

func nodeFromElement(e rawElement, path string) *Node {
	name := path
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		name = path[idx+1:]
	}

	n := &Node{
		ElementName: name,
		Path:        path,
		Max:         e.str("max"),
	}
	if n.Max == "" {
		n.Max = "1"
	}
	n.IsArray = isArrayMax(n.Max)

	if raw, ok := e["min"]; ok {
		var min int
		_ = json.Unmarshal(raw, &min)
		n.Min = min
	}

	if raw, ok := e["type"]; ok {
		var types []rawTypeRef
		if err := json.Unmarshal(raw, &types); err == nil && len(types) > 0 {
			n.Type = types[0].Code
			n.TargetProfiles = types[0].TargetProfile
		}
	}

	if raw, ok := e["binding"]; ok {
		var b rawBinding
		if err := json.Unmarshal(raw, &b); err == nil {
			n.BindingStrength = b.Strength
			n.ValueSetURL = b.ValueSet
		}
	}

	if raw, ok := e["slicing"]; ok {
		var s rawSlicing
		if err := json.Unmarshal(raw, &s); err == nil {
			disc := make([]Discriminator, 0, len(s.Discriminator))
			for _, d := range s.Discriminator {
				disc = append(disc, Discriminator{Type: d.Type, Path: d.Path})
			}
			n.Slicing = &Slicing{Discriminators: disc, Rules: s.Rules}
		}
	}

	n.Fixed = e.fixedOrPattern("fixed")
	n.Pattern = e.fixedOrPattern("pattern")

	return n
}

func isArrayMax(max string) bool {
	if max == "*" {
		return true
	}
	if n, err := strconv.Atoi(max); err == nil {
		return n > 1
	}
	return false
}
