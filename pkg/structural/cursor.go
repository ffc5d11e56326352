package structural

import "strconv"

// cursor tracks the traversal position during a structural walk: the FHIR
// dotted path (human readable) and the RFC-6901 JSON Pointer (machine
// addressable) for the node currently being examined.
type cursor struct {
	path         string
	pointer      string
	resourceType string
	entryIndex   int
}

func (c cursor) field(name string) cursor {
	next := c
	next.path = c.path + "." + name
	next.pointer = c.pointer + "/" + name
	return next
}

func (c cursor) index(i int) cursor {
	next := c
	next.path = c.path + "[" + strconv.Itoa(i) + "]"
	next.pointer = c.pointer + "/" + strconv.Itoa(i)
	return next
}
