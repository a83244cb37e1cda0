package schema

import "strings"

// Path is an ordered sequence of property hops from the aggregate root.
// It is a value type, comparable and usable as a map key.
type Path string

// Root is the empty path addressing the aggregate root itself.
const Root Path = ""

const pathSeparator = "."

// ParsePath builds a Path from its dotted form.
func ParsePath(s string) Path {
	return Path(strings.Trim(s, pathSeparator))
}

// Append returns a new path extended by hop.
func (p Path) Append(hop string) Path {
	if p.IsRoot() {
		return Path(hop)
	}
	return Path(string(p) + pathSeparator + hop)
}

// Segments returns the hops of p.
func (p Path) Segments() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(string(p), pathSeparator)
}

// Depth is the number of hops.
func (p Path) Depth() int {
	if p.IsRoot() {
		return 0
	}
	return strings.Count(string(p), pathSeparator) + 1
}

// Parent drops the last hop. The parent of Root is Root.
func (p Path) Parent() Path {
	idx := strings.LastIndex(string(p), pathSeparator)
	if idx < 0 {
		return Root
	}
	return p[:idx]
}

// Leaf returns the last hop, or "" for Root.
func (p Path) Leaf() string {
	idx := strings.LastIndex(string(p), pathSeparator)
	return string(p[idx+1:])
}

// IsRoot reports whether p addresses the root.
func (p Path) IsRoot() bool {
	return p == Root
}

// Alias is the column-label prefix for entities at p.
func (p Path) Alias() string {
	return strings.ToLower(strings.ReplaceAll(string(p), pathSeparator, "_"))
}

func (p Path) String() string {
	if p.IsRoot() {
		return "<root>"
	}
	return string(p)
}
