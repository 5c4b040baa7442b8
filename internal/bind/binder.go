// Package bind tracks named bind parameters for generated SQL and produces
// collision-free placeholder names across nested sub-query scopes.
package bind

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every generated placeholder name.
const Prefix = "Bind_"

// Map holds bound values keyed by placeholder name (without the leading colon).
type Map map[string]Entry

// Names returns the placeholder names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var nonWord = regexp.MustCompile(`\W`)

// Binder accumulates bind entries for one compilation pass.
//
// A root binder generates names of the form Bind_<n>_<key>_. A child binder,
// used for a sub-query, starts numbering after its parent and appends its scope
// token so that merging it back into the parent cannot collide.
type Binder struct {
	entries Map
	scope   string
	offset  int
}

// New returns an empty root binder.
func New() *Binder {
	return &Binder{entries: make(Map)}
}

// NewScope returns a fresh random scope token for a sub-query.
func NewScope() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Child returns a binder for a sub-query with the given scope token.
// The child numbers its placeholders after the parent's current entries.
func (b *Binder) Child(scope string) *Binder {
	return &Binder{
		entries: make(Map),
		scope:   scope,
		offset:  b.offset + len(b.entries),
	}
}

// Scope returns the scope token, "" for a root binder.
func (b *Binder) Scope() string {
	return b.scope
}

// Len returns the number of bound entries.
func (b *Binder) Len() int {
	return len(b.entries)
}

// Name generates the placeholder name for the next value bound under baseKey.
// Non-word characters in baseKey are replaced by underscores.
func (b *Binder) Name(baseKey string) string {
	key := nonWord.ReplaceAllString(baseKey, "_")
	return Prefix + strconv.Itoa(b.offset+len(b.entries)+1) + "_" + key + "_" + b.scope
}

// Option configures BindValue.
type Option func(*bindOptions)

type bindOptions struct {
	typ     ParamType
	hasType bool
	name    string
}

// WithType declares the bind type instead of inferring it.
func WithType(t ParamType) Option {
	return func(o *bindOptions) {
		o.typ = t
		o.hasType = true
	}
}

// WithName uses name as the placeholder name.
func WithName(name string) Option {
	return func(o *bindOptions) {
		o.name = name
	}
}

// BindValue binds value and returns its placeholder name. Without WithType the
// type is inferred; without WithName an anonymous name Bind_<n>_<random> is used.
func (b *Binder) BindValue(value any, opts ...Option) string {
	var o bindOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasType {
		o.typ = Infer(value)
	}
	if o.name == "" {
		o.name = Prefix + strconv.Itoa(b.offset+len(b.entries)+1) + "_" + NewScope()
	}
	b.entries[o.name] = Entry{Value: value, Type: o.typ}
	return o.name
}

// Bind binds value under the name generated from baseKey and returns that name.
func (b *Binder) Bind(baseKey string, value any) string {
	name := b.Name(baseKey)
	b.entries[name] = Entry{Value: value, Type: Infer(value)}
	return name
}

// Set stores entries under caller supplied names, e.g. binds passed to a raw
// fragment. Existing names are overwritten.
func (b *Binder) Set(m Map) {
	for name, e := range m {
		b.entries[name] = e
	}
}

// Merge moves all entries of child into b. A generated name, or a caller
// supplied name bound to a different value, may be bound only once; anything
// else would silently change the meaning of an earlier placeholder.
func (b *Binder) Merge(child *Binder) error {
	for name, e := range child.entries {
		if prev, exists := b.entries[name]; exists {
			if strings.HasPrefix(name, Prefix) || !prev.Equal(e) {
				return fmt.Errorf("bind: placeholder %q bound twice", name)
			}
			continue
		}
		b.entries[name] = e
	}
	child.entries = make(Map)
	return nil
}

// Take returns the accumulated entries and empties the binder when clear is true.
func (b *Binder) Take(clear bool) Map {
	out := make(Map, len(b.entries))
	for name, e := range b.entries {
		out[name] = e
	}
	if clear {
		b.entries = make(Map)
	}
	return out
}
