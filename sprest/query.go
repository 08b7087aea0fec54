package sprest

import (
	"golang.org/x/exp/slices"
)

// standard odata parameter names
// values are literal pass-through. escaping inside filter/order strings
// is the caller's responsibility
const (
	querySelect  = "$select"
	queryExpand  = "$expand"
	queryFilter  = "$filter"
	queryOrderBy = "$orderby"
	querySkip    = "$skip"
	queryTop     = "$top"
)

// cross-cutting keys copied onto clones and derived parents
// @target carries cross-site addressing
var propagatedQueryKeys = []string{"@target"}

// ordered, unique-key query parameter store
// each node owns exactly one store. stores are copied, never shared
type QueryParams struct {
	keys   []string
	values map[string]string
}

func NewQueryParams() *QueryParams {
	return &QueryParams{
		keys:   []string{},
		values: map[string]string{},
	}
}

func (self *QueryParams) Set(name string, value string) {
	if _, ok := self.values[name]; !ok {
		self.keys = append(self.keys, name)
	}
	self.values[name] = value
}

func (self *QueryParams) Get(name string) (string, bool) {
	value, ok := self.values[name]
	return value, ok
}

func (self *QueryParams) Has(name string) bool {
	_, ok := self.values[name]
	return ok
}

func (self *QueryParams) Len() int {
	return len(self.keys)
}

// keys in insertion order
func (self *QueryParams) Keys() []string {
	return slices.Clone(self.keys)
}

func (self *QueryParams) Copy() *QueryParams {
	out := NewQueryParams()
	for _, key := range self.keys {
		out.Set(key, self.values[key])
	}
	return out
}

// copies only the allow-listed cross-cutting keys from the source store
func (self *QueryParams) copyPropagated(source *QueryParams) {
	for _, key := range propagatedQueryKeys {
		if value, ok := source.Get(key); ok {
			self.Set(key, value)
		}
	}
}
