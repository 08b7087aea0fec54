package sprest

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestQueryParamsSetGetHas(t *testing.T) {
	params := NewQueryParams()

	_, ok := params.Get(querySelect)
	assert.Equal(t, ok, false)
	assert.Equal(t, params.Has(querySelect), false)

	params.Set(querySelect, "Title")
	value, ok := params.Get(querySelect)
	assert.Equal(t, ok, true)
	assert.Equal(t, value, "Title")
	assert.Equal(t, params.Has(querySelect), true)

	// upsert by exact name
	params.Set(querySelect, "Title,Id")
	value, _ = params.Get(querySelect)
	assert.Equal(t, value, "Title,Id")
	assert.Equal(t, params.Len(), 1)
}

func TestQueryParamsInsertionOrder(t *testing.T) {
	params := NewQueryParams()
	params.Set("b", "2")
	params.Set("a", "1")
	params.Set("c", "3")
	params.Set("a", "4")

	assert.Equal(t, params.Keys(), []string{"b", "a", "c"})
}

func TestQueryParamsCopyIndependence(t *testing.T) {
	params := NewQueryParams()
	params.Set(queryFilter, "Id eq 1")

	copied := params.Copy()
	copied.Set(queryFilter, "Id eq 2")
	copied.Set(queryTop, "5")

	value, _ := params.Get(queryFilter)
	assert.Equal(t, value, "Id eq 1")
	assert.Equal(t, params.Has(queryTop), false)
}

func TestOrderByComposes(t *testing.T) {
	collection, err := NewQueryableCollection(nil, "https://c.com/_api/web", "lists")
	assert.Equal(t, err, nil)

	collection.OrderBy("Title", true)
	collection.OrderBy("Modified", false)

	value, _ := collection.Query().Get(queryOrderBy)
	assert.Equal(t, value, "Title asc,Modified desc")
}

func TestOrderByRepeatedFieldAppendsTwice(t *testing.T) {
	collection, err := NewQueryableCollection(nil, "https://c.com/_api/web", "lists")
	assert.Equal(t, err, nil)

	collection.OrderBy("Title", true)
	collection.OrderBy("Title", true)

	value, _ := collection.Query().Get(queryOrderBy)
	assert.Equal(t, value, "Title asc,Title asc")
}

func TestTargetPropagatesToDerivedNodes(t *testing.T) {
	q, err := NewQueryable(nil, "https://c.com/sites/dev/_api/web", "")
	assert.Equal(t, err, nil)
	q.Query().Set("@target", "'https://other.com'")
	q.Query().Set(querySelect, "Title")

	child := NewQueryableFromNode(q, "webs")
	target, ok := child.Query().Get("@target")
	assert.Equal(t, ok, true)
	assert.Equal(t, target, "'https://other.com'")
	// only the allow-listed keys carry over
	assert.Equal(t, child.Query().Has(querySelect), false)

	// the clone owns an independent store
	child.Query().Set(querySelect, "Id")
	value, _ := q.Query().Get(querySelect)
	assert.Equal(t, value, "Title")
}
