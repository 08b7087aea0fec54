package sprest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
)

// an addressable, configurable unit representing one rest resource or
// resource collection. a node owns its query store exclusively. a node
// with a batch association defers actions to the batch instead of issuing
// them directly
type Queryable struct {
	url       string
	parentUrl string
	query     *QueryParams
	headers   http.Header
	batch     *Batch
	transport Transport
}

// roots a node at a string base url.
// the grammar of the base decides the parent:
// - absolute url or no separator: the base is its own parent
// - collection(id)/tail: the parent is everything before the last separator
// - collection(id): the parent is everything before the open group
func NewQueryable(transport Transport, baseUrl string, path string) (*Queryable, error) {
	if err := validateGrouping(baseUrl); err != nil {
		return nil, err
	}

	q := &Queryable{
		query:     NewQueryParams(),
		headers:   http.Header{},
		transport: transport,
	}

	separatorIndex := strings.LastIndex(baseUrl, "/")
	groupIndex := strings.LastIndex(baseUrl, "(")
	if IsUrlAbsolute(baseUrl) || separatorIndex < 0 {
		q.parentUrl = baseUrl
		q.url = CombinePaths(baseUrl, path)
	} else if groupIndex < separatorIndex {
		// .../items(19)/fields
		q.parentUrl = baseUrl[:separatorIndex]
		q.url = CombinePaths(q.parentUrl, CombinePaths(baseUrl[separatorIndex:], path))
	} else {
		// .../items(19)
		q.parentUrl = baseUrl[:groupIndex]
		q.url = CombinePaths(baseUrl, path)
	}
	return q, nil
}

// derives a child node from a parent node.
// the child inherits the parent's headers, transport, and allow-listed
// query keys, and owns a fresh query store
func NewQueryableFromNode(parent *Queryable, path string) *Queryable {
	q := &Queryable{
		url:       CombinePaths(parent.url, path),
		parentUrl: parent.url,
		query:     NewQueryParams(),
		headers:   cloneHeaders(parent.headers),
		transport: parent.transport,
	}
	q.query.copyPropagated(parent.query)
	return q
}

func (self *Queryable) URL() string {
	return self.url
}

func (self *Queryable) ParentURL() string {
	return self.parentUrl
}

func (self *Queryable) Query() *QueryParams {
	return self.query
}

func (self *Queryable) HasBatch() bool {
	return self.batch != nil
}

// defers subsequent actions on this node to the batch
func (self *Queryable) InBatch(batch *Batch) *Queryable {
	self.batch = batch
	return self
}

func (self *Queryable) SetHeader(name string, value string) *Queryable {
	self.headers.Set(name, value)
	return self
}

// no-op with zero fields
func (self *Queryable) Select(selects ...string) *Queryable {
	if 0 < len(selects) {
		self.query.Set(querySelect, strings.Join(selects, ","))
	}
	return self
}

// no-op with zero fields
func (self *Queryable) Expand(expands ...string) *Queryable {
	if 0 < len(expands) {
		self.query.Set(queryExpand, strings.Join(expands, ","))
	}
	return self
}

// final request address: alias tokens rewritten, then the query store and
// any promoted aliases appended as a query string
func (self *Queryable) ToRequestURL() string {
	aliased := self.query.Copy()
	url := rewriteAliases(self.url, aliased)
	if 0 < aliased.Len() {
		pairs := []string{}
		for _, key := range aliased.Keys() {
			value, _ := aliased.Get(key)
			pairs = append(pairs, key+"="+value)
		}
		separator := "?"
		if strings.Contains(url, "?") {
			separator = "&"
		}
		url += separator + strings.Join(pairs, "&")
	}
	return url
}

func (self *Queryable) Get(ctx context.Context) *PendingResponse {
	return self.request(ctx, "GET", nil, nil)
}

func (self *Queryable) GetSync(ctx context.Context) (*Response, error) {
	return self.Get(ctx).Result()
}

func (self *Queryable) Post(ctx context.Context, body []byte, headers http.Header) *PendingResponse {
	return self.request(ctx, "POST", body, headers)
}

func (self *Queryable) PostSync(ctx context.Context, body []byte, headers http.Header) (*Response, error) {
	return self.Post(ctx, body, headers).Result()
}

func (self *Queryable) request(ctx context.Context, method string, body []byte, extraHeaders http.Header) *PendingResponse {
	headers := cloneHeaders(self.headers)
	for name, values := range extraHeaders {
		headers[http.CanonicalHeaderKey(name)] = values
	}
	url := self.ToRequestURL()

	if self.batch != nil {
		pending, err := self.batch.Add(method, url, headers, body)
		if err != nil {
			pending = newPendingResponse()
			pending.resolve(nil, err)
		}
		return pending
	}

	pending := newPendingResponse()
	go func() {
		response, err := self.transport.Send(ctx, method, url, headers, body)
		pending.resolve(response, err)
	}()
	return pending
}

// issues the default retrieval action and decodes the response into result
func GetJson[R any](ctx context.Context, q *Queryable, result R) (R, error) {
	response, err := q.GetSync(ctx)
	if err != nil {
		var empty R
		return empty, err
	}
	if err := json.Unmarshal(response.Body, &result); err != nil {
		var empty R
		return empty, err
	}
	return result, nil
}

// constructs a new node of the capability shape produced by factory,
// rooted at this node. the clone owns an independent query store; only
// allow-listed keys carry over. the batch association carries over only
// when includeBatch is set
func Derive[T any](q *Queryable, factory func(*Queryable) T, path string, includeBatch bool) T {
	base := NewQueryableFromNode(q, path)
	if includeBatch && q.batch != nil {
		base.batch = q.batch
	}
	return factory(base)
}

// constructs a node for a logical ancestor resource. baseUrl defaults to
// the node's parent url. batch may attach the parent to a different batch
// than the node's own, or nil for none
func Parent[T any](q *Queryable, factory func(*Queryable) T, baseUrl string, path string, batch *Batch) (T, error) {
	if baseUrl == "" {
		baseUrl = q.parentUrl
	}
	base, err := NewQueryable(q.transport, baseUrl, path)
	if err != nil {
		var empty T
		return empty, err
	}
	base.headers = cloneHeaders(q.headers)
	base.query.copyPropagated(q.query)
	base.batch = batch
	return factory(base), nil
}

// collection-shaped refinement: adds the enumeration parameters
type QueryableCollection struct {
	*Queryable
}

func NewQueryableCollection(transport Transport, baseUrl string, path string) (*QueryableCollection, error) {
	q, err := NewQueryable(transport, baseUrl, path)
	if err != nil {
		return nil, err
	}
	return &QueryableCollection{Queryable: q}, nil
}

func (self *QueryableCollection) Filter(filter string) *QueryableCollection {
	self.query.Set(queryFilter, filter)
	return self
}

// repeated calls compose: "Title asc,Modified desc"
func (self *QueryableCollection) OrderBy(orderBy string, ascending bool) *QueryableCollection {
	direction := " asc"
	if !ascending {
		direction = " desc"
	}
	clause := orderBy + direction
	if current, ok := self.query.Get(queryOrderBy); ok {
		clause = current + "," + clause
	}
	self.query.Set(queryOrderBy, clause)
	return self
}

func (self *QueryableCollection) Skip(skip int) *QueryableCollection {
	self.query.Set(querySkip, strconv.Itoa(skip))
	return self
}

func (self *QueryableCollection) Top(top int) *QueryableCollection {
	self.query.Set(queryTop, strconv.Itoa(top))
	return self
}

// instance-shaped refinement: adds the partial-update helper
type QueryableInstance struct {
	*Queryable
}

func NewQueryableInstance(transport Transport, baseUrl string, path string) (*QueryableInstance, error) {
	q, err := NewQueryable(transport, baseUrl, path)
	if err != nil {
		return nil, err
	}
	return &QueryableInstance{Queryable: q}, nil
}

// returns a curried partial update. the property bag is serialized together
// with the type discriminator and issued as a POST with the MERGE method
// override. the raw response body is mapped through mapper
func Update[R any](q *QueryableInstance, typeName string, mapper func(body []byte) (R, error)) func(context.Context, map[string]any) (R, error) {
	return func(ctx context.Context, props map[string]any) (R, error) {
		var empty R

		body, err := json.Marshal(mergeMetadata(typeName, props))
		if err != nil {
			return empty, err
		}

		headers := http.Header{}
		headers.Set("X-HTTP-Method", "MERGE")

		response, err := q.Post(ctx, body, headers).Result()
		if err != nil {
			return empty, err
		}
		return mapper(response.Body)
	}
}

func mergeMetadata(typeName string, props map[string]any) map[string]any {
	merged := map[string]any{}
	maps.Copy(merged, props)
	merged["__metadata"] = map[string]any{
		"type": typeName,
	}
	return merged
}
