package sprest

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func init() {
	initGlog()
}

func initGlog() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Set("v", "0")
}

func TestSelectExpandZeroArgsNoop(t *testing.T) {
	q, err := NewQueryable(nil, "https://c.com/_api/web", "")
	assert.Equal(t, err, nil)

	q.Select()
	q.Expand()
	assert.Equal(t, q.Query().Len(), 0)

	q.Select("Title", "Id")
	q.Expand("Folders")
	selects, _ := q.Query().Get(querySelect)
	expands, _ := q.Query().Get(queryExpand)
	assert.Equal(t, selects, "Title,Id")
	assert.Equal(t, expands, "Folders")
}

func TestDeriveInheritsBatchWhenAsked(t *testing.T) {
	q, err := NewQueryable(nil, "https://c.com/_api/web", "")
	assert.Equal(t, err, nil)
	batch := NewBatch(nil, "https://c.com")
	q.InBatch(batch)

	withBatch := Derive(q, func(base *Queryable) *Queryable { return base }, "webs", true)
	assert.Equal(t, withBatch.HasBatch(), true)
	assert.Equal(t, withBatch.URL(), "https://c.com/_api/web/webs")

	withoutBatch := Derive(q, func(base *Queryable) *Queryable { return base }, "webs", false)
	assert.Equal(t, withoutBatch.HasBatch(), false)
}

func TestParentDerivation(t *testing.T) {
	users, err := NewQueryableCollection(nil, "https://c.com/sites/dev/_api/web", "siteusers")
	assert.Equal(t, err, nil)
	users.Query().Set("@target", "'https://other.com'")

	parent, err := Parent(users.Queryable, func(base *Queryable) *Queryable { return base }, "", "", nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, parent.URL(), "https://c.com/sites/dev/_api/web")
	target, ok := parent.Query().Get("@target")
	assert.Equal(t, ok, true)
	assert.Equal(t, target, "'https://other.com'")
	assert.Equal(t, parent.HasBatch(), false)
}

func TestGetAgainstServer(t *testing.T) {
	var gotAccept string
	var gotRequestId string
	var gotAuthorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotRequestId = r.Header.Get("client-request-id")
		gotAuthorization = r.Header.Get("Authorization")
		w.Write([]byte(`{"d":{"Title":"dev"}}`))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()
	client.SetBearerToken("test-token")

	q, err := NewQueryable(client, server.URL, "_api/web")
	assert.Equal(t, err, nil)
	q.Select("Title")

	response, err := q.GetSync(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, response.StatusCode, 200)
	assert.Equal(t, string(response.Body), `{"d":{"Title":"dev"}}`)

	assert.Equal(t, gotAccept, acceptJsonVerbose)
	assert.Equal(t, gotAuthorization, "Bearer test-token")
	_, err = ParseId(gotRequestId)
	assert.Equal(t, err, nil)
}

func TestGetJson(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"d":{"Title":"dev"}}`))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	q, err := NewQueryable(client, server.URL, "_api/web")
	assert.Equal(t, err, nil)

	type webResult struct {
		D struct {
			Title string `json:"Title"`
		} `json:"d"`
	}
	result, err := GetJson(context.Background(), q, &webResult{})
	assert.Equal(t, err, nil)
	assert.Equal(t, result.D.Title, "dev")
}

func TestTransportErrorCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte("not found"))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	q, err := NewQueryable(client, server.URL, "_api/web/missing")
	assert.Equal(t, err, nil)

	_, err = q.GetSync(context.Background())
	assert.NotEqual(t, err, nil)
	requestErr, ok := err.(*RequestError)
	assert.Equal(t, ok, true)
	assert.Equal(t, requestErr.StatusCode, 404)
	assert.Equal(t, string(requestErr.Body), "not found")
}

func TestUpdateMergeOverride(t *testing.T) {
	var gotMethod string
	var gotOverride string
	var gotDigest string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/_api/contextinfo") {
			w.Write([]byte(`{"d":{"GetContextWebInformation":{"FormDigestValue":"digest-1","FormDigestTimeoutSeconds":1800}}}`))
			return
		}
		gotMethod = r.Method
		gotOverride = r.Header.Get("X-HTTP-Method")
		gotDigest = r.Header.Get("X-RequestDigest")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"d":{}}`))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	web, err := NewWeb(client, server.URL)
	assert.Equal(t, err, nil)

	result, err := web.Update(context.Background(), map[string]any{"Title": "renamed"})
	assert.Equal(t, err, nil)
	assert.Equal(t, string(result.Data), `{"d":{}}`)

	assert.Equal(t, gotMethod, "POST")
	assert.Equal(t, gotOverride, "MERGE")
	assert.Equal(t, gotDigest, "digest-1")
	assert.Equal(t, gotBody["Title"], "renamed")
	metadata := gotBody["__metadata"].(map[string]any)
	assert.Equal(t, metadata["type"], "SP.Web")
}

func TestSiteUsersGetByLoginNameAlias(t *testing.T) {
	web, err := NewWeb(nil, "https://c.com/sites/dev")
	assert.Equal(t, err, nil)

	user := web.SiteUsers().GetByLoginName("i:0#.f|m|user@c.com")
	url := user.ToRequestURL()
	assert.Equal(t, strings.Contains(url, "getByLoginName(@v)"), true)
	assert.Equal(t, strings.Contains(url, "@v='i:0%23.f%7Cm%7Cuser@c.com'"), true)
}
