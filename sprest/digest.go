package sprest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
)

// refresh slightly before the server-side expiration
const digestExpireSkew = 10 * time.Second

type cachedDigest struct {
	value      string
	expireTime time.Time
}

// form digests authorize POST-family requests against a web.
// one digest is cached per web url until it expires
type DigestCache struct {
	transport Transport

	stateLock sync.Mutex
	digests   map[string]*cachedDigest
}

func NewDigestCache(transport Transport) *DigestCache {
	return &DigestCache{
		transport: transport,
		digests:   map[string]*cachedDigest{},
	}
}

func (self *DigestCache) Get(ctx context.Context, webUrl string) (string, error) {
	self.stateLock.Lock()
	cached, ok := self.digests[webUrl]
	self.stateLock.Unlock()

	if ok && time.Now().Before(cached.expireTime) {
		return cached.value, nil
	}

	glog.V(2).Infof("[digest]refresh %s\n", webUrl)

	response, err := self.transport.Send(ctx, "POST", CombinePaths(webUrl, "_api/contextinfo"), http.Header{}, nil)
	if err != nil {
		return "", err
	}

	var contextInfo contextInfoResult
	if err := json.Unmarshal(response.Body, &contextInfo); err != nil {
		return "", err
	}
	web := contextInfo.D.GetContextWebInformation

	self.stateLock.Lock()
	self.digests[webUrl] = &cachedDigest{
		value:      web.FormDigestValue,
		expireTime: time.Now().Add(time.Duration(web.FormDigestTimeoutSeconds)*time.Second - digestExpireSkew),
	}
	self.stateLock.Unlock()

	return web.FormDigestValue, nil
}

type contextInfoResult struct {
	D struct {
		GetContextWebInformation struct {
			FormDigestValue          string `json:"FormDigestValue"`
			FormDigestTimeoutSeconds int    `json:"FormDigestTimeoutSeconds"`
		} `json:"GetContextWebInformation"`
	} `json:"d"`
}
