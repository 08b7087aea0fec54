package sprest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
)

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

const acceptJsonVerbose = "application/json;odata=verbose"

func defaultHttpClient() *http.Client {
	// see https://medium.com/@nate510/don-t-use-go-s-default-http-client-4804cb19f779
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

// the transport issues one request and returns the raw response.
// a non-2xx status surfaces as *RequestError. no retries at this layer
type Transport interface {
	Send(ctx context.Context, method string, url string, headers http.Header, body []byte) (*Response, error)
}

type RequestError struct {
	Method     string
	Url        string
	StatusCode int
	Body       []byte
}

func (self *RequestError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", self.Method, self.Url, self.StatusCode, strings.TrimSpace(string(self.Body)))
}

type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	httpClient *http.Client

	bearerToken string

	digests *DigestCache
}

func NewClient() *Client {
	return NewClientWithContext(context.Background())
}

func NewClientWithContext(ctx context.Context) *Client {
	cancelCtx, cancel := context.WithCancel(ctx)

	client := &Client{
		ctx:        cancelCtx,
		cancel:     cancel,
		httpClient: defaultHttpClient(),
	}
	client.digests = NewDigestCache(client)
	return client
}

// this gets attached to requests that need it
func (self *Client) SetBearerToken(bearerToken string) {
	if bearerToken != "" {
		if token, err := ParseBearerTokenUnverified(bearerToken); err == nil && token.Expired() {
			glog.Warningf("[client]bearer token expired at %s\n", token.ExpireTime)
		}
	}
	self.bearerToken = bearerToken
}

func (self *Client) Close() {
	self.cancel()
}

func (self *Client) Send(ctx context.Context, method string, url string, headers http.Header, body []byte) (*Response, error) {
	if ctx == nil {
		ctx = self.ctx
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for name, values := range headers {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", acceptJsonVerbose)
	}
	if 0 < len(body) && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", acceptJsonVerbose)
	}

	requestId := NewId()
	req.Header.Set("client-request-id", requestId.String())

	if self.bearerToken != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", self.bearerToken))
	}

	if method == "POST" && req.Header.Get("X-RequestDigest") == "" {
		if webUrl, ok := digestWebUrl(url); ok {
			digest, err := self.digests.Get(ctx, webUrl)
			if err != nil {
				return nil, err
			}
			req.Header.Set("X-RequestDigest", digest)
		}
	}

	r, err := self.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	responseBodyBytes, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return nil, err
	}

	if r.StatusCode < 200 || 300 <= r.StatusCode {
		return nil, &RequestError{
			Method:     method,
			Url:        url,
			StatusCode: r.StatusCode,
			Body:       responseBodyBytes,
		}
	}

	glog.V(2).Infof("[client]%s %s status = %d (%s)\n", method, url, r.StatusCode, requestId)

	return &Response{
		StatusCode: r.StatusCode,
		Headers:    r.Header,
		Body:       responseBodyBytes,
	}, nil
}

// the web url a POST needs a form digest for, or false when the url is not
// api-addressed or is the contextinfo request itself
func digestWebUrl(url string) (string, bool) {
	lowerUrl := strings.ToLower(url)
	i := strings.Index(lowerUrl, "/_api/")
	if i < 0 {
		return "", false
	}
	if strings.HasSuffix(lowerUrl, "/_api/contextinfo") {
		return "", false
	}
	return url[:i], true
}
