package sprest

import (
	"net/http"
	"sync"

	"golang.org/x/exp/slices"
)

// raw response from the transport or from one demultiplexed batch part
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

type resultCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleResultCallback[R any] struct {
	callback func(result R, err error)
}

func NewResultCallback[R any](callback func(result R, err error)) resultCallback[R] {
	return &simpleResultCallback[R]{
		callback: callback,
	}
}

func (self *simpleResultCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ResultEnvelope[R any] struct {
	Result R
	Error  error
}

func NewBlockingResultCallback[R any]() (resultCallback[R], chan ResultEnvelope[R]) {
	c := make(chan ResultEnvelope[R], 1)
	callback := NewResultCallback[R](func(result R, err error) {
		c <- ResultEnvelope[R]{
			Result: result,
			Error:  err,
		}
	})
	return callback, c
}

// a response that has not resolved yet. direct requests resolve when the
// transport returns. batched requests resolve when the owning batch executes.
// Result blocks until then and is safe to call repeatedly
type PendingResponse struct {
	callback resultCallback[*Response]
	c        chan ResultEnvelope[*Response]

	once     sync.Once
	envelope ResultEnvelope[*Response]
}

func newPendingResponse() *PendingResponse {
	callback, c := NewBlockingResultCallback[*Response]()
	return &PendingResponse{
		callback: callback,
		c:        c,
	}
}

// resolve is called exactly once per pending response
func (self *PendingResponse) resolve(response *Response, err error) {
	self.callback.Result(response, err)
}

func (self *PendingResponse) Result() (*Response, error) {
	self.once.Do(func() {
		self.envelope = <-self.c
	})
	return self.envelope.Result, self.envelope.Error
}

func cloneHeaders(headers http.Header) http.Header {
	out := http.Header{}
	for name, values := range headers {
		out[name] = slices.Clone(values)
	}
	return out
}
