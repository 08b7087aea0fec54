package sprest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"

	"golang.org/x/exp/slices"
)

const batchStateOpen = 0
const batchStateExecuting = 1
const batchStateCompleted = 2
const batchStateFailed = 3

func batchStateName(state int) string {
	switch state {
	case batchStateOpen:
		return "open"
	case batchStateExecuting:
		return "executing"
	case batchStateCompleted:
		return "completed"
	case batchStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// a caller contract violation, distinct from transport errors:
// add after execute, or execute called twice
type BatchStateError struct {
	Op    string
	State int
}

func (self *BatchStateError) Error() string {
	return fmt.Sprintf("batch %s not allowed in state %s", self.Op, batchStateName(self.State))
}

type batchRequest struct {
	method  string
	url     string
	headers http.Header
	body    []byte
	pending *PendingResponse
}

// accumulates requests while open and executes them as one round trip
// against <siteUrl>/_api/$batch. sub-responses resolve each pending
// response in registration order. a batch executes at most once
type Batch struct {
	transport Transport
	siteUrl   string
	batchId   Id

	// the pending list is mutated only while open
	stateLock sync.Mutex
	state     int
	requests  []*batchRequest
}

func NewBatch(transport Transport, siteUrl string) *Batch {
	return &Batch{
		transport: transport,
		siteUrl:   siteUrl,
		batchId:   NewId(),
		state:     batchStateOpen,
		requests:  []*batchRequest{},
	}
}

func (self *Batch) Id() Id {
	return self.batchId
}

func (self *Batch) Len() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.requests)
}

// registers a pending request. the returned pending response resolves
// once the batch executes
func (self *Batch) Add(method string, url string, headers http.Header, body []byte) (*PendingResponse, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.state != batchStateOpen {
		return nil, &BatchStateError{
			Op:    "add",
			State: self.state,
		}
	}

	request := &batchRequest{
		method:  method,
		url:     url,
		headers: headers,
		body:    body,
		pending: newPendingResponse(),
	}
	self.requests = append(self.requests, request)
	glog.V(2).Infof("[batch]%s add %s %s\n", self.batchId, method, url)
	return request.pending, nil
}

// executes the accumulated requests as a single network operation.
// calling execute more than once is a programming error and fails fast
// without touching the network
func (self *Batch) Execute(ctx context.Context) error {
	self.stateLock.Lock()
	if self.state != batchStateOpen {
		state := self.state
		self.stateLock.Unlock()
		return &BatchStateError{
			Op:    "execute",
			State: state,
		}
	}
	self.state = batchStateExecuting
	requests := slices.Clone(self.requests)
	self.stateLock.Unlock()

	if len(requests) == 0 {
		self.setState(batchStateCompleted)
		return nil
	}

	body, contentType := self.buildBody(requests)
	headers := http.Header{}
	headers.Set("Content-Type", contentType)

	glog.V(2).Infof("[batch]%s execute %d requests\n", self.batchId, len(requests))

	response, err := self.transport.Send(ctx, "POST", CombinePaths(self.siteUrl, "_api/$batch"), headers, body)
	if err != nil {
		// the combined call failed. every still-pending response rejects
		// with the same failure
		self.setState(batchStateFailed)
		for _, request := range requests {
			request.pending.resolve(nil, err)
		}
		return err
	}

	parts, err := parseBatchResponse(response.Body)
	if err == nil && len(parts) != len(requests) {
		err = fmt.Errorf("batch returned %d responses for %d requests", len(parts), len(requests))
	}
	if err != nil {
		self.setState(batchStateFailed)
		for _, request := range requests {
			request.pending.resolve(nil, err)
		}
		return err
	}

	// sub-responses map back strictly by registration index
	for i, request := range requests {
		part := parts[i]
		if part.StatusCode < 200 || 300 <= part.StatusCode {
			request.pending.resolve(nil, &RequestError{
				Method:     request.method,
				Url:        request.url,
				StatusCode: part.StatusCode,
				Body:       part.Body,
			})
		} else {
			request.pending.resolve(part, nil)
		}
	}
	self.setState(batchStateCompleted)
	return nil
}

func (self *Batch) setState(state int) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.state = state
}

// one combined multipart/mixed request. each GET is a plain part.
// each POST-family request is wrapped in its own changeset
func (self *Batch) buildBody(requests []*batchRequest) ([]byte, string) {
	boundary := fmt.Sprintf("batch_%s", self.batchId)

	var body bytes.Buffer
	for _, request := range requests {
		if request.method == "GET" {
			body.WriteString("--" + boundary + "\r\n")
			body.WriteString("Content-Type: application/http\r\n")
			body.WriteString("Content-Transfer-Encoding: binary\r\n")
			body.WriteString("\r\n")
			body.WriteString(fmt.Sprintf("%s %s HTTP/1.1\r\n", request.method, request.url))
			body.WriteString("Accept: " + acceptJsonVerbose + "\r\n")
			writePartHeaders(&body, request.headers)
			body.WriteString("\r\n")
		} else {
			changesetBoundary := fmt.Sprintf("changeset_%s", NewId())
			body.WriteString("--" + boundary + "\r\n")
			body.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", changesetBoundary))
			body.WriteString("\r\n")
			body.WriteString("--" + changesetBoundary + "\r\n")
			body.WriteString("Content-Type: application/http\r\n")
			body.WriteString("Content-Transfer-Encoding: binary\r\n")
			body.WriteString("\r\n")
			body.WriteString(fmt.Sprintf("%s %s HTTP/1.1\r\n", request.method, request.url))
			if request.headers.Get("Content-Type") == "" {
				body.WriteString("Content-Type: " + acceptJsonVerbose + "\r\n")
			}
			writePartHeaders(&body, request.headers)
			body.WriteString("\r\n")
			body.Write(request.body)
			body.WriteString("\r\n")
			body.WriteString("--" + changesetBoundary + "--\r\n")
		}
	}
	body.WriteString("--" + boundary + "--\r\n")

	return body.Bytes(), fmt.Sprintf("multipart/mixed; boundary=\"%s\"", boundary)
}

func writePartHeaders(body *bytes.Buffer, headers http.Header) {
	for _, name := range sortedHeaderNames(headers) {
		for _, value := range headers[name] {
			body.WriteString(name + ": " + value + "\r\n")
		}
	}
}

func sortedHeaderNames(headers http.Header) []string {
	names := []string{}
	for name := range headers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// demultiplexes the combined response body into one response per part.
// parts are delimited by batchresponse/changesetresponse boundaries, each
// opening with an embedded http status line
func parseBatchResponse(raw []byte) ([]*Response, error) {
	const scanStatus = 0
	const scanHeaders = 1
	const scanBody = 2

	responses := []*Response{}
	state := scanStatus
	var current *Response
	var bodyLines []string

	flush := func() {
		if current != nil {
			current.Body = []byte(strings.TrimSpace(strings.Join(bodyLines, "\n")))
			responses = append(responses, current)
			current = nil
			bodyLines = nil
		}
	}

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")

		if strings.HasPrefix(line, "--batchresponse_") || strings.HasPrefix(line, "--changesetresponse_") {
			flush()
			state = scanStatus
			continue
		}

		switch state {
		case scanStatus:
			if status, ok := parseHttpStatusLine(line); ok {
				current = &Response{
					StatusCode: status,
					Headers:    http.Header{},
				}
				state = scanHeaders
			}
		case scanHeaders:
			if line == "" {
				state = scanBody
				break
			}
			if name, value, ok := strings.Cut(line, ":"); ok {
				current.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}
		case scanBody:
			bodyLines = append(bodyLines, line)
		}
	}
	flush()

	if len(responses) == 0 {
		return nil, fmt.Errorf("no responses in batch body")
	}
	return responses, nil
}

func parseHttpStatusLine(line string) (int, bool) {
	if !strings.HasPrefix(line, "HTTP/") {
		return 0, false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	status, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return status, true
}
