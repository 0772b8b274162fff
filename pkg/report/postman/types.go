// Package postman parses Newman collection-run reports into executed
// scenarios.
package postman

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Report is the top-level shape of a Newman JSON report.
type Report struct {
	Collection Collection `json:"collection"`
	Run        Run        `json:"run"`
}

// Collection is the collection that ran, with its folder/request tree.
type Collection struct {
	Info  Info   `json:"info"`
	Items []Item `json:"item"`
}

// Info carries the collection metadata.
type Info struct {
	Name string `json:"name"`
}

// Item is a folder (with child items) or a request (with a request body).
type Item struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Items   []Item   `json:"item"`
	Request *Request `json:"request"`
	Events  []Event  `json:"event"`
}

// Request describes the HTTP request of a leaf item.
type Request struct {
	Method string `json:"method"`
	URL    URL    `json:"url"`
}

// URL is a Newman URL object.
type URL struct {
	Raw      string   `json:"raw"`
	Protocol string   `json:"protocol"`
	Host     []string `json:"host"`
	Path     []string `json:"path"`
}

// String renders the URL, preferring the raw form when present.
func (u *URL) String() string {
	if u.Raw != "" {
		return u.Raw
	}

	var b strings.Builder

	if u.Protocol != "" {
		b.WriteString(u.Protocol)
		b.WriteString("://")
	}

	b.WriteString(strings.Join(u.Host, "."))

	if len(u.Path) > 0 {
		b.WriteByte('/')
		b.WriteString(strings.Join(u.Path, "/"))
	}

	return b.String()
}

// Event is a pre-request or test script hook of an item.
type Event struct {
	Listen string `json:"listen"`
	Script Script `json:"script"`
}

// Script holds the lines of an event's script.
type Script struct {
	Exec []string `json:"exec"`
}

// Run holds what actually executed: one execution per request that ran, and
// the failures Newman recorded.
type Run struct {
	Executions []Execution `json:"executions"`
	Failures   []Failure   `json:"failures"`
}

// Execution is the outcome of one request.
type Execution struct {
	Item       ItemRef     `json:"item"`
	Response   *Response   `json:"response"`
	Assertions []Assertion `json:"assertions"`
}

// ItemRef references an item by id.
type ItemRef struct {
	ID string `json:"id"`
}

// Response is the HTTP response of an execution.
type Response struct {
	Code         int      `json:"code"`
	Status       string   `json:"status"`
	ResponseTime int64    `json:"responseTime"`
	Headers      []Header `json:"header"`
}

// Header is one HTTP response header.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Assertion is one test assertion evaluated against a response.
type Assertion struct {
	Assertion string        `json:"assertion"`
	Error     *FailureError `json:"error"`
}

// Failure is one entry of the run's failure list.
type Failure struct {
	Error  *FailureError `json:"error"`
	Source *ItemRef      `json:"source"`
}

// FailureError describes what went wrong.
type FailureError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// Exception renders the failure as stored on an error entity: the stack when
// available, else "name: message", else a placeholder.
func (e *FailureError) Exception() string {
	if e == nil {
		return "Unknown error"
	}

	if e.Stack != "" {
		return e.Stack
	}

	if e.Name != "" || e.Message != "" {
		return strings.TrimPrefix(e.Name+": "+e.Message, ": ")
	}

	return "Unknown error"
}

// ParseReport parses the content of a Newman report file.
func ParseReport(data []byte) (*Report, error) {
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing newman report: %w", err)
	}

	return &report, nil
}
