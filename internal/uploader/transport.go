package uploader

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is one fully built upload exchange: where to send the batch
// and with what body. Built lazily from the front batch plus the current
// credentials, and reused verbatim across retries of the same batch.
type Request struct {
	URL           string
	Authorization string
	Body          []byte
}

// Response is the collector's answer to one exchange.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport executes one blocking HTTP exchange. Returning an error means
// the exchange itself failed (connect, timeout); any received status code,
// 2xx or not, comes back as a Response. The production implementation is
// HTTPTransport; tests script their own.
type Transport interface {
	Do(req *Request) (*Response, error)
}

// maxResponseBody caps how much of a collector response is read; bodies
// only feed error logs.
const maxResponseBody = 64 * 1024

// HTTPTransport sends batches with a plain net/http client. The client's
// Timeout bounds each attempt end to end; the scheduler above never
// cancels an exchange midway.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

// Do performs one PUT of a JSON batch body.
func (t *HTTPTransport) Do(req *Request) (*Response, error) {
	hreq, err := http.NewRequest(http.MethodPut, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	hreq.Header.Set("Authorization", req.Authorization)
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		// We have a status code; a truncated diagnostic body is not a
		// transport failure.
		body = nil
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
