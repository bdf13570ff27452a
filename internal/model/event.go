// internal/model/event.go
package model

// Event is a single application occurrence collected from a client.
// It is the basic unit of data in the pipeline and flows unchanged from
// Handler → Manager → BatchQueue → Uploader. The uploader never inspects
// individual fields; it only serializes whole batches for the wire and
// for archive snapshots.
//
// Body holds the raw query/body string sent by the client; cookie and
// user-agent are collected alongside and separated by downstream ETL.
type Event struct {
	Ts        int64  `json:"ts"`         // collection time (UTC epoch seconds, timecache.Unix based)
	IP        string `json:"ip"`         // real client IP (ALB/XFF/CDN header based)
	UserAgent string `json:"user_agent"` // User-Agent string
	Cookie    string `json:"cookie"`     // Cookie header raw string
	Body      string `json:"body"`       // GET: RawQuery / POST: body text
}

// Batch is an ordered group of events uploaded together in one request.
// A batch is immutable once it has been handed to the queue; its identity
// is its FIFO position, not its content.
type Batch []Event
