package config

import (
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

// Credentials identifies the remote collector account: who we upload as,
// how we authenticate, and where the batches go. A well-formed upload
// request needs all three fields.
type Credentials struct {
	AccountID       string `json:"account_id"`
	BeaconKey       string `json:"beacon_key"`
	ServerURLFormat string `json:"server_url_format"` // %s is replaced with AccountID
}

func (c Credentials) complete() bool {
	return c.AccountID != "" && c.BeaconKey != "" && c.ServerURLFormat != ""
}

// CredentialSource is a pull accessor for the current Credentials.
// The uploader calls it fresh on every request-construction attempt, so
// rotated credentials take effect without a restart. ok=false means "not
// usable right now" — the uploader treats that as nothing-to-do, not as
// an error.
type CredentialSource interface {
	Credentials() (Credentials, bool)
}

// FileSource reads credentials from a JSON file on every call. The file
// is tiny and the call sits on the (rare) request-construction path, so
// no caching is warranted; a deploy tool or secrets agent can rewrite the
// file at any time.
type FileSource struct {
	Path string
}

func (s FileSource) Credentials() (Credentials, bool) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Credentials{}, false
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, false
	}

	c.AccountID = strings.TrimSpace(c.AccountID)
	c.BeaconKey = strings.TrimSpace(c.BeaconKey)
	c.ServerURLFormat = strings.TrimSpace(c.ServerURLFormat)

	if !c.complete() {
		return Credentials{}, false
	}
	return c, true
}

// StaticSource returns fixed credentials; used in tests and for
// environments without rotation.
type StaticSource struct {
	Creds Credentials
}

func (s StaticSource) Credentials() (Credentials, bool) {
	if !s.Creds.complete() {
		return Credentials{}, false
	}
	return s.Creds, true
}
