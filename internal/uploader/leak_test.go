package uploader

import (
	"testing"

	"go.uber.org/goleak"
)

// Every Uploader owns exactly one goroutine; Close must reap it.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
