package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChecker(2 * time.Second)
	assert.NoError(t, c.Check(context.Background(), srv.URL+"/LATEST/webapp/#/pages/explorer/crime/crime-trend"))
	assert.Error(t, c.Check(context.Background(), srv.URL+"/down"))
}

func TestCheckUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewChecker(200 * time.Millisecond)
	assert.Error(t, c.Check(context.Background(), url))
}
