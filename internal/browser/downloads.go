package browser

import (
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
)

// Downloads follows the browser's download events and counts the ones that
// have begun but not yet completed or been cancelled.
type Downloads struct {
	mu     sync.Mutex
	active map[string]string // guid -> suggested filename
}

func newDownloads() *Downloads {
	return &Downloads{active: make(map[string]string)}
}

// Pending returns the number of downloads still in flight.
func (d *Downloads) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// handle is registered as a target listener; it must not block.
func (d *Downloads) handle(ev interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch e := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		d.active[e.GUID] = e.SuggestedFilename
	case *cdpbrowser.EventDownloadProgress:
		switch e.State {
		case cdpbrowser.DownloadProgressStateCompleted, cdpbrowser.DownloadProgressStateCanceled:
			delete(d.active, e.GUID)
		}
	}
}
