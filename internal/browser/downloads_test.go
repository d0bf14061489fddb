package browser

import (
	"testing"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/stretchr/testify/assert"
)

func TestDownloadsPending(t *testing.T) {
	d := newDownloads()
	assert.Equal(t, 0, d.Pending())

	d.handle(&cdpbrowser.EventDownloadWillBegin{GUID: "a", SuggestedFilename: "CrimeTrend.csv"})
	d.handle(&cdpbrowser.EventDownloadWillBegin{GUID: "b", SuggestedFilename: "CrimeTrend (1).csv"})
	assert.Equal(t, 2, d.Pending())

	d.handle(&cdpbrowser.EventDownloadProgress{GUID: "a", State: cdpbrowser.DownloadProgressStateInProgress})
	assert.Equal(t, 2, d.Pending())

	d.handle(&cdpbrowser.EventDownloadProgress{GUID: "a", State: cdpbrowser.DownloadProgressStateCompleted})
	d.handle(&cdpbrowser.EventDownloadProgress{GUID: "b", State: cdpbrowser.DownloadProgressStateCanceled})
	assert.Equal(t, 0, d.Pending())

	d.handle("unrelated event")
	assert.Equal(t, 0, d.Pending())
}
