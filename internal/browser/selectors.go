package browser

import "fmt"

// Selectors locate the portal elements the sweep interacts with.
type Selectors struct {
	AgencyInput string // CSS
	Option      string // CSS
	Spinner     string // CSS
	MenuButton  string // XPath
	DownloadCSV string // XPath
	ClearAgency string // XPath
}

// DefaultSelectors match the explorer's current DOM.
var DefaultSelectors = Selectors{
	AgencyInput: "#agency-select-input",
	Option:      "nb-option",
	Spinner:     "nb-spinner",
	MenuButton:  "//nb-icon[@id='hr-menu-icon']/ancestor::button",
	DownloadCSV: "//li[@title='Download as CSV']",
	ClearAgency: "//button[contains(@title,'Clear Agency')]",
}

// OptionXPath locates the option whose text contains label.
func (s Selectors) OptionXPath(label string) string {
	return fmt.Sprintf("//%s[contains(., '%s')]", s.Option, label)
}
