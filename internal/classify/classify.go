// Package classify maps a caller utterance to a repair issue label.
package classify

import "strings"

// Unknown is returned when no catalog entry or synonym matches.
const Unknown = "UNKNOWN"

// repairCatalog lists every repair type known to the store platform. Scan
// order matters: the first name found in the utterance wins, so the catalog
// must stay in this fixed order.
var repairCatalog = []string{
	"Battery",
	"LCD",
	"Software",
	"OLED",
	"OEM",
	"Back Camera",
	"Charge Port",
	"Back Glass",
	"Camera Glass",
	"UB Screen",
	"Dock",
	"Octa / UB",
	"Housing",
	"Front Cam",
	"Glass",
	"HDMI / RETIMER",
	"HDD 500GB",
	"HDD 1TB",
	"SSD 500GB",
	"SSD 1TB",
	"DISK DRIVE",
	"POWER SUPPLY",
	"REFLASH",
	"Device Cleaning",
	"Digi Only",
	"LCD Only",
	"Charging Repair",
	"Head Jack",
	"SD Card Reader",
	"Card Reader",
	"Cooling Fan",
	"Joycon Stick/Rail",
	"CPU",
}

type synonym struct {
	keyword string
	repairs []string
}

// synonyms maps conversational vocabulary that never matches a catalog name
// directly. Ordered slice, not a map: first keyword found wins.
var synonyms = []synonym{
	{"screen", []string{"LCD", "OLED", "Glass", "UB Screen"}},
	{"battery", []string{"Battery"}},
	{"charge", []string{"Charge Port", "Charging Repair"}},
	{"camera", []string{"Back Camera", "Front Cam", "Camera Glass"}},
	{"software", []string{"Software", "REFLASH"}},
	{"storage", []string{"HDD 500GB", "HDD 1TB", "SSD 500GB", "SSD 1TB"}},
	{"hdmi", []string{"HDMI / RETIMER"}},
	{"fan", []string{"Cooling Fan"}},
	{"cpu", []string{"CPU"}},
	{"power", []string{"POWER SUPPLY"}},
	{"clean", []string{"Device Cleaning"}},
	{"dock", []string{"Dock"}},
	{"housing", []string{"Housing"}},
	{"glass", []string{"Glass", "Back Glass"}},
}

// Classify returns the repair label for an utterance. Direct catalog-name
// substring match is tried first, then the synonym table; both scans are
// case-insensitive and return on the first hit.
func Classify(utterance string) string {
	text := strings.ToLower(utterance)

	for _, name := range repairCatalog {
		if strings.Contains(text, strings.ToLower(name)) {
			return name
		}
	}

	for _, syn := range synonyms {
		if strings.Contains(text, syn.keyword) {
			return syn.repairs[0]
		}
	}

	return Unknown
}
