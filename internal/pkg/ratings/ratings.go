// Package ratings reduces the age ratings IGDB reports for a game to the one
// rating shown in the catalog.
package ratings

const (
	SystemESRB = "ESRB"
	SystemPEGI = "PEGI"
	SystemCERO = "CERO"
	SystemUSK  = "USK"
	SystemIARC = "IARC"
)

// NotRatedCode is used when a known system reports a rating value we do not map.
const NotRatedCode = "NR"

// Row is one raw IGDB age_ratings entry. Both fields may be missing.
type Row struct {
	Category *int `json:"category"`
	Rating   *int `json:"rating"`
}

// Choice is the normalized age rating of a game. Code is empty for ratings
// that carry no code, such as the generic IARC fallback.
type Choice struct {
	System string `json:"system"`
	Label  string `json:"label"`
	Code   string `json:"code,omitempty"`
}

var categorySystems = map[int]string{
	1: SystemESRB,
	2: SystemPEGI,
	3: SystemCERO,
	4: SystemUSK,
}

var ratingCodes = map[string]map[int]string{
	SystemESRB: {6: "E", 7: "E10+", 8: "T", 9: "M", 10: "AO", 12: "RP"},
	SystemPEGI: {1: "3", 2: "7", 3: "12", 4: "16", 5: "18"},
	SystemCERO: {13: "A", 14: "B", 15: "C", 16: "D", 17: "Z"},
	SystemUSK:  {18: "0", 19: "6", 20: "12", 21: "16", 22: "18"},
}

// preference lists the systems tried in order before falling back to the
// first mapped entry.
var preference = []string{SystemESRB, SystemPEGI, SystemUSK, SystemCERO}

// Map converts one row. ok is false when category or rating is missing.
func Map(r Row) (Choice, bool) {
	if r.Category == nil || r.Rating == nil {
		return Choice{}, false
	}

	system, known := categorySystems[*r.Category]
	if !known {
		return Choice{System: SystemIARC, Label: "Not Rated"}, true
	}

	code, ok := ratingCodes[system][*r.Rating]
	if !ok {
		return Choice{System: system, Label: system + " Not Rated", Code: NotRatedCode}, true
	}
	return Choice{System: system, Label: system + " " + code, Code: code}, true
}

// PickAgeRating returns the preferred rating among rows, or nil when no row
// can be mapped.
func PickAgeRating(rows []Row) *Choice {
	mapped := make([]Choice, 0, len(rows))
	for _, r := range rows {
		if c, ok := Map(r); ok {
			mapped = append(mapped, c)
		}
	}
	if len(mapped) == 0 {
		return nil
	}

	for _, system := range preference {
		for i := range mapped {
			if mapped[i].System == system {
				c := mapped[i]
				return &c
			}
		}
	}
	c := mapped[0]
	return &c
}
