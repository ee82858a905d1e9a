package service

import (
	"strings"
	"unicode"
)

const unknownIssue = "unknown"

// issueAliases maps the compact (separator-free) spelling of a label to its
// canonical vocabulary form. Detector class names arrive in several shapes
// (waterpuddles, water_puddle, Open-Manhole), all of which collapse here.
var issueAliases = map[string]string{
	"sandonroad":         "sand on road",
	"roadcracks":         "road cracks",
	"roadcrack":          "road cracks",
	"pathholes":          "potholes",
	"waterpuddles":       "water puddles",
	"waterpuddle":        "water puddles",
	"openmanholes":       "open manholes",
	"openmanhole":        "open manholes",
	"streetdebris":       "street debris",
	"streethawkers":      "street hawkers",
	"streethawker":       "street hawkers",
	"animalcarcases":     "animal carcases",
	"animalcarcass":      "animal carcases",
	"animalcarcasses":    "animal carcases",
	"garbageoverflow":    "garbage overflow",
	"waterleak":          "water leak",
	"watercontamination": "water contamination",
	"poweroutage":        "power outage",
	"streetlight":        "street light",
	"streetlights":       "street light",
}

// NormalizeIssue canonicalizes a free-form issue label. Unknown labels come
// back lowercased with separators collapsed so substring routing still works.
func NormalizeIssue(raw string) string {
	collapsed := collapseSeparators(strings.ToLower(strings.TrimSpace(raw)))
	if collapsed == "" {
		return unknownIssue
	}
	if canonical, ok := issueAliases[strings.ReplaceAll(collapsed, " ", "")]; ok {
		return canonical
	}
	return collapsed
}

func collapseSeparators(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	pendingSep := false
	for _, r := range v {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
