package service

import "strings"

const (
	DeptRoads       = "Roads"
	DeptGarbage     = "Garbage"
	DeptWater       = "Water"
	DeptElectricity = "Electricity"
	DeptGeneral     = "General"

	DefaultSLAHours = 24
)

const (
	RouteExact    = "exact"
	RouteFallback = "fallback"
	RouteDefault  = "default"
)

var departmentTable = map[string]string{
	"sand on road":        DeptRoads,
	"sandonroad":          DeptRoads,
	"road cracks":         DeptRoads,
	"roadcracks":          DeptRoads,
	"potholes":            DeptRoads,
	"pothole":             DeptRoads,
	"water puddles":       DeptRoads,
	"waterpuddles":        DeptRoads,
	"puddles":             DeptRoads,
	"open manholes":       DeptRoads,
	"openmanholes":        DeptRoads,
	"street debris":       DeptRoads,
	"streetdebris":        DeptRoads,
	"debris":              DeptRoads,
	"street hawkers":      DeptGarbage,
	"streethawkers":       DeptGarbage,
	"animal carcases":     DeptGarbage,
	"animalcarcases":      DeptGarbage,
	"garbage overflow":    DeptGarbage,
	"garbageoverflow":     DeptGarbage,
	"water leak":          DeptWater,
	"waterleak":           DeptWater,
	"water contamination": DeptWater,
	"watercontamination":  DeptWater,
	"drainage":            DeptWater,
	"flooding":            DeptWater,
	"power outage":        DeptElectricity,
	"poweroutage":         DeptElectricity,
	"street light":        DeptElectricity,
	"streetlight":         DeptElectricity,
}

// slaTable is keyed independently of departmentTable; a label may exist in
// one and not the other.
var slaTable = map[string]int{
	"sand on road":        8,
	"sandonroad":          8,
	"road cracks":         12,
	"roadcracks":          12,
	"potholes":            12,
	"pothole":             12,
	"water puddles":       6,
	"waterpuddles":        6,
	"puddles":             6,
	"open manholes":       4,
	"openmanholes":        4,
	"street debris":       10,
	"streetdebris":        10,
	"debris":              10,
	"street hawkers":      24,
	"streethawkers":       24,
	"animal carcases":     4,
	"animalcarcases":      4,
	"garbage overflow":    8,
	"garbageoverflow":     8,
	"water leak":          24,
	"waterleak":           24,
	"water contamination": 12,
	"watercontamination":  12,
	"drainage":            24,
	"flooding":            6,
	"power outage":        6,
	"poweroutage":         6,
	"street light":        24,
	"streetlight":         24,
	unknownIssue:          DefaultSLAHours,
}

type fallbackRule struct {
	Name       string
	Department string
	match      func(label string) bool
}

// fallbackRules are evaluated top to bottom; the first match wins. "water
// puddle" must resolve to Roads before the broader water rule sees it.
var fallbackRules = []fallbackRule{
	{Name: "water_puddle", Department: DeptRoads, match: func(l string) bool {
		return strings.Contains(l, "water") && strings.Contains(l, "puddle")
	}},
	{Name: "puddle", Department: DeptRoads, match: func(l string) bool {
		return strings.Contains(l, "puddle")
	}},
	{Name: "water_leak_drainage_flood", Department: DeptWater, match: func(l string) bool {
		return strings.Contains(l, "water") && containsAny(l, "leak", "drainage", "flood")
	}},
	{Name: "road_surface", Department: DeptRoads, match: func(l string) bool {
		return containsAny(l, "road", "pothole", "crack", "sand", "manhole", "debris")
	}},
	{Name: "electricity", Department: DeptElectricity, match: func(l string) bool {
		return containsAny(l, "electric", "power", "light")
	}},
	{Name: "sanitation", Department: DeptGarbage, match: func(l string) bool {
		return containsAny(l, "garbage", "hawker", "carcas", "overflow")
	}},
}

type RouteResult struct {
	Label      string `json:"label"`
	Department string `json:"department"`
	SLAHours   int    `json:"sla_hours"`
	Source     string `json:"source"`
	Rule       string `json:"rule,omitempty"`
}

// Route resolves a canonical label to its owning department and SLA. It never
// fails: labels that match nothing land in General with the default SLA.
func Route(label string) RouteResult {
	res := RouteResult{
		Label:      label,
		Department: DeptGeneral,
		SLAHours:   SLAHoursFor(label),
		Source:     RouteDefault,
	}

	if dept, ok := departmentTable[label]; ok && dept != DeptGeneral {
		res.Department = dept
		res.Source = RouteExact
		return res
	}

	for _, rule := range fallbackRules {
		if rule.match(label) {
			res.Department = rule.Department
			res.Source = RouteFallback
			res.Rule = rule.Name
			return res
		}
	}
	return res
}

func SLAHoursFor(label string) int {
	if h, ok := slaTable[label]; ok {
		return h
	}
	return DefaultSLAHours
}

// FallbackRuleNames lists the fallback chain in evaluation order.
func FallbackRuleNames() []string {
	out := make([]string, 0, len(fallbackRules))
	for _, r := range fallbackRules {
		out = append(out, r.Name)
	}
	return out
}

func containsAny(v string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(v, n) {
			return true
		}
	}
	return false
}
