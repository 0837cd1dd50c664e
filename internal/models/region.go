// internal/models/region.go
package models

import "strings"

// RegionNational is the scope of a service available everywhere.
const RegionNational = "NATIONAL"

var regionAliases = map[string]string{
	"andhra pradesh":    "AP",
	"assam":             "AS",
	"bihar":             "BR",
	"delhi":             "DL",
	"goa":               "GA",
	"gujarat":           "GJ",
	"haryana":           "HR",
	"himachal pradesh":  "HP",
	"jharkhand":         "JH",
	"karnataka":         "KA",
	"kerala":            "KL",
	"madhya pradesh":    "MP",
	"maharashtra":       "MH",
	"odisha":            "OD",
	"punjab":            "PB",
	"rajasthan":         "RJ",
	"tamil nadu":        "TN",
	"tamilnadu":         "TN",
	"telangana":         "TS",
	"uttar pradesh":     "UP",
	"uttarakhand":       "UK",
	"west bengal":       "WB",
	"national":          RegionNational,
	"nationwide":        RegionNational,
	"all india":         RegionNational,
	"jammu and kashmir": "JK",
}

// NormalizeRegion folds a region name or code onto its upper-case code.
func NormalizeRegion(region string) string {
	r := strings.ToLower(strings.TrimSpace(region))
	if r == "" {
		return ""
	}
	if code, ok := regionAliases[r]; ok {
		return code
	}
	return strings.ToUpper(r)
}

// KnownRegionNames returns the lower-case region names the heuristic parser can spot.
func KnownRegionNames() map[string]string {
	out := make(map[string]string, len(regionAliases))
	for name, code := range regionAliases {
		if code == RegionNational {
			continue
		}
		out[name] = code
	}
	return out
}
