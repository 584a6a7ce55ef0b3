package domain

import "strings"

// RegionQualifier is appended to every address before geocoding or routing.
// It is fixed for the deployment region and intentionally not configurable.
const RegionQualifier = "Singapore"

// Qualify collapses whitespace in an address and appends the region qualifier.
func Qualify(address string) string {
	norm := strings.Join(strings.Fields(address), " ")
	if norm == "" {
		return ""
	}
	return norm + " " + RegionQualifier
}
