package tle

// Group is a named slice of the public catalog: where its element text comes
// from and which satellite names to keep.
type Group struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Filter string `yaml:"filter"` // case-insensitive name substring, empty keeps all
}

// Default groups served by the bot commands.
const (
	GroupISS    = "iss"
	GroupNOAA   = "noaa"
	GroupMeteor = "meteor"
)

// DefaultGroups returns the built-in group definitions.
func DefaultGroups() []Group {
	return []Group{
		{Name: GroupISS, URL: "https://celestrak.org/NORAD/elements/stations.txt", Filter: "ISS"},
		{Name: GroupNOAA, URL: "https://celestrak.org/NORAD/elements/noaa.txt", Filter: "NOAA"},
		{Name: GroupMeteor, URL: "https://celestrak.org/NORAD/elements/weather.txt", Filter: "METEOR"},
	}
}
