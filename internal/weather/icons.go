package weather

import (
	"sort"

	"walldash/internal/config"
)

// UnknownCode is the sentinel entry used for codes missing from both tables.
const UnknownCode = 99999

// Icon is a weather-icons identifier with an optional night variant.
type Icon struct {
	Day   string
	Night string
}

// defaultIcons maps WMO weather codes to weather-icons names.
var defaultIcons = map[int]Icon{
	0:  {"day-sunny", "night-clear"},
	1:  {"day-sunny-overcast", "night-alt-partly-cloudy"},
	2:  {"day-cloudy", "night-alt-cloudy"},
	3:  {"cloudy", ""},
	45: {"fog", ""},
	48: {"day-haze", ""},
	51: {"snow-wind", ""},
	53: {"showers", ""},
	55: {"rain", ""},
	56: {"rain-mix", ""},
	57: {"rain-mix", ""},
	61: {"snow-wind", ""},
	63: {"showers", ""},
	65: {"rain", ""},
	66: {"rain-mix", ""},
	67: {"hail", ""},
	71: {"snowflake-cold", ""},
	73: {"snowflake-cold", ""},
	75: {"snowflake-cold", ""},
	77: {"sleet", ""},
	80: {"day-snow-wind", "night-alt-snow-wind"},
	81: {"day-showers", "night-alt-showers"},
	82: {"day-rain", "night-alt-rain"},
	85: {"snowflake-cold", ""},
	86: {"snowflake-cold", ""},
	95: {"thunderstorm", ""},
	96: {"storm-showers", ""},
	99: {"lightning", ""},

	UnknownCode: {"alien", ""},
}

// IconTable resolves codes through the configured overrides first and the
// built-in defaults second.
type IconTable struct {
	overrides map[int]Icon
}

// NewIconTable builds a table from the config overrides.
func NewIconTable(overrides map[int]config.IconMapping) IconTable {
	t := IconTable{overrides: make(map[int]Icon, len(overrides))}
	for code, m := range overrides {
		t.overrides[code] = Icon{Day: m.Icon, Night: m.Alt}
	}
	return t
}

// Get returns the mapping for code and whether either table knows it.
func (t IconTable) Get(code int) (Icon, bool) {
	if ic, ok := t.overrides[code]; ok {
		return ic, true
	}
	ic, ok := defaultIcons[code]
	return ic, ok
}

// Lookup picks the icon for code. At night the alternate icon is used when
// the code has one. Unknown codes resolve to the UnknownCode entry.
func (t IconTable) Lookup(code int, isDay bool) string {
	ic, ok := t.Get(code)
	if !ok {
		ic, _ = t.Get(UnknownCode)
	}
	if !isDay && ic.Night != "" {
		return ic.Night
	}
	return ic.Day
}

// Codes lists every known code except UnknownCode, ascending.
func (t IconTable) Codes() []int {
	seen := make(map[int]bool, len(defaultIcons)+len(t.overrides))
	codes := make([]int, 0, len(defaultIcons)+len(t.overrides))
	for _, m := range []map[int]Icon{defaultIcons, t.overrides} {
		for code := range m {
			if code == UnknownCode || seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
		}
	}
	sort.Ints(codes)
	return codes
}
