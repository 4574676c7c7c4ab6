// Package aqi classifies Air Quality Index values into health categories
// and converts PM2.5 concentrations to approximate AQI.
package aqi

import "math"

// Category represents an AQI health category.
type Category string

const (
	CategoryGood               Category = "Good"
	CategoryModerate           Category = "Moderate"
	CategoryUnhealthySensitive Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy          Category = "Unhealthy"
	CategoryVeryUnhealthy      Category = "Very Unhealthy"
	CategoryHazardous          Category = "Hazardous"
	CategoryUnknown            Category = "Unknown"
)

// Level bundles the display attributes of a classified AQI value.
type Level struct {
	Category Category
	Color    string
	Icon     string
	Advice   string
}

// Classify maps an AQI value to its health category. Every finite value maps
// to exactly one category; upper bounds are inclusive (50 is Good, 51 is
// Moderate). NaN classifies as Unknown.
func Classify(v float64) Level {
	switch {
	case math.IsNaN(v):
		return Level{CategoryUnknown, "#808080", "❓", "No data"}
	case v <= 50:
		return Level{CategoryGood, "#009E60", "✅", "Enjoy outdoor activities."}
	case v <= 100:
		return Level{CategoryModerate, "#FFD600", "🟡", "Unusually sensitive people should consider reducing prolonged or heavy exertion."}
	case v <= 150:
		return Level{CategoryUnhealthySensitive, "#F97316", "🟠", "Sensitive groups should reduce prolonged or heavy exertion."}
	case v <= 200:
		return Level{CategoryUnhealthy, "#DC2626", "🔴", "Everyone may begin to experience health effects."}
	case v <= 300:
		return Level{CategoryVeryUnhealthy, "#7C3AED", "🟣", "Health alert: everyone may experience more serious health effects."}
	default:
		return Level{CategoryHazardous, "#000000", "⚫", "Health warnings of emergency conditions. The entire population is more likely to be affected."}
	}
}

// ClassifyValue classifies an optional AQI value. A nil value classifies as
// Unknown rather than as an error.
func ClassifyValue(v *float64) Level {
	if v == nil {
		return Classify(math.NaN())
	}
	return Classify(*v)
}

// Threshold returns the AQI lower bound at which an alert for the given
// category should fire. Unrecognized categories fall back to the Unhealthy
// entry bound.
func Threshold(c Category) float64 {
	switch c {
	case CategoryUnhealthySensitive:
		return 101
	case CategoryUnhealthy:
		return 151
	case CategoryVeryUnhealthy:
		return 201
	case CategoryHazardous:
		return 301
	default:
		return 151
	}
}

// AlertableCategories lists the categories that can be alert targets, in
// ascending severity order.
func AlertableCategories() []Category {
	return []Category{
		CategoryUnhealthySensitive,
		CategoryUnhealthy,
		CategoryVeryUnhealthy,
		CategoryHazardous,
	}
}

// ParseCategory resolves a category name. The second return reports whether
// the name was recognized.
func ParseCategory(name string) (Category, bool) {
	for _, c := range []Category{
		CategoryGood, CategoryModerate, CategoryUnhealthySensitive,
		CategoryUnhealthy, CategoryVeryUnhealthy, CategoryHazardous,
	} {
		if string(c) == name {
			return c, true
		}
	}
	return CategoryUnknown, false
}
