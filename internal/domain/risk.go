package domain

import "strings"

// RiskLevel is one of five fixed vulnerability categories.
type RiskLevel string

const (
	RiskLowest  RiskLevel = "lowest"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskHighest RiskLevel = "highest"
)

type riskStyle struct {
	color string
	label string
}

var riskStyles = map[RiskLevel]riskStyle{
	RiskLowest:  {color: "#008100", label: "Lowest risk"},
	RiskLow:     {color: "#7FC31C", label: "Low risk"},
	RiskMedium:  {color: "#FFD400", label: "Medium risk"},
	RiskHigh:    {color: "#FF7F00", label: "High risk"},
	RiskHighest: {color: "#E00000", label: "Highest risk"},
}

const unknownRiskLabel = "Unknown"

func init() {
	for level, style := range riskStyles {
		mustParseHex(style.color)
		if style.label == "" {
			panic("risk level " + string(level) + " has no label")
		}
	}
}

// RiskLevels returns all levels from lowest to highest.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLowest, RiskLow, RiskMedium, RiskHigh, RiskHighest}
}

// ParseRiskLevel normalizes a tag. Unknown tags report false.
func ParseRiskLevel(tag string) (RiskLevel, bool) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(tag)))
	_, ok := riskStyles[level]
	return level, ok
}

// ColorForRiskLevel returns the fixed color for tag, or FallbackColor.
func ColorForRiskLevel(tag string) string {
	if level, ok := ParseRiskLevel(tag); ok {
		return riskStyles[level].color
	}
	return FallbackColor
}

// LabelForRiskLevel returns the display label for tag, or "Unknown".
func LabelForRiskLevel(tag string) string {
	if level, ok := ParseRiskLevel(tag); ok {
		return riskStyles[level].label
	}
	return unknownRiskLabel
}
