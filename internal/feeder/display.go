package feeder

import (
	"fmt"

	"github.com/sweeney/pet-feeder/internal/logic"
)

// Display shows two short lines of text.
type Display interface {
	Show(line1, line2 string)
}

// IdleLines renders the idle screen: the local time and the next feed.
func IdleLines(m logic.Moment, table *logic.Table) (string, string) {
	line1 := "--:--"
	if m.Known {
		line1 = fmt.Sprintf("%02d:%02d", m.Hour, m.Minute)
	}
	if table.Len() == 0 {
		return line1, "No schedule"
	}
	next, ok := table.Next(m)
	if !ok {
		return line1, "Clock not set"
	}
	return line1, fmt.Sprintf("Next %02d:%02d %dg", next.Hour, next.Minute, next.Grams)
}

// DispensingLines renders progress of a live session.
func DispensingLines(s logic.Session) (string, string) {
	return fmt.Sprintf("Feeding %dg", s.TargetGrams), fmt.Sprintf("Now %dg", s.CurrentWeight)
}
