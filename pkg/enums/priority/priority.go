package priority

import (
	"strings"
)

type Priority struct {
	Name string
	rank int
}

func (p Priority) Code() string {
	return p.Name
}

func (p Priority) Label() string {
	if len(p.Name) == 0 {
		return ""
	}
	return strings.ToUpper(p.Name[:1]) + p.Name[1:]
}

// Rank orders priorities from least (0, low) to most urgent (3).
func (p Priority) Rank() int {
	return p.rank
}

type Enum struct {
	Low    Priority
	Normal Priority
	High   Priority
	Urgent Priority
}

var Priorities = Enum{
	Low:    Priority{Name: "low", rank: 0},
	Normal: Priority{Name: "normal", rank: 1},
	High:   Priority{Name: "high", rank: 2},
	Urgent: Priority{Name: "urgent", rank: 3},
}

var All = []Priority{
	Priorities.Low,
	Priorities.Normal,
	Priorities.High,
	Priorities.Urgent,
}

// ByName returns the priority for a given name, defaulting to Normal for
// unknown or empty names.
func ByName(name string) Priority {
	for _, p := range All {
		if p.Name == name {
			return p
		}
	}
	return Priorities.Normal
}
