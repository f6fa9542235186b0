package models

// Categories is the fixed triage taxonomy offered as category corrections,
// in presentation order.
var Categories = []string{
	"1.1 Urgent Reply",
	"1.2 Urgent Task",
	"1.3 Urgent Info",
	"2.1 High Reply",
	"2.2 High Task",
	"2.3 High Info",
	"3.1 Med Reply",
	"3.2 Med Task",
	"3.3 Med Info",
	"4.1 Low Reply",
	"4.2 Delegate",
	"5.1 Archive",
	"5.2 Delete",
}

// DefaultProject is offered when a snapshot carries no project labels.
const DefaultProject = "General"

// IsCategory reports whether name is part of the taxonomy.
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// ProjectChoices returns the project labels to offer as corrections.
func ProjectChoices(projects []string) []string {
	if len(projects) == 0 {
		return []string{DefaultProject}
	}
	return projects
}
