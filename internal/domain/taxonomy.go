package domain

// TicketPriority is the urgency assigned during triage.
type TicketPriority string

const (
	PriorityHigh   TicketPriority = "High"
	PriorityMedium TicketPriority = "Medium"
	PriorityLow    TicketPriority = "Low"
)

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Tags is the category triple produced by auto-tagging.
type Tags struct {
	MainCategory string
	SubCategory  string
	Priority     TicketPriority
}

// Category is a main category with its allowed sub-categories.
type Category struct {
	Name string
	Subs []string
}

// Taxonomy is the ordered category tree offered to the classifier.
type Taxonomy []Category

// DefaultTaxonomy returns the school IT category tree.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		{Name: "Hardware", Subs: []string{"Projector", "Computer", "Printer", "Sound", "Peripherals", "Other_Hardware"}},
		{Name: "Software", Subs: []string{"OS", "Office", "Apps", "Browser", "Other_Software"}},
		{Name: "Network", Subs: []string{"Wi-Fi", "LAN", "Account", "Other_Network"}},
		{Name: "General", Subs: []string{"Admin", "Furniture", "Other_General"}},
	}
}

// Contains reports whether main/sub is a pair in the taxonomy.
func (t Taxonomy) Contains(main, sub string) bool {
	for _, c := range t {
		if c.Name != main {
			continue
		}
		for _, s := range c.Subs {
			if s == sub {
				return true
			}
		}
	}
	return false
}
