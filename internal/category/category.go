// Package category defines the fixed set of board sections. It is the single
// source of truth for section ids, labels, and display colors; both note
// validation and board counts read from here.
package category

// Category is one fixed section of the board.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// All lists every section in display order.
var All = []Category{
	{ID: "services_offered", Label: "Services Offered", Color: "#FFD700"},
	{ID: "services_required", Label: "Services Required", Color: "#FF4081"},
	{ID: "looking_for", Label: "Looking For", Color: "#FF6D00"},
	{ID: "jobs", Label: "Job Search", Color: "#00B0FF"},
	{ID: "for_sale", Label: "For Sale", Color: "#00E676"},
	{ID: "events", Label: "Events", Color: "#D500F9"},
}

// Valid reports whether id names a defined section.
func Valid(id string) bool {
	for _, c := range All {
		if c.ID == id {
			return true
		}
	}
	return false
}

// ColorFor returns the display color for a section id. Unknown ids get
// white, matching the creation form's fallback.
func ColorFor(id string) string {
	for _, c := range All {
		if c.ID == id {
			return c.Color
		}
	}
	return "#ffffff"
}
