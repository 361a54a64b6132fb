package model

import "time"

// FreeTierLimit is the number of projects kept when unlimited projects are off.
const FreeTierLimit = 20

// Portfolio is the assembled collection handed to the renderer.
type Portfolio struct {
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
	OwnerTitle string `json:"owner_title"`
	OwnerBio   string `json:"owner_bio,omitempty"`

	Projects []*Project `json:"projects"`

	Theme          string `json:"theme"`
	ColorScheme    string `json:"color_scheme"`
	CustomDomain   string `json:"custom_domain,omitempty"`
	CustomBranding bool   `json:"custom_branding"`
	ShowWatermark  bool   `json:"show_watermark"`

	GeneratedAt time.Time `json:"generated_at"`
}

// NewPortfolio returns a portfolio with default presentation settings.
func NewPortfolio(name, email, title string, projects []*Project) *Portfolio {
	return &Portfolio{
		OwnerName:     name,
		OwnerEmail:    email,
		OwnerTitle:    title,
		Projects:      projects,
		Theme:         "modern",
		ColorScheme:   "blue",
		ShowWatermark: true,
		GeneratedAt:   time.Now(),
	}
}

// ProjectsByCategory returns the projects in c, in portfolio order.
func (p *Portfolio) ProjectsByCategory(c Category) []*Project {
	var out []*Project
	for _, proj := range p.Projects {
		if proj.Category == c {
			out = append(out, proj)
		}
	}
	return out
}

// CountByCategory returns counts for all four categories. The values sum to len(Projects).
func (p *Portfolio) CountByCategory() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	for _, proj := range p.Projects {
		c := proj.Category
		if !c.Valid() {
			c = CategoryMisc
		}
		counts[c]++
	}
	return counts
}

// ApplyTierCap keeps the first FreeTierLimit projects unless unlimited is set.
// It returns how many projects were dropped.
func (p *Portfolio) ApplyTierCap(unlimited bool) int {
	if unlimited || len(p.Projects) <= FreeTierLimit {
		return 0
	}
	dropped := len(p.Projects) - FreeTierLimit
	p.Projects = p.Projects[:FreeTierLimit]
	return dropped
}
