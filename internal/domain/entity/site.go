package entity

import "time"

type SiteFile struct {
	BuildID  string           `json:"build_id"`
	Name     string           `json:"name"`
	Content  string           `json:"content"`
	Type     string           `json:"type"` // html, script, style, markdown, data
	HasError bool             `json:"has_error"`
	ErrorMsg *ValidationError `json:"error_msg,omitempty"`
}

type ValidationError struct {
	File    string `json:"file"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// GenerationInput carries everything the generator needs for one round.
type GenerationInput struct {
	Brief           string
	Checks          []string
	Round           int
	PrevReadme      string
	AttachmentNames []string
}

type GeneratedSite struct {
	Files     []*SiteFile `json:"files"`
	RequestID string      `json:"request_id"`
	CreatedAt time.Time   `json:"created_at"`
	Status    string      `json:"status"`
}

// IndexFile returns the site entry point, or nil when the generator
// produced none.
func (g *GeneratedSite) IndexFile() *SiteFile {
	for _, f := range g.Files {
		if f.Name == "index.html" {
			return f
		}
	}
	return nil
}
