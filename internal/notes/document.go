package notes

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Section headings used by the renderer and the enhancement merge.
const (
	SectionSummary     = "Summary"
	SectionKeyPoints   = "Key Points"
	SectionReferences  = "References"
	SectionTranscript  = "Transcript"
	SectionDescription = "Original Description"
	SectionVideo       = "Video"
	SectionThumbnail   = "Thumbnail"
)

// preservedSections are never rewritten by enhancement merges.
var preservedSections = map[string]bool{
	SectionDescription: true,
	SectionVideo:       true,
	SectionThumbnail:   true,
}

// Frontmatter is the YAML block at the top of every note.
type Frontmatter struct {
	Title      string   `yaml:"title"`
	Source     string   `yaml:"source"`
	Author     string   `yaml:"author,omitempty"`
	Date       string   `yaml:"date,omitempty"`
	Likes      string   `yaml:"likes,omitempty"`
	Comments   string   `yaml:"comments,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
	AIEnhanced bool     `yaml:"ai_enhanced"`
	AIModel    string   `yaml:"ai_model,omitempty"`
}

// Section is one level-two heading plus its body text.
type Section struct {
	Heading string
	Body    string
}

// Document is a parsed note: frontmatter, any text before the first
// heading, and the ordered sections.
type Document struct {
	Front    Frontmatter
	Preamble string
	Sections []Section
}

// Parse splits note content into frontmatter and sections.
func Parse(content string) (*Document, error) {
	doc := &Document{}
	body := content
	if strings.HasPrefix(content, "---\n") || strings.HasPrefix(content, "---\r\n") {
		rest := strings.TrimPrefix(strings.TrimPrefix(content, "---\r\n"), "---\n")
		idx := strings.Index(rest, "\n---")
		if idx < 0 {
			return nil, fmt.Errorf("parse note: unterminated frontmatter")
		}
		block := rest[:idx]
		if err := yaml.Unmarshal([]byte(block), &doc.Front); err != nil {
			return nil, fmt.Errorf("parse note: frontmatter: %w", err)
		}
		body = rest[idx+len("\n---"):]
		body = strings.TrimPrefix(strings.TrimPrefix(body, "\r\n"), "\n")
	}

	var current *Section
	var preamble strings.Builder
	for _, line := range strings.Split(body, "\n") {
		if heading, ok := sectionHeading(line); ok {
			if current != nil {
				current.Body = strings.TrimSpace(current.Body)
			}
			doc.Sections = append(doc.Sections, Section{Heading: heading})
			current = &doc.Sections[len(doc.Sections)-1]
			continue
		}
		if current == nil {
			preamble.WriteString(line)
			preamble.WriteString("\n")
			continue
		}
		current.Body += line + "\n"
	}
	if current != nil {
		current.Body = strings.TrimSpace(current.Body)
	}
	doc.Preamble = strings.TrimSpace(preamble.String())
	return doc, nil
}

func sectionHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "## ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, "## ")), true
}

// Render serializes the document back to markdown.
func (d *Document) Render() (string, error) {
	front, err := yaml.Marshal(d.Front)
	if err != nil {
		return "", fmt.Errorf("render note: frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n")
	if d.Preamble != "" {
		b.WriteString("\n")
		b.WriteString(d.Preamble)
		b.WriteString("\n")
	}
	for _, section := range d.Sections {
		b.WriteString("\n## ")
		b.WriteString(section.Heading)
		b.WriteString("\n")
		if section.Body != "" {
			b.WriteString("\n")
			b.WriteString(strings.TrimSpace(section.Body))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// Section returns the body of the named section.
func (d *Document) Section(heading string) (string, bool) {
	for _, section := range d.Sections {
		if section.Heading == heading {
			return section.Body, true
		}
	}
	return "", false
}

// SetSection replaces the named section body in place. New sections are
// inserted ahead of the preserved block so AI content reads before the raw
// source material.
func (d *Document) SetSection(heading, body string) {
	body = strings.TrimSpace(body)
	for i := range d.Sections {
		if d.Sections[i].Heading == heading {
			d.Sections[i].Body = body
			return
		}
	}
	section := Section{Heading: heading, Body: body}
	for i := range d.Sections {
		if preservedSections[d.Sections[i].Heading] {
			d.Sections = append(d.Sections[:i], append([]Section{section}, d.Sections[i:]...)...)
			return
		}
	}
	d.Sections = append(d.Sections, section)
}

// RemoveSection drops the named section when present.
func (d *Document) RemoveSection(heading string) {
	for i := range d.Sections {
		if d.Sections[i].Heading == heading {
			d.Sections = append(d.Sections[:i], d.Sections[i+1:]...)
			return
		}
	}
}
