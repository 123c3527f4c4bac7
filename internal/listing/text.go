package listing

import "strings"

// Text renders the plain-text summary embedded in the result archive and
// shown to the requester.
func (d *CarData) Text() string {
	var b strings.Builder

	name := d.Name
	if name == "" {
		name = "Unknown vehicle"
	}
	b.WriteString(name)
	b.WriteString("\n\n")

	if d.Price != "" {
		b.WriteString("Price - " + d.Price + "\n\n")
	}

	if len(d.Specs) > 0 {
		b.WriteString("Specifications:\n")
		for _, row := range d.Specs {
			b.WriteString("- " + row.Key + ": " + row.Value + "\n")
		}
	}

	return b.String()
}

// ArchiveName derives a filesystem-safe ZIP name from the car name.
func (d *CarData) ArchiveName() string {
	name := strings.ToLower(d.Name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "cleaned_photos.zip"
	}
	return slug + "_photos.zip"
}
