package sync

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
)

// MappingDocRow represents a single row in the mapping documentation.
type MappingDocRow struct {
	MergeTag string // Audience merge tag ("FNAME"), or "EMAIL" for the address itself
	Label    string // Human-readable label derived from the source column
	Column   string // Configured source column name
	Notes    string // Transform notes
}

// MappingDocumentation lists how the configured table columns bind to the
// audience fields, for operator reference.
type MappingDocumentation struct {
	ListID string
	Table  string
	Rows   []MappingDocRow
}

// GenerateMappingDocumentation builds the documentation from a validated
// configuration.
func GenerateMappingDocumentation(config Config) MappingDocumentation {
	doc := MappingDocumentation{
		ListID: config.API.ListID,
		Table:  fmt.Sprintf("%s.%s", config.SQL.Schema, config.SQL.Table),
	}

	doc.Rows = append(doc.Rows, MappingDocRow{
		MergeTag: "EMAIL",
		Label:    columnLabel(config.SQL.Columns.Email),
		Column:   config.SQL.Columns.Email,
		Notes:    "Join key: trimmed, lowercased and hashed to address the remote member",
	})

	columnsByTag := map[string]string{
		MergeTagFirstName: config.SQL.Columns.FirstName,
		MergeTagLastName:  config.SQL.Columns.LastName,
		MergeTagTitle:     config.SQL.Columns.Title,
		MergeTagAgreed:    config.SQL.Columns.Agreed,
	}
	tags := make([]string, 0, len(columnsByTag))
	for tag := range columnsByTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		row := MappingDocRow{
			MergeTag: tag,
			Label:    columnLabel(columnsByTag[tag]),
			Column:   columnsByTag[tag],
		}
		if transform, exists := config.MergeFieldTransforms[tag]; exists {
			row.Notes = formatTransformNote(transform)
		}
		doc.Rows = append(doc.Rows, row)
	}

	return doc
}

// columnLabel derives a display label from a column name,
// e.g. "FirstName" -> "First Name", "promotions_agreed" -> "Promotions Agreed".
func columnLabel(column string) string {
	words := strings.Split(strcase.ToDelimited(column, ' '), " ")
	for i, w := range words {
		words[i] = strcase.ToCamel(w)
	}
	return strings.Join(words, " ")
}

// formatTransformNote formats a configured transform into a human-readable note.
func formatTransformNote(transform string) string {
	switch {
	case transform == "toLower":
		return "Converts to lowercase"
	case transform == "toUpper":
		return "Converts to uppercase"
	case transform == "countryName":
		return "Resolves a country code to its name"
	case strings.HasPrefix(transform, "phone:"):
		arg := strings.TrimPrefix(transform, "phone:")
		return fmt.Sprintf("Normalizes phone numbers (default country code %s)", arg)
	case strings.HasPrefix(transform, "date:"):
		arg := strings.TrimPrefix(transform, "date:")
		return fmt.Sprintf("Formats dates as %s", arg)
	default:
		return fmt.Sprintf("Transform: %s", transform)
	}
}

// FormatCSV formats the mapping documentation as CSV.
func (d MappingDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{fmt.Sprintf("# Audience: %s / Source: %s", d.ListID, d.Table)}); err != nil {
		return "", err
	}

	headers := []string{"Merge Tag", "Label", "Source Column", "Notes"}
	if err := writer.Write(headers); err != nil {
		return "", err
	}

	for _, row := range d.Rows {
		if err := writer.Write([]string{row.MergeTag, row.Label, row.Column, row.Notes}); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return buf.String(), nil
}
