package contacts

// csv.go implements the CSV side of contact ingestion: delimiter sniffing,
// header extraction, column auto-detection, and row-to-contact mapping.
//
// Records are physical lines. Quoted fields spanning multiple lines are not
// supported; spreadsheet exports of name/phone lists do not produce them.

import "strings"

// Default label sets for column auto-detection. Matching is case-insensitive,
// by exact equality or substring containment, in header order.
var (
	NameColumnLabels  = []string{"nome", "name", "cliente", "contato"}
	PhoneColumnLabels = []string{"telefone", "phone", "celular", "whatsapp", "numero", "number", "tel"}
)

// DetectDelimiter sniffs the field delimiter from the first header line.
// Candidates are comma, semicolon and tab. A candidate wins only when its
// count strictly exceeds both others; every tie falls back to comma,
// including the all-zero case. This covers the common regional spreadsheet
// variants without asking the user for a dialect.
func DetectDelimiter(headerLine string) rune {
	comma := strings.Count(headerLine, ",")
	semi := strings.Count(headerLine, ";")
	tab := strings.Count(headerLine, "\t")

	switch {
	case semi > comma && semi > tab:
		return ';'
	case tab > comma && tab > semi:
		return '\t'
	default:
		return ','
	}
}

// ParseHeaders extracts the column names from the first non-empty line of
// text, split on delim. A leading UTF-8 BOM is stripped. Returns ErrEmptyInput
// when the text holds no non-empty lines.
func ParseHeaders(text string, delim rune) ([]string, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, ErrEmptyInput
	}
	first := strings.TrimPrefix(lines[0], "\ufeff")
	return splitFields(first, delim), nil
}

// GuessColumn returns the index of the first header that matches one of the
// candidate labels, either exactly or by containment, scanning headers in
// original order. Returns -1 when no header matches.
func GuessColumn(headers, candidates []string) int {
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, label := range candidates {
			if h == label || strings.Contains(h, label) {
				return i
			}
		}
	}
	return -1
}

// MapContacts converts the data rows of text (line 2 onward) into a Batch.
//
// nameColumn and phoneColumn are matched against headers by exact equality;
// a miss returns *ColumnNotFoundError and no partial output. Rows with fewer
// fields than the mapped columns require are skipped and counted in
// Batch.SkippedShort. Row order is preserved and the mapping is idempotent.
// An empty countryCode falls back to DefaultCountryCode.
func MapContacts(text string, delim rune, headers []string, nameColumn, phoneColumn, countryCode string) (Batch, error) {
	nameIdx := columnIndex(headers, nameColumn)
	if nameIdx < 0 {
		return Batch{}, &ColumnNotFoundError{Column: nameColumn}
	}
	phoneIdx := columnIndex(headers, phoneColumn)
	if phoneIdx < 0 {
		return Batch{}, &ColumnNotFoundError{Column: phoneColumn}
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return Batch{}, ErrEmptyInput
	}

	need := nameIdx
	if phoneIdx > need {
		need = phoneIdx
	}
	need++

	var batch Batch
	for _, line := range lines[1:] {
		fields := splitFields(line, delim)
		if len(fields) < need {
			batch.SkippedShort++
			continue
		}
		phone, ok := normalizeFilePhone(fields[phoneIdx], countryCode)
		batch.Contacts = append(batch.Contacts, ContactImport{
			Name:        fields[nameIdx],
			PhoneNumber: phone,
			IsValid:     ok,
		})
	}
	return batch, nil
}

// columnIndex resolves a column name against headers by exact text equality.
func columnIndex(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

// splitLines splits text into non-empty lines, treating \r\n and \n uniformly.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// splitFields splits a line on delim and cleans each field.
func splitFields(line string, delim rune) []string {
	parts := strings.Split(line, string(delim))
	for i, p := range parts {
		parts[i] = cleanField(p)
	}
	return parts
}

// cleanField trims whitespace and a single pair of surrounding double quotes.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
