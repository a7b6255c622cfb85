package colmap

import (
	"strings"
	"unicode/utf8"
)

// minSubstringSynonym guards the containment pass against spurious partial
// matches from very short synonyms.
const minSubstringSynonym = 4

// ColumnMap resolves logical fields to physical columns for one source file.
// Built once per file from its header row, read-only afterward.
type ColumnMap struct {
	columns map[Field]int
	headers map[Field]string
}

// Column returns the physical column index for a logical field.
func (m *ColumnMap) Column(f Field) (int, bool) {
	i, ok := m.columns[f]
	return i, ok
}

// Header returns the physical header text claimed by a logical field.
func (m *ColumnMap) Header(f Field) (string, bool) {
	h, ok := m.headers[f]
	return h, ok
}

// Len returns the number of mapped logical fields.
func (m *ColumnMap) Len() int { return len(m.columns) }

// Map resolves each logical field to at most one physical header. Fields run
// in FieldOrder; per field, an exact (case-insensitive, accent-folded,
// whitespace-trimmed) pass runs before a substring pass. A claimed header is
// removed from further consideration, so no two fields ever share a column.
// Unmapped fields are simply absent from the result.
func Map(headers []string, table SynonymTable) *ColumnMap {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = Fold(h)
	}
	claimed := make([]bool, len(headers))

	out := &ColumnMap{
		columns: make(map[Field]int, len(table)),
		headers: make(map[Field]string, len(table)),
	}

	claim := func(f Field, idx int) {
		claimed[idx] = true
		out.columns[f] = idx
		out.headers[f] = headers[idx]
	}

	for _, field := range FieldOrder {
		synonyms := table[field]
		if len(synonyms) == 0 {
			continue
		}

		matched := false
		for _, syn := range synonyms {
			fsyn := Fold(syn)
			for i := range folded {
				if claimed[i] || folded[i] == "" {
					continue
				}
				if folded[i] == fsyn {
					claim(field, i)
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if matched {
			continue
		}

		for _, syn := range synonyms {
			fsyn := Fold(syn)
			if utf8.RuneCountInString(fsyn) < minSubstringSynonym {
				continue
			}
			for i := range folded {
				if claimed[i] || folded[i] == "" {
					continue
				}
				if strings.Contains(folded[i], fsyn) {
					claim(field, i)
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
	}

	return out
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
	"º", "", "ª", "", ".", "",
)

// Fold normalizes header text for matching: trimmed, lowercased,
// accents folded, inner whitespace collapsed.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = accentFolder.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
