package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"orderdesk/internal"
	"orderdesk/internal/normalize"
	"orderdesk/internal/util"
)

var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^--+$`),
	regexp.MustCompile(`(?i)^page \d+`),
	regexp.MustCompile(`(?i)^(sub)?total\b`),
	regexp.MustCompile(`(?i)^thank you`),
	regexp.MustCompile(`(?i)^tel[:\s]`),
	regexp.MustCompile(`(?i)^e-?mail[:\s]`),
	regexp.MustCompile(`(?i)^http`),
}

// Local parses a sales-order document without the extraction service. It is
// the degraded path: best-effort line items with source-shaped field names,
// reconciled downstream by normalize.Records.
func Local(fileName string, content []byte) ([]normalize.Record, error) {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return parsePDF(content)
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		return parseXLSX(content)
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return parseHTMLTables(string(content)), nil
	case strings.HasSuffix(lower, ".txt"):
		return parseTextLines(string(content)), nil
	default:
		return nil, fmt.Errorf("unsupported document type: %s", fileName)
	}
}

func parsePDF(content []byte) ([]normalize.Record, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []normalize.Record{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		out = append(out, parseTextLines(text)...)
	}
	return out, nil
}

func parseTextLines(text string) []normalize.Record {
	out := []normalize.Record{}
	for _, line := range splitLines(text) {
		record := lineToRecord(line)
		if record == nil {
			continue
		}
		out = append(out, record)
	}
	return out
}

// lineToRecord splits a free-text line into a description and a trailing
// quantity token. Lines with no letters or no quantity are treated as noise.
func lineToRecord(rawLine string) normalize.Record {
	compact := normalizeSpaces(rawLine)
	if compact == "" || isLikelyNoise(compact) {
		return nil
	}
	if !regexp.MustCompile(`[A-Za-z]`).MatchString(compact) {
		return nil
	}

	parsed := util.ParseQty(compact)
	if parsed.Qty == nil {
		return nil
	}

	name := compact
	if parsed.QtyRaw != nil {
		if idx := strings.LastIndex(name, *parsed.QtyRaw); idx >= 0 {
			name = name[:idx] + " " + name[idx+len(*parsed.QtyRaw):]
		}
	}
	name = normalizeSpaces(name)
	if len([]rune(name)) <= 1 {
		name = compact
	}

	record := normalize.Record{
		"Description": name,
		"Qty":         *parsed.Qty,
	}
	if parsed.Unit != nil {
		record["Unit"] = *parsed.Unit
	}
	return record
}

func parseXLSX(content []byte) ([]normalize.Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []normalize.Record{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		headers := normalizeCells(rows[0])
		if len(headers) == 0 {
			continue
		}
		for _, row := range rows[1:] {
			cells := normalizeCells(row)
			record := rowToRecord(headers, cells)
			if record != nil {
				out = append(out, record)
			}
		}
	}
	return out, nil
}

func parseHTMLTables(html string) []normalize.Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []normalize.Record{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, normalizeSpaces(cell.Text()))
		})

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			record := rowToRecord(headers, cells)
			if record != nil {
				out = append(out, record)
			}
		})
	})
	return out
}

// rowToRecord keys a table row by its header cells verbatim; field-name
// reconciliation is the normalizer's job, not the parser's. Numeric-looking
// cells are coerced so derivation can work on them.
func rowToRecord(headers, cells []string) normalize.Record {
	record := normalize.Record{}
	nonEmpty := 0
	for i, cell := range cells {
		if i >= len(headers) || headers[i] == "" || cell == "" {
			continue
		}
		if f, ok := util.ToFloat(cell); ok && looksNumericHeader(headers[i]) {
			record[headers[i]] = f
		} else {
			record[headers[i]] = cell
		}
		nonEmpty++
	}
	if nonEmpty == 0 {
		return nil
	}
	if _, hasKey := record[internal.KeyRequestItem]; !hasKey {
		hasText := false
		for _, v := range record {
			if _, ok := v.(string); ok {
				hasText = true
				break
			}
		}
		if !hasText {
			return nil
		}
	}
	return record
}

func looksNumericHeader(header string) bool {
	lower := strings.ToLower(header)
	for _, probe := range []string{"qty", "quantity", "amount", "price", "cost", "total"} {
		if strings.Contains(lower, probe) {
			return true
		}
	}
	return false
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(input, " "))
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}

func isLikelyNoise(line string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}
