package dataset

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadXLSX loads the selected sheet of a workbook file. The first row is the header.
// If SheetName is empty, SheetIndex (1-based) selects the sheet; 0 means the first.
func ReadXLSX(path string, opt ReadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	return ReadWorkbook(f, st.Size(), filepath.Base(path), opt)
}

// ReadWorkbook is ReadXLSX over an in-memory or already open workbook.
func ReadWorkbook(r io.ReaderAt, size int64, name string, opt ReadOptions) (*Dataset, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	var wb workbookXML
	if _, err := decodeEntry(zr, "xl/workbook.xml", &wb); err != nil {
		return nil, err
	}
	var rels relationshipsXML
	if _, err := decodeEntry(zr, "xl/_rels/workbook.xml.rels", &rels); err != nil {
		return nil, err
	}
	var sst sharedStringsXML
	if _, err := decodeEntry(zr, "xl/sharedStrings.xml", &sst); err != nil {
		return nil, err
	}

	entry, err := wb.sheetEntry(rels.targets(), opt)
	if err != nil {
		return nil, fmt.Errorf("%w in workbook '%s'", err, name)
	}
	var sheet worksheetXML
	found, err := decodeEntry(zr, entry, &sheet)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("sheet %s missing from workbook '%s'", entry, name)
	}

	shared := sst.texts()
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, row.values(shared))
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return &Dataset{Name: name}, nil
	}
	header := dedupeHeader(rows[0])
	body := rows[1:]
	if opt.MaxRows > 0 && len(body) > opt.MaxRows {
		body = body[:opt.MaxRows]
	}
	raw := make([][]string, len(header))
	for j := range header {
		raw[j] = make([]string, len(body))
		for i, row := range body {
			if j < len(row) {
				raw[j][i] = row[j]
			}
		}
	}
	// Workbook cells always use '.' decimals.
	opt.DecimalSeparator = '.'
	return build(name, header, raw, opt), nil
}

// decodeEntry unmarshals the named zip entry into v. A missing entry is not an error.
func decodeEntry(zr *zip.Reader, name string, v any) (bool, error) {
	f, err := zr.Open(name)
	if err != nil {
		return false, nil
	}
	defer f.Close()
	if err := xml.NewDecoder(f).Decode(v); err != nil {
		return true, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

type workbookXML struct {
	Sheets []struct {
		Name    string `xml:"name,attr"`
		SheetID int    `xml:"sheetId,attr"`
		RID     string `xml:"id,attr"`
	} `xml:"sheets>sheet"`
}

// sheetEntry resolves the zip entry of the sheet chosen by opt.
func (wb workbookXML) sheetEntry(targets map[string]string, opt ReadOptions) (string, error) {
	if opt.SheetName != "" {
		names := make([]string, 0, len(wb.Sheets))
		for _, s := range wb.Sheets {
			if strings.EqualFold(s.Name, opt.SheetName) {
				if t, ok := targets[s.RID]; ok {
					return normalizeRelPath(t), nil
				}
			}
			names = append(names, s.Name)
		}
		return "", fmt.Errorf("sheet '%s' not found; available sheets: %s", opt.SheetName, strings.Join(names, ", "))
	}
	idx := max(opt.SheetIndex, 1)
	for _, s := range wb.Sheets {
		if s.SheetID == idx {
			if t, ok := targets[s.RID]; ok {
				return normalizeRelPath(t), nil
			}
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", idx), nil
}

type relationshipsXML struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func (r relationshipsXML) targets() map[string]string {
	out := make(map[string]string, len(r.Items))
	for _, it := range r.Items {
		if it.ID != "" && it.Target != "" {
			out[it.ID] = it.Target
		}
	}
	return out
}

// richText is either a plain <t> or a sequence of formatted <r><t> runs.
type richText struct {
	T    string `xml:"t"`
	Runs []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

func (rt richText) String() string {
	if len(rt.Runs) == 0 {
		return rt.T
	}
	var b strings.Builder
	b.WriteString(rt.T)
	for _, r := range rt.Runs {
		b.WriteString(r.T)
	}
	return b.String()
}

type sharedStringsXML struct {
	Items []richText `xml:"si"`
}

func (s sharedStringsXML) texts() []string {
	out := make([]string, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.String()
	}
	return out
}

type worksheetXML struct {
	Rows []worksheetRow `xml:"sheetData>row"`
}

type worksheetRow struct {
	Cells []struct {
		Ref    string   `xml:"r,attr"`
		Type   string   `xml:"t,attr"`
		V      string   `xml:"v"`
		Inline richText `xml:"is"`
	} `xml:"c"`
}

// values places each cell by its reference, so skipped cells stay empty.
func (row worksheetRow) values(shared []string) []string {
	var out []string
	for _, c := range row.Cells {
		col := colIndexFromRef(c.Ref)
		if col < 0 {
			col = len(out)
		}
		for len(out) <= col {
			out = append(out, "")
		}
		switch c.Type {
		case "s":
			if i, err := strconv.Atoi(strings.TrimSpace(c.V)); err == nil && i >= 0 && i < len(shared) {
				out[col] = shared[i]
			}
		case "inlineStr":
			out[col] = c.Inline.String()
		case "b":
			out[col] = map[string]string{"1": "TRUE", "0": "FALSE"}[c.V]
		default:
			out[col] = c.V
		}
	}
	return out
}

// colIndexFromRef maps "C12" to 2. A ref without letters yields -1.
func colIndexFromRef(ref string) int {
	letters := strings.ToUpper(strings.TrimRightFunc(ref, func(r rune) bool { return r >= '0' && r <= '9' }))
	if letters == "" {
		return -1
	}
	idx := 0
	for _, r := range letters {
		if r < 'A' || r > 'Z' {
			return -1
		}
		if idx > math.MaxInt32/26 {
			return -1
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1
}

// normalizeRelPath converts relationship targets to zip entry names, which
// never carry a leading slash.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if !strings.HasPrefix(rel, "xl/") {
		rel = "xl/" + rel
	}
	return rel
}
