package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const salesCSV = "region,units,price,returned\n" +
	"north,10,2.5,no\n" +
	"south,,3.0,yes\n" +
	"NA,12,N/A,no\n" +
	"east,8,2.0,\n"

func TestReadInfersKindsAndMissing(t *testing.T) {
	ds, err := Read(strings.NewReader(salesCSV), "sales.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := ds.NumRows(); got != 4 {
		t.Fatalf("rows = %d, want 4", got)
	}
	kinds := map[string]Kind{}
	for _, c := range ds.Columns {
		kinds[c.Name] = c.Kind
	}
	want := map[string]Kind{"region": Categorical, "units": Numeric, "price": Numeric, "returned": Categorical}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	if got := ds.MissingCount(); got != 4 {
		t.Fatalf("missing = %d, want 4", got)
	}
	units, _ := ds.Column("units")
	if diff := cmp.Diff([]float64{10, 12, 8}, units.Floats()); diff != "" {
		t.Fatalf("units floats (-want +got):\n%s", diff)
	}
	if err := ds.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestReadSniffsDelimiter(t *testing.T) {
	in := "a;b;c\n1;x;2,5\n2;y;3\n"
	ds, err := Read(strings.NewReader(in), "semi.csv", ReadOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ds.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	c, _ := ds.Column("c")
	if c.Kind != Categorical {
		t.Fatalf("expected '2,5' to keep column categorical without comma decimals, got %s", c.Kind)
	}

	ds, err = Read(strings.NewReader(in), "semi.csv", ReadOptions{DecimalSeparator: ','})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c, _ = ds.Column("c")
	if c.Kind != Numeric || c.Cells[0].Num != 2.5 {
		t.Fatalf("expected comma decimal parse, got kind=%s first=%v", c.Kind, c.Cells[0].Num)
	}
}

func TestReadPadsShortRowsAndRejectsLongRows(t *testing.T) {
	ds, err := Read(strings.NewReader("a,b,c\n1,2\n"), "short.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	cc, _ := ds.Column("c")
	if !cc.Cells[0].Missing {
		t.Fatalf("expected padded cell to be missing")
	}
	if _, err := Read(strings.NewReader("a,b\n1,2,3\n"), "long.csv", DefaultReadOptions()); err == nil {
		t.Fatalf("expected error for row wider than header")
	}
}

func TestDedupeHeader(t *testing.T) {
	got := dedupeHeader([]string{"a", "a", "", "a.1", "a"})
	want := []string{"a", "a.1", "Unnamed: 2", "a.1.1", "a.2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("header (-want +got):\n%s", diff)
	}
}

func TestAllMissingColumnIsNumeric(t *testing.T) {
	ds, err := Read(strings.NewReader("a,b\n1,\n2,NA\n"), "x.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	b, _ := ds.Column("b")
	if b.Kind != Numeric {
		t.Fatalf("all-missing column kind = %s, want numeric", b.Kind)
	}
}

func TestColumnNotFound(t *testing.T) {
	ds, _ := Read(strings.NewReader("a\n1\n"), "x.csv", DefaultReadOptions())
	if _, err := ds.Column("zzz"); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ds, err := Read(strings.NewReader(salesCSV), "sales.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var buf bytes.Buffer
	if err := ds.WriteCSV(&buf, ','); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "region,units,price,returned\n" +
		"north,10,2.5,no\n" +
		"south,,3,yes\n" +
		",12,,no\n" +
		"east,8,2,\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("csv (-want +got):\n%s", diff)
	}
}

func TestRecordsJSON(t *testing.T) {
	ds, err := Read(strings.NewReader("name,score\nann,1.5\n\"b \"\"q\"\"\",\n"), "s.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	b, err := ds.RecordsJSON()
	if err != nil {
		t.Fatalf("RecordsJSON: %v", err)
	}
	want := `[{"name":"ann","score":1.5},{"name":"b \"q\"","score":null}]`
	if string(b) != want {
		t.Fatalf("json = %s, want %s", b, want)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
}

func TestUniqueComparesNumbersByValue(t *testing.T) {
	ds, _ := Read(strings.NewReader("x\n1\n1.0\n2\n\n"), "u.csv", DefaultReadOptions())
	x, _ := ds.Column("x")
	if got := x.Unique(); got != 2 {
		t.Fatalf("unique = %d, want 2", got)
	}
}

func TestDuplicateRowsAndHead(t *testing.T) {
	ds, _ := Read(strings.NewReader("a,b\n1,x\n1,x\n2,y\n"), "d.csv", DefaultReadOptions())
	if got := ds.DuplicateRows(); got != 1 {
		t.Fatalf("duplicates = %d, want 1", got)
	}
	if diff := cmp.Diff([][]string{{"1", "x"}, {"1", "x"}}, ds.Head(2)); diff != "" {
		t.Fatalf("head (-want +got):\n%s", diff)
	}
}

func TestLoadTSVByExtension(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data.tsv")
	if err := os.WriteFile(p, []byte("a\tb\n1\t2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ds, err := Load(p, DefaultReadOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Name != "data.tsv" || len(ds.Columns) != 2 {
		t.Fatalf("unexpected dataset: name=%s cols=%d", ds.Name, len(ds.Columns))
	}
}

func TestTSVKeepsEmptyLeadingField(t *testing.T) {
	opt := DefaultReadOptions()
	opt.Delimiter = '\t'
	ds, err := Read(strings.NewReader("a\tb\n1\tx\n\ty\n"), "t.tsv", opt)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff([][]string{{"1", "x"}, {"", "y"}}, ds.Head(-1)); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	if ds.Columns[0].Kind != Numeric || ds.Columns[0].MissingCount() != 1 {
		t.Fatalf("column a: kind=%s missing=%d", ds.Columns[0].Kind, ds.Columns[0].MissingCount())
	}
}

func TestCloneIsDeep(t *testing.T) {
	ds, _ := Read(strings.NewReader("a\n1\n"), "c.csv", DefaultReadOptions())
	cp := ds.Clone()
	cp.Columns[0].Cells[0].Num = 99
	if ds.Columns[0].Cells[0].Num != 1 {
		t.Fatalf("clone shares cells with original")
	}
}

func TestWriteCSVNormalizesNumbers(t *testing.T) {
	ds, err := Read(strings.NewReader("id,x,code\nA,1.50,007\nB,1e3,010\n"), "n.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var buf bytes.Buffer
	if err := ds.WriteCSV(&buf, ','); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if diff := cmp.Diff("id,x,code\nA,1.5,7\nB,1000,10\n", buf.String()); diff != "" {
		t.Fatalf("csv (-want +got):\n%s", diff)
	}
}

func TestReadStripsByteOrderMark(t *testing.T) {
	ds, err := Read(strings.NewReader("\uFEFFcity,temp\nOslo,4\n"), "bom.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff([]string{"city", "temp"}, ds.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestReadRecordsDetectedDelimiter(t *testing.T) {
	tests := []struct {
		body string
		want rune
	}{
		{"a;b\n1;2\n", ';'},
		{"a\tb\n1\t2\n", '\t'},
		{"a,b\n1,2\n", ','},
	}
	for _, tt := range tests {
		ds, err := Read(strings.NewReader(tt.body), "d.txt", DefaultReadOptions())
		if err != nil {
			t.Fatalf("Read(%q): %v", tt.body, err)
		}
		if ds.Delimiter != tt.want || len(ds.Columns) != 2 {
			t.Errorf("Read(%q): delimiter=%q cols=%d", tt.body, ds.Delimiter, len(ds.Columns))
		}
	}
}
