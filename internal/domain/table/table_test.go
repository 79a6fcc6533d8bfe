package table

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"학번", "학번"},
		{"student ID", "student_ID"},
		{"  total   score ", "total_score"},
		{"week\t1\nreflection", "week_1_reflection"},
		{"already_normal", "already_normal"},
		{"a  b", "a_b"},
		{" 학번", "학번"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeColumn(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeColumn(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := NormalizeColumn(got); again != got {
				t.Errorf("NormalizeColumn not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestNew_NormalizesHeaderAndPadsRows(t *testing.T) {
	tbl, err := New([]string{"student ID", "name", "score"}, [][]any{
		{"20201", "김개포", 90.0},
		{"20202", "이개포"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cols := tbl.Columns()
	want := []string{"student_ID", "name", "score"}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("Columns()[%d] = %q, want %q", i, cols[i], want[i])
		}
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}

	v, ok := tbl.Row(1).Get("score")
	if !ok {
		t.Fatal("short row should still have the score column")
	}
	if v != nil {
		t.Errorf("padded cell = %v, want nil", v)
	}
}

func TestNew_FormatErrors(t *testing.T) {
	tests := []struct {
		name   string
		header []string
	}{
		{"empty header", nil},
		{"blank label", []string{"id", "  "}},
		{"duplicate after normalization", []string{"student id", "student  id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.header, nil)
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("New() error = %v, want ErrFormat", err)
			}
			if !errors.Is(err, ErrSourceUnavailable) {
				t.Errorf("ErrFormat should be SourceUnavailable-class, got %v", err)
			}
		})
	}
}

func TestTable_RequireColumns(t *testing.T) {
	tbl, err := New([]string{"학번", "이름", "total score"}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := tbl.RequireColumns("학번", "이름", "total score"); err != nil {
		t.Errorf("RequireColumns() with present columns error = %v", err)
	}

	err = tbl.RequireColumns("학번", "반")
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("RequireColumns() error = %v, want ErrFormat", err)
	}
}

func TestTable_FindReturnsFirstMatch(t *testing.T) {
	tbl, _ := New([]string{"id", "n"}, [][]any{
		{"a", 1.0},
		{"b", 2.0},
		{"b", 3.0},
	})

	r, ok := tbl.Find(func(r Record) bool { return r.Text("id") == "b" })
	if !ok {
		t.Fatal("Find() found nothing")
	}
	if got := r.Text("n"); got != "2" {
		t.Errorf("Find() returned row with n=%s, want first match n=2", got)
	}

	var nilTable *Table
	if _, ok := nilTable.Find(func(Record) bool { return true }); ok {
		t.Error("Find() on nil table should not match")
	}
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	tbl, _ := New([]string{"id"}, [][]any{{"x"}})
	orig := tbl.Row(0)
	c := orig.Clone()
	c.values["id"] = "mutated"

	if got := tbl.Row(0).Text("id"); got != "x" {
		t.Errorf("table row changed through clone: %q", got)
	}
}

func TestCellText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "20201", "20201"},
		{"integral float", 20201.0, "20201"},
		{"fraction", 90.5, "90.5"},
		{"int", 7, "7"},
		{"bool", true, "true"},
		{"huge float", 1e20, "100000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CellText(tt.in); got != tt.want {
				t.Errorf("CellText(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTable_Fingerprint(t *testing.T) {
	a, _ := New([]string{"id", "score"}, [][]any{{"1", 90.0}})
	b, _ := New([]string{"id", "score"}, [][]any{{"1", 90.0}})
	c, _ := New([]string{"id", "score"}, [][]any{{"1", "90"}})
	d, _ := New([]string{"id", "score"}, [][]any{{"1", 91.0}})

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical tables should share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("string and number cells should hash differently")
	}
	if a.Fingerprint() == d.Fingerprint() {
		t.Error("changed cell should change the fingerprint")
	}
}

func TestTable_DuplicateKeys(t *testing.T) {
	tbl, _ := New([]string{"id", "name"}, [][]any{
		{"1", "a"},
		{"1", "a"},
		{"1", "b"},
		{"2", "a"},
		{"1", "a"},
	})
	if got := tbl.DuplicateKeys("id", "name"); got != 2 {
		t.Errorf("DuplicateKeys() = %d, want 2", got)
	}
}

func TestTable_DuplicateKeys_NormalizesNames(t *testing.T) {
	tbl, _ := New([]string{"student ID", "student name"}, [][]any{
		{"1", "a"},
		{"2", "b"},
		{"3", "c"},
	})
	if got := tbl.DuplicateKeys("student ID", "student name"); got != 0 {
		t.Errorf("DuplicateKeys(raw names) = %d, want 0", got)
	}
	if got := tbl.DuplicateKeys("student_ID", "student_name"); got != 0 {
		t.Errorf("DuplicateKeys(normalized names) = %d, want 0", got)
	}
}

func TestSanitizeCell(t *testing.T) {
	if SanitizeCell(math.NaN()) != nil {
		t.Error("NaN should become nil")
	}
	if SanitizeCell(math.Inf(1)) != nil {
		t.Error("+Inf should become nil")
	}
	if SanitizeCell(3.0) != 3.0 {
		t.Error("finite float should pass through")
	}
	if SanitizeCell("x") != "x" {
		t.Error("string should pass through")
	}
}
