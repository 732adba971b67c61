package normalize

import (
	"strings"
	"testing"
	"unicode"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"diacritics removed", "قَضِيَّةٌ", "قضية"},
		{"alef variants folded", "أحكام إدارية آثار", "احكام ادارية اثار"},
		{"hamza waw folded", "مسؤولية", "مسوولية"},
		{"double quotes folded", "“نص” «قانون»", "\"نص\" \"قانون\""},
		{"apostrophes folded", "‘a’", "'a'"},
		{"whitespace collapsed and trimmed", "  المادة \t\n 5  ", "المادة 5"},
		{"non-breaking space collapsed", "عقد\u00a0\u00a0بيع", "عقد بيع"},
		{"superscript alef removed", "هٰذا", "هذا"},
		{"latin untouched", "Article 5", "Article 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{
		"قَرَّرَتِ المَحْكَمَةُ  إلغاء   الحُكْمِ",
		"«المادة» ٥ من قانون العقوبات، مسؤولية المؤجر",
		"   \n\t ",
		"plain ascii text",
		"آ أ إ ؤ ً ٌ ٍ",
	}
	for _, in := range inputs {
		once := Text(in)
		if twice := Text(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestText_NoDiacriticsOrAlefVariantsRemain(t *testing.T) {
	out := Text("إِنَّ الأَحْكَامَ آمِرَةٌ فِي القَانُونِ المَدَنِيِّ")
	for _, r := range out {
		if unicode.Is(Diacritics, r) {
			t.Errorf("diacritic %U survived in %q", r, out)
		}
	}
	if strings.ContainsAny(out, "أإآ") {
		t.Errorf("alef variant survived in %q", out)
	}
}

func TestValue(t *testing.T) {
	if got := Value(42); got != 42 {
		t.Errorf("Value(42) = %v", got)
	}
	if got := Value(nil); got != nil {
		t.Errorf("Value(nil) = %v", got)
	}
	f := 3.5
	if got := Value(f); got != f {
		t.Errorf("Value(3.5) = %v", got)
	}
	if got := Value(" أَ "); got != "ا" {
		t.Errorf("Value(string) = %v", got)
	}
}

func TestFields(t *testing.T) {
	got := Fields([]string{" أ ", "بَ"})
	if got[0] != "ا" || got[1] != "ب" {
		t.Errorf("Fields = %v", got)
	}
}
