package langcheck

import (
	"strings"
	"testing"
)

// Building a detector over all languages is slow, so the tests share one.
var checker = New()

func TestISO(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"The night was dark and full of distant thunder over the hills.", "en", true},
		{"Ніч була темна, і десь далеко над пагорбами гуркотів грім.", "uk", true},
		{"La noche era oscura y llena de truenos lejanos sobre las colinas.", "es", true},
		{"", "", false},
		{"   \n\t  ", "", false},
	}
	for _, tt := range tests {
		got, ok := checker.ISO(tt.text)
		if ok != tt.wantOK {
			t.Errorf("ISO(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ISO(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestVerify(t *testing.T) {
	ukrainian := "Ніч була темна, і десь далеко над пагорбами гуркотів грім."

	if err := checker.Verify(ukrainian, "uk"); err != nil {
		t.Errorf("matching language should pass: %v", err)
	}
	if err := checker.Verify(ukrainian, "UK"); err != nil {
		t.Errorf("code comparison must ignore case: %v", err)
	}
	if err := checker.Verify(ukrainian, "en"); err == nil {
		t.Error("mismatched language should warn")
	} else if !strings.Contains(err.Error(), `expected "en"`) {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestVerify_SkipsUncheckableInput(t *testing.T) {
	if err := checker.Verify("Ніч була темна, і грім гуркотів.", ""); err != nil {
		t.Errorf("empty expectation must pass: %v", err)
	}
	// Below the detection floor, any expectation passes.
	if err := checker.Verify("Так.", "en"); err != nil {
		t.Errorf("short text must pass: %v", err)
	}
}
