package security

import (
	"strings"
	"testing"

	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
)

func TestAnonymizeDeterministic(t *testing.T) {
	gate := NewGate()

	first, err := gate.Anonymize("A1234567")
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	second, err := gate.Anonymize("A1234567")
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}

	if first.Anonymized != second.Anonymized {
		t.Fatalf("same input produced different digests: %q vs %q", first.Anonymized, second.Anonymized)
	}
	if len(first.Anonymized) != 64 {
		t.Fatalf("digest length = %d, want 64", len(first.Anonymized))
	}
	for _, r := range first.Anonymized {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("digest contains non-hex rune %q", r)
		}
	}
	if first.Original != "A1234567" {
		t.Fatalf("Original = %q, want %q", first.Original, "A1234567")
	}
}

func TestAnonymizeDistinctInputs(t *testing.T) {
	gate := NewGate()

	a, err := gate.Anonymize("A1234567")
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	b, err := gate.Anonymize("B7654321")
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	if a.Anonymized == b.Anonymized {
		t.Fatal("distinct inputs produced the same digest")
	}
}

func TestAnonymizeTrimsWhitespace(t *testing.T) {
	gate := NewGate()

	padded, err := gate.Anonymize("  A1234567  ")
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	bare, err := gate.Anonymize("A1234567")
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	if padded.Anonymized != bare.Anonymized {
		t.Fatal("surrounding whitespace changed the digest")
	}
}

func TestAnonymizeEmptyIdentifier(t *testing.T) {
	gate := NewGate()

	for _, input := range []string{"", "   ", "\t\n"} {
		_, err := gate.Anonymize(input)
		if err == nil {
			t.Fatalf("Anonymize(%q) succeeded, want error", input)
		}
		if !apperrors.HasCode(err, apperrors.CodeSecurityEmptyIdentifier) {
			t.Fatalf("Anonymize(%q) error code = %v, want CodeSecurityEmptyIdentifier", input, apperrors.CodeOf(err))
		}
	}
}

func TestAnonymizeSalted(t *testing.T) {
	gate := NewGate()

	unsalted, err := gate.Anonymize("A1234567")
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	saltedA, err := gate.AnonymizeSalted("A1234567", "salt-a")
	if err != nil {
		t.Fatalf("AnonymizeSalted: %v", err)
	}
	saltedB, err := gate.AnonymizeSalted("A1234567", "salt-b")
	if err != nil {
		t.Fatalf("AnonymizeSalted: %v", err)
	}

	if saltedA.Anonymized == unsalted.Anonymized {
		t.Fatal("salted digest equals unsalted digest")
	}
	if saltedA.Anonymized == saltedB.Anonymized {
		t.Fatal("different salts produced the same digest")
	}

	again, err := gate.AnonymizeSalted("A1234567", "salt-a")
	if err != nil {
		t.Fatalf("AnonymizeSalted: %v", err)
	}
	if again.Anonymized != saltedA.Anonymized {
		t.Fatal("same salt and input produced different digests")
	}
}

func TestDetectPII(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		name     string
		text     string
		want     bool
		category Category
	}{
		{"email", "Contact me at john@example.com please", true, CategoryEmail},
		{"uk mobile", "Call me on 07911123456 later", true, CategoryPhoneNumber},
		{"uk landline with spaces", "Ring 020 7946 0958 today", true, CategoryPhoneNumber},
		{"postcode", "I live at MK7 6AA in Milton Keynes", true, CategoryPostalCode},
		{"url", "See https://example.com/my-page for details", true, CategoryURL},
		{"student id", "My id is A1234567 thanks", true, CategoryStudentID},
		{"clean prose", "The mitochondria is the powerhouse of the cell.", false, ""},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gate.DetectPII(tt.text)
			if result.Found != tt.want {
				t.Fatalf("Found = %v, want %v", result.Found, tt.want)
			}
			if !tt.want {
				return
			}
			found := false
			for _, c := range result.Categories {
				if c == tt.category {
					found = true
				}
			}
			if !found {
				t.Fatalf("categories %v missing %q", result.Categories, tt.category)
			}
		})
	}
}

func TestDetectPIIExactMatch(t *testing.T) {
	gate := NewGate()

	result := gate.DetectPII("Contact me at john@example.com please")
	if len(result.Locations) != 1 {
		t.Fatalf("got %d locations, want 1", len(result.Locations))
	}
	loc := result.Locations[0]
	if loc.MatchedText != "john@example.com" {
		t.Fatalf("MatchedText = %q, want %q", loc.MatchedText, "john@example.com")
	}
	if loc.Line != 1 {
		t.Fatalf("Line = %d, want 1", loc.Line)
	}
	if loc.Column != len("Contact me at ") {
		t.Fatalf("Column = %d, want %d", loc.Column, len("Contact me at "))
	}
}

func TestDetectPIILineNumbers(t *testing.T) {
	gate := NewGate()

	text := "first line is clean\nsecond has jane@example.org here\nthird is clean too"
	result := gate.DetectPII(text)
	if len(result.Locations) != 1 {
		t.Fatalf("got %d locations, want 1", len(result.Locations))
	}
	if result.Locations[0].Line != 2 {
		t.Fatalf("Line = %d, want 2", result.Locations[0].Line)
	}
}

func TestDetectPIIMultipleMatchesSameLine(t *testing.T) {
	gate := NewGate()

	result := gate.DetectPII("Email a@example.com or b@example.com today")
	count := 0
	for _, loc := range result.Locations {
		if loc.Category == CategoryEmail {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("got %d email matches, want 2", count)
	}
}

func TestSanitize(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		name        string
		text        string
		placeholder string
		leaked      string
	}{
		{"email", "Write to john@example.com for help", placeholderEmail, "john@example.com"},
		{"phone", "Ring 07911123456 anytime", placeholderPhone, "07911123456"},
		{"postcode", "Post it to MK7 6AA directly", placeholderPostalCode, "MK7 6AA"},
		{"url", "Read https://example.com/notes first", placeholderURL, "https://example.com/notes"},
		{"student id", "Student A1234567 submitted late", placeholderStudentID, "A1234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.Sanitize(tt.text)
			if !strings.Contains(got, tt.placeholder) {
				t.Fatalf("Sanitize(%q) = %q, missing %q", tt.text, got, tt.placeholder)
			}
			if strings.Contains(got, tt.leaked) {
				t.Fatalf("Sanitize(%q) = %q, still contains %q", tt.text, got, tt.leaked)
			}
		})
	}
}

func TestSanitizeThenDetectFindsNothing(t *testing.T) {
	gate := NewGate()

	text := "I am A1234567, reach me at john@example.com or 07911123456,\n" +
		"postcode MK7 6AA, notes at https://example.com/essay"
	sanitized := gate.Sanitize(text)
	result := gate.DetectPII(sanitized)
	if result.Found {
		t.Fatalf("PII found after sanitization: %+v", result.Locations)
	}
}

func TestSanitizeCleanTextUnchanged(t *testing.T) {
	gate := NewGate()

	text := "Photosynthesis converts light energy into chemical energy."
	if got := gate.Sanitize(text); got != text {
		t.Fatalf("Sanitize changed clean text: %q", got)
	}
}

func TestValidateOutput(t *testing.T) {
	gate := NewGate()

	if err := gate.ValidateOutput("A clean paragraph about thermodynamics."); err != nil {
		t.Fatalf("clean text rejected: %v", err)
	}

	err := gate.ValidateOutput("Send feedback to john@example.com and A1234567")
	if err == nil {
		t.Fatal("leaky text accepted")
	}
	if !apperrors.HasCode(err, apperrors.CodeSecurityPIILeak) {
		t.Fatalf("error code = %v, want CodeSecurityPIILeak", apperrors.CodeOf(err))
	}
	msg := err.Error()
	if !strings.Contains(msg, "2 instance(s)") {
		t.Fatalf("error %q does not report instance count", msg)
	}
}

func TestDetectPIINonASCII(t *testing.T) {
	gate := NewGate()

	result := gate.DetectPII("résumé naïve 结构 🦉 jürgen@example.de")
	if !result.Found {
		t.Fatal("email not detected amid non-ASCII text")
	}
	if result.Locations[0].MatchedText != "jürgen@example.de" && result.Locations[0].MatchedText != "rgen@example.de" {
		// The local part is ASCII-only, so the match starts after the non-ASCII rune.
		t.Fatalf("unexpected match %q", result.Locations[0].MatchedText)
	}
}

func TestHashContent(t *testing.T) {
	gate := NewGate()

	a := gate.HashContent("essay body")
	b := gate.HashContent("essay body")
	c := gate.HashContent("different body")
	if a != b {
		t.Fatal("same content produced different hashes")
	}
	if a == c {
		t.Fatal("different content produced the same hash")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64", len(a))
	}
}

func TestReport(t *testing.T) {
	gate := NewGate()

	report := gate.Report("Reach me at john@example.com")
	if !report.PIIFound {
		t.Fatal("report missed PII")
	}
	if report.PIICount != 1 {
		t.Fatalf("PIICount = %d, want 1", report.PIICount)
	}
	if report.OriginalLength != len("Reach me at john@example.com") {
		t.Fatalf("OriginalLength = %d", report.OriginalLength)
	}
	if report.Timestamp.IsZero() {
		t.Fatal("report timestamp not set")
	}

	clean := gate.Report("Nothing identifying here.")
	if clean.PIIFound || clean.PIICount != 0 {
		t.Fatalf("clean report = %+v", clean)
	}
}
