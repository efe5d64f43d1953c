// Package security implements the PII gate that sits between student
// submissions and the jailed inference process: one-way anonymization,
// detection, redaction, and output validation.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/tutormark/internal/platform/errors"
)

// Category names a class of personally identifiable information.
type Category string

const (
	// CategoryEmail matches email addresses.
	CategoryEmail Category = "email"
	// CategoryPhoneNumber matches UK phone numbers in common formats.
	CategoryPhoneNumber Category = "phone_number"
	// CategoryPostalCode matches UK postal codes.
	CategoryPostalCode Category = "postal_code"
	// CategoryURL matches URLs, which may embed identifying paths.
	CategoryURL Category = "url"
	// CategoryStudentID matches student-id-shaped tokens (letter + 7 digits).
	CategoryStudentID Category = "student_id"
)

// Redaction placeholders, one per category. Sanitize substitutes these for
// every match so downstream detection reports nothing.
const (
	placeholderEmail      = "[EMAIL_REDACTED]"
	placeholderPhone      = "[PHONE_REDACTED]"
	placeholderPostalCode = "[POSTCODE_REDACTED]"
	placeholderURL        = "[URL_REDACTED]"
	placeholderStudentID  = "[STUDENT_ID_REDACTED]"
)

// Location pinpoints one PII match within scanned text.
type Location struct {
	Category Category
	// Line is 1-based.
	Line int
	// Column is the byte offset of the match within its line.
	Column      int
	MatchedText string
}

// DetectionResult reports every PII match found in a piece of text.
type DetectionResult struct {
	Found      bool
	Categories []Category
	Locations  []Location
}

// AnonymizationResult pairs a raw identifier with its one-way hash. The
// original value is retained only for local audit and must never be
// transmitted onward.
type AnonymizationResult struct {
	Original   string
	Anonymized string
	Salt       string
}

// RedactionReport summarizes a detection pass for audit purposes.
type RedactionReport struct {
	OriginalLength int
	PIIFound       bool
	PIICount       int
	Categories     []Category
	Timestamp      time.Time
}

type pattern struct {
	category    Category
	re          *regexp.Regexp
	placeholder string
}

// Gate detects and redacts PII. A Gate is immutable after construction and
// safe for concurrent use.
type Gate struct {
	patterns []pattern
	clock    func() time.Time
}

// NewGate compiles the category patterns and returns a ready gate.
func NewGate() *Gate {
	return &Gate{
		// Fixed order keeps detection output deterministic.
		patterns: []pattern{
			{
				category:    CategoryEmail,
				re:          regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
				placeholder: placeholderEmail,
			},
			{
				category:    CategoryPhoneNumber,
				re:          regexp.MustCompile(`\b(?:\+44\s?|0)(?:\d\s?){9,10}\b`),
				placeholder: placeholderPhone,
			},
			{
				category:    CategoryPostalCode,
				re:          regexp.MustCompile(`\b[A-Z]{1,2}\d{1,2}\s?\d[A-Z]{2}\b`),
				placeholder: placeholderPostalCode,
			},
			{
				category:    CategoryURL,
				re:          regexp.MustCompile(`https?://[^\s]+`),
				placeholder: placeholderURL,
			},
			{
				category:    CategoryStudentID,
				re:          regexp.MustCompile(`\b[A-Z]\d{7}\b`),
				placeholder: placeholderStudentID,
			},
		},
		clock: time.Now,
	}
}

// Anonymize computes the unsalted one-way hash of a student identifier.
// The digest is deterministic for identical inputs and has no decode path.
func (g *Gate) Anonymize(studentID string) (AnonymizationResult, error) {
	return g.anonymize(studentID, "")
}

// AnonymizeSalted computes the one-way hash of salt+studentID. Distinct salts
// produce distinct digests for the same identifier.
func (g *Gate) AnonymizeSalted(studentID, salt string) (AnonymizationResult, error) {
	return g.anonymize(studentID, salt)
}

func (g *Gate) anonymize(studentID, salt string) (AnonymizationResult, error) {
	trimmed := strings.TrimSpace(studentID)
	if trimmed == "" {
		return AnonymizationResult{}, apperrors.New(apperrors.CodeSecurityEmptyIdentifier, "student id cannot be empty")
	}

	sum := sha256.Sum256([]byte(salt + trimmed))
	return AnonymizationResult{
		Original:   trimmed,
		Anonymized: hex.EncodeToString(sum[:]),
		Salt:       salt,
	}, nil
}

// HashContent returns the hex digest of arbitrary content, used to reference
// submission text in audit events without storing it.
func (g *Gate) HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// DetectPII scans text line by line against every category pattern. Line
// numbers are 1-based; columns are byte offsets within the line. The scan
// never fails, regardless of input.
func (g *Gate) DetectPII(text string) DetectionResult {
	var result DetectionResult
	seen := make(map[Category]bool)

	for lineIdx, line := range strings.Split(text, "\n") {
		for _, p := range g.patterns {
			for _, match := range p.re.FindAllStringIndex(line, -1) {
				if !seen[p.category] {
					seen[p.category] = true
					result.Categories = append(result.Categories, p.category)
				}
				result.Locations = append(result.Locations, Location{
					Category:    p.category,
					Line:        lineIdx + 1,
					Column:      match[0],
					MatchedText: line[match[0]:match[1]],
				})
			}
		}
	}

	result.Found = len(result.Locations) > 0
	return result
}

// Sanitize replaces every match of each category with that category's
// placeholder. Replacement order does not affect the final absence of any
// category's matches.
func (g *Gate) Sanitize(text string) string {
	for _, p := range g.patterns {
		text = p.re.ReplaceAllString(text, p.placeholder)
	}
	return text
}

// ValidateOutput fails when text contains any PII. It is the hard safety
// gate, invoked both before content leaves the process toward the jail and
// after a response comes back, with identical semantics.
func (g *Gate) ValidateOutput(text string) error {
	detection := g.DetectPII(text)
	if !detection.Found {
		return nil
	}

	names := make([]string, 0, len(detection.Categories))
	for _, c := range detection.Categories {
		names = append(names, string(c))
	}
	return apperrors.WithMetadata(apperrors.CodeSecurityPIILeak,
		fmt.Sprintf("PII detected: %d instance(s) across %d categor%s",
			len(detection.Locations), len(detection.Categories), pluralY(len(detection.Categories))),
		map[string]string{
			"instances":  strconv.Itoa(len(detection.Locations)),
			"categories": strings.Join(names, ","),
		})
}

// Report summarizes a detection pass over content for the audit trail.
func (g *Gate) Report(content string) RedactionReport {
	detection := g.DetectPII(content)
	return RedactionReport{
		OriginalLength: len(content),
		PIIFound:       detection.Found,
		PIICount:       len(detection.Locations),
		Categories:     detection.Categories,
		Timestamp:      g.clock().UTC(),
	}
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
