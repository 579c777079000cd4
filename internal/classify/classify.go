// Package classify derives a numeric budget, a size bucket, and a tag set
// from heterogeneous listing fields.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/korrio/jobradar/internal/model"
)

// HighValueThreshold is the budget (THB) above which a job is promoted to a
// full tracked issue rather than a draft item, and at or above which it
// qualifies for AI analysis. The comparison for issue promotion is exclusive.
const HighValueThreshold = 10000

// budgetPattern matches a thousands-grouped number immediately followed by a
// currency marker, Latin ("THB"/"baht") or Thai ("บาท"), case-insensitive.
var budgetPattern = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*)\s*(?:บาท|THB|baht)`)

// DeriveBudget resolves a listing's budget in THB. Precedence: explicit
// budget field, minimum-budget field, price field, then a best-effort match
// against the budget text or description. 0 means "unspecified", never a
// legitimate zero-cost job.
func DeriveBudget(l model.Listing) float64 {
	if l.Budget != nil {
		return *l.Budget
	}
	if l.BudgetMin != nil {
		return *l.BudgetMin
	}
	if l.Price != nil {
		return *l.Price
	}

	text := l.BudgetText
	if text == "" {
		text = l.Description
	}
	m := budgetPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}

	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return n
}

// Size maps a budget to its bucket. Boundaries are half-open: a budget of
// exactly 5,000 is S, exactly 60,000 is XL.
func Size(budget float64) model.SizeBucket {
	switch {
	case budget < 5000:
		return model.SizeXS
	case budget < 15000:
		return model.SizeS
	case budget < 30000:
		return model.SizeM
	case budget < 60000:
		return model.SizeL
	default:
		return model.SizeXL
	}
}

// Tags derives the tag set for a job: one budget tier tag, one slugified
// category tag, and zero or more content tags from case-insensitive substring
// matches against title+description (the urgency signal matches both English
// and Thai).
func Tags(job model.JobRecord) []string {
	var tags []string

	switch {
	case job.Budget >= 50000:
		tags = append(tags, "high-budget")
	case job.Budget >= 20000:
		tags = append(tags, "medium-budget")
	case job.Budget > 0:
		tags = append(tags, "low-budget")
	default:
		tags = append(tags, "no-budget")
	}

	if job.Category != "" {
		tags = append(tags, Slugify(job.Category))
	}

	content := strings.ToLower(job.Title + " " + job.Description)
	if strings.Contains(content, "urgent") || strings.Contains(content, "ด่วน") {
		tags = append(tags, "urgent")
	}
	if strings.Contains(content, "remote") || strings.Contains(content, "wfh") ||
		strings.Contains(content, "work from home") {
		tags = append(tags, "remote")
	}
	if strings.Contains(content, "full time") || strings.Contains(content, "full-time") {
		tags = append(tags, "full-time")
	}
	if strings.Contains(content, "part time") || strings.Contains(content, "part-time") {
		tags = append(tags, "part-time")
	}

	return tags
}

// Slugify lower-cases a label, turns whitespace runs into hyphens, and strips
// everything that is not alphanumeric or a hyphen.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), "-")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
