// Package smstemplate renders review-request SMS bodies.
package smstemplate

import "strings"

const (
	BusinessNamePlaceholder = "{businessName}"
	CustomerNamePlaceholder = "{customerName}"

	// ComplianceSuffix is appended for destinations whose carriers require
	// opt-out instructions on application-to-person traffic.
	ComplianceSuffix = "Msg&data rates may apply. Reply STOP to opt out, HELP for help."

	DefaultTemplate = "Hi {customerName}, thanks for choosing {businessName}! We'd love to hear about your experience."

	fallbackBusinessName = "us"
	fallbackCustomerName = "there"
)

var complianceRegions = map[string]struct{}{
	"US": {},
	"CA": {},
}

// Link is a named review destination.
type Link struct {
	Name string
	URL  string
}

// Input holds everything a rendered message depends on.
type Input struct {
	Template       string
	BusinessName   string
	ReviewLinks    []Link
	IncludeName    bool
	IncludeJob     bool
	CustomerName   string
	JobDescription string
	// Region is the ISO region of the destination number.
	Region string
}

// Render builds the message body. It has no side effects and returns the
// same output for the same input.
func Render(in Input) string {
	tmpl := in.Template
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate
	}

	business := strings.TrimSpace(in.BusinessName)
	if business == "" {
		business = fallbackBusinessName
	}

	customer := fallbackCustomerName
	if in.IncludeName && strings.TrimSpace(in.CustomerName) != "" {
		customer = strings.TrimSpace(in.CustomerName)
	}

	var b strings.Builder
	body := strings.ReplaceAll(tmpl, BusinessNamePlaceholder, business)
	body = strings.ReplaceAll(body, CustomerNamePlaceholder, customer)
	b.WriteString(body)

	if job := strings.TrimSpace(in.JobDescription); in.IncludeJob && job != "" {
		b.WriteString("\n\nJob: ")
		b.WriteString(job)
	}

	if lines := linkLines(in.ReviewLinks); len(lines) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(lines, "\n"))
	}

	if RequiresCompliance(in.Region) {
		b.WriteString("\n\n")
		b.WriteString(ComplianceSuffix)
	}

	return b.String()
}

// RequiresCompliance reports whether region needs the opt-out suffix.
func RequiresCompliance(region string) bool {
	_, ok := complianceRegions[strings.ToUpper(region)]
	return ok
}

func linkLines(links []Link) []string {
	lines := make([]string, 0, len(links))
	for _, l := range links {
		name, url := strings.TrimSpace(l.Name), strings.TrimSpace(l.URL)
		if name == "" || url == "" {
			continue
		}
		lines = append(lines, name+": "+url)
	}
	return lines
}
