package workflow

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoleCategory buckets a contact's free-text role for template selection.
type RoleCategory string

const (
	RoleFinancial     RoleCategory = "financial"
	RoleLegal         RoleCategory = "legal"
	RoleIndigenous    RoleCategory = "indigenous"
	RoleEnvironmental RoleCategory = "environmental"
	RoleCommunity     RoleCategory = "community"
	RoleGeneric       RoleCategory = "generic"
)

// FallbackPurpose is substituted when no purpose phrase can be extracted
// from a contact's context. Extraction is a UX nicety, never an error.
const FallbackPurpose = "project objectives and goals"

var roleKeywords = []struct {
	category RoleCategory
	words    []string
}{
	{RoleFinancial, []string{"financ", "cfo", "invest", "account", "budget", "treasur"}},
	{RoleLegal, []string{"legal", "lawyer", "counsel", "attorney", "compliance"}},
	{RoleIndigenous, []string{"indigenous", "tribal", "first nation", "elder", "chief", "aboriginal"}},
	{RoleEnvironmental, []string{"environment", "ecolog", "sustainab", "conservation", "climate"}},
	{RoleCommunity, []string{"community", "liaison", "resident", "outreach", "neighborhood"}},
}

// ClassifyRole matches the role string against keyword sets, first match
// wins; anything unrecognized is generic.
func ClassifyRole(role string) RoleCategory {
	lower := strings.ToLower(role)
	for _, rk := range roleKeywords {
		for _, w := range rk.words {
			if strings.Contains(lower, w) {
				return rk.category
			}
		}
	}
	return RoleGeneric
}

var (
	purposeRe = regexp.MustCompile(`(?i)\b(?:for|about|regarding)\s+([^,.;\n]+)`)
	emailRe   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// ExtractPurpose pulls a short purpose phrase out of free-text contact
// context ("for investment strategy" -> "investment strategy"). Embedded
// email addresses are stripped so they never leak into generated prose.
// Unmatched input returns FallbackPurpose; this function does not fail.
func ExtractPurpose(context string) string {
	m := purposeRe.FindStringSubmatch(context)
	if m == nil {
		return FallbackPurpose
	}
	phrase := emailRe.ReplaceAllString(m[1], "")
	phrase = strings.Join(strings.Fields(phrase), " ")
	if phrase == "" {
		return FallbackPurpose
	}
	return phrase
}

// Template is one role-specific subject/body pair. Placeholders:
// {role}, {location}, {purpose}, {purpose_title}.
type Template struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

var defaultTemplates = map[RoleCategory]Template{
	RoleFinancial: {
		Subject: "Investment Consultation: {purpose_title} - {location}",
		Body: `Hi {role},

I'm reaching out regarding our development initiative at {location}.

Your financial expertise in {purpose} would be invaluable as we plan budgets, funding strategy, and long-term returns for this project.

I'd like to schedule a 30-minute consultation to discuss how we can collaborate.

Best regards`,
	},
	RoleLegal: {
		Subject: "Legal Review Request: {purpose_title} - {location}",
		Body: `Hi {role},

I'm reaching out regarding our development initiative at {location}.

We need legal guidance on {purpose}, including regulatory compliance and agreement structure.

Would you be available for a 30-minute consultation?

Best regards`,
	},
	RoleIndigenous: {
		Subject: "Consultation Request: {purpose_title} - {location}",
		Body: `Hi {role},

I'm reaching out respectfully regarding our proposed initiative at {location}.

We are committed to community-led decision-making and respect for traditional land stewardship, and your guidance on {purpose} is essential before anything moves forward.

We would be honored to schedule a consultation at your convenience.

With respect`,
	},
	RoleEnvironmental: {
		Subject: "Environmental Consultation: {purpose_title} - {location}",
		Body: `Hi {role},

I'm reaching out regarding our development initiative at {location}.

Your expertise in {purpose} would help us assess ecosystem impact, certification paths, and sustainable design choices for the site.

Could we set up a 30-minute consultation?

Best regards`,
	},
	RoleCommunity: {
		Subject: "Community Consultation: {purpose_title} - {location}",
		Body: `Hi {role},

I'm reaching out regarding our development initiative at {location}.

We want local voices shaping this project, and your perspective on {purpose} would make sure residents are heard early.

Could we schedule a 30-minute conversation?

Best regards`,
	},
	RoleGeneric: {
		Subject: "Consultation Request: {purpose_title} - {location}",
		Body: `Hi {role},

I'm reaching out regarding our development initiative at {location}.

Your perspective on {purpose} would be invaluable. I'd like to schedule a 30-minute consultation to discuss collaboration.

Best regards`,
	},
}

// Composer renders role-personalized subject/body pairs. It is a pure
// string transformation: (role, context, location) -> (subject, body).
type Composer struct {
	templates map[RoleCategory]Template
}

func NewComposer() *Composer {
	t := make(map[RoleCategory]Template, len(defaultTemplates))
	for k, v := range defaultTemplates {
		t[k] = v
	}
	return &Composer{templates: t}
}

// LoadOverrides replaces templates for the categories present in a YAML
// file (category -> {subject, body}). Categories absent from the file keep
// their defaults.
func (c *Composer) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read templates: %w", err)
	}
	var raw map[string]Template
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	for k, v := range raw {
		cat := RoleCategory(strings.ToLower(strings.TrimSpace(k)))
		if _, ok := c.templates[cat]; !ok {
			return fmt.Errorf("unknown role category %q in %s", k, path)
		}
		if strings.TrimSpace(v.Subject) == "" || strings.TrimSpace(v.Body) == "" {
			return fmt.Errorf("template %q needs both subject and body", k)
		}
		c.templates[cat] = v
	}
	return nil
}

// Compose selects the role template and interpolates the extracted purpose
// phrase and location. No side effects.
func (c *Composer) Compose(role, context, location string) (subject, body string) {
	tpl := c.templates[ClassifyRole(role)]
	purpose := ExtractPurpose(context)

	r := strings.NewReplacer(
		"{role}", role,
		"{location}", location,
		"{purpose}", purpose,
		"{purpose_title}", titlePhrase(purpose),
	)
	return r.Replace(tpl.Subject), r.Replace(tpl.Body)
}

func titlePhrase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		w := []rune(f)
		fields[i] = strings.ToUpper(string(w[0])) + string(w[1:])
	}
	return strings.Join(fields, " ")
}
