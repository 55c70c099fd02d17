package domain

import "strings"

// RenderTemplate substitutes prospect placeholders into an outbound
// message template. Unknown placeholders are left untouched so a typo
// in a template is visible in the rendered output rather than silently
// dropped. {company_name} is accepted as a legacy alias for {company}.
func RenderTemplate(template string, p *CampaignProspect) string {
	company := ""
	if p.Company != nil {
		company = *p.Company
	}
	title := ""
	if p.Title != nil {
		title = *p.Title
	}

	r := strings.NewReplacer(
		"{first_name}", p.FirstName,
		"{last_name}", p.LastName,
		"{company}", company,
		"{company_name}", company,
		"{title}", title,
	)
	return r.Replace(template)
}
