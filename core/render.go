package core

import "strings"

// Render substitutes {{key}} placeholders in a template with values from the
// context map. Unknown placeholders are left intact so a misconfigured
// template is visible in the delivered text rather than silently blanked.
// It is a pure function with no web-framework coupling.
func Render(template string, context map[string]string) string {
	if template == "" || len(context) == 0 {
		return template
	}
	pairs := make([]string, 0, len(context)*2)
	for key, value := range context {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// LeadRenderContext builds the substitution map used by auto-reply templates.
func LeadRenderContext(lead Lead) map[string]string {
	return map[string]string{
		"name":      lead.Name,
		"email":     lead.Email,
		"phone":     lead.Phone,
		"message":   lead.Message,
		"form_type": lead.FormType,
	}
}
