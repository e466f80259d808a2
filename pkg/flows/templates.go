package flows

// Template is a document template offered in the first step of the document wizard.
type Template struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// TemplateCustom starts a document from scratch; it fills no title.
const TemplateCustom = "custom"

var templates = []Template{
	{ID: "nda", Title: "Non-Disclosure Agreement (NDA)"},
	{ID: "employment", Title: "Employment Agreement"},
	{ID: "service", Title: "Service Agreement"},
	{ID: "lease", Title: "Residential Lease Agreement"},
	{ID: "partnership", Title: "Partnership Agreement"},
	{ID: "privacy", Title: "Privacy Policy"},
	{ID: "terms", Title: "Terms of Service"},
	{ID: TemplateCustom, Title: ""},
}

// Templates returns the available document templates.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)

	return out
}

// TemplateByID looks a template up by id.
func TemplateByID(id string) (Template, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}

	return Template{}, false
}
