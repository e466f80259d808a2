// Package flows declares the guided flows of the product: their steps,
// validation rules, terminal actions and the timed walkthroughs.
package flows

import (
	"errors"
	"fmt"

	"github.com/dukex/lexflow/pkg/models"
)

// Backend routes called by terminal actions.
const (
	EndpointAuth             = "/api/auth"
	EndpointContact          = "/api/contact"
	EndpointProfile          = "/api/user/profile"
	EndpointGenerateDocument = "/api/documents/generate"
)

var (
	ErrUnknownFlowKind        = errors.New("unknown flow kind")
	ErrUnknownWalkthroughKind = errors.New("unknown walkthrough kind")
)

const (
	minPasswordLength = 8
	minMessageLength  = 10
)

type Catalog struct {
	flows        map[models.FlowKind]*models.FlowDefinition
	walkthroughs map[models.WalkthroughKind]*models.WalkthroughDefinition
}

// NewCatalog returns the catalog of built-in flows.
func NewCatalog() *Catalog {
	return &Catalog{
		flows: map[models.FlowKind]*models.FlowDefinition{
			models.FlowKindSignup:     Signup(),
			models.FlowKindContact:    Contact(),
			models.FlowKindOnboarding: Onboarding(),
			models.FlowKindDocument:   Document(),
		},
		walkthroughs: map[models.WalkthroughKind]*models.WalkthroughDefinition{
			models.WalkthroughDemo:  Demo(),
			models.WalkthroughGuide: Guide(),
		},
	}
}

func (c *Catalog) Flow(kind models.FlowKind) (*models.FlowDefinition, error) {
	def, ok := c.flows[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlowKind, kind)
	}

	return def, nil
}

func (c *Catalog) Walkthrough(kind models.WalkthroughKind) (*models.WalkthroughDefinition, error) {
	def, ok := c.walkthroughs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWalkthroughKind, kind)
	}

	return def, nil
}

// Signup is the account creation modal.
func Signup() *models.FlowDefinition {
	return &models.FlowDefinition{
		Kind: models.FlowKindSignup,
		Fields: []models.Field{
			models.FieldName, models.FieldEmail, models.FieldPassword,
			models.FieldConfirmPassword, models.FieldCompany, models.FieldLocation,
		},
		Steps: []models.StepDefinition{
			{
				Name: "account",
				Rules: []models.Rule{
					{Field: models.FieldName, Check: models.CheckRequired},
					{Field: models.FieldEmail, Check: models.CheckEmail},
				},
			},
			{
				Name: "credentials",
				Rules: []models.Rule{
					{Field: models.FieldPassword, Check: models.CheckRequired},
					{Field: models.FieldPassword, Check: models.CheckMinLength, Min: minPasswordLength},
					{Field: models.FieldConfirmPassword, Check: models.CheckMatches, Other: models.FieldPassword},
				},
			},
			{
				Name: "profile",
				Action: &models.StepAction{
					Endpoint: EndpointAuth,
					Static:   map[string]any{"action": "signup"},
					Omit:     []models.Field{models.FieldConfirmPassword},
				},
			},
		},
		FailurePolicy: models.FailureInline,
		ErrorField:    models.FieldEmail,
	}
}

// Contact is the "talk to sales" modal.
func Contact() *models.FlowDefinition {
	return &models.FlowDefinition{
		Kind: models.FlowKindContact,
		Fields: []models.Field{
			models.FieldName, models.FieldEmail, models.FieldCompany,
			models.FieldSubject, models.FieldMessage,
		},
		Steps: []models.StepDefinition{
			{
				Name: "details",
				Rules: []models.Rule{
					{Field: models.FieldName, Check: models.CheckRequired},
					{Field: models.FieldEmail, Check: models.CheckEmail},
				},
			},
			{
				Name: "message",
				Rules: []models.Rule{
					{Field: models.FieldMessage, Check: models.CheckRequired},
					{Field: models.FieldMessage, Check: models.CheckMinLength, Min: minMessageLength},
				},
				Action: &models.StepAction{Endpoint: EndpointContact},
			},
		},
		FailurePolicy: models.FailureInline,
		ErrorField:    models.FieldEmail,
	}
}

// Onboarding collects the profile of a freshly signed up user.
func Onboarding() *models.FlowDefinition {
	return &models.FlowDefinition{
		Kind:   models.FlowKindOnboarding,
		Fields: []models.Field{models.FieldRole, models.FieldUseCase, models.FieldTeamSize, models.FieldCompany},
		Steps: []models.StepDefinition{
			{
				Name:  "role",
				Rules: []models.Rule{{Field: models.FieldRole, Check: models.CheckRequired, Message: "Please select your role"}},
			},
			{
				Name:  "use-case",
				Rules: []models.Rule{{Field: models.FieldUseCase, Check: models.CheckRequired, Message: "Please select a use case"}},
			},
			{
				Name:  "team",
				Rules: []models.Rule{{Field: models.FieldTeamSize, Check: models.CheckRequired, Message: "Please select your team size"}},
			},
			{
				Name: "confirm",
				Action: &models.StepAction{
					Endpoint: EndpointProfile,
					Static:   map[string]any{"onboardingCompleted": true},
				},
			},
		},
		FailurePolicy: models.FailureInline,
		ErrorField:    models.FieldRole,
	}
}

// Document is the three step document creation wizard. Picking a template
// fills the title and moves straight to the details step.
func Document() *models.FlowDefinition {
	return &models.FlowDefinition{
		Kind: models.FlowKindDocument,
		Fields: []models.Field{
			models.FieldTemplate, models.FieldTitle, models.FieldJurisdiction,
			models.FieldParties, models.FieldSpecificRequirements,
		},
		Steps: []models.StepDefinition{
			{
				Name:  "template",
				Rules: []models.Rule{{Field: models.FieldTemplate, Check: models.CheckRequired, Message: "Please select a template"}},
			},
			{
				Name: "details",
				Rules: []models.Rule{
					{Field: models.FieldTitle, Check: models.CheckRequired},
					{Field: models.FieldJurisdiction, Check: models.CheckRequired},
				},
				Action: &models.StepAction{Endpoint: EndpointGenerateDocument},
			},
			{
				Name: "review",
			},
		},
		FailurePolicy: models.FailureTerminal,
		ErrorField:    models.FieldTitle,
		Derive:        deriveFromTemplate,
	}
}

func deriveFromTemplate(field models.Field, value string) (map[models.Field]string, bool) {
	if field != models.FieldTemplate {
		return nil, false
	}

	template, ok := TemplateByID(value)
	if !ok {
		return nil, false
	}

	if template.Title == "" {
		return nil, true
	}

	return map[models.Field]string{models.FieldTitle: template.Title}, true
}

// Demo is the seven feature platform walkthrough.
func Demo() *models.WalkthroughDefinition {
	return &models.WalkthroughDefinition{
		Kind: models.WalkthroughDemo,
		Titles: []string{
			"AI Document Generation",
			"Smart Templates",
			"Legal Research",
			"AI Legal Assistant",
			"Compliance Checks",
			"Team Collaboration",
			"Secure Storage",
		},
	}
}

// Guide is the "how it works" walkthrough.
func Guide() *models.WalkthroughDefinition {
	return &models.WalkthroughDefinition{
		Kind: models.WalkthroughGuide,
		Titles: []string{
			"Choose a template",
			"Answer a few questions",
			"Review your draft",
			"Download and sign",
		},
	}
}
