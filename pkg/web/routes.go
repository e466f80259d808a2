package web

import "github.com/gofiber/fiber/v3"

// Register mounts the session, flow and walkthrough endpoints on router.
func (h *APIHandlers) Register(router fiber.Router) {
	s := router.Group("/sessions")
	s.Post("/", h.CreateSession)
	s.Get("/:sid", h.GetSession)
	s.Post("/:sid/period", h.SelectPeriod)
	s.Post("/:sid/modals/:modal", h.OpenModal)
	s.Delete("/:sid/modals/:modal", h.CloseModal)
	s.Post("/:sid/testimonials/toggle", h.ToggleTestimonials)
	s.Post("/:sid/checkout", h.Checkout)

	f := router.Group("/flows")
	f.Post("/", h.CreateFlow)
	f.Get("/:id", h.GetFlow)
	f.Put("/:id/fields/:field", h.UpdateField)
	f.Post("/:id/next", h.NextStep)
	f.Post("/:id/back", h.PreviousStep)
	f.Post("/:id/jump", h.JumpToStep)
	f.Post("/:id/reset", h.ResetFlow)
	f.Delete("/:id", h.CloseFlow)

	w := router.Group("/walkthroughs")
	w.Post("/", h.CreateWalkthrough)
	w.Get("/:id", h.GetWalkthrough)
	w.Post("/:id/play", h.PlayWalkthrough)
	w.Post("/:id/pause", h.PauseWalkthrough)
	w.Post("/:id/toggle", h.ToggleWalkthrough)
	w.Post("/:id/select", h.SelectWalkthroughStep)
	w.Delete("/:id", h.StopWalkthrough)

	router.Get("/health", h.HealthCheck)
}
