// Package web provides HTTP handlers for sessions, flows and walkthroughs.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/dukex/lexflow/pkg/appstate"
	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	sessions     *services.Session
	flows        *services.Flow
	walkthroughs *services.Walkthrough
	validator    *validator.Validate
	checkers     map[string]HealthChecker
}

func NewAPIHandlers(
	sessions *services.Session,
	flows *services.Flow,
	walkthroughs *services.Walkthrough,
	validator *validator.Validate,
	checkers map[string]HealthChecker,
) *APIHandlers {
	return &APIHandlers{
		sessions:     sessions,
		flows:        flows,
		walkthroughs: walkthroughs,
		validator:    validator,
		checkers:     checkers,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	checks := fiber.Map{}
	healthy := true

	for name, checker := range h.checkers {
		if err := checker.HealthCheck(c.Context()); err != nil {
			checks[name] = err.Error()
			healthy = false

			continue
		}

		checks[name] = "ok"
	}

	status := "unhealthy"
	message := "lexflow is unhealthy"
	httpStatus := http.StatusServiceUnavailable

	if healthy {
		status = "healthy"
		message = "lexflow is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"checkers":  checks,
		"timestamp": time.Now().UTC(),
	})
}

// bind decodes and validates a JSON body, writing the 400 response itself.
func (h *APIHandlers) bind(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return false, badRequest(c, err.Error())
	}

	return true, nil
}

func (h *APIHandlers) CreateSession(c fiber.Ctx) error {
	session, err := h.sessions.Create(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	session, err := h.sessions.Get(c.Context(), c.Params("sid"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) SelectPeriod(c fiber.Ctx) error {
	var req SelectPeriodRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	session, err := h.sessions.SelectPeriod(c.Context(), c.Params("sid"), appstate.PricingPeriod(req.Period))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) OpenModal(c fiber.Ctx) error {
	session, err := h.sessions.OpenModal(c.Context(), c.Params("sid"), c.Params("modal"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) CloseModal(c fiber.Ctx) error {
	session, err := h.sessions.CloseModal(c.Context(), c.Params("sid"), c.Params("modal"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) ToggleTestimonials(c fiber.Ctx) error {
	session, err := h.sessions.ToggleTestimonials(c.Context(), c.Params("sid"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) Checkout(c fiber.Ctx) error {
	var req CheckoutRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	url, err := h.sessions.Checkout(c.Context(), c.Params("sid"), req.Plan)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(CheckoutResponse{URL: url})
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	view, err := h.flows.Open(c.Context(), models.FlowKind(req.Kind), req.SessionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	view, err := h.flows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) UpdateField(c fiber.Ctx) error {
	var req UpdateFieldRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	view, err := h.flows.UpdateField(c.Context(), c.Params("id"), c.Params("field"), req.Value)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

// NextStep validates the current step and advances. When the step runs a
// terminal action the response is sent once the action settles.
func (h *APIHandlers) NextStep(c fiber.Ctx) error {
	view, err := h.flows.Next(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) PreviousStep(c fiber.Ctx) error {
	view, err := h.flows.Back(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) JumpToStep(c fiber.Ctx) error {
	var req JumpRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	view, err := h.flows.Jump(c.Context(), c.Params("id"), *req.Index)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) ResetFlow(c fiber.Ctx) error {
	view, err := h.flows.Reset(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) CloseFlow(c fiber.Ctx) error {
	if err := h.flows.Close(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateWalkthrough(c fiber.Ctx) error {
	var req CreateWalkthroughRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	state, err := h.walkthroughs.Start(c.Context(), models.WalkthroughKind(req.Kind), req.SessionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) GetWalkthrough(c fiber.Ctx) error {
	state, err := h.walkthroughs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) PlayWalkthrough(c fiber.Ctx) error {
	state, err := h.walkthroughs.Play(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) PauseWalkthrough(c fiber.Ctx) error {
	state, err := h.walkthroughs.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) ToggleWalkthrough(c fiber.Ctx) error {
	state, err := h.walkthroughs.Toggle(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) SelectWalkthroughStep(c fiber.Ctx) error {
	var req JumpRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	state, err := h.walkthroughs.Select(c.Context(), c.Params("id"), *req.Index)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) StopWalkthrough(c fiber.Ctx) error {
	if err := h.walkthroughs.Stop(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
