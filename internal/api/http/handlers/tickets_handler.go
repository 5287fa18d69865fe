package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/modkit/ticketing/internal/api/dto"
	"github.com/modkit/ticketing/internal/auth"
	"github.com/modkit/ticketing/internal/service"
	apperrors "github.com/modkit/ticketing/pkg/util"
)

// TicketsHandler exposes the lifecycle operations over HTTP.
type TicketsHandler struct {
	lifecycle *service.LifecycleService
}

// NewTicketsHandler returns a new handler instance.
func NewTicketsHandler(lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle}
}

// CreateTicket opens a ticket for the authenticated requester.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.CommunityID == "" {
		return apperrors.NewValidationError("community_id is required", nil)
	}

	result, err := h.lifecycle.CreateTicket(c.UserContext(), service.CreateTicketInput{
		RequesterID: principal.ActorID,
		CommunityID: req.CommunityID,
		ChannelID:   req.ChannelID,
		Subject:     req.Subject,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if result.Existing {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(dto.CreateTicketResponse{
		Ticket:   dto.FromTicket(result.Ticket),
		Existing: result.Existing,
		Summary:  result.Summary,
	})
}

// AssignTicket sets or replaces a ticket's assignee.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id is required", nil)
	}

	if err := h.lifecycle.Assign(c.UserContext(), c.Params("id"), req.AssigneeID, principal.ActorID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"assigned": true})
}

// CloseTicket performs the terminal transition.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	if err := h.lifecycle.Close(c.UserContext(), c.Params("id"), principal.ActorID, req.ResolutionReason); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"closed": true})
}

// PromptClose posts a close-confirmation prompt into the ticket's thread.
func (h *TicketsHandler) PromptClose(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	messageID, err := h.lifecycle.PromptCloseConfirmation(c.UserContext(), c.Params("id"), principal.ActorID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"prompt_message_id": messageID})
}

// GetTicket resolves one ticket by id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.lifecycle.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// History lists a requester's most recent tickets with the total count.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	communityID := c.Query("community_id")
	if communityID == "" {
		return apperrors.NewValidationError("community_id is required", nil)
	}
	limit := c.QueryInt("limit", 10)

	tickets, total, err := h.lifecycle.History(c.UserContext(), communityID, c.Params("id"), limit)
	if err != nil {
		return err
	}

	responses := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		responses = append(responses, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(dto.TicketHistoryResponse{Total: total, Tickets: responses})
}
