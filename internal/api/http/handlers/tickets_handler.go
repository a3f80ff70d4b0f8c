package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

// TicketsHandler manages ticket endpoints for users and admins.
type TicketsHandler struct {
	tickets        *service.TicketService
	chat           *service.ChatService
	maxUploadBytes int64
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, chatService *service.ChatService, maxUploadBytes int64) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, chat: chatService, maxUploadBytes: maxUploadBytes}
}

// CreateTicket POST /api/tickets. Accepts JSON or multipart with a
// "screenshot" file.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	screenshot, closeFile, err := formUpload(c, h.maxUploadBytes, "screenshot", "file")
	if err != nil {
		return err
	}
	defer closeFile()

	ticket, err := h.tickets.CreateTicket(c.UserContext(), user, service.TicketCreateInput{
		Issue:      req.Issue,
		Screenshot: screenshot,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// MyTickets GET /api/tickets/my-tickets.
func (h *TicketsHandler) MyTickets(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListMyTickets(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// AllTickets GET /api/tickets/admin/all-tickets.
func (h *TicketsHandler) AllTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListAllTickets(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// AssignedTickets GET /api/tickets/admin/assigned-tickets.
func (h *TicketsHandler) AssignedTickets(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListAssignedTickets(c.UserContext(), admin)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// Stats GET /api/tickets/admin/ticket-stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tickets.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketStatsResponse(stats)})
}

// Get GET /api/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Assign POST /api/tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.AssignTicket(c.UserContext(), admin, c.Params("id"), req.AdminID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateStatus PUT /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), admin, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Delete DELETE /api/tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.tickets.DeleteTicket(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "deleted": true}})
}

// History GET /api/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.History(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketHistory(entries)})
}

// Messages GET /api/tickets/:id/messages.
func (h *TicketsHandler) Messages(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	msgs, err := h.chat.ListTicketMessages(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponses(msgs)})
}

// Reply POST /api/tickets/:id/reply. Accepts JSON or multipart with a
// "file" attachment.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.TicketMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	upload, closeFile, err := formUpload(c, h.maxUploadBytes, "file")
	if err != nil {
		return err
	}
	defer closeFile()

	chatType := req.ChatType
	if chatType == "" {
		chatType = domain.ChatTypeTicket
	}
	msg, err := h.chat.Reply(c.UserContext(), user, c.Params("id"), service.SendMessageInput{
		ChatType: chatType,
		Content:  req.Content,
		ReplyTo:  req.ReplyTo,
		Upload:   upload,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// EditMessage PUT /api/tickets/:ticketId/messages/:messageId/edit.
func (h *TicketsHandler) EditMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.EditMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	msg, err := h.chat.EditMessage(c.UserContext(), user, c.Params("ticketId"), c.Params("messageId"), req.NewContent)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// DeleteMessage DELETE /api/tickets/:ticketId/messages/:messageId.
func (h *TicketsHandler) DeleteMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	msg, err := h.chat.DeleteMessage(c.UserContext(), user, c.Params("ticketId"), c.Params("messageId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}
