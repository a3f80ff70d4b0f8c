package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

// ChatHandler serves general and ticket chat endpoints.
type ChatHandler struct {
	chat           *service.ChatService
	maxUploadBytes int64
}

// NewChatHandler constructs handler.
func NewChatHandler(chatService *service.ChatService, maxUploadBytes int64) *ChatHandler {
	return &ChatHandler{chat: chatService, maxUploadBytes: maxUploadBytes}
}

// Send POST /api/chat/send.
func (h *ChatHandler) Send(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	upload, closeFile, err := formUpload(c, h.maxUploadBytes, "file")
	if err != nil {
		return err
	}
	defer closeFile()

	in := service.SendMessageInput{
		ChatType: req.ChatType,
		TicketID: req.TicketID,
		Content:  req.Content,
		ReplyTo:  req.ReplyTo,
		Upload:   upload,
	}
	if req.Attachment != nil {
		in.Attachment = &domain.Attachment{Name: req.Attachment.Name, URL: req.Attachment.URL}
	}
	msg, err := h.chat.SendMessage(c.UserContext(), user, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// List GET /api/chat/:chatType.
func (h *ChatHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	msgs, err := h.chat.ListMessages(c.UserContext(), user, domain.ChatType(c.Params("chatType")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponses(msgs)})
}

// MarkRead POST /api/chat/mark-read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.MarkReadRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	marked, err := h.chat.MarkChatRead(c.UserContext(), user, req.ChatType, req.TicketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MarkReadResponse{Marked: marked}})
}

// TicketMessages GET /api/chat/ticket/:ticketId.
func (h *ChatHandler) TicketMessages(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	msgs, err := h.chat.ListTicketMessages(c.UserContext(), user, c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponses(msgs)})
}

// SendToTicket POST /api/chat/ticket/:ticketId/send.
func (h *ChatHandler) SendToTicket(c *fiber.Ctx) error {
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

	msg, err := h.chat.SendMessage(c.UserContext(), user, service.SendMessageInput{
		ChatType: domain.ChatTypeTicket,
		TicketID: c.Params("ticketId"),
		Content:  req.Content,
		ReplyTo:  req.ReplyTo,
		Upload:   upload,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// Delivered POST /api/chat/:id/delivered.
func (h *ChatHandler) Delivered(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	msg, err := h.chat.MarkMessageDelivered(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// Read POST /api/chat/:id/read.
func (h *ChatHandler) Read(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	msg, err := h.chat.MarkMessageRead(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}
