package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"
	"rag-chat-be/pkg/rag"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	RenameSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	Send(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("/session", c.CreateSession)
	h.Get("/sessions", c.ListSessions)
	h.Patch("/session/:id", c.RenameSession)
	h.Delete("/session/:id", c.DeleteSession)
	h.Get("/session/:id/history", c.GetHistory)
	h.Post("/send", c.Send)
	h.Post("/stream", c.Stream)
	h.Get("/health", c.Health)
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateSession(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) ListSessions(ctx *fiber.Ctx) error {
	res, err := c.service.ListSessions(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *chatController) RenameSession(ctx *fiber.Ctx) error {
	var req dto.RenameSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.RenameSession(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success rename session", res))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	if err := c.service.DeleteSession(ctx.UserContext(), ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete session", nil))
}

func (c *chatController) GetHistory(ctx *fiber.Ctx) error {
	res, err := c.service.GetHistory(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) Send(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.UserContext(), &req)
	if err != nil {
		if res != nil && rag.IsKind(err, rag.KindPersistence) {
			return serverutils.WithData(err, res)
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

// Stream answers with server-sent events: "chunk" frames while the reply is
// produced, then "final" and possibly "error".
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The writer runs after the handler returns, so the turn gets its own
	// context which is cancelled once the client stops reading.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.UserContext()))
	turn := c.service.StreamMessage(streamCtx, req.SessionId, req.Message)

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for frame := range service.StreamFrames(turn) {
			if err := writeEvent(w, frame); err != nil {
				return
			}
		}
	})
	return nil
}

func (c *chatController) Health(ctx *fiber.Ctx) error {
	res, err := c.service.Health(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("OK", res))
}

func writeEvent(w *bufio.Writer, frame dto.StreamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
