package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/citizenhub/complaint-service/internal/api/dto"
	"github.com/citizenhub/complaint-service/internal/api/validation"
	"github.com/citizenhub/complaint-service/internal/service"
	apperrors "github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// ChatHandler relays transcripts to the FAQ assistant.
type ChatHandler struct {
	assistant *service.AssistantService
	validator *validation.Validator
}

// NewChatHandler constructs handler.
func NewChatHandler(assistant *service.AssistantService, validator *validation.Validator) *ChatHandler {
	return &ChatHandler{assistant: assistant, validator: validator}
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	body := c.Body()
	if h.validator != nil && h.validator.Validate(validation.SchemaChat, body) != nil {
		return apperrors.NewValidationError("Invalid request format", nil)
	}
	var req dto.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Messages == nil {
		return apperrors.NewValidationError("Invalid request format", nil)
	}

	transcript := make([]service.ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		transcript = append(transcript, service.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return c.JSON(dto.ChatResponse{Reply: h.assistant.Reply(c.UserContext(), transcript)})
}
