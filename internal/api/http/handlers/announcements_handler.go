package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/citizenhub/complaint-service/internal/api/dto"
	"github.com/citizenhub/complaint-service/internal/api/validation"
	"github.com/citizenhub/complaint-service/internal/service"
	apperrors "github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// AnnouncementsHandler serves public and administrator announcement endpoints.
type AnnouncementsHandler struct {
	service   *service.AnnouncementService
	validator *validation.Validator
}

// NewAnnouncementsHandler constructs handler.
func NewAnnouncementsHandler(announcementService *service.AnnouncementService, validator *validation.Validator) *AnnouncementsHandler {
	return &AnnouncementsHandler{service: announcementService, validator: validator}
}

// ListActive handles GET /announcements.
func (h *AnnouncementsHandler) ListActive(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewAnnouncementResponses(h.service.ListActive())})
}

// ListAll handles GET /admin/announcements.
func (h *AnnouncementsHandler) ListAll(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewAnnouncementResponses(h.service.ListAll())})
}

// Create handles POST /admin/announcements.
func (h *AnnouncementsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AnnouncementRequest
	if err := bindBody(c, h.validator, validation.SchemaAnnouncement, &req); err != nil {
		return err
	}
	announcement, err := h.service.Create(c.UserContext(), user, req.ToFields())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAnnouncementResponse(*announcement)})
}

// Update handles PUT /admin/announcements/:id.
func (h *AnnouncementsHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AnnouncementRequest
	if err := bindBody(c, h.validator, validation.SchemaAnnouncement, &req); err != nil {
		return err
	}
	announcement, err := h.service.Update(c.UserContext(), user, c.Params("id"), req.ToFields())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAnnouncementResponse(*announcement)})
}

// Toggle handles POST /admin/announcements/:id/toggle.
func (h *AnnouncementsHandler) Toggle(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	announcement, err := h.service.ToggleActive(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	if announcement == nil {
		return apperrors.NewNotFound("announcement", map[string]any{"id": id})
	}
	return c.JSON(fiber.Map{"data": dto.NewAnnouncementResponse(*announcement)})
}

// Delete handles DELETE /admin/announcements/:id.
func (h *AnnouncementsHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
