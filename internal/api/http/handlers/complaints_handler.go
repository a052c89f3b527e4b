package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/citizenhub/complaint-service/internal/api/dto"
	"github.com/citizenhub/complaint-service/internal/api/validation"
	"github.com/citizenhub/complaint-service/internal/service"
)

// ComplaintsHandler manages citizen complaint endpoints.
type ComplaintsHandler struct {
	service   *service.ComplaintService
	validator *validation.Validator
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(complaintService *service.ComplaintService, validator *validation.Validator) *ComplaintsHandler {
	return &ComplaintsHandler{service: complaintService, validator: validator}
}

// Create handles POST /complaints.
func (h *ComplaintsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateComplaintRequest
	if err := bindBody(c, h.validator, validation.SchemaComplaintCreate, &req); err != nil {
		return err
	}

	complaint, err := h.service.Create(c.UserContext(), user, req.ToFields())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewComplaintResponse(*complaint)})
}

// List handles GET /complaints. The administrator sees every complaint.
func (h *ComplaintsHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	list := h.service.ListForUser(user.ID)
	if user.IsAdmin {
		list = h.service.ListAll()
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponses(list)})
}

// Get handles GET /complaints/:id.
func (h *ComplaintsHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	complaint, err := h.service.GetForUser(user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(*complaint)})
}
