package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/citizenhub/complaint-service/internal/api/dto"
	"github.com/citizenhub/complaint-service/internal/api/validation"
	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/service"
	apperrors "github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// AdminComplaintsHandler serves the administrator dashboard.
type AdminComplaintsHandler struct {
	service   *service.ComplaintService
	validator *validation.Validator
	now       func() time.Time
}

// NewAdminComplaintsHandler constructs handler.
func NewAdminComplaintsHandler(complaintService *service.ComplaintService, validator *validation.Validator) *AdminComplaintsHandler {
	return &AdminComplaintsHandler{service: complaintService, validator: validator, now: time.Now}
}

// Query handles GET /admin/complaints.
func (h *AdminComplaintsHandler) Query(c *fiber.Ctx) error {
	query, err := parseComplaintQuery(c)
	if err != nil {
		return err
	}
	page := service.QueryComplaints(h.service.ListAll(), query)
	return c.JSON(fiber.Map{"data": complaintPageResponse(page)})
}

// Stats handles GET /admin/complaints/stats.
func (h *AdminComplaintsHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": complaintStatsResponse(h.service.Stats())})
}

// Report handles GET /admin/complaints/report.pdf. Filters apply; paging does not.
func (h *AdminComplaintsHandler) Report(c *fiber.Ctx) error {
	query, err := parseComplaintQuery(c)
	if err != nil {
		return err
	}
	all := h.service.ListAll()
	query.Page = 1
	query.PageSize = max(len(all), 1)
	page := service.QueryComplaints(all, query)

	now := h.now()
	pdf, err := service.BuildComplaintReport(page, service.ComputeStats(page.Items), now)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="complaints-%s.pdf"`, now.Format("20060102")))
	return c.Send(pdf)
}

// UpdateStatus handles PATCH /admin/complaints/:id/status.
func (h *AdminComplaintsHandler) UpdateStatus(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateComplaintStatusRequest
	if err := bindBody(c, h.validator, validation.SchemaComplaintStatus, &req); err != nil {
		return err
	}

	id := c.Params("id")
	complaint, err := h.service.UpdateStatus(c.UserContext(), user, id, domain.ComplaintStatus(req.Status), req.AdminNotes)
	if err != nil {
		return err
	}
	if complaint == nil {
		return apperrors.NewNotFound("complaint", map[string]any{"id": id})
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(*complaint)})
}

// Delete handles DELETE /admin/complaints/:id.
func (h *AdminComplaintsHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Refresh handles POST /admin/complaints/refresh.
func (h *AdminComplaintsHandler) Refresh(c *fiber.Ctx) error {
	if err := h.service.Refresh(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"total": len(h.service.ListAll())}})
}

func parseComplaintQuery(c *fiber.Ctx) (service.ComplaintQuery, error) {
	query := service.ComplaintQuery{
		Search:     c.Query("search"),
		Categories: splitList(c.Query("category")),
		SortBy:     c.Query("sort_by"),
		Order:      service.SortOrder(strings.ToLower(c.Query("order"))),
		Page:       parseInt(c.Query("page"), 1),
		PageSize:   parseInt(c.Query("page_size"), service.DefaultPageSize),
	}
	if query.PageSize > service.MaxPageSize {
		return query, apperrors.NewValidationError(fmt.Sprintf("page_size must be between 1 and %d", service.MaxPageSize),
			map[string]any{"page_size": c.Query("page_size")})
	}
	for _, s := range splitList(c.Query("status")) {
		status := domain.ComplaintStatus(s)
		if !status.Valid() {
			return query, apperrors.NewValidationError("invalid status filter", map[string]any{"status": s})
		}
		query.Statuses = append(query.Statuses, status)
	}
	for _, p := range splitList(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.ComplaintPriority(p))
	}
	if query.SortBy != "" && !service.ValidSortKey(query.SortBy) {
		return query, apperrors.NewValidationError("invalid sort key", map[string]any{"sort_by": query.SortBy})
	}
	switch query.Order {
	case "", service.SortAsc, service.SortDesc:
	default:
		return query, apperrors.NewValidationError("order must be asc or desc", nil)
	}

	var err error
	if query.From, err = parseDate(c.Query("from")); err != nil {
		return query, err
	}
	if query.To, err = parseDate(c.Query("to")); err != nil {
		return query, err
	}
	return query, nil
}

func complaintPageResponse(page service.ComplaintPage) dto.ComplaintPageResponse {
	return dto.ComplaintPageResponse{
		Items:      dto.NewComplaintResponses(page.Items),
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
}

func complaintStatsResponse(stats service.ComplaintStats) dto.ComplaintStatsResponse {
	resp := dto.ComplaintStatsResponse{
		Total:      stats.Total,
		ByStatus:   make(map[string]int, len(stats.ByStatus)),
		ByPriority: make(map[string]int, len(stats.ByPriority)),
		ByCategory: make(map[string]int, len(stats.ByCategory)),
	}
	for k, v := range stats.ByStatus {
		resp.ByStatus[string(k)] = v
	}
	for k, v := range stats.ByPriority {
		resp.ByPriority[string(k)] = v
	}
	for k, v := range stats.ByCategory {
		resp.ByCategory[k] = v
	}
	return resp
}
