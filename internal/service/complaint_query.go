package service

import (
	"sort"
	"strings"
	"time"

	"github.com/citizenhub/complaint-service/internal/domain"
)

// DefaultPageSize is the admin table page size.
const DefaultPageSize = 10

// MaxPageSize bounds page sizes requested over HTTP.
const MaxPageSize = 100

// SortOrder selects ascending or descending sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable complaint columns.
var complaintSortKeys = map[string]func(*domain.Complaint) sortValue{
	"id":        func(c *domain.Complaint) sortValue { return textValue(c.ID) },
	"title":     func(c *domain.Complaint) sortValue { return textValue(c.Title) },
	"userName":  func(c *domain.Complaint) sortValue { return textValue(c.UserName) },
	"userEmail": func(c *domain.Complaint) sortValue { return textValue(c.UserEmail) },
	"category":  func(c *domain.Complaint) sortValue { return textValue(c.Category) },
	"status":    func(c *domain.Complaint) sortValue { return textValue(string(c.Status)) },
	"priority":  func(c *domain.Complaint) sortValue { return textValue(string(c.Priority)) },
	"createdAt": func(c *domain.Complaint) sortValue { return timeValue(c.CreatedAt) },
	"updatedAt": func(c *domain.Complaint) sortValue { return timeValue(c.UpdatedAt) },
}

// ValidSortKey reports whether key names a sortable column.
func ValidSortKey(key string) bool {
	_, ok := complaintSortKeys[key]
	return ok
}

// ComplaintQuery describes the admin table view over the collection.
type ComplaintQuery struct {
	Search     string
	Statuses   []domain.ComplaintStatus
	Priorities []domain.ComplaintPriority
	Categories []string
	// From and To bound createdAt by whole days; both must be set to apply.
	From     *time.Time
	To       *time.Time
	SortBy   string
	Order    SortOrder
	Page     int
	PageSize int
}

// ComplaintPage is one page of query results.
type ComplaintPage struct {
	Items      []domain.Complaint `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}

// ComplaintStats summarizes a collection for the dashboard.
type ComplaintStats struct {
	Total      int                              `json:"total"`
	ByStatus   map[domain.ComplaintStatus]int   `json:"byStatus"`
	ByPriority map[domain.ComplaintPriority]int `json:"byPriority"`
	ByCategory map[string]int                   `json:"byCategory"`
}

// QueryComplaints filters, sorts and paginates list without modifying it.
func QueryComplaints(list []domain.Complaint, q ComplaintQuery) ComplaintPage {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	statuses := setOf(q.Statuses)
	priorities := setOf(q.Priorities)
	categories := setOf(q.Categories)

	var start, end time.Time
	dated := q.From != nil && q.To != nil
	if dated {
		start = startOfDay(*q.From)
		end = startOfDay(*q.To).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	matched := make([]domain.Complaint, 0, len(list))
	for _, c := range list {
		if search != "" && !complaintMatches(&c, search) {
			continue
		}
		if len(statuses) > 0 && !statuses[c.Status] {
			continue
		}
		if len(priorities) > 0 && !priorities[c.Priority] {
			continue
		}
		if len(categories) > 0 && !categories[c.Category] {
			continue
		}
		if dated && (c.CreatedAt.Before(start) || c.CreatedAt.After(end)) {
			continue
		}
		matched = append(matched, c)
	}

	key := q.SortBy
	if !ValidSortKey(key) {
		key = "createdAt"
	}
	desc := q.Order != SortAsc
	value := complaintSortKeys[key]
	sort.SliceStable(matched, func(i, j int) bool {
		cmp := value(&matched[i]).compare(value(&matched[j]))
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	total := len(matched)
	totalPages := total / size
	if total%size != 0 {
		totalPages++
	}

	// compare before multiplying; (page-1)*size overflows for huge pages
	from, to := total, total
	if page-1 < totalPages {
		from = (page - 1) * size
		if size < total-from {
			to = from + size
		}
	}

	return ComplaintPage{
		Items:      matched[from:to],
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}
}

// ComputeStats counts complaints per status, priority and category.
func ComputeStats(list []domain.Complaint) ComplaintStats {
	stats := ComplaintStats{
		Total:      len(list),
		ByStatus:   make(map[domain.ComplaintStatus]int, len(domain.ComplaintStatuses)),
		ByPriority: make(map[domain.ComplaintPriority]int, 3),
		ByCategory: make(map[string]int),
	}
	for _, status := range domain.ComplaintStatuses {
		stats.ByStatus[status] = 0
	}
	for _, c := range list {
		stats.ByStatus[c.Status]++
		if c.Priority != "" {
			stats.ByPriority[c.Priority]++
		}
		if c.Category != "" {
			stats.ByCategory[c.Category]++
		}
	}
	return stats
}

func complaintMatches(c *domain.Complaint, needle string) bool {
	fields := []string{
		c.ID, c.UserID, c.UserName, c.UserEmail, c.Title, c.Description,
		c.Category, c.Location, c.ContactInfo, string(c.Priority), string(c.Status),
		c.AdminNotes, c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func setOf[T comparable](values []T) map[T]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[T]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// sortValue is a column value; missing values compare equal to anything.
type sortValue struct {
	text    string
	at      time.Time
	isTime  bool
	present bool
}

func textValue(s string) sortValue { return sortValue{text: s, present: s != ""} }

func timeValue(t time.Time) sortValue { return sortValue{at: t, isTime: true, present: !t.IsZero()} }

func (v sortValue) compare(o sortValue) int {
	if !v.present || !o.present {
		return 0
	}
	if v.isTime {
		return v.at.Compare(o.at)
	}
	if cmp := strings.Compare(strings.ToLower(v.text), strings.ToLower(o.text)); cmp != 0 {
		return cmp
	}
	return strings.Compare(v.text, o.text)
}
