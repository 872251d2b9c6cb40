package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/alexjbarnes/ioco/internal/errors"
	"github.com/alexjbarnes/ioco/internal/models"
	"github.com/tidwall/gjson"
)

// CreateEvent schedules a calendar event.
func (c *Client) CreateEvent(ctx context.Context, req models.CreateCalendarEventRequest) (*models.CalendarEvent, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("creating event: %w: end must be after start", apperrors.ErrAPIRequest)
	}

	req.Title = normalizeName(req.Title)

	var event models.CalendarEvent
	if err := c.do(ctx, http.MethodPost, "/calendar-events", nil, req, &event); err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	return &event, nil
}

// GetEvent returns one calendar event.
func (c *Client) GetEvent(ctx context.Context, id int64) (*models.CalendarEvent, error) {
	var event models.CalendarEvent
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/calendar-events/%d", id), nil, nil, &event); err != nil {
		return nil, fmt.Errorf("getting event %d: %w", id, err)
	}

	return &event, nil
}

// UpdateEvent changes the non-nil fields of req.
func (c *Client) UpdateEvent(ctx context.Context, id int64, req models.UpdateCalendarEventRequest) (*models.CalendarEvent, error) {
	if req.Title != nil {
		title := normalizeName(*req.Title)
		req.Title = &title
	}

	var event models.CalendarEvent
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/calendar-events/%d", id), nil, req, &event); err != nil {
		return nil, fmt.Errorf("updating event %d: %w", id, err)
	}

	return &event, nil
}

// DeleteEvent removes a calendar event.
func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/calendar-events/%d", id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting event %d: %w", id, err)
	}

	return nil
}

// OrganizationEvents returns every event of an organization.
func (c *Client) OrganizationEvents(ctx context.Context, orgID int64) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/calendar-events/organization/%d", orgID), nil, nil, &events); err != nil {
		return nil, fmt.Errorf("listing events of organization %d: %w", orgID, err)
	}

	return events, nil
}

// EventsInRange returns the events of an organization between from and to.
func (c *Client) EventsInRange(ctx context.Context, orgID int64, from, to time.Time) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent

	endpoint := fmt.Sprintf("/calendar-events/organization/%d/date-range", orgID)
	if err := c.do(ctx, http.MethodGet, endpoint, dateRange(from, to), nil, &events); err != nil {
		return nil, fmt.Errorf("listing events of organization %d: %w", orgID, err)
	}

	return events, nil
}

// MyEvents returns the caller's events across organizations.
func (c *Client) MyEvents(ctx context.Context) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	if err := c.do(ctx, http.MethodGet, "/calendar-events/my", nil, nil, &events); err != nil {
		return nil, fmt.Errorf("listing my events: %w", err)
	}

	return events, nil
}

// MyAvailability returns the caller's busy slots between from and to.
func (c *Client) MyAvailability(ctx context.Context, from, to time.Time) (*models.UserAvailability, error) {
	var avail models.UserAvailability
	if err := c.do(ctx, http.MethodGet, "/calendar-events/my/availability", dateRange(from, to), nil, &avail); err != nil {
		return nil, fmt.Errorf("checking availability: %w", err)
	}

	return &avail, nil
}

// CalendarView returns the events of an organization as shown on its
// shared calendar.
func (c *Client) CalendarView(ctx context.Context, orgID int64, from, to time.Time) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent

	endpoint := fmt.Sprintf("/calendar-events/organization/%d/calendar-view", orgID)
	if err := c.do(ctx, http.MethodGet, endpoint, dateRange(from, to), nil, &events); err != nil {
		return nil, fmt.Errorf("loading calendar of organization %d: %w", orgID, err)
	}

	return events, nil
}

// AllMembersEvents returns each member's events keyed by member. This
// endpoint answers with a bare object instead of an envelope; an
// enveloped answer is accepted too.
func (c *Client) AllMembersEvents(ctx context.Context, orgID int64, from, to time.Time) (map[string][]models.CalendarEvent, error) {
	endpoint := fmt.Sprintf("/calendar-events/organization/%d/all-members", orgID)

	body, err := c.send(ctx, http.MethodGet, endpoint, dateRange(from, to), nil)
	if err != nil {
		return nil, fmt.Errorf("listing member events of organization %d: %w", orgID, err)
	}

	raw := []byte(gjson.GetBytes(body, "data").Raw)
	if !gjson.GetBytes(body, "data").IsObject() {
		raw = body
	}

	out := map[string][]models.CalendarEvent{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}

	return out, nil
}

// FreeSlots asks the server for windows of at least duration in which no
// member of the organization is busy.
func (c *Client) FreeSlots(ctx context.Context, orgID int64, duration time.Duration, from, to time.Time) (*models.FreeSlots, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("finding free slots: %w: duration must be positive", apperrors.ErrAPIRequest)
	}

	q := dateRange(from, to)
	q.Set("duration", strconv.Itoa(int(duration.Minutes())))

	var slots models.FreeSlots

	endpoint := fmt.Sprintf("/calendar-events/organization/%d/free-slots", orgID)
	if err := c.do(ctx, http.MethodGet, endpoint, q, nil, &slots); err != nil {
		return nil, fmt.Errorf("finding free slots in organization %d: %w", orgID, err)
	}

	return &slots, nil
}
