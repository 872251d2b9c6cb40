// Package models defines the API payloads shared across internal packages.
package models

import "time"

// Envelope is the response wrapper used by every enveloped endpoint.
type Envelope[T any] struct {
	Error  *APIError `json:"error,omitempty"`
	Data   T         `json:"data"`
	Paging *Paging   `json:"paging,omitempty"`
}

// APIError is the error object carried inside an Envelope.
type APIError struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Paging describes a paginated list response.
type Paging struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// Tokens is an access/refresh token pair. It is always replaced as a unit.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether neither token is set.
func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Role is the role attached to a user account.
type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// User is an account profile.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      *Role  `json:"role,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}

	return u.FirstName + " " + u.LastName
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the data returned from POST /auth/login and /auth/register.
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// Tokens returns the token pair from the login response.
func (r LoginResponse) Tokens() Tokens {
	return Tokens{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	RoleID    int    `json:"roleId"`
}

// RefreshRequest is the payload for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ForgotPasswordRequest is the payload for POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the payload for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Message is the data of endpoints that only acknowledge.
type Message struct {
	Message string `json:"message"`
}

// Organization is a group of members sharing a calendar.
type Organization struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Members     []User    `json:"members,omitempty"`
}

// CreateOrganizationRequest is the payload for POST /organizations.
type CreateOrganizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateOrganizationRequest is the payload for PUT /organizations/{id}.
// Nil fields are left unchanged.
type UpdateOrganizationRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// AddMemberRequest is the payload for POST /organizations/{id}/members.
type AddMemberRequest struct {
	UserID int64 `json:"userId"`
}

// CreateInviteRequest is the payload for POST /invites.
type CreateInviteRequest struct {
	OrganizationID int64     `json:"organizationId"`
	ExpiresAt      time.Time `json:"expiresAt"`
	MaxUsage       int       `json:"maxUsage"`
}

// Invite is an organization invite code.
type Invite struct {
	InviteCode     string    `json:"inviteCode"`
	OrganizationID int64     `json:"organizationId"`
	ExpiresAt      time.Time `json:"expiresAt"`
	MaxUsage       int       `json:"maxUsage"`
	UsageCount     int       `json:"usageCount"`
}

// JoinInviteRequest is the payload for POST /invites/join.
type JoinInviteRequest struct {
	InviteCode string `json:"inviteCode"`
}

// EventType classifies a calendar event.
type EventType string

const (
	EventTypePersonal EventType = "personal"
	EventTypeMeeting  EventType = "meeting"
	EventTypeEvent    EventType = "event"
)

// Availability is how an event blocks its owner's time.
type Availability string

const (
	AvailabilityBusy      Availability = "busy"
	AvailabilityFree      Availability = "free"
	AvailabilityTentative Availability = "tentative"
)

// CalendarEvent is a scheduled event inside an organization.
type CalendarEvent struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	StartDate      time.Time    `json:"startDate"`
	EndDate        time.Time    `json:"endDate"`
	EventType      EventType    `json:"eventType"`
	Availability   Availability `json:"availability"`
	IsVisible      bool         `json:"isVisible"`
	OrganizationID int64        `json:"organizationId"`
	CreatedBy      *User        `json:"createdBy,omitempty"`
}

// CreateCalendarEventRequest is the payload for POST /calendar-events.
type CreateCalendarEventRequest struct {
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	StartDate      time.Time    `json:"startDate"`
	EndDate        time.Time    `json:"endDate"`
	OrganizationID int64        `json:"organizationId"`
	EventType      EventType    `json:"eventType,omitempty"`
	Availability   Availability `json:"availability,omitempty"`
	IsVisible      *bool        `json:"isVisible,omitempty"`
}

// UpdateCalendarEventRequest is the payload for PUT /calendar-events/{id}.
// Nil fields are left unchanged.
type UpdateCalendarEventRequest struct {
	Title        *string       `json:"title,omitempty"`
	Description  *string       `json:"description,omitempty"`
	StartDate    *time.Time    `json:"startDate,omitempty"`
	EndDate      *time.Time    `json:"endDate,omitempty"`
	EventType    *EventType    `json:"eventType,omitempty"`
	Availability *Availability `json:"availability,omitempty"`
	IsVisible    *bool         `json:"isVisible,omitempty"`
}

// Period is a closed time range used in availability queries.
type Period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// UserAvailability is returned from GET /calendar-events/my/availability.
type UserAvailability struct {
	UserID    int64           `json:"userId"`
	Period    Period          `json:"period"`
	BusySlots []CalendarEvent `json:"busySlots"`
}

// TimeSlot is a free window suggested by the server.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FreeSlots is returned from GET /calendar-events/organization/{id}/free-slots.
type FreeSlots struct {
	OrganizationID int64      `json:"organizationId"`
	Duration       string     `json:"duration"`
	Period         Period     `json:"period"`
	FreeSlots      []TimeSlot `json:"freeSlots"`
}
