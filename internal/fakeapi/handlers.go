package fakeapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexjbarnes/ioco/internal/models"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 64 * 1024

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.Envelope[any]{Data: data})
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.Envelope[any]{
		Error: &models.APIError{Code: status, Type: errType, Message: message},
	})
}

// writeStoreError maps a store error onto an error envelope.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not a member of this organization")
	case errors.Is(err, errEmailTaken), errors.Is(err, errInviteClosed):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return false
	}

	return true
}

// pathID parses a numeric path value, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+name)
		return 0, false
	}

	return id, true
}

// queryRange parses the startDate and endDate query parameters. Both are
// optional; an unparseable value is a 400.
func queryRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	parse := func(key string) (time.Time, bool) {
		v := r.URL.Query().Get(key)
		if v == "" {
			return time.Time{}, true
		}

		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+key)
			return time.Time{}, false
		}

		return t, true
	}

	if from, ok = parse("startDate"); !ok {
		return
	}

	to, ok = parse("endDate")

	return
}

// --- Auth ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	u, ok := s.Store.Authenticate(req.Email, req.Password)
	if !ok {
		s.logger.Warn("login failed", slog.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")

		return
	}

	tokens, err := s.IssueTokens(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "issuing tokens failed")
		return
	}

	s.logger.Info("login successful", slog.Int64("user_id", u.ID))

	writeData(w, http.StatusOK, models.LoginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken, User: u})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email and password are required")
		return
	}

	u, err := s.Store.AddUser(req.FirstName, req.LastName, req.Email, req.Password, req.RoleID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	tokens, err := s.IssueTokens(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "issuing tokens failed")
		return
	}

	writeData(w, http.StatusCreated, models.LoginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken, User: u})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	var req models.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	if s.rejectAll.Load() {
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token revoked")
		return
	}

	userID, ok := s.Store.ConsumeRefresh(req.RefreshToken, s.now())
	if !ok {
		s.logger.Debug("refresh rejected: unknown or reused token")
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "invalid refresh token")

		return
	}

	tokens, err := s.IssueTokens(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "issuing tokens failed")
		return
	}

	writeData(w, http.StatusOK, tokens)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Store.RevokeRefresh(RequestUserID(r.Context()))
	writeData(w, http.StatusOK, models.Message{Message: "logged out"})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if token, ok := s.Store.CreateResetToken(req.Email, s.now()); ok {
		// There is no mail server; the token only shows up in the log.
		s.logger.Info("password reset requested", slog.String("email", req.Email), slog.String("token", token))
	}

	writeData(w, http.StatusOK, models.Message{Message: "if the account exists, a reset link has been sent"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "newPassword is required")
		return
	}

	if err := s.Store.ResetPassword(req.Token, req.NewPassword, s.now()); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RESET_TOKEN", "invalid or expired reset token")
		return
	}

	writeData(w, http.StatusOK, models.Message{Message: "password updated"})
}

// --- Organizations ---

func (s *Server) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	orgs := s.Store.Orgs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.Envelope[[]models.Organization]{
		Data:   orgs,
		Paging: &models.Paging{Page: 1, PageSize: len(orgs), TotalCount: len(orgs), TotalPages: 1},
	})
}

func (s *Server) handleMyOrgs(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.Store.OrgsOf(RequestUserID(r.Context())))
}

func (s *Server) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	org, err := s.Store.Org(id, RequestUserID(r.Context()))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, org)
}

func (s *Server) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrganizationRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}

	org := s.Store.CreateOrg(RequestUserID(r.Context()), req.Name, req.Description, s.now())
	writeData(w, http.StatusCreated, org)
}

func (s *Server) handleUpdateOrg(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.UpdateOrganizationRequest
	if !decode(w, r, &req) {
		return
	}

	org, err := s.Store.UpdateOrg(id, RequestUserID(r.Context()), req, s.now())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, org)
}

func (s *Server) handleDeleteOrg(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := s.Store.DeleteOrg(id, RequestUserID(r.Context())); err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, nil)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.AddMemberRequest
	if !decode(w, r, &req) {
		return
	}

	org, err := s.Store.AddMember(id, RequestUserID(r.Context()), req.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, org)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	memberID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	if err := s.Store.RemoveMember(id, RequestUserID(r.Context()), memberID); err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, nil)
}

// --- Invites ---

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInviteRequest
	if !decode(w, r, &req) {
		return
	}

	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = s.now().Add(7 * 24 * time.Hour)
	}

	inv, err := s.Store.CreateInvite(RequestUserID(r.Context()), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusCreated, inv)
}

func (s *Server) handleJoinInvite(w http.ResponseWriter, r *http.Request) {
	var req models.JoinInviteRequest
	if !decode(w, r, &req) {
		return
	}

	org, err := s.Store.JoinInvite(req.InviteCode, RequestUserID(r.Context()), s.now())
	if err != nil {
		if errors.Is(err, errNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "invite code not found")
			return
		}

		writeStoreError(w, err)

		return
	}

	writeData(w, http.StatusOK, org)
}

// --- Events ---

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCalendarEventRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Title) == "" || !req.EndDate.After(req.StartDate) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "title is required and end must be after start")
		return
	}

	event, err := s.Store.CreateEvent(RequestUserID(r.Context()), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusCreated, event)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	event, err := s.Store.Event(id, RequestUserID(r.Context()))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, event)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.UpdateCalendarEventRequest
	if !decode(w, r, &req) {
		return
	}

	event, err := s.Store.UpdateEvent(id, RequestUserID(r.Context()), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, event)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := s.Store.DeleteEvent(id, RequestUserID(r.Context())); err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, nil)
}

func (s *Server) handleMyEvents(w http.ResponseWriter, r *http.Request) {
	userID := RequestUserID(r.Context())

	events, err := s.Store.Events(userID, eventFilter{createdBy: userID})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, events)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}

	userID := RequestUserID(r.Context())

	busy, err := s.Store.Events(userID, eventFilter{createdBy: userID, from: from, to: to, busyOnly: true})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, models.UserAvailability{
		UserID:    userID,
		Period:    models.Period{StartDate: from, EndDate: to},
		BusySlots: busy,
	})
}

// orgEvents serves the organization event listings that differ only in
// their filter.
func (s *Server) orgEvents(w http.ResponseWriter, r *http.Request, withRange, visibleOnly bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	f := eventFilter{orgID: id, visibleOnly: visibleOnly}

	if withRange {
		if f.from, f.to, ok = queryRange(w, r); !ok {
			return
		}
	}

	events, err := s.Store.Events(RequestUserID(r.Context()), f)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeData(w, http.StatusOK, events)
}

func (s *Server) handleOrgEvents(w http.ResponseWriter, r *http.Request) {
	s.orgEvents(w, r, false, false)
}

func (s *Server) handleDateRange(w http.ResponseWriter, r *http.Request) {
	s.orgEvents(w, r, true, false)
}

func (s *Server) handleCalendarView(w http.ResponseWriter, r *http.Request) {
	s.orgEvents(w, r, true, true)
}

// handleAllMembers answers with a bare object keyed by member email, not
// an envelope.
func (s *Server) handleAllMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}

	userID := RequestUserID(r.Context())

	org, err := s.Store.Org(id, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make(map[string][]models.CalendarEvent, len(org.Members))

	for _, m := range org.Members {
		events, err := s.Store.Events(userID, eventFilter{orgID: id, createdBy: m.ID, from: from, to: to})
		if err != nil {
			writeStoreError(w, err)
			return
		}

		out[m.Email] = events
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleFreeSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}

	minutes, err := strconv.Atoi(r.URL.Query().Get("duration"))
	if err != nil || minutes <= 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "duration must be a positive number of minutes")
		return
	}

	if from.IsZero() || !to.After(from) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "startDate and endDate are required")
		return
	}

	busy, err := s.Store.Events(RequestUserID(r.Context()), eventFilter{orgID: id, from: from, to: to, busyOnly: true})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	duration := time.Duration(minutes) * time.Minute

	writeData(w, http.StatusOK, models.FreeSlots{
		OrganizationID: id,
		Duration:       strconv.Itoa(minutes) + " minutes",
		Period:         models.Period{StartDate: from, EndDate: to},
		FreeSlots:      freeSlots(busy, from, to, duration),
	})
}

// freeSlots returns the gaps of at least d between from and to that no
// busy event overlaps. busy must be sorted by start time.
func freeSlots(busy []models.CalendarEvent, from, to time.Time, d time.Duration) []models.TimeSlot {
	slots := []models.TimeSlot{}
	cursor := from

	for _, e := range busy {
		if e.StartDate.Sub(cursor) >= d {
			slots = append(slots, models.TimeSlot{Start: cursor, End: e.StartDate})
		}

		if e.EndDate.After(cursor) {
			cursor = e.EndDate
		}
	}

	if to.Sub(cursor) >= d {
		slots = append(slots, models.TimeSlot{Start: cursor, End: to})
	}

	return slots
}
