// Package fakeapi is an in-memory implementation of the ioco REST API.
// It issues real HS256 JWTs with a configurable lifetime and rotates
// refresh tokens on every use, so the client's session handling can be
// exercised end to end. All state is lost on restart.
package fakeapi

import (
	"cmp"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alexjbarnes/ioco/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errNotFound     = errors.New("not found")
	errForbidden    = errors.New("forbidden")
	errEmailTaken   = errors.New("email already registered")
	errInviteClosed = errors.New("invite code is expired or used up")
)

const (
	// cleanupInterval controls how often expired entries are reaped.
	cleanupInterval = 5 * time.Minute

	// resetTokenExpiry controls how long a password reset token is valid.
	resetTokenExpiry = 30 * time.Minute
)

type account struct {
	user models.User
	hash []byte
}

type refreshEntry struct {
	userID    int64
	expiresAt time.Time
}

type resetEntry struct {
	email     string
	expiresAt time.Time
}

type organization struct {
	org     models.Organization
	members []int64
}

// Store holds all in-memory API state.
type Store struct {
	mu         sync.RWMutex
	nextID     int64
	bcryptCost int

	// accounts is keyed by normalized email, byID by user id.
	accounts map[string]*account
	byID     map[int64]*account

	refresh map[string]refreshEntry
	resets  map[string]resetEntry
	orgs    map[int64]*organization
	events  map[int64]*models.CalendarEvent
	invites map[string]*models.Invite

	stopGC   chan struct{}
	stopOnce sync.Once
}

// NewStore creates an empty store and starts a background goroutine
// that periodically removes expired refresh tokens, reset tokens and
// invites. Call Stop() to clean up the goroutine.
func NewStore(bcryptCost int) *Store {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.MinCost
	}

	s := &Store{
		bcryptCost: bcryptCost,
		accounts:   make(map[string]*account),
		byID:       make(map[int64]*account),
		refresh:    make(map[string]refreshEntry),
		resets:     make(map[string]resetEntry),
		orgs:       make(map[int64]*organization),
		events:     make(map[int64]*models.CalendarEvent),
		invites:    make(map[string]*models.Invite),
		stopGC:     make(chan struct{}),
	}
	go s.gcLoop()

	return s
}

// Stop terminates the background cleanup goroutine. It is safe to call
// more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopGC) })
}

func (s *Store) gcLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.stopGC:
			return
		}
	}
}

// cleanup removes all entries that expired before now.
func (s *Store) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.refresh {
		if now.After(e.expiresAt) {
			delete(s.refresh, k)
		}
	}

	for k, e := range s.resets {
		if now.After(e.expiresAt) {
			delete(s.resets, k)
		}
	}

	for k, inv := range s.invites {
		if now.After(inv.ExpiresAt) {
			delete(s.invites, k)
		}
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- Accounts ---

// AddUser creates an account. The password is stored as a bcrypt hash.
func (s *Store) AddUser(firstName, lastName, email, password string, roleID int) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return models.User{}, err
	}

	email = normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[email]; ok {
		return models.User{}, errEmailTaken
	}

	u := models.User{
		ID:        s.id(),
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Role:      &models.Role{ID: roleID, Name: roleName(roleID)},
	}

	a := &account{user: u, hash: hash}
	s.accounts[email] = a
	s.byID[u.ID] = a

	return u, nil
}

func roleName(id int) string {
	if id == 1 {
		return "admin"
	}

	return "member"
}

// Authenticate checks an email and password pair.
func (s *Store) Authenticate(email, password string) (models.User, bool) {
	s.mu.RLock()
	a, ok := s.accounts[normalizeEmail(email)]
	s.mu.RUnlock()

	if !ok {
		return models.User{}, false
	}

	if bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		return models.User{}, false
	}

	return a.user, true
}

// User returns the account with the given id.
func (s *Store) User(id int64) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return models.User{}, false
	}

	return a.user, true
}

// --- Refresh tokens ---

// SaveRefresh records a refresh token for userID.
func (s *Store) SaveRefresh(token string, userID int64, expiresAt time.Time) {
	s.mu.Lock()
	s.refresh[token] = refreshEntry{userID: userID, expiresAt: expiresAt}
	s.mu.Unlock()
}

// ConsumeRefresh retrieves and deletes a refresh token. Each refresh
// token is single use. Returns false if not found or expired.
func (s *Store) ConsumeRefresh(token string, now time.Time) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.refresh[token]
	if !ok {
		return 0, false
	}

	delete(s.refresh, token)

	if now.After(e.expiresAt) {
		return 0, false
	}

	return e.userID, true
}

// RevokeRefresh drops every refresh token of userID.
func (s *Store) RevokeRefresh(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.refresh {
		if e.userID == userID {
			delete(s.refresh, k)
		}
	}
}

// RevokeAllRefresh drops every refresh token.
func (s *Store) RevokeAllRefresh() {
	s.mu.Lock()
	clear(s.refresh)
	s.mu.Unlock()
}

// --- Password reset ---

// CreateResetToken issues a reset token for email. Unknown emails get no
// token so the caller can still answer uniformly.
func (s *Store) CreateResetToken(email string, now time.Time) (string, bool) {
	email = normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[email]; !ok {
		return "", false
	}

	token := RandomHex(16)
	s.resets[token] = resetEntry{email: email, expiresAt: now.Add(resetTokenExpiry)}

	return token, true
}

// ResetPassword consumes a reset token and replaces the password hash.
func (s *Store) ResetPassword(token, newPassword string, now time.Time) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.resets[token]
	delete(s.resets, token)

	if !ok || now.After(e.expiresAt) {
		return errNotFound
	}

	a, ok := s.accounts[e.email]
	if !ok {
		return errNotFound
	}

	a.hash = hash

	return nil
}

// --- Organizations ---

// view builds the API representation of an organization. Caller holds mu.
func (s *Store) view(o *organization) models.Organization {
	out := o.org
	out.Members = make([]models.User, 0, len(o.members))

	for _, id := range o.members {
		if a, ok := s.byID[id]; ok {
			out.Members = append(out.Members, a.user)
		}
	}

	return out
}

// CreateOrg creates an organization with owner as its first member.
func (s *Store) CreateOrg(ownerID int64, name, description string, now time.Time) models.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := &organization{
		org: models.Organization{
			ID:          s.id(),
			Name:        name,
			Description: description,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		members: []int64{ownerID},
	}
	s.orgs[o.org.ID] = o

	return s.view(o)
}

// Orgs returns every organization, ordered by id.
func (s *Store) Orgs() []models.Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		out = append(out, s.view(o))
	}

	slices.SortFunc(out, func(a, b models.Organization) int { return cmp.Compare(a.ID, b.ID) })

	return out
}

// OrgsOf returns the organizations userID belongs to, ordered by id.
func (s *Store) OrgsOf(userID int64) []models.Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Organization{}
	for _, o := range s.orgs {
		if slices.Contains(o.members, userID) {
			out = append(out, s.view(o))
		}
	}

	slices.SortFunc(out, func(a, b models.Organization) int { return cmp.Compare(a.ID, b.ID) })

	return out
}

// Org returns one organization if userID is a member.
func (s *Store) Org(id, userID int64) (models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return models.Organization{}, errNotFound
	}

	if !slices.Contains(o.members, userID) {
		return models.Organization{}, errForbidden
	}

	return s.view(o), nil
}

// UpdateOrg applies the non-nil fields of req.
func (s *Store) UpdateOrg(id, userID int64, req models.UpdateOrganizationRequest, now time.Time) (models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orgs[id]
	if !ok {
		return models.Organization{}, errNotFound
	}

	if !slices.Contains(o.members, userID) {
		return models.Organization{}, errForbidden
	}

	if req.Name != nil {
		o.org.Name = *req.Name
	}

	if req.Description != nil {
		o.org.Description = *req.Description
	}

	o.org.UpdatedAt = now

	return s.view(o), nil
}

// DeleteOrg removes an organization with its events and invites.
func (s *Store) DeleteOrg(id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orgs[id]
	if !ok {
		return errNotFound
	}

	if !slices.Contains(o.members, userID) {
		return errForbidden
	}

	delete(s.orgs, id)

	for k, e := range s.events {
		if e.OrganizationID == id {
			delete(s.events, k)
		}
	}

	for k, inv := range s.invites {
		if inv.OrganizationID == id {
			delete(s.invites, k)
		}
	}

	return nil
}

// AddMember adds memberID to an organization userID belongs to.
func (s *Store) AddMember(id, userID, memberID int64) (models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orgs[id]
	if !ok {
		return models.Organization{}, errNotFound
	}

	if !slices.Contains(o.members, userID) {
		return models.Organization{}, errForbidden
	}

	if _, ok := s.byID[memberID]; !ok {
		return models.Organization{}, errNotFound
	}

	if !slices.Contains(o.members, memberID) {
		o.members = append(o.members, memberID)
	}

	return s.view(o), nil
}

// RemoveMember removes memberID from an organization userID belongs to.
func (s *Store) RemoveMember(id, userID, memberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orgs[id]
	if !ok {
		return errNotFound
	}

	if !slices.Contains(o.members, userID) {
		return errForbidden
	}

	i := slices.Index(o.members, memberID)
	if i < 0 {
		return errNotFound
	}

	o.members = slices.Delete(o.members, i, i+1)

	return nil
}

// --- Invites ---

// CreateInvite issues an invite code for an organization userID belongs to.
func (s *Store) CreateInvite(userID int64, req models.CreateInviteRequest) (models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orgs[req.OrganizationID]
	if !ok {
		return models.Invite{}, errNotFound
	}

	if !slices.Contains(o.members, userID) {
		return models.Invite{}, errForbidden
	}

	inv := &models.Invite{
		InviteCode:     inviteCode(),
		OrganizationID: req.OrganizationID,
		ExpiresAt:      req.ExpiresAt,
		MaxUsage:       req.MaxUsage,
	}
	s.invites[inv.InviteCode] = inv

	return *inv, nil
}

// inviteCode derives a short upper-case code from a random UUID.
func inviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// JoinInvite adds userID to the organization behind code.
func (s *Store) JoinInvite(code string, userID int64, now time.Time) (models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invites[code]
	if !ok {
		return models.Organization{}, errNotFound
	}

	if now.After(inv.ExpiresAt) || (inv.MaxUsage > 0 && inv.UsageCount >= inv.MaxUsage) {
		return models.Organization{}, errInviteClosed
	}

	o, ok := s.orgs[inv.OrganizationID]
	if !ok {
		return models.Organization{}, errNotFound
	}

	if !slices.Contains(o.members, userID) {
		o.members = append(o.members, userID)
		inv.UsageCount++
	}

	return s.view(o), nil
}

// --- Events ---

// CreateEvent schedules an event in an organization userID belongs to.
func (s *Store) CreateEvent(userID int64, req models.CreateCalendarEventRequest) (models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orgs[req.OrganizationID]
	if !ok {
		return models.CalendarEvent{}, errNotFound
	}

	if !slices.Contains(o.members, userID) {
		return models.CalendarEvent{}, errForbidden
	}

	creator := s.byID[userID].user

	e := &models.CalendarEvent{
		ID:             s.id(),
		Title:          req.Title,
		Description:    req.Description,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		EventType:      cmp.Or(req.EventType, models.EventTypeEvent),
		Availability:   cmp.Or(req.Availability, models.AvailabilityBusy),
		IsVisible:      req.IsVisible == nil || *req.IsVisible,
		OrganizationID: req.OrganizationID,
		CreatedBy:      &creator,
	}
	s.events[e.ID] = e

	return *e, nil
}

// event returns an event whose organization userID belongs to. Caller
// holds mu.
func (s *Store) event(id, userID int64) (*models.CalendarEvent, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, errNotFound
	}

	o, ok := s.orgs[e.OrganizationID]
	if !ok || !slices.Contains(o.members, userID) {
		return nil, errForbidden
	}

	return e, nil
}

// Event returns one event.
func (s *Store) Event(id, userID int64) (models.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.event(id, userID)
	if err != nil {
		return models.CalendarEvent{}, err
	}

	return *e, nil
}

// UpdateEvent applies the non-nil fields of req.
func (s *Store) UpdateEvent(id, userID int64, req models.UpdateCalendarEventRequest) (models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.event(id, userID)
	if err != nil {
		return models.CalendarEvent{}, err
	}

	if req.Title != nil {
		e.Title = *req.Title
	}

	if req.Description != nil {
		e.Description = *req.Description
	}

	if req.StartDate != nil {
		e.StartDate = *req.StartDate
	}

	if req.EndDate != nil {
		e.EndDate = *req.EndDate
	}

	if req.EventType != nil {
		e.EventType = *req.EventType
	}

	if req.Availability != nil {
		e.Availability = *req.Availability
	}

	if req.IsVisible != nil {
		e.IsVisible = *req.IsVisible
	}

	return *e, nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.event(id, userID); err != nil {
		return err
	}

	delete(s.events, id)

	return nil
}

// eventFilter selects events. Zero values match everything.
type eventFilter struct {
	orgID       int64
	createdBy   int64
	from, to    time.Time
	visibleOnly bool
	busyOnly    bool
}

func (f eventFilter) match(e *models.CalendarEvent) bool {
	switch {
	case f.orgID != 0 && e.OrganizationID != f.orgID:
		return false
	case f.createdBy != 0 && (e.CreatedBy == nil || e.CreatedBy.ID != f.createdBy):
		return false
	case !f.from.IsZero() && !e.EndDate.After(f.from):
		return false
	case !f.to.IsZero() && !e.StartDate.Before(f.to):
		return false
	case f.visibleOnly && !e.IsVisible:
		return false
	case f.busyOnly && e.Availability == models.AvailabilityFree:
		return false
	}

	return true
}

// Events returns the events matching f, ordered by start time. If f
// names an organization, userID must belong to it.
func (s *Store) Events(userID int64, f eventFilter) ([]models.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.orgID != 0 {
		o, ok := s.orgs[f.orgID]
		if !ok {
			return nil, errNotFound
		}

		if !slices.Contains(o.members, userID) {
			return nil, errForbidden
		}
	}

	out := []models.CalendarEvent{}
	for _, e := range s.events {
		if f.match(e) {
			out = append(out, *e)
		}
	}

	slices.SortFunc(out, func(a, b models.CalendarEvent) int {
		return cmp.Or(a.StartDate.Compare(b.StartDate), cmp.Compare(a.ID, b.ID))
	})

	return out, nil
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}
