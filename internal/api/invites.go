package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/ioco/internal/errors"
	"github.com/alexjbarnes/ioco/internal/models"
	"golang.org/x/text/unicode/norm"
)

const (
	// inviteTTL is how long a new invite code stays valid.
	inviteTTL = 7 * 24 * time.Hour

	// inviteMaxUsage is how many accounts can join with one code.
	inviteMaxUsage = 10
)

// NormalizeInviteCode canonicalizes a code typed or pasted by a user:
// surrounding space is dropped, compatibility characters such as
// full-width letters are folded and the result is upper-cased.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(norm.NFKC.String(strings.TrimSpace(code)))
}

// CreateInvite issues an invite code for an organization.
func (c *Client) CreateInvite(ctx context.Context, orgID int64) (*models.Invite, error) {
	req := models.CreateInviteRequest{
		OrganizationID: orgID,
		ExpiresAt:      time.Now().Add(inviteTTL).UTC(),
		MaxUsage:       inviteMaxUsage,
	}

	var invite models.Invite
	if err := c.do(ctx, http.MethodPost, "/invites", nil, req, &invite); err != nil {
		return nil, fmt.Errorf("creating invite for organization %d: %w", orgID, err)
	}

	return &invite, nil
}

// JoinInvite joins the organization behind an invite code.
func (c *Client) JoinInvite(ctx context.Context, code string) (*models.Organization, error) {
	code = NormalizeInviteCode(code)
	if code == "" {
		return nil, apperrors.ErrInvalidInviteCode
	}

	var org models.Organization
	if err := c.do(ctx, http.MethodPost, "/invites/join", nil, models.JoinInviteRequest{InviteCode: code}, &org); err != nil {
		return nil, fmt.Errorf("joining with invite code: %w", err)
	}

	return &org, nil
}
