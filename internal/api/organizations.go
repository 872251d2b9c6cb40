package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/alexjbarnes/ioco/internal/errors"
	"github.com/alexjbarnes/ioco/internal/models"
	"golang.org/x/text/unicode/norm"
)

// normalizeName trims and NFC-normalizes a user supplied display name so
// visually identical names compare equal on the server.
func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ListOrganizations returns every organization visible to the caller.
func (c *Client) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := c.do(ctx, http.MethodGet, "/organizations", nil, nil, &orgs); err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}

	return orgs, nil
}

// MyOrganizations returns the organizations the caller is a member of.
func (c *Client) MyOrganizations(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := c.do(ctx, http.MethodGet, "/organizations/my", nil, nil, &orgs); err != nil {
		return nil, fmt.Errorf("listing my organizations: %w", err)
	}

	return orgs, nil
}

// GetOrganization returns one organization with its members.
func (c *Client) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	var org models.Organization
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/organizations/detail/%d", id), nil, nil, &org); err != nil {
		return nil, fmt.Errorf("getting organization %d: %w", id, err)
	}

	return &org, nil
}

// CreateOrganization creates an organization owned by the caller.
func (c *Client) CreateOrganization(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error) {
	req.Name = normalizeName(req.Name)
	req.Description = strings.TrimSpace(req.Description)

	if req.Name == "" {
		return nil, fmt.Errorf("creating organization: %w: name is required", apperrors.ErrAPIRequest)
	}

	var org models.Organization
	if err := c.do(ctx, http.MethodPost, "/organizations", nil, req, &org); err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}

	return &org, nil
}

// UpdateOrganization changes the non-nil fields of req.
func (c *Client) UpdateOrganization(ctx context.Context, id int64, req models.UpdateOrganizationRequest) (*models.Organization, error) {
	if req.Name != nil {
		name := normalizeName(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("updating organization %d: %w: name cannot be empty", id, apperrors.ErrAPIRequest)
		}

		req.Name = &name
	}

	var org models.Organization
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/organizations/%d", id), nil, req, &org); err != nil {
		return nil, fmt.Errorf("updating organization %d: %w", id, err)
	}

	return &org, nil
}

// DeleteOrganization removes an organization.
func (c *Client) DeleteOrganization(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/organizations/%d", id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting organization %d: %w", id, err)
	}

	return nil
}

// AddMember adds a user to an organization.
func (c *Client) AddMember(ctx context.Context, orgID, userID int64) (*models.Organization, error) {
	var org models.Organization
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/organizations/%d/members", orgID), nil, models.AddMemberRequest{UserID: userID}, &org); err != nil {
		return nil, fmt.Errorf("adding member %d to organization %d: %w", userID, orgID, err)
	}

	return &org, nil
}

// RemoveMember removes a user from an organization.
func (c *Client) RemoveMember(ctx context.Context, orgID, userID int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/organizations/%d/members/%d", orgID, userID), nil, nil, nil); err != nil {
		return fmt.Errorf("removing member %d from organization %d: %w", userID, orgID, err)
	}

	return nil
}
