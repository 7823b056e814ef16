// Package directory talks to the external identity/membership directory.
// It serves two narrow purposes: a coarse role fallback for principals whose
// memberships have not been migrated locally, and best-effort person lookups
// for audit enrichment. Both are optional collaborators; every failure here
// degrades, it never blocks an authorization decision or a write.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"
)

// TenantRole is a coarse (tenant, role) pair reported by the directory.
type TenantRole struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Person carries the human-readable identity used for audit enrichment.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Client queries the directory over HTTP. Calls for the same principal are
// collapsed through singleflight so a burst of concurrent requests does not
// stampede the directory.
type Client struct {
	endpoint string
	http     *http.Client
	group    singleflight.Group
}

// NewClient constructs a Client. A short timeout is applied when the caller
// provides no http.Client: directory lookups sit on request paths and must
// fail fast.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 3 * time.Second}
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// TenantRoles returns the directory's coarse role assignments for the
// principal across tenants.
func (c *Client) TenantRoles(ctx context.Context, principalID string) ([]TenantRole, error) {
	v, err, _ := c.group.Do("roles:"+principalID, func() (any, error) {
		var roles []TenantRole
		err := c.getJSON(ctx, "/v1/principals/"+url.PathEscape(principalID)+"/tenants", &roles)
		return roles, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]TenantRole), nil
}

// Person returns the principal's name and email.
func (c *Client) Person(ctx context.Context, principalID string) (*Person, error) {
	v, err, _ := c.group.Do("person:"+principalID, func() (any, error) {
		var p Person
		if err := c.getJSON(ctx, "/v1/principals/"+url.PathEscape(principalID), &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Person), nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("directory: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory: %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("directory: decode %s: %w", path, err)
	}
	return nil
}
