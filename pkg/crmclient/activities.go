package crmclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/white/crm-backend/internal/models"
)

const nextActivityHeader = "X-Next-Activity-ID"

// ActivityListOptions filters an activity listing. Zero values are omitted.
type ActivityListOptions struct {
	Type        models.ActivityType
	IsCompleted *bool
	AssignedTo  string
	ContactID   string
	Limit       int
}

func (o ActivityListOptions) query() string {
	q := url.Values{}
	if o.Type != "" {
		q.Set("type", string(o.Type))
	}
	if o.IsCompleted != nil {
		q.Set("is_completed", strconv.FormatBool(*o.IsCompleted))
	}
	if o.AssignedTo != "" {
		q.Set("assigned_to", o.AssignedTo)
	}
	if o.ContactID != "" {
		q.Set("contact_id", o.ContactID)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) ListActivities(ctx context.Context, opts ActivityListOptions) ([]*models.Activity, error) {
	var resp struct {
		Activities []*models.Activity `json:"activities"`
	}
	if err := c.do(ctx, http.MethodGet, "/activities"+opts.query(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Activities, nil
}

func (c *Client) GetActivity(ctx context.Context, id string) (*models.Activity, error) {
	var a models.Activity
	if err := c.do(ctx, http.MethodGet, "/activities/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) ActivityStats(ctx context.Context) (*models.ActivityStats, error) {
	var resp struct {
		Stats models.ActivityStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/activities/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Stats, nil
}

// CreateActivity posts a body, typically built by an activity form.
func (c *Client) CreateActivity(ctx context.Context, body interface{}) (*models.Activity, error) {
	var a models.Activity
	if err := c.do(ctx, http.MethodPost, "/activities", body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateActivity sends the full editable state of an activity and returns the
// stored result. Fields missing from body are cleared on the server.
func (c *Client) UpdateActivity(ctx context.Context, id string, body interface{}) (*models.Activity, error) {
	var a models.Activity
	if err := c.do(ctx, http.MethodPut, "/activities/"+url.PathEscape(id), body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CompleteActivity marks an activity done. next is the id of the follow-up
// instance a recurring task spawned, empty otherwise.
func (c *Client) CompleteActivity(ctx context.Context, id string) (done *models.Activity, next string, err error) {
	var a models.Activity
	hdr, err := c.doHeader(ctx, http.MethodPut, "/activities/"+url.PathEscape(id)+"/complete", nil, &a)
	if err != nil {
		return nil, "", err
	}
	return &a, hdr.Get(nextActivityHeader), nil
}

// ToggleChecklistItem issues exactly one request. The returned activity is
// the server's view; callers must not flip the item locally first.
func (c *Client) ToggleChecklistItem(ctx context.Context, id, itemID string, completed bool) (*models.Activity, error) {
	var a models.Activity
	body := map[string]interface{}{"itemId": itemID, "completed": completed}
	if err := c.do(ctx, http.MethodPut, "/activities/"+url.PathEscape(id)+"/checklist", body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) EscalateActivity(ctx context.Context, id, reason string) (*models.Activity, error) {
	var a models.Activity
	body := map[string]string{"reason": reason}
	if err := c.do(ctx, http.MethodPut, "/activities/"+url.PathEscape(id)+"/escalate", body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) SnoozeActivity(ctx context.Context, id string, until time.Time) (*models.Activity, error) {
	var a models.Activity
	body := map[string]string{"until": until.UTC().Format(time.RFC3339)}
	if err := c.do(ctx, http.MethodPut, "/activities/"+url.PathEscape(id)+"/snooze", body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) DeleteActivity(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/activities/"+url.PathEscape(id), nil, nil)
}
