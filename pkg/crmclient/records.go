package crmclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/white/crm-backend/internal/inbox"
	"github.com/white/crm-backend/internal/models"
)

// ContactPage is one page of a contact listing.
type ContactPage struct {
	Contacts   []*models.Contact `json:"contacts"`
	Pagination models.Pagination `json:"pagination"`
}

func (c *Client) ListContacts(ctx context.Context, page, limit int, search string) (*ContactPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if search != "" {
		q.Set("search", search)
	}
	path := "/contacts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp ContactPage
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	if err := c.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id), nil, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *Client) CreateContact(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	var created models.Contact
	if err := c.do(ctx, http.MethodPost, "/contacts", contact, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateContact(ctx context.Context, id string, patch map[string]interface{}) (*models.Contact, error) {
	var updated models.Contact
	if err := c.do(ctx, http.MethodPut, "/contacts/"+url.PathEscape(id), patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteContact(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/contacts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListPipelines(ctx context.Context) ([]*models.Pipeline, error) {
	var resp struct {
		Pipelines []*models.Pipeline `json:"pipelines"`
	}
	if err := c.do(ctx, http.MethodGet, "/pipelines", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Pipelines, nil
}

func (c *Client) CreatePipeline(ctx context.Context, p *models.Pipeline) (*models.Pipeline, error) {
	var created models.Pipeline
	if err := c.do(ctx, http.MethodPost, "/pipelines", p, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListDeals filters by pipeline, stage and status; empty values match all.
func (c *Client) ListDeals(ctx context.Context, f models.DealFilter) ([]*models.Deal, error) {
	q := url.Values{}
	if f.PipelineID != "" {
		q.Set("pipeline_id", f.PipelineID)
	}
	if f.StageID != "" {
		q.Set("stage_id", f.StageID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	path := "/deals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Deals []*models.Deal `json:"deals"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deals, nil
}

func (c *Client) CreateDeal(ctx context.Context, d *models.Deal) (*models.Deal, error) {
	var created models.Deal
	if err := c.do(ctx, http.MethodPost, "/deals", d, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateDeal(ctx context.Context, id string, patch map[string]interface{}) (*models.Deal, error) {
	var updated models.Deal
	if err := c.do(ctx, http.MethodPut, "/deals/"+url.PathEscape(id), patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteDeal(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/deals/"+url.PathEscape(id), nil, nil)
}

// SendEmail composes a new message. More than one recipient makes it a bulk
// send, delivered one message per recipient.
type SendEmail struct {
	To        models.AddressList `json:"to"`
	CC        models.AddressList `json:"cc,omitempty"`
	Subject   string             `json:"subject"`
	Message   string             `json:"message"`
	ContactID string             `json:"contact_id,omitempty"`
}

func (c *Client) ListEmails(ctx context.Context, limit int) ([]*models.EmailRecord, error) {
	path := "/email"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Emails []*models.EmailRecord `json:"emails"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Emails, nil
}

// Conversations returns the mailbox grouped per counterpart, newest first.
func (c *Client) Conversations(ctx context.Context) ([]inbox.Conversation, error) {
	var resp struct {
		Conversations []inbox.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/email/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (c *Client) SendEmail(ctx context.Context, req SendEmail) (*models.EmailRecord, error) {
	var record models.EmailRecord
	if err := c.do(ctx, http.MethodPost, "/email/send", req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Reply answers the sender of a message; ReplyAll also copies the other
// recipients.
func (c *Client) Reply(ctx context.Context, id, message string) (*models.EmailRecord, error) {
	return c.reply(ctx, id, message, "/reply")
}

func (c *Client) ReplyAll(ctx context.Context, id, message string) (*models.EmailRecord, error) {
	return c.reply(ctx, id, message, "/reply-all")
}

func (c *Client) reply(ctx context.Context, id, message, suffix string) (*models.EmailRecord, error) {
	var record models.EmailRecord
	body := map[string]string{"message": message}
	if err := c.do(ctx, http.MethodPost, "/email/"+url.PathEscape(id)+suffix, body, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) MarkEmailRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/email/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) DeleteEmail(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/email/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListSocialAccounts(ctx context.Context) ([]*models.SocialAccount, error) {
	var resp struct {
		Accounts []*models.SocialAccount `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/social/accounts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *Client) DisconnectSocialAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/social/accounts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListSocialPosts(ctx context.Context) ([]*models.SocialPost, error) {
	var resp struct {
		Posts []*models.SocialPost `json:"posts"`
	}
	if err := c.do(ctx, http.MethodGet, "/social/posts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Posts, nil
}

func (c *Client) CreateSocialPost(ctx context.Context, post *models.SocialPost) (*models.SocialPost, error) {
	var created models.SocialPost
	if err := c.do(ctx, http.MethodPost, "/social/posts", post, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListLeads(ctx context.Context) ([]*models.Lead, error) {
	var resp struct {
		Leads []*models.Lead `json:"leads"`
	}
	if err := c.do(ctx, http.MethodGet, "/social/leads", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Leads, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.UserProfile, error) {
	var resp struct {
		Users []models.UserProfile `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// DeleteUser needs an admin session.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

// Dashboard is the landing page summary.
type Dashboard struct {
	Contacts int64 `json:"contacts"`
	Deals    *struct {
		Open          int     `json:"open"`
		PipelineValue float64 `json:"pipeline_value"`
		WeightedValue float64 `json:"weighted_value"`
		Won           int     `json:"won"`
	} `json:"deals"`
	Activities  *models.ActivityStats `json:"activities"`
	UnreadEmail int                   `json:"unread_email"`
}

func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var resp struct {
		Dashboard Dashboard `json:"dashboard"`
	}
	if err := c.do(ctx, http.MethodGet, "/dashboard", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Dashboard, nil
}
