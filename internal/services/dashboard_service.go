package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/white/crm-backend/internal/models"
)

// Dashboard is the landing page summary.
type Dashboard struct {
	Contacts    int64                 `json:"contacts"`
	Deals       *DealSummary          `json:"deals"`
	Activities  *models.ActivityStats `json:"activities"`
	UnreadEmail int                   `json:"unread_email"`
}

type DashboardService struct {
	contacts   ContactRepository
	deals      *DealService
	activities *ActivityService
	emails     EmailRepository
}

func NewDashboardService(contacts ContactRepository, deals *DealService, activities *ActivityService, emails EmailRepository) *DashboardService {
	return &DashboardService{contacts: contacts, deals: deals, activities: activities, emails: emails}
}

// Get gathers the dashboard figures concurrently.
func (s *DashboardService) Get(ctx context.Context, tenantID string) (*Dashboard, error) {
	d := &Dashboard{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.contacts.Count(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to count contacts: %w", err)
		}
		d.Contacts = n
		return nil
	})
	g.Go(func() error {
		summary, err := s.deals.Summary(ctx, tenantID)
		d.Deals = summary
		return err
	})
	g.Go(func() error {
		stats, err := s.activities.Stats(ctx, tenantID)
		d.Activities = stats
		return err
	})
	g.Go(func() error {
		emails, err := s.emails.List(ctx, tenantID, 0)
		if err != nil {
			return fmt.Errorf("failed to list emails: %w", err)
		}
		for _, e := range emails {
			if e.IsUnread() {
				d.UnreadEmail++
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
