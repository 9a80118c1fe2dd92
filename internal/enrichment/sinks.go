package enrichment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/storage"
)

// StatusPending marks a request not yet picked up by ingestion.
const StatusPending = "pending"

// StoreSink writes requests to the enrichment_requests table through the
// storage pool.
type StoreSink struct {
	pool *storage.Pool
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(pool *storage.Pool) *StoreSink {
	return &StoreSink{pool: pool}
}

// Deliver inserts one pending row.
func (s *StoreSink) Deliver(ctx context.Context, r Request) error {
	row := models.EnrichmentRequest{
		RequestID:      r.RequestID,
		Vendor:         r.Vendor,
		EquipmentClass: r.EquipmentClass,
		Gap:            r.Gap,
		Status:         StatusPending,
		CreatedAt:      r.QueuedAt,
	}
	err := s.pool.Do(ctx, func(db *gorm.DB) error {
		return db.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("enrichment: store request %s: %w", r.RequestID, err)
	}
	return nil
}

// Pending lists pending requests, oldest first.
func (s *StoreSink) Pending(ctx context.Context, limit int) ([]models.EnrichmentRequest, error) {
	var rows []models.EnrichmentRequest
	err := s.pool.Do(ctx, func(db *gorm.DB) error {
		q := db.Where("status = ?", StatusPending).Order("id")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("enrichment: list pending: %w", err)
	}
	return rows, nil
}

// GitHubOptions configures NewGitHubSink.
type GitHubOptions struct {
	Owner   string
	Repo    string
	Token   string
	Labels  []string
	BaseURL string // API base for GitHub Enterprise or tests
}

// GitHubSink mirrors requests as issues in a knowledge repository.
type GitHubSink struct {
	client *github.Client
	owner  string
	repo   string
	labels []string
}

// NewGitHubSink creates a GitHubSink authenticated with a static token.
func NewGitHubSink(opts GitHubOptions) (*GitHubSink, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("enrichment: github owner and repo are required")
	}
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("enrichment: github token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(context.Background(), ts))
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("enrichment: github base url: %w", err)
		}
		client.BaseURL = u
	}
	return &GitHubSink{client: client, owner: opts.Owner, repo: opts.Repo, labels: opts.Labels}, nil
}

// Deliver opens one issue per request.
func (s *GitHubSink) Deliver(ctx context.Context, r Request) error {
	_, err := s.CreateIssue(ctx, r)
	return err
}

// CreateIssue opens an issue for r and returns its URL.
func (s *GitHubSink) CreateIssue(ctx context.Context, r Request) (string, error) {
	title := r.Title()
	body := issueBody(r)
	req := &github.IssueRequest{Title: &title, Body: &body}
	if len(s.labels) > 0 {
		labels := append([]string(nil), s.labels...)
		req.Labels = &labels
	}
	issue, _, err := s.client.Issues.Create(ctx, s.owner, s.repo, req)
	if err != nil {
		return "", fmt.Errorf("enrichment: create issue for %s: %w", r.RequestID, err)
	}
	return issue.GetHTMLURL(), nil
}

func issueBody(r Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Request:** %s\n", r.RequestID)
	fmt.Fprintf(&b, "**Vendor:** %s\n", r.Vendor)
	if r.EquipmentClass != "" {
		fmt.Fprintf(&b, "**Equipment class:** %s\n", r.EquipmentClass)
	}
	fmt.Fprintf(&b, "**Queued:** %s\n\n", r.QueuedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	b.WriteString(r.Gap)
	b.WriteString("\n")
	return b.String()
}
