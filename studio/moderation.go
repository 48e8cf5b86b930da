package studio

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/api"
)

// ReportReasons are the reasons a user may give when reporting a meme.
var ReportReasons = []string{"spam", "offensive", "copyright", "other"}

// Moderation wraps the review workflow of the backend.
type Moderation struct {
	client *api.Client
}

// NewModeration returns the moderation workflow over client.
func NewModeration(client *api.Client) *Moderation {
	return &Moderation{client: client}
}

func (m *Moderation) ready() error {
	if m.client == nil {
		return ErrNoBackend
	}
	return nil
}

// Report files a user report. reason must be one of ReportReasons and
// "other" needs details.
func (m *Moderation) Report(ctx context.Context, memeID, reason, details string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if !slices.Contains(ReportReasons, reason) {
		return fmt.Errorf("studio: unknown report reason %q: %w", reason, ggmeme.ErrValidation)
	}
	if reason == "other" && strings.TrimSpace(details) == "" {
		return fmt.Errorf("studio: report reason other needs details: %w", ggmeme.ErrValidation)
	}
	return m.client.ReportMeme(ctx, memeID, reason, details)
}

// Queue lists memes with the given review status.
func (m *Moderation) Queue(ctx context.Context, status string, limit int) ([]api.Meme, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.client.ModerationMemes(ctx, status, limit)
}

// Approve publishes a meme.
func (m *Moderation) Approve(ctx context.Context, memeID string) error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.client.ModerateMeme(ctx, memeID, api.StatusApproved, "")
}

// Reject hides a meme. A reason is required.
func (m *Moderation) Reject(ctx context.Context, memeID, reason string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("studio: rejection needs a reason: %w", ggmeme.ErrValidation)
	}
	return m.client.ModerateMeme(ctx, memeID, api.StatusRejected, reason)
}

// Reports lists pending reports.
func (m *Moderation) Reports(ctx context.Context) ([]api.Report, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.client.Reports(ctx, api.StatusPending)
}

// Resolve closes a report after acting on it. When reject is set the
// reported meme is rejected with the report's reason first.
func (m *Moderation) Resolve(ctx context.Context, r api.Report, reject bool, note string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if reject {
		if err := m.client.ModerateMeme(ctx, r.MemeID, api.StatusRejected, r.Reason); err != nil {
			return err
		}
	}
	return m.client.ReviewReport(ctx, r.ID, api.StatusResolved, note)
}

// Dismiss closes a report without action.
func (m *Moderation) Dismiss(ctx context.Context, reportID, note string) error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.client.ReviewReport(ctx, reportID, api.StatusRejected, note)
}

// Block adds term to the blacklist.
func (m *Moderation) Block(ctx context.Context, term, reason string) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}
	return m.client.AddBlacklist(ctx, term, reason)
}

// Unblock removes a blacklist entry.
func (m *Moderation) Unblock(ctx context.Context, id string) error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.client.RemoveBlacklist(ctx, id)
}

// Blacklist lists blocked terms.
func (m *Moderation) Blacklist(ctx context.Context) ([]api.BlacklistEntry, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.client.Blacklist(ctx)
}
