package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLeadStore is a process-local LeadStore used by tests and single-node
// setups. Channel locking is a per-(lead, channel) mutex, mirroring the SQL
// store's row lock semantics.
type MemoryLeadStore struct {
	mu    sync.Mutex
	leads map[string]Lead
	locks map[string]*sync.Mutex
}

func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{
		leads: map[string]Lead{},
		locks: map[string]*sync.Mutex{},
	}
}

func (s *MemoryLeadStore) Create(_ context.Context, input CreateLeadInput) (Lead, error) {
	if s == nil {
		return Lead{}, fmt.Errorf("core: lead store is not configured")
	}
	if strings.TrimSpace(input.SiteID) == "" {
		return Lead{}, fmt.Errorf("core: site id is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return Lead{}, fmt.Errorf("core: email is required")
	}

	now := time.Now().UTC()
	lead := Lead{
		ID:               uuid.NewString(),
		SiteID:           strings.TrimSpace(input.SiteID),
		FormType:         strings.TrimSpace(input.FormType),
		Name:             input.Name,
		Email:            input.Email,
		Phone:            input.Phone,
		Message:          input.Message,
		FormData:         copyStringMap(input.FormData),
		UTMSource:        input.UTMSource,
		UTMMedium:        input.UTMMedium,
		UTMCampaign:      input.UTMCampaign,
		UTMTerm:          input.UTMTerm,
		UTMContent:       input.UTMContent,
		LandingPageURL:   input.LandingPageURL,
		PageURL:          input.PageURL,
		ReferrerURL:      input.ReferrerURL,
		LeadSource:       input.LeadSource,
		LeadSourceDetail: input.LeadSourceDetail,
		Status:           LeadStatusNew,
		Deliveries:       map[Channel]ChannelDelivery{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, channel := range Channels() {
		lead.Deliveries[channel] = ChannelDelivery{
			LeadID:    lead.ID,
			Channel:   channel,
			Status:    DeliveryStatusPending,
			UpdatedAt: now,
		}
	}

	s.mu.Lock()
	s.leads[lead.ID] = CloneLead(lead)
	s.mu.Unlock()

	return lead, nil
}

func (s *MemoryLeadStore) Get(_ context.Context, id string) (Lead, error) {
	if s == nil {
		return Lead{}, fmt.Errorf("core: lead store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[strings.TrimSpace(id)]
	if !ok {
		return Lead{}, fmt.Errorf("core: lead %q not found", id)
	}
	return CloneLead(lead), nil
}

func (s *MemoryLeadStore) UpdateWorkflowStatus(_ context.Context, id string, status LeadStatus) error {
	if s == nil {
		return fmt.Errorf("core: lead store is not configured")
	}
	if !status.Valid() {
		return fmt.Errorf("core: invalid lead status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("core: lead %q not found", id)
	}
	lead.Status = status
	lead.UpdatedAt = time.Now().UTC()
	s.leads[lead.ID] = lead
	return nil
}

func (s *MemoryLeadStore) GetChannelDelivery(ctx context.Context, leadID string, channel Channel) (ChannelDelivery, error) {
	lead, err := s.Get(ctx, leadID)
	if err != nil {
		return ChannelDelivery{}, err
	}
	delivery, ok := lead.Deliveries[channel]
	if !ok {
		return ChannelDelivery{}, fmt.Errorf("core: delivery for channel %q not found", channel)
	}
	return delivery, nil
}

func (s *MemoryLeadStore) WithChannelLock(
	ctx context.Context,
	leadID string,
	channel Channel,
	fn func(ctx context.Context, lead Lead, delivery ChannelDelivery) (ChannelDelivery, bool, error),
) error {
	if s == nil {
		return fmt.Errorf("core: lead store is not configured")
	}
	if fn == nil {
		return fmt.Errorf("core: channel lock callback is required")
	}
	if !channel.Valid() {
		return fmt.Errorf("core: invalid channel %q", channel)
	}

	lock := s.channelLock(leadID, channel)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	lead, ok := s.leads[strings.TrimSpace(leadID)]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("core: lead %q not found", leadID)
	}
	delivery, ok := lead.Deliveries[channel]
	if !ok {
		return fmt.Errorf("core: delivery for channel %q not found", channel)
	}

	updated, persist, err := fn(ctx, CloneLead(lead), CloneChannelDelivery(delivery))
	if err != nil {
		return err
	}
	if !persist {
		return nil
	}

	updated.LeadID = lead.ID
	updated.Channel = channel
	updated.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	stored := s.leads[lead.ID]
	stored.Deliveries[channel] = CloneChannelDelivery(updated)
	stored.UpdatedAt = updated.UpdatedAt
	s.leads[lead.ID] = stored
	s.mu.Unlock()

	return nil
}

func (s *MemoryLeadStore) channelLock(leadID string, channel Channel) *sync.Mutex {
	key := strings.TrimSpace(leadID) + ":" + string(channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// StaticSettingsProvider serves fixed per-site settings, mostly for tests.
type StaticSettingsProvider struct {
	Sites map[string]SiteSettings
}

func NewStaticSettingsProvider(sites map[string]SiteSettings) *StaticSettingsProvider {
	copied := make(map[string]SiteSettings, len(sites))
	for id, settings := range sites {
		copied[strings.TrimSpace(id)] = settings
	}
	return &StaticSettingsProvider{Sites: copied}
}

func (p *StaticSettingsProvider) Settings(_ context.Context, siteID string) (SiteSettings, error) {
	if p == nil {
		return SiteSettings{}, fmt.Errorf("core: settings provider is not configured")
	}
	settings, ok := p.Sites[strings.TrimSpace(siteID)]
	if !ok {
		return SiteSettings{}, fmt.Errorf("core: settings for site %q not found", siteID)
	}
	return settings, nil
}

var (
	_ LeadStore        = (*MemoryLeadStore)(nil)
	_ SettingsProvider = (*StaticSettingsProvider)(nil)
)
