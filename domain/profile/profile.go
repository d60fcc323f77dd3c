// Package profile holds the tenant aggregate: a business, its selected
// categories, its facts, and the mailbox provider it connected.
package profile

import (
	"fmt"
	"time"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
)

// MailboxProvider identifies which email provider the tenant connected
type MailboxProvider string

const (
	ProviderGmail   MailboxProvider = "gmail"
	ProviderOutlook MailboxProvider = "outlook"
)

// Valid reports whether the provider is one we can deploy against
func (p MailboxProvider) Valid() bool {
	return p == ProviderGmail || p == ProviderOutlook
}

// BusinessProfile is the tenant aggregate. Profiles are created when
// onboarding completes and are never hard-deleted; deactivation is a soft
// flag so deployment history stays readable.
type BusinessProfile struct {
	ID                 string               `json:"profileId"`
	SelectedCategories []catalog.CategoryID `json:"selectedCategories"`
	Facts              map[string]string    `json:"facts"`
	MailboxProvider    MailboxProvider      `json:"mailboxProvider"`
	Active             bool                 `json:"active"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// NewBusinessProfile creates an active profile, enforcing the selection
// invariants (non-empty, no duplicates).
func NewBusinessProfile(id string, selected []catalog.CategoryID, facts map[string]string, provider MailboxProvider) (*BusinessProfile, error) {
	if id == "" {
		return nil, fmt.Errorf("profile ID cannot be empty")
	}
	if err := validateSelection(selected); err != nil {
		return nil, err
	}
	if !provider.Valid() {
		return nil, fmt.Errorf("unknown mailbox provider %q", provider)
	}
	if facts == nil {
		facts = make(map[string]string)
	}
	now := time.Now()
	return &BusinessProfile{
		ID:                 id,
		SelectedCategories: selected,
		Facts:              facts,
		MailboxProvider:    provider,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// UpdateSelection replaces the selected categories. Callers must trigger a
// recomposition afterwards; the profile itself only guards the invariants.
func (p *BusinessProfile) UpdateSelection(selected []catalog.CategoryID) error {
	if err := validateSelection(selected); err != nil {
		return err
	}
	p.SelectedCategories = selected
	p.UpdatedAt = time.Now()
	return nil
}

// Deactivate soft-deletes the profile
func (p *BusinessProfile) Deactivate() {
	p.Active = false
	p.UpdatedAt = time.Now()
}

func validateSelection(selected []catalog.CategoryID) error {
	if len(selected) == 0 {
		return fmt.Errorf("at least one category must be selected")
	}
	seen := make(map[catalog.CategoryID]bool, len(selected))
	for _, id := range selected {
		if seen[id] {
			return fmt.Errorf("duplicate category selection %q", id)
		}
		seen[id] = true
	}
	return nil
}

// CredentialBinding is a reference to an externally held credential. The
// credential collaborator owns the secret material; this core only carries
// the reference it needs to wire into a deployed graph.
type CredentialBinding struct {
	ProfileID            string `json:"profileId"`
	ProviderID           string `json:"providerId"`
	ExternalCredentialID string `json:"externalCredentialId"`
}
