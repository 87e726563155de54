package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/blockward/blockward/core"
	"github.com/blockward/blockward/core/award"
)

type awardRepository struct {
	db *awardTables
}

var _ award.Repository = (*awardRepository)(nil) // interface compliance check

func NewAwardRepository(db *DB) award.Repository {
	return &awardRepository{db: db.award}
}

// Categories

func (repo *awardRepository) CreateCategory(ctx context.Context, cat award.Category) (award.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.categories {
		if strings.EqualFold(existing.Name, cat.Name) {
			return award.Category{}, award.ErrCategoryExists
		}
	}
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *awardRepository) GetCategory(ctx context.Context, id string) (award.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return *cat, nil
	}
	return award.Category{}, award.ErrCategoryNotFound
}

func (repo *awardRepository) QueryCategories(ctx context.Context) ([]award.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]award.Category, 0, len(repo.db.categories))
	for _, cat := range repo.db.categories {
		cats = append(cats, *cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *awardRepository) UpdateCategory(ctx context.Context, cat award.Category) (award.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[cat.ID]; !ok {
		return award.Category{}, award.ErrCategoryNotFound
	}
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *awardRepository) DeleteCategory(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return award.ErrCategoryNotFound
	}
	delete(repo.db.categories, id)
	return nil
}

// Credentials

func (repo *awardRepository) CreateCredential(ctx context.Context, cred award.Credential, entry *award.PointEntry) (award.Credential, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// primary key constraint
	if _, exists := repo.db.credentials[cred.ID]; exists {
		return award.Credential{}, award.ErrCredentialExists
	}

	repo.db.credentials[cred.ID] = &cred
	if entry != nil {
		e := *entry
		repo.db.entryPK++
		e.ID = repo.db.entryPK
		repo.db.entries = append(repo.db.entries, &e)
	}
	return cred, nil
}

func (repo *awardRepository) GetCredential(ctx context.Context, id string) (award.Credential, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cred, ok := repo.db.credentials[id]; ok {
		return *cred, nil
	}
	return award.Credential{}, award.ErrCredentialNotFound
}

func (repo *awardRepository) QueryCredentials(ctx context.Context, filter *award.QueryFilter, ordering []core.DBOrdering) ([]award.Credential, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	creds := make([]award.Credential, 0, len(repo.db.credentials))
	for _, cred := range repo.db.credentials {
		if filter != nil {
			if filter.HolderID != "" && cred.HolderID != filter.HolderID {
				continue
			}
			if filter.IssuerID != "" && cred.IssuerID != filter.IssuerID {
				continue
			}
			if filter.Status != "" && cred.Status != filter.Status {
				continue
			}
		}
		creds = append(creds, *cred)
	}

	// newest first; fall back on ID to keep equal timestamps deterministic
	sort.Slice(creds, func(i, j int) bool {
		if creds[i].IssuedAt.Equal(creds[j].IssuedAt) {
			return creds[i].ID < creds[j].ID
		}
		return creds[i].IssuedAt.After(creds[j].IssuedAt)
	})
	return creds, nil
}

func (repo *awardRepository) RevokeCredential(ctx context.Context, cred award.Credential) (award.Credential, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.credentials[cred.ID]
	if !ok {
		return award.Credential{}, award.ErrCredentialNotFound
	}
	if orig.IsRevoked() {
		return award.Credential{}, award.ErrAlreadyRevoked
	}

	orig.Status = award.StatusRevoked
	orig.RevokedAt = cred.RevokedAt
	orig.RevokedBy = cred.RevokedBy
	orig.RevokeReason = cred.RevokeReason
	return *orig, nil
}

// Points

func (repo *awardRepository) CreatePointEntry(ctx context.Context, entry award.PointEntry) (award.PointEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.entryPK++
	entry.ID = repo.db.entryPK
	repo.db.entries = append(repo.db.entries, &entry)
	return entry, nil
}

func (repo *awardRepository) QueryPointEntries(ctx context.Context, holderID string) ([]award.PointEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]award.PointEntry, 0)
	for _, entry := range repo.db.entries {
		if entry.HolderID == holderID {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries, nil
}

func (repo *awardRepository) GetPointTotals(ctx context.Context, holderID string) (award.Totals, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var totals award.Totals
	for _, entry := range repo.db.entries {
		if entry.HolderID != holderID {
			continue
		}
		if entry.Delta > 0 {
			totals.Achievement += entry.Delta
		} else {
			totals.Behaviour += -entry.Delta
		}
	}
	return totals, nil
}
