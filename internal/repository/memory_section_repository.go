package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

// MemorySectionRepository keeps the catalog in process, one document per
// section with its subscriber tokens embedded. It is meant for local runs and
// tests and declares a single-threaded write path.
type MemorySectionRepository struct {
	mu       sync.RWMutex
	sections map[models.SectionKey]models.CourseSection
}

// NewMemorySectionRepository constructs an empty in-memory catalog.
func NewMemorySectionRepository() *MemorySectionRepository {
	return &MemorySectionRepository{sections: make(map[models.SectionKey]models.CourseSection)}
}

// WriteSerialized reports true: callers must not issue concurrent updates.
func (r *MemorySectionRepository) WriteSerialized() bool {
	return true
}

// FindByKey returns a copy of the stored section.
func (r *MemorySectionRepository) FindByKey(_ context.Context, key models.SectionKey) (*models.CourseSection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	section, ok := r.sections[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s not found", key))
	}
	section.SubscriberTokens = append([]string(nil), section.SubscriberTokens...)
	return &section, nil
}

// InsertIfAbsent stores section unless its key exists.
func (r *MemorySectionRepository) InsertIfAbsent(_ context.Context, section *models.CourseSection) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sections[section.SectionKey]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now
	stored := *section
	stored.SubscriberTokens = append([]string(nil), section.SubscriberTokens...)
	r.sections[section.SectionKey] = stored
	return true, nil
}

// UpdateFields applies patch to one document.
func (r *MemorySectionRepository) UpdateFields(_ context.Context, key models.SectionKey, patch models.SectionPatch) error {
	if patch.Empty() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	section, ok := r.sections[key]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s not found", key))
	}
	patch.Apply(&section)
	section.UpdatedAt = time.Now().UTC()
	r.sections[key] = section
	return nil
}

// ResolveSubscribers returns the embedded token list.
func (r *MemorySectionRepository) ResolveSubscribers(_ context.Context, key models.SectionKey) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	section, ok := r.sections[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s not found", key))
	}
	return append([]string(nil), section.SubscriberTokens...), nil
}

// Subscribe embeds token in the section document. Used by seeding and tests.
func (r *MemorySectionRepository) Subscribe(key models.SectionKey, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	section, ok := r.sections[key]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s not found", key))
	}
	for _, existing := range section.SubscriberTokens {
		if existing == token {
			return nil
		}
	}
	section.SubscriberTokens = append(section.SubscriberTokens, token)
	r.sections[key] = section
	return nil
}

// List returns sections ordered by key.
func (r *MemorySectionRepository) List(_ context.Context, filter models.SectionFilter) ([]models.CourseSection, int, error) {
	r.mu.RLock()
	matched := make([]models.CourseSection, 0, len(r.sections))
	for _, section := range r.sections {
		if filter.CourseCode != "" && section.CourseCode != filter.CourseCode {
			continue
		}
		if filter.Full != nil && section.IsFull != *filter.Full {
			continue
		}
		section.SubscriberTokens = nil
		matched = append(matched, section)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CourseCode != matched[j].CourseCode {
			return matched[i].CourseCode < matched[j].CourseCode
		}
		return matched[i].SectionNumber < matched[j].SectionNumber
	})

	page, size := normalizePage(filter.Page, filter.PageSize)
	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []models.CourseSection{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Len returns the number of stored sections.
func (r *MemorySectionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sections)
}

// Ping always succeeds.
func (r *MemorySectionRepository) Ping(context.Context) error {
	return nil
}
