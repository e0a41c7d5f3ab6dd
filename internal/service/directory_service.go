package service

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const birthDateLayout = "2006-01-02"

var contactRe = regexp.MustCompile(`^\+?[0-9 -]{7,20}$`)

// DirectoryService implements ports.DirectoryService: the resident registry
// and the public announcement board.
type DirectoryService struct {
	residentStore     *RecordStore[domain.Resident]
	announcementStore *RecordStore[domain.Announcement]
	clock             func() time.Time
	log               zerolog.Logger

	mu            sync.RWMutex
	residents     []domain.Resident
	residentIdx   map[uuid.UUID]int
	announcements []domain.Announcement
}

// NewDirectoryService loads both collections. Announcements fall back to the
// seed set when storage is empty.
func NewDirectoryService(
	ctx context.Context,
	residents *RecordStore[domain.Resident],
	announcements *RecordStore[domain.Announcement],
	log zerolog.Logger,
) (*DirectoryService, error) {
	s := &DirectoryService{
		residentStore:     residents,
		announcementStore: announcements.WithSeed(domain.SeedAnnouncements),
		clock:             time.Now,
		log:               log,
		residentIdx:       make(map[uuid.UUID]int),
	}

	rs, err := residents.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rs {
		if _, dup := s.residentIdx[r.ID]; dup {
			continue
		}
		s.residentIdx[r.ID] = len(s.residents)
		s.residents = append(s.residents, r)
	}

	if s.announcements, err = s.announcementStore.Load(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// GetResident returns a resident by id.
func (s *DirectoryService) GetResident(_ context.Context, id uuid.UUID) (*domain.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.residentIdx[id]
	if !ok {
		return nil, apperror.ErrNotFound("resident")
	}
	r := s.residents[i]
	return &r, nil
}

// RegisterResident validates and stores a new resident.
func (s *DirectoryService) RegisterResident(_ context.Context, req ports.ResidentRegistration) (*domain.Resident, error) {
	name := strings.Join(strings.Fields(req.FullName), " ")
	address := strings.TrimSpace(req.Address)
	if name == "" {
		return nil, apperror.Validation("full name is required")
	}
	if address == "" {
		return nil, apperror.Validation("address is required")
	}
	birth, err := time.Parse(birthDateLayout, strings.TrimSpace(req.BirthDate))
	if err != nil {
		return nil, apperror.Validation("birth date must be YYYY-MM-DD")
	}
	now := s.clock().UTC()
	if birth.After(now) {
		return nil, apperror.Validation("birth date is in the future")
	}
	contact := strings.TrimSpace(req.ContactNumber)
	if contact != "" && !contactRe.MatchString(contact) {
		return nil, apperror.Validation("contact number is invalid")
	}

	r := domain.Resident{
		ID:            uuid.New(),
		FullName:      name,
		Address:       address,
		BirthDate:     birth.Format(birthDateLayout),
		ContactNumber: contact,
		CreatedAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(slices.Clone(s.residents), r)
	if err := s.residentStore.Save(next); err != nil {
		return nil, apperror.InternalError(err)
	}
	s.residentIdx[r.ID] = len(s.residents)
	s.residents = next

	s.log.Info().Str("resident_id", r.ID.String()).Msg("resident registered")
	return &r, nil
}

// ListResidents returns all residents in registration order.
func (s *DirectoryService) ListResidents(_ context.Context) ([]domain.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Resident{}, s.residents...), nil
}

// ListAnnouncements returns announcements, newest first.
func (s *DirectoryService) ListAnnouncements(_ context.Context) ([]domain.Announcement, error) {
	s.mu.RLock()
	out := slices.Clone(s.announcements)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b domain.Announcement) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return out, nil
}

// PublishAnnouncement adds a notice to the board.
func (s *DirectoryService) PublishAnnouncement(_ context.Context, title, body string) (*domain.Announcement, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" || body == "" {
		return nil, apperror.Validation("title and body are required")
	}

	a := domain.Announcement{
		ID:          uuid.New(),
		Title:       title,
		Body:        body,
		PublishedAt: s.clock().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(slices.Clone(s.announcements), a)
	if err := s.announcementStore.Save(next); err != nil {
		return nil, apperror.InternalError(err)
	}
	s.announcements = next
	return &a, nil
}

// Flush forces pending writes of both collections.
func (s *DirectoryService) Flush(ctx context.Context) error {
	if err := s.residentStore.Flush(ctx); err != nil {
		return err
	}
	return s.announcementStore.Flush(ctx)
}
