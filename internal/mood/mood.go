// Package mood keeps a private journal of daily moods.
package mood

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/store"
)

// Moods are the accepted values, best first.
var Moods = []string{"great", "good", "okay", "low", "struggling"}

const MaxNotesLength = 2000

type Service struct {
	store  store.MoodStore
	logger *log.Logger
}

func NewService(s store.MoodStore, logger *log.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// Log records a mood with an optional note.
func (s *Service) Log(ctx context.Context, userID, mood, notes string) (*store.MoodLog, error) {
	mood = strings.ToLower(strings.TrimSpace(mood))
	if !slices.Contains(Moods, mood) {
		return nil, apperr.Invalid("Please choose a mood")
	}
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return nil, apperr.Invalid("Notes are too long")
	}
	m := &store.MoodLog{ID: store.NewID(), UserID: userID, Mood: mood, CreatedAt: store.Now()}
	if notes != "" {
		m.Notes = &notes
	}
	if err := s.store.AddMood(ctx, m); err != nil {
		return nil, apperr.Internal("Failed to save mood", err)
	}
	return m, nil
}

// List returns the user's entries newest first.
func (s *Service) List(ctx context.Context, userID string) ([]store.MoodLog, error) {
	logs, err := s.store.ListMoods(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load mood history", err)
	}
	if logs == nil {
		logs = []store.MoodLog{}
	}
	return logs, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	m, err := s.store.GetMood(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && m.UserID != userID) {
		return apperr.NotFound("Entry not found")
	}
	if err != nil {
		return apperr.Internal("Failed to delete entry", err)
	}
	if err := s.store.DeleteMood(ctx, id); err != nil {
		return apperr.Internal("Failed to delete entry", err)
	}
	return nil
}
