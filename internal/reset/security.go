// Package reset implements the two password recovery paths: security questions and
// emailed one-time codes.
package reset

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rexlx/mindhaven/internal/account"
	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/store"
)

var tracer = otel.Tracer("github.com/rexlx/mindhaven/internal/reset")

// Questions is the fixed list users pick their two security questions from.
var Questions = []string{
	"What was the name of your first pet?",
	"What city were you born in?",
	"What is your mother's maiden name?",
	"What was the name of your elementary school?",
	"What was your childhood nickname?",
	"What is the name of your favorite childhood friend?",
	"What street did you grow up on?",
	"What was the make of your first car?",
	"What is your favorite movie?",
	"What is your favorite book?",
}

// MaxAnswerLength bounds a normalised answer in bytes.
const MaxAnswerLength = 72

var (
	ErrNoQuestions      = apperr.NotFound("No security questions set up for this account. Please contact support.")
	ErrMissingFields    = apperr.Invalid("Missing required fields")
	ErrIncorrectAnswers = apperr.Unauthorized("Security answers are incorrect")
)

var lower = cases.Lower(language.Und)

// NormalizeAnswer trims and lower-cases an answer before hashing or comparison.
func NormalizeAnswer(answer string) string {
	return lower.String(strings.TrimSpace(answer))
}

// Accounts is the slice of the account service the reset paths need.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*store.Account, error)
	SetPasswordAdmin(ctx context.Context, userID, password string) error
}

// QuestionSet is a user's choice of questions with plain-text answers.
type QuestionSet struct {
	Question1 string `json:"question1"`
	Answer1   string `json:"answer1"`
	Question2 string `json:"question2"`
	Answer2   string `json:"answer2"`
}

type Security struct {
	store    store.ResetStore
	accounts Accounts
	cost     int
	logger   *log.Logger
}

func NewSecurity(s store.ResetStore, accounts Accounts, bcryptCost int, logger *log.Logger) *Security {
	return &Security{store: s, accounts: accounts, cost: bcryptCost, logger: logger}
}

func (q QuestionSet) validate() error {
	if !slices.Contains(Questions, q.Question1) || !slices.Contains(Questions, q.Question2) {
		return apperr.Invalid("Please choose questions from the list")
	}
	if q.Question1 == q.Question2 {
		return apperr.Invalid("Please choose two different questions")
	}
	a1, a2 := NormalizeAnswer(q.Answer1), NormalizeAnswer(q.Answer2)
	if a1 == "" || a2 == "" {
		return apperr.Invalid("Please answer both security questions")
	}
	if len(a1) > MaxAnswerLength || len(a2) > MaxAnswerLength {
		return apperr.Invalid("Answers must be at most 72 characters")
	}
	return nil
}

// Save replaces the user's security questions.
func (s *Security) Save(ctx context.Context, userID string, q QuestionSet) error {
	if err := q.validate(); err != nil {
		return err
	}
	h1, err := account.HashPassword(NormalizeAnswer(q.Answer1), s.cost)
	if err != nil {
		return apperr.Internal("Failed to save security questions", err)
	}
	h2, err := account.HashPassword(NormalizeAnswer(q.Answer2), s.cost)
	if err != nil {
		return apperr.Internal("Failed to save security questions", err)
	}
	now := store.Now()
	err = s.store.UpsertSecurityQuestions(ctx, &store.SecurityQuestions{
		UserID:      userID,
		Question1:   q.Question1,
		Answer1Hash: h1,
		Question2:   q.Question2,
		Answer2Hash: h2,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return apperr.Internal("Failed to save security questions", err)
	}
	s.logger.Printf("security questions saved for %s", userID)
	return nil
}

// ForUser returns the user's questions without answers, or ErrNoQuestions.
func (s *Security) ForUser(ctx context.Context, userID string) (*store.SecurityQuestions, error) {
	q, err := s.store.GetSecurityQuestions(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoQuestions
	}
	if err != nil {
		return nil, apperr.Internal("Failed to retrieve security questions", err)
	}
	return q, nil
}

// GetQuestions returns the questions of the account behind email. Unknown emails and
// accounts without questions both yield ErrNoQuestions.
func (s *Security) GetQuestions(ctx context.Context, email string) (q1, q2 string, err error) {
	a, err := s.accounts.FindByEmail(ctx, email)
	if apperr.CodeOf(err) == apperr.CodeNotFound {
		return "", "", ErrNoQuestions
	}
	if err != nil {
		return "", "", apperr.Internal("Failed to retrieve security questions", err)
	}
	q, err := s.ForUser(ctx, a.ID)
	if err != nil {
		return "", "", err
	}
	return q.Question1, q.Question2, nil
}

// VerifyAnswers checks both answers for email and returns the account id.
func (s *Security) VerifyAnswers(ctx context.Context, email, answer1, answer2 string) (string, error) {
	ctx, span := tracer.Start(ctx, "reset.VerifyAnswers")
	defer span.End()

	if strings.TrimSpace(email) == "" || answer1 == "" || answer2 == "" {
		return "", ErrMissingFields
	}
	a1, a2 := NormalizeAnswer(answer1), NormalizeAnswer(answer2)

	a, err := s.accounts.FindByEmail(ctx, email)
	if apperr.CodeOf(err) == apperr.CodeNotFound {
		account.DummyCompare(a1)
		account.DummyCompare(a2)
		return "", ErrIncorrectAnswers
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", apperr.Internal("Verification failed", err)
	}
	q, err := s.store.GetSecurityQuestions(ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		account.DummyCompare(a1)
		account.DummyCompare(a2)
		return "", ErrIncorrectAnswers
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", apperr.Internal("Verification failed", err)
	}

	ok1, err1 := account.PasswordMatches(q.Answer1Hash, a1)
	ok2, err2 := account.PasswordMatches(q.Answer2Hash, a2)
	if err := errors.Join(err1, err2); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", apperr.Internal("Verification failed", err)
	}
	if !ok1 || !ok2 {
		s.logger.Printf("security answers rejected for %s", a.ID)
		return "", ErrIncorrectAnswers
	}
	return a.ID, nil
}

// VerifyAndReset re-verifies both answers and sets the new password.
func (s *Security) VerifyAndReset(ctx context.Context, email, answer1, answer2, password string) error {
	if strings.TrimSpace(email) == "" || answer1 == "" || answer2 == "" || password == "" {
		return ErrMissingFields
	}
	if err := account.ValidatePassword(password); err != nil {
		return err
	}
	userID, err := s.VerifyAnswers(ctx, email, answer1, answer2)
	if err != nil {
		return err
	}
	if err := s.accounts.SetPasswordAdmin(ctx, userID, password); err != nil {
		if apperr.CodeOf(err) == apperr.CodeInternal {
			return apperr.Internal("Failed to update password", err)
		}
		return err
	}
	s.logger.Printf("password reset by security questions for %s", userID)
	return nil
}
