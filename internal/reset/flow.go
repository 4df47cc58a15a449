package reset

import (
	"context"
	"errors"
	"strings"
)

// Step is the position of a Flow.
type Step int

const (
	StepEmail Step = iota
	StepQuestions
	StepNewPassword
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepEmail:
		return "email"
	case StepQuestions:
		return "questions"
	case StepNewPassword:
		return "newPassword"
	case StepSuccess:
		return "success"
	}
	return "unknown"
}

// Messages shown by the flow.
const (
	MsgEnterEmail      = "Please enter your email"
	MsgNoQuestions     = "No security questions set up for this account. Please contact support or use a different recovery method."
	MsgFetchFailed     = "Failed to fetch security questions. Please check your email and try again."
	MsgAnswerBoth      = "Please answer both security questions"
	MsgIncorrect       = "Security answers are incorrect. Please try again."
	MsgPasswordShort   = "Password must be at least 6 characters"
	MsgPasswordsDiffer = "Passwords do not match"
	MsgResetFailed     = "Failed to reset password. Please try again."
)

// SecurityClient is what a Flow needs from the server. *Client implements it.
type SecurityClient interface {
	GetQuestions(ctx context.Context, email string) (q1, q2 string, err error)
	VerifyAnswers(ctx context.Context, email, answer1, answer2 string) error
	VerifyAndReset(ctx context.Context, email, answer1, answer2, password string) error
}

// Flow walks a user through the security-question reset. A failed step leaves the
// flow where it was with Err set.
type Flow struct {
	client SecurityClient

	Step      Step
	Email     string
	Question1 string
	Question2 string
	Answer1   string
	Answer2   string
	Err       string
}

func NewFlow(client SecurityClient) *Flow {
	return &Flow{client: client}
}

// Reset returns to the email step and forgets everything collected.
func (f *Flow) Reset() {
	*f = Flow{client: f.client}
}

func (f *Flow) fail(msg string) bool {
	f.Err = msg
	return false
}

// serverMessage prefers the server's message for a rejected call.
func serverMessage(err error, fallback string) string {
	var cerr *ClientError
	if errors.As(err, &cerr) && cerr.Message != "" {
		return cerr.Message
	}
	return fallback
}

// SubmitEmail loads the questions for email and moves to StepQuestions.
func (f *Flow) SubmitEmail(ctx context.Context, email string) bool {
	if f.Step != StepEmail {
		return false
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return f.fail(MsgEnterEmail)
	}
	f.Err = ""
	q1, q2, err := f.client.GetQuestions(ctx, email)
	if err != nil {
		var cerr *ClientError
		if errors.As(err, &cerr) && cerr.Code == "no_questions" {
			return f.fail(MsgNoQuestions)
		}
		return f.fail(serverMessage(err, MsgFetchFailed))
	}
	f.Email, f.Question1, f.Question2 = email, q1, q2
	f.Step = StepQuestions
	return true
}

// SubmitAnswers checks the answers and moves to StepNewPassword.
func (f *Flow) SubmitAnswers(ctx context.Context, answer1, answer2 string) bool {
	if f.Step != StepQuestions {
		return false
	}
	if strings.TrimSpace(answer1) == "" || strings.TrimSpace(answer2) == "" {
		return f.fail(MsgAnswerBoth)
	}
	f.Err = ""
	if err := f.client.VerifyAnswers(ctx, f.Email, answer1, answer2); err != nil {
		return f.fail(serverMessage(err, MsgIncorrect))
	}
	f.Answer1, f.Answer2 = answer1, answer2
	f.Step = StepNewPassword
	return true
}

// SubmitPassword sets the new password and moves to StepSuccess. The server
// re-verifies the answers collected earlier.
func (f *Flow) SubmitPassword(ctx context.Context, password, confirm string) bool {
	if f.Step != StepNewPassword {
		return false
	}
	switch {
	case f.Answer1 == "" || f.Answer2 == "":
		return f.fail(MsgAnswerBoth)
	case len(password) < 6:
		return f.fail(MsgPasswordShort)
	case password != confirm:
		return f.fail(MsgPasswordsDiffer)
	}
	f.Err = ""
	if err := f.client.VerifyAndReset(ctx, f.Email, f.Answer1, f.Answer2, password); err != nil {
		return f.fail(serverMessage(err, MsgResetFailed))
	}
	f.Answer1, f.Answer2 = "", ""
	f.Step = StepSuccess
	return true
}
