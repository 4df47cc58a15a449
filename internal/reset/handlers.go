// internal/reset/handlers.go
package reset

import (
	"errors"
	"net/http"

	"github.com/rexlx/mindhaven/internal/apikey"
	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/web"
)

// Security-question actions.
const (
	ActionGetQuestions   = "get-questions"
	ActionVerifyAnswers  = "verify-answers"
	ActionVerifyAndReset = "verify-and-reset"
)

// One-time-code actions.
const (
	ActionSend   = "send"
	ActionVerify = "verify"
)

// Request is the body of both reset functions. Each action reads the fields it needs.
type Request struct {
	Action      string `json:"action"`
	Email       string `json:"email"`
	Answer1     string `json:"answer1,omitempty"`
	Answer2     string `json:"answer2,omitempty"`
	Code        string `json:"code,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
}

// Response is the union of every reset response body.
type Response struct {
	Question1 string `json:"question1,omitempty"`
	Question2 string `json:"question2,omitempty"`
	Verified  *bool  `json:"verified,omitempty"`
	Success   bool   `json:"success,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

const passwordUpdated = "Password updated successfully"

var errInvalidAction = apperr.Invalid("Invalid action")

type Handlers struct {
	security  *Security
	otp       *OTP
	apiSecret []byte
}

func NewHandlers(security *Security, otp *OTP, apiSecret []byte) *Handlers {
	return &Handlers{security: security, otp: otp, apiSecret: apiSecret}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	requireKey := apikey.Require(h.apiSecret, apikey.RoleAnon, apikey.RoleService)
	mux.Handle("POST /functions/v1/security-password-reset", requireKey(http.HandlerFunc(h.securityReset)))
	mux.Handle("POST /functions/v1/password-reset", requireKey(http.HandlerFunc(h.codeReset)))
}

func (h *Handlers) securityReset(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	ctx := r.Context()

	switch req.Action {
	case ActionGetQuestions:
		q1, q2, err := h.security.GetQuestions(ctx, req.Email)
		if errors.Is(err, ErrNoQuestions) {
			web.WriteJSON(w, http.StatusNotFound, Response{Error: "no_questions", Message: ErrNoQuestions.Message})
			return
		}
		if err != nil {
			web.WriteError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, Response{Question1: q1, Question2: q2})

	case ActionVerifyAnswers:
		_, err := h.security.VerifyAnswers(ctx, req.Email, req.Answer1, req.Answer2)
		if errors.Is(err, ErrIncorrectAnswers) {
			verified := false
			web.WriteJSON(w, http.StatusUnauthorized, Response{Verified: &verified, Error: ErrIncorrectAnswers.Message})
			return
		}
		if err != nil {
			web.WriteError(w, r, err)
			return
		}
		verified := true
		web.WriteJSON(w, http.StatusOK, Response{Verified: &verified})

	case ActionVerifyAndReset:
		if err := h.security.VerifyAndReset(ctx, req.Email, req.Answer1, req.Answer2, req.NewPassword); err != nil {
			web.WriteError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, Response{Success: true, Message: passwordUpdated})

	default:
		web.WriteError(w, r, errInvalidAction)
	}
}

func (h *Handlers) codeReset(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	ctx := r.Context()

	switch req.Action {
	case ActionSend:
		if err := h.otp.Send(ctx, req.Email); err != nil {
			web.WriteError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, Response{Success: true, Message: SendMessage})

	case ActionVerify:
		if err := h.otp.Verify(ctx, req.Email, req.Code, req.NewPassword); err != nil {
			web.WriteError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, Response{Success: true, Message: passwordUpdated})

	default:
		web.WriteError(w, r, errInvalidAction)
	}
}
