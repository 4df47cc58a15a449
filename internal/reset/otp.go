package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rexlx/mindhaven/internal/account"
	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/mail"
	"github.com/rexlx/mindhaven/internal/store"
)

// DefaultCodeTTL is how long an emailed code stays valid.
const DefaultCodeTTL = 10 * time.Minute

// SendMessage is returned for every send request so callers cannot tell which emails have accounts.
const SendMessage = "If an account exists, a code was sent"

var (
	ErrEmailRequired = apperr.Invalid("Email is required")
	ErrCodeRequired  = apperr.Invalid("Code and new password are required")
	ErrInvalidCode   = apperr.Invalid("Invalid or expired code")
)

// sendTimeout bounds the background work of issuing and mailing one code.
const sendTimeout = 30 * time.Second

type OTP struct {
	store    store.ResetStore
	accounts Accounts
	mailer   mail.Mailer
	ttl      time.Duration
	logger   *log.Logger
	now      func() time.Time
	pending  sync.WaitGroup
}

func NewOTP(s store.ResetStore, accounts Accounts, mailer mail.Mailer, ttl time.Duration, logger *log.Logger) *OTP {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &OTP{store: s, accounts: accounts, mailer: mailer, ttl: ttl, logger: logger, now: store.Now}
}

// newCode returns a uniformly random code in 100000..999999.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func hashCode(email, code string) []byte {
	sum := sha256.Sum256([]byte(email + "\x00" + code))
	return sum[:]
}

// Send issues a fresh code for email, invalidating earlier ones. It succeeds without
// doing anything when no account has that email. For existing accounts the code is
// stored and mailed in the background, so both cases answer equally fast.
func (o *OTP) Send(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "reset.SendCode")
	defer span.End()

	email = account.NormalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}
	_, err := o.accounts.FindByEmail(ctx, email)
	if apperr.CodeOf(err) == apperr.CodeNotFound {
		span.SetAttributes(attribute.Bool("reset.account_found", false))
		return nil
	}
	if err != nil {
		return apperr.Internal("Failed to generate reset code", err)
	}
	span.SetAttributes(attribute.Bool("reset.account_found", true))

	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()
		if err := o.issue(ctx, email); err != nil {
			o.logger.Printf("reset code for %s: %v", email, err)
		}
	}()
	return nil
}

// Wait blocks until every code issued by Send has been stored and mailed.
func (o *OTP) Wait() {
	o.pending.Wait()
}

func (o *OTP) issue(ctx context.Context, email string) error {
	code, err := newCode()
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if err := o.store.InvalidateResetCodes(ctx, email); err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	now := o.now()
	err = o.store.CreateResetCode(ctx, &store.ResetCode{
		ID:        store.NewID(),
		Email:     email,
		CodeHash:  hashCode(email, code),
		ExpiresAt: now.Add(o.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	msg, err := mail.ResetCode(email, code, o.ttl)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	if err := o.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// Verify consumes a matching code and sets the new password. The code is spent
// before the password update is attempted.
func (o *OTP) Verify(ctx context.Context, email, code, password string) error {
	ctx, span := tracer.Start(ctx, "reset.VerifyCode")
	defer span.End()

	email = account.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	switch {
	case email == "":
		return ErrEmailRequired
	case code == "" || password == "":
		return ErrCodeRequired
	}
	if err := account.ValidatePassword(password); err != nil {
		return err
	}

	rc, err := o.store.FindActiveResetCode(ctx, email, hashCode(email, code), o.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return apperr.Internal("Failed to update password", err)
	}
	consumed, err := o.store.ConsumeResetCode(ctx, rc.ID)
	if err != nil {
		return apperr.Internal("Failed to update password", err)
	}
	if !consumed {
		return ErrInvalidCode
	}

	a, err := o.accounts.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := o.accounts.SetPasswordAdmin(ctx, a.ID, password); err != nil {
		if apperr.CodeOf(err) == apperr.CodeInternal {
			return apperr.Internal("Failed to update password", err)
		}
		return err
	}
	o.logger.Printf("password reset by code for %s", a.ID)
	return nil
}

// PurgeExpired deletes used codes and codes that have expired.
func (o *OTP) PurgeExpired(ctx context.Context) (int64, error) {
	return o.store.PurgeResetCodes(ctx, o.now())
}
