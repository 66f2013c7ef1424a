package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
)

// selfCheckSubject is the subject of the credential minted and discarded by Probe.
const selfCheckSubject = "gosession-self-check"

// Engine defines a public type used by goSession APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	jwtManager   *jwt.Manager
	passwordHash *password.Argon2
	accounts     AccountStore
	rateLimiter  *rate.Limiter
	audit        *auditDispatcher
	metrics      *Metrics
	newXSRF      func() (string, error)
}

// Close drains the audit dispatcher. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// XSRFHeader returns the request header clients echo the XSRF token in.
func (e *Engine) XSRFHeader() string {
	if e == nil {
		return DefaultConfig().XSRF.HeaderName
	}
	return e.config.XSRF.HeaderName
}

// Hash returns the deterministic digest of password under the engine's
// Argon2 parameters and deployment salt.
func (e *Engine) Hash(password string) string {
	if e == nil || e.passwordHash == nil {
		return ""
	}
	return e.passwordHash.Hash(password)
}

// Probe checks that the engine can mint sessions it will also accept: a signing
// key is loaded, the system random source answers, and a throwaway credential
// survives a sign and parse round trip. Processes call it once before serving.
func (e *Engine) Probe(ctx context.Context) error {
	if e == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}
	if !e.jwtManager.CanSign() {
		return ErrSigningKeyUnavailable
	}
	xsrf, err := e.newXSRF()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	credential, _, err := e.jwtManager.CreateSession(selfCheckSubject, xsrf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}
	if _, err := e.jwtManager.ParseSession(credential); err != nil {
		return fmt.Errorf("%w: issued credential does not verify: %v", ErrSigningKeyUnavailable, err)
	}
	return nil
}

// IssueSession mints a session bound to a fresh XSRF token for accountID.
//
// IssueSession fails with [ErrSessionCreationFailed] for an empty accountID or a signing
// error, [ErrSigningKeyUnavailable] when the engine only holds verification keys, and
// [ErrEntropyUnavailable] when the random source fails. It never retries.
func (e *Engine) IssueSession(ctx context.Context, accountID string) (*IssuedSession, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if accountID == "" {
		return nil, e.issueFailed(ctx, accountID, fmt.Errorf("%w: empty account id", ErrSessionCreationFailed))
	}
	if !e.jwtManager.CanSign() {
		return nil, e.issueFailed(ctx, accountID, ErrSigningKeyUnavailable)
	}

	xsrf, err := e.newXSRF()
	if err != nil {
		return nil, e.issueFailed(ctx, accountID, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err))
	}

	credential, claims, err := e.jwtManager.CreateSession(accountID, xsrf)
	if err != nil {
		return nil, e.issueFailed(ctx, accountID, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err))
	}

	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventSessionIssued, true, accountID, claims.ID, nil, nil)

	return &IssuedSession{
		Credential: credential,
		XSRF:       xsrf,
		ExpiresIn:  int(e.jwtManager.TTL().Seconds()),
	}, nil
}

func (e *Engine) issueFailed(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricSessionIssueFailure)
	e.emitAudit(ctx, auditEventIssueFailure, false, accountID, "", err, nil)
	return err
}

// Login exchanges a username and password for a session.
//
// The password is hashed with the engine's deterministic digest and matched by the
// AccountStore. Unknown usernames and wrong passwords both yield [ErrInvalidCredentials].
// When the login throttle is active, [ErrLoginRateLimited] is returned once the
// username (or client IP, see [WithClientIP]) has spent its attempt budget.
func (e *Engine) Login(ctx context.Context, username, password string) (*IssuedSession, error) {
	if e == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	if e.accounts == nil {
		return nil, ErrAccountStoreMissing
	}
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, username, ip); err != nil {
			return nil, e.loginRateLimited(ctx, username)
		}
	}

	if !e.passwordHash.Accepts(password) {
		return nil, e.loginFailed(ctx, username, ip, "password_too_long")
	}

	account, err := e.accounts.FindByCredentials(ctx, username, e.passwordHash.Hash(password))
	if err != nil {
		e.metricInc(MetricAccountStoreError)
		storeErr := fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
		e.emitAudit(ctx, auditEventAccountStoreDown, false, "", "", storeErr, nil)
		return nil, storeErr
	}
	if account == nil || account.ID == "" {
		return nil, e.loginFailed(ctx, username, ip, "no_match")
	}

	issued, err := e.IssueSession(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, username); err != nil {
			e.metricInc(MetricAccountStoreError)
			e.emitAudit(ctx, auditEventThrottleResetFailed, false, account.ID, "", err, nil)
		}
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, "", nil, nil)

	return issued, nil
}

func (e *Engine) loginFailed(ctx context.Context, username, ip, reason string) error {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, username, ip); err != nil {
			return e.loginRateLimited(ctx, username)
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": username,
			"reason":     reason,
		}
	})
	return ErrInvalidCredentials
}

func (e *Engine) loginRateLimited(ctx context.Context, username string) error {
	e.metricInc(MetricLoginRateLimited)
	e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
		return map[string]string{
			"identifier": username,
		}
	})
	return ErrLoginRateLimited
}

// Verify authenticates a credential and its presented XSRF token.
//
// Checks run in order and stop at the first failure: signature ([ErrBadSignature]),
// expiry ([ErrExpired]), issuer and audience ([ErrBadAudience]), then the XSRF binding
// ([ErrXSRFMismatch]). Every failure is also [ErrUnauthorized]. Verify performs no I/O.
func (e *Engine) Verify(ctx context.Context, credential, presentedXSRF string) (*SessionInfo, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}()
	}

	claims, err := e.jwtManager.ParseSession(credential)
	if err != nil {
		return nil, e.verifyFailed(ctx, mapTokenError(err))
	}
	// Sessions without a subject were never minted by IssueSession.
	if claims.Subject == "" {
		return nil, e.verifyFailed(ctx, ErrBadSignature)
	}

	if !internal.XSRFEqual(presentedXSRF, claims.XSRF) {
		return nil, e.verifyFailed(ctx, ErrXSRFMismatch)
	}

	info := &SessionInfo{
		Identity:  Identity{Subject: claims.Subject},
		XSRF:      claims.XSRF,
		Issuer:    claims.Issuer,
		Audience:  []string(claims.Audience),
		SessionID: claims.ID,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}

	e.metricInc(MetricVerifySuccess)
	return info, nil
}

func (e *Engine) verifyFailed(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrBadSignature):
		e.metricInc(MetricVerifyBadSignature)
	case errors.Is(err, ErrExpired):
		e.metricInc(MetricVerifyExpired)
	case errors.Is(err, ErrBadAudience):
		e.metricInc(MetricVerifyBadAudience)
	case errors.Is(err, ErrXSRFMismatch):
		e.metricInc(MetricVerifyXSRFMismatch)
	}
	e.emitAudit(ctx, auditEventVerifyFailure, false, "", "", err, nil)
	return err
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrIssuer), errors.Is(err, jwt.ErrAudience):
		return ErrBadAudience
	default:
		return ErrBadSignature
	}
}

// LookupAccount resolves a verified subject back to its account.
// A subject that no longer resolves yields [ErrAccountNotFound].
func (e *Engine) LookupAccount(ctx context.Context, id string) (*Account, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.accounts == nil {
		return nil, ErrAccountStoreMissing
	}
	account, err := e.accounts.FindByID(ctx, id)
	if err != nil {
		e.metricInc(MetricAccountStoreError)
		storeErr := fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
		e.emitAudit(ctx, auditEventAccountStoreDown, false, id, "", storeErr, nil)
		return nil, storeErr
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}
