package loginflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"astral-auth/internal/domain"
)

const (
	CodeLength = 6

	DefaultRedirectDelay = 1500 * time.Millisecond
	DefaultShakeDuration = 500 * time.Millisecond
	DefaultEntranceDelay = 300 * time.Millisecond
	DefaultRedirectPath  = "/dashboard"

	fallbackEmailMessage = "Please try again!"
	fallbackCodeMessage  = "Incorrect Code. Please try again"
)

var (
	ErrBusy           = errors.New("a request is already in flight")
	ErrBlankEmail     = errors.New("email is blank")
	ErrIncompleteCode = errors.New("code must have 6 characters")
	ErrWrongStep      = errors.New("action not allowed in current step")
	ErrClosed         = errors.New("login flow closed")
)

// Authenticator es lo que el flujo necesita del orquestador de login.
type Authenticator interface {
	RequestCode(ctx context.Context, email string) domain.AuthResult
	VerifyCode(ctx context.Context, email, code string) domain.AuthResult
}

type Field string

const (
	FieldEmail Field = "email"
	FieldCode  Field = "code"
)

// View recibe los cambios visibles del flujo.
type View interface {
	Render(state domain.FlowState)
	Focus(field Field)
	Navigate(path string)
}

type timerKind int

const (
	timerShake timerKind = iota
	timerFocus
	timerRedirect
)

// Flow es la maquina de estados del login en dos pasos: email y codigo.
// Admite a lo sumo un request en vuelo por instancia.
type Flow struct {
	auth      Authenticator
	view      View
	logger    *zap.Logger
	scheduler Scheduler

	redirectDelay time.Duration
	shakeDuration time.Duration
	entranceDelay time.Duration
	redirectPath  string

	mu     sync.Mutex
	state  domain.FlowState
	busy   bool
	closed bool
	timers map[timerKind]Timer
}

type Option func(*Flow)

func WithScheduler(s Scheduler) Option {
	return func(f *Flow) {
		if s != nil {
			f.scheduler = s
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithRedirectDelay(d time.Duration) Option {
	return func(f *Flow) {
		if d >= 0 {
			f.redirectDelay = d
		}
	}
}

func WithShakeDuration(d time.Duration) Option {
	return func(f *Flow) {
		if d >= 0 {
			f.shakeDuration = d
		}
	}
}

func WithEntranceDelay(d time.Duration) Option {
	return func(f *Flow) {
		if d >= 0 {
			f.entranceDelay = d
		}
	}
}

func WithRedirectPath(path string) Option {
	return func(f *Flow) {
		if strings.TrimSpace(path) != "" {
			f.redirectPath = path
		}
	}
}

func New(auth Authenticator, view View, opts ...Option) *Flow {
	f := &Flow{
		auth:          auth,
		view:          view,
		logger:        zap.NewNop(),
		scheduler:     realScheduler{},
		redirectDelay: DefaultRedirectDelay,
		shakeDuration: DefaultShakeDuration,
		entranceDelay: DefaultEntranceDelay,
		redirectPath:  DefaultRedirectPath,
		state:         domain.FlowState{Step: domain.StepEmail},
		timers:        make(map[timerKind]Timer),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State devuelve una copia del estado actual.
func (f *Flow) State() domain.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetEmail actualiza el email y borra el error visible del paso.
func (f *Flow) SetEmail(email string) error {
	f.mu.Lock()
	if err := f.editableLocked(domain.StepEmail); err != nil {
		f.mu.Unlock()
		return err
	}
	f.state.Email = email
	f.state.HasEmailError = false
	f.state.ErrorMessage = ""
	snapshot := f.state
	f.mu.Unlock()

	f.view.Render(snapshot)
	return nil
}

// SetCode actualiza el codigo, truncado a CodeLength caracteres.
func (f *Flow) SetCode(code string) error {
	f.mu.Lock()
	if err := f.editableLocked(domain.StepOTP); err != nil {
		f.mu.Unlock()
		return err
	}
	f.state.Code = truncateRunes(code, CodeLength)
	f.state.HasOtpError = false
	f.state.ErrorMessage = ""
	snapshot := f.state
	f.mu.Unlock()

	f.view.Render(snapshot)
	return nil
}

// SubmitEmail pide un codigo para el email actual. Bloquea hasta que el Authenticator responde.
func (f *Flow) SubmitEmail(ctx context.Context) error {
	f.mu.Lock()
	if err := f.editableLocked(domain.StepEmail); err != nil {
		f.mu.Unlock()
		return err
	}
	email := strings.TrimSpace(f.state.Email)
	if email == "" {
		f.mu.Unlock()
		return ErrBlankEmail
	}
	f.beginLocked()
	f.state.HasEmailError = false
	snapshot := f.state
	f.mu.Unlock()
	f.view.Render(snapshot)

	res := f.call(func() domain.AuthResult { return f.auth.RequestCode(ctx, email) }, fallbackEmailMessage)

	f.mu.Lock()
	f.busy = false
	f.state.IsLoading = false
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if res.Success {
		f.state.Step = domain.StepOTP
		f.state.Email = email
		f.scheduleLocked(timerFocus, f.entranceDelay, func() { f.view.Focus(FieldCode) })
	} else {
		f.state.HasEmailError = true
		f.state.ErrorMessage = messageOr(res.Error, fallbackEmailMessage)
		f.startShakeLocked(nil)
	}
	snapshot = f.state
	f.mu.Unlock()

	f.view.Render(snapshot)
	return nil
}

// SubmitCode verifica el codigo actual. Solo procede con un codigo completo.
func (f *Flow) SubmitCode(ctx context.Context) error {
	f.mu.Lock()
	if err := f.editableLocked(domain.StepOTP); err != nil {
		f.mu.Unlock()
		return err
	}
	if utf8.RuneCountInString(f.state.Code) != CodeLength {
		f.mu.Unlock()
		return ErrIncompleteCode
	}
	email, code := f.state.Email, f.state.Code
	f.beginLocked()
	f.state.HasOtpError = false
	snapshot := f.state
	f.mu.Unlock()
	f.view.Render(snapshot)

	res := f.call(func() domain.AuthResult { return f.auth.VerifyCode(ctx, email, code) }, fallbackCodeMessage)

	f.mu.Lock()
	f.busy = false
	f.state.IsLoading = false
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if res.Success {
		f.state.IsSuccess = true
		f.scheduleLocked(timerRedirect, f.redirectDelay, func() { f.view.Navigate(f.redirectPath) })
	} else {
		f.state.Code = ""
		f.state.HasOtpError = true
		f.state.ErrorMessage = messageOr(res.Error, fallbackCodeMessage)
		f.startShakeLocked(func() { f.view.Focus(FieldCode) })
	}
	snapshot = f.state
	f.mu.Unlock()

	f.view.Render(snapshot)
	return nil
}

// Close cancela todos los temporizadores pendientes. El flujo no acepta mas acciones.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for kind, t := range f.timers {
		t.Stop()
		delete(f.timers, kind)
	}
}

func (f *Flow) editableLocked(step domain.Step) error {
	if f.closed {
		return ErrClosed
	}
	if f.busy {
		return ErrBusy
	}
	if f.state.Step != step || f.state.IsSuccess {
		return ErrWrongStep
	}
	return nil
}

func (f *Flow) beginLocked() {
	f.busy = true
	f.state.IsLoading = true
	f.state.ErrorMessage = ""
	f.state.IsShaking = false
	f.stopLocked(timerShake)
}

// call invoca al Authenticator convirtiendo un panic en un fallo con mensaje generico.
func (f *Flow) call(fn func() domain.AuthResult, fallback string) (res domain.AuthResult) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("authenticator panic", zap.Error(fmt.Errorf("%v", r)))
			res = domain.Failed(fallback)
		}
	}()
	return fn()
}

func (f *Flow) startShakeLocked(after func()) {
	f.state.IsShaking = true
	f.scheduleLocked(timerShake, f.shakeDuration, func() {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return
		}
		f.state.IsShaking = false
		snapshot := f.state
		f.mu.Unlock()

		f.view.Render(snapshot)
		if after != nil {
			after()
		}
	})
}

// scheduleLocked reemplaza el temporizador del tipo dado. El callback no corre si el flujo se cerro.
func (f *Flow) scheduleLocked(kind timerKind, d time.Duration, fn func()) {
	f.stopLocked(kind)
	var t Timer
	t = f.scheduler.AfterFunc(d, func() {
		f.mu.Lock()
		if f.closed || f.timers[kind] != t {
			f.mu.Unlock()
			return
		}
		delete(f.timers, kind)
		f.mu.Unlock()
		fn()
	})
	f.timers[kind] = t
}

func (f *Flow) stopLocked(kind timerKind) {
	if t, ok := f.timers[kind]; ok {
		t.Stop()
		delete(f.timers, kind)
	}
}

func messageOr(message, fallback string) string {
	if strings.TrimSpace(message) == "" {
		return fallback
	}
	return message
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
