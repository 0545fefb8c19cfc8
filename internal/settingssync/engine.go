package settingssync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"biolink/internal/validation"
	"biolink/models"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultValidationDebounce = 300 * time.Millisecond
	twoFactorKey              = "twoFactorEnabled"
)

// SettingsAPI is the part of the REST client the engine needs.
type SettingsAPI interface {
	GetSettings(ctx context.Context) (map[string]any, error)
	SaveSettings(ctx context.Context, wire map[string]any) (string, error)
}

// Engine owns the settings draft and the last server snapshot of one session.
type Engine struct {
	api         SettingsAPI
	debounce    time.Duration
	onValidated func(models.ValidationErrors)

	mu       sync.Mutex
	draft    models.Values
	snapshot models.Values
	errs     models.ValidationErrors
	dirty    bool
	loaded   bool
	timer    *time.Timer
	timerSeq uint64

	// saveMu is held for the whole round trip of Save, PersistAudio and the
	// request behind Load.
	saveMu sync.Mutex
	saving atomic.Bool
	loads  singleflight.Group
}

type Option func(*Engine)

func WithValidationDebounce(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.debounce = d
		}
	}
}

// WithValidationListener registers a callback invoked after every validation
// pass. It runs outside the engine lock.
func WithValidationListener(fn func(models.ValidationErrors)) Option {
	return func(e *Engine) { e.onValidated = fn }
}

func NewEngine(api SettingsAPI, opts ...Option) *Engine {
	defaults := models.DefaultSettings()
	e := &Engine{
		api:      api,
		debounce: DefaultValidationDebounce,
		draft:    defaults.Clone(),
		snapshot: defaults,
		errs:     models.ValidationErrors{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces draft and snapshot with the server's settings. Concurrent
// calls share one request, and a load waits for an in-flight save so it never
// applies the state from before that save. Each caller stops waiting when its
// own ctx is done.
func (e *Engine) Load(ctx context.Context) (models.Values, error) {
	shared := context.WithoutCancel(ctx)
	ch := e.loads.DoChan("settings", func() (interface{}, error) {
		return e.load(shared)
	})
	select {
	case <-ctx.Done():
		return nil, &LoadError{Kind: NetworkFailure, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(models.Values).Clone(), nil
	}
}

func (e *Engine) load(ctx context.Context) (models.Values, error) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	wire, err := e.api.GetSettings(ctx)
	if err != nil {
		log.Printf("Failed to load settings: %v", err)
		return nil, loadErrorFrom(err)
	}
	values, err := models.FromWire(wire)
	if err != nil {
		log.Printf("Discarding malformed settings payload: %v", err)
		return nil, loadErrorFrom(err)
	}

	e.mu.Lock()
	e.cancelValidationLocked()
	e.draft = values.Clone()
	e.snapshot = values.Clone()
	e.errs = models.ValidationErrors{}
	e.dirty = false
	e.loaded = true
	e.mu.Unlock()

	return values, nil
}

// SetField changes one draft value. It never touches the network.
// twoFactorEnabled is owned by the enrollment machine and cannot be set here.
func (e *Engine) SetField(key string, value any) error {
	f, ok := models.LookupField(key)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownField, key)
	}
	if key == twoFactorKey {
		return fmt.Errorf("%w: %s", ErrReadOnlyField, key)
	}
	v, err := models.NormalizeValue(f, value)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft[key] = v
	e.dirty = !e.draft.Equal(e.snapshot)
	e.scheduleValidationLocked()
	return nil
}

func (e *Engine) scheduleValidationLocked() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timerSeq++
	seq := e.timerSeq
	e.timer = time.AfterFunc(e.debounce, func() { e.runValidation(seq) })
}

func (e *Engine) cancelValidationLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerSeq++
}

func (e *Engine) runValidation(seq uint64) {
	e.mu.Lock()
	if seq != e.timerSeq {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.errs = validation.Validate(e.draft)
	errs := e.errs.Clone()
	e.mu.Unlock()

	if e.onValidated != nil {
		e.onValidated(errs)
	}
}

func (e *Engine) validateNowLocked() models.ValidationErrors {
	e.cancelValidationLocked()
	e.errs = validation.Validate(e.draft)
	return e.errs.Clone()
}

// FlushValidation runs a pending debounced validation immediately.
func (e *Engine) FlushValidation() models.ValidationErrors {
	e.mu.Lock()
	errs := e.validateNowLocked()
	e.mu.Unlock()

	if e.onValidated != nil {
		e.onValidated(errs.Clone())
	}
	return errs
}

// Save persists the complete draft. It validates the latest draft first and
// makes no request if any field is invalid. Only one Save may run at a time.
func (e *Engine) Save(ctx context.Context) (models.Values, error) {
	if !e.saveMu.TryLock() {
		return nil, ErrSaveInProgress
	}
	defer e.saveMu.Unlock()

	e.mu.Lock()
	errs := e.validateNowLocked()
	if len(errs) > 0 {
		e.mu.Unlock()
		return nil, &SaveError{Kind: ValidationBlocked, Message: "Fix the highlighted fields before saving", Errors: errs}
	}
	sent := e.draft.Clone()
	e.mu.Unlock()

	e.saving.Store(true)
	defer e.saving.Store(false)

	if _, err := e.api.SaveSettings(ctx, sent.ToWire()); err != nil {
		log.Printf("Failed to save settings: %v", err)
		return nil, saveErrorFrom(err)
	}

	e.mu.Lock()
	// edits made while the request was in flight stay dirty
	e.snapshot = sent
	e.dirty = !e.draft.Equal(e.snapshot)
	e.mu.Unlock()

	return sent.Clone(), nil
}

// PersistAudio saves only the audio namespace: the request body is the
// snapshot with the draft's audio fields laid over it, so unrelated unsaved
// edits are not sent. It waits for an in-flight Save instead of failing.
func (e *Engine) PersistAudio(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	audio := models.FieldsIn(models.NamespaceAudio)

	e.mu.Lock()
	body := e.snapshot.Clone()
	errs := models.ValidationErrors{}
	for _, f := range audio {
		body[f.Key] = e.draft[f.Key]
		if msg := validation.ValidateField(f.Key, body[f.Key]); msg != "" {
			errs[f.Key] = msg
		}
	}
	e.mu.Unlock()

	if len(errs) > 0 {
		return &SaveError{Kind: ValidationBlocked, Message: "Audio settings are invalid", Errors: errs}
	}

	e.saving.Store(true)
	defer e.saving.Store(false)

	if _, err := e.api.SaveSettings(ctx, body.ToWire()); err != nil {
		log.Printf("Failed to autosave audio settings: %v", err)
		return saveErrorFrom(err)
	}

	e.mu.Lock()
	for _, f := range audio {
		e.snapshot[f.Key] = body[f.Key]
	}
	e.dirty = !e.draft.Equal(e.snapshot)
	e.mu.Unlock()
	return nil
}

// Discard resets the draft to the last snapshot.
func (e *Engine) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelValidationLocked()
	e.draft = e.snapshot.Clone()
	e.errs = models.ValidationErrors{}
	e.dirty = false
}

// SetTwoFactorEnabled records a flag the server has already persisted. Draft
// and snapshot change together, so the draft does not become dirty.
func (e *Engine) SetTwoFactorEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft[twoFactorKey] = enabled
	e.snapshot[twoFactorKey] = enabled
	e.dirty = !e.draft.Equal(e.snapshot)
}

func (e *Engine) IsDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

func (e *Engine) IsSaving() bool {
	return e.saving.Load()
}

func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// ValidationErrors returns the result of the most recent validation pass.
func (e *Engine) ValidationErrors() models.ValidationErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs.Clone()
}

func (e *Engine) Get(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.draft[key]
	return v, ok
}

func (e *Engine) Draft() models.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone()
}

func (e *Engine) Snapshot() models.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot.Clone()
}

// Close stops any pending validation timer.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelValidationLocked()
}
