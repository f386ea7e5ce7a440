package screen

import (
	"context"
	"errors"
	"sync"

	"booknest/pkg/domain"
	"booknest/pkg/present"
)

// ErrNoLanguages is returned by SetLanguage on a header built without a
// language switcher.
var ErrNoLanguages = errors.New("language switching is not available")

// SessionView is the read side of the session store.
type SessionView interface {
	Current() (domain.Session, bool)
}

type HeaderAPI interface {
	Profile(ctx context.Context) (domain.UserProfile, error)
}

// Languages switches the display language.
type Languages interface {
	Language() string
	SetLanguage(ctx context.Context, code string) (string, error)
}

type HeaderState struct {
	LoggedIn bool
	Username string
	Avatar   string
	Language string
}

// Header resolves the identity shown in the page header.
type Header struct {
	api     HeaderAPI
	session SessionView
	langs   Languages
	notify  Notifier

	mu    sync.Mutex
	state HeaderState
}

func NewHeader(api HeaderAPI, session SessionView, langs Languages, notify Notifier) *Header {
	h := &Header{api: api, session: session, langs: langs, notify: notifierOrDefault(notify)}
	if langs != nil {
		h.state.Language = langs.Language()
	}
	return h
}

func (h *Header) State() HeaderState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Load fills username and avatar from the profile. When the profile cannot
// be read the session's user is shown instead.
func (h *Header) Load(ctx context.Context) error {
	sess, ok := h.session.Current()
	if !ok {
		h.mu.Lock()
		h.state.LoggedIn, h.state.Username, h.state.Avatar = false, "", ""
		h.mu.Unlock()
		return nil
	}
	profile, err := h.api.Profile(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.LoggedIn = true
	h.state.Username = sess.User.Username
	h.state.Avatar = present.DefaultAvatar
	if err != nil {
		report(h.notify, "load profile", err)
		return err
	}
	if profile.Username != "" {
		h.state.Username = profile.Username
	}
	if profile.Avatar != "" {
		h.state.Avatar = profile.Avatar
	}
	return nil
}

// SetLanguage switches the display language and returns the code chosen.
func (h *Header) SetLanguage(ctx context.Context, code string) (string, error) {
	if h.langs == nil {
		report(h.notify, "set language", ErrNoLanguages)
		return h.State().Language, ErrNoLanguages
	}
	lang, err := h.langs.SetLanguage(ctx, code)
	h.mu.Lock()
	h.state.Language = lang
	h.mu.Unlock()
	if err != nil {
		report(h.notify, "set language", err)
	}
	return lang, err
}
