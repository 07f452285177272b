package account

import (
	"context"
	"sync"
	"time"

	"github.com/profilehub/profiles"
)

const AvatarSize = 150

// Screen couples the profile form with its avatar widget. Uploaded avatars
// are persisted right away through the form.
type Screen struct {
	Form   *Form
	Avatar *Avatar
}

type ScreenView struct {
	Form   FormView
	Avatar AvatarView
}

func NewScreen(backend profiles.Backend, identity IdentityResolver) *Screen {
	form := &Form{Backend: backend, Identity: identity}
	return &Screen{
		Form: form,
		Avatar: &Avatar{
			Backend:    backend,
			Size:       AvatarSize,
			OnUploaded: form.CommitAvatar,
		},
	}
}

// Render resolves the avatar of the current draft and snapshots both views.
func (s *Screen) Render(ctx context.Context) ScreenView {
	s.Avatar.Resolve(ctx, s.Form.View().AvatarUrl)
	return ScreenView{
		Form:   s.Form.View(),
		Avatar: s.Avatar.View(),
	}
}

// DefaultScreenTtl is how long an unused screen is kept. Screens are cheap
// to rebuild from the backend.
const DefaultScreenTtl = 30 * time.Minute

type screenEntry struct {
	screen     *Screen
	token      string
	lastAccess time.Time
}

// Screens holds one screen per session. Screens not acquired for Ttl are
// dropped on the next Acquire.
type Screens struct {
	Ttl time.Duration
	now func() time.Time

	mutex   sync.Mutex
	screens map[string]*screenEntry
}

func NewScreens(ttl time.Duration) *Screens {
	return &Screens{
		Ttl:     ttl,
		now:     time.Now,
		screens: make(map[string]*screenEntry),
	}
}

// Acquire returns the screen of the session, creating it with create when
// missing. The second result reports whether the screen was created.
func (s *Screens) Acquire(session profiles.Session, create func() *Screen) (*Screen, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	now := s.now()
	s.sweep(now)

	if entry, ok := s.screens[session.Id]; ok {
		entry.lastAccess = now
		return entry.screen, false
	}
	screen := create()
	s.screens[session.Id] = &screenEntry{screen: screen, token: session.Token, lastAccess: now}
	return screen, true
}

func (s *Screens) sweep(now time.Time) {
	if s.Ttl <= 0 {
		return
	}
	for id, entry := range s.screens {
		if now.Sub(entry.lastAccess) > s.Ttl {
			delete(s.screens, id)
		}
	}
}

func (s *Screens) Drop(sessionId string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.screens, sessionId)
}

// DropByToken drops the screen of the session holding token. Used when the
// session itself is already gone.
func (s *Screens) DropByToken(token string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id, entry := range s.screens {
		if entry.token == token {
			delete(s.screens, id)
		}
	}
}

func (s *Screens) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.screens)
}
