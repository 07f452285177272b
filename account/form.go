package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/profilehub/profiles"
	"github.com/sirupsen/logrus"
)

var ErrNoIdentity = errors.New("no identity resolved")

type IdentityResolver = func(ctx context.Context) (profiles.Identity, error)

type Field string

const (
	FieldUsername Field = "username"
	FieldWebsite  Field = "website"
)

var editableFields = []Field{FieldUsername, FieldWebsite}

func (f Field) get(p profiles.Profile) string {
	switch f {
	case FieldUsername:
		return p.Username
	case FieldWebsite:
		return p.Website
	default:
		return ""
	}
}

func (f Field) set(p *profiles.Profile, value string) {
	switch f {
	case FieldUsername:
		p.Username = value
	case FieldWebsite:
		p.Website = value
	}
}

// Form edits the profile of the resolved identity. It keeps the last
// persisted record (committed) apart from the user's edits (draft).
//
// A fetch replaces committed and overwrites every draft field the user did
// not touch. A fetch that started before a later commit is dropped. A
// successful submit cleans the fields it persisted; edits made while the
// submit was in flight stay dirty. Id and avatar path always follow
// committed.
type Form struct {
	Backend  profiles.Backend
	Identity IdentityResolver

	mutex     sync.Mutex
	identity  *profiles.Identity
	committed profiles.Profile
	draft     profiles.Profile
	dirty     map[Field]bool
	pending   int
	commits   uint64
}

type FormView struct {
	Email     string
	Username  string
	Website   string
	AvatarUrl string
	// No identity resolved; identity dependent inputs are disabled.
	Disabled       bool
	SubmitDisabled bool
	SubmitLabel    string
}

// Load resolves the identity and fetches its profile.
func (f *Form) Load(ctx context.Context) error {
	if f.Identity == nil {
		return ErrNoIdentity
	}
	identity, err := f.Identity(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	f.mutex.Lock()
	f.identity = &identity
	f.mutex.Unlock()

	return f.Refresh(ctx)
}

// Refresh refetches the profile and reconciles it with the draft.
func (f *Form) Refresh(ctx context.Context) error {
	f.mutex.Lock()
	if f.identity == nil {
		f.mutex.Unlock()
		return ErrNoIdentity
	}
	id := f.identity.Id
	generation := f.commits
	f.pending++
	f.mutex.Unlock()

	fetched, err := f.Backend.FetchProfile(ctx, id)

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.pending--
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	if generation != f.commits {
		logrus.WithField("user_id", id).Debugln("Dropping stale profile fetch.")
		return nil
	}
	f.reconcile(fetched)
	return nil
}

func (f *Form) reconcile(fetched profiles.Profile) {
	f.committed = fetched
	f.followCommitted()
	for _, field := range editableFields {
		switch {
		case !f.dirty[field]:
			field.set(&f.draft, field.get(fetched))
		case field.get(f.draft) == field.get(fetched):
			delete(f.dirty, field)
		}
	}
}

func (f *Form) followCommitted() {
	f.draft.Id = f.committed.Id
	f.draft.AvatarUrl = f.committed.AvatarUrl
	f.draft.UpdatedAt = f.committed.UpdatedAt
}

func (f *Form) Edit(field Field, value string) error {
	if field != FieldUsername && field != FieldWebsite {
		return fmt.Errorf("field %q is not editable", field)
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.identity == nil {
		return ErrNoIdentity
	}
	if f.dirty == nil {
		f.dirty = make(map[Field]bool)
	}
	field.set(&f.draft, value)
	f.dirty[field] = true
	return nil
}

// Submit persists the whole draft with a single upsert.
func (f *Form) Submit(ctx context.Context) (profiles.Profile, error) {
	f.mutex.Lock()
	if f.identity == nil {
		f.mutex.Unlock()
		return profiles.Profile{}, ErrNoIdentity
	}
	submitted := f.draft
	submitted.Id = f.identity.Id
	submitted.AvatarUrl = f.committed.AvatarUrl
	f.mutex.Unlock()

	record := NormalizeProfile(submitted)
	if err := ValidateProfile(record); err != nil {
		return profiles.Profile{}, err
	}
	return f.persist(ctx, record, submitted, true)
}

// CommitAvatar persists the committed record with a new avatar path. Draft
// edits are not persisted along.
func (f *Form) CommitAvatar(ctx context.Context, path string) error {
	f.mutex.Lock()
	if f.identity == nil {
		f.mutex.Unlock()
		return ErrNoIdentity
	}
	record := f.committed
	record.Id = f.identity.Id
	record.AvatarUrl = path
	f.mutex.Unlock()

	_, err := f.persist(ctx, record, record, false)
	return err
}

// persist upserts record. submitted holds the draft values the record was
// built from; draft fields still equal to them become clean.
func (f *Form) persist(ctx context.Context, record profiles.Profile, submitted profiles.Profile, loading bool) (profiles.Profile, error) {
	if loading {
		f.mutex.Lock()
		f.pending++
		f.mutex.Unlock()
	}

	saved, err := f.Backend.UpsertProfile(ctx, record)

	f.mutex.Lock()
	defer f.mutex.Unlock()
	if loading {
		f.pending--
	}
	if err != nil {
		return profiles.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	f.commits++
	f.committed = saved
	f.followCommitted()
	for _, field := range editableFields {
		if !f.dirty[field] {
			field.set(&f.draft, field.get(saved))
		} else if field.get(f.draft) == field.get(submitted) {
			delete(f.dirty, field)
			field.set(&f.draft, field.get(saved))
		}
	}
	return saved, nil
}

// Loading reports an in-flight fetch or submit.
func (f *Form) Loading() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.pending > 0
}

func (f *Form) Dirty() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.dirty) > 0
}

func (f *Form) Committed() profiles.Profile {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.committed
}

func (f *Form) View() FormView {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	view := FormView{
		SubmitDisabled: f.pending > 0,
		SubmitLabel:    "Update",
	}
	if f.pending > 0 {
		view.SubmitLabel = "Loading ..."
	}
	if f.identity == nil {
		view.Disabled = true
		view.SubmitDisabled = true
		return view
	}
	view.Email = f.identity.Name
	view.Username = f.draft.Username
	view.Website = f.draft.Website
	view.AvatarUrl = f.draft.AvatarUrl
	return view
}
