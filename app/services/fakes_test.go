package services

import (
	"context"
	"sort"
	"sync"

	"github.com/mihaja/abobot/app/models"
	"github.com/mihaja/abobot/app/storage"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (f *fakeUserStore) Get(_ context.Context, memberID string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[memberID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetByTelegramID(_ context.Context, tgID int64) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if f.users[id].TelegramID == tgID {
			return f.users[id], nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (f *fakeUserStore) Insert(_ context.Context, u models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.MemberID] = u
	return nil
}

func (f *fakeUserStore) UpdateStatus(_ context.Context, memberID string, st models.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[memberID]
	if !ok {
		return storage.ErrNotFound
	}
	u.Status = st
	f.users[memberID] = u
	return nil
}

func (f *fakeUserStore) List(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.users[id])
	}
	return out, nil
}

type fakeCodeStore struct {
	mu   sync.Mutex
	rows []models.AccessCode

	// forceCollisions makes CodeInUse report true this many times.
	forceCollisions int
	inUseCalls      int
}

func (f *fakeCodeStore) Live(_ context.Context, memberID string) (models.AccessCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best models.AccessCode
	found := false
	for _, r := range f.rows {
		if r.MemberID == memberID && r.Status != models.CodeDeleted {
			if !found || r.Stamp > best.Stamp {
				best = r
				found = true
			}
		}
	}
	if !found {
		return models.AccessCode{}, storage.ErrNotFound
	}
	return best, nil
}

func (f *fakeCodeStore) CodeInUse(_ context.Context, code, exceptMemberID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inUseCalls++
	if f.forceCollisions > 0 {
		f.forceCollisions--
		return true, nil
	}
	for _, r := range f.rows {
		if r.Code == code && r.MemberID != exceptMemberID && r.Status != models.CodeDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCodeStore) Insert(_ context.Context, ac models.AccessCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, ac)
	return nil
}

func (f *fakeCodeStore) Update(_ context.Context, ac models.AccessCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.MemberID == ac.MemberID && r.Code == ac.Code {
			f.rows[i] = ac
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeCodeStore) SetStatus(_ context.Context, memberID string, from, to models.CodeStatus, stamp int64) (models.AccessCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.MemberID == memberID && r.Status == from {
			f.rows[i].Status = to
			f.rows[i].Stamp = stamp
			return f.rows[i], nil
		}
	}
	return models.AccessCode{}, storage.ErrNotFound
}

func (f *fakeCodeStore) ListByStatus(_ context.Context, st models.CodeStatus) ([]models.AccessCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AccessCode
	for _, r := range f.rows {
		if r.Status == st {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCodeStore) List(_ context.Context) ([]models.AccessCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AccessCode(nil), f.rows...), nil
}

type countingPublisher struct {
	mu    sync.Mutex
	users int
	codes int
}

func (p *countingPublisher) PublishUsers(context.Context) {
	p.mu.Lock()
	p.users++
	p.mu.Unlock()
}

func (p *countingPublisher) PublishCodes(context.Context) {
	p.mu.Lock()
	p.codes++
	p.mu.Unlock()
}
