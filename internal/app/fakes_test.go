package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"terratrack_notifier/internal/domain/channel"
	"terratrack_notifier/internal/domain/crop"
	"terratrack_notifier/internal/domain/planting"
	"terratrack_notifier/internal/domain/user"

	"github.com/sirupsen/logrus"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testCrops() *crop.Store {
	store, err := crop.NewStore([]crop.Template{
		{Name: "Tomatoes", Steps: []crop.Step{
			{DayOffset: 0, Task: "Plant seeds"},
			{DayOffset: 30, Task: "Transplant"},
			{DayOffset: 90, Task: "Harvest"},
		}},
		{Name: "Lettuce", Steps: []crop.Step{
			{DayOffset: 0, Task: "Sow seeds"},
			{DayOffset: 14, Task: "Thin seedlings"},
			{DayOffset: 45, Task: "Harvest"},
		}},
	})
	if err != nil {
		panic(err)
	}
	return store
}

type fakeUserRepo struct {
	mu      sync.Mutex
	users   []*user.Profile
	listErr error
	setErr  error
}

func (f *fakeUserRepo) ListAll(_ context.Context) ([]*user.Profile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.users, nil
}

func (f *fakeUserRepo) Get(_ context.Context, userID string) (*user.Profile, error) {
	for _, u := range f.users {
		if u.UserID == userID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUserRepo) SetNotificationsEnabled(_ context.Context, userID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	for _, u := range f.users {
		if u.UserID == userID {
			u.NotificationsEnabled = enabled
			return nil
		}
	}
	return user.ErrNotFound
}

type fakePlantingRepo struct {
	mu        sync.Mutex
	plantings map[string]*planting.Planting
	failOwner map[string]error
	putErr    error
	puts      int
}

func newFakePlantingRepo(ps ...*planting.Planting) *fakePlantingRepo {
	f := &fakePlantingRepo{plantings: map[string]*planting.Planting{}, failOwner: map[string]error{}}
	for _, p := range ps {
		f.plantings[p.ID] = p
	}
	return f
}

func (f *fakePlantingRepo) ListByOwner(_ context.Context, ownerID string) ([]*planting.Planting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOwner[ownerID]; err != nil {
		return nil, err
	}
	var out []*planting.Planting
	for _, p := range f.plantings {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePlantingRepo) Get(_ context.Context, id string) (*planting.Planting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plantings[id]
	if !ok {
		return nil, planting.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePlantingRepo) Put(_ context.Context, p *planting.Planting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	cp := *p
	f.plantings[p.ID] = &cp
	return nil
}

func (f *fakePlantingRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.plantings[id]; !ok {
		return planting.ErrNotFound
	}
	delete(f.plantings, id)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []channel.Message
	failFor  map[string]error
}

func (f *fakePublisher) Publish(_ context.Context, msg channel.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[msg.Recipient]; err != nil {
		return "", err
	}
	f.messages = append(f.messages, msg)
	return "msg-" + msg.Recipient, nil
}

func (f *fakePublisher) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Recipient)
	}
	return out
}

type fakeSubscriber struct {
	target, address string
	err             error
	calls           int
}

func (f *fakeSubscriber) Subscribe(_ context.Context, target, address string) (string, error) {
	f.calls++
	f.target, f.address = target, address
	if f.err != nil {
		return "", f.err
	}
	return "sub-1", nil
}

type fakeLedger struct {
	mu      sync.Mutex
	sent    map[string]string
	readErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{sent: map[string]string{}}
}

func ledgerKey(d time.Time, userID string) string {
	return FormatDate(d) + ":" + userID
}

func (f *fakeLedger) WasSent(_ context.Context, d time.Time, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return false, f.readErr
	}
	_, ok := f.sent[ledgerKey(d, userID)]
	return ok, nil
}

func (f *fakeLedger) MarkSent(_ context.Context, d time.Time, userID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[ledgerKey(d, userID)] = messageID
	return nil
}

var errStoreDown = errors.New("connection refused")
