package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thereayou/ritual-union/internal/models"
)

const (
	alice uint = 1
	bob   uint = 2
	carol uint = 3
)

func newTestService(t *testing.T) (*BodyDoublingService, *memStore, *fakeClock) {
	t.Helper()

	store := newMemStore()
	store.addUser(alice, "alice")
	store.addUser(bob, "bob")
	store.addUser(carol, "carol")

	clock := newFakeClock()
	svc := NewBodyDoublingService(store, NewLocalNotifier())
	svc.now = clock.Now
	return svc, store, clock
}

func mustCreate(t *testing.T, svc *BodyDoublingService, owner uint, capacity int) *models.Session {
	t.Helper()
	s, err := svc.CreateSession(context.Background(), owner, "Morning Deep Work", capacity)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func TestCreateSession_RegistersOwner(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	s, err := svc.CreateSession(ctx, alice, "  Morning Deep Work ", 4)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID == 0 {
		t.Fatal("expected session id to be assigned")
	}
	if s.Name != "Morning Deep Work" {
		t.Errorf("name = %q, want trimmed", s.Name)
	}
	if !s.StartedAt.Equal(clock.Now()) || s.EndedAt != nil {
		t.Errorf("unexpected timestamps: started=%v ended=%v", s.StartedAt, s.EndedAt)
	}

	got, err := svc.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(got.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(got.Participants))
	}
	owner := got.Participants[0]
	if owner.UserID != alice || owner.Status != models.StatusFocusing || owner.CurrentActivity != ownerActivity {
		t.Errorf("unexpected owner participant: %+v", owner)
	}
}

func TestCreateSession_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name string
		in   string
		max  int
	}{
		{"empty name", "", 4},
		{"blank name", "   ", 4},
		{"long name", strings.Repeat("x", MaxSessionNameLength+1), 4},
		{"max below range", "ok", models.MinParticipants - 1},
		{"max above range", "ok", models.MaxParticipants + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSession(context.Background(), alice, tt.in, tt.max)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}

	if _, err := svc.CreateSession(context.Background(), alice, strings.Repeat("я", MaxSessionNameLength), models.MaxParticipants); err != nil {
		t.Fatalf("boundary values rejected: %v", err)
	}
}

func TestJoinSession(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	s := mustCreate(t, svc, alice, 2)

	p, err := svc.JoinSession(ctx, bob, s.ID)
	if err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	if p.Status != models.StatusFocusing || p.CurrentActivity != joinerActivity {
		t.Errorf("unexpected joiner: %+v", p)
	}

	if _, err := svc.JoinSession(ctx, carol, s.ID); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("third join err = %v, want ErrSessionFull", err)
	}
	if n := store.participantCount(s.ID); n != 2 {
		t.Fatalf("participant count = %d, want 2", n)
	}

	if _, err := svc.JoinSession(ctx, bob, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown session err = %v, want ErrNotFound", err)
	}
}

func TestJoinSession_Rejoin(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()
	s := mustCreate(t, svc, alice, 2)

	first, err := svc.JoinSession(ctx, bob, s.ID)
	if err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	onBreak := "coffee"
	if _, err := svc.UpdateParticipantStatus(ctx, bob, s.ID, models.StatusOnBreak, &onBreak); err != nil {
		t.Fatalf("UpdateParticipantStatus: %v", err)
	}

	clock.Advance(time.Minute)
	second, err := svc.JoinSession(ctx, bob, s.ID)
	if err != nil {
		t.Fatalf("rejoin at capacity: %v", err)
	}

	if n := store.participantCount(s.ID); n != 2 {
		t.Fatalf("participant count = %d, want 2", n)
	}
	if second.ID != first.ID {
		t.Errorf("rejoin created a new record: %d != %d", second.ID, first.ID)
	}
	if !second.LastActiveAt.Equal(clock.Now()) {
		t.Errorf("lastActiveAt = %v, want %v", second.LastActiveAt, clock.Now())
	}
	if second.Status != models.StatusOnBreak || second.CurrentActivity != onBreak {
		t.Errorf("rejoin changed status: %+v", second)
	}
}

func TestJoinSession_ConcurrentCapacity(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	const capacity = 5
	s := mustCreate(t, svc, alice, capacity)

	const joiners = 40
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
		full   int
	)
	for i := 0; i < joiners; i++ {
		uid := uint(100 + i)
		store.addUser(uid, "user")
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.JoinSession(ctx, uid, s.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, ErrSessionFull):
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := store.participantCount(s.ID); n != capacity {
		t.Fatalf("participant count = %d, want %d", n, capacity)
	}
	if joined != capacity-1 || full != joiners-(capacity-1) {
		t.Errorf("joined=%d full=%d", joined, full)
	}
}

func TestUpdateParticipantStatus(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	s := mustCreate(t, svc, alice, 3)

	clock.Advance(time.Second)
	p, err := svc.UpdateParticipantStatus(ctx, alice, s.ID, models.StatusOnBreak, nil)
	if err != nil {
		t.Fatalf("UpdateParticipantStatus: %v", err)
	}
	if p.Status != models.StatusOnBreak || p.CurrentActivity != ownerActivity {
		t.Errorf("nil activity should keep label: %+v", p)
	}
	if !p.LastActiveAt.Equal(clock.Now()) {
		t.Errorf("lastActiveAt not refreshed")
	}

	if _, err := svc.UpdateParticipantStatus(ctx, bob, s.ID, models.StatusFocusing, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("non-participant err = %v, want ErrNotFound", err)
	}
	if _, err := svc.UpdateParticipantStatus(ctx, alice, s.ID, "napping", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("bad status err = %v, want ErrValidation", err)
	}
	long := strings.Repeat("a", MaxActivityLength+1)
	if _, err := svc.UpdateParticipantStatus(ctx, alice, s.ID, models.StatusFocusing, &long); !errors.Is(err, ErrValidation) {
		t.Errorf("long activity err = %v, want ErrValidation", err)
	}
}

func TestLeaveSession(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	s := mustCreate(t, svc, alice, 3)
	if _, err := svc.JoinSession(ctx, bob, s.ID); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}

	p, err := svc.LeaveSession(ctx, bob, s.ID)
	if err != nil {
		t.Fatalf("LeaveSession: %v", err)
	}
	if p.Status != models.StatusOffline {
		t.Errorf("status = %q, want offline", p.Status)
	}
	if n := store.participantCount(s.ID); n != 2 {
		t.Errorf("leave removed the participant record")
	}

	if _, err := svc.LeaveSession(ctx, carol, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("non-participant leave err = %v, want ErrNotFound", err)
	}
}

func TestPostMessage(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	s := mustCreate(t, svc, alice, 3)

	var prev uint
	for _, body := range []string{"hi", "let's go", strings.Repeat("ж", MaxMessageLength)} {
		m, err := svc.PostMessage(ctx, alice, s.ID, body, "")
		if err != nil {
			t.Fatalf("PostMessage: %v", err)
		}
		if m.ID <= prev {
			t.Fatalf("message id %d not greater than %d", m.ID, prev)
		}
		if m.Kind != models.KindChat {
			t.Errorf("kind = %q, want default chat", m.Kind)
		}
		prev = m.ID
	}

	tests := []struct {
		name string
		user uint
		body string
		kind models.MessageKind
		want error
	}{
		{"empty body", alice, "", models.KindChat, ErrValidation},
		{"too long", alice, strings.Repeat("a", MaxMessageLength+1), models.KindChat, ErrValidation},
		{"bad kind", alice, "hi", "shout", ErrValidation},
		{"not a participant", bob, "hi", models.KindEncouragement, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.PostMessage(ctx, tt.user, s.ID, tt.body, tt.kind); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEndedSessionRejectsMutations(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	s := mustCreate(t, svc, alice, 3)
	if _, err := svc.JoinSession(ctx, bob, s.ID); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	if _, err := svc.EndSession(ctx, alice, s.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	if _, err := svc.JoinSession(ctx, carol, s.ID); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("join err = %v, want ErrSessionClosed", err)
	}
	if _, err := svc.UpdateParticipantStatus(ctx, bob, s.ID, models.StatusOnBreak, nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("status err = %v, want ErrSessionClosed", err)
	}
	if _, err := svc.PostMessage(ctx, bob, s.ID, "late", models.KindChat); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("post err = %v, want ErrSessionClosed", err)
	}
	if _, err := svc.EndSession(ctx, alice, s.ID); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second end err = %v, want ErrSessionClosed", err)
	}

	if n := store.participantCount(s.ID); n != 2 {
		t.Errorf("participant count changed after end: %d", n)
	}
	msgs, _ := store.MessagesAfter(ctx, s.ID, 0)
	if len(msgs) != 0 {
		t.Errorf("messages stored after end: %d", len(msgs))
	}
}

func TestEndSession_OwnerOnly(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	s := mustCreate(t, svc, alice, 3)
	if _, err := svc.JoinSession(ctx, bob, s.ID); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}

	if _, err := svc.EndSession(ctx, bob, s.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner end err = %v, want ErrForbidden", err)
	}
	if _, err := svc.EndSession(ctx, alice, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown session err = %v, want ErrNotFound", err)
	}

	clock.Advance(time.Hour)
	ended, err := svc.EndSession(ctx, alice, s.ID)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if ended.EndedAt == nil || !ended.EndedAt.Equal(clock.Now()) {
		t.Errorf("endedAt = %v, want %v", ended.EndedAt, clock.Now())
	}
}

func TestDeleteSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	s := mustCreate(t, svc, alice, 3)
	if _, err := svc.JoinSession(ctx, bob, s.ID); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	if _, err := svc.PostMessage(ctx, bob, s.ID, "hello", models.KindChat); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	if err := svc.DeleteSession(ctx, bob, s.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner delete err = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteSession(ctx, alice, s.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := svc.GetSession(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSession after delete err = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteSession(ctx, alice, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListActiveSessions(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	older := mustCreate(t, svc, alice, 3)
	clock.Advance(time.Minute)
	ended := mustCreate(t, svc, bob, 3)
	clock.Advance(time.Minute)
	newer := mustCreate(t, svc, carol, 3)

	if _, err := svc.EndSession(ctx, bob, ended.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	list, err := svc.ListActiveSessions(ctx)
	if err != nil {
		t.Fatalf("ListActiveSessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("active sessions = %d, want 2", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Errorf("order = [%d %d], want [%d %d]", list[0].ID, list[1].ID, newer.ID, older.ID)
	}
}

func TestMutationsNudgeSubscribers(t *testing.T) {
	store := newMemStore()
	store.addUser(alice, "alice")
	notifier := NewLocalNotifier()
	svc := NewBodyDoublingService(store, notifier)
	ctx := context.Background()

	s := mustCreate(t, svc, alice, 3)
	nudges, release := notifier.Subscribe(ctx, s.ID)
	defer release()

	if _, err := svc.PostMessage(ctx, alice, s.ID, "hi", models.KindChat); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	select {
	case <-nudges:
	default:
		t.Fatal("expected a nudge after PostMessage")
	}

	if _, err := svc.PostMessage(ctx, alice, s.ID, "", models.KindChat); err == nil {
		t.Fatal("expected validation error")
	}
	select {
	case <-nudges:
		t.Fatal("failed mutation must not nudge")
	default:
	}
}
