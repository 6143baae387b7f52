package chatlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/rtstore"
)

func put(t *testing.T, repo *chat.Repository, chatID string, sentAt int64) {
	t.Helper()
	s := chat.Session{ChatID: chatID}
	if sentAt > 0 {
		s.LastMessage = &chat.Summary{Text: chatID, Time: "1:00 PM", SentAt: sentAt}
	}
	if err := repo.PutSession(context.Background(), s); err != nil {
		t.Fatal(err)
	}
}

func ids(list []chat.Session) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ChatID
	}
	return out
}

func TestRefreshFiltersByParticipant(t *testing.T) {
	repo := chat.NewRepository(rtstore.NewMemory(), nil)
	put(t, repo, "u1+u2", 100)
	put(t, repo, "u3+u1", 200)
	put(t, repo, "u10+u2", 300)
	put(t, repo, "u2+u11", 400)
	put(t, repo, "u4+u5", 500)

	list, err := New(repo, nil, nil).Refresh(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	got := ids(list)
	want := []string{"u3+u1", "u1+u2"}
	if len(got) != len(want) {
		t.Fatalf("Refresh(u1) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Refresh(u1)[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRefreshKeepsOneChatPerPair(t *testing.T) {
	repo := chat.NewRepository(rtstore.NewMemory(), nil)
	put(t, repo, "u2+u1", 300)
	put(t, repo, "u1+u2", 100)
	put(t, repo, "u1+u3", 200)

	list, err := New(repo, nil, nil).Refresh(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	got := ids(list)
	if len(got) != 2 || got[0] != "u1+u3" || got[1] != "u1+u2" {
		t.Errorf("Refresh(u1) = %v, want [u1+u3 u1+u2]", got)
	}
}

func TestSortNewestFirstEmptyLast(t *testing.T) {
	list := []chat.Session{
		{ChatID: "a+b"},
		{ChatID: "a+c", LastMessage: &chat.Summary{SentAt: 10}},
		{ChatID: "a+d", LastMessage: &chat.Summary{SentAt: 30}},
		{ChatID: "a+e", LastMessage: &chat.Summary{SentAt: 10}},
		{ChatID: "a+f"},
	}
	Sort(list)
	want := []string{"a+d", "a+c", "a+e", "a+b", "a+f"}
	for i, id := range ids(list) {
		if id != want[i] {
			t.Fatalf("Sort = %v, want %v", ids(list), want)
		}
	}
}

type brokenStore struct{ *rtstore.Memory }

func (brokenStore) Children(context.Context, string) ([]rtstore.Child, error) {
	return nil, errors.New("network down")
}

func TestRefreshPropagatesReadFailure(t *testing.T) {
	repo := chat.NewRepository(brokenStore{rtstore.NewMemory()}, nil)
	if _, err := New(repo, nil, nil).Refresh(context.Background(), "u1"); err == nil {
		t.Error("Refresh() should fail when the store read fails")
	}
}

func TestSubscribeTracksChanges(t *testing.T) {
	ctx := context.Background()
	repo := chat.NewRepository(rtstore.NewMemory(), nil)
	put(t, repo, "u1+u2", 100)

	lists := make(chan []chat.Session, 16)
	cancel, err := New(repo, nil, nil).Subscribe(ctx, "u1", func(l []chat.Session) { lists <- l })
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	select {
	case l := <-lists:
		if len(l) != 1 {
			t.Errorf("initial list = %v", ids(l))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial delivery")
	}

	put(t, repo, "u3+u1", 200) // added
	put(t, repo, "u1+u2", 300) // changed, moves to the top

	deadline := time.After(2 * time.Second)
	for {
		select {
		case l := <-lists:
			if got := ids(l); len(got) == 2 && got[0] == "u1+u2" && got[1] == "u3+u1" {
				return
			}
		case <-deadline:
			t.Fatal("subscriber never saw the updated ordering")
		}
	}
}

func TestSubscribeSkipsFailedRefresh(t *testing.T) {
	repo := chat.NewRepository(brokenStore{rtstore.NewMemory()}, nil)
	called := make(chan struct{}, 1)
	cancel, err := New(repo, nil, nil).Subscribe(context.Background(), "u1", func([]chat.Session) { called <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	select {
	case <-called:
		t.Error("callback fired although the refresh failed")
	case <-time.After(50 * time.Millisecond):
	}
}
