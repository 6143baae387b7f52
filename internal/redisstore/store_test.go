package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/friendzone/internal/rtstore"
	"github.com/redis/go-redis/v9"
)

// newTestStore needs a Redis on localhost:6379 and skips otherwise. Keys are
// namespaced per test and removed on cleanup.
func newTestStore(t *testing.T) (*Store, *rtstore.Feed) {
	t.Helper()
	feed := rtstore.NewFeed()
	return newTestStoreWith(t, feed), feed
}

func newTestStoreWith(t *testing.T, n rtstore.Notifier) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	prefix := "fztest:" + t.Name() + ":"
	cleanup := func() {
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return New(client, prefix, n, nil)
}

func TestSetGetAndNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "chats/u1+u2"); err != nil || found {
		t.Fatalf("Get missing = found %v, err %v", found, err)
	}
	if err := s.Set(ctx, "chats/u1+u2", []byte(`{"chatId":"u1+u2"}`)); err != nil {
		t.Fatal(err)
	}
	v, found, err := s.Get(ctx, "chats/u1+u2")
	if err != nil || !found {
		t.Fatalf("Get = found %v, err %v", found, err)
	}
	if string(v) != `{"chatId":"u1+u2"}` {
		t.Errorf("Get = %s", v)
	}
}

func TestPushChildrenOrdered(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var keys []string
	for _, body := range []string{"a", "b", "c"} {
		k, err := s.Push(ctx, "messages/u1+u2", []byte(body))
		if err != nil {
			t.Fatal(err)
		}
		keys = append(keys, k)
	}
	children, err := s.Children(ctx, "messages/u1+u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != len(keys) {
		t.Fatalf("got %d children, want %d", len(children), len(keys))
	}
	for i := range keys {
		if children[i].Key != keys[i] {
			t.Errorf("children[%d] = %q, want %q", i, children[i].Key, keys[i])
		}
	}
}

func TestSetNotifiesAddedThenChanged(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var kinds []rtstore.Kind
	cancel, err := s.Subscribe(ctx, "chats", func(e rtstore.Event) { kinds = append(kinds, e.Kind) })
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	_ = s.Set(ctx, "chats/u1+u2", []byte(`{}`))
	_ = s.Set(ctx, "chats/u1+u2", []byte(`{"v":2}`))

	if len(kinds) != 2 || kinds[0] != rtstore.ChildAdded || kinds[1] != rtstore.ChildChanged {
		t.Errorf("kinds = %v, want [child_added child_changed]", kinds)
	}
}

// downNotifier accepts listeners but cannot publish.
type downNotifier struct{ *rtstore.Feed }

func (downNotifier) Notify(context.Context, rtstore.Event) error {
	return errors.New("nats: connection closed")
}

func TestWriteSucceedsWhenNotifyFails(t *testing.T) {
	s := newTestStoreWith(t, downNotifier{rtstore.NewFeed()})
	ctx := context.Background()

	key, err := s.Push(ctx, "messages/u1+u2", []byte(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("Push() error = %v, want nil once the hash write landed", err)
	}
	v, found, err := s.Get(ctx, "messages/u1+u2/"+key)
	if err != nil || !found || string(v) != `{"text":"hi"}` {
		t.Errorf("Get = %s, found %v, err %v", v, found, err)
	}
}
