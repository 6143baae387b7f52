package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/friendzone/internal/bus"
	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/rtstore"
)

// faultyStore fails writes or reads under a path prefix on demand.
type faultyStore struct {
	*rtstore.Memory
	mu           sync.Mutex
	failSet      string
	failPush     string
	failChildren string
}

func (f *faultyStore) fails(prefix *string, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *prefix != "" && strings.HasPrefix(path, *prefix)
}

func (f *faultyStore) Set(ctx context.Context, path string, v []byte) error {
	if f.fails(&f.failSet, path) {
		return errors.New("network down")
	}
	return f.Memory.Set(ctx, path, v)
}

func (f *faultyStore) Push(ctx context.Context, path string, v []byte) (string, error) {
	if f.fails(&f.failPush, path) {
		return "", errors.New("network down")
	}
	return f.Memory.Push(ctx, path, v)
}

func (f *faultyStore) Children(ctx context.Context, path string) ([]rtstore.Child, error) {
	if f.fails(&f.failChildren, path) {
		return nil, errors.New("network down")
	}
	return f.Memory.Children(ctx, path)
}

type memBlobs struct {
	mu    sync.Mutex
	files map[string]string
	fail  bool
}

func (b *memBlobs) Upload(_ context.Context, name string, r io.Reader) error {
	if b.fail {
		return errors.New("quota exceeded")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.files == nil {
		b.files = make(map[string]string)
	}
	b.files[name] = string(data)
	return nil
}

func (b *memBlobs) URL(_ context.Context, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[name]; !ok {
		return "", fmt.Errorf("no blob %s", name)
	}
	return "https://blobs.test/" + name, nil
}

type fixture struct {
	store *faultyStore
	repo  *chat.Repository
	blobs *memBlobs
	ch    *Channel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := &faultyStore{Memory: rtstore.NewMemory()}
	repo := chat.NewRepository(fs, nil)
	blobs := &memBlobs{}
	ctx := context.Background()
	sess := chat.NewSession("u1+u2", chat.User{ID: "u1", Username: "ada"}, chat.User{ID: "u2", Username: "bob"})
	if err := repo.PutSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	return &fixture{store: fs, repo: repo, blobs: blobs, ch: New(repo, blobs, bus.New(), nil)}
}

func (f *fixture) session(t *testing.T) *chat.Session {
	t.Helper()
	s, err := f.repo.Session(context.Background(), "u1+u2")
	if err != nil || s == nil {
		t.Fatalf("Session = %v, %v", s, err)
	}
	return s
}

func TestSendTextScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msgs, err := f.ch.Send(ctx, "u1+u2", "u1", chat.Outgoing{Text: "hi"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Text != "hi" || m.SenderID != "u1" || m.ChatID != "u1+u2" || m.File != nil {
		t.Errorf("message = %+v", m)
	}

	s := f.session(t)
	if s.LastMessage == nil || s.LastMessage.Text != "hi" || s.LastMessage.Image != nil {
		t.Errorf("lastMessage = %+v", s.LastMessage)
	}
	if s.LastMessage.Time == "" || s.LastMessage.SentAt == 0 {
		t.Errorf("lastMessage missing time: %+v", s.LastMessage)
	}
}

func TestSendWithAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := chat.Outgoing{Text: "look", Attachment: &chat.Attachment{Name: "cat.png", Body: strings.NewReader("meow")}}
	msgs, err := f.ch.Send(ctx, "u1+u2", "u2", out)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].File == nil {
		t.Fatalf("messages = %+v, want one with file", msgs)
	}
	if !strings.HasPrefix(*msgs[0].File, "https://blobs.test/u1+u2/") || !strings.HasSuffix(*msgs[0].File, "-cat.png") {
		t.Errorf("file URL = %q", *msgs[0].File)
	}
	s := f.session(t)
	if s.LastMessage.Image == nil || *s.LastMessage.Image != chat.PlaceholderImage {
		t.Errorf("summary image = %v, want placeholder", s.LastMessage.Image)
	}
}

func TestSendAttachmentOnly(t *testing.T) {
	f := newFixture(t)
	out := chat.Outgoing{Attachment: &chat.Attachment{Name: "a.pdf", Body: strings.NewReader("%PDF")}}
	msgs, err := f.ch.Send(context.Background(), "u1+u2", "u1", out)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Text != "" || msgs[0].File == nil {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestUploadFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.blobs.fail = true
	ctx := context.Background()

	out := chat.Outgoing{Text: "pic", Attachment: &chat.Attachment{Name: "a.png", Body: strings.NewReader("x")}}
	_, err := f.ch.Send(ctx, "u1+u2", "u1", out)

	var se *SendError
	if !errors.As(err, &se) || se.Stage != StageUpload {
		t.Fatalf("error = %v, want upload SendError", err)
	}
	if se.MessageWritten() {
		t.Error("upload failure must not report a written message")
	}
	msgs, _ := f.ch.FetchAll(ctx, "u1+u2")
	if len(msgs) != 0 {
		t.Errorf("log has %d messages after failed upload, want 0", len(msgs))
	}
	if f.session(t).LastMessage != nil {
		t.Error("summary changed after failed upload")
	}
}

func TestAppendFailureLeavesSummary(t *testing.T) {
	f := newFixture(t)
	f.store.failPush = "messages/"
	_, err := f.ch.Send(context.Background(), "u1+u2", "u1", chat.Outgoing{Text: "hi"})

	var se *SendError
	if !errors.As(err, &se) || se.Stage != StageAppend {
		t.Fatalf("error = %v, want append SendError", err)
	}
	if f.session(t).LastMessage != nil {
		t.Error("summary written although append failed")
	}
}

func TestSummaryFailureKeepsMessage(t *testing.T) {
	f := newFixture(t)
	f.store.failSet = "chats/"
	ctx := context.Background()
	_, err := f.ch.Send(ctx, "u1+u2", "u1", chat.Outgoing{Text: "hi"})

	var se *SendError
	if !errors.As(err, &se) || se.Stage != StageSummary || !se.MessageWritten() {
		t.Fatalf("error = %v, want summary SendError with message written", err)
	}
	msgs, _ := f.ch.FetchAll(ctx, "u1+u2")
	if len(msgs) != 1 {
		t.Errorf("log has %d messages, want 1", len(msgs))
	}
}

func TestRefetchFailureIsNotASendError(t *testing.T) {
	f := newFixture(t)
	f.store.failChildren = "messages/"
	msgs, err := f.ch.Send(context.Background(), "u1+u2", "u1", chat.Outgoing{Text: "hi"})
	if err != nil {
		t.Fatalf("Send() error = %v, want nil", err)
	}
	if msgs != nil {
		t.Errorf("messages = %+v, want nil after failed refetch", msgs)
	}
	if f.session(t).LastMessage == nil {
		t.Error("summary missing although writes succeeded")
	}
}

func TestSendRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		chatID  string
		sender  string
		out     chat.Outgoing
		wantErr error
	}{
		{"empty", "u1+u2", "u1", chat.Outgoing{}, chat.ErrEmptyMessage},
		{"unknown chat", "u1+u9", "u1", chat.Outgoing{Text: "hi"}, ErrUnknownChat},
		{"outsider", "u1+u2", "u3", chat.Outgoing{Text: "hi"}, ErrNotParticipant},
		{"substring outsider", "u1+u2", "u", chat.Outgoing{Text: "hi"}, ErrNotParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ch.Send(ctx, tt.chatID, tt.sender, tt.out)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Send() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	msgs, _ := f.ch.FetchAll(ctx, "u1+u2")
	if len(msgs) != 0 {
		t.Errorf("rejected sends wrote %d messages", len(msgs))
	}
}

func TestLogKeepsSendOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var last []chat.Message
	for i := range 20 {
		sender := "u1"
		if i%2 == 1 {
			sender = "u2"
		}
		msgs, err := f.ch.Send(ctx, "u1+u2", sender, chat.Outgoing{Text: fmt.Sprint(i)})
		if err != nil {
			t.Fatal(err)
		}
		last = msgs
	}
	if len(last) != 20 {
		t.Fatalf("got %d messages, want 20", len(last))
	}
	for i, m := range last {
		if m.Text != fmt.Sprint(i) {
			t.Fatalf("msgs[%d] = %q, want %d", i, m.Text, i)
		}
	}
	if f.session(t).LastMessage.Text != "19" {
		t.Errorf("summary = %q, want last sent", f.session(t).LastMessage.Text)
	}
}

func TestSubscribeDeliversInitialAndNewMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deliveries := make(chan []chat.Message, 16)
	cancel, err := f.ch.Subscribe(ctx, "u1+u2", func(m []chat.Message) { deliveries <- m })
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	select {
	case first := <-deliveries:
		if len(first) != 0 {
			t.Errorf("initial delivery = %d messages, want 0", len(first))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial delivery")
	}

	if _, err := f.ch.Send(ctx, "u1+u2", "u2", chat.Outgoing{Text: "hello"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-deliveries:
			if len(got) == 1 && got[0].Text == "hello" {
				return
			}
		case <-deadline:
			t.Fatal("subscriber never saw the new message")
		}
	}
}

func TestSubscribeCancelStopsDeliveries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	cancel, err := f.ch.Subscribe(ctx, "u1+u2", func([]chat.Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	mu.Lock()
	before := count
	mu.Unlock()
	_, _ = f.ch.Send(ctx, "u1+u2", "u1", chat.Outgoing{Text: "late"})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != before {
		t.Errorf("deliveries after cancel: %d -> %d", before, count)
	}
}
