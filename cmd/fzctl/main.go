package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/matheus3301/friendzone/internal/api"
	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/client"
	"github.com/matheus3301/friendzone/internal/config"
	"github.com/matheus3301/friendzone/internal/identity"
	"github.com/matheus3301/friendzone/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Commands that do not talk to the daemon.
	switch args[0] {
	case "init":
		cmdInit(profileName, args[1:])
		return
	case "profiles":
		cmdProfiles(*jsonFlag)
		return
	}

	socketPath := profile.SocketPath(profileName)
	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", profileName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmdWatch(ctx, c, args[1:], *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "users":
		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		cmdUsers(ctx, c, query, *jsonFlag)
	case "open":
		if len(args) < 2 {
			usageError("usage: fzctl open <friend-id>")
		}
		resp, err := c.StartOrResumeChat(ctx, args[1])
		check(err)
		printChat(resp.Chat, *jsonFlag)
	case "restore":
		cachedOnly := len(args) > 1 && args[1] == "--cached"
		resp, err := c.RestoreChat(ctx, cachedOnly)
		check(err)
		printChat(resp.Chat, *jsonFlag)
	case "close":
		check(c.CloseChat(ctx))
		if !*jsonFlag {
			fmt.Println("Chat closed.")
		}
	case "chats":
		resp, err := c.ListChats(ctx, "")
		check(err)
		printChats(resp.Chats, *jsonFlag)
	case "messages":
		chatID := ""
		if len(args) > 1 {
			chatID = args[1]
		}
		resp, err := c.FetchMessages(ctx, chatID)
		check(err)
		printMessages(resp, *jsonFlag)
	case "send":
		cmdSend(ctx, c, args[1:], *jsonFlag)
	case "logout":
		resp, err := c.Logout(ctx)
		check(err)
		if *jsonFlag {
			outputJSON(resp)
			return
		}
		fmt.Printf("Success: %v - %s\n", resp.Success, resp.Message)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: fzctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  init <id> <username>            Write the profile's signed-in user")
	fmt.Fprintln(os.Stderr, "  profiles                        List known profiles")
	fmt.Fprintln(os.Stderr, "  status                          Show daemon status")
	fmt.Fprintln(os.Stderr, "  users [query]                   Search users")
	fmt.Fprintln(os.Stderr, "  open <friend-id>                Start or resume a chat")
	fmt.Fprintln(os.Stderr, "  restore [--cached]              Reopen the pinned chat")
	fmt.Fprintln(os.Stderr, "  close                           Close the active chat")
	fmt.Fprintln(os.Stderr, "  chats                           List your chats")
	fmt.Fprintln(os.Stderr, "  messages [chat-id]              Show a chat's messages")
	fmt.Fprintln(os.Stderr, "  send [-chat id] [-file path] [text]")
	fmt.Fprintln(os.Stderr, "                                  Send to the active chat")
	fmt.Fprintln(os.Stderr, "  watch chats|messages [chat-id]  Stream updates until interrupted")
	fmt.Fprintln(os.Stderr, "  logout                          Close the chat and forget the pin")
}

func cmdInit(profileName string, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	avatar := fs.String("avatar", "", "avatar URL")
	email := fs.String("email", "", "email address")
	listen := fs.String("http", "", "blob/metrics listen address (default: a free local port)")
	_ = fs.Parse(args)
	if fs.NArg() < 2 {
		usageError("usage: fzctl init [-avatar url] [-email addr] [-http addr] <id> <username>")
	}
	id := fs.Arg(0)
	if err := identity.ValidateID(id); err != nil {
		fatal(err)
	}
	if err := profile.EnsureDir(profileName); err != nil {
		fatal(err)
	}
	if *listen == "" {
		addr, err := freeLocalAddr()
		if err != nil {
			fatal(err)
		}
		*listen = addr
	}
	p := &config.Profile{
		User: config.UserConfig{
			ID:       id,
			Username: fs.Arg(1),
			Avatar:   *avatar,
			Email:    *email,
		},
		HTTP: config.ProfileHTTPConfig{Listen: *listen},
	}
	path := profile.ProfilePath(profileName)
	if err := config.SaveProfile(path, p); err != nil {
		fatal(err)
	}
	fmt.Printf("Profile %q signed in as %s (%s)\n", profileName, p.User.Username, id)
	fmt.Printf("Blobs served on %s\n", *listen)
	fmt.Printf("Wrote %s\n", path)
}

// freeLocalAddr picks a loopback port so each profile gets its own listener.
func freeLocalAddr() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().String(), nil
}

type profileInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Running bool   `json:"running"`
}

func cmdProfiles(jsonOut bool) {
	entries, err := os.ReadDir(filepath.Join(profile.BaseDir(), "profiles"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fatal(err)
	}
	var out []profileInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		_, sockErr := os.Stat(profile.SocketPath(e.Name()))
		out = append(out, profileInfo{Name: e.Name(), Path: profile.Dir(e.Name()), Running: sockErr == nil})
	}
	if jsonOut {
		outputJSON(out)
		return
	}
	if len(out) == 0 {
		fmt.Println("No profiles found.")
		return
	}
	for _, p := range out {
		running := "stopped"
		if p.Running {
			running = "running"
		}
		fmt.Printf("%-20s %s (%s)\n", p.Name, p.Path, running)
	}
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.GetStatus(ctx)
	check(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Profile: %s\n", resp.Profile)
	fmt.Printf("User:    %s (%s)\n", resp.Username, resp.UserID)
	fmt.Printf("Status:  %s", resp.Status)
	if resp.StatusMessage != "" {
		fmt.Printf(" - %s", resp.StatusMessage)
	}
	fmt.Println()
	fmt.Printf("Store:   %s\n", resp.Backend)
	if resp.ActiveChatID != "" {
		fmt.Printf("Chat:    %s\n", resp.ActiveChatID)
	}
	fmt.Printf("Uptime:  %dms\n", resp.UptimeMs)
}

func cmdUsers(ctx context.Context, c *client.Client, query string, jsonOut bool) {
	resp, err := c.SearchUsers(ctx, query)
	check(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Users) == 0 {
		fmt.Println("No users found.")
		return
	}
	for _, u := range resp.Users {
		fmt.Printf("%-20s %s\n", u.ID, u.Username)
	}
}

func cmdSend(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	chatID := fs.String("chat", "", "chat id (defaults to the active chat)")
	file := fs.String("file", "", "attach a file")
	_ = fs.Parse(args)

	req := &api.SendMessageRequest{ChatID: *chatID}
	if fs.NArg() > 0 {
		req.Text = fs.Arg(0)
	}
	if *file != "" {
		data, err := os.ReadFile(*file)
		check(err)
		req.Attachment = &api.Attachment{Name: filepath.Base(*file), Data: data}
	}
	resp, err := c.SendMessage(ctx, req)
	check(err)
	printMessages(resp, jsonOut)
}

func cmdWatch(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	if len(args) == 0 {
		usageError("usage: fzctl watch chats|messages [chat-id]")
	}
	switch args[0] {
	case "chats":
		stream, err := c.WatchChats(ctx)
		check(err)
		for {
			update, err := stream.Recv()
			if done(ctx, err) {
				return
			}
			printChats(update.Chats, jsonOut)
		}
	case "messages":
		chatID := ""
		if len(args) > 1 {
			chatID = args[1]
		}
		stream, err := c.WatchMessages(ctx, chatID)
		check(err)
		for {
			update, err := stream.Recv()
			if done(ctx, err) {
				return
			}
			printMessages(update, jsonOut)
		}
	default:
		usageError("usage: fzctl watch chats|messages [chat-id]")
	}
}

// done reports whether a watch loop should end, exiting on unexpected errors.
func done(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, io.EOF) {
		return true
	}
	fatal(err)
	return true
}

func printChat(s chat.Session, jsonOut bool) {
	if jsonOut {
		outputJSON(s)
		return
	}
	fmt.Printf("Chat:  %s\n", s.ChatID)
	fmt.Printf("With:  %s & %s\n", s.UserA.Username, s.UserB.Username)
	if s.LastMessage != nil {
		fmt.Printf("Last:  %s %s\n", s.LastMessage.Time, preview(s.LastMessage))
	}
}

func printChats(chats []chat.Session, jsonOut bool) {
	if jsonOut {
		outputJSON(chats)
		return
	}
	if len(chats) == 0 {
		fmt.Println("No chats yet.")
		return
	}
	for _, s := range chats {
		when, text := "", ""
		if s.LastMessage != nil {
			when, text = s.LastMessage.Time, preview(s.LastMessage)
		}
		fmt.Printf("%-30s %-9s %s\n", s.ChatID, when, text)
	}
}

func preview(sum *chat.Summary) string {
	if sum.Image != nil && sum.Text == "" {
		return "[image]"
	}
	return sum.Text
}

func printMessages(resp *api.MessagesResponse, jsonOut bool) {
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("-- %s (%d messages)\n", resp.ChatID, len(resp.Messages))
	for _, m := range resp.Messages {
		line := m.Text
		if m.File != nil {
			line += " [" + *m.File + "]"
		}
		fmt.Printf("%-12s %s\n", m.SenderID+":", line)
	}
}

func check(err error) {
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func usageError(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
