package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/matheus3301/smsdash/internal/config"
	"github.com/matheus3301/smsdash/internal/paths"
	"github.com/matheus3301/smsdash/internal/store"
	"github.com/matheus3301/smsdash/internal/tui/client"
)

func main() {
	addrFlag := flag.String("addr", envOr("SMSDASH_ADDR", client.DefaultAddr), "daemon address")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "init-config" {
		cmdInitConfig(args[1:])
		return
	}

	c := client.New(*addrFlag)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "ping":
		cmdPing(ctx, c, *jsonFlag)
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "conversations":
		cmdConversations(ctx, c, *jsonFlag)
	case "contacts":
		cmdContacts(ctx, c, *jsonFlag)
	case "contact":
		if len(args) < 4 || args[1] != "set" {
			fail("usage: smsctl contact set <phone> <name>")
		}
		check(c.UpsertContact(ctx, args[2], strings.Join(args[3:], " ")))
		fmt.Println("Contact saved.")
	case "delete":
		if len(args) != 2 {
			fail("usage: smsctl delete <phone>")
		}
		check(c.DeleteConversation(ctx, args[1]))
		fmt.Println("Conversation deleted.")
	case "send":
		cmdSend(ctx, c, args[1:], *jsonFlag)
	case "export":
		cmdExport(ctx, c, args[1:])
	case "import":
		if len(args) != 2 {
			fail("usage: smsctl import <file>")
		}
		cmdImport(ctx, c, args[1], *jsonFlag)
	case "watch":
		cmdWatch(c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: smsctl [--addr <url>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  ping                          Check the daemon answers")
	fmt.Fprintln(os.Stderr, "  status                        Show sync state")
	fmt.Fprintln(os.Stderr, "  conversations                 List conversations")
	fmt.Fprintln(os.Stderr, "  contacts                      List contacts")
	fmt.Fprintln(os.Stderr, "  contact set <phone> <name>    Create or rename a contact")
	fmt.Fprintln(os.Stderr, "  delete <phone>                Delete a conversation")
	fmt.Fprintln(os.Stderr, "  send [--name N] <phone> <msg> Send a message")
	fmt.Fprintln(os.Stderr, "  export [file]                 Export contacts (stdout by default)")
	fmt.Fprintln(os.Stderr, "  import <file>                 Merge contacts from a JSON file")
	fmt.Fprintln(os.Stderr, "  watch                         Stream live events")
	fmt.Fprintln(os.Stderr, "  init-config [path]            Write a default config.toml")
}

func cmdPing(ctx context.Context, c *client.Client, jsonOut bool) {
	ts, err := c.Ping(ctx)
	check(err)
	if jsonOut {
		outputJSON(map[string]any{"status": "ok", "timestamp": ts})
		return
	}
	fmt.Printf("ok (%s)\n", ts.Local().Format(time.RFC3339))
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	info, err := c.Info(ctx)
	check(err)
	if jsonOut {
		outputJSON(info)
		return
	}
	fmt.Printf("Status: %s\n", info.SyncState)
	fmt.Printf("Webhook: %s\n", info.Message)
}

func cmdConversations(ctx context.Context, c *client.Client, jsonOut bool) {
	convs, err := c.Conversations(ctx)
	check(err)
	if jsonOut {
		outputJSON(convs)
		return
	}
	contacts, err := c.Contacts(ctx)
	check(err)
	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return
	}

	phones := make([]string, 0, len(convs))
	for phone := range convs {
		phones = append(phones, phone)
	}
	last := func(p string) time.Time {
		msgs := convs[p]
		if len(msgs) == 0 {
			return time.Time{}
		}
		return msgs[len(msgs)-1].Timestamp
	}
	sort.Slice(phones, func(i, j int) bool { return last(phones[i]).After(last(phones[j])) })

	for _, phone := range phones {
		msgs := convs[phone]
		name := contacts[phone]
		if name == "" {
			name = phone
		}
		preview := ""
		if len(msgs) > 0 {
			preview = msgs[len(msgs)-1].Body
		}
		if len(preview) > 50 {
			preview = preview[:47] + "..."
		}
		fmt.Printf("%-20s %-16s %3d  %s\n", name, phone, len(msgs), preview)
	}
}

func cmdContacts(ctx context.Context, c *client.Client, jsonOut bool) {
	contacts, err := c.Contacts(ctx)
	check(err)
	if jsonOut {
		outputJSON(contacts)
		return
	}
	if len(contacts) == 0 {
		fmt.Println("No contacts.")
		return
	}
	phones := make([]string, 0, len(contacts))
	for p := range contacts {
		phones = append(phones, p)
	}
	sort.Strings(phones)
	for _, p := range phones {
		fmt.Printf("%-16s %s\n", p, contacts[p])
	}
}

func cmdSend(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	name := fs.String("name", "", "record the recipient under this contact name")
	_ = fs.Parse(args)
	if fs.NArg() < 2 {
		fail("usage: smsctl send [--name N] <phone> <message>")
	}
	msg, err := c.Send(ctx, fs.Arg(0), strings.Join(fs.Args()[1:], " "), *name)
	check(err)
	if jsonOut {
		outputJSON(msg)
		return
	}
	fmt.Printf("Sent %s (%s)\n", msg.ID, msg.Status)
}

func cmdExport(ctx context.Context, c *client.Client, args []string) {
	contacts, err := c.ExportContacts(ctx)
	check(err)
	if len(args) == 0 {
		outputJSON(contacts)
		return
	}
	data, err := json.MarshalIndent(contacts, "", "  ")
	check(err)
	check(os.WriteFile(args[0], data, 0600))
	fmt.Printf("Exported %d contacts to %s\n", len(contacts), args[0])
}

func cmdImport(ctx context.Context, c *client.Client, path string, jsonOut bool) {
	data, err := os.ReadFile(path)
	check(err)
	var in store.Contacts
	if err := json.Unmarshal(data, &in); err != nil {
		fail(fmt.Sprintf("error: %s is not a JSON object of phone number to name: %v", path, err))
	}
	imported, total, err := c.ImportContacts(ctx, in)
	check(err)
	if jsonOut {
		outputJSON(map[string]int{"imported": imported, "total": total})
		return
	}
	fmt.Printf("Imported %d contacts (%d total)\n", imported, total)
}

func cmdWatch(c *client.Client) {
	frames, err := c.Watch(context.Background())
	check(err)
	for f := range frames {
		outputJSON(f)
	}
	fail("live channel closed")
}

func cmdInitConfig(args []string) {
	path := paths.ConfigPath()
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		fail(fmt.Sprintf("error: %s already exists", path))
	}
	check(config.Save(path, config.Default()))
	fmt.Printf("Wrote %s\n", path)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func check(err error) {
	if err != nil {
		fail(fmt.Sprintf("error: %v", err))
	}
}

func fail(msg string) {
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
