// Command edmsctl drives an EDMS backend from the shell: it renders forms,
// checks and submits answer files, decides approval steps and generates
// synthetic submission load.
//
// Usage:
//
//	edmsctl login -email admin@example.com -password secret
//	edmsctl form 12
//	edmsctl validate -answers leave.json 12
//	edmsctl submit -answers leave.json 12
//	edmsctl approve -comment "looks fine" 12 <stepID>
//	edmsctl reject 12 <stepID>
//	edmsctl load -n 1000 -workers 8 12
//
// EDMS_API_URL (default http://localhost:8080/api), EDMS_TOKEN and
// EDMS_TIMEOUT configure the connection. Without EDMS_TOKEN the tool logs in
// with EDMS_EMAIL and EDMS_PASSWORD. A .env file in the working directory is
// read first.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/uwamba/edms/internal/client"
	"github.com/uwamba/edms/internal/formengine"
)

const defaultAPI = "http://localhost:8080/api"

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = map[string]command{
	"login":    {"login -email E -password P", runLogin},
	"form":     {"form [-answers FILE] FORM_ID", runForm},
	"validate": {"validate -answers FILE FORM_ID", runValidate},
	"submit":   {"submit -answers FILE FORM_ID", runSubmit},
	"approve":  {"approve [-comment C] FORM_ID STEP_ID", runDecision("approve")},
	"reject":   {"reject [-comment C] FORM_ID STEP_ID", runDecision("reject")},
	"load":     {"load [-n N] [-workers W] [-seed S] FORM_ID", runLoad},
}

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if os.Getenv("EDMS_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, os.Args[2:]); err != nil {
		report(err)
		os.Exit(1)
	}
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(os.Stderr, "usage: edmsctl <command> [flags] [args]")
	fmt.Fprintln(os.Stderr)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

// report prints err, expanding field errors one per line.
func report(err error) {
	verrs, ok := formengine.AsValidationErrors(err)
	if !ok {
		var terr *client.TransportError
		if errors.As(err, &terr) && len(terr.Errors) > 0 {
			verrs = terr.ValidationErrors()
		}
	}
	if len(verrs) == 0 {
		fmt.Fprintf(os.Stderr, "edmsctl: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "edmsctl: %d field(s) failed validation\n", len(verrs))
	for _, p := range verrs.Paths() {
		fmt.Fprintf(os.Stderr, "  %-20s %s\n", p, verrs[p])
	}
}

// connect builds a client from the environment.
func connect(authenticated bool) (*client.Client, error) {
	base := os.Getenv("EDMS_API_URL")
	if base == "" {
		base = defaultAPI
	}
	timeout := 30 * time.Second
	if v := os.Getenv("EDMS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("EDMS_TIMEOUT: %w", err)
		}
		timeout = d
	}
	opts := []client.Option{client.WithTimeout(timeout), client.WithLogger(log.StandardLogger())}
	if !authenticated {
		return client.New(base, opts...)
	}

	if tok := os.Getenv("EDMS_TOKEN"); tok != "" {
		return client.New(base, append(opts, client.WithAuth(client.StaticToken(tok)))...)
	}
	email, pass := os.Getenv("EDMS_EMAIL"), os.Getenv("EDMS_PASSWORD")
	if email == "" || pass == "" {
		return nil, errors.New("set EDMS_TOKEN, or EDMS_EMAIL and EDMS_PASSWORD")
	}
	anon, err := client.New(base, opts...)
	if err != nil {
		return nil, err
	}
	var (
		once  sync.Once
		token string
		lerr  error
	)
	login := client.TokenFunc(func(ctx context.Context) (string, error) {
		once.Do(func() {
			var res *client.LoginResult
			res, lerr = anon.Login(ctx, email, pass)
			if lerr == nil {
				token = res.Token
				log.WithField("email", email).Debug("logged in")
			}
		})
		return token, lerr
	})
	return client.New(base, append(opts, client.WithAuth(login))...)
}

// args parses fs and checks the number of positional arguments.
func args(fs *flag.FlagSet, raw []string, want int) ([]string, error) {
	if err := fs.Parse(raw); err != nil {
		return nil, err
	}
	if fs.NArg() != want {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", fs.Name(), want, fs.NArg())
	}
	return fs.Args(), nil
}

func runLogin(ctx context.Context, raw []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", os.Getenv("EDMS_EMAIL"), "account email")
	pass := fs.String("password", os.Getenv("EDMS_PASSWORD"), "account password")
	if _, err := args(fs, raw, 0); err != nil {
		return err
	}
	c, err := connect(false)
	if err != nil {
		return err
	}
	res, err := c.Login(ctx, *email, *pass)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"user": res.User.Email, "role": res.User.Role}).Info("logged in")
	fmt.Println(res.Token)
	return nil
}

func runForm(ctx context.Context, raw []string) error {
	fs := flag.NewFlagSet("form", flag.ContinueOnError)
	answersFile := fs.String("answers", "", "answers file to apply before rendering")
	pos, err := args(fs, raw, 1)
	if err != nil {
		return err
	}
	c, err := connect(true)
	if err != nil {
		return err
	}
	schema, err := c.LoadForm(ctx, pos[0])
	if err != nil {
		return err
	}
	store := formengine.NewStore(schema)
	if *answersFile != "" {
		if store, err = hydrateFile(schema, *answersFile); err != nil {
			return err
		}
	}
	fmt.Printf("%s (%s)\n", schema.Form().Title, pos[0])
	printTree(os.Stdout, store.Tree(), 1)
	return nil
}

func runValidate(ctx context.Context, raw []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	answersFile := fs.String("answers", "", "answers file")
	pos, err := args(fs, raw, 1)
	if err != nil {
		return err
	}
	if *answersFile == "" {
		return errors.New("validate: -answers is required")
	}
	c, err := connect(true)
	if err != nil {
		return err
	}
	schema, err := c.LoadForm(ctx, pos[0])
	if err != nil {
		return err
	}
	store, err := hydrateFile(schema, *answersFile)
	if err != nil {
		return err
	}
	if err := store.Validate().Err(); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runSubmit(ctx context.Context, raw []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	answersFile := fs.String("answers", "", "answers file")
	pos, err := args(fs, raw, 1)
	if err != nil {
		return err
	}
	if *answersFile == "" {
		return errors.New("submit: -answers is required")
	}
	c, err := connect(true)
	if err != nil {
		return err
	}
	schema, err := c.LoadForm(ctx, pos[0])
	if err != nil {
		return err
	}
	store, err := hydrateFile(schema, *answersFile)
	if err != nil {
		return err
	}
	sub, err := c.SubmitStore(ctx, pos[0], store)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"form": pos[0], "submission": sub.ID, "files": len(sub.Files)}).Info("submitted")
	fmt.Println(sub.ID)
	return nil
}

func runDecision(verb string) func(context.Context, []string) error {
	return func(ctx context.Context, raw []string) error {
		fs := flag.NewFlagSet(verb, flag.ContinueOnError)
		comment := fs.String("comment", "", "comment recorded with the decision")
		pos, err := args(fs, raw, 2)
		if err != nil {
			return err
		}
		formID, stepID := pos[0], pos[1]
		c, err := connect(true)
		if err != nil {
			return err
		}
		proc, err := c.ApprovalProcess(ctx, formID)
		if err != nil {
			return err
		}
		actor, err := c.Actor(ctx)
		if err != nil {
			return err
		}
		if verb == "approve" {
			err = c.Approve(ctx, proc, stepID, actor, *comment)
		} else {
			err = c.Reject(ctx, proc, stepID, actor, *comment)
		}
		if err != nil {
			return err
		}
		printProcess(os.Stdout, proc)
		return nil
	}
}

func printTree(w io.Writer, nodes []*formengine.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		label := n.Field.Label
		if n.Field.Required {
			label += "*"
		}
		switch {
		case n.Field.Repeatable:
			fmt.Fprintf(w, "%s%-24s repeatable, %d instance(s)\n", indent, label, len(n.Instances))
			for i, inst := range n.Instances {
				fmt.Fprintf(w, "%s  [%d]\n", indent, i)
				printTree(w, inst, depth+2)
			}
		case n.Field.IsGroup():
			fmt.Fprintf(w, "%s%s\n", indent, label)
			printTree(w, n.Children, depth+1)
		default:
			line := fmt.Sprintf("%s%-24s %-12s %s", indent, label, n.Field.Type, describe(n.Value))
			if n.ReadOnly {
				line += " (read-only)"
			}
			if len(n.Options) > 0 {
				line += "  {" + strings.Join(n.Options, ", ") + "}"
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, ", ")
	case *formengine.File:
		return fmt.Sprintf("%s (%d bytes)", t.Name, t.Size)
	case []*formengine.File:
		names := make([]string, len(t))
		for i, f := range t {
			names[i] = f.Name
		}
		return strings.Join(names, ", ")
	}
	return fmt.Sprint(v)
}
