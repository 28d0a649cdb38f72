// Command deskfsctl calls the deskfs tools from a shell, either against a
// running HTTP server or by spawning deskfs on stdio.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wilhg/deskfs/pkg/journal"
	"github.com/wilhg/deskfs/pkg/mcpclient"
	"github.com/wilhg/deskfs/pkg/tool/fstools"
)

const usage = `usage: deskfsctl [flags] <command> [args]

commands:
  tools                    list advertised tools
  list                     list the desktop
  create [-dir] <path>     create a file or folder
  append <path> <content>  append text to a file
  journal [-n N]           print recent calls from the journal DSN

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "deskfsctl: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	url     string
	token   string
	exe     string
	journal string
	timeout time.Duration
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var o options
	fs := flag.NewFlagSet("deskfsctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&o.url, "url", os.Getenv("DESKFS_URL"), "streamable HTTP endpoint, e.g. http://127.0.0.1:8080/mcp")
	fs.StringVar(&o.token, "token", os.Getenv("DESKFS_HTTP_TOKEN"), "bearer token for -url")
	fs.StringVar(&o.exe, "exec", "deskfs", "server binary spawned on stdio when -url is empty")
	fs.StringVar(&o.journal, "journal", os.Getenv("DESKFS_JOURNAL_DSN"), "journal DSN for the journal command")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if rest[0] == "journal" {
		return printJournal(ctx, o.journal, rest[1:], stdout)
	}

	c, err := dial(ctx, o)
	if err != nil {
		return err
	}
	defer c.Close()
	return dispatch(ctx, c, rest, stdout)
}

func dial(ctx context.Context, o options) (*mcpclient.Client, error) {
	if o.url != "" {
		return mcpclient.Dial(ctx, o.url, mcpclient.WithToken(o.token))
	}
	return mcpclient.Spawn(ctx, exec.Command(o.exe))
}

func dispatch(ctx context.Context, c *mcpclient.Client, args []string, stdout io.Writer) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "tools":
		tools, err := c.ListTools(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		for _, t := range tools {
			fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
		}
		return tw.Flush()
	case "list":
		return call(ctx, c, stdout, fstools.NameList, nil)
	case "create":
		fs := flag.NewFlagSet("create", flag.ContinueOnError)
		isDir := fs.Bool("dir", false, "create a folder")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("create: want exactly one path")
		}
		return call(ctx, c, stdout, fstools.NameCreate, map[string]any{"path": fs.Arg(0), "is_dir": *isDir})
	case "append":
		if len(rest) < 2 {
			return errors.New("append: want <path> <content>")
		}
		return call(ctx, c, stdout, fstools.NameAppend, map[string]any{"path": rest[0], "content": strings.Join(rest[1:], " ")})
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func call(ctx context.Context, c *mcpclient.Client, stdout io.Writer, name string, args map[string]any) error {
	res, err := c.CallTool(ctx, name, args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, res.Text)
	return err
}

func printJournal(ctx context.Context, dsn string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("journal", flag.ContinueOnError)
	n := fs.Int("n", 20, "number of records")
	asJSON := fs.Bool("json", false, "print JSON lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if dsn == "" {
		return errors.New("journal: no DSN (set -journal or DESKFS_JOURNAL_DSN)")
	}
	st, err := journal.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	recs, err := st.List(ctx, *n)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOOL\tPATH\tCODE\tDURATION")
	for _, r := range recs {
		code := r.Code
		if code == "" {
			code = "ok"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.CreatedAt.Local().Format(time.RFC3339), r.Tool, r.Path, code, r.Duration)
	}
	return tw.Flush()
}
