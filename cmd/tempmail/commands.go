package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/nhle/tempmail/internal/app"
	"github.com/nhle/tempmail/internal/export"
	"github.com/nhle/tempmail/internal/model"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "tempmail",
		Usage: "disposable mailboxes from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config.yaml",
				Value:   model.DefaultConfigPath(),
				EnvVars: []string{"TEMPMAIL_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "verbose development logging",
			},
		},
		Action: runUI,
		Commands: []*cli.Command{
			{
				Name:   "new",
				Usage:  "create a random mailbox",
				Action: runNew,
			},
			{
				Name:  "custom",
				Usage: "create a mailbox with a chosen address",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "local", Usage: "local part", Required: true},
					&cli.StringFlag{Name: "domain", Usage: "domain (see 'domains')", Required: true},
					&cli.StringFlag{Name: "provider", Usage: "provider id", Value: "mailtm"},
				},
				Action: runCustom,
			},
			{
				Name:  "domains",
				Usage: "list domains for custom mailboxes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Usage: "provider id", Value: "mailtm"},
				},
				Action: runDomains,
			},
			{
				Name:      "move",
				Usage:     "re-create the active mailbox's name on another domain",
				ArgsUsage: "<domain>",
				Action:    runMove,
			},
			{
				Name:   "accounts",
				Usage:  "list mailboxes",
				Action: runAccounts,
			},
			{
				Name:      "switch",
				Usage:     "activate a mailbox by id or address",
				ArgsUsage: "<id|address>",
				Action:    runSwitch,
			},
			{
				Name:   "inbox",
				Usage:  "fetch and list the active mailbox",
				Action: runInbox,
			},
			{
				Name:      "read",
				Usage:     "show one message",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "eml", Usage: "also write the message to `FILE`"},
					&cli.BoolFlag{Name: "html", Usage: "print the repaired html instead of text"},
					&cli.BoolFlag{Name: "images", Usage: "load remote images"},
				},
				Action: runRead,
			},
			{
				Name:      "rm",
				Usage:     "delete a message",
				ArgsUsage: "<id>",
				Action:    runRemoveMessage,
			},
			{
				Name:      "drop",
				Usage:     "forget the active mailbox, or one by id",
				ArgsUsage: "[id]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "forget every mailbox"},
				},
				Action: runDrop,
			},
			{
				Name:   "watch",
				Usage:  "poll the active mailbox and print new mail",
				Action: runWatch,
			},
			{
				Name:   "ui",
				Usage:  "open the terminal client",
				Action: runUI,
			},
		},
	}
}

func runNew(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	mb, err := e.accounts.CreateRandom(c.Context)
	if err != nil {
		return err
	}
	printCreated(c.App.Writer, mb)
	return nil
}

func runCustom(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	mb, err := e.accounts.CreateCustom(c.Context,
		c.String("local"), c.String("domain"), c.String("provider"))
	if err != nil {
		return err
	}
	printCreated(c.App.Writer, mb)
	return nil
}

func runDomains(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	domains, err := e.accounts.Domains(c.Context, c.String("provider"))
	if err != nil {
		return err
	}
	for _, d := range domains {
		fmt.Fprintln(c.App.Writer, d)
	}
	return nil
}

func runMove(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	mb, err := e.accounts.ChangeDomain(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	printCreated(c.App.Writer, mb)
	return nil
}

func runAccounts(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	remaining, err := e.accounts.Remaining(c.Context)
	if err != nil {
		return err
	}
	printAccounts(c.App.Writer, e.accounts.List(), e.accounts.Active(), remaining)
	return nil
}

func runSwitch(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	id := resolveMailbox(e.accounts.List(), c.Args().First())
	mb, err := e.accounts.Switch(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "active:", mb.Address)
	return nil
}

func runInbox(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	mb, err := e.activeMailbox()
	if err != nil {
		return err
	}

	_, _ = e.inbox.Poll(c.Context)
	printPolled(c.App.Writer, c.App.ErrWriter, mb.Address, e.inbox.Emails(), e.inbox.Status().Err, time.Now())
	return nil
}

func runRead(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	mb, err := e.activeMailbox()
	if err != nil {
		return err
	}

	d, ok := e.fetcher.Fetch(c.Context, *mb, c.Args().First())
	if !ok {
		return fmt.Errorf("message %s is unavailable", c.Args().First())
	}
	if !c.Bool("images") {
		d = withImagesBlocked(d)
	}

	if path := c.String("eml"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := export.WriteEML(f, d, mb.Address); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintln(c.App.ErrWriter, "wrote", path)
	}
	return printDetail(c.App.Writer, d, c.Bool("html"))
}

func runRemoveMessage(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	mb, err := e.activeMailbox()
	if err != nil {
		return err
	}
	// Close waits for the backend delete to finish.
	e.inbox.Delete(*mb, c.Args().First())
	return nil
}

func runDrop(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	if c.Bool("all") {
		return e.accounts.RemoveAll(c.Context)
	}

	id := resolveMailbox(e.accounts.List(), c.Args().First())
	if id == "" {
		mb, err := e.activeMailbox()
		if err != nil {
			return err
		}
		id = mb.ID
	}
	if err := e.accounts.Remove(c.Context, id); err != nil {
		return err
	}
	if next := e.accounts.Active(); next != nil {
		fmt.Fprintln(c.App.Writer, "active:", next.Address)
	}
	return nil
}

func runWatch(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	mb, err := e.activeMailbox()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopJanitor, err := e.janitor(ctx)
	if err != nil {
		return err
	}
	defer stopJanitor()

	fmt.Fprintln(c.App.ErrWriter, "watching", mb.Address, "(ctrl+c to stop)")
	e.inbox.Start()
	return watch(ctx, c.App.Writer, e.inbox.Updates(), time.Now)
}

func runUI(c *cli.Context) error {
	e, err := openEnv(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	stopJanitor, err := e.janitor(c.Context)
	if err != nil {
		return err
	}
	defer stopJanitor()

	m := app.New(app.Deps{
		Accounts:  e.accounts,
		Inbox:     e.inbox,
		Fetcher:   e.fetcher,
		Providers: e.cfg.Providers,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
