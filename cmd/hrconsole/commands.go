package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jrsteele09/go-hr-console/attendance"
	"github.com/jrsteele09/go-hr-console/console"
	"github.com/jrsteele09/go-hr-console/internal/config"
	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/internal/logging"
	"github.com/jrsteele09/go-hr-console/sessions"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var errNotSignedIn = errors.New("not signed in, run login first")

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "login",
			Usage: "Sign in and keep the session for later commands",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
				&cli.StringFlag{Name: "password", EnvVars: []string{"HR_PASSWORD"}, Usage: "Prompted for when empty"},
				&cli.StringFlag{Name: "otp", Usage: "One-time code, prompted for when the account needs one"},
			},
			Action: loginAction,
		},
		{
			Name:   "whoami",
			Usage:  "Show the signed-in employee",
			Action: withSession(whoamiAction),
		},
		{
			Name:   "status",
			Usage:  "Show today's attendance",
			Action: withSession(statusAction),
		},
		{
			Name:   "check-in",
			Usage:  "Start the working session",
			Action: withSession(checkInAction),
		},
		{
			Name:   "check-out",
			Usage:  "End the working session",
			Action: withSession(checkOutAction),
		},
		{
			Name:   "watch",
			Usage:  "Show a live elapsed timer until interrupted",
			Action: withSession(watchAction),
		},
		{
			Name:      "get",
			Usage:     "Send an authenticated GET and print the JSON reply",
			ArgsUsage: "<path>",
			Action:    withSession(getAction),
		},
		{
			Name:  "logout",
			Usage: "Sign out and forget the stored session",
			Action: func(c *cli.Context) error {
				con, err := open(c)
				if err != nil {
					return err
				}
				defer closeConsole(con)
				if _, err := con.Restore(c.Context); err != nil {
					log.Debug().Err(err).Msg("no valid session to sign out of")
				}
				con.Logout(c.Context)
				fmt.Println("Signed out.")
				return nil
			},
		},
	}
}

func open(c *cli.Context) (*console.Console, error) {
	env, err := config.DecodeEnv()
	if err != nil {
		return nil, err
	}
	if api := c.String("api"); api != "" {
		env.APIBaseURL = strings.TrimRight(api, "/")
	}
	cfg := config.From(env)
	logging.Setup(cfg.GetEnv(), cfg.GetLogLevel())
	return console.New(cfg)
}

func closeConsole(con *console.Console) {
	if err := con.Close(); err != nil {
		log.Err(err).Msg("failed to close console")
	}
}

// withSession restores the stored session before running action.
func withSession(action func(*cli.Context, *console.Console) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		con, err := open(c)
		if err != nil {
			return err
		}
		defer closeConsole(con)

		ok, err := con.Restore(c.Context)
		if err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		if !ok {
			return errNotSignedIn
		}
		return action(c, con)
	}
}

func loginAction(c *cli.Context) error {
	con, err := open(c)
	if err != nil {
		return err
	}
	defer closeConsole(con)

	password := c.String("password")
	if password == "" {
		if password, err = prompt("Password: "); err != nil {
			return err
		}
	}

	s, err := con.Login(c.Context, c.String("email"), password)
	if err != nil {
		return err
	}
	if s.State() == sessions.StatePendingVerification {
		code := c.String("otp")
		if code == "" {
			if code, err = prompt(fmt.Sprintf("Code sent to %s: ", s.PendingEmail)); err != nil {
				return err
			}
		}
		if s, err = con.VerifyOTP(c.Context, code); err != nil {
			return err
		}
	}
	fmt.Printf("Signed in as %s.\n", displayName(s.User))
	return nil
}

func whoamiAction(_ *cli.Context, con *console.Console) error {
	u := con.Session().User
	if u == nil {
		return errNotSignedIn
	}
	fmt.Printf("%s <%s>\n", displayName(u), u.Email)
	if u.Role != "" {
		fmt.Printf("Role:       %s\n", u.Role)
	}
	if u.Department != "" {
		fmt.Printf("Department: %s\n", u.Department)
	}
	return nil
}

func statusAction(c *cli.Context, con *console.Console) error {
	if _, err := con.Attendance().FetchCurrentStatus(c.Context); err != nil {
		return err
	}
	printStatus(con.Attendance())
	return nil
}

func checkInAction(c *cli.Context, con *console.Console) error {
	if _, err := con.Attendance().CheckIn(c.Context); err != nil {
		return err
	}
	printStatus(con.Attendance())
	return nil
}

func checkOutAction(c *cli.Context, con *console.Console) error {
	if _, err := con.Attendance().CheckOut(c.Context); err != nil {
		return err
	}
	printStatus(con.Attendance())
	return nil
}

func watchAction(c *cli.Context, con *console.Console) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ended, cancel := context.WithCancel(ctx)
	defer cancel()
	unsubscribe := con.Store().Subscribe(func(s sessions.Session) {
		if !s.IsAuthenticated() {
			cancel()
		}
	})
	defer unsubscribe()

	go func() {
		if err := con.SyncSession(ended); err != nil && !hrerrors.Is(err, hrerrors.ErrUnsupported) {
			log.Err(err).Msg("session sync stopped")
		}
	}()

	rec := con.Attendance()
	rec.OnTick(func(d time.Duration) {
		fmt.Printf("\rWorked %s ", formatElapsed(d))
	})
	if _, err := rec.FetchCurrentStatus(ended); err != nil {
		return err
	}
	printStatus(rec)

	<-ended.Done()
	fmt.Println()
	if !con.Session().IsAuthenticated() {
		return errors.New("signed out")
	}
	return nil
}

func getAction(c *cli.Context, con *console.Console) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("a path is required")
	}
	var out json.RawMessage
	if err := con.Get(c.Context, path, &out); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func printStatus(rec *attendance.Reconciler) {
	st := rec.Current()
	switch st.State {
	case attendance.StateActive:
		fmt.Printf("Checked in at %s, worked %s.\n", st.Session.CheckInTime.Local().Format(time.Kitchen), formatElapsed(rec.Elapsed()))
	case attendance.StateInactive:
		if st.Session.CheckInTime != nil && st.Session.CheckOutTime != nil {
			fmt.Printf("Checked out at %s, worked %s.\n", st.Session.CheckOutTime.Local().Format(time.Kitchen),
				formatElapsed(st.Session.CheckOutTime.Sub(*st.Session.CheckInTime)))
		} else {
			fmt.Println("Not checked in today.")
		}
	default:
		fmt.Println("Attendance status unknown.")
	}
	if st.Session.AutoClosed {
		fmt.Println("An earlier session was closed automatically.")
	}
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func displayName(u *sessions.User) string {
	if u == nil {
		return "unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
