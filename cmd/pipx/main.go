package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pipx-client/internal/app"
	"pipx-client/internal/config"
	"pipx-client/internal/domain/auth"
	"pipx-client/internal/domain/notification"
	domainSignal "pipx-client/internal/domain/signal"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/gateway"

	"github.com/joho/godotenv"
)

type flags struct {
	email      string
	password   string
	code       string
	name       string
	userType   string
	id         string
	pair       string
	direction  string
	entry      float64
	stopLoss   float64
	takeProfit float64
	chart      string
	text       string
	page       int
	limit      int
	undo       bool
	unread     bool
	all        bool
}

func main() {
	cmd := flag.String("cmd", "status", "Command: login|otp|register|me|feed|post|like|comment|follow|notifications|plans|subscribe|watch|logout|status")
	var f flags
	flag.StringVar(&f.email, "email", "", "Account email")
	flag.StringVar(&f.password, "password", "", "Account password")
	flag.StringVar(&f.code, "code", "", "One-time code (otp); omit to request one")
	flag.StringVar(&f.name, "name", "", "Full name (register)")
	flag.StringVar(&f.userType, "type", auth.UserTypeUser, "USER or SIGNAL_PROVIDER (register)")
	flag.StringVar(&f.id, "id", "", "Signal, provider, plan or notification id")
	flag.StringVar(&f.pair, "pair", "", "Currency pair, e.g. EURUSD")
	flag.StringVar(&f.direction, "direction", "BUY", "BUY or SELL (post)")
	flag.Float64Var(&f.entry, "entry", 0, "Entry price (post)")
	flag.Float64Var(&f.stopLoss, "sl", 0, "Stop loss (post)")
	flag.Float64Var(&f.takeProfit, "tp", 0, "Take profit (post)")
	flag.StringVar(&f.chart, "chart", "", "Path to a chart image (post)")
	flag.StringVar(&f.text, "text", "", "Comment text")
	flag.IntVar(&f.page, "page", 1, "Page number")
	flag.IntVar(&f.limit, "limit", 20, "Page size")
	flag.BoolVar(&f.undo, "undo", false, "Unlike / unfollow / cancel instead")
	flag.BoolVar(&f.unread, "unread", false, "Only unread notifications")
	flag.BoolVar(&f.all, "all", false, "Log out every device / mark all read")
	server := flag.String("server", "", "Override API base URL (e.g. https://api.pipx.app/api/v1)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}
	cfg := config.Load()
	if *server != "" {
		cfg.APIBaseURL = strings.TrimRight(*server, "/")
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("[MAIN] ❌ Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := app.NewClient(ctx, cfg, logger, app.Options{})
	if err != nil {
		log.Fatalf("[MAIN] ❌ Failed to start client: %v", err)
	}
	defer client.Close()

	client.Auth.Start(ctx)

	if err := run(ctx, client, *cmd, &f); err != nil {
		fmt.Println("Error:", describe(err))
		client.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, c *app.Client, cmd string, f *flags) error {
	switch cmd {
	case "status":
		st := c.Auth.State()
		if !st.LoggedIn {
			fmt.Println("Not logged in")
			return nil
		}
		fmt.Printf("Logged in as %s (device %s)\n", st.UserType, c.DeviceID)
		return nil

	case "login":
		if err := require(f.email != "" && f.password != "", "--email and --password required"); err != nil {
			return err
		}
		st, err := c.Auth.Login(ctx, &auth.LoginRequest{Email: f.email, Password: f.password})
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", st.UserType)
		return nil

	case "otp":
		if err := require(f.email != "", "--email required"); err != nil {
			return err
		}
		if f.code == "" {
			if err := c.Auth.RequestOTP(ctx, f.email); err != nil {
				return err
			}
			fmt.Println("Code sent. Run again with --code.")
			return nil
		}
		st, err := c.Auth.VerifyOTP(ctx, &auth.OTPVerifyRequest{Email: f.email, Code: f.code})
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", st.UserType)
		return nil

	case "register":
		if err := require(f.email != "" && f.password != "" && f.name != "", "--email, --password and --name required"); err != nil {
			return err
		}
		st, err := c.Auth.Register(ctx, &auth.RegisterRequest{
			Email:    f.email,
			Password: f.password,
			FullName: f.name,
			UserType: strings.ToUpper(f.userType),
		})
		if err != nil {
			return err
		}
		if st.LoggedIn {
			fmt.Printf("Registered and logged in as %s\n", st.UserType)
		} else {
			fmt.Println("Registered. Log in to continue.")
		}
		return nil

	case "me":
		me, err := c.Auth.Me(ctx)
		if err != nil {
			return err
		}
		return printJSON(me)

	case "feed":
		filters := domainSignal.ListFilters{Page: f.page, Limit: f.limit, Pair: f.pair}
		var page *domainSignal.Page[domainSignal.Signal]
		var err error
		if f.id != "" {
			page, err = c.Signals.ByProvider(ctx, f.id, filters)
		} else {
			page, err = c.Signals.Feed(ctx, filters)
		}
		if err != nil {
			return err
		}
		for _, s := range page.Items {
			fmt.Printf("%s  %-7s %-4s @ %g  SL %g  TP %g  ♥%d 💬%d  by %s\n",
				s.ID, s.Pair, s.Direction, s.EntryPrice, s.StopLoss, s.TakeProfit, s.Likes, s.Comments, s.ProviderName)
		}
		if page.HasNextPage {
			fmt.Printf("-- more: --page %d --\n", page.Page+1)
		}
		return nil

	case "post":
		req := &domainSignal.CreateSignalRequest{
			Pair:        f.pair,
			Direction:   domainSignal.Direction(strings.ToUpper(f.direction)),
			EntryPrice:  f.entry,
			StopLoss:    f.stopLoss,
			TakeProfit:  f.takeProfit,
			Description: f.text,
		}
		if f.chart != "" {
			data, err := os.ReadFile(f.chart)
			if err != nil {
				return fmt.Errorf("read chart: %w", err)
			}
			req.Chart = data
			req.ChartName = filepath.Base(f.chart)
		}
		s, err := c.Signals.Create(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println("Posted signal", s.ID)
		return nil

	case "like":
		if err := require(f.id != "", "--id required"); err != nil {
			return err
		}
		if f.undo {
			return c.Signals.Unlike(ctx, f.id)
		}
		return c.Signals.Like(ctx, f.id)

	case "comment":
		if err := require(f.id != "", "--id required"); err != nil {
			return err
		}
		if f.text == "" {
			page, err := c.Signals.Comments(ctx, f.id, f.page, f.limit)
			if err != nil {
				return err
			}
			for _, cm := range page.Items {
				fmt.Printf("%s  %s: %s\n", cm.CreatedAt.Local().Format(time.Kitchen), cm.UserName, cm.Text)
			}
			return nil
		}
		_, err := c.Signals.Comment(ctx, f.id, f.text)
		return err

	case "follow":
		if err := require(f.id != "", "--id required"); err != nil {
			return err
		}
		follow := c.Providers.Follow
		if f.undo {
			follow = c.Providers.Unfollow
		}
		res, err := follow(ctx, f.id)
		if err != nil {
			return err
		}
		fmt.Printf("following=%v followers=%d\n", res.Following, res.Followers)
		return nil

	case "notifications":
		if f.all {
			return c.Notifications.MarkAllRead(ctx)
		}
		if f.id != "" {
			return c.Notifications.MarkRead(ctx, f.id)
		}
		items, more, err := c.Notifications.List(ctx, f.page, f.unread)
		if err != nil {
			return err
		}
		for _, n := range items {
			printNotification(n)
		}
		if more {
			fmt.Printf("-- more: --page %d --\n", f.page+1)
		}
		return nil

	case "plans":
		plans, err := c.Subscriptions.Plans(ctx, f.id)
		if err != nil {
			return err
		}
		return printJSON(plans)

	case "subscribe":
		if f.id == "" {
			subs, err := c.Subscriptions.Mine(ctx)
			if err != nil {
				return err
			}
			return printJSON(subs)
		}
		if f.undo {
			return c.Subscriptions.Cancel(ctx, f.id)
		}
		sub, err := c.Subscriptions.Subscribe(ctx, f.id)
		if err != nil {
			return err
		}
		return printJSON(sub)

	case "watch":
		c.Listener.OnNotification(printNotification)
		c.Listener.OnUnreadCount(func(n int) { fmt.Printf("(%d unread)\n", n) })
		log.Println("[WATCH] Listening for notifications, Ctrl-C to stop")
		err := c.Listener.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	case "logout":
		logout := c.Auth.Logout
		if f.all {
			logout = c.Auth.LogoutAll
		}
		if err := logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func require(ok bool, msg string) error {
	if !ok {
		return fmt.Errorf("%s: %w", msg, xerrors.ErrInvalidInput)
	}
	return nil
}

func printNotification(n notification.Notification) {
	mark := " "
	if !n.IsRead {
		mark = "•"
	}
	fmt.Printf("%s %s  %s: %s\n", mark, n.ID, n.Title, n.Message)
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// describe turns client errors into one line for the terminal.
func describe(err error) string {
	switch {
	case errors.Is(err, xerrors.ErrSessionExpired):
		return "your session has expired, please log in again"
	case errors.Is(err, xerrors.ErrNotLoggedIn):
		return "not logged in"
	}
	if gwErr, ok := gateway.AsError(err); ok {
		if gwErr.StatusCode != 0 {
			return fmt.Sprintf("%s (HTTP %d)", gwErr.Message, gwErr.StatusCode)
		}
		return gwErr.Message
	}
	return err.Error()
}
