// driverctl is the command-line driver console: sign in, browse jobs,
// and walk deliveries through the lifecycle against the driver API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/yitethio/liyt-driver/internal/config"
	"github.com/yitethio/liyt-driver/internal/domain"
	"github.com/yitethio/liyt-driver/internal/earnings"
	"github.com/yitethio/liyt-driver/internal/gateway/driverapi"
	"github.com/yitethio/liyt-driver/internal/logx"
	"github.com/yitethio/liyt-driver/internal/metrics"
	"github.com/yitethio/liyt-driver/internal/secstore"
	"github.com/yitethio/liyt-driver/internal/session"
	"github.com/yitethio/liyt-driver/internal/state"
	"github.com/yitethio/liyt-driver/internal/tracker"
)

const usage = `usage: driverctl [flags] <command> [args]

commands:
  login <email> <password>                  sign in and store credentials
  register <email> <password> <full name>   create a driver account
  logout                                    sign out and clear credentials
  profile                                   show the signed-in driver
  deliveries                                list visible deliveries
  show <id>                                 show one delivery
  accept <id>                               accept a pending job
  pickup <id>                               mark an accepted job picked up
  complete <id>                             complete a picked-up job
  advance <id>                              apply the delivery's next action
  wallet                                    show the earnings summary
`

type console struct {
	client  *driverapi.Client
	session *session.Manager
	tracker *tracker.Tracker
	state   *state.Deliveries
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "driverctl: %v\n", err)
		os.Exit(1)
	}

	logger := logx.New(os.Stderr, cfg.LogLevel)
	defer logger.Sync()

	creds, err := secstore.NewFileStore(cfg.Store.Path, []byte(cfg.Store.Secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "driverctl: opening credential store: %v\n", err)
		os.Exit(1)
	}

	var mgr *session.Manager
	client := driverapi.New(cfg.API.BaseURL, creds, logger,
		driverapi.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		driverapi.WithMetrics(driverapi.Metrics{
			Refreshes:       metrics.NewTokenRefreshTotal(),
			RefreshFailures: metrics.NewTokenRefreshFailuresTotal(),
			Replays:         metrics.NewReplayedRequestsTotal(),
		}),
		driverapi.WithSessionExpiredHandler(func() {
			if mgr != nil {
				mgr.HandleSessionExpired()
			}
		}),
	)
	mgr = session.NewManager(client, creds, logger)
	mgr.SetOnExpired(func() {
		fmt.Fprintln(os.Stderr, "session expired, please log in again")
	})

	st := state.NewDeliveries()
	c := &console{
		client:  client,
		session: mgr,
		tracker: tracker.New(client, st, logger),
		state:   st,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.run(ctx, pflag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "driverctl: %v\n", err)
		os.Exit(1)
	}
}

func (c *console) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return c.login(ctx, rest)
	case "register":
		return c.register(ctx, rest)
	case "logout":
		return c.session.Logout(ctx)
	case "profile":
		return c.profile(ctx)
	case "deliveries":
		return c.deliveries(ctx)
	case "show":
		return c.show(ctx, rest)
	case "accept":
		return c.transition(ctx, rest, domain.TransitionAccept)
	case "pickup":
		return c.transition(ctx, rest, domain.TransitionPickup)
	case "complete":
		return c.transition(ctx, rest, domain.TransitionComplete)
	case "advance":
		return c.advance(ctx, rest)
	case "wallet":
		return c.wallet(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *console) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: driverctl login <email> <password>")
	}
	driver, err := c.session.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", driver.DisplayName())
	return nil
}

func (c *console) register(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: driverctl register <email> <password> <full name> [phone] [vehicle] [license]")
	}
	req := driverapi.RegisterRequest{
		Email:    args[0],
		Password: args[1],
		FullName: args[2],
	}
	if len(args) > 3 {
		req.Phone = args[3]
	}
	if len(args) > 4 {
		req.VehicleType = args[4]
	}
	if len(args) > 5 {
		req.LicenseNumber = args[5]
	}

	driver, err := c.session.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("registered and signed in as %s\n", driver.DisplayName())
	return nil
}

func (c *console) profile(ctx context.Context) error {
	driver, ok, err := c.session.LoadUser(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not signed in")
	}
	fmt.Printf("%s\n", driver.DisplayName())
	fmt.Printf("  email:   %s\n", driver.Email)
	if driver.Phone != "" {
		fmt.Printf("  phone:   %s\n", driver.Phone)
	}
	if driver.VehicleType != "" {
		fmt.Printf("  vehicle: %s\n", driver.VehicleType)
	}
	if driver.Rating != nil {
		fmt.Printf("  rating:  %.1f\n", *driver.Rating)
	}
	return nil
}

func (c *console) deliveries(ctx context.Context) error {
	list, err := c.client.Deliveries(ctx)
	if err != nil {
		return err
	}
	c.state.ReplaceAll(list)

	if len(list) == 0 {
		fmt.Println("no deliveries")
		return nil
	}
	for _, d := range list {
		line := fmt.Sprintf("#%d  %-10s  ETB %8.2f  %s -> %s",
			d.ID, d.Status, d.Price, d.Pickup.Address, d.Dropoff.Address)
		if action, ok := tracker.NextAction(d); ok {
			line += fmt.Sprintf("  [%s]", action.Label)
		}
		fmt.Println(line)
	}
	return nil
}

func (c *console) show(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	d, err := c.client.Delivery(ctx, id)
	if err != nil {
		return err
	}
	c.state.Apply(d)
	printDelivery(d)
	return nil
}

func (c *console) transition(ctx context.Context, args []string, tr domain.Transition) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	updated, err := c.tracker.Apply(ctx, id, tr)
	if err != nil {
		return err
	}
	fmt.Printf("delivery #%d is now %s\n", updated.ID, updated.Status)
	return nil
}

func (c *console) advance(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	d, err := c.client.Delivery(ctx, id)
	if err != nil {
		return err
	}
	updated, err := c.tracker.Advance(ctx, d)
	if err != nil {
		return err
	}
	fmt.Printf("delivery #%d is now %s\n", updated.ID, updated.Status)
	return nil
}

func (c *console) wallet(ctx context.Context) error {
	list, err := c.client.Deliveries(ctx)
	if err != nil {
		return err
	}
	summary := earnings.Summarize(list, time.Now())

	fmt.Printf("today:     ETB %.2f\n", summary.TodayEarnings)
	fmt.Printf("total:     ETB %.2f\n", summary.TotalEarnings)
	fmt.Printf("completed: %d of %d jobs\n", summary.CompletedJobs, summary.TotalJobs)
	if len(summary.Transactions) > 0 {
		fmt.Println("recent transactions:")
		for _, tx := range summary.Transactions {
			fmt.Printf("  %s  +ETB %8.2f  %s\n",
				tx.Date.Format("Jan 02 15:04"), tx.Amount, tx.Description)
		}
	}
	return nil
}

func printDelivery(d domain.Delivery) {
	fmt.Printf("delivery #%d (%s)\n", d.ID, d.PublicID)
	fmt.Printf("  status:  %s\n", d.Status)
	fmt.Printf("  price:   ETB %.2f\n", d.Price)
	if d.Description != "" {
		fmt.Printf("  note:    %s\n", d.Description)
	}
	printStop("pickup", d.Pickup)
	printStop("dropoff", d.Dropoff)
	if d.Customer != nil {
		fmt.Printf("  customer: %s %s\n", d.Customer.FullName, d.Customer.Phone)
	}
	if action, ok := tracker.NextAction(d); ok {
		fmt.Printf("  next:    %s\n", action.Label)
	}
}

func printStop(label string, s domain.Stop) {
	coords := fmt.Sprintf("%.4f,%.4f", s.Coordinates.Latitude, s.Coordinates.Longitude)
	if s.CoordinatesEstimated {
		coords += " (estimated)"
	}
	fmt.Printf("  %-8s %s, %s  @ %s\n", label+":", s.Address, s.City, coords)
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one delivery id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid delivery id %q", args[0])
	}
	return id, nil
}
