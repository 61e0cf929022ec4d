package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/example/sweetshop-storefront/internal/config"
	"github.com/example/sweetshop-storefront/internal/infrastructure/store"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/example/sweetshop-storefront/internal/storefront"
	"github.com/example/sweetshop-storefront/internal/view"
	"github.com/sirupsen/logrus"
)

const usage = `Usage: storefront [flags] <command> [args]

Commands:
  products                     list the catalog
  product <id>                 show one product
  add <id> [qty]               add units to the cart (default 1)
  inc <id> | dec <id>          change a cart line by one unit
  remove <id>                  remove a line from the cart
  clear                        empty the cart
  cart                         show the cart
  checkout [flags]             place the order (-address -city -postal -country)
  orders                       list your orders
  orders show <id>             show one order
  orders retry <id>            retry payment for an unpaid order
  login [flags]                sign in (-email -password)
  logout                       sign out
  profile                      show your profile
  profile update [flags]       change name, email or password

Flags:
`

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	envFile := fs.String("env", ".env", "optional env file")
	ephemeral := fs.Bool("ephemeral", false, "keep the cart and session in memory only")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[Storefront] Failed to load config:", err)
		return 1
	}
	log := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := storefront.Options{}
	if *ephemeral {
		opts.KV = store.NewMemoryStore()
	}
	log.WithFields(logrus.Fields{
		"backend": cfg.BackendURL,
		"storage": cfg.StorageBackend,
		"payment": cfg.PaymentMode,
	}).Debug("[Storefront] Starting")

	sf, closeFn, err := storefront.Build(ctx, cfg, log, opts)
	if err != nil {
		log.WithError(err).Error("[Storefront] Failed to start")
		return 1
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.WithError(err).Warn("[Storefront] Failed to close resources")
		}
	}()

	v := view.New(sf, os.Stdout, view.NewToasts(os.Stderr), log)
	if err := dispatch(ctx, v, fs.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("invalid usage")

func dispatch(ctx context.Context, v *view.View, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "products":
		return v.Products(ctx)
	case "product":
		if len(rest) != 1 {
			return errUsage
		}
		return v.Product(ctx, rest[0])
	case "add":
		if len(rest) < 1 || len(rest) > 2 {
			return errUsage
		}
		qty := 1
		if len(rest) == 2 {
			n, err := strconv.Atoi(rest[1])
			if err != nil {
				return errUsage
			}
			qty = n
		}
		return v.AddToCart(ctx, rest[0], qty)
	case "inc", "dec":
		if len(rest) != 1 {
			return errUsage
		}
		delta := 1
		if cmd == "dec" {
			delta = -1
		}
		return v.ChangeQuantity(ctx, rest[0], delta)
	case "remove":
		if len(rest) != 1 {
			return errUsage
		}
		return v.RemoveFromCart(ctx, rest[0])
	case "clear":
		return v.ClearCart(ctx)
	case "cart":
		return v.Cart()
	case "checkout":
		return checkout(ctx, v, rest)
	case "orders":
		return orders(ctx, v, rest)
	case "login":
		return login(ctx, v, rest)
	case "logout":
		return v.Logout(ctx)
	case "profile":
		return profile(ctx, v, rest)
	}
	return errUsage
}

func checkout(ctx context.Context, v *view.View, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	var addr shopapi.ShippingAddress
	fs.StringVar(&addr.Address, "address", "", "street address")
	fs.StringVar(&addr.City, "city", "", "city")
	fs.StringVar(&addr.PostalCode, "postal", "", "postal code")
	fs.StringVar(&addr.Country, "country", "", "country")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return v.Checkout(ctx, addr)
}

func orders(ctx context.Context, v *view.View, args []string) error {
	switch {
	case len(args) == 0:
		return v.Orders(ctx)
	case len(args) == 2 && args[0] == "show":
		return v.Order(ctx, args[1])
	case len(args) == 2 && args[0] == "retry":
		return v.RetryPayment(ctx, args[1])
	}
	return errUsage
}

func login(ctx context.Context, v *view.View, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("STOREFRONT_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil || *email == "" {
		return errUsage
	}
	return v.Login(ctx, *email, *password)
}

func profile(ctx context.Context, v *view.View, args []string) error {
	if len(args) == 0 {
		return v.Profile(ctx)
	}
	if args[0] != "update" {
		return errUsage
	}
	fs := flag.NewFlagSet("profile update", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "new password (optional)")
	confirm := fs.String("confirm", "", "repeat the new password")
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}
	return v.UpdateProfile(ctx, *name, *email, *password, *confirm)
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}
