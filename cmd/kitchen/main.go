// Command kitchen is a terminal client for the family kitchen server. It
// keeps its session and an offline copy of the family's data on disk (or in
// Redis), syncs on start and, with `watch`, stays subscribed to changes.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/backend"
	"github.com/iliyamo/family-kitchen/internal/config"
	"github.com/iliyamo/family-kitchen/internal/localstore"
	"github.com/iliyamo/family-kitchen/internal/logger"
	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/state"
	"github.com/iliyamo/family-kitchen/internal/syncer"
)

const usage = `usage: kitchen <command> [flags] [args]

account:
  signup -email E -password P       create an account
  login  -email E -password P       sign in
  login  -oauth [-provider google]  sign in through the browser
  setup  -name N -role R -family F  finish signup and join a family
  lang   en|ar                      change the UI language
  logout

planner (acts on -date, default today):
  status                            print today's plan, pantry and cart
  watch                             print the plan again after every change
  select  MEAL_ID Lunch|Dinner
  confirm MEAL_ID Lunch|Dinner [HH:MM]
  ready   CONFIRMED_ID HH:MM
  pick    Lunch|Dinner NAME...      add a meal and pick it

pantry and cart:
  pantry-add NAME QTY [UNIT]
  pantry-set ID QTY | pantry-set -delta ID N
  pantry-rm  ID
  cart-add   NAME [QTY]
  cart-toggle ID
  cart-rm    ID

chat:
  say TEXT...
`

type app struct {
	cfg     config.ClientConfig
	log     *zap.Logger
	api     *backend.Client
	local   *localstore.Store
	kitchen *syncer.Coordinator

	live atomic.Bool // print every sync, set by watch
}

func main() { os.Exit(realMain()) }

// realMain returns the exit code so deferred cleanup runs before exit.
func realMain() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	config.LoadDotEnv()
	cfg := config.LoadClient()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "kitchen-cli")
	if err != nil {
		log.Printf("logger: %v", err)
		return 1
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, zl)
	if err != nil {
		return report(err)
	}
	defer a.kitchen.Close()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		return report(err)
	}
	return 0
}

func report(err error) int {
	switch {
	case errors.Is(err, syncer.ErrNotAuthenticated):
		fmt.Fprintln(os.Stderr, "not signed in: run `kitchen login` first")
	case errors.Is(err, syncer.ErrProfileSetupRequired):
		fmt.Fprintln(os.Stderr, "signup incomplete: run `kitchen setup`")
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return 1
}

func newApp(ctx context.Context, cfg config.ClientConfig, zl *zap.Logger) (*app, error) {
	var blob localstore.Blob
	if cfg.CacheRedis != "" {
		rdb := config.NewRedisClientAddr(cfg.CacheRedis)
		if rdb == nil {
			return nil, fmt.Errorf("redis %s unreachable", cfg.CacheRedis)
		}
		blob = localstore.NewRedisBlob(rdb, "kitchen:")
	} else {
		fb, err := localstore.NewFileBlob(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		blob = fb
	}
	local := localstore.New(blob)

	api := backend.New(cfg.APIURL, cfg.HTTPTimeout, zl)
	sess, err := local.LoadSession(ctx)
	if err != nil {
		zl.Warn("stored session unreadable, signing out", zap.Error(err))
	}
	api.SetSession(sess)
	api.OnSessionChange(func(s *backend.Session) {
		if err := local.SaveSession(context.Background(), s); err != nil {
			zl.Warn("session not saved", zap.Error(err))
		}
	})

	a := &app{cfg: cfg, log: zl, api: api, local: local}
	a.kitchen = syncer.New(api, api, api, local, syncer.Options{
		SyncTimeout: cfg.SyncTimeout,
		Logger:      zl,
		OnSync: func(s state.Snapshot) {
			if a.live.Load() {
				fmt.Println("---- updated", s.SyncedAt.Local().Format("15:04:05"))
				printSnapshot(os.Stdout, s)
			}
		},
	})
	return a, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup", "login":
		return a.signIn(ctx, cmd, args)
	case "setup":
		return a.setup(ctx, args)
	case "logout":
		return a.kitchen.SignOut(ctx)
	case "status":
		return a.status(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}
	return a.mutation(ctx, cmd, args)
}

func (a *app) signIn(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	oauth := fs.Bool("oauth", false, "sign in with an OAuth provider")
	provider := fs.String("provider", "google", "OAuth provider")
	_ = fs.Parse(args)

	var (
		sess *backend.Session
		err  error
	)
	switch {
	case *oauth:
		fmt.Println("Open this URL in a browser and sign in:")
		fmt.Println(" ", a.api.OAuthURL(*provider, a.cfg.RedirectURL))
		fmt.Print("Then paste the address you were sent back to: ")
		line, rerr := bufio.NewReader(os.Stdin).ReadString('\n')
		if rerr != nil && line == "" {
			return rerr
		}
		sess, err = a.api.CompleteOAuth(ctx, line)
	case cmd == "signup":
		sess, err = a.api.SignUp(ctx, *email, *password)
	default:
		sess, err = a.api.SignIn(ctx, *email, *password)
	}
	if err != nil {
		return err
	}
	fmt.Println("signed in as", sess.Email)

	switch err := a.kitchen.Bootstrap(ctx); {
	case errors.Is(err, syncer.ErrProfileSetupRequired):
		fmt.Println("next: kitchen setup -name NAME -role Mother|Father|Son|Daughter -family CODE")
		return nil
	case err != nil:
		return err
	}
	printSummary(a.kitchen)
	return nil
}

func (a *app) setup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	name := fs.String("name", "", "display name")
	role := fs.String("role", "", "Mother, Father, Son or Daughter")
	family := fs.String("family", "", "family code to create or join")
	avatar := fs.String("avatar", "", "avatar URL")
	lang := fs.String("lang", "", "en or ar")
	_ = fs.Parse(args)

	r, ok := parseRole(*role)
	if !ok {
		return fmt.Errorf("role must be one of Mother, Father, Son, Daughter")
	}
	p, err := a.kitchen.CompleteSetup(ctx, model.Profile{
		Name:       strings.TrimSpace(*name),
		Role:       r,
		AvatarURL:  *avatar,
		Language:   model.Language(*lang),
		FamilyCode: *family,
	})
	if err != nil {
		return err
	}
	fmt.Printf("welcome %s, you are in family %q\n", p.Name, p.FamilyCode)
	return nil
}

// open paints the offline copy, then resumes the session and syncs.
func (a *app) open(ctx context.Context, fs *flag.FlagSet, args []string) ([]string, error) {
	date := fs.String("date", "", "day to plan, YYYY-MM-DD")
	_ = fs.Parse(args)

	if a.kitchen.Hydrate(ctx) {
		a.log.Debug("painted offline copy")
	}
	if err := a.kitchen.Bootstrap(ctx); err != nil {
		return nil, err
	}
	if *date != "" {
		if err := a.kitchen.SetDate(ctx, *date); err != nil {
			return nil, err
		}
	}
	return fs.Args(), nil
}

func (a *app) status(ctx context.Context, args []string) error {
	if _, err := a.open(ctx, flag.NewFlagSet("status", flag.ExitOnError), args); err != nil {
		return err
	}
	printSummary(a.kitchen)
	return nil
}

func (a *app) watch(ctx context.Context, args []string) error {
	if _, err := a.open(ctx, flag.NewFlagSet("watch", flag.ExitOnError), args); err != nil {
		return err
	}
	printSummary(a.kitchen)
	a.live.Store(true)
	fmt.Println("watching", a.kitchen.Watching(), "- ctrl-c to stop")
	<-ctx.Done()
	return nil
}

func (a *app) mutation(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	delta := fs.Bool("delta", false, "pantry-set: treat QTY as a change")
	args, err := a.open(ctx, fs, args)
	if err != nil {
		return err
	}
	k := a.kitchen

	switch cmd {
	case "lang":
		if err = need(args, 1); err == nil {
			err = k.SetLanguage(ctx, model.Language(args[0]))
		}
	case "select":
		if err = need(args, 2); err == nil {
			err = k.SelectMeal(ctx, args[0], model.Slot(args[1]))
		}
	case "confirm":
		if err = need(args, 2); err == nil {
			err = k.ConfirmMeal(ctx, args[0], model.Slot(args[1]), optional(args, 2))
		}
	case "ready":
		if err = need(args, 2); err == nil {
			err = k.UpdateReadyTime(ctx, args[0], args[1])
		}
	case "pick":
		if err = need(args, 2); err == nil {
			err = k.AddAndPickMeal(ctx, strings.Join(args[1:], " "), model.Slot(args[0]))
		}
	case "pantry-add":
		var qty int
		if err = need(args, 2); err == nil {
			if qty, err = strconv.Atoi(args[1]); err == nil {
				err = k.AddInventoryItem(ctx, args[0], qty, optional(args, 2))
			}
		}
	case "pantry-set":
		var n int
		if err = need(args, 2); err == nil {
			if n, err = strconv.Atoi(args[1]); err == nil {
				if *delta {
					err = k.AdjustInventory(ctx, args[0], n)
				} else {
					err = k.SetInventoryQuantity(ctx, args[0], n)
				}
			}
		}
	case "pantry-rm":
		if err = need(args, 1); err == nil {
			err = k.DeleteInventoryItem(ctx, args[0])
		}
	case "cart-add":
		qty := 1
		if err = need(args, 1); err == nil {
			if s := optional(args, 1); s != "" {
				qty, err = strconv.Atoi(s)
			}
			if err == nil {
				err = k.AddCartItem(ctx, args[0], qty)
			}
		}
	case "cart-toggle":
		if err = need(args, 1); err == nil {
			err = k.ToggleCartItem(ctx, args[0])
		}
	case "cart-rm":
		if err = need(args, 1); err == nil {
			err = k.RemoveCartItem(ctx, args[0])
		}
	case "say":
		if err = need(args, 1); err == nil {
			err = k.SendMessage(ctx, strings.Join(args, " "))
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		if st := backend.StatusOf(err); st == 403 {
			return fmt.Errorf("%s: your role is not allowed to do that", cmd)
		}
		return err
	}
	printSummary(k)
	return nil
}

func need(args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseRole(s string) (model.Role, bool) {
	for _, r := range []model.Role{model.RoleMother, model.RoleFather, model.RoleSon, model.RoleDaughter} {
		if strings.EqualFold(s, string(r)) {
			return r, true
		}
	}
	return "", false
}
