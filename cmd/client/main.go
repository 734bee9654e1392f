package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/samplerpa08-cpu/tourplan/internal/client/cache"
	"github.com/samplerpa08-cpu/tourplan/internal/client/gateway"
	"github.com/samplerpa08-cpu/tourplan/internal/client/syncer"
	"github.com/samplerpa08-cpu/tourplan/internal/logger"
	"github.com/samplerpa08-cpu/tourplan/internal/models"
)

var (
	version   string
	buildDate string
)

// repl runs the interactive shell loop, accepting commands to manage the
// weekly planner. Every mutation lands in the local cache first; the sync
// engine replays it to the server in the background.
func repl(engine *syncer.Engine, gw *gateway.Gateway) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("tourplan> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		ctx := context.Background()

		switch args[0] {
		case "help":
			fmt.Println("Available commands:")
			fmt.Println("  login <name> <pin>")
			fmt.Println("  users")
			fmt.Println("  adduser <name> <pin> [admin]")
			fmt.Println("  deluser <name>")
			fmt.Println("  decrypt <name>  (requires -admin-secret)")
			fmt.Println("  week")
			fmt.Println("  plans [weekId]")
			fmt.Println("  setplan <name> <slot1|...|slot7> [weekId]")
			fmt.Println("  custom <name> <yyyy-mm-dd> <location> [weekId]")
			fmt.Println("  override set <admin> <yyyy-mm-dd> | override clear")
			fmt.Println("  sync, status, online, offline, exit")

		case "login":
			if len(args) < 3 {
				fmt.Println("Usage: login <name> <pin>")
				continue
			}
			u, err := engine.Login(ctx, args[1], args[2])
			if err != nil {
				fmt.Println("Login failed:", err)
				continue
			}
			if u.IsAdmin {
				fmt.Printf("Welcome, %s (admin)\n", u.Name)
			} else {
				fmt.Printf("Welcome, %s\n", u.Name)
			}

		case "users":
			for _, u := range engine.Users(ctx) {
				if u.IsAdmin {
					fmt.Printf("%s (admin)\n", u.Name)
				} else {
					fmt.Println(u.Name)
				}
			}

		case "adduser":
			if len(args) < 3 {
				fmt.Println("Usage: adduser <name> <pin> [admin]")
				continue
			}
			isAdmin := len(args) > 3 && args[3] == "admin"
			if err := engine.SetUser(ctx, args[1], args[2], isAdmin); err != nil {
				fmt.Println("Failed:", err)
				continue
			}
			fmt.Println("User saved")

		case "decrypt":
			if len(args) < 2 {
				fmt.Println("Usage: decrypt <name>")
				continue
			}
			res, err := gw.DecryptPassword(ctx, args[1])
			if err != nil {
				fmt.Println("Failed:", err)
				continue
			}
			fmt.Println("PIN:", res.Password)

		case "deluser":
			if len(args) < 2 {
				fmt.Println("Usage: deluser <name>")
				continue
			}
			if err := engine.RemoveUser(ctx, args[1]); err != nil {
				fmt.Println("Failed:", err)
				continue
			}
			fmt.Println("User deleted")

		case "week":
			w, err := engine.EffectiveWeek(time.Now())
			if err != nil {
				fmt.Println("Failed:", err)
				continue
			}
			fmt.Println("Week", w.ID)
			for i, h := range w.Headers {
				fmt.Printf("  %s  %s\n", w.DayDates[i], h)
			}

		case "plans":
			weekID, err := resolveWeek(engine, args, 1)
			if err != nil {
				fmt.Println("Failed:", err)
				continue
			}
			plans := engine.Plans(ctx, weekID)
			if len(plans) == 0 {
				fmt.Println("No plans for week", weekID)
				continue
			}
			fmt.Println("Week", weekID)
			for name, slots := range plans {
				fmt.Printf("  %s: %s\n", name, strings.Join(slots, " | "))
			}

		case "setplan":
			if len(args) < 3 {
				fmt.Println("Usage: setplan <name> <slot1|...|slot7> [weekId]")
				continue
			}
			weekID, err := resolveWeek(engine, args, 3)
			if err != nil {
				fmt.Println("Failed:", err)
				continue
			}
			slots := strings.Split(args[2], "|")
			if len(slots) != models.DaysPerWeek {
				fmt.Printf("A plan needs %d pipe-separated slots, got %d\n", models.DaysPerWeek, len(slots))
				continue
			}
			if err := engine.SetPlan(ctx, weekID, args[1], slots); err != nil {
				fmt.Println("Failed:", err)
				continue
			}
			fmt.Println("Plan saved")

		case "custom":
			if len(args) < 4 {
				fmt.Println("Usage: custom <name> <yyyy-mm-dd> <location> [weekId]")
				continue
			}
			weekID, err := resolveWeek(engine, args, 4)
			if err != nil {
				fmt.Println("Failed:", err)
				continue
			}
			if err := engine.AddCustomLocation(ctx, args[1], weekID, args[2], args[3]); err != nil {
				fmt.Println("Failed:", err)
				continue
			}
			fmt.Println("Custom location saved")

		case "override":
			if len(args) < 2 {
				fmt.Println("Usage: override set <admin> <yyyy-mm-dd> | override clear")
				continue
			}
			switch args[1] {
			case "set":
				if len(args) < 4 {
					fmt.Println("Usage: override set <admin> <yyyy-mm-dd>")
					continue
				}
				if err := engine.SetOverride(ctx, args[2], args[3]); err != nil {
					fmt.Println("Failed:", err)
					continue
				}
				fmt.Println("Override set")
			case "clear":
				if err := engine.ClearOverride(ctx); err != nil {
					fmt.Println("Failed:", err)
					continue
				}
				fmt.Println("Override cleared")
			default:
				fmt.Println("Usage: override set <admin> <yyyy-mm-dd> | override clear")
			}

		case "online":
			gw.SetOnline(true)
			fmt.Println("Marked server online")

		case "offline":
			gw.SetOnline(false)
			fmt.Println("Marked server offline")

		case "sync":
			engine.Replay(ctx)
			st := engine.Status()
			fmt.Printf("Queue length: %d\n", st.QueueLen)

		case "status":
			st := engine.Status()
			state := "offline"
			if st.Online {
				state = "online"
			}
			fmt.Printf("Server: %s\n", state)
			fmt.Printf("Pending changes: %d\n", st.QueueLen)
			if !st.LastSync.IsZero() {
				fmt.Printf("Last sync: %s\n", st.LastSync.Format(time.RFC3339))
			} else {
				fmt.Println("Last sync: never")
			}

		case "exit":
			fmt.Println("Bye")
			return

		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

// resolveWeek returns args[idx] as the week id when given, otherwise the
// effective current week (honoring a local admin override).
func resolveWeek(engine *syncer.Engine, args []string, idx int) (string, error) {
	if len(args) > idx {
		return args[idx], nil
	}
	w, err := engine.EffectiveWeek(time.Now())
	if err != nil {
		return "", err
	}
	return w.ID, nil
}

func main() {
	var (
		baseURL     string
		storePath   string
		adminSecret string
		interval    time.Duration
		logLevel    string
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&storePath, "store", "tourplan.json", "path to the local cache file")
	flag.StringVar(&adminSecret, "admin-secret", "", "admin API secret for protected endpoints")
	flag.DurationVar(&interval, "interval", 30*time.Second, "background sync interval")
	flag.StringVar(&logLevel, "log-level", "warn", "logging level")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Tourplan Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	zl := logger.New()
	defer func() { _ = zl.Log.Sync() }()
	if err := zl.Init(logLevel); err != nil {
		log.Fatal(err)
	}

	store, err := cache.Open(storePath, zl.Log)
	if err != nil {
		var se *cache.StorageError
		if errors.As(err, &se) {
			log.Fatalf("cannot open local cache: %v", err)
		}
		log.Fatal(err)
	}

	gw := gateway.New(baseURL, &http.Client{}, zl.Log,
		gateway.WithAdminSecret(adminSecret))

	engine := syncer.New(store, gw, zl.Log, syncer.WithInterval(interval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gw.StartProbe(ctx, interval)
	go engine.Run(ctx)

	repl(engine, gw)
}
