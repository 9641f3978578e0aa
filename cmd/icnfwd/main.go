// Command icnfwd is the ICN forwarding daemon, grounded on
// fw/cmd/cmd.go's CmdYaNFD (cobra root command, config-file argument,
// signal-driven shutdown) and spec.md §6's CLI surface: `daemon [--port P]
// [--daemon] [--capacity N] [--log FACILITY=LEVEL] [--log-file F]
// [--config F]`.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/named-data/icnfwd/internal/clock"
	"github.com/named-data/icnfwd/internal/config"
	"github.com/named-data/icnfwd/internal/connection"
	"github.com/named-data/icnfwd/internal/contentstore"
	"github.com/named-data/icnfwd/internal/ctrlsock"
	"github.com/named-data/icnfwd/internal/dispatcher"
	"github.com/named-data/icnfwd/internal/face"
	"github.com/named-data/icnfwd/internal/fib"
	"github.com/named-data/icnfwd/internal/logging"
	"github.com/named-data/icnfwd/internal/messenger"
	"github.com/named-data/icnfwd/internal/pit"
	"github.com/named-data/icnfwd/internal/processor"
	"github.com/named-data/icnfwd/internal/statusapi"
)

var flags struct {
	port       int
	daemon     bool
	capacity   int
	logSpecs   []string
	logFile    string
	configFile string
	statusAddr string
}

var cmdDaemon = &cobra.Command{
	Use:     "daemon",
	Short:   "Run the ICN forwarding daemon",
	Version: "0.1.0",
	RunE:    runDaemon,
}

func init() {
	cmdDaemon.Flags().IntVar(&flags.port, "port", ctrlsock.DefaultPort, "control-plane socket port")
	cmdDaemon.Flags().BoolVar(&flags.daemon, "daemon", false, "background the process after startup (logged, not actually forked)")
	cmdDaemon.Flags().IntVar(&flags.capacity, "capacity", 0, "override the content store capacity (0: use profile/default)")
	cmdDaemon.Flags().StringArrayVar(&flags.logSpecs, "log", nil, "FACILITY=LEVEL, repeatable")
	cmdDaemon.Flags().StringVar(&flags.logFile, "log-file", "", "write logs to this file instead of stderr")
	cmdDaemon.Flags().StringVar(&flags.configFile, "config", "", "static YAML profile + startup verb file")
	cmdDaemon.Flags().StringVar(&flags.statusAddr, "status-addr", ":9696", "HTTP status surface bind address")
}

func main() {
	if err := cmdDaemon.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseLogSpec splits a `--log FACILITY=LEVEL` flag per spec.md §6.
func parseLogSpec(spec string) (logging.Facility, logging.Level, error) {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("invalid --log spec %q (want FACILITY=LEVEL)", spec)
	}
	lvl, err := logging.ParseLevel(parts[1])
	if err != nil {
		return "", 0, err
	}
	return logging.Facility(parts[0]), lvl, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logWriter := os.Stderr
	if flags.logFile != "" {
		f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("icnfwd: opening log file: %w", err)
		}
		defer f.Close()
		logWriter = f
	}
	log := logging.New(logWriter, logging.LevelInfo)
	logging.SetDefault(log)

	profile := config.DefaultProfile()
	if flags.configFile != "" {
		var err error
		profile, err = config.LoadProfile(flags.configFile)
		if err != nil {
			log.Fatal(logging.FacilityConfig, cmdStringer("icnfwd"), "failed to load profile", "err", err.Error())
			return err
		}
	}
	if err := profile.ApplyLogLevels(log); err != nil {
		log.Fatal(logging.FacilityConfig, cmdStringer("icnfwd"), "invalid log profile", "err", err.Error())
		return err
	}
	for _, spec := range flags.logSpecs {
		facility, lvl, err := parseLogSpec(spec)
		if err != nil {
			log.Fatal(logging.FacilityConfig, cmdStringer("icnfwd"), "invalid --log flag", "err", err.Error())
			return err
		}
		log.SetFacilityLevel(facility, lvl)
	}
	if flags.daemon {
		log.Info(logging.FacilityCore, cmdStringer("icnfwd"), "--daemon given; the process is not forked and stays in the foreground")
	}

	capacity := profile.CacheCapacity
	if flags.capacity > 0 {
		capacity = flags.capacity
	}

	d := dispatcher.New()
	clk := clock.New(time.Now())
	msgr := messenger.New(d.Post)
	conns := connection.New(msgr)
	f := fib.New(fib.Multicast{})
	cs := contentstore.New(capacity)
	p := pit.New(1024)
	cacheCfg := processor.DefaultCacheConfig()

	proc := processor.New(cs, p, f, conns, clk, processor.Config{
		Nack:      processor.DropSilently,
		Lifetimes: profile.Lifetimes(),
		Cache:     cacheCfg,
		Log:       log,
	})

	registry := face.NewRegistry(d, conns, clk, proc, log)
	strategies := func(name string) (fib.Strategy, bool) {
		switch name {
		case "multicast":
			return fib.Multicast{}, true
		case "best-route":
			return fib.BestRoute{}, true
		}
		return nil, false
	}
	applier := config.NewApplier(registry, f, conns, cs, cacheCfg, strategies)

	// Orphaned-PIT-entry sweep on connection teardown (spec.md §8
	// "Connection teardown" scenario; §7 Peer-closed), and a no-op
	// Missive consumer for ConnectionUp (observability hook only).
	msgr.Subscribe(func(m messenger.Missive) {
		if m.Kind == messenger.ConnectionDestroyed {
			p.RemoveIngress(m.ConnID)
		}
	})

	ctrl := ctrlsock.New(applier, log)
	if _, err := ctrl.Listen(d, net.JoinHostPort("", strconv.Itoa(flags.port))); err != nil {
		log.Fatal(logging.FacilityIO, cmdStringer("icnfwd"), "failed to start control socket", "err", err.Error())
		return err
	}

	if flags.statusAddr != "" {
		startStatusAPI(flags.statusAddr, d, p, cs, f, log)
	}

	if err := profile.ApplyVerbs(applier); err != nil {
		log.Fatal(logging.FacilityConfig, cmdStringer("icnfwd"), "startup verb failed", "err", err.Error())
		return err
	}

	// Tick timer: advances the Clock at ~100ms wall-clock resolution (fine
	// enough for the millisecond tick counter) and drives the PIT's
	// opportunistic bucket sweep plus the Content Store's expiry sweep,
	// per spec.md §4.7 ("timer events advance PIT expiry and CS expiry via
	// opportunistic sweeps").
	const tickPeriod = 100 * time.Millisecond
	bucket := uint64(0)
	ticker := d.CreateTimer(true, func() {
		clk.Advance(tickPeriod)
		now := clk.Now()
		cs.SweepExpired(now)
		n := p.BucketCount()
		if n > 0 {
			p.ExpireTick(bucket%n, clk.FastTimer(), clk.SlowTimer())
			bucket++
		}
	})
	ticker.Start(tickPeriod)

	d.CreateSignalEvent(os.Interrupt, func(os.Signal) { d.Stop() })
	d.CreateSignalEvent(syscall.SIGTERM, func(os.Signal) { d.Stop() })

	log.Info(logging.FacilityCore, cmdStringer("icnfwd"), "forwarder starting", "ctrl-port", flags.port, "cache-capacity", capacity)
	d.Run()
	log.Info(logging.FacilityCore, cmdStringer("icnfwd"), "forwarder stopped")
	return nil
}

type cmdStringer string

func (c cmdStringer) String() string { return string(c) }

func startStatusAPI(addr string, d *dispatcher.Dispatcher, p *pit.Pit, cs *contentstore.ContentStore, f *fib.Fib, log *logging.Log) {
	h := &statusapi.Handler{D: d, Pit: p, CS: cs, Fib: f}
	mux := http.NewServeMux()
	mux.Handle("/status", h)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(logging.FacilityIO, cmdStringer("status-api"), "status API stopped", "err", err.Error())
		}
	}()
}
