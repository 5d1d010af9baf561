package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/jasonlvhit/gocron"
	"github.com/peterbourgon/ff"
	log "github.com/sirupsen/logrus"

	"github.com/adambom/sfbaysim/api"
	"github.com/adambom/sfbaysim/config"
	"github.com/adambom/sfbaysim/latlon"
	"github.com/adambom/sfbaysim/loader"
	"github.com/adambom/sfbaysim/notify"
	"github.com/adambom/sfbaysim/polar"
	"github.com/adambom/sfbaysim/provider"
	"github.com/adambom/sfbaysim/sim"
	"github.com/adambom/sfbaysim/store"

	_ "net/http/pprof"
)

// advanceInterval is the outer loop cadence; the simulator's accumulator
// turns it into fixed logical steps.
const advanceInterval = 100 * time.Millisecond

func main() {

	def := config.Default()

	fs := flag.NewFlagSet("sfbaysim", flag.ExitOnError)
	var (
		listen       = fs.String("listen", def.ListenAddress, "http listen address")
		debug        = fs.Bool("debug", false, "debug logging")
		dataDir      = fs.String("data-dir", def.DataDir, "forecast file directory")
		polarFile    = fs.String("polar", def.PolarFile, "polar table file")
		windowBack   = fs.Int("window-back", def.WindowBack, "forecast hours kept behind sim time")
		windowAhead  = fs.Int("window-ahead", def.WindowAhead, "forecast hours kept ahead of sim time")
		attempts     = fs.Int("load-attempts", def.LoaderAttempts, "fetch attempts per forecast hour")
		retryDelay   = fs.Duration("load-retry-delay", def.LoaderRetryDelay, "delay before a fetch retry")
		throttle     = fs.Duration("load-throttle", def.LoaderThrottle, "minimum interval between fetches")
		workers      = fs.Int("load-workers", def.LoaderWorkers, "loader worker count")
		janitorEvery = fs.Duration("janitor-interval", def.JanitorInterval, "eviction sweep interval")
		closeHauled  = fs.Float64("close-hauled", def.CloseHauledDeg, "no-go half angle in degrees")
		ironsSpeed   = fs.Float64("irons-speed", def.InIronsSpeedKts, "boat speed in irons, knots")
		rounding     = fs.Float64("rounding-radius", def.RoundingRadiusM, "mark rounding radius in meters")
		fallbackDir  = fs.Float64("fallback-wind-dir", def.FallbackWindDirDeg, "wind direction when no data")
		fallbackSpd  = fs.Float64("fallback-wind-speed", def.FallbackWindSpeedKts, "wind speed when no data")
		commitment   = fs.Float64("tack-commitment", def.TackCommitmentSec, "router tack commitment in seconds")
		startLat     = fs.Float64("start-lat", def.StartLat, "boat start latitude")
		startLon     = fs.Float64("start-lon", def.StartLon, "boat start longitude")
		startHeading = fs.Float64("start-heading", def.StartHeading, "boat start heading")
		boats        = fs.Int("boats", 1, "number of boats")
		xmppHost     = fs.String("xmpp-host", "", "xmpp server, empty disables notifications")
		xmppJid      = fs.String("xmpp-jid", "", "xmpp account")
		xmppPassword = fs.String("xmpp-password", "", "xmpp password")
		xmppTo       = fs.String("xmpp-to", "", "comma separated recipient list")
	)
	ff.Parse(fs, os.Args[1:], ff.WithEnvVarNoPrefix())

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg := def
	cfg.ListenAddress = *listen
	cfg.Debug = *debug
	cfg.DataDir = *dataDir
	cfg.PolarFile = *polarFile
	cfg.WindowBack = *windowBack
	cfg.WindowAhead = *windowAhead
	cfg.LoaderAttempts = *attempts
	cfg.LoaderRetryDelay = *retryDelay
	cfg.LoaderThrottle = *throttle
	cfg.LoaderWorkers = *workers
	cfg.JanitorInterval = *janitorEvery
	cfg.CloseHauledDeg = *closeHauled
	cfg.InIronsSpeedKts = *ironsSpeed
	cfg.RoundingRadiusM = *rounding
	cfg.FallbackWindDirDeg = *fallbackDir
	cfg.FallbackWindSpeedKts = *fallbackSpd
	cfg.TackCommitmentSec = *commitment
	cfg.StartLat = *startLat
	cfg.StartLon = *startLon
	cfg.StartHeading = *startHeading
	cfg.XmppHost = *xmppHost
	cfg.XmppUser = *xmppJid
	cfg.XmppPassword = *xmppPassword
	if len(*xmppTo) > 0 {
		cfg.XmppReclist = strings.Split(*xmppTo, ",")
	}

	pol, err := polar.Load(cfg.PolarFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load polar table")
	}

	notifier := &notify.Xmpp{
		Host:     cfg.XmppHost,
		Jid:      cfg.XmppUser,
		Password: cfg.XmppPassword,
		Reclist:  cfg.XmppReclist,
	}

	base := time.Now().UTC().Truncate(time.Hour)
	fields := store.New(base, store.Window{Back: cfg.WindowBack, Ahead: cfg.WindowAhead})

	ld := loader.New(loader.Config{
		MaxAttempts: cfg.LoaderAttempts,
		RetryDelay:  cfg.LoaderRetryDelay,
		Throttle:    cfg.LoaderThrottle,
		Workers:     cfg.LoaderWorkers,
	}, provider.NewFiles(cfg.DataDir), fields, notifier)
	fields.SetRequester(ld)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ld.Start(ctx)
	defer ld.Close()

	simulator := sim.New(cfg, fields, pol, notifier)
	start := latlon.LatLon{Lat: cfg.StartLat, Lon: cfg.StartLon}
	for i := 0; i < *boats; i++ {
		simulator.AddBoat(boatId(i), boatName(i), start, cfg.StartHeading)
	}

	// Prime the window so loading starts before the first step.
	fields.AdvanceWindow(base)

	scheduler := gocron.NewScheduler()
	scheduler.Every(uint64(cfg.JanitorInterval / time.Second)).Seconds().Do(janitor, fields)
	go scheduler.Start()

	go advanceLoop(simulator)

	router := api.InitServer(fields, simulator)
	log.Fatal(api.Run(cfg.ListenAddress, handlers.CombinedLoggingHandler(os.Stdout, router)))
}

func boatId(i int) string {
	return fmt.Sprintf("b%d", i+1)
}

func boatName(i int) string {
	return fmt.Sprintf("Boat %d", i+1)
}

// advanceLoop drives the simulation at a steady real-time cadence.
func advanceLoop(s *sim.Simulator) {
	ticker := time.NewTicker(advanceInterval)
	defer ticker.Stop()

	last := time.Now()
	for now := range ticker.C {
		s.Advance(now.Sub(last).Seconds())
		last = now
	}
}

// janitor drops evicted forecast hours and logs load progress.
func janitor(fields *store.Store) {
	if n := fields.SweepEvictions(); n > 0 {
		log.Infof("Swept %d evicted forecast hours", n)
	}
	for source, p := range fields.Progress() {
		log.Debugf("Progress %s: %d/%d resident, %d failed", source, len(p.Resident), p.Wanted, len(p.Failed))
	}
}
