// Command lacrosse-receiver decodes LaCrosse TX temperature and humidity
// transmissions from a 433 MHz receiver and publishes the readings to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/lacrosse-receiver/internal/decoder"
	"github.com/sweeney/lacrosse-receiver/internal/gpio"
	"github.com/sweeney/lacrosse-receiver/internal/logic"
	"github.com/sweeney/lacrosse-receiver/internal/mqtt"
	"github.com/sweeney/lacrosse-receiver/internal/receiver"
	"github.com/sweeney/lacrosse-receiver/internal/status"
	"github.com/sweeney/lacrosse-receiver/internal/store"
	"github.com/sweeney/lacrosse-receiver/internal/web"
)

type options struct {
	chip           string
	pin            int
	serialPath     string
	baud           int
	poll           time.Duration
	broker         string
	heartbeat      time.Duration
	dedup          time.Duration
	httpAddr       string
	dbPath         string
	ignoreChecksum bool
	replay         string
	simulate       time.Duration
}

func main() {
	var o options
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip of the receiver data line")
	flag.IntVar(&o.pin, "pin", gpio.DefaultPin, "GPIO line offset of the receiver data line")
	flag.StringVar(&o.serialPath, "serial", "", "Read pulse durations from this serial device instead of GPIO")
	flag.IntVar(&o.baud, "baud", 115200, "Serial baud rate")
	flag.DurationVar(&o.poll, "poll", 100*time.Millisecond, "Decode polling interval")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&o.dedup, "dedup", 5*time.Second, "Suppress repeated readings within this window (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&o.dbPath, "db", "", "SQLite reading history (empty to disable)")
	flag.BoolVar(&o.ignoreChecksum, "ignore-checksum", receiver.DefaultConfig().IgnoreChecksum, "Accept readings that fail the checksum")
	flag.StringVar(&o.replay, "replay", "", "Replay a recorded capture file instead of listening")
	flag.DurationVar(&o.simulate, "simulate", 0, "Generate synthetic transmissions at this interval instead of listening")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	start := time.Now()

	src, source, feed, err := openSource(o)
	if err != nil {
		return err
	}
	defer src.Close()

	rx := receiver.New(src, func() uint32 {
		return uint32(time.Since(start).Milliseconds())
	}, receiver.Config{IgnoreChecksum: o.ignoreChecksum})
	if err := rx.Start(); err != nil {
		return err
	}
	defer rx.Stop()

	var history *store.Store
	if o.dbPath != "" {
		history, err = store.Open(o.dbPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer history.Close()
	}

	publisher := mqtt.NewRealPublisher(o.broker)
	defer publisher.Close()

	tracker := status.NewTracker(start, status.Config{
		Source:         source,
		PollMs:         o.poll.Milliseconds(),
		DedupMs:        o.dedup.Milliseconds(),
		HeartbeatMs:    o.heartbeat.Milliseconds(),
		IgnoreChecksum: o.ignoreChecksum,
		Broker:         o.broker,
		HTTPAddr:       o.httpAddr,
		DBPath:         o.dbPath,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	if history != nil {
		restoreLatest(tracker, history)
	}

	// Startup is published before the connection is up; the publisher
	// buffers it until then.
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	if o.httpAddr != "" {
		var h web.History
		if history != nil {
			h = history
		}
		srv := web.New(o.httpAddr, tracker, h)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: source=%s poll=%v dedup=%v broker=%s heartbeat=%v ignore-checksum=%v",
		source, o.poll, o.dedup, o.broker, o.heartbeat, o.ignoreChecksum)

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var done <-chan struct{}
	if feed != nil {
		finished := make(chan struct{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			defer close(finished)
			if err := feed(ctx); err != nil {
				log.Printf("feed: %v", err)
			}
		}()
		if o.replay != "" {
			done = finished
		}
	}

	l := loop{
		rx:         rx,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		dedup:      o.dedup,
		heartbeat:  o.heartbeat,
		now:        time.Now,
		tick:       ticker.C,
		sig:        sigCh,
		done:       done,
	}
	if history != nil {
		l.history = history
	}
	return l.run()
}

// openSource picks the edge source. Replay and simulate drive a fake source
// from a feed goroutine.
func openSource(o options) (gpio.EdgeSource, string, func(context.Context) error, error) {
	switch {
	case o.replay != "":
		recs, err := loadReplay(o.replay)
		if err != nil {
			return nil, "", nil, err
		}
		src := gpio.NewFakeSource(0)
		return src, "replay:" + o.replay, func(ctx context.Context) error {
			return replay(ctx, src, recs, o.poll)
		}, nil

	case o.simulate > 0:
		src := gpio.NewFakeSource(0)
		return src, "simulate", func(ctx context.Context) error {
			return simulate(ctx, src, o.simulate, newSimulation(time.Now().UnixNano()))
		}, nil

	case o.serialPath != "":
		src, err := gpio.NewSerialSource(o.serialPath, gpio.PortOptions{BaudRate: o.baud})
		if err != nil {
			return nil, "", nil, err
		}
		return src, o.serialPath, nil, nil

	default:
		return gpio.NewLineSource(o.chip, o.pin), fmt.Sprintf("%s:%d", o.chip, o.pin), nil, nil
	}
}

// measurementSource is the part of the receiver the run loop drains.
type measurementSource interface {
	Next() decoder.Measurement
	Stats() receiver.Stats
}

// recorder stores published readings.
type recorder interface {
	Record(r logic.Reading) error
}

// archive is the read side of the history store used at startup.
type archive interface {
	Latest() ([]logic.Reading, error)
	Count() (int, error)
}

// restoreLatest shows the last stored reading of every channel until fresh
// ones arrive. Failures are logged and otherwise ignored.
func restoreLatest(tracker *status.Tracker, a archive) {
	latest, err := a.Latest()
	if err != nil {
		log.Printf("history: restore failed: %v", err)
		return
	}
	for _, r := range latest {
		tracker.Observe(r)
	}
	n, err := a.Count()
	if err != nil {
		log.Printf("history: count failed: %v", err)
		return
	}
	log.Printf("history: %d readings stored, restored %d channels", n, len(latest))
}

// loop is the daemon's main loop. history, tracker and mqttStatus may be nil.
type loop struct {
	rx         measurementSource
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	history    recorder
	dedup      time.Duration
	heartbeat  time.Duration
	now        func() time.Time
	tick       <-chan time.Time
	sig        <-chan os.Signal
	// done, when closed, drains the receiver and shuts down.
	done <-chan struct{}
}

func (l loop) run() error {
	filter := logic.NewFilter(l.dedup, l.now())

	for {
		select {
		case s := <-l.sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.drain(filter, l.now())
			l.shutdown(filter, signalName)
			return nil

		case <-l.done:
			l.drain(filter, l.now())
			log.Printf("input exhausted, shutting down")
			l.shutdown(filter, "EOF")
			return nil

		case <-l.tick:
			t := l.now()
			l.drain(filter, t)

			if hb := filter.CheckHeartbeat(t, l.heartbeat); hb != nil {
				rx := l.rx.Stats()
				log.Printf("heartbeat: uptime=%v sensors=%d tmp=%d hum=%d repeats=%d decoded=%d unknown=%d discarded=%d",
					hb.Uptime, hb.Sensors, hb.Counts.Temperature, hb.Counts.Humidity, hb.Counts.Duplicates,
					rx.Decoded, rx.Unknown, rx.Capture.Discarded)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if l.tracker != nil {
					l.refresh(filter)
					if net := readNetworkInfo(); net != nil {
						l.tracker.SetNetwork(net)
					}
					hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := l.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			l.refresh(filter)
		}
	}
}

// drain publishes every measurement waiting in the receiver.
func (l loop) drain(filter *logic.Filter, t time.Time) {
	for m := l.rx.Next(); m.Valid(); m = l.rx.Next() {
		r, ok := filter.Process(t, m)
		if !ok {
			continue
		}
		log.Printf("reading: %v", m)

		if l.tracker != nil {
			l.tracker.Observe(r)
		}
		if err := l.publisher.Publish(r); err != nil {
			log.Printf("publish error: %v", err)
		}
		if l.history != nil {
			if err := l.history.Record(r); err != nil {
				log.Printf("history error: %v", err)
			}
		}
	}
}

// refresh updates the status tracker for HTTP consumers.
func (l loop) refresh(filter *logic.Filter) {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(filter.Counts(), l.rx.Stats())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l loop) shutdown(filter *logic.Filter, reason string) {
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		l.refresh(filter)
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
