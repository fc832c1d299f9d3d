package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"

	mqttadapter "github.com/samirrijal/geomeasure/internal/adapters/mqtt"
	natsadapter "github.com/samirrijal/geomeasure/internal/adapters/nats"
	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/pkg/logging"
)

type Options struct {
	Track     string        `short:"t" long:"track"     env:"REPLAY_TRACK"    description:"YAML track file" required:"true"`
	Transport string        `short:"T" long:"transport" env:"REPLAY_TRANSPORT" description:"Sensor transport" choice:"nats" choice:"mqtt" default:"nats"`
	NATSURL   string        `long:"nats-url"            env:"GEOMEASURE_NATS_URL" description:"NATS server URL" default:"nats://localhost:4222"`
	Broker    string        `long:"mqtt-broker"         env:"GEOMEASURE_MQTT_BROKER" description:"MQTT broker URL" default:"tcp://localhost:1883"`
	Topic     string        `long:"mqtt-topic"          env:"GEOMEASURE_MQTT_TOPIC" description:"MQTT topic pattern" default:"field/+/location"`
	Screen    string        `short:"s" long:"screen"    description:"Override the screen id of every sample"`
	Interval  time.Duration `short:"i" long:"interval"  description:"Delay between samples (overrides the track)"`
	Loop      bool          `short:"l" long:"loop"      description:"Restart the track when it ends"`
	LogLevel  string        `long:"log-level"           env:"GEOMEASURE_LOG_LEVEL" description:"Log level" default:"info"`
}

// Track is a recorded sequence of sensor readings for one screen.
type Track struct {
	ScreenID string                 `yaml:"screen_id"`
	Interval time.Duration          `yaml:"interval"`
	Samples  []domain.SensorPayload `yaml:"samples"`
}

// publishFunc delivers one sample to a sensor transport.
type publishFunc func(ctx context.Context, sample *domain.SensorSample) error

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logging.Setup(opts.LogLevel, "text")

	data, err := os.ReadFile(opts.Track)
	if err != nil {
		slog.Error("read track", "error", err)
		os.Exit(1)
	}
	track, err := parseTrack(data, opts.Screen, opts.Interval)
	if err != nil {
		slog.Error("parse track", "error", err)
		os.Exit(1)
	}

	publish, closeFn, err := connect(opts)
	if err != nil {
		slog.Error("connect", "transport", opts.Transport, "error", err)
		os.Exit(1)
	}
	defer closeFn()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("replaying track",
		"file", opts.Track,
		"transport", opts.Transport,
		"samples", len(track.Samples),
		"interval", track.Interval,
		"loop", opts.Loop,
	)

	for {
		sent, err := replay(ctx, track, publish, time.Now)
		slog.Info("track finished", "sent", sent)
		if err != nil || !opts.Loop {
			if err != nil && ctx.Err() == nil {
				slog.Error("replay stopped", "error", err)
				os.Exit(1)
			}
			return
		}
	}
}

func connect(opts Options) (publishFunc, func(), error) {
	switch opts.Transport {
	case "mqtt":
		client, err := mqttadapter.Connect(opts.Broker, fmt.Sprintf("gpsreplay-%d", os.Getpid()))
		if err != nil {
			return nil, nil, err
		}
		feed := mqttadapter.NewFeed(client, opts.Topic, 1)
		return feed.Publish, feed.Close, nil
	default:
		pub, err := natsadapter.NewPublisher(opts.NATSURL)
		if err != nil {
			return nil, nil, err
		}
		return pub.PublishSensorSample, pub.Close, nil
	}
}

func parseTrack(data []byte, screen string, interval time.Duration) (*Track, error) {
	var track Track
	if err := yaml.Unmarshal(data, &track); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if screen != "" {
		track.ScreenID = screen
	}
	if interval > 0 {
		track.Interval = interval
	}
	if track.Interval <= 0 {
		track.Interval = time.Second
	}
	if len(track.Samples) == 0 {
		return nil, fmt.Errorf("track has no samples")
	}

	for i := range track.Samples {
		s := &track.Samples[i]
		if screen != "" || s.ScreenID == "" {
			s.ScreenID = track.ScreenID
		}
		if s.ScreenID == "" {
			return nil, fmt.Errorf("sample %d: screen_id: required", i)
		}
		if err := (domain.GeoPoint{Lat: s.Lat, Lng: s.Lng}).Validate(); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return &track, nil
}

// replay publishes every sample of track at the track cadence, stamping each one
// with the send time. It returns the number of samples sent.
func replay(ctx context.Context, track *Track, publish publishFunc, now func() time.Time) (int, error) {
	ticker := time.NewTicker(track.Interval)
	defer ticker.Stop()

	sent := 0
	for i, payload := range track.Samples {
		if i > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-ticker.C:
			}
		}

		sample := payload.Sample()
		sample.Timestamp = now().UnixMilli()
		if err := publish(ctx, &sample); err != nil {
			return sent, fmt.Errorf("sample %d: %w", i, err)
		}
		sent++
		slog.Debug("sample sent", "screen", sample.ScreenID, "lat", sample.Point.Lat, "lng", sample.Point.Lng)
	}
	return sent, nil
}
