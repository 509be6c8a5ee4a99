// Command genmock generates synthetic satellite observation messages for local
// development and the integration suite. For every location and day it builds
// Gaussian LST and NDVI grids around the location, samples them with the same
// domain code the collector uses, and emits one ingest message per day.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -locations 'loc-kumamoto:32.8032:130.7075,loc-fukuoka:33.5902:130.4017' \
//	  -from 2026-01-01 -to 2026-01-31 \
//	  -out data/mock/observations.jsonl
//
// Pass -publish to send the messages to Kafka instead of writing a file.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	gridSize   = 100
	gridSpan   = 0.5
	dataSource = "mock"
)

// Distribution parameters for the synthetic products.
var (
	lstParams  = productParams{mean: 291.5, std: 3.0, lo: 273.0, hi: 320.0}
	ndviParams = productParams{mean: 0.75, std: 0.08, lo: 0.0, hi: 1.0}
)

type productParams struct {
	mean, std float64
	lo, hi    float64
}

type target struct {
	id    string
	coord domain.Coordinate
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	locations := flag.String("locations", "", "comma-separated id:lat:lon triples")
	from := flag.String("from", "", "first observation date (YYYY-MM-DD)")
	to := flag.String("to", "", "last observation date (YYYY-MM-DD, defaults to -from)")
	seed := flag.Uint64("seed", 42, "random seed")
	out := flag.String("out", "", "output path for JSON lines")
	publish := flag.Bool("publish", false, "publish to Kafka instead of writing -out")
	brokers := flag.String("brokers", "localhost:9092", "comma-separated Kafka brokers")
	topic := flag.String("topic", "satellite-observations", "Kafka topic for -publish")
	flag.Parse()

	if *locations == "" || *from == "" || (*out == "" && !*publish) {
		flag.Usage()
		return errors.New("missing required flags: -locations, -from and one of -out or -publish")
	}

	targets, err := parseTargets(*locations)
	if err != nil {
		return err
	}
	r, err := parseRange(*from, *to)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	msgs, err := generate(rng, targets, r)
	if err != nil {
		return err
	}
	log.Printf("generated %d messages for %d locations", len(msgs), len(targets))

	if *publish {
		return publishMessages(strings.Split(*brokers, ","), *topic, msgs)
	}
	if err := writeJSONLines(*out, msgs); err != nil {
		return err
	}
	log.Printf("wrote %s", *out)
	return nil
}

func parseTargets(s string) ([]target, error) {
	var targets []target
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 3 || fields[0] == "" {
			return nil, fmt.Errorf("location %q: want id:lat:lon", part)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("location %q: latitude: %w", part, err)
		}
		lon, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("location %q: longitude: %w", part, err)
		}
		c := domain.Coordinate{Lat: lat, Lon: lon}
		if err := domain.ValidateCoordinate(c); err != nil {
			return nil, fmt.Errorf("location %q: %w", part, err)
		}
		targets = append(targets, target{id: fields[0], coord: c})
	}
	return targets, nil
}

func parseRange(from, to string) (domain.DateRange, error) {
	start, err := domain.ParseDate(from)
	if err != nil {
		return domain.DateRange{}, err
	}
	end := start
	if to != "" {
		if end, err = domain.ParseDate(to); err != nil {
			return domain.DateRange{}, err
		}
	}
	r := domain.DateRange{From: start, To: end}
	return r, r.Validate()
}

func generate(rng *rand.Rand, targets []target, r domain.DateRange) ([]domain.ObservationMessage, error) {
	var msgs []domain.ObservationMessage
	for d := r.From.Time(); !d.After(r.To.Time()); d = d.AddDate(0, 0, 1) {
		date := domain.DateOf(d)
		for _, t := range targets {
			lst, err := domain.SampleProduct(mockGrid(rng, t.coord, lstParams), t.coord, domain.ProductLST)
			if err != nil {
				return nil, fmt.Errorf("%s %s lst: %w", t.id, date, err)
			}
			ndvi, err := domain.SampleProduct(mockGrid(rng, t.coord, ndviParams), t.coord, domain.ProductNDVI)
			if err != nil {
				return nil, fmt.Errorf("%s %s ndvi: %w", t.id, date, err)
			}
			msgs = append(msgs, domain.ObservationMessage{
				LocationID:      t.id,
				ObservationDate: date.String(),
				DataSource:      dataSource,
				ProcessingTime:  d.Add(6 * time.Hour).Format(time.RFC3339),
				Observations:    domain.ProductReadings{LST: &lst, NDVI: &ndvi},
			})
		}
	}
	return msgs, nil
}

// mockGrid fills a gridSize x gridSize grid spanning ±gridSpan degrees around c.
func mockGrid(rng *rand.Rand, c domain.Coordinate, p productParams) domain.Grid {
	g := domain.Grid{
		Lat:    make([][]float64, gridSize),
		Lon:    make([][]float64, gridSize),
		Values: make([][]float64, gridSize),
	}
	step := 2 * gridSpan / float64(gridSize-1)
	for i := range gridSize {
		g.Lat[i] = make([]float64, gridSize)
		g.Lon[i] = make([]float64, gridSize)
		g.Values[i] = make([]float64, gridSize)
		for j := range gridSize {
			g.Lat[i][j] = c.Lat - gridSpan + float64(i)*step
			g.Lon[i][j] = c.Lon - gridSpan + float64(j)*step
			v := p.mean + p.std*rng.NormFloat64()
			g.Values[i][j] = math.Min(math.Max(v, p.lo), p.hi)
		}
	}
	return g
}

// encode marshals a message and checks that the ingest parser accepts it.
func encode(msg domain.ObservationMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseObservationMessage(domain.RawEvent{Value: data}); err != nil {
		return nil, fmt.Errorf("%s %s: generated message rejected: %w", msg.LocationID, msg.ObservationDate, err)
	}
	return data, nil
}

func writeJSONLines(path string, msgs []domain.ObservationMessage) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // close after flush; write errors are checked

	w := bufio.NewWriter(f)
	for _, msg := range msgs {
		data, err := encode(msg)
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return w.Flush()
}

func publishMessages(brokers []string, topic string, msgs []domain.ObservationMessage) error {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer w.Close() //nolint:errcheck // best-effort close on exit

	batch := make([]kafkago.Message, 0, len(msgs))
	for _, msg := range msgs {
		data, err := encode(msg)
		if err != nil {
			return err
		}
		batch = append(batch, kafkago.Message{
			Key:   []byte(msg.LocationID),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "data_source", Value: []byte(dataSource)},
			},
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.WriteMessages(ctx, batch...); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	log.Printf("published %d messages to %s", len(batch), topic)
	return nil
}
