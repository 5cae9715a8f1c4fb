package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"sensorcast/internal/config"
	"sensorcast/internal/ingest"
	"sensorcast/internal/logging"
	"sensorcast/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	csvPath := flag.String("file", "readings.csv", "CSV file with datetime,steps,raw_voltage,raw_current[,battery_level]")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Logger().Fatalf("Failed to load config: %v", err)
	}
	logging.Configure(cfg.Log.Level, cfg.Log.Format)

	loc, err := cfg.Location()
	if err != nil {
		logging.Logger().Fatalf("Invalid timezone: %v", err)
	}

	batch := uuid.NewString()
	log := logging.Component("import").WithField("batch", batch)

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	publisher := ingest.NewPublisher(redisClient, cfg.Redis.Stream)
	ctx := context.Background()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Read header row
	header, err := reader.Read()
	if err != nil {
		log.Fatalf("Failed to read CSV header: %v", err)
	}
	log.Infof("CSV Header: %v", header)

	count, skipped := 0, 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read CSV record: %v", err)
		}

		r, err := parseRecord(record, loc)
		if err != nil {
			log.WithError(err).Warnf("Skipping record %v", record)
			skipped++
			continue
		}

		if _, err := publisher.Publish(ctx, r); err != nil {
			if errors.Is(err, ingest.ErrInvalidReading) {
				log.WithError(err).Warnf("Skipping record %v", record)
				skipped++
				continue
			}
			log.Fatalf("Failed to publish reading: %v", err)
		}
		count++
	}

	log.Infof("Import completed: %d published, %d skipped", count, skipped)
}

// parseRecord reads one datetime,steps,raw_voltage,raw_current[,battery_level] row
func parseRecord(record []string, loc *time.Location) (models.Reading, error) {
	if len(record) < 4 {
		return models.Reading{}, errors.Errorf("want at least 4 columns, got %d", len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	ts, err := ingest.ParseTime(record[0], loc)
	if err != nil {
		return models.Reading{}, err
	}
	steps, err := strconv.Atoi(record[1])
	if err != nil {
		return models.Reading{}, errors.Wrap(err, "steps")
	}
	voltage, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return models.Reading{}, errors.Wrap(err, "raw_voltage")
	}
	current, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return models.Reading{}, errors.Wrap(err, "raw_current")
	}

	r := models.Reading{Timestamp: ts, Steps: steps, Voltage: voltage, Current: current}
	if len(record) > 4 && record[4] != "" {
		battery, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return models.Reading{}, errors.Wrap(err, "battery_level")
		}
		r.BatteryLevel = &battery
	}
	return r, nil
}
