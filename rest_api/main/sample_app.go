package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sharedcode/strata"
	"github.com/sharedcode/strata/engine"
	"github.com/sharedcode/strata/redis"
	"github.com/sharedcode/strata/rest_api"
	"github.com/sharedcode/strata/s3"
	"github.com/sharedcode/strata/sqlite"
)

// Redis Config, please update with your Redis cluster config.
var redisOptions = redis.Options{
	Address:  "localhost:6379",
	Password: "", // no password set
	DB:       0,  // use default DB
}

// S3 Config, points at a local minio by default; please update with your
// bucket endpoint and credentials.
var s3Config = s3.Config{
	HostEndpointUrl: "http://localhost:9000",
	Region:          "us-east-1",
	Username:        "minio",
	Password:        "miniosecret",
}

const bucketName = "strata-records"

var ctx = context.TODO()

func main() {
	strata.ConfigureLogging()

	if _, err := redis.OpenConnection(redisOptions); err != nil {
		log.Fatal(err)
	}
	defer redis.CloseConnection()

	db, err := sqlite.Open("strata.db")
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	cold, err := s3.NewColdStore(s3.Connect(s3Config), bucketName)
	if err != nil {
		log.Fatal(err)
	}

	e := engine.New(redis.NewHotStore(), sqlite.NewWarmStore(db), cold,
		sqlite.NewQueueStore(db), engine.DefaultOptions())
	e.Start(ctx)

	// Drain pending writes on CTRL-C before the process exits.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		e.Shutdown(ctx)
		os.Exit(0)
	}()

	if err := rest_api.Main(e, "localhost:8080"); err != nil {
		log.Fatal(err)
	}
}
