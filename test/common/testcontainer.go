package common

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/quintans/faults"
	"github.com/samterrell/SQLProcessor/db"
	"github.com/samterrell/SQLProcessor/dbx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const portPlaceholder = "<port>"

// DSN is a data source name template holding a <port> placeholder.
type DSN string

func (d DSN) WithPort(port string) string {
	return strings.ReplaceAll(string(d), portPlaceholder, port)
}

var _ wait.Strategy = (*DbStrategy)(nil)

// DbStrategy waits until the database in the container accepts connections
// and, when a probe is set, answers it.
type DbStrategy struct {
	driverName     string
	dsn            DSN
	port           nat.Port
	startupTimeout time.Duration
	pollInterval   time.Duration
	probe          string
}

// ForDb polls driverName on the mapped port. dataSourceName must hold a <port> placeholder.
func ForDb(driverName string, dataSourceName string, port string) *DbStrategy {
	return &DbStrategy{
		driverName:     driverName,
		dsn:            DSN(dataSourceName),
		port:           nat.Port(port),
		startupTimeout: time.Minute,
		pollInterval:   500 * time.Millisecond,
	}
}

func (ws *DbStrategy) WithStartupTimeout(startupTimeout time.Duration) *DbStrategy {
	ws.startupTimeout = startupTimeout
	return ws
}

func (ws *DbStrategy) WithPollInterval(pollInterval time.Duration) *DbStrategy {
	ws.pollInterval = pollInterval
	return ws
}

// WithProbe runs query once connected. Oracle, for one, opens the listener
// well before the schema user exists.
func (ws *DbStrategy) WithProbe(query string) *DbStrategy {
	ws.probe = query
	return ws
}

// WaitUntilReady implements wait.Strategy
func (ws *DbStrategy) WaitUntilReady(ctx context.Context, target wait.StrategyTarget) error {
	if !strings.Contains(string(ws.dsn), portPlaceholder) {
		return faults.Errorf("missing placeholder %s in %s", portPlaceholder, ws.dsn)
	}

	ctx, cancel := context.WithTimeout(ctx, ws.startupTimeout)
	defer cancel()

	port, err := target.MappedPort(ctx, ws.port)
	if err != nil {
		return faults.Wrap(err)
	}

	for {
		src, err := dbx.Connect(ctx, ws.driverName, ws.dsn.WithPort(port.Port()), dbx.RetryOptions{
			MaxRetries: math.MaxInt32,
			BaseDelay:  ws.pollInterval,
			MaxDelay:   4 * ws.pollInterval,
		})
		if err != nil {
			return err
		}
		err = ws.runProbe(ctx, src)
		src.Close()
		if err == nil {
			return nil
		}
		logger.Debugf("%s is up but not ready: %v", ws.driverName, err)

		select {
		case <-ctx.Done():
			return faults.Wrap(ctx.Err())
		case <-time.After(ws.pollInterval):
		}
	}
}

func (ws *DbStrategy) runProbe(ctx context.Context, src dbx.ConnectionSource) error {
	if ws.probe == "" {
		return nil
	}
	p, err := db.NewProcessor("probe", ws.probe)
	if err != nil {
		return err
	}
	_, err = p.Execute(ctx, src)
	return err
}

// Container starts image and waits for its database. timeout is in minutes.
func Container(
	image string,
	exPort string,
	env map[string]string,
	driverName string,
	dataSourceName string,
	timeout int,
) (context.Context, testcontainers.Container, nat.Port, error) {
	ctx := context.Background()
	server, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{exPort},
			Env:          env,
			WaitingFor: ForDb(driverName, dataSourceName, exPort).
				WithStartupTimeout(time.Duration(timeout) * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return ctx, nil, "", faults.Wrap(err)
	}

	port, err := server.MappedPort(ctx, nat.Port(exPort))
	if err != nil {
		return ctx, server, "", faults.Wrap(err)
	}
	return ctx, server, port, nil
}
