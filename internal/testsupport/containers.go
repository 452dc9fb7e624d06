//go:build integration

// Package testsupport provides testcontainers-backed Postgres and etcd
// instances for integration tests that need the real thing rather than
// an in-process fake.
package testsupport

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const startupTimeout = 60 * time.Second

// PostgresContainer wraps a running Postgres instance for tests.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
}

// StartPostgres launches a disposable Postgres 16 container and returns a
// ready-to-use connection string.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	const (
		user = "monitorplane"
		pass = "monitorplane"
		db   = "monitorplane"
	)

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": pass,
			"POSTGRES_DB":       db,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(startupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("testsupport: starting postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("testsupport: resolving postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, fmt.Errorf("testsupport: resolving postgres port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port.Port(), db)
	return &PostgresContainer{Container: container, DSN: dsn}, nil
}

// EtcdContainer wraps a running etcd instance for tests.
type EtcdContainer struct {
	Container testcontainers.Container
	Endpoint  string
}

// StartEtcd launches a disposable single-node etcd container.
func StartEtcd(ctx context.Context) (*EtcdContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "quay.io/coreos/etcd:v3.5.14",
		ExposedPorts: []string{"2379/tcp"},
		Cmd: []string{
			"etcd",
			"--listen-client-urls=http://0.0.0.0:2379",
			"--advertise-client-urls=http://0.0.0.0:2379",
		},
		WaitingFor: wait.ForLog("ready to serve client requests").WithStartupTimeout(startupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("testsupport: starting etcd container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("testsupport: resolving etcd host: %w", err)
	}
	port, err := container.MappedPort(ctx, "2379/tcp")
	if err != nil {
		return nil, fmt.Errorf("testsupport: resolving etcd port: %w", err)
	}

	return &EtcdContainer{Container: container, Endpoint: fmt.Sprintf("%s:%s", host, port.Port())}, nil
}
