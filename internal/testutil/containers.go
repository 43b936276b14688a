package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container is a started test container with its mapped endpoint.
type Container struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// Terminate stops and removes the container
func (c *Container) Terminate(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}

func startContainer(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port string) *Container {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to create %s container: %v", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return &Container{Container: container, Host: host, Port: mapped.Port()}
}

// PostgresContainer is a pgvector-enabled PostgreSQL instance.
type PostgresContainer struct {
	*Container
	User     string
	Password string
	Database string
}

// NewPostgresContainer creates and starts a PostgreSQL container with pgvector
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:0.8.1-pg18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "docchat",
			"POSTGRES_PASSWORD": "docchat",
			"POSTGRES_DB":       "docchat",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}

	return &PostgresContainer{
		Container: startContainer(ctx, t, req, "5432"),
		User:      "docchat",
		Password:  "docchat",
		Database:  "docchat",
	}
}

// ConnectionString returns the PostgreSQL connection string
func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pc.User, pc.Password, pc.Host, pc.Port, pc.Database)
}

// RustFSContainer is an S3-compatible blob store.
type RustFSContainer struct {
	*Container
	AccessKey string
	SecretKey string
}

// NewRustFSContainer creates and starts a RustFS container
func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	req := testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": "rustfsadmin",
			"RUSTFS_SECRET_KEY": "rustfsadmin",
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}

	return &RustFSContainer{
		Container: startContainer(ctx, t, req, "9000"),
		AccessKey: "rustfsadmin",
		SecretKey: "rustfsadmin",
	}
}

// Endpoint returns the RustFS endpoint URL
func (rc *RustFSContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", rc.Host, rc.Port)
}

// QdrantContainer is a Qdrant vector database.
type QdrantContainer struct {
	*Container
}

// NewQdrantContainer creates and starts a Qdrant container
func NewQdrantContainer(ctx context.Context, t *testing.T) *QdrantContainer {
	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:v1.13.4",
		ExposedPorts: []string{"6333/tcp"},
		WaitingFor: wait.ForHTTP("/readyz").
			WithPort("6333/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	return &QdrantContainer{Container: startContainer(ctx, t, req, "6333")}
}

// URL returns the Qdrant REST endpoint
func (qc *QdrantContainer) URL() string {
	return fmt.Sprintf("http://%s:%s", qc.Host, qc.Port)
}
