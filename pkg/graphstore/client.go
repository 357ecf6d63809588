// Package graphstore persists finalized nodes and relationships to a
// Neo4j property graph. Writes are idempotent: nodes merge on their
// identity key (label and name, plus subType for entities),
// relationships are checked for existence before creation, and
// endpoints that cannot be resolved are skipped rather than created as
// placeholders.
package graphstore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/OFFIS-RIT/mosaic/pkg/common"
	"github.com/OFFIS-RIT/mosaic/pkg/logger"
)

// Client wraps a Neo4j driver with the target database name.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// NewClientParams carries the connection settings for NewClient.
type NewClientParams struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// NewClient opens a driver and verifies connectivity before returning.
func NewClient(params NewClientParams) (*Client, error) {
	if params.URI == "" {
		return nil, fmt.Errorf("graphstore: uri required")
	}
	if params.User == "" {
		params.User = "neo4j"
	}
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(params.User, params.Password, "")
	driver, err := neo4j.NewDriverWithContext(params.URI, auth, func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = params.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), params.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphstore: verify connectivity: %w", err)
	}

	return &Client{Driver: driver, Database: params.Database}, nil
}

// NewFromEnv builds a client from NEO4J_* environment variables. A
// missing NEO4J_URI returns (nil, nil) so callers can run without a
// graph backend.
func NewFromEnv() (*Client, error) {
	uri := strings.TrimSpace(os.Getenv("NEO4J_URI"))
	if uri == "" {
		return nil, nil
	}

	timeout := 10 * time.Second
	if v := strings.TrimSpace(os.Getenv("NEO4J_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}

	return NewClient(NewClientParams{
		URI:      uri,
		User:     strings.TrimSpace(os.Getenv("NEO4J_USER")),
		Password: strings.TrimSpace(os.Getenv("NEO4J_PASSWORD")),
		Database: strings.TrimSpace(os.Getenv("NEO4J_DATABASE")),
		Timeout:  timeout,
	})
}

// Close releases the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

// EnsureConstraints creates per-label uniqueness constraints on each
// label's identity key: name plus subType for entities, name for every
// other label. Failures are logged and ignored so a restricted user can
// still write.
func (c *Client) EnsureConstraints(ctx context.Context) {
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	for _, t := range common.AllNodeTypes {
		key := "n.name IS UNIQUE"
		if t == common.NodeEntity {
			key = "(n.name, n.subType) IS UNIQUE"
		}
		stmt := fmt.Sprintf(
			"CREATE CONSTRAINT mosaic_%s_key IF NOT EXISTS FOR (n:%s) REQUIRE %s",
			strings.ToLower(string(t)), t, key,
		)
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			logger.Warn("constraint setup failed, continuing", "label", t, "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}
