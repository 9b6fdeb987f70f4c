// Package mongostore implements backend.Backend on MongoDB. Every project lives in its
// own collection named "_<project>".
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cosyq/internal/backend"
	"cosyq/internal/query"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	projectPrefix = "_"
	// versionCollection shares the project prefix but holds revision history.
	versionCollection = "_vcs"
)

// Config holds the connection settings for MongoDB.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Timeout bounds server selection and connection attempts.
	Timeout time.Duration

	// ProjectCacheTTL controls how long the project listing is reused.
	ProjectCacheTTL time.Duration
}

// URI builds the connection string, including credentials when a user is set.
func (c Config) URI() string {
	port := c.Port
	if port == 0 {
		port = 27017
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// Redacted returns the URI with the password masked, for logs.
func (c Config) Redacted() string {
	if c.Password == "" {
		return c.URI()
	}
	masked := c
	masked.Password = "xxxxx"
	return masked.URI()
}

// Client talks to one MongoDB database.
type Client struct {
	cfg Config

	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database

	// Project listing cache
	cacheMu       sync.Mutex
	cachedNames   []string
	cacheExpires  time.Time
	cacheAccessed int
}

// Connect opens a client and verifies the server is reachable.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.ProjectCacheTTL == 0 {
		cfg.ProjectCacheTTL = 30 * time.Second
	}
	if cfg.Database == "" {
		cfg.Database = "cosycat"
	}

	c := &Client{cfg: cfg}
	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) dial(ctx context.Context) error {
	opts := options.Client().
		ApplyURI(c.cfg.URI()).
		SetServerSelectionTimeout(c.cfg.Timeout).
		SetConnectTimeout(c.cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return classify("connect", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return classify("ping", err)
	}

	c.mu.Lock()
	c.client = client
	c.db = client.Database(c.cfg.Database)
	c.mu.Unlock()

	log.Info().Str("uri", c.cfg.Redacted()).Msg("Connected to MongoDB")
	return nil
}

// Reconnect drops the current client and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	old := c.client
	c.client = nil
	c.db = nil
	c.mu.Unlock()

	if old != nil {
		if err := old.Disconnect(ctx); err != nil {
			log.Debug().Err(err).Msg("Disconnect before reconnect failed")
		}
	}

	c.cacheMu.Lock()
	c.cachedNames = nil
	c.cacheMu.Unlock()

	return c.dial(ctx)
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	c.db = nil
	return err
}

func (c *Client) database() (*mongo.Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, fmt.Errorf("%w: client is disconnected", backend.ErrConnectionLost)
	}
	return c.db, nil
}

// ProjectNames lists project collections, cached for ProjectCacheTTL.
func (c *Client) ProjectNames(ctx context.Context) ([]string, error) {
	if names, ok := c.getCachedNames(); ok {
		return names, nil
	}

	db, err := c.database()
	if err != nil {
		return nil, err
	}

	colls, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, classify("list collections", err)
	}

	names := projectNames(colls)
	c.setCachedNames(names)
	log.Debug().Int("count", len(names)).Msg("Fetched project names")
	return names, nil
}

func (c *Client) getCachedNames() ([]string, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.cachedNames == nil || time.Now().After(c.cacheExpires) {
		log.Debug().Msg("Project cache miss")
		return nil, false
	}

	// Sliding window extension, bounded like the request cache it mirrors
	if c.cacheAccessed < 6 {
		c.cacheExpires = time.Now().Add(c.cfg.ProjectCacheTTL)
		c.cacheAccessed++
	}
	return append([]string(nil), c.cachedNames...), true
}

func (c *Client) setCachedNames(names []string) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	c.cachedNames = append([]string(nil), names...)
	c.cacheExpires = time.Now().Add(c.cfg.ProjectCacheTTL)
	c.cacheAccessed = 1
}

// Count returns the number of annotations in a project matching q.
func (c *Client) Count(ctx context.Context, project string, q query.QuerySpec) (int64, error) {
	db, err := c.database()
	if err != nil {
		return 0, err
	}

	filter := Filter(q)
	start := time.Now()
	n, err := db.Collection(CollectionName(project)).CountDocuments(ctx, filter)
	if err != nil {
		return 0, classify("count "+project, err)
	}

	log.Debug().
		Str("project", project).
		Str("query", q.String()).
		Int64("count", n).
		Dur("took", time.Since(start)).
		Msg("Count request")
	return n, nil
}

// GroupCount runs a $match/$group aggregation over a project.
func (c *Client) GroupCount(ctx context.Context, project string, q query.QuerySpec, keys []string) ([]backend.GroupRow, error) {
	db, err := c.database()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	cursor, err := db.Collection(CollectionName(project)).Aggregate(ctx, GroupPipeline(q, keys))
	if err != nil {
		return nil, classify("aggregate "+project, err)
	}
	defer cursor.Close(ctx)

	var docs []groupDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify("aggregate "+project, err)
	}

	rows := make([]backend.GroupRow, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, d.row(keys))
	}

	log.Debug().
		Str("project", project).
		Str("query", q.String()).
		Strs("groupBy", keys).
		Int("groups", len(rows)).
		Dur("took", time.Since(start)).
		Msg("Group count request")
	return rows, nil
}

// CollectionName maps a project name to its collection.
func CollectionName(project string) string {
	return projectPrefix + project
}

// projectNames keeps the project collections and strips their prefix.
func projectNames(collections []string) []string {
	var names []string
	for _, coll := range collections {
		if !strings.HasPrefix(coll, projectPrefix) || coll == versionCollection {
			continue
		}
		names = append(names, strings.TrimPrefix(coll, projectPrefix))
	}
	sort.Strings(names)
	return names
}

// classify wraps driver errors, marking connectivity failures as transient.
// Cancellation is passed through untouched.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%s: %w: %v", op, backend.ErrConnectionLost, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
