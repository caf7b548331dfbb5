// Package syncschecker gates background oracle work behind node sync
// health. Probing the local attester is pointless while the node replays
// history, and misleading once the node has fallen off the chain tip.
package syncschecker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/trufnetwork/kwil-db/core/log"
)

const (
	// DefaultMaxBlockAgeSeconds treats a node more than an hour behind
	// the chain tip as not ready.
	DefaultMaxBlockAgeSeconds int64 = 3600

	probeInterval   = 30 * time.Second
	defaultEndpoint = "http://localhost:8484/api/v1/health"
)

// Options tunes a Checker. Zero values pick defaults; a negative
// MaxBlockAgeSeconds disables the gate entirely.
type Options struct {
	MaxBlockAgeSeconds int64
	Endpoint           string
}

// Checker combines two freshness sources: the node's health endpoint,
// authoritative for the syncing flag, and block observations fed by the
// end-block hook, authoritative for the locally processed tip. Ready only
// when the node is not syncing and the tip is recent. The block-age rule
// keeps the gate closed during network halts even when probing succeeds.
type Checker struct {
	logger      log.Logger
	maxBlockAge int64
	endpoint    string
	client      *retryablehttp.Client

	mu            sync.Mutex
	syncing       bool
	probed        bool
	lastHeight    int64
	lastBlockTime int64

	cancel context.CancelFunc
}

func New(logger log.Logger, opts Options) *Checker {
	maxAge := opts.MaxBlockAgeSeconds
	if maxAge == 0 {
		maxAge = DefaultMaxBlockAgeSeconds
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil

	return &Checker{
		logger:      logger.New("sync_checker"),
		maxBlockAge: maxAge,
		endpoint:    endpoint,
		client:      client,
	}
}

// Start begins the background probe loop. A disabled gate skips probing.
func (c *Checker) Start(ctx context.Context) {
	if c.maxBlockAge < 0 {
		c.logger.Info("sync gate disabled")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.probe(ctx)
	go c.loop(ctx)
	c.logger.Info("sync checker started", "max_block_age", c.maxBlockAge)
}

// Stop halts the probe loop.
func (c *Checker) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// ObserveBlock records the locally processed chain tip. Called from the
// end-block hook on every block, so it must stay cheap.
func (c *Checker) ObserveBlock(height, timestamp int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if height > c.lastHeight {
		c.lastHeight = height
		c.lastBlockTime = timestamp
	}
}

// Ready reports whether background work should run, with a reason when it
// should not.
func (c *Checker) Ready() (bool, string) {
	if c.maxBlockAge < 0 {
		return true, ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.probed && c.syncing {
		return false, "node is syncing"
	}
	if c.lastBlockTime == 0 {
		return false, "no block observed yet"
	}
	age := time.Now().Unix() - c.lastBlockTime
	if age > c.maxBlockAge {
		return false, fmt.Sprintf("last block is %ds old, max %ds", age, c.maxBlockAge)
	}
	return true, ""
}

func (c *Checker) loop(ctx context.Context) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

// probe queries the node health endpoint for the syncing flag. A failed
// probe keeps the previous state; the block-age rule still applies.
func (c *Checker) probe(ctx context.Context) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", c.endpoint, nil)
	if err != nil {
		c.logger.Error("failed to build health request", "error", err)
		return
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("health probe failed", "error", err)
		return
	}
	defer resp.Body.Close()

	var health struct {
		Services struct {
			User struct {
				Syncing   bool  `json:"syncing"`
				BlockTime int64 `json:"block_time"`
			} `json:"user"`
		} `json:"services"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		c.logger.Warn("failed to parse health response", "error", err)
		return
	}

	c.mu.Lock()
	c.syncing = health.Services.User.Syncing
	c.probed = true
	// block_time is reported in milliseconds
	if bt := health.Services.User.BlockTime / 1000; bt > c.lastBlockTime {
		c.lastBlockTime = bt
	}
	c.mu.Unlock()
}
