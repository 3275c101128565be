// Package web3 provides the block height sources the poll manager measures
// poll lifetimes against: an Ethereum JSON-RPC backed client for deployments
// that anchor polls to a real chain, and a local simulated clock for
// standalone and test runs.
package web3

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/vocdoni/zkpoll/log"
)

const defaultRequestTimeout = 10 * time.Second

// Client reads the current height from an Ethereum JSON-RPC endpoint.
type Client struct {
	cli     *ethclient.Client
	url     string
	timeout time.Duration
}

// Dial connects to the RPC endpoint and probes it with a block number request
// before returning, so a misconfigured endpoint fails at startup rather than
// on the first vote.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	cli, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	blockNumber, err := cli.BlockNumber(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("RPC endpoint not ready: %w", err)
	}
	log.Infow("connected to web3 endpoint", "url", rpcURL, "blockNumber", blockNumber)
	return &Client{cli: cli, url: rpcURL, timeout: defaultRequestTimeout}, nil
}

// WaitReady blocks until the RPC endpoint answers block number requests with
// a non-zero height, retrying until the context is canceled.
func WaitReady(ctx context.Context, rpcURL string) error {
	log.Debugw("waiting for RPC to be ready", "url", rpcURL)
	cli, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	defer cli.Close()

	retryInterval := 500 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled while waiting for RPC: %w", ctx.Err())
		default:
			blockNumber, err := cli.BlockNumber(ctx)
			if err == nil && blockNumber > 0 {
				log.Infow("RPC is ready", "url", rpcURL, "blockNumber", blockNumber)
				return nil
			}
			time.Sleep(retryInterval)
		}
	}
}

// CurrentHeight returns the latest block number of the endpoint.
func (c *Client) CurrentHeight() (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	blockNumber, err := c.cli.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number from %s: %w", c.url, err)
	}
	return blockNumber, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.cli.Close()
}

// SimulatedHeight is a local height source. With a non-zero block period it
// advances on the wall clock like a chain producing one block per period;
// with a zero period it only moves on explicit Advance calls, which keeps
// tests deterministic.
type SimulatedHeight struct {
	mu          sync.Mutex
	base        uint64
	start       time.Time
	blockPeriod time.Duration
}

// NewSimulatedHeight creates a simulated height source starting at zero.
func NewSimulatedHeight(blockPeriod time.Duration) *SimulatedHeight {
	return &SimulatedHeight{start: time.Now(), blockPeriod: blockPeriod}
}

// CurrentHeight returns the simulated height. It never fails.
func (s *SimulatedHeight) CurrentHeight() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blockPeriod == 0 {
		return s.base, nil
	}
	return s.base + uint64(time.Since(s.start)/s.blockPeriod), nil
}

// Advance moves the simulated height forward by blocks.
func (s *SimulatedHeight) Advance(blocks uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base += blocks
}
