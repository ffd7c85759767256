package client

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EVMRPCClient reads native balances straight from a node. The connection is
// dialed lazily, trying the primary URL first and then each fallback.
type EVMRPCClient struct {
	netDef            entity.NetworkDefinition
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration

	mu        sync.Mutex
	ethClient *ethclient.Client
}

// NewEVMRPCClient creates a client for the network's RPC endpoints.
func NewEVMRPCClient(netDef entity.NetworkDefinition, connectionTimeout, rpcCallTimeout time.Duration) *EVMRPCClient {
	return &EVMRPCClient{
		netDef:            netDef,
		connectionTimeout: connectionTimeout,
		rpcCallTimeout:    rpcCallTimeout,
	}
}

func (c *EVMRPCClient) connect(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ethClient != nil {
		return c.ethClient, nil
	}

	rpcURLs := append([]string{c.netDef.PrimaryRPCURL}, c.netDef.FallbackRPCURLs...)
	var lastErr error
	for _, rpcURL := range rpcURLs {
		if rpcURL == "" {
			continue
		}
		dialCtx, cancel := context.WithTimeout(ctx, c.connectionTimeout)
		client, err := ethclient.DialContext(dialCtx, rpcURL)
		cancel()

		if err == nil {
			c.ethClient = client
			return client, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no RPC URL configured")
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", c.netDef.Name, lastErr)
}

// NativeBalance returns the latest balance in wei.
func (c *EVMRPCClient) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, &entity.UpstreamError{Provider: "rpc:" + c.netDef.Identifier, Op: "eth_getBalance", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	balance, err := client.BalanceAt(callCtx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, &entity.UpstreamError{Provider: "rpc:" + c.netDef.Identifier, Op: "eth_getBalance", Err: err}
	}
	return balance, nil
}

// Close releases the underlying connection, if any.
func (c *EVMRPCClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ethClient != nil {
		c.ethClient.Close()
		c.ethClient = nil
	}
}
