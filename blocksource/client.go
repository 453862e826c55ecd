// Package blocksource implements the Block Source protocol the Indexer
// Engine consumes: a synchronous JSON-RPC-over-HTTP client against a
// Bitcoin-family node, with bounded retry backoff on transport failures
// and a first-call check that the node is actually on the configured
// network.
package blocksource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/MysticalGareth/UBB-sub000/logger"
	"github.com/MysticalGareth/UBB-sub000/netparams"
)

// ErrNetworkMismatch is returned by the first RPC call if the node's
// declared chain does not match the configured network.
var ErrNetworkMismatch = errors.New("node chain does not match configured network")

// ErrTransport wraps any request-level failure (connection refused,
// non-2xx status, malformed JSON-RPC envelope) after retries are exhausted.
var ErrTransport = errors.New("block source transport error")

// Config controls retry behavior and the node endpoint.
type Config struct {
	RPCURL     string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Client is a synchronous Block Source client. It is not safe for
// concurrent use — the engine's single-threaded model never needs it to be.
type Client struct {
	cfg     Config
	net     *netparams.Params
	http    *http.Client
	nextID  int
	checked bool
}

// New returns a client that has not yet verified the node's network.
func New(cfg Config, net *netparams.Params) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		net:  net,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC request with bounded retry backoff around
// transport-level failures. It does not retry RPC-level errors (bad
// params, unknown method) — only connection/IO failures are transient.
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	c.nextID++
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: c.nextID, Method: method, Params: params})
	if err != nil {
		return errors.WithStack(err)
	}

	policy := backoff.WithContext(c.retryPolicy(), ctx)

	var rpcResp rpcResponse
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(errors.WithStack(err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			logger.BlockSourceLog.Warnf("transport error calling %s: %s", method, err)
			return errors.Wrap(ErrTransport, err.Error())
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(ErrTransport, err.Error())
		}
		if resp.StatusCode != http.StatusOK {
			return errors.Wrapf(ErrTransport, "http status %d calling %s: %s", resp.StatusCode, method, body)
		}

		if err := json.Unmarshal(body, &rpcResp); err != nil {
			return backoff.Permanent(errors.Wrap(ErrTransport, err.Error()))
		}
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return backoff.Permanent(rpcResp.Error)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (c *Client) retryPolicy() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryDelay
	if eb.InitialInterval == 0 {
		eb.InitialInterval = time.Second
	}
	return backoff.WithMaxRetries(eb, uint64(c.cfg.MaxRetries))
}

// ensureNetwork performs the first-call chain check, once, lazily.
func (c *Client) ensureNetwork(ctx context.Context) error {
	if c.checked {
		return nil
	}
	var info struct {
		Chain string `json:"chain"`
	}
	if err := c.call(ctx, "getblockchaininfo", nil, &info); err != nil {
		return err
	}
	if !c.net.MatchesChain(info.Chain) {
		return errors.Wrapf(ErrNetworkMismatch, "node reports chain %q, configured network is %q", info.Chain, c.net.Name)
	}
	c.checked = true
	return nil
}

// GetTip returns the 64-hex hash of the node's current best block.
func (c *Client) GetTip(ctx context.Context) (string, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return "", err
	}
	var hash string
	if err := c.call(ctx, "getbestblockhash", nil, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetHashAtHeight returns the 64-hex block hash at the given height.
func (c *Client) GetHashAtHeight(ctx context.Context, height uint32) (string, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return "", err
	}
	var hash string
	if err := c.call(ctx, "getblockhash", []interface{}{height}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetHeightOf returns the height of the block with the given hash, via
// getblock(hash, verbosity=1).
func (c *Client) GetHeightOf(ctx context.Context, hash string) (uint32, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return 0, err
	}
	var result struct {
		Height uint32 `json:"height"`
	}
	if err := c.call(ctx, "getblock", []interface{}{hash, 1}, &result); err != nil {
		return 0, err
	}
	return result.Height, nil
}

// GetBlockHex returns the raw serialized block as hex, via
// getblock(hash, verbosity=0).
func (c *Client) GetBlockHex(ctx context.Context, hash string) (string, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return "", err
	}
	var blockHex string
	if err := c.call(ctx, "getblock", []interface{}{hash, 0}, &blockHex); err != nil {
		return "", err
	}
	return blockHex, nil
}
