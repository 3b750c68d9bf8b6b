package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// whisperParams is the wire shape of a whisper notification.
type whisperParams struct {
	Target string `json:"target"`
	Line   string `json:"line"`
}

// storeSetParams is the wire shape of a store.set request.
type storeSetParams struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Log prints a line to the host's console.
func (c *Client) Log(ctx context.Context, line string) error {
	return c.Notify(ctx, "log", line)
}

// LogWarn prints a warning line to the host's console.
func (c *Client) LogWarn(ctx context.Context, line string) error {
	return c.Notify(ctx, "warn", line)
}

// LogError prints an error line to the host's console.
func (c *Client) LogError(ctx context.Context, line string) error {
	return c.Notify(ctx, "error", line)
}

// LogTrace prints a trace line to the host's console.
func (c *Client) LogTrace(ctx context.Context, line string) error {
	return c.Notify(ctx, "trace", line)
}

// Broadcast sends a chat message to every player on the server.
func (c *Client) Broadcast(ctx context.Context, line string) error {
	return c.Notify(ctx, "broadcast", line)
}

// Whisper sends a chat message to one player, addressed by name.
func (c *Client) Whisper(ctx context.Context, target, line string) error {
	return c.Notify(ctx, "whisper", whisperParams{Target: target, Line: line})
}

// GetPlayers returns the players currently connected to the server.
func (c *Client) GetPlayers(ctx context.Context) ([]Player, error) {
	result, err := c.Call(ctx, "getPlayers", nil)
	if err != nil {
		return nil, fmt.Errorf("get players: %w", err)
	}

	if len(result) == 0 {
		return nil, nil
	}

	var players []Player
	if err := json.Unmarshal(result, &players); err != nil {
		return nil, fmt.Errorf("unmarshal players: %w", err)
	}

	return players, nil
}

// GetServerStatus returns the live server status, including its player
// listing. Returns nil with no error if the host answered with no payload.
func (c *Client) GetServerStatus(ctx context.Context) (*ServerStatus, error) {
	result, err := c.Call(ctx, "getServerStatus", nil)
	if err != nil {
		return nil, fmt.Errorf("get server status: %w", err)
	}

	if len(result) == 0 {
		return nil, nil
	}

	var status ServerStatus
	if err := json.Unmarshal(result, &status); err != nil {
		return nil, fmt.Errorf("unmarshal server status: %w", err)
	}

	return &status, nil
}

// StoreGet reads a value from the plugin's persistent store. The result is
// raw JSON; absent keys come back as JSON null.
func (c *Client) StoreGet(ctx context.Context, key string) (json.RawMessage, error) {
	result, err := c.Call(ctx, "store.get", key)
	if err != nil {
		return nil, fmt.Errorf("store get %q: %w", key, err)
	}

	return result, nil
}

// StoreSet writes a value into the plugin's persistent store. value may be
// any JSON-marshalable type.
func (c *Client) StoreSet(ctx context.Context, key string, value any) error {
	raw, err := marshalValue(value)
	if err != nil {
		return fmt.Errorf("marshal store value: %w", err)
	}

	if _, err := c.Call(ctx, "store.set", storeSetParams{Key: key, Value: raw}); err != nil {
		return fmt.Errorf("store set %q: %w", key, err)
	}

	return nil
}

// StoreDelete removes a key from the plugin's persistent store.
func (c *Client) StoreDelete(ctx context.Context, key string) error {
	if _, err := c.Call(ctx, "store.delete", key); err != nil {
		return fmt.Errorf("store delete %q: %w", key, err)
	}

	return nil
}

// StoreWipe clears the plugin's persistent store.
func (c *Client) StoreWipe(ctx context.Context) error {
	if _, err := c.Call(ctx, "store.wipe", nil); err != nil {
		return fmt.Errorf("store wipe: %w", err)
	}

	return nil
}

// StoreKeys lists the keys in the plugin's persistent store.
func (c *Client) StoreKeys(ctx context.Context) ([]string, error) {
	result, err := c.Call(ctx, "store.keys", nil)
	if err != nil {
		return nil, fmt.Errorf("store keys: %w", err)
	}

	if len(result) == 0 {
		return nil, nil
	}

	var keys []string
	if err := json.Unmarshal(result, &keys); err != nil {
		return nil, fmt.Errorf("unmarshal store keys: %w", err)
	}

	return keys, nil
}
