package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Scorecard.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Scorecard.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TriggerRun queues a new pipeline run.
func (c *Client) TriggerRun(trigger string) (*TriggerRunResponse, error) {
	var resp TriggerRunResponse
	if err := c.client.Call("Scorecard.TriggerRun", TriggerRunRequest{Trigger: trigger}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunList returns runs optionally filtered by statuses.
func (c *Client) RunList(statuses []string) (*RunListResponse, error) {
	var resp RunListResponse
	if err := c.client.Call("Scorecard.RunList", RunListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunDescribe returns details for a single run.
func (c *Client) RunDescribe(id int64) (*RunDescribeResponse, error) {
	var resp RunDescribeResponse
	if err := c.client.Call("Scorecard.RunDescribe", RunDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunRetry retries failed or review runs.
func (c *Client) RunRetry(ids []int64) (*RunRetryResponse, error) {
	var resp RunRetryResponse
	if err := c.client.Call("Scorecard.RunRetry", RunRetryRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunStop stops in-flight runs.
func (c *Client) RunStop(ids []int64) (*RunStopResponse, error) {
	var resp RunStopResponse
	if err := c.client.Call("Scorecard.RunStop", RunStopRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunRemove removes a single run.
func (c *Client) RunRemove(id int64) (*RunRemoveResponse, error) {
	var resp RunRemoveResponse
	if err := c.client.Call("Scorecard.RunRemove", RunRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunClear removes all runs.
func (c *Client) RunClear() (*RunClearResponse, error) {
	var resp RunClearResponse
	if err := c.client.Call("Scorecard.RunClear", RunClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunClearCompleted removes completed runs.
func (c *Client) RunClearCompleted() (*RunClearCompletedResponse, error) {
	var resp RunClearCompletedResponse
	if err := c.client.Call("Scorecard.RunClearCompleted", RunClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunClearFailed removes failed runs.
func (c *Client) RunClearFailed() (*RunClearFailedResponse, error) {
	var resp RunClearFailedResponse
	if err := c.client.Call("Scorecard.RunClearFailed", RunClearFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunReset rolls stuck processing runs back to stable statuses.
func (c *Client) RunReset() (*RunResetResponse, error) {
	var resp RunResetResponse
	if err := c.client.Call("Scorecard.RunReset", RunResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunHealth returns aggregate run diagnostics.
func (c *Client) RunHealth() (*RunHealthResponse, error) {
	var resp RunHealthResponse
	if err := c.client.Call("Scorecard.RunHealth", RunHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Scorecard.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DriftCheck runs an on-demand drift comparison.
func (c *Client) DriftCheck() (*DriftCheckResponse, error) {
	var resp DriftCheckResponse
	if err := c.client.Call("Scorecard.DriftCheck", DriftCheckRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Scorecard.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
