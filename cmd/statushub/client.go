package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/loykin/statushub"
)

// APIClient provides HTTP client functionality to query a statushub server
type APIClient struct {
	baseURL string
	client  *http.Client
}

// HistoryQuery carries optional history filter parameters
type HistoryQuery struct {
	Status string
	After  int64
	Limit  int
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://localhost:8080/status"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsReachable checks if the server is running and reachable
func (c *APIClient) IsReachable() bool {
	resp, err := c.client.Get(c.baseURL + "/objects")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode != http.StatusNotFound
}

// History fetches history rows for one object or a whole relation
func (c *APIClient) History(kind, object string, q HistoryQuery) ([]statushub.Row, error) {
	rel, err := relationPath(kind)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if object != "" {
		params.Set("object", object)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.After > 0 {
		params.Set("after", strconv.FormatInt(q.After, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var rows []statushub.Row
	if err := c.getJSON(c.baseURL+"/"+rel+"/history", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Current fetches the current status rows of one object or all objects
// of a kind
func (c *APIClient) Current(kind, object string) ([]statushub.Row, error) {
	rel, err := relationPath(kind)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if object != "" {
		params.Set("object", object)
	}

	var rows []statushub.Row
	if err := c.getJSON(c.baseURL+"/"+rel+"/current", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Objects lists catalog objects, optionally filtered by kind
func (c *APIClient) Objects(kind string) ([]statushub.Object, error) {
	params := url.Values{}
	if kind != "" {
		params.Set("kind", kind)
	}

	var objs []statushub.Object
	if err := c.getJSON(c.baseURL+"/objects", params, &objs); err != nil {
		return nil, err
	}
	return objs, nil
}

func (c *APIClient) getJSON(rawURL string, params url.Values, out any) error {
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	resp, err := c.client.Get(rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err = json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return fmt.Errorf("API error: status %d", resp.StatusCode)
		}
		return fmt.Errorf("API error: %s", errorResp.Error)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func relationPath(kind string) (string, error) {
	switch kind {
	case "source", "":
		return "sources", nil
	case "sink":
		return "sinks", nil
	default:
		return "", fmt.Errorf("invalid kind %q (want source or sink)", kind)
	}
}
