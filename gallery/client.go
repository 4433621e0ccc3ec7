// Package gallery drives folder and image management against the Aperture
// REST endpoints.
package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kir-gadjello/aperture/agent"
	"github.com/kir-gadjello/aperture/transport"
)

// Client calls the gallery endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type okResponse struct {
	OK bool `json:"ok"`
}

// CreateFolder posts {name}.
func (c *Client) CreateFolder(ctx context.Context, name string) (bool, error) {
	return c.postOK(ctx, "/api/create_folder", map[string]string{"name": name})
}

// DeleteFolder posts {folder}.
func (c *Client) DeleteFolder(ctx context.Context, folder string) (bool, error) {
	return c.postOK(ctx, "/api/delete_folder", map[string]string{"folder": folder})
}

// DeleteImage posts {folder, filename}.
func (c *Client) DeleteImage(ctx context.Context, folder, filename string) (bool, error) {
	return c.postOK(ctx, "/api/delete_image", map[string]string{"folder": folder, "filename": filename})
}

// Exif fetches the EXIF metadata of one image. A response whose exif is
// missing or falsy, or that is not JSON, yields nil and no error.
func (c *Client) Exif(ctx context.Context, folder, filename string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("folder", folder)
	params.Set("filename", filename)

	endpoint, err := transport.JoinURL(c.baseURL, "/api/image_exif?"+params.Encode())
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Exif json.RawMessage `json:"exif"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, nil
	}
	if !agent.Truthy(body.Exif) {
		return nil, nil
	}
	return body.Exif, nil
}

// Image downloads the original file of one image.
func (c *Client) Image(ctx context.Context, folder, filename string) ([]byte, error) {
	rel := "/images/" + url.PathEscape(folder) + "/" + url.PathEscape(filename)
	endpoint, err := transport.JoinURL(c.baseURL, rel)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s/%s: status %d", folder, filename, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// postOK posts a JSON body and reports the "ok" field. Only transport errors
// are returned as errors; an unparsable body counts as not ok.
func (c *Client) postOK(ctx context.Context, rel string, payload interface{}) (bool, error) {
	endpoint, err := transport.JoinURL(c.baseURL, rel)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	var ok okResponse
	if err := json.Unmarshal(raw, &ok); err != nil {
		return false, nil
	}
	return ok.OK, nil
}
