package flickr

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"codeberg.org/snonux/pinphotos/internal/errs"
)

// Download opens the image at imageURL. The caller closes the body.
func (c *Client) Download(ctx context.Context, imageURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, errs.Transport(fmt.Sprintf("invalid image url %q", imageURL)).WithCause(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Transport("download failed").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errs.HTTPStatus(fmt.Sprintf("download failed with status %d", resp.StatusCode))
	}

	return resp.Body, nil
}

// ReadLimited reads all of r, failing if it holds more than maxBytes.
// A non-positive maxBytes means no limit.
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds maximum size of %d bytes", maxBytes)
	}
	return data, nil
}
