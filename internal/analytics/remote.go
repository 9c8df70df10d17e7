package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Skufu/excipredict/internal/prediction"
)

const maxResponseBytes = 1 << 20

// RemoteClient reads the counters kept by the prediction backend.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
	}
}

func (c *RemoteClient) Fetch(ctx context.Context) (Counters, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/analytics", nil)
	if err != nil {
		return Counters{}, &prediction.RemoteError{Message: "analytics request failed", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := "analytics service unreachable"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "analytics service timed out"
		}
		return Counters{}, &prediction.RemoteError{Message: msg, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Counters{}, &prediction.RemoteError{StatusCode: resp.StatusCode, Message: "analytics request failed"}
	}
	var counters Counters
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&counters); err != nil {
		return Counters{}, &prediction.RemoteError{StatusCode: resp.StatusCode, Message: "malformed analytics response", Err: err}
	}
	if err := c.validate.Struct(counters); err != nil {
		return Counters{}, &prediction.RemoteError{StatusCode: resp.StatusCode, Message: "malformed analytics response", Err: err}
	}
	return counters, nil
}
