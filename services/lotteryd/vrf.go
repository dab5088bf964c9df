package lotteryd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"blocklotto/native/lottery"
)

// VRFForwarder posts randomness requests to an external coordinator. The
// coordinator fulfils asynchronously through the admin fulfil endpoint using
// the same handle.
type VRFForwarder struct {
	endpoint string
	client   *http.Client
}

// NewVRFForwarder constructs a forwarder for the supplied endpoint.
func NewVRFForwarder(endpoint string, timeout time.Duration) *VRFForwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VRFForwarder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type vrfRequestBody struct {
	Handle  string `json:"handle"`
	Asset   string `json:"asset"`
	RoundID uint64 `json:"round_id"`
}

// Request submits the draw request. A non-2xx response fails the submission
// so the engine can retry the handshake on the next upkeep pass.
func (f *VRFForwarder) Request(handle string, asset string, roundID uint64) error {
	if f == nil || f.endpoint == "" {
		return nil
	}
	payload, err := json.Marshal(vrfRequestBody{Handle: handle, Asset: asset, RoundID: roundID})
	if err != nil {
		return fmt.Errorf("lotteryd: encode vrf request: %w", err)
	}
	resp, err := f.client.Post(f.endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("lotteryd: submit vrf request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lotteryd: vrf coordinator returned %d", resp.StatusCode)
	}
	return nil
}

var _ lottery.RandomnessSource = (*VRFForwarder)(nil)
