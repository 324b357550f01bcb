// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package onchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"strings"

	"github.com/rockpool-labs/rockpool/pool/reverts"
	"github.com/rockpool-labs/rockpool/rock"
)

// HTTPView reads the chain figures from JSON oracle endpoints:
//
//	GET {url}/epoch                 -> {"epoch": n}
//	GET {url}/pools/{address}/value -> {"value": n}
type HTTPView struct {
	url string
	c   *http.Client
}

// NewHTTPView creates a view against the given base URL.
func NewHTTPView(url string) *HTTPView {
	return NewHTTPViewWithHTTP(url, http.DefaultClient)
}

func NewHTTPViewWithHTTP(url string, c *http.Client) *HTTPView {
	return &HTTPView{
		url: strings.TrimSuffix(url, "/"),
		c:   c,
	}
}

func (v *HTTPView) CurrentEpoch(ctx context.Context) (uint64, error) {
	body, err := v.httpGET(ctx, v.url+"/epoch")
	if err != nil {
		return 0, err
	}
	var out struct {
		Epoch uint64 `json:"epoch"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("unable to unmarshal epoch - %w", err)
	}
	return out.Epoch, nil
}

func (v *HTTPView) PoolValue(ctx context.Context, pool rock.Address) (*big.Int, error) {
	body, err := v.httpGET(ctx, v.url+"/pools/"+pool.String()+"/value")
	if err != nil {
		return nil, err
	}
	var out struct {
		Value *big.Int `json:"value"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unable to unmarshal pool value - %w", err)
	}
	if out.Value == nil {
		return nil, errors.New("pool value missing in response")
	}
	return out.Value, nil
}

func (v *HTTPView) httpGET(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := v.c.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, reverts.ExternalTimeout("external view timed out")
		}
		return nil, fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error - Status Code %d - %s", resp.StatusCode, responseBody)
	}
	return responseBody, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
