package nethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"

	"neon-loadtest/core"
)

var errBlockhashNotFound = errors.New("faucet blockhash not found")

const (
	faucetNativeEndpoint = "request_neon"
	faucetTokenEndpoint  = "request_erc20"

	faucetBlockhashError = "Blockhash not found"

	DefaultFaucetRetries  = 3
	DefaultFaucetBackoff  = 3 * time.Second
	defaultFaucetTimeout  = 30 * time.Second
	maxFaucetResponseSize = 64 * 1024
)

// Funder credits an address with a number of whole tokens. It returns once
// the request has been accepted, not when the balance is updated.
type Funder interface {
	Fund(ctx context.Context, address common.Address, amount uint64) error
}

// FaucetFunder asks an HTTP faucet for native tokens, or for ERC20 tokens if
// `Token` is set.
type FaucetFunder struct {
	URL     string
	Token   *common.Address
	Retries int
	Backoff time.Duration
	Client  *http.Client
	Logger  core.Logger
}

func NewFaucetFunder(url string, logger core.Logger) *FaucetFunder {
	if logger == nil {
		logger = core.NopLogger()
	}

	return &FaucetFunder{
		URL:     url,
		Retries: DefaultFaucetRetries,
		Backoff: DefaultFaucetBackoff,
		Client:  &http.Client{Timeout: defaultFaucetTimeout},
		Logger:  logger,
	}
}

type faucetPayload struct {
	Amount uint64 `json:"amount"`
	Wallet string `json:"wallet"`
	Token  string `json:"token_addr,omitempty"`
}

// endpoint returns the URL to post to. A URL already naming the endpoint is
// used as is.
func (this *FaucetFunder) endpoint() string {
	var name string = faucetNativeEndpoint

	if this.Token != nil {
		name = faucetTokenEndpoint
	}

	if strings.HasSuffix(strings.TrimSuffix(this.URL, "/"), "/"+name) {
		return this.URL
	}

	return strings.TrimSuffix(this.URL, "/") + "/" + name
}

func (this *FaucetFunder) post(ctx context.Context, url string, body []byte) (int, string, error) {
	var request *http.Request
	var response *http.Response
	var content []byte
	var err error

	request, err = http.NewRequestWithContext(ctx, http.MethodPost, url,
		bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}

	request.Header.Set("Content-Type", "application/json")

	response, err = this.Client.Do(request)
	if err != nil {
		return 0, "", err
	}

	defer response.Body.Close()

	content, err = io.ReadAll(io.LimitReader(response.Body,
		maxFaucetResponseSize))
	if err != nil {
		return response.StatusCode, "", err
	}

	return response.StatusCode, string(content), nil
}

// Fund posts `{"amount": amount, "wallet": address}` to the faucet. The
// request is repeated, `Backoff` apart, while the faucet answers that its
// blockhash is not found, at most `Retries` more times.
func (this *FaucetFunder) Fund(ctx context.Context, address common.Address, amount uint64) error {
	var payload faucetPayload
	var body []byte
	var url, text string
	var status int
	var err error

	payload.Amount = amount
	payload.Wallet = address.Hex()
	if this.Token != nil {
		payload.Token = this.Token.Hex()
	}

	body, err = json.Marshal(&payload)
	if err != nil {
		return err
	}

	url = this.endpoint()

	err = retry.Do(func() error {
		var err error

		status, text, err = this.post(ctx, url, body)
		if err != nil {
			return err
		}

		if strings.Contains(text, faucetBlockhashError) {
			return errBlockhashNotFound
		}

		return nil
	},
		retry.Context(ctx),
		retry.Attempts(uint(this.Retries)+1),
		retry.Delay(this.Backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errBlockhashNotFound)
		}),
		retry.OnRetry(func(n uint, err error) {
			this.Logger.Debugf("faucet blockhash not found for "+
				"'%s', retry in %s", payload.Wallet, this.Backoff)
		}),
	)
	if (err != nil) && !errors.Is(err, errBlockhashNotFound) {
		return fmt.Errorf("faucet request for '%s': %w", payload.Wallet,
			err)
	}

	if status != http.StatusOK {
		return fmt.Errorf("faucet returned error: %s, status code: %d, "+
			"url: %s", strings.TrimSpace(text), status, url)
	}

	return nil
}
