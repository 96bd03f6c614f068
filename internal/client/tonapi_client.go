package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"parcel/internal/app/port"
	domain "parcel/internal/domain/entity"
	"parcel/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// tonAPIClientImpl looks up jetton metadata on tonapi.io.
type tonAPIClientImpl struct {
	client         *fasthttp.Client
	mainnetBaseURL string
	testnetBaseURL string
	timeout        time.Duration
	logger         *zap.Logger
}

// NewTonAPIClient creates a jetton metadata client for the mainnet and testnet APIs.
func NewTonAPIClient(mainnetBaseURL, testnetBaseURL string, timeout time.Duration, logger *zap.Logger) port.TokenMetadataService {
	return &tonAPIClientImpl{
		client:         &fasthttp.Client{},
		mainnetBaseURL: strings.TrimRight(mainnetBaseURL, "/"),
		testnetBaseURL: strings.TrimRight(testnetBaseURL, "/"),
		timeout:        timeout,
		logger:         logger.Named("TonAPIClient"),
	}
}

// JettonMetadata implements port.TokenMetadataService.
func (c *tonAPIClientImpl) JettonMetadata(ctx context.Context, master string, mainnet bool, apiKey string) (domain.TokenMetadata, error) {
	if strings.TrimSpace(master) == "" {
		return domain.TokenMetadata{}, fmt.Errorf("jetton master address cannot be empty")
	}
	baseURL := c.testnetBaseURL
	if mainnet {
		baseURL = c.mainnetBaseURL
	}
	requestURL := fmt.Sprintf("%s/jettons/%s", baseURL, url.PathEscape(strings.TrimSpace(master)))

	c.logger.Debug("Requesting jetton metadata", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Warn("Failed to execute request to tonapi", zap.String("url", requestURL), zap.Error(err))
			return domain.TokenMetadata{}, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Warn("Failed to execute request to tonapi (with default timeout)", zap.String("url", requestURL), zap.Error(err))
			return domain.TokenMetadata{}, fmt.Errorf("failed to execute request to %s with default timeout: %w", requestURL, err)
		}
	}

	rawBody := resp.Body()

	if resp.StatusCode() != fasthttp.StatusOK {
		var apiErr entity.APIError
		_ = json.Unmarshal(rawBody, &apiErr)
		c.logger.Warn("tonapi request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.String("error", apiErr.Error),
		)
		return domain.TokenMetadata{}, fmt.Errorf("tonapi request to %s failed with status %d: %s", requestURL, resp.StatusCode(), apiErr.Error)
	}

	var info entity.JettonInfo
	if err := json.Unmarshal(rawBody, &info); err != nil {
		c.logger.Warn("Failed to unmarshal tonapi response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err),
		)
		return domain.TokenMetadata{}, fmt.Errorf("failed to unmarshal tonapi response from %s: %w", requestURL, err)
	}
	if !info.Metadata.Decimals.Set {
		return domain.TokenMetadata{}, fmt.Errorf("tonapi response for %s has no decimals", master)
	}

	c.logger.Debug("Jetton metadata resolved",
		zap.String("jetton", master),
		zap.String("symbol", info.Metadata.Symbol),
		zap.Uint8("decimals", info.Metadata.Decimals.Value))
	return domain.TokenMetadata{
		Address:  master,
		Name:     info.Metadata.Name,
		Symbol:   info.Metadata.Symbol,
		Decimals: info.Metadata.Decimals.Value,
	}, nil
}
