package restapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"parcel/internal/app/port"
	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/configloader"

	"github.com/gin-gonic/gin"
)

// selectionBody picks the network of a request. Missing fields fall back to the configuration.
type selectionBody struct {
	Network string `json:"network"`
	Mainnet *bool  `json:"mainnet"`
	RPCURL  string `json:"rpcUrl"`
	APIKey  string `json:"apiKey"`
	Mode    string `json:"mode"`
}

// SplitBody is the JSON body of POST /api/v1/split.
type SplitBody struct {
	selectionBody
	entity.SplitRequest
}

// MergeBody is the JSON body of POST /api/v1/merge.
type MergeBody struct {
	selectionBody
	entity.MergeRequest
}

// BalancesBody is the JSON body of POST /api/v1/balances.
type BalancesBody struct {
	selectionBody
	entity.BalanceRequest
}

// APIBatchResponse wraps the result of a split or merge.
type APIBatchResponse struct {
	Data          entity.BatchResult `json:"data"`
	StatusMessage string             `json:"status_message"`
}

// APIBalancesResponse wraps balance results.
type APIBalancesResponse struct {
	Data []entity.BalanceResult `json:"data"`
}

// APIErrorResponse is returned for requests that did not reach any participant.
type APIErrorResponse struct {
	Error string `json:"error"`
}

// ParcelHandler serves split, merge and balance requests.
type ParcelHandler struct {
	factory  port.ParcelFactory
	registry port.NetworkRegistry
	defaults configloader.ParcelConfig
}

// NewParcelHandler creates a new ParcelHandler.
func NewParcelHandler(factory port.ParcelFactory, registry port.NetworkRegistry, defaults configloader.ParcelConfig) *ParcelHandler {
	return &ParcelHandler{factory: factory, registry: registry, defaults: defaults}
}

func (h *ParcelHandler) parcel(body selectionBody) (port.Parcel, error) {
	selection := entity.NetworkSelection{
		Network: body.Network,
		Mainnet: h.defaults.Mainnet,
		RPCURL:  body.RPCURL,
		APIKey:  body.APIKey,
	}
	if selection.Network == "" && selection.RPCURL == "" {
		selection.Network = h.defaults.Network
		selection.RPCURL = h.defaults.RPCURL
	}
	if body.Mainnet != nil {
		selection.Mainnet = *body.Mainnet
	}
	if selection.APIKey == "" {
		selection.APIKey = h.defaults.APIKey
	}
	modeName := body.Mode
	if modeName == "" {
		modeName = h.defaults.Mode
	}
	mode, err := entity.ParseMode(modeName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return h.factory(selection, mode)
}

var errBadRequest = errors.New("bad request")

func writeError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if entity.IsValidationError(err) || errors.Is(err, errBadRequest) {
		status = http.StatusBadRequest
	}
	c.JSON(status, APIErrorResponse{Error: err.Error()})
}

func statusMessage(res entity.BatchResult) string {
	ok := res.Succeeded()
	switch {
	case ok == len(res.Results):
		return "All transfers confirmed."
	case ok == 0:
		return "No transfer succeeded."
	}
	return fmt.Sprintf("%d of %d transfers confirmed.", ok, len(res.Results))
}

// ListNetworksHandler returns the supported networks.
func (h *ParcelHandler) ListNetworksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.registry.All()})
}

// SplitHandler distributes an amount from one wallet to many recipients.
func (h *ParcelHandler) SplitHandler(c *gin.Context) {
	var body SplitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	p, err := h.parcel(body.selectionBody)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := p.Split(context.WithoutCancel(c.Request.Context()), body.SplitRequest)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIBatchResponse{Data: res, StatusMessage: statusMessage(res)})
}

// MergeHandler collects funds from many wallets into one receiver.
func (h *ParcelHandler) MergeHandler(c *gin.Context) {
	var body MergeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	p, err := h.parcel(body.selectionBody)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := p.Merge(context.WithoutCancel(c.Request.Context()), body.MergeRequest)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIBatchResponse{Data: res, StatusMessage: statusMessage(res)})
}

// BalancesHandler reads balances for many addresses.
func (h *ParcelHandler) BalancesHandler(c *gin.Context) {
	var body BalancesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	p, err := h.parcel(body.selectionBody)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := p.Balances(c.Request.Context(), body.BalanceRequest)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIBalancesResponse{Data: res})
}
