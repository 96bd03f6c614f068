package ton

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// opJettonTransfer is the TEP-74 transfer operation code.
const opJettonTransfer = 0x0f8a7ea5

// jettonTransferBody encodes a TEP-74 transfer without custom or forward payload.
func jettonTransferBody(queryID uint64, amount *big.Int, to, responseTo *address.Address, forwardAmount *big.Int) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(opJettonTransfer, 32).
		MustStoreUInt(queryID, 64).
		MustStoreBigCoins(amount).
		MustStoreAddr(to).
		MustStoreAddr(responseTo).
		MustStoreBoolBit(false).
		MustStoreBigCoins(forwardAmount).
		MustStoreBoolBit(false).
		EndCell()
}

// parseAddress accepts user friendly and raw ("0:abcd...") forms.
func parseAddress(s string) (*address.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty TON address")
	}
	if strings.Contains(s, ":") {
		addr, err := address.ParseRawAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid TON address %q: %w", s, err)
		}
		return addr, nil
	}
	addr, err := address.ParseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("invalid TON address %q: %w", s, err)
	}
	return addr, nil
}
