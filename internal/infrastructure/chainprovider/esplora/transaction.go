package esplora

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/pkg/stats"
)

// minFeeRate is the min relay fee rate, in sat/vbyte.
const minFeeRate = 1.0

// GetProtocolParams returns the fee rate estimated for the configured
// confirmation target. If the target is missing, the estimate for the
// closest greater target is used.
func (e *esplora) GetProtocolParams(
	ctx context.Context,
) (params *domain.ProtocolParams, err error) {
	defer func(start time.Time) {
		stats.RecordProviderRequest(providerName, "GetProtocolParams", start, err)
	}(time.Now())

	resp, err := e.get(ctx, "/fee-estimates")
	if err != nil {
		return nil, fmt.Errorf("error on retrieving fee estimates: %w", err)
	}
	estimates := make(map[string]float64)
	if err := json.Unmarshal([]byte(resp), &estimates); err != nil {
		return nil, fmt.Errorf("error on retrieving fee estimates: %w", err)
	}

	feeRate := minFeeRate
	bestTarget := math.MaxInt
	for key, rate := range estimates {
		target, err := strconv.Atoi(key)
		if err != nil || target < e.confTarget || target >= bestTarget {
			continue
		}
		bestTarget = target
		feeRate = math.Max(rate, minFeeRate)
	}
	return &domain.ProtocolParams{FeeRate: feeRate}, nil
}

// Submit broadcasts the serialized transaction and returns its id.
func (e *esplora) Submit(ctx context.Context, signedTx []byte) (txid string, err error) {
	defer func(start time.Time) {
		stats.RecordProviderRequest(providerName, "Submit", start, err)
	}(time.Now())

	headers := map[string]string{
		"Content-Type": "text/plain",
	}
	status, resp, err := e.request(
		ctx, http.MethodPost, "/tx", hex.EncodeToString(signedTx), headers,
	)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &APIError{Status: status, Message: resp}
	}
	return strings.TrimSpace(resp), nil
}
