package comparison

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/goldprice"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/regional"
)

type MockRegional struct{ mock.Mock }

func (m *MockRegional) Fetch(ctx context.Context) *regional.RegionalGoldQuote {
	q, _ := m.Called(ctx).Get(0).(*regional.RegionalGoldQuote)
	return q
}

func (m *MockRegional) LastUpdate() (time.Time, bool) {
	args := m.Called()
	return args.Get(0).(time.Time), args.Bool(1)
}

type MockRates struct{ mock.Mock }

func (m *MockRates) USDTRY(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

type MockWorld struct{ mock.Mock }

func (m *MockWorld) Resolve(ctx context.Context, force bool) (goldprice.WorldGoldPrice, error) {
	args := m.Called(ctx, force)
	return args.Get(0).(goldprice.WorldGoldPrice), args.Error(1)
}

func (m *MockWorld) LastUpdate() (time.Time, bool) {
	args := m.Called()
	return args.Get(0).(time.Time), args.Bool(1)
}

func ptr(v float64) *float64 { return &v }

func averages(usdBuy, xauSell float64) currency.Quotes {
	return currency.Quotes{
		currency.USD: currency.NewQuote(currency.USD, usdBuy, usdBuy+0.1),
		currency.XAU: currency.NewQuote(currency.XAU, xauSell-10, xauSell),
	}
}

var scraped = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func regionalMock(q *regional.RegionalGoldQuote) *MockRegional {
	m := &MockRegional{}
	m.On("Fetch", mock.Anything).Return(q)
	m.On("LastUpdate").Return(scraped, q != nil)
	return m
}

func TestCompareWithRegionalQuote(t *testing.T) {
	reg := regionalMock(&regional.RegionalGoldQuote{Istanbul: 3050, London: 3040, USDTRY: ptr(42)})
	rates := &MockRates{}
	world := &MockWorld{}
	e := NewEngine(reg, rates, world, logger.Nop())

	gc, err := e.Compare(context.Background(), averages(41.5, 3500))
	require.NoError(t, err)

	rc := gc.World.Regional
	require.NotNil(t, rc)
	assert.Equal(t, "10.0000", rc.Difference.Amount)
	assert.Equal(t, "13435.80", rc.Difference.Total)
	assert.Equal(t, "USD", rc.Difference.Unit)
	assert.Equal(t, "(3050.00 - 3040.00) × 31.99 × 42.0000", rc.Difference.Formula)
	assert.Equal(t, "42.0000", rc.USDTRYRate)
	assert.Equal(t, Price{Price: "3040.00", Currency: "XAU/USD"}, rc.London)

	assert.Equal(t, "4118.51", gc.Turkey.PerGram)
	assert.Equal(t, "4118507.56", gc.Turkey.Per1kg)
	assert.Equal(t, SourceRegionalIstanbul, gc.Turkey.Source)
	assert.Equal(t, "4105.00", gc.World.PerGram)
	assert.Equal(t, "4105004.26", gc.World.Per1kg)
	assert.Equal(t, "3040.00", gc.World.XAUUSDPrice)
	assert.Equal(t, SourceRegional, gc.World.USDTRYSource)
	require.NotNil(t, gc.World.LastUpdate)
	assert.Equal(t, scraped, *gc.World.LastUpdate)

	assert.Equal(t, "13503.30", gc.Difference.Amount)
	assert.Equal(t, "0.33", gc.Difference.Percent)
	assert.Equal(t, StatusMoreExpensive, gc.Difference.Status)

	rates.AssertNotCalled(t, "USDTRY", mock.Anything)
	world.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestCompareRegionalRateFallsBackToTCMB(t *testing.T) {
	reg := regionalMock(&regional.RegionalGoldQuote{Istanbul: 3050, London: 3040, USDTRY: ptr(401234)})
	rates := &MockRates{}
	rates.On("USDTRY", mock.Anything).Return(40.5, nil)

	gc, err := NewEngine(reg, rates, nil, logger.Nop()).Compare(context.Background(), averages(41.5, 3500))
	require.NoError(t, err)
	assert.Equal(t, SourceTCMB, gc.World.USDTRYSource)
	assert.Equal(t, "40.5000", gc.World.USDTRYRate)
}

func TestCompareRegionalRateFallsBackToConstant(t *testing.T) {
	reg := regionalMock(&regional.RegionalGoldQuote{Istanbul: 3040, London: 3050})
	rates := &MockRates{}
	rates.On("USDTRY", mock.Anything).Return(0.0, errors.New("timeout"))

	gc, err := NewEngine(reg, rates, nil, logger.Nop()).Compare(context.Background(), averages(41.5, 3500))
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, gc.World.USDTRYSource)
	assert.Equal(t, "42.0000", gc.World.USDTRYRate)
	assert.Equal(t, "-10.0000", gc.World.Regional.Difference.Amount)
	assert.Equal(t, StatusCheaper, gc.Difference.Status)
}

func TestCompareWithoutRegionalUsesWorldPrice(t *testing.T) {
	reg := regionalMock(nil)
	world := &MockWorld{}
	world.On("Resolve", mock.Anything, false).Return(goldprice.WorldGoldPrice{XAUUSDPrice: 2650, Source: "goldapi.io"}, nil)
	world.On("LastUpdate").Return(scraped, true)

	gc, err := NewEngine(reg, nil, world, logger.Nop()).Compare(context.Background(), averages(41.5, 3500))
	require.NoError(t, err)

	assert.Nil(t, gc.World.Regional)
	assert.Equal(t, "3500.00", gc.Turkey.PerGram)
	assert.Equal(t, SourceAverage, gc.Turkey.Source)
	assert.Equal(t, "3535.78", gc.World.PerGram)
	assert.Equal(t, "2650.00", gc.World.XAUUSDPrice)
	assert.Equal(t, "goldapi.io", gc.World.Source)
	assert.Equal(t, "41.5000", gc.World.USDTRYRate)
	assert.Equal(t, "-35775.72", gc.Difference.Amount)
	assert.Equal(t, "-1.01", gc.Difference.Percent)
}

func TestCompareWorldFailureLeavesZero(t *testing.T) {
	world := &MockWorld{}
	world.On("Resolve", mock.Anything, false).Return(goldprice.WorldGoldPrice{}, goldprice.ErrNoWorldPrice)

	gc, err := NewEngine(nil, nil, world, logger.Nop()).Compare(context.Background(), averages(41.5, 3500))
	require.NoError(t, err)
	assert.Equal(t, "0.00", gc.World.PerGram)
	assert.Equal(t, "0.00", gc.Difference.Percent)
	assert.Nil(t, gc.World.LastUpdate)
}

func TestCompareWithoutDomesticPrice(t *testing.T) {
	_, err := NewEngine(regionalMock(nil), nil, nil, logger.Nop()).Compare(context.Background(), currency.Quotes{})
	assert.ErrorIs(t, err, ErrNoDomesticPrice)
}

func TestWorldJSONCarriesLegacyKey(t *testing.T) {
	reg := regionalMock(&regional.RegionalGoldQuote{Istanbul: 3050, London: 3040, USDTRY: ptr(42)})
	gc, err := NewEngine(reg, nil, nil, logger.Nop()).Compare(context.Background(), averages(41.5, 3500))
	require.NoError(t, err)

	b, err := json.Marshal(gc)
	require.NoError(t, err)

	var out map[string]map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	world := out["world"]
	assert.Equal(t, world["regionalComparison"], world["hakanComparison"])
	assert.Equal(t, "3040.00", world["xauUsdPrice"])
	assert.Equal(t, "TRY", out["turkey"]["currency"])
}
