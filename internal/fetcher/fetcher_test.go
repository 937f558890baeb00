package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stock-anomaly-sentry/internal/storage"
	"stock-anomaly-sentry/pkg/types"
)

const klineBody = `{"rc":0,"data":{"code":"600001","market":1,"name":"测试股份","klines":[
"2024-06-24,10.00,10.10",
"2024-06-25,10.10,10.30",
"2024-06-25,10.10,10.30",
"2024-06-26,10.30,10.20",
"2024-06-27,10.20,10.80",
"2024-06-28,10.80,11.00"]}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *EastmoneyClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetchConfig := types.FetchConfig{
		HistoryURL:     server.URL + "/kline",
		SpotURL:        server.URL + "/spot",
		RequestsPerSec: 100,
		MaxRetryTime:   2 * time.Second,
	}
	client := NewEastmoneyClient(NewClient(types.NetworkConfig{Timeout: time.Second}, fetchConfig), fetchConfig)
	client.now = func() time.Time { return time.Date(2024, 6, 28, 16, 0, 0, 0, time.UTC) }
	return client
}

func TestFetchHistoryParsesNewestFirst(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kline", r.URL.Path)
		assert.Equal(t, "1.600001", r.URL.Query().Get("secid"))
		assert.Equal(t, "101", r.URL.Query().Get("klt"))
		assert.Equal(t, "20240519", r.URL.Query().Get("beg"))
		fmt.Fprint(w, klineBody)
	})

	series, err := client.FetchHistory(context.Background(), "600001", types.KindStock, 20)
	require.NoError(t, err)
	require.Len(t, series, 5)
	assert.Equal(t, time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), series[0].TradeDate)
	assert.Equal(t, 11.0, series[0].Close)
	assert.Equal(t, time.Date(2024, 6, 24, 0, 0, 0, 0, time.UTC), series[4].TradeDate)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].TradeDate.After(series[i].TradeDate))
	}
}

func TestFetchHistoryTrimsToLookback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, klineBody)
	})

	series, err := client.FetchHistory(context.Background(), "600001", types.KindStock, 2)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 10.8, series[1].Close)
}

func TestFetchHistoryNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rc":0,"data":null}`)
	})

	series, err := client.FetchHistory(context.Background(), "399102", types.KindIndex, 40)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestFetchHistoryRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, klineBody)
	})

	series, err := client.FetchHistory(context.Background(), "600001", types.KindStock, 40)
	require.NoError(t, err)
	assert.Len(t, series, 5)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchHistoryClientErrorIsPermanent(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchHistory(context.Background(), "600001", types.KindStock, 40)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSecID(t *testing.T) {
	tests := []struct {
		symbol string
		kind   types.SeriesKind
		want   string
	}{
		{"600001", types.KindStock, "1.600001"},
		{"300750", types.KindStock, "0.300750"},
		{"002149", types.KindStock, "0.002149"},
		{"000001", types.KindIndex, "1.000001"},
		{"399102", types.KindIndex, "0.399102"},
		{"399107", types.KindIndex, "0.399107"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, secID(tt.symbol, tt.kind))
	}
}

func TestFetchSpot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spot", r.URL.Path)
		assert.Equal(t, "0.399102", r.URL.Query().Get("secid"))
		fmt.Fprint(w, `{"rc":0,"data":{"f43":2512.36,"f57":"399102","f58":"创业板综"}}`)
	})

	quote, err := client.FetchSpot(context.Background(), "399102", types.KindIndex)
	require.NoError(t, err)
	assert.Equal(t, 2512.36, quote.Price)
	assert.Equal(t, "创业板综", quote.Name)
}

func TestFetchSpotUnavailable(t *testing.T) {
	bodies := map[string]string{
		"停牌":  `{"rc":0,"data":{"f43":"-","f57":"600001","f58":"测试股份"}}`,
		"无数据": `{"rc":0,"data":null}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})
			_, err := client.FetchSpot(context.Background(), "600001", types.KindStock)
			assert.ErrorIs(t, err, ErrSpotUnavailable)
		})
	}
}

type fakeSpot struct {
	quote types.Quote
	err   error
}

func (f fakeSpot) FetchSpot(ctx context.Context, symbol string, kind types.SeriesKind) (types.Quote, error) {
	return f.quote, f.err
}

func TestResolveSpot(t *testing.T) {
	series := types.PriceSeries{
		{TradeDate: time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), Close: 11},
		{TradeDate: time.Date(2024, 6, 27, 0, 0, 0, 0, time.UTC), Close: 10.8},
	}

	live, err := ResolveSpot(context.Background(), fakeSpot{quote: types.Quote{Symbol: "600001", Name: "测试股份", Price: 11.2}}, "600001", types.KindStock, series)
	require.NoError(t, err)
	assert.Equal(t, types.SourceLive, live.Source)
	assert.Equal(t, 11.2, live.Quote.Price)

	fallback, err := ResolveSpot(context.Background(), fakeSpot{err: ErrSpotUnavailable}, "600001", types.KindStock, series)
	require.NoError(t, err)
	assert.Equal(t, types.SourceLastClose, fallback.Source)
	assert.Equal(t, 11.0, fallback.Quote.Price)

	_, err = ResolveSpot(context.Background(), fakeSpot{err: ErrSpotUnavailable}, "600001", types.KindStock, nil)
	assert.ErrorIs(t, err, ErrNoPrice)
}

type fakeHistory struct {
	series types.PriceSeries
	calls  int
}

func (f *fakeHistory) FetchHistory(ctx context.Context, symbol string, kind types.SeriesKind, lookback int) (types.PriceSeries, error) {
	f.calls++
	return f.series, nil
}

type fakeArchiver struct {
	saved map[string]int
}

func (f *fakeArchiver) SaveBars(ctx context.Context, symbol string, kind types.SeriesKind, series types.PriceSeries) error {
	f.saved[symbol] += len(series)
	return nil
}

func TestCachedHistoryProvider(t *testing.T) {
	upstream := &fakeHistory{series: types.PriceSeries{
		{TradeDate: time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), Close: 11},
	}}
	archiver := &fakeArchiver{saved: map[string]int{}}
	provider := NewCachedHistoryProvider(upstream, storage.NewSeriesCache(types.RedisConfig{}, time.Minute), archiver)

	for i := 0; i < 3; i++ {
		series, err := provider.FetchHistory(context.Background(), "600001", types.KindStock, 40)
		require.NoError(t, err)
		assert.Len(t, series, 1)
	}
	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, 1, archiver.saved["600001"])

	// 不同的回溯长度使用不同的缓存键
	_, err := provider.FetchHistory(context.Background(), "600001", types.KindStock, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.calls)
}

func TestCachedHistoryProviderSkipsEmpty(t *testing.T) {
	upstream := &fakeHistory{}
	provider := NewCachedHistoryProvider(upstream, storage.NewSeriesCache(types.RedisConfig{}, time.Minute), nil)

	for i := 0; i < 2; i++ {
		series, err := provider.FetchHistory(context.Background(), "600001", types.KindStock, 40)
		require.NoError(t, err)
		assert.Empty(t, series)
	}
	assert.Equal(t, 2, upstream.calls)
}
