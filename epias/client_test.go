package epias

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func istanbul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	return loc
}

type fakeEPIAS struct {
	logins   atomic.Int32
	requests atomic.Int32
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeEPIAS) serve(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cas/v1/tickets", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("username") != "user" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Location", "https://giris.example/cas/v1/tickets/TGT-123-abc")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/electricity-service/", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.handler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	return New(Options{
		BaseURL:        srv.URL + "/electricity-service",
		AuthURL:        srv.URL + "/cas/v1/tickets",
		Username:       "user",
		Password:       "secret",
		RequestsPerSec: 100,
		MaxRetryTime:   5 * time.Second,
		Location:       istanbul(t),
	})
}

func TestLoginReadsTicketFromLocation(t *testing.T) {
	f := &fakeEPIAS{}
	c := newTestClient(t, f.serve(t))

	tgt, err := c.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TGT-123-abc", tgt)
}

func TestLoginWithoutCredentials(t *testing.T) {
	c := New(Options{AuthURL: "http://127.0.0.1:1"})
	_, err := c.Login(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestFetchPricesMapsItems(t *testing.T) {
	f := &fakeEPIAS{}
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/electricity-service/v1/markets/dam/data/mcp", r.URL.Path)
		assert.Equal(t, "TGT-123-abc", r.Header.Get("TGT"))

		var body rangeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2025-10-20T00:00:00+03:00", body.StartDate)
		assert.Equal(t, "2025-10-21T00:00:00+03:00", body.EndDate)

		_, _ = w.Write([]byte(`{"items":[
			{"date":"2025-10-20T00:00:00+03:00","hour":"00:00","price":2500.5,"priceUsd":60.1,"priceEur":51.2},
			{"date":"2025-10-20T01:00:00+03:00","hour":"01:00","price":2400}
		]}`))
	}
	c := newTestClient(t, f.serve(t))
	loc := istanbul(t)

	rows, err := c.FetchPrices(context.Background(),
		time.Date(2025, 10, 20, 0, 0, 0, 0, loc),
		time.Date(2025, 10, 21, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-10-20", rows[0].Date)
	assert.Equal(t, "00:00", rows[0].Hour)
	assert.Equal(t, 2500.5, rows[0].Price)
	require.NotNil(t, rows[0].PriceUSD)
	assert.Equal(t, 60.1, *rows[0].PriceUSD)
	assert.Nil(t, rows[1].PriceEUR)
	assert.Equal(t, int32(1), f.logins.Load())
}

func TestFetchConsumptionUsesTimeField(t *testing.T) {
	f := &fakeEPIAS{}
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"date":"2025-10-20T05:00:00+03:00","time":"05:00","consumption":31000.25}]}`))
	}
	c := newTestClient(t, f.serve(t))

	rows, err := c.FetchConsumption(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-10-20", rows[0].Date)
	assert.Equal(t, "05:00", rows[0].Hour)
	assert.Equal(t, 31000.25, rows[0].Consumption)
}

func TestFetchGenerationRenamesSources(t *testing.T) {
	f := &fakeEPIAS{}
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"date":"2025-10-20T13:00:00+03:00","hour":"13:00","total":40000,"sun":5000,"dammedHydro":7000,"naphta":1}]}`))
	}
	c := newTestClient(t, f.serve(t))

	rows, err := c.FetchGeneration(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "13:00", rows[0].Hour)
	assert.Equal(t, 5000.0, rows[0].Solar)
	assert.Equal(t, 7000.0, rows[0].Hydro)
	assert.Equal(t, 1.0, rows[0].Naphtha)
}

func TestRetriesServerErrors(t *testing.T) {
	f := &fakeEPIAS{}
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		if f.requests.Load() < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}
	c := newTestClient(t, f.serve(t))

	rows, err := c.FetchPrices(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int32(3), f.requests.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	f := &fakeEPIAS{}
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad range"))
	}
	c := newTestClient(t, f.serve(t))

	_, err := c.FetchPrices(context.Background(), time.Now(), time.Now())
	var se *HTTPStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "bad range", se.Body)
	assert.Equal(t, int32(1), f.requests.Load())
}

func TestUnauthorizedRenewsTicket(t *testing.T) {
	f := &fakeEPIAS{}
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		if f.requests.Load() == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}
	c := newTestClient(t, f.serve(t))

	_, err := c.FetchConsumption(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.logins.Load())
}

func TestFactKey(t *testing.T) {
	loc := istanbul(t)
	tests := []struct {
		date, hour       string
		wantDate, wantHr string
		wantErr          bool
	}{
		{"2025-10-20T07:00:00+03:00", "07:00", "2025-10-20", "07:00", false},
		{"2025-10-20T04:00:00Z", "", "2025-10-20", "07:00", false},
		{"2025-10-20", "7", "2025-10-20", "07:00", false},
		{"20-10-2025", "07:00", "", "", true},
		{"2025-10-20", "25:00", "", "", true},
	}
	for _, tt := range tests {
		date, hour, err := factKey(tt.date, tt.hour, loc)
		if tt.wantErr {
			assert.Error(t, err, tt.date)
			continue
		}
		require.NoError(t, err, tt.date)
		assert.Equal(t, tt.wantDate, date)
		assert.Equal(t, tt.wantHr, hour)
	}
}
