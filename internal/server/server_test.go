package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/btcvanity/internal/job"
	"github.com/Amr-9/btcvanity/internal/metrics"
	"github.com/Amr-9/btcvanity/internal/store"
	"github.com/Amr-9/btcvanity/pkg/generator/cpu"
)

const (
	// keyOne is the private key 1 and its well-known compressed P2PKH
	// address and WIF.
	keyOne     = "0000000000000000000000000000000000000000000000000000000000000001"
	keyOneAddr = "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
	keyOneWIF  = "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn"

	// impossible never starts a Legacy address body.
	impossible = "0"

	testOrigin = "http://localhost:5173"
)

type harness struct {
	server  *Server
	http    *httptest.Server
	store   *store.Store
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, withStore bool) *harness {
	t.Helper()

	h := &harness{metrics: metrics.New()}

	if withStore {
		s, err := store.Open(
			filepath.Join(t.TempDir(), store.DefaultDBName),
			store.DefaultOpenTimeout,
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		h.store = s
	}

	engine := cpu.NewEngine(cpu.Config{
		Workers:   2,
		BatchSize: 50,
	}, cpu.DefaultParallelThreshold)

	h.server = New(Config{
		Searcher:       engine,
		Store:          h.store,
		Metrics:        h.metrics,
		AllowedOrigins: []string{testOrigin},
	})
	h.http = httptest.NewServer(h.server.Handler())
	t.Cleanup(func() {
		h.server.Sessions().CloseAll()
		h.http.Close()
	})

	return h
}

func (h *harness) post(t *testing.T, path string, body any) (int, []byte) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(
		h.http.URL+path, "application/json", bytes.NewReader(payload),
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func (h *harness) get(t *testing.T, path string) (int, []byte) {
	t.Helper()

	resp, err := http.Get(h.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func requireDetail(t *testing.T, data []byte, contains string) {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(data, &body))
	require.Contains(t, body["detail"], contains)
}

func requireMainnetAddress(t *testing.T, address, wif string) {
	t.Helper()

	_, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams)
	require.NoError(t, err)

	decoded, err := btcutil.DecodeWIF(wif)
	require.NoError(t, err)
	require.True(t, decoded.CompressPubKey)
}

func TestAddressTypes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	status, data := h.get(t, "/address-types")
	require.Equal(t, http.StatusOK, status)

	var body struct {
		Types []addressType `json:"types"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	require.Len(t, body.Types, 4)

	values := make([]string, 0, len(body.Types))
	for _, typ := range body.Types {
		values = append(values, typ.Value)
		require.NotEmpty(t, typ.Label)
		require.NotEmpty(t, typ.Prefix)
	}
	require.Equal(t,
		[]string{"p2pkh", "p2sh-p2wpkh", "p2wpkh", "p2tr"}, values)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	for _, format := range []string{"p2pkh", "p2sh-p2wpkh", "p2wpkh", "p2tr"} {
		status, data := h.post(t, "/generate",
			searchRequest{AddressType: format})
		require.Equal(t, http.StatusOK, status, format)

		var resp generationResponse
		require.NoError(t, json.Unmarshal(data, &resp))
		require.True(t, resp.Success)
		require.EqualValues(t, 1, resp.Attempts)
		requireMainnetAddress(t, resp.Address, resp.PrivateKey)
	}

	status, data := h.post(t, "/generate",
		searchRequest{AddressType: "p2xx"})
	require.Equal(t, http.StatusBadRequest, status)
	requireDetail(t, data, "unsupported address format")
}

func TestGenerateBatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	status, data := h.post(t, "/generate-batch?batch_size=5",
		searchRequest{AddressType: "p2wpkh"})
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Addresses []keyPair `json:"addresses"`
		Count     int       `json:"count"`
		Success   bool      `json:"success"`
	}
	require.NoError(t, json.Unmarshal(data, &resp))
	require.True(t, resp.Success)
	require.Equal(t, 5, resp.Count)
	require.Len(t, resp.Addresses, 5)

	seen := make(map[string]struct{})
	for _, pair := range resp.Addresses {
		require.True(t, strings.HasPrefix(pair.Address, "bc1q"))
		seen[pair.Address] = struct{}{}
	}
	require.Len(t, seen, 5)

	status, _ = h.post(t, "/generate-batch",
		searchRequest{AddressType: "p2pkh"})
	require.Equal(t, http.StatusOK, status)

	for _, size := range []string{"0", "101", "many"} {
		status, _ := h.post(t, "/generate-batch?batch_size="+size,
			searchRequest{AddressType: "p2pkh"})
		require.Equal(t, http.StatusBadRequest, status, size)
	}
}

func TestFindPattern(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)

	// Every P2WPKH body starts with the witness version 'q'.
	status, data := h.post(t, "/find-pattern", searchRequest{
		AddressType: "p2wpkh",
		Pattern:     "q",
	})
	require.Equal(t, http.StatusOK, status)

	var resp generationResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.True(t, resp.Success)
	require.EqualValues(t, 1, resp.Attempts)
	require.Empty(t, resp.Warnings)
	requireMainnetAddress(t, resp.Address, resp.PrivateKey)

	status, data = h.get(t, "/results")
	require.Equal(t, http.StatusOK, status)

	var results struct {
		Results []resultRecord `json:"results"`
		Total   int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(data, &results))
	require.Equal(t, 1, results.Total)
	require.Len(t, results.Results, 1)
	require.Equal(t, resp.Address, results.Results[0].Address)
	require.Equal(t, string(store.SourceAPI), results.Results[0].Source)
	require.Equal(t, "q", results.Results[0].Pattern)
}

func TestFindPatternAttemptLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	status, data := h.post(t, "/find-pattern?max_attempts=100",
		searchRequest{AddressType: "p2pkh", Pattern: impossible})
	require.Equal(t, http.StatusOK, status)

	var resp generationResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.False(t, resp.Success)
	require.Empty(t, resp.Address)
	require.EqualValues(t, 100, resp.Attempts)
	require.NotEmpty(t, resp.Warnings)
}

func TestFindPatternRejects(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	tests := []struct {
		name   string
		path   string
		body   searchRequest
		detail string
	}{
		{
			name:   "empty pattern",
			path:   "/find-pattern",
			body:   searchRequest{AddressType: "p2pkh"},
			detail: ErrEmptyPattern.Error(),
		},
		{
			name:   "bad format",
			path:   "/find-pattern",
			body:   searchRequest{AddressType: "p2sh", Pattern: "a"},
			detail: "unsupported address format",
		},
		{
			name: "bad position",
			path: "/find-pattern",
			body: searchRequest{
				AddressType: "p2pkh", Pattern: "a", Position: "edge",
			},
			detail: "position",
		},
		{
			name:   "bad limit",
			path:   "/find-pattern?max_attempts=-1",
			body:   searchRequest{AddressType: "p2pkh", Pattern: "a"},
			detail: "max_attempts",
		},
	}

	for _, tc := range tests {
		status, data := h.post(t, tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, status, tc.name)
		requireDetail(t, data, tc.detail)
	}
}

func TestDerive(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	status, data := h.post(t, "/derive", deriveRequest{
		PrivateKey:  keyOne,
		AddressType: "p2pkh",
	})
	require.Equal(t, http.StatusOK, status)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Equal(t, keyOneAddr, resp["address"])
	require.Equal(t, keyOneWIF, resp["private_key"])

	status, data = h.post(t, "/derive", deriveRequest{
		PrivateKey:  "zz",
		AddressType: "p2pkh",
	})
	require.Equal(t, http.StatusBadRequest, status)
	requireDetail(t, data, "hex")

	status, data = h.post(t, "/derive", deriveRequest{
		PrivateKey:  strings.Repeat("00", 32),
		AddressType: "p2tr",
	})
	require.Equal(t, http.StatusBadRequest, status)
	requireDetail(t, data, "secp256k1 scalar")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	status, data := h.post(t, "/validate", validateRequest{
		Address: keyOneAddr,
	})
	require.Equal(t, http.StatusOK, status)

	var resp validateResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.True(t, resp.Valid)
	require.Equal(t, "p2pkh", resp.AddressType)

	tampered := keyOneAddr[:len(keyOneAddr)-1] + "N"
	_, data = h.post(t, "/validate", validateRequest{Address: tampered})

	resp = validateResponse{}
	require.NoError(t, json.Unmarshal(data, &resp))
	require.False(t, resp.Valid)
	require.NotEmpty(t, resp.Detail)
}

func TestResultsDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	status, data := h.get(t, "/results")
	require.Equal(t, http.StatusNotFound, status)
	requireDetail(t, data, "disabled")
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	req, err := http.NewRequest(http.MethodOptions, h.http.URL+"/generate", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, testOrigin,
		resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"),
		http.MethodPost)

	req, err = http.NewRequest(http.MethodGet, h.http.URL+"/address-types", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	status, _ := h.post(t, "/generate-batch?batch_size=3",
		searchRequest{AddressType: "p2tr"})
	require.Equal(t, http.StatusOK, status)

	status, data := h.get(t, "/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(data), "btcvanity_random_addresses_total 3")
}

func dialWS(t *testing.T, h *harness) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws/generate"
	header := http.Header{"Origin": []string{testOrigin}}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// readUntil reads messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) serverMessage {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for {
		var msg serverMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == typ {
			return msg
		}
	}
}

func TestWebSocketFindsPattern(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)
	conn := dialWS(t, h)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":       actionStart,
		"address_type": "p2wpkh",
		"pattern":      "q",
	}))

	msg := readUntil(t, conn, msgSuccess)
	require.EqualValues(t, 1, msg.Attempts)
	require.NotZero(t, msg.JobID)
	requireMainnetAddress(t, msg.Address, msg.PrivateKey)

	// The result is stored by the writer before the message is sent.
	records, err := h.store.Recent(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, msg.Address, records[0].Address)
	require.Equal(t, store.SourceWebSocket, records[0].Source)
}

func TestWebSocketStop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	conn := dialWS(t, h)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":       actionStart,
		"address_type": "p2pkh",
		"pattern":      impossible,
	}))
	started := readUntil(t, conn, msgStatus)
	require.Equal(t, "started", started.Message)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": actionPause,
	}))
	require.Equal(t, "paused", readUntil(t, conn, msgStatus).Message)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": actionResume,
	}))
	require.Equal(t, "resumed", readUntil(t, conn, msgStatus).Message)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": actionStop,
	}))
	cancelled := readUntil(t, conn, msgCancelled)
	require.Equal(t, started.JobID, cancelled.JobID)

	// Nothing is running any more.
	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": actionStop,
	}))
	msg := readUntil(t, conn, msgError)
	require.Equal(t, job.ErrNoActiveJob.Error(), msg.Message)
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	conn := dialWS(t, h)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte("{not json")))
	require.Contains(t, readUntil(t, conn, msgError).Message,
		"invalid message")

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "explode",
	}))
	require.Contains(t, readUntil(t, conn, msgError).Message,
		"unknown action")

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":       actionStart,
		"address_type": "p2xx",
	}))
	require.Contains(t, readUntil(t, conn, msgError).Message,
		"unsupported address format")
}

func TestWebSocketDisconnectClosesSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	conn := dialWS(t, h)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":       actionStart,
		"address_type": "p2pkh",
		"pattern":      impossible,
	}))
	readUntil(t, conn, msgStatus)
	require.Equal(t, 1, h.server.Sessions().Len())

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return h.server.Sessions().Len() == 0
	}, 10*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsOrigin(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws/generate"
	header := http.Header{"Origin": []string{"http://evil.example"}}

	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServeShutsDown(t *testing.T) {
	t.Parallel()

	srv := New(Config{
		Searcher: cpu.NewEngine(cpu.DefaultConfig(), 0),
	})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ctx, lis)
	}()

	resp, err := http.Get("http://" + lis.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
