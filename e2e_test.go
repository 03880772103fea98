package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mock-fcm/config"
	"mock-fcm/fcm"

	"golang.org/x/net/http2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func startTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	srv, st, err := run(cfg)
	if err != nil {
		t.Fatalf("Failed to build server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		st.Close()
	})
	return ts
}

func testConfig() config.Config {
	return config.Config{Addr: ":0", HTTPMode: true, Store: config.StoreMemory, Metrics: true}
}

func request(t *testing.T, method, url, body string, headers map[string]string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

type activityRecord struct {
	DeviceToken    string            `json:"device_token"`
	RequestHeaders map[string]string `json:"request_headers"`
	RequestData    json.RawMessage   `json:"request_data"`
	ResponseStatus int               `json:"response_status"`
	ResponseData   fcm.SendResponse  `json:"response_data"`
}

type activityDump struct {
	Logs []activityRecord `json:"logs"`
}

func TestE2E_ErrorInjectionFlow(t *testing.T) {
	for _, backend := range []string{config.StoreMemory, config.StoreSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig()
			cfg.Store = backend
			cfg.SQLitePath = filepath.Join(t.TempDir(), "mock-fcm.db")
			ts := startTestServer(t, cfg)
			auth := map[string]string{"Authorization": "key=server-key", "Content-Type": "application/json"}

			// 1. Configure a failing token
			code, body := request(t, "POST", ts.URL+"/error-tokens", `[{"device_token":"T1","status":"NOT_REGISTERED","reason":"DEVICE_GONE"}]`, nil)
			if code != http.StatusOK {
				t.Fatalf("Configure failed: %d %s", code, body)
			}

			// 2. Send to it
			code, body = request(t, "POST", ts.URL+"/fcm/send", `{"to":"T1"}`, auth)
			if code != http.StatusOK {
				t.Fatalf("Send failed: %d %s", code, body)
			}
			var resp fcm.SendResponse
			json.Unmarshal(body, &resp)
			if resp.Failure != 1 || len(resp.Results) != 1 || resp.Results[0].Error != "DEVICE_GONE" {
				t.Errorf("Unexpected response: %s", body)
			}

			// 3. Multicast to unregistered tokens
			code, body = request(t, "POST", ts.URL+"/fcm/send", `{"registration_ids":["A","B"]}`, auth)
			if code != http.StatusOK {
				t.Fatalf("Send failed: %d %s", code, body)
			}
			json.Unmarshal(body, &resp)
			if resp.Success != 2 || len(resp.Results) != 2 {
				t.Errorf("Unexpected response: %s", body)
			}

			// 4. Unauthorized send leaves no trace
			code, body = request(t, "POST", ts.URL+"/fcm/send", `{"to":"X"}`, nil)
			if code != http.StatusUnauthorized || len(body) != 0 {
				t.Errorf("Expected empty 401, got %d %s", code, body)
			}

			// 5. Inspect activity
			code, body = request(t, "GET", ts.URL+"/activity", "", nil)
			if code != http.StatusOK {
				t.Fatalf("Activity failed: %d", code)
			}
			var dump activityDump
			if err := json.Unmarshal(body, &dump); err != nil {
				t.Fatalf("Failed to unmarshal activity: %v", err)
			}
			if len(dump.Logs) != 3 {
				t.Fatalf("Expected 3 records, got %d", len(dump.Logs))
			}
			want := []struct {
				token   string
				results int
			}{{"T1", 1}, {"A", 1}, {"B", 2}}
			for i, w := range want {
				rec := dump.Logs[i]
				if rec.DeviceToken != w.token || len(rec.ResponseData.Results) != w.results || rec.ResponseStatus != 200 {
					t.Errorf("Record %d: expected %s with %d results, got %s with %d", i, w.token, w.results, rec.DeviceToken, len(rec.ResponseData.Results))
				}
			}
			if dump.Logs[1].RequestHeaders["authorization"] != "key=server-key" {
				t.Errorf("Expected recorded authorization header, got %v", dump.Logs[1].RequestHeaders)
			}

			// 6. Reset
			code, body = request(t, "POST", ts.URL+"/reset", "", nil)
			if code != http.StatusOK || string(body) != "OK" {
				t.Fatalf("Reset failed: %d %s", code, body)
			}
			_, body = request(t, "GET", ts.URL+"/activity", "", nil)
			if string(body) != `{"logs":[]}` {
				t.Errorf("Expected empty activity, got %s", body)
			}
			_, body = request(t, "GET", ts.URL+"/error-tokens", "", nil)
			if string(body) != `{}` {
				t.Errorf("Expected empty registry, got %s", body)
			}
		})
	}
}

func TestE2E_ActivityStream(t *testing.T) {
	ts := startTestServer(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/activity/stream", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The client is registered shortly after the handshake completes, so
	// keep sending until a batch is seen from its first record.
	auth := map[string]string{"Authorization": "key=x"}
	request(t, "POST", ts.URL+"/error-tokens", `[{"device_token":"B","status":"X","reason":"GONE"}]`, nil)

	received := make(chan activityRecord, 64)
	go func() {
		defer close(received)
		for {
			var rec activityRecord
			if err := wsjson.Read(ctx, conn, &rec); err != nil {
				return
			}
			received <- rec
		}
	}()

	var first activityRecord
	for first.DeviceToken != "A" {
		request(t, "POST", ts.URL+"/fcm/send", `{"registration_ids":["A","B"]}`, auth)
		select {
		case rec, ok := <-received:
			if !ok {
				t.Fatal("Stream closed before a full batch arrived")
			}
			first = rec
		case <-time.After(200 * time.Millisecond):
		}
	}

	second, ok := <-received
	if !ok {
		t.Fatal("Stream closed early")
	}
	if second.DeviceToken != "B" {
		t.Fatalf("Expected B after A, got %s", second.DeviceToken)
	}
	if len(first.ResponseData.Results) != 1 {
		t.Errorf("Expected 1 result in first record, got %d", len(first.ResponseData.Results))
	}
	if second.ResponseData.Failure != 1 || len(second.ResponseData.Results) != 2 {
		t.Errorf("Unexpected second record: %+v", second.ResponseData)
	}
}

func TestE2E_RoutesAndMethods(t *testing.T) {
	ts := startTestServer(t, testConfig())

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/error-tokens", http.StatusOK},
		{"PUT", "/reset", http.StatusOK},
		{"GET", "/reset", http.StatusNotFound},
		{"GET", "/fcm/send", http.StatusNotFound},
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		code, _ := request(t, tt.method, ts.URL+tt.path, "", nil)
		if code != tt.status {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.status, code)
		}
	}
}

func TestE2E_Metrics(t *testing.T) {
	ts := startTestServer(t, testConfig())

	request(t, "POST", ts.URL+"/fcm/send", `{"registration_ids":["A","B"]}`, map[string]string{"Authorization": "key=x"})
	request(t, "POST", ts.URL+"/fcm/send", `{"to":"A"}`, nil)
	request(t, "POST", ts.URL+"/fcm/send", `{"to":`, map[string]string{"Authorization": "key=x"})

	_, body := request(t, "GET", ts.URL+"/metrics", "", nil)
	for _, want := range []string{
		`mockfcm_send_requests_total{outcome="ok"} 1`,
		`mockfcm_send_requests_total{outcome="unauthorized"} 1`,
		`mockfcm_send_requests_total{outcome="invalid"} 1`,
		`mockfcm_recipients_total{result="success"} 2`,
		`mockfcm_activity_records 2`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}

func TestE2E_H2C(t *testing.T) {
	ts := startTestServer(t, testConfig())

	client := &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}

	resp, err := client.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("h2c request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.ProtoMajor != 2 {
		t.Errorf("Expected HTTP/2, got %s", resp.Proto)
	}
}

func TestE2E_TLSServesHTTP2(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPMode = false
	srv, st, err := run(cfg)
	if err != nil {
		t.Fatalf("Failed to build server: %v", err)
	}
	defer st.Close()
	if srv.TLSConfig == nil || srv.TLSConfig.MinVersion != tls.VersionTLS13 {
		t.Fatal("Expected strict TLS 1.3 config")
	}

	ts := httptest.NewUnstartedServer(srv.Handler)
	ts.EnableHTTP2 = true
	ts.StartTLS()
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("TLS request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.ProtoMajor != 2 {
		t.Errorf("Expected HTTP/2, got %s", resp.Proto)
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "certs", "cert.pem")
	keyPath := filepath.Join(dir, "certs", "key.pem")

	if err := generateSelfSignedCert(certPath, keyPath); err != nil {
		t.Fatalf("generateSelfSignedCert failed: %v", err)
	}
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		t.Fatalf("Generated pair does not load: %v", err)
	}
	if _, err := os.Stat(certPath); err != nil {
		t.Errorf("Certificate missing: %v", err)
	}
}

type closeRecorder struct {
	closed chan struct{}
}

func (c *closeRecorder) Close() error {
	close(c.closed)
	return nil
}

func TestServeWaitsForShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})}
	st := &closeRecorder{closed: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, srv, st, func() error { return srv.Serve(ln) })
	}()

	resp, err := http.Get("http://" + ln.Addr().String())
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}

	select {
	case <-st.closed:
	default:
		t.Error("serve returned before the store was closed")
	}
}
