package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io"
	"log"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mock-fcm/config"
	"mock-fcm/connectors"
	"mock-fcm/dispatch"
	"mock-fcm/handlers"
	"mock-fcm/metrics"
	"mock-fcm/middleware"
	"mock-fcm/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	srv, st, err := run(cfg)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPMode {
		log.Printf("Server listening on %s (HTTP - TLS Disabled, h2c enabled)", cfg.Addr)
		if err := serve(ctx, srv, st, srv.ListenAndServe); err != nil {
			log.Fatal("Server failed: ", err)
		}
		return
	}

	log.Printf("Server listening on %s (TLS 1.3, HTTP/2)", cfg.Addr)
	if _, err := os.Stat(cfg.CertFile); os.IsNotExist(err) {
		log.Printf("Certificate file %s not found. Generating self-signed certificate...", cfg.CertFile)
		if err := generateSelfSignedCert(cfg.CertFile, cfg.KeyFile); err != nil {
			log.Fatalf("Failed to generate certificate: %v", err)
		}
		log.Printf("Successfully generated self-signed certificate at %s and %s", cfg.CertFile, cfg.KeyFile)
	} else {
		log.Printf("Found existing certificate: %s", cfg.CertFile)
	}

	listen := func() error { return srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile) }
	if err := serve(ctx, srv, st, listen); err != nil {
		log.Fatal("Server failed: ", err)
	}
}

// serve runs listen until ctx is done, then shuts srv down and closes st.
// It returns only after both have finished.
func serve(ctx context.Context, srv *http.Server, st io.Closer, listen func() error) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown failed: %v", err)
		}
		if err := st.Close(); err != nil {
			log.Printf("[Store] Failed to close: %v", err)
		}
	}()

	if err := listen(); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-stopped
	return nil
}

// run builds the application: state store, dispatch engine, connectors and
// router. The returned server is not started yet; the caller closes the
// store once the server has shut down.
func run(cfg config.Config) (*http.Server, store.Store, error) {
	s, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	engine := dispatch.NewEngine(s)

	var registry *prometheus.Registry
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		engine.WithMetrics(metrics.NewPrometheusSink(registry))
	}

	// Activity observers
	wsConn := connectors.NewWebSocketConnector()
	engine.RegisterConnector("websocket", wsConn)
	if cfg.WebhookURL != "" {
		engine.RegisterConnector("webhook", connectors.NewWebhookConnector(cfg.WebhookURL))
	}
	if cfg.LogRecords {
		engine.RegisterConnector("log", connectors.NewLogConnector())
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	router.Match([]string{http.MethodGet, http.MethodPost, http.MethodPut}, "/error-tokens", handlers.ErrorTokensHandler(engine))
	router.Match([]string{http.MethodPost, http.MethodPut}, "/reset", handlers.ResetHandler(engine))
	router.POST("/fcm/send", handlers.SendHandler(engine))
	router.GET("/activity", handlers.ActivityHandler(engine))
	router.GET("/activity/stream", handlers.StreamHandler(wsConn))
	router.GET("/health", handlers.HealthHandler(engine))
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}
	if cfg.HTTPMode {
		// Clients that speak HTTP/2 over cleartext get it without TLS.
		server.Handler = h2c.NewHandler(router, &http2.Server{})
	} else {
		// Configure TLS 1.3 Strict
		server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
			CipherSuites: []uint16{
				tls.TLS_AES_128_GCM_SHA256,
				tls.TLS_AES_256_GCM_SHA384,
				tls.TLS_CHACHA20_POLY1305_SHA256,
			},
		}
	}

	return server, s, nil
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		log.Printf("[Store] Using SQLite at %s (reset on start)", cfg.SQLitePath)
		return store.NewSQLiteStore(cfg.SQLitePath)
	case config.StoreMemory, "":
		return store.NewMemoryStore(), nil
	}
	return nil, errors.New("unknown store: " + cfg.Store)
}

func generateSelfSignedCert(certPath, keyPath string) error {
	// ensure directory exists
	if err := os.MkdirAll(filepath.Dir(certPath), 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0755); err != nil {
		return err
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"mock-fcm"},
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(365 * 24 * time.Hour),

		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return err
	}

	certOut, err := os.Create(certPath)
	if err != nil {
		return err
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return err
	}

	keyOut, err := os.Create(keyPath)
	if err != nil {
		return err
	}
	defer keyOut.Close()
	return pem.Encode(keyOut, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
}
