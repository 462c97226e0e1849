package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-cimit-stub/internal/app"
	"github.com/imrishuroy/go-cimit-stub/internal/aws"
	"github.com/imrishuroy/go-cimit-stub/internal/config"
	"github.com/imrishuroy/go-cimit-stub/internal/testutil"
)

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	cfg := config.Config{
		ContraIndicatorsTable:   "cis",
		PendingMitigationsTable: "pending",
		ComponentID:             "https://cimit.stubs.example",
		SigningKeyPEM:           base64.StdEncoding.EncodeToString(der),
		VCValidity:              config.DefaultVCValidity,
		EvidenceMode:            config.EvidenceMinimal,
		Retention:               config.DefaultRetention,
	}
	require.NoError(t, cfg.Validate())

	fake := testutil.NewFakeDynamo()
	fake.CreateTable("cis", testutil.KeySchema{PartitionKey: "userId", SortKey: "contraIndicatorCode"})
	a, err := app.New(cfg, &aws.AWSClients{DynamoDB: fake}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	a.Metrics = nil

	r, err := setupRouter(a)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
