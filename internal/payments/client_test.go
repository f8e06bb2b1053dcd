package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleasePaymentSendsMinorUnits(t *testing.T) {
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transfers", r.URL.Path)
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"amount":         r.PostForm.Get("amount"),
			"currency":       r.PostForm.Get("currency"),
			"destination":    r.PostForm.Get("destination"),
			"transfer_group": r.PostForm.Get("transfer_group"),
		}
		w.Write([]byte(`{"id":"tr_1","destination":"acct_9","amount":11000}`))
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, SecretKey: "sk_test"})
	require.NoError(t, err)

	err = c.ReleasePayment(context.Background(), "acct_9", decimal.RequireFromString("110"), "order-o1")
	require.NoError(t, err)

	assert.Equal(t, "11000", gotForm["amount"])
	assert.Equal(t, "usd", gotForm["currency"])
	assert.Equal(t, "acct_9", gotForm["destination"])
	assert.Equal(t, "order-o1", gotForm["transfer_group"])
}

func TestReleasePaymentRejectsBadInput(t *testing.T) {
	c, err := New(Config{URL: "https://pay.example.test", SecretKey: "sk_test"})
	require.NoError(t, err)

	assert.Error(t, c.ReleasePayment(context.Background(), "", decimal.RequireFromString("10"), "ref"))
	assert.Error(t, c.ReleasePayment(context.Background(), "acct_9", decimal.Zero, "ref"))
}

func TestReleasePaymentSurfacesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"message":"insufficient escrow balance","code":"balance_insufficient"}}`))
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, SecretKey: "sk_test"})
	require.NoError(t, err)

	err = c.ReleasePayment(context.Background(), "acct_9", decimal.RequireFromString("25.50"), "order-o2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient escrow balance")
}

func TestRetrieveAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/accounts/acct_9", r.URL.Path)
		w.Write([]byte(`{"id":"acct_9","payouts_enabled":true,"details_submitted":true}`))
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, SecretKey: "sk_test"})
	require.NoError(t, err)

	acct, err := c.RetrieveAccount(context.Background(), "acct_9")
	require.NoError(t, err)
	assert.True(t, acct.PayoutsEnabled)
}

func TestCreatePaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "15050", r.PostForm.Get("amount"))
		w.Write([]byte(`{"id":"pi_1","client_secret":"pi_1_secret_x"}`))
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, SecretKey: "sk_test"})
	require.NoError(t, err)

	secret, err := c.CreatePaymentIntent(context.Background(), decimal.RequireFromString("150.50"), "order-o3")
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret_x", secret)
}
