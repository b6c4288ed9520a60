package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rewards-ledger/logging"
	"rewards-ledger/models"
	"rewards-ledger/services"
	"rewards-ledger/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testToken = "gateway-secret"

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB, Services) {
	t.Helper()
	db := testutil.NewDB(t)
	log := logging.Discard()

	settings := services.NewSettingsService(db)
	require.NoError(t, settings.Seed(context.Background()))
	ledger := services.NewLedgerService(db, log)
	referrals := services.NewReferralService(db, log, ledger, settings)
	wallet := services.NewWalletService(db, log, ledger, settings)
	svc := Services{
		Users:     services.NewUserService(db, log, settings, wallet, referrals),
		Ledger:    ledger,
		Wallet:    wallet,
		Clicks:    services.NewClickService(db, log),
		Postbacks: services.NewPostbackService(db, log, ledger, referrals),
		Referrals: referrals,
		Scratch:   services.NewScratchService(db),
		Settings:  settings,
		Analytics: services.NewAnalyticsService(db),
	}

	app := fiber.New()
	SetupPostbackRoutes(app, svc.Postbacks)
	SetupRoutes(app, svc, testToken, log)
	return app, db, svc
}

type call struct {
	method  string
	path    string
	body    string
	userID  string
	roles   string
	noToken bool
}

func do(t *testing.T, app *fiber.App, c call) (int, string) {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if !c.noToken {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}
	if c.roles != "" {
		req.Header.Set("X-User-Roles", c.roles)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func errorCode(t *testing.T, body string) string {
	t.Helper()
	var out struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out), body)
	return out.Code
}

func TestPostbackAcknowledgments(t *testing.T) {
	app, db, _ := newTestApp(t)
	user := testutil.SeedUser(t, db, "Ada", "")
	offer := testutil.SeedOffer(t, db, "Install", "40", "cash")
	testutil.SeedClick(t, db, user.ID, offer.ID, "tok-1")

	status, body := do(t, app, call{method: http.MethodGet, path: "/postback?status=approved", noToken: true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ERROR: Missing click_id", body)

	status, body = do(t, app, call{method: http.MethodGet, path: "/postback?clickid=nope&status=approved", noToken: true})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ERROR: Click not found", body)

	status, body = do(t, app, call{method: http.MethodGet, path: "/postback?clickid=tok-1&status=approved&event=install", noToken: true})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	status, body = do(t, app, call{method: http.MethodGet, path: "/postback?clickid=tok-1&status=approved&event=install", noToken: true})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK: Already processed", body)

	var bal models.WalletBalance
	require.NoError(t, db.Take(&bal, "user_id = ? AND currency_type = ?", user.ID, models.CurrencyCash).Error)
	assert.True(t, decimal.RequireFromString("40").Equal(bal.Balance), bal.Balance.String())

	var logs int64
	require.NoError(t, db.Model(&models.PostbackLog{}).Count(&logs).Error)
	assert.EqualValues(t, 4, logs)
}

func TestPostbackJSONBody(t *testing.T) {
	app, db, _ := newTestApp(t)
	user := testutil.SeedUser(t, db, "Bea", "")
	offer := testutil.SeedOffer(t, db, "Survey", "10", "coins")
	testutil.SeedClick(t, db, user.ID, offer.ID, "tok-2")

	status, body := do(t, app, call{
		method:  http.MethodPost,
		path:    "/postback",
		body:    `{"clickid":"tok-2","status":"completed","event":"survey","payout":12.75}`,
		noToken: true,
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	var bal models.WalletBalance
	require.NoError(t, db.Take(&bal, "user_id = ? AND currency_type = ?", user.ID, models.CurrencyCoins).Error)
	assert.True(t, decimal.RequireFromString("12.75").Equal(bal.Balance), bal.Balance.String())
}

func TestGatewayAndRoleChecks(t *testing.T) {
	app, db, _ := newTestApp(t)
	user := testutil.SeedUser(t, db, "Cal", "")

	status, body := do(t, app, call{method: http.MethodGet, path: "/api/me", userID: user.ID, noToken: true})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(t, body))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	req.Header.Set("X-User-ID", user.ID)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	status, _ = do(t, app, call{method: http.MethodGet, path: "/api/me"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/me", userID: user.ID})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, user.ID)

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/admin/settings", userID: user.ID, roles: "user"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", errorCode(t, body))

	status, body = do(t, app, call{method: http.MethodGet, path: "/api/admin/settings", userID: user.ID, roles: "user, admin"})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, services.SettingMinWithdrawal)
}

func TestLoginAndWalletErrors(t *testing.T) {
	app, _, _ := newTestApp(t)
	login := `{"google_id":"g-1","email":"dee@example.com","name":"Dee","device_id":"dev-1"}`

	status, body := do(t, app, call{method: http.MethodPost, path: "/api/users/login", body: login})
	require.Equal(t, http.StatusCreated, status, body)
	var res struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	userID := res.User.ID

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/users/login", body: login})
	assert.Equal(t, http.StatusOK, status)

	status, body = do(t, app, call{method: http.MethodPost, path: "/api/users/login", body: `{"google_id":"g-2","email":"x@example.com","device_id":"dev-1"}`})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "device_mismatch", errorCode(t, body))

	status, body = do(t, app, call{method: http.MethodPost, path: "/api/wallet/withdraw", userID: userID, body: `{"amount":"150","method":"paypal"}`})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "insufficient_balance", errorCode(t, body))

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/wallet/checkin", userID: userID})
	assert.Equal(t, http.StatusOK, status)
	status, body = do(t, app, call{method: http.MethodPost, path: "/api/wallet/checkin", userID: userID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_checked_in", errorCode(t, body))

	status, _ = do(t, app, call{method: http.MethodPost, path: "/api/wallet/spin", userID: userID})
	assert.Equal(t, http.StatusOK, status)
}

func TestAdminAdjustAndSettings(t *testing.T) {
	app, db, _ := newTestApp(t)
	admin := testutil.SeedUser(t, db, "Root", "")
	user := testutil.SeedUser(t, db, "Eve", "")

	status, body := do(t, app, call{
		method: http.MethodPost,
		path:   "/api/admin/wallets/" + user.ID + "/adjust",
		body:   `{"currency":"gems","amount":"15","note":"goodwill"}`,
		userID: admin.ID,
		roles:  "admin",
	})
	assert.Equal(t, http.StatusOK, status, body)

	status, body = do(t, app, call{
		method: http.MethodPut,
		path:   "/api/admin/settings",
		body:   `{"settings":{"min_withdrawal":"abc"}}`,
		userID: admin.ID,
		roles:  "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", errorCode(t, body))

	status, _ = do(t, app, call{
		method: http.MethodPut,
		path:   "/api/admin/settings",
		body:   `{"settings":{"min_withdrawal":"5"}}`,
		userID: admin.ID,
		roles:  "admin",
	})
	assert.Equal(t, http.StatusOK, status)

	var setting models.AppSetting
	require.NoError(t, db.Take(&setting, "setting_key = ?", services.SettingMinWithdrawal).Error)
	assert.Equal(t, "5", setting.Value)

	status, body = do(t, app, call{method: http.MethodPost, path: "/api/admin/wallets/" + user.ID + "/reconcile", userID: admin.ID, roles: "admin"})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"gems":"15"`)
}

func TestMalformedIDsReturnNotFound(t *testing.T) {
	app, db, _ := newTestApp(t)
	admin := testutil.SeedUser(t, db, "Ops", "")

	cases := []call{
		{method: http.MethodGet, path: "/api/offers/abc", userID: admin.ID},
		{method: http.MethodPost, path: "/api/offers/abc/click", userID: admin.ID},
		{method: http.MethodPost, path: "/api/scratch/abc/reveal", userID: admin.ID},
		{method: http.MethodPost, path: "/api/admin/wallets/xyz/reconcile", userID: admin.ID, roles: "admin"},
		{method: http.MethodPost, path: "/api/admin/wallets/xyz/adjust", body: `{"currency":"cash","amount":"5"}`, userID: admin.ID, roles: "admin"},
		{method: http.MethodPut, path: "/api/admin/withdrawals/foo", body: `{"status":"approved"}`, userID: admin.ID, roles: "admin"},
		{method: http.MethodGet, path: "/api/admin/analytics/conversions?offer_id=nope", userID: admin.ID, roles: "admin"},
		{method: http.MethodGet, path: "/api/me", userID: "not-a-uuid"},
		{method: http.MethodGet, path: "/api/me/wallet", userID: "not-a-uuid"},
		{method: http.MethodGet, path: "/api/me/transactions", userID: "not-a-uuid"},
		{method: http.MethodGet, path: "/api/me/clicks", userID: "not-a-uuid"},
		{method: http.MethodGet, path: "/api/me/referrals", userID: "not-a-uuid"},
		{method: http.MethodPost, path: "/api/wallet/checkin", userID: "not-a-uuid"},
		{method: http.MethodPost, path: "/api/wallet/spin", userID: "not-a-uuid"},
		{method: http.MethodPost, path: "/api/wallet/withdraw", body: `{"amount":"150","method":"paypal"}`, userID: "not-a-uuid"},
	}
	for _, c := range cases {
		status, body := do(t, app, c)
		assert.Equal(t, http.StatusNotFound, status, "%s %s: %s", c.method, c.path, body)
		assert.Equal(t, "not_found", errorCode(t, body), "%s %s", c.method, c.path)
	}
}
