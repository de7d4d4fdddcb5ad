package app

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edu-ledger-service/internal/config"
	"edu-ledger-service/internal/domain/entitlement"
	"edu-ledger-service/internal/pkg/jwt"
	"edu-ledger-service/internal/pkg/jwt/jwttest"
	"edu-ledger-service/internal/pkg/ratelimit"
	"edu-ledger-service/internal/repository/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	engine *gin.Engine
	store  *memory.Store
	tokens *jwttest.Generator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := config.AppConfig{
		StoreDriver:       "memory",
		VoucherCodeLength: 12,
		VoucherMaxBatch:   50,
		WriteMaxAttempts:  3,
	}
	store := memory.NewStore()
	store.PutUser(entitlement.User{ID: "student-1", Name: "Amina"})
	store.PutUser(entitlement.User{ID: "student-2", Name: "Brian"})

	stores := Stores{
		Users:   store,
		Codes:   store,
		Plans:   store,
		Cache:   store.PricingCache(),
		Limiter: ratelimit.NewMemoryLimiter(ratelimit.Limit{Attempts: 100, Window: time.Minute}),
	}
	verifier := jwt.NewVerifier(&key.PublicKey, "edu-console", "edu-ledger")
	engine, _ := NewEngine(cfg, zap.NewNop(), stores, verifier)

	return &testServer{
		engine: engine,
		store:  store,
		tokens: jwttest.NewGenerator(key, "edu-console", "edu-ledger", "test", time.Hour),
	}
}

func (s *testServer) token(t *testing.T, id, name string, roles ...string) string {
	t.Helper()
	tok, err := s.tokens.GenerateAccessToken(id, name, roles...)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/v1/admin/users/student-1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/users/student-1", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	student := s.token(t, "student-1", "Amina", jwt.RoleStudent)
	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/users/student-1", student, nil)
	assert.Equal(t, http.StatusForbidden, code)

	subAdmin := s.token(t, "sa-1", "Sub Admin", jwt.RoleSubAdmin)
	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/users/student-1", subAdmin, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/pricing/plans", subAdmin, nil)
	assert.Equal(t, http.StatusForbidden, code, "pricing is admin only")
}

func TestGrantEntitlementOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin-1", "Root", jwt.RoleAdmin)

	code, _ := s.do(t, http.MethodPut, "/api/v1/admin/pricing/plans", admin, map[string]any{
		"plans": []map[string]any{{"tier": "MONTHLY", "name": "Monthly", "basic_price": 100, "ultra_price": 180}},
	})
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/admin/users/student-1/entitlement", admin, map[string]any{
		"tier":  "MONTHLY",
		"level": "ULTRA",
		"mode":  "PAID",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	var user entitlement.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, entitlement.TierMonthly, user.Entitlement.Tier)
	assert.Equal(t, entitlement.LevelUltra, user.Entitlement.Level)
	assert.Equal(t, float64(180), user.Entitlement.Price)
	require.Len(t, user.History, 1)
	assert.Equal(t, float64(180), user.History[0].Price)
	assert.Equal(t, "admin-1", user.History[0].GrantedBy)

	code, env = s.do(t, http.MethodPost, "/api/v1/admin/users/student-1/entitlement", admin, map[string]any{
		"tier":  "FOREVER",
		"level": "BASIC",
		"mode":  "PAID",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/users/newcomer", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/admin/users/newcomer/entitlement", admin, map[string]any{
		"tier":  "WEEKLY",
		"level": "BASIC",
		"mode":  "FREE",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/users/newcomer", admin, nil)
	assert.Equal(t, http.StatusOK, code, "the first grant creates the user")
}

func TestSubAdminGrantRecordsProvenance(t *testing.T) {
	s := newTestServer(t)
	subAdmin := s.token(t, "sa-7", "Wanjiru", jwt.RoleSubAdmin)

	code, env := s.do(t, http.MethodPost, "/api/v1/admin/users/student-2/entitlement", subAdmin, map[string]any{
		"tier":  "WEEKLY",
		"level": "BASIC",
		"mode":  "FREE",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	var user entitlement.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.Len(t, user.History, 1)
	assert.Equal(t, "sa-7", user.History[0].GrantedBy)
	assert.Equal(t, "Wanjiru", user.History[0].GrantedByName)
	assert.True(t, user.History[0].IsFree)
}

func TestGenerateAndRedeemOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin-1", "Root", jwt.RoleAdmin)
	student := s.token(t, "student-1", "Amina", jwt.RoleStudent)
	other := s.token(t, "student-2", "Brian", jwt.RoleStudent)

	code, env := s.do(t, http.MethodPost, "/api/v1/admin/vouchers", admin, map[string]any{
		"type":     "CREDITS",
		"amount":   50,
		"count":    2,
		"max_uses": 1,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	var generated struct {
		Codes []struct {
			Code string `json:"code"`
		} `json:"codes"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &generated))
	require.Equal(t, 2, generated.Total)
	giftCode := generated.Codes[0].Code
	assert.Len(t, giftCode, 12)

	code, _ = s.do(t, http.MethodPost, "/api/v1/vouchers/redeem", admin, map[string]any{"code": giftCode})
	assert.Equal(t, http.StatusForbidden, code, "only students redeem")

	code, env = s.do(t, http.MethodPost, "/api/v1/vouchers/redeem", student, map[string]any{"code": giftCode})
	require.Equal(t, http.StatusOK, code, env.Error)
	var result struct {
		CreditBalance *int64 `json:"credit_balance"`
		UsesRemaining int    `json:"uses_remaining"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotNil(t, result.CreditBalance)
	assert.Equal(t, int64(50), *result.CreditBalance)
	assert.Zero(t, result.UsesRemaining)

	code, _ = s.do(t, http.MethodPost, "/api/v1/vouchers/redeem", student, map[string]any{"code": giftCode})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/vouchers/redeem", other, map[string]any{"code": giftCode})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/vouchers/redeem", student, map[string]any{"code": "NOPE"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/admin/vouchers/"+giftCode, admin, nil)
	require.Equal(t, http.StatusOK, code)
	var audit struct {
		RedeemedBy []string `json:"redeemed_by"`
		IsRedeemed bool     `json:"is_redeemed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &audit))
	assert.Equal(t, []string{"student-1"}, audit.RedeemedBy)
	assert.True(t, audit.IsRedeemed)

	code, env = s.do(t, http.MethodGet, "/api/v1/me/entitlement", student, nil)
	require.Equal(t, http.StatusOK, code)
	var me entitlement.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, int64(50), me.Credits)
}

func TestPricingCacheFollowsPlans(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin-1", "Root", jwt.RoleAdmin)

	code, _ := s.do(t, http.MethodPut, "/api/v1/admin/pricing/plans", admin, map[string]any{
		"plans": []map[string]any{
			{"tier": "WEEKLY", "basic_price": 10, "ultra_price": 15},
			{"tier": "YEARLY", "basic_price": 400, "ultra_price": 700},
		},
	})
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(t, http.MethodGet, "/api/v1/admin/pricing/cache", admin, nil)
	require.Equal(t, http.StatusOK, code)

	var table map[string]map[string]float64
	require.NoError(t, json.Unmarshal(env.Data, &table))
	assert.Equal(t, float64(15), table["WEEKLY"]["ULTRA"])
	assert.Equal(t, float64(400), table["YEARLY"]["BASIC"])

	code, _ = s.do(t, http.MethodPut, "/api/v1/admin/pricing/plans", admin, map[string]any{
		"plans": []map[string]any{{"tier": "CUSTOM", "basic_price": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, code, "custom plans are not priced from the table")
}
