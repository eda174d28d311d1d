package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/family-kitchen/internal/config"
	"github.com/iliyamo/family-kitchen/internal/middleware"
	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/utils"
)

const testSecret = "handler-secret"

// events records everything the handlers publish. onPublish, when set,
// runs synchronously like a subscriber of the in-process feed.
type events struct {
	mu        sync.Mutex
	got       []model.ChangeEvent
	onPublish func(model.ChangeEvent)
}

func (e *events) Publish(_ context.Context, ev model.ChangeEvent) error {
	e.mu.Lock()
	e.got = append(e.got, ev)
	hook := e.onPublish
	e.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
	return nil
}

func (e *events) tables() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.got))
	for _, ev := range e.got {
		out = append(out, ev.Table)
	}
	return out
}

type testServer struct {
	e   *echo.Echo
	db  *memDB
	pub *events
}

// newTestServer wires the handlers with the same middleware chain the
// router uses, on top of the in-memory stores.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newCachedTestServer(t, nil)
}

// newCachedTestServer also mounts rc on the GET routes when rc is not nil.
func newCachedTestServer(t *testing.T, rc *middleware.ResponseCache) *testServer {
	t.Helper()
	db := newMemDB()
	pub := &events{}
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4}

	auth := NewAuthHandler(cfg, memUsers{db}, memTokens{db}, memProfiles{db})
	prof := NewProfileHandler(memProfiles{db}, memMeals{db}, pub, nil)
	k := NewKitchenHandler(memMeals{db}, memSelections{db}, memConfirmed{db}, memInventory{db},
		memCart{db}, memChat{db}, pub, nil)
	if rc != nil {
		k.UseCache(rc)
		prof.UseCache(rc)
	}

	e := echo.New()
	jwt := middleware.JWTAuth(testSecret)
	a := e.Group("/v1/auth")
	a.POST("/register", auth.Register)
	a.POST("/login", auth.Login)
	a.POST("/refresh", auth.Refresh)
	a.POST("/logout", auth.Logout)
	a.GET("/session", auth.Session, jwt)

	p := e.Group("/v1/profile", jwt)
	p.GET("", prof.GetProfile)
	p.PUT("", prof.SaveProfile)
	p.PATCH("/language", prof.PatchLanguage)

	g := e.Group("/v1/families/:code", jwt, middleware.LoadProfile(memProfiles{db}), middleware.FamilyGuard())
	confirm := middleware.RequireRole(model.Role.CanConfirm)
	parent := middleware.RequireRole(model.Role.IsParent)
	read := rc.Middleware()
	g.GET("/meals", k.ListMeals, read)
	g.POST("/meals", k.CreateMeal)
	g.GET("/selections", k.ListSelections, read)
	g.PUT("/selections", k.PutSelection)
	g.GET("/confirmed", k.ListConfirmed, read)
	g.PUT("/confirmed", k.PutConfirmed, confirm)
	g.PATCH("/confirmed/:id", k.PatchConfirmed, confirm)
	g.GET("/inventory", k.ListInventory, read)
	g.POST("/inventory", k.AddInventory, parent)
	g.PATCH("/inventory/:id", k.PatchInventory, parent)
	g.DELETE("/inventory/:id", k.DeleteInventory, parent)
	g.GET("/cart", k.ListCart, read)
	g.POST("/cart", k.AddCart)
	g.POST("/cart/:id/toggle", k.ToggleCart)
	g.DELETE("/cart/:id", k.DeleteCart)
	g.GET("/messages", k.ListMessages, read)
	g.POST("/messages", k.SendMessage)

	return &testServer{e: e, db: db, pub: pub}
}

func (s *testServer) member(t *testing.T, id string, role model.Role, family string) string {
	t.Helper()
	s.db.profiles[id] = model.Profile{ID: id, Name: string(role), Role: role, FamilyCode: family}
	at, err := utils.NewAccessToken(testSecret, id, 5)
	require.NoError(t, err)
	return at.Token
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPlanFlow_SelectionsAndConfirmation(t *testing.T) {
	s := newTestServer(t)
	mom := s.member(t, "mom", model.RoleMother, "smithhouse")
	son := s.member(t, "son", model.RoleSon, "smithhouse")

	rec := s.do(http.MethodPost, "/v1/families/smithhouse/meals", mom, `{"name":"Tacos"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tacos := decodeInto[model.Meal](t, rec)
	assert.Equal(t, model.DefaultCategory, tacos.Category)
	assert.Equal(t, "mom", tacos.CreatedBy)
	rec = s.do(http.MethodPost, "/v1/families/smithhouse/meals", mom, `{"name":"Soup","category":"Lunch"}`)
	soup := decodeInto[model.Meal](t, rec)

	body := `{"meal_id":"` + tacos.ID + `","meal_date":"2024-05-01","slot":"Dinner"}`
	rec = s.do(http.MethodPut, "/v1/families/smithhouse/selections", son, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeInto[model.MealSelection](t, rec)
	assert.Equal(t, "Tacos", first.MealData.Name)
	assert.Equal(t, "Son", first.ProfileData.Name)

	// A second pick for the same slot replaces the first.
	body = `{"meal_id":"` + soup.ID + `","meal_date":"2024-05-01","slot":"Dinner"}`
	rec = s.do(http.MethodPut, "/v1/families/smithhouse/selections", son, body)
	second := decodeInto[model.MealSelection](t, rec)
	assert.Equal(t, first.ID, second.ID)

	rec = s.do(http.MethodGet, "/v1/families/smithhouse/selections?date=2024-05-01", son, "")
	sels := decodeInto[[]model.MealSelection](t, rec)
	require.Len(t, sels, 1)
	assert.Equal(t, "Soup", sels[0].MealData.Name)

	// Only the mother may confirm.
	body = `{"meal_id":"` + tacos.ID + `","meal_date":"2024-05-01","slot":"Dinner"}`
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, "/v1/families/smithhouse/confirmed", son, body).Code)

	rec = s.do(http.MethodPut, "/v1/families/smithhouse/confirmed", mom, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conf := decodeInto[model.ConfirmedMeal](t, rec)
	assert.Equal(t, model.DefaultReadyAt, conf.ReadyAt)

	rec = s.do(http.MethodPatch, "/v1/families/smithhouse/confirmed/"+conf.ID, mom, `{"ready_at":"18:30"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "18:30", decodeInto[model.ConfirmedMeal](t, rec).ReadyAt)

	// Confirming leaves the selections alone.
	rec = s.do(http.MethodGet, "/v1/families/smithhouse/selections?date=2024-05-01", mom, "")
	assert.Len(t, decodeInto[[]model.MealSelection](t, rec), 1)

	assert.Contains(t, s.pub.tables(), model.TableConfirmed)
	assert.Contains(t, s.pub.tables(), model.TableSelections)
}

func TestPlan_Validation(t *testing.T) {
	s := newTestServer(t)
	mom := s.member(t, "mom", model.RoleMother, "smithhouse")

	cases := []struct{ path, body string }{
		{"/v1/families/smithhouse/selections", `{"meal_id":"x","slot":"Breakfast"}`},
		{"/v1/families/smithhouse/selections", `{"slot":"Lunch"}`},
		{"/v1/families/smithhouse/selections", `{"meal_id":"x","slot":"Lunch","meal_date":"May 1"}`},
		{"/v1/families/smithhouse/confirmed", `{"meal_id":"x","slot":"Lunch","ready_at":"7pm"}`},
	}
	for _, tc := range cases {
		rec := s.do(http.MethodPut, tc.path, mom, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
	}
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/families/smithhouse/confirmed?date=bad", mom, "").Code)
	// Unknown meal.
	rec := s.do(http.MethodPut, "/v1/families/smithhouse/selections", mom, `{"meal_id":"nope","slot":"Lunch"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFamilyIsolation(t *testing.T) {
	s := newTestServer(t)
	mom := s.member(t, "mom", model.RoleMother, "smithhouse")
	other := s.member(t, "jones", model.RoleMother, "joneshouse")

	rec := s.do(http.MethodPost, "/v1/families/smithhouse/meals", mom, `{"name":"Tacos"}`)
	tacos := decodeInto[model.Meal](t, rec)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/v1/families/smithhouse/meals", other, "").Code)

	rec = s.do(http.MethodGet, "/v1/families/joneshouse/meals", other, "")
	assert.Empty(t, decodeInto[[]model.Meal](t, rec))

	// Another family's meal id cannot be picked.
	body := `{"meal_id":"` + tacos.ID + `","slot":"Dinner"}`
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/v1/families/joneshouse/confirmed", other, body).Code)

	// Codes are matched case-insensitively.
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/families/SmithHouse/meals", mom, "").Code)
}

func TestPantry_InventoryAndCart(t *testing.T) {
	s := newTestServer(t)
	dad := s.member(t, "dad", model.RoleFather, "smithhouse")
	kid := s.member(t, "kid", model.RoleDaughter, "smithhouse")

	assert.Equal(t, http.StatusForbidden,
		s.do(http.MethodPost, "/v1/families/smithhouse/inventory", kid, `{"item_name":"Milk"}`).Code)

	rec := s.do(http.MethodPost, "/v1/families/smithhouse/inventory", dad, `{"item_name":"Milk","quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	milk := decodeInto[model.InventoryItem](t, rec)
	assert.Equal(t, model.DefaultUnit, milk.Unit)

	path := "/v1/families/smithhouse/inventory/" + milk.ID
	rec = s.do(http.MethodPatch, path, dad, `{"delta":-1}`)
	assert.Equal(t, 0, decodeInto[model.InventoryItem](t, rec).Quantity)
	rec = s.do(http.MethodPatch, path, dad, `{"delta":-1}`)
	assert.Equal(t, 0, decodeInto[model.InventoryItem](t, rec).Quantity)
	rec = s.do(http.MethodPatch, path, dad, `{"quantity":-5}`)
	assert.Equal(t, 0, decodeInto[model.InventoryItem](t, rec).Quantity)
	rec = s.do(http.MethodPatch, path, dad, `{"quantity":4}`)
	assert.Equal(t, 4, decodeInto[model.InventoryItem](t, rec).Quantity)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, path, dad, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, path, dad, `{"quantity":1,"delta":1}`).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPatch, path, kid, `{"delta":1}`).Code)

	// Everyone reads the pantry.
	rec = s.do(http.MethodGet, "/v1/families/smithhouse/inventory", kid, "")
	assert.Len(t, decodeInto[[]model.InventoryItem](t, rec), 1)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, dad, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path, dad, "").Code)

	// Cart is open to every member.
	rec = s.do(http.MethodPost, "/v1/families/smithhouse/cart", kid, `{"item_name":"Eggs"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	eggs := decodeInto[model.CartItem](t, rec)
	assert.Equal(t, 1, eggs.Quantity)
	assert.False(t, eggs.IsPurchased)

	rec = s.do(http.MethodPost, "/v1/families/smithhouse/cart/"+eggs.ID+"/toggle", dad, "")
	assert.True(t, decodeInto[model.CartItem](t, rec).IsPurchased)
	rec = s.do(http.MethodPost, "/v1/families/smithhouse/cart/"+eggs.ID+"/toggle", kid, "")
	assert.False(t, decodeInto[model.CartItem](t, rec).IsPurchased)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/v1/families/smithhouse/cart/"+eggs.ID, kid, "").Code)
	rec = s.do(http.MethodGet, "/v1/families/smithhouse/cart", kid, "")
	assert.Empty(t, decodeInto[[]model.CartItem](t, rec))
}

func TestChat(t *testing.T) {
	s := newTestServer(t)
	son := s.member(t, "son", model.RoleSon, "smithhouse")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/families/smithhouse/messages", son, `{"message":"  "}`).Code)
	long := `{"message":"` + strings.Repeat("a", MaxMessageLength+1) + `"}`
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/families/smithhouse/messages", son, long).Code)

	for _, m := range []string{"first", "second", "third"} {
		rec := s.do(http.MethodPost, "/v1/families/smithhouse/messages", son, `{"message":"`+m+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := s.do(http.MethodGet, "/v1/families/smithhouse/messages?limit=2", son, "")
	msgs := decodeInto[[]model.ChatMessage](t, rec)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Message)
	assert.Equal(t, "Son", msgs[1].ProfileData.Name)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/families/smithhouse/messages?limit=0", son, "").Code)
}

func TestProfile_SetupSeedsAndLocksFamily(t *testing.T) {
	s := newTestServer(t)
	at, err := utils.NewAccessToken(testSecret, "new-user", 5)
	require.NoError(t, err)
	tok := at.Token

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/profile", tok, "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/v1/families/smithhouse/meals", tok, "").Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/v1/profile", tok, `{"role":"Mother"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/v1/profile", tok, `{"role":"Uncle","family_code":"x"}`).Code)

	rec := s.do(http.MethodPut, "/v1/profile", tok, `{"role":"Mother","family_code":" SmithHouse "}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decodeInto[model.Profile](t, rec)
	assert.Equal(t, "smithhouse", p.FamilyCode)
	assert.Equal(t, "Mother", p.Name)
	assert.Equal(t, model.DefaultAvatar(model.RoleMother), p.AvatarURL)

	rec = s.do(http.MethodGet, "/v1/families/smithhouse/meals", tok, "")
	assert.Len(t, decodeInto[[]model.Meal](t, rec), len(model.StarterMeals()))

	rec = s.do(http.MethodPut, "/v1/profile", tok, `{"name":"Mum","role":"Mother","family_code":"smithhouse"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusConflict,
		s.do(http.MethodPut, "/v1/profile", tok, `{"role":"Mother","family_code":"elsewhere"}`).Code)

	rec = s.do(http.MethodPatch, "/v1/profile/language", tok, `{"language":"ar"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/v1/profile", tok, "")
	assert.Equal(t, model.LangArabic, decodeInto[model.Profile](t, rec).Language)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, "/v1/profile/language", tok, `{"language":"fr"}`).Code)

	// A second member joining does not reseed.
	at2, _ := utils.NewAccessToken(testSecret, "second", 5)
	rec = s.do(http.MethodPut, "/v1/profile", at2.Token, `{"role":"Son","family_code":"smithhouse"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(http.MethodGet, "/v1/families/smithhouse/meals", at2.Token, "")
	assert.Len(t, decodeInto[[]model.Meal](t, rec), len(model.StarterMeals()))
}

func TestAuth_RegisterLoginRefreshLogout(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest,
		s.do(http.MethodPost, "/v1/auth/register", "", `{"email":"a@b.c","password":"123"}`).Code)

	rec := s.do(http.MethodPost, "/v1/auth/register", "", `{"email":" Mom@Example.com ","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decodeInto[authResp](t, rec)
	assert.Equal(t, "mom@example.com", reg.User.Email)
	assert.NotEmpty(t, reg.Access.Token)

	assert.Equal(t, http.StatusConflict,
		s.do(http.MethodPost, "/v1/auth/register", "", `{"email":"mom@example.com","password":"secret1"}`).Code)

	assert.Equal(t, http.StatusUnauthorized,
		s.do(http.MethodPost, "/v1/auth/login", "", `{"email":"mom@example.com","password":"wrong!"}`).Code)
	rec = s.do(http.MethodPost, "/v1/auth/login", "", `{"email":"mom@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeInto[authResp](t, rec)

	// Session before setup has no profile.
	rec = s.do(http.MethodGet, "/v1/auth/session", login.Access.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"profile":null`)

	rec = s.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+login.Refresh.Token+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decodeInto[authResp](t, rec)
	assert.NotEqual(t, login.Refresh.Token, rotated.Refresh.Token)

	// The old refresh token is spent.
	assert.Equal(t, http.StatusUnauthorized,
		s.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+login.Refresh.Token+`"}`).Code)

	assert.Equal(t, http.StatusNoContent,
		s.do(http.MethodPost, "/v1/auth/logout", "", `{"refresh_token":"`+rotated.Refresh.Token+`"}`).Code)
	assert.Equal(t, http.StatusUnauthorized,
		s.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+rotated.Refresh.Token+`"}`).Code)

	// Bearer-only logout revokes every session of the user.
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/v1/auth/logout", reg.Access.Token, "").Code)
	assert.Equal(t, http.StatusUnauthorized,
		s.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+reg.Refresh.Token+`"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/auth/logout", "", "").Code)
}
