package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/property-marketplace/internal/handler"
	"github.com/iliyamo/property-marketplace/internal/identity"
	"github.com/iliyamo/property-marketplace/internal/middleware"
	"github.com/iliyamo/property-marketplace/internal/repository"
	"github.com/iliyamo/property-marketplace/internal/router"
	"github.com/iliyamo/property-marketplace/internal/service"
	"github.com/iliyamo/property-marketplace/internal/session"
	"github.com/iliyamo/property-marketplace/internal/testutil"
)

type testApp struct {
	e  *echo.Echo
	db *sqlx.DB
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.NewDB(t)
	profiles := repository.NewProfileRepo(db)
	properties := repository.NewPropertyRepo(db)
	inquiries := repository.NewInquiryRepo(db)
	contacts := repository.NewContactRepo(db)
	provider := identity.NewLocal(identity.LocalConfig{Secret: "handler-test-secret", BcryptCost: bcrypt.MinCost},
		repository.NewAuthUserRepo(db), repository.NewTokenRepo(db))
	ledger := service.NewLedger(db, profiles, properties, repository.NewTransactionRepo(db), service.NopPublisher{})

	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(true)
	e.Use(middleware.Session(session.NewResolver(provider, profiles)))

	router.RegisterAuth(e, handler.NewAuthHandler(provider, profiles, false))
	router.RegisterPublic(e,
		&handler.PublicHandler{Properties: properties, Profiles: profiles, Inquiries: inquiries, Contacts: contacts},
		&handler.ListingHandler{Ledger: ledger}, passThrough, passThrough)
	router.RegisterDashboard(e, &handler.DashboardHandler{
		Profiles: profiles, Properties: properties, Inquiries: inquiries, Ledger: ledger,
	}, passThrough)
	router.RegisterAdmin(e, &handler.AdminHandler{
		Profiles: profiles, Properties: properties, Ledger: ledger, Contacts: contacts, Roles: provider,
	}, passThrough)
	return &testApp{e: e, db: db}
}

func (a *testApp) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// register signs a user up and in, returning the user id and access token.
func (a *testApp) register(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/auth/signup", "",
		`{"email":"`+email+`","password":"s3cret-pass","full_name":"Ana Cruz","role":"developer"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.AccessToken)
	return out.User.ID, out.AccessToken
}

func (a *testApp) makeAdmin(t *testing.T, userID string) {
	t.Helper()
	_, err := a.db.Exec(a.db.Rebind(`UPDATE profiles SET role = 'admin' WHERE id = ?`), userID)
	require.NoError(t, err)
}

func (a *testApp) setCredits(t *testing.T, userID string, credits int) {
	t.Helper()
	_, err := a.db.Exec(a.db.Rebind(`UPDATE profiles SET credits = ? WHERE id = ?`), credits, userID)
	require.NoError(t, err)
}

func (a *testApp) credits(t *testing.T, userID string) int {
	t.Helper()
	var n int
	require.NoError(t, a.db.Get(&n, a.db.Rebind(`SELECT credits FROM profiles WHERE id = ?`), userID))
	return n
}

func (a *testApp) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, a.db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

const listingJSON = `{"title":"Sea view condo","property_type":"condo","listing_type":"rent",
	"price_cents":4500000,"location":"Ayala Ave","city":"Makati","province":"Metro Manila","features":["pool"]}`

func TestSignupCreatesProfileWithInitialCredits(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/auth/signup", "",
		`{"email":"dev@example.com","password":"s3cret-pass","full_name":"Dev","role":"admin"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "admin is not self-assignable")

	rec = a.do(t, http.MethodPost, "/auth/signup", "",
		`{"email":"dev@example.com","password":"s3cret-pass","full_name":"Dev","role":"developer"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "developer", user["role"])
	assert.EqualValues(t, 5, user["credits"])

	rec = a.do(t, http.MethodPost, "/auth/signup", "",
		`{"email":"dev@example.com","password":"another-pass","full_name":"Dev"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignupValidation(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/auth/signup", "", `{"password":"short","full_name":"X"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "validation failed", body["error"])
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
	assert.Zero(t, a.count(t, "profiles"))
}

func TestLoginRedirects(t *testing.T) {
	a := newTestApp(t)
	a.register(t, "agent@example.com")

	rec := a.do(t, http.MethodPost, "/auth/login", "", `{"email":"agent@example.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/auth/login", "",
		`{"email":"agent@example.com","password":"s3cret-pass","redirect_to":"//evil.example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/dashboard", decode(t, rec)["redirect_to"])

	rec = a.do(t, http.MethodPost, "/auth/login", "",
		`{"email":"agent@example.com","password":"s3cret-pass","redirect_to":"/properties/create"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/properties/create", decode(t, rec)["redirect_to"])
	assert.NotEmpty(t, rec.Header().Get("Set-Cookie"))
}

func TestSessionEndpoint(t *testing.T) {
	a := newTestApp(t)
	id, token := a.register(t, "s@example.com")

	rec := a.do(t, http.MethodGet, "/auth/session", "", "")
	assert.Equal(t, "anonymous", decode(t, rec)["state"])

	rec = a.do(t, http.MethodGet, "/auth/session", token, "")
	body := decode(t, rec)
	assert.Equal(t, "user", body["state"])
	assert.Equal(t, id, body["user_id"])
	assert.Equal(t, "/dashboard", body["home"])

	a.makeAdmin(t, id)
	rec = a.do(t, http.MethodGet, "/auth/session", token, "")
	body = decode(t, rec)
	assert.Equal(t, "admin", body["state"], "profile role wins over the token claim")
	assert.Equal(t, "/admin", body["home"])
}

func TestRouteGates(t *testing.T) {
	a := newTestApp(t)
	_, userTok := a.register(t, "u@example.com")
	adminID, adminTok := a.register(t, "a@example.com")
	a.makeAdmin(t, adminID)

	cases := []struct {
		name, token, path, location string
	}{
		{"anonymous dashboard", "", "/dashboard", "/login?redirectTo=%2Fdashboard"},
		{"anonymous create", "", "/properties/create", "/login?redirectTo=%2Fproperties%2Fcreate"},
		{"anonymous admin", "", "/admin/users", "/login?redirectTo=%2Fadmin%2Fusers"},
		{"user on admin", userTok, "/admin", "/dashboard"},
		{"admin on dashboard", adminTok, "/dashboard/credits", "/admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, tc.path, tc.token, "")
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get(echo.HeaderLocation))
		})
	}

	rec := a.do(t, http.MethodGet, "/properties/create", adminTok, "")
	assert.Equal(t, http.StatusOK, rec.Code, "any authenticated session may open the create page")
}

func TestCreateListingDeductsCredit(t *testing.T) {
	a := newTestApp(t)
	id, token := a.register(t, "lister@example.com")

	rec := a.do(t, http.MethodGet, "/properties/create", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	form := decode(t, rec)
	assert.EqualValues(t, 5, form["credits"])
	assert.Equal(t, true, form["can_create"])

	rec = a.do(t, http.MethodPost, "/properties", token, listingJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "active", created["status"])
	assert.Equal(t, id, created["user_id"])
	assert.Equal(t, 4, a.credits(t, id))
	assert.Equal(t, 1, a.count(t, "credit_transactions"))
}

func TestCreateListingWithoutCredits(t *testing.T) {
	a := newTestApp(t)
	id, token := a.register(t, "broke@example.com")
	a.setCredits(t, id, 0)

	rec := a.do(t, http.MethodGet, "/properties/create", token, "")
	assert.Equal(t, false, decode(t, rec)["can_create"])

	rec = a.do(t, http.MethodPost, "/properties", token, listingJSON)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "insufficient credits", decode(t, rec)["error"])
	assert.Zero(t, a.count(t, "properties"))
	assert.Zero(t, a.count(t, "credit_transactions"))
	assert.Equal(t, 0, a.credits(t, id))
}

func TestCreateListingValidationSkipsStore(t *testing.T) {
	a := newTestApp(t)
	id, token := a.register(t, "v@example.com")

	rec := a.do(t, http.MethodPost, "/properties", token,
		`{"property_type":"castle","listing_type":"sale","price_cents":-1,"location":"x","city":"y","province":"z"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decode(t, rec)["details"].(map[string]any)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "property_type")
	assert.Contains(t, details, "price_cents")
	assert.Equal(t, 5, a.credits(t, id))
	assert.Zero(t, a.count(t, "properties"))
}

func TestDeleteListingRefunds(t *testing.T) {
	a := newTestApp(t)
	id, token := a.register(t, "owner@example.com")
	_, otherTok := a.register(t, "other@example.com")

	rec := a.do(t, http.MethodPost, "/properties", token, listingJSON)
	require.Equal(t, http.StatusCreated, rec.Code)
	propID := decode(t, rec)["id"].(string)

	rec = a.do(t, http.MethodPut, "/dashboard/properties/"+propID, token,
		strings.Replace(listingJSON, `"features"`, `"status":"sold","features"`, 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sold", decode(t, rec)["status"])

	rec = a.do(t, http.MethodDelete, "/dashboard/properties/"+propID, otherTok, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodDelete, "/dashboard/properties/"+propID, token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 5, a.credits(t, id))
	assert.Zero(t, a.count(t, "properties"))
	assert.Equal(t, 2, a.count(t, "credit_transactions"))

	rec = a.do(t, http.MethodDelete, "/dashboard/properties/"+propID, token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAdjustCredits(t *testing.T) {
	a := newTestApp(t)
	userID, _ := a.register(t, "u@example.com")
	adminID, adminTok := a.register(t, "a@example.com")
	a.makeAdmin(t, adminID)

	rec := a.do(t, http.MethodPost, "/admin/users/"+userID+"/credits", adminTok, `{"amount":10,"reason":"promo"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 15, body["credits"])
	entry := body["transaction"].(map[string]any)
	assert.Equal(t, "add", entry["transaction_type"])
	assert.Equal(t, "promo", entry["reason"])

	rec = a.do(t, http.MethodPost, "/admin/users/"+userID+"/credits", adminTok, `{"amount":-20}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 15, a.credits(t, userID))

	rec = a.do(t, http.MethodPost, "/admin/users/"+userID+"/credits", adminTok, `{"amount":-15}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, a.credits(t, userID))

	rec = a.do(t, http.MethodPost, "/admin/users/"+userID+"/credits", adminTok, `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/admin/users/"+userID+"/reconcile", adminTok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["drift"])
}

func TestAdminDeletesAnyListingRefundingOwner(t *testing.T) {
	a := newTestApp(t)
	ownerID, ownerTok := a.register(t, "owner@example.com")
	adminID, adminTok := a.register(t, "admin@example.com")
	a.makeAdmin(t, adminID)

	rec := a.do(t, http.MethodPost, "/properties", ownerTok, listingJSON)
	require.Equal(t, http.StatusCreated, rec.Code)
	propID := decode(t, rec)["id"].(string)
	require.Equal(t, 4, a.credits(t, ownerID))

	rec = a.do(t, http.MethodDelete, "/admin/properties/"+propID, adminTok, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 5, a.credits(t, ownerID))
	assert.Equal(t, 5, a.credits(t, adminID))
}

func TestPublicBrowseAndDetail(t *testing.T) {
	a := newTestApp(t)
	_, token := a.register(t, "agent@example.com")
	rec := a.do(t, http.MethodPost, "/properties", token, listingJSON)
	require.Equal(t, http.StatusCreated, rec.Code)
	propID := decode(t, rec)["id"].(string)

	rec = a.do(t, http.MethodGet, "/properties?city=Makati&q=sea", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total"])
	assert.Equal(t, []any{"Makati"}, body["cities"])

	rec = a.do(t, http.MethodGet, "/properties?type=house", "", "")
	assert.EqualValues(t, 0, decode(t, rec)["total"])

	rec = a.do(t, http.MethodGet, "/properties/"+propID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.EqualValues(t, 1, body["property"].(map[string]any)["views"])
	assert.Equal(t, "agent@example.com", body["agent"].(map[string]any)["email"])

	rec = a.do(t, http.MethodPost, "/properties/"+propID+"/inquiries", "",
		`{"name":"Buyer","email":"Buyer@Example.com","message":"Still available?"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "new", decode(t, rec)["status"])

	rec = a.do(t, http.MethodGet, "/dashboard/properties/"+propID+"/inquiries", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMapErrorHidesStoreDetailInProd(t *testing.T) {
	err := &service.StoreError{Op: "create listing", Err: assert.AnError}

	status, body := handler.MapError(err, false)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Empty(t, body.Detail)

	_, body = handler.MapError(err, true)
	assert.Contains(t, body.Detail, assert.AnError.Error())
}

// rejectProfileInserts makes every profiles insert fail until the returned
// func is called.
func (a *testApp) rejectProfileInserts(t *testing.T) func() {
	t.Helper()
	_, err := a.db.Exec(`CREATE TRIGGER reject_profiles BEFORE INSERT ON profiles
		BEGIN SELECT RAISE(ABORT, 'profiles unavailable'); END`)
	require.NoError(t, err)
	return func() {
		_, err := a.db.Exec(`DROP TRIGGER reject_profiles`)
		require.NoError(t, err)
	}
}

const signupJSON = `{"email":"late@example.com","password":"s3cret-pass","full_name":"Late Lister","role":"developer"}`

func TestSignupRetryCompletesMissingProfile(t *testing.T) {
	a := newTestApp(t)
	restore := a.rejectProfileInserts(t)

	rec := a.do(t, http.MethodPost, "/auth/signup", "", signupJSON)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, a.count(t, "auth_users"))
	assert.Zero(t, a.count(t, "profiles"))
	restore()

	rec = a.do(t, http.MethodPost, "/auth/signup", "",
		`{"email":"late@example.com","password":"wrong-pass","full_name":"Someone Else"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "a wrong password must not claim the account")
	assert.Zero(t, a.count(t, "profiles"))

	rec = a.do(t, http.MethodPost, "/auth/signup", "", signupJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode(t, rec)["user"].(map[string]any)
	assert.EqualValues(t, 5, user["credits"])
	assert.Equal(t, "developer", user["role"])
	assert.Equal(t, "Late Lister", user["full_name"])

	rec = a.do(t, http.MethodPost, "/auth/signup", "", signupJSON)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, a.count(t, "profiles"))
}

func TestLoginCreatesMissingProfile(t *testing.T) {
	a := newTestApp(t)
	restore := a.rejectProfileInserts(t)
	rec := a.do(t, http.MethodPost, "/auth/signup", "", signupJSON)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	restore()

	rec = a.do(t, http.MethodPost, "/auth/login", "", `{"email":"late@example.com","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	token := body["access_token"].(string)
	user := body["user"].(map[string]any)
	assert.EqualValues(t, 5, user["credits"])
	assert.Equal(t, "developer", user["role"])
	assert.Equal(t, "/dashboard", body["redirect_to"])

	rec = a.do(t, http.MethodGet, "/dashboard/credits", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, decode(t, rec)["credits"])

	rec = a.do(t, http.MethodPost, "/properties", token, listingJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 4, a.credits(t, user["id"].(string)))
}

func TestContactForm(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/contact", "", `{"first_name":"Mia","email":"not-an-email","message":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decode(t, rec)["details"].(map[string]any)
	assert.Contains(t, details, "last_name")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "message")
	assert.Zero(t, a.count(t, "contact_messages"))

	rec = a.do(t, http.MethodPost, "/contact", "",
		`{"first_name":" Mia ","last_name":"Santos","email":"Mia@Example.com","company":"Santos Realty","message":"Do you list commercial lots?"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["id"])

	id, token := a.register(t, "staff@example.com")
	rec = a.do(t, http.MethodGet, "/admin/contact", token, "")
	assert.Equal(t, http.StatusFound, rec.Code, "standard users are sent to their dashboard")

	a.makeAdmin(t, id)
	rec = a.do(t, http.MethodGet, "/admin/contact", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	msg := items[0].(map[string]any)
	assert.Equal(t, "Mia Santos", msg["name"])
	assert.Equal(t, "mia@example.com", msg["email"])
	assert.Equal(t, "Santos Realty", msg["company"])
	assert.NotContains(t, msg, "phone")
}
