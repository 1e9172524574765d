package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scilems/controllers"
	"scilems/lending"
	"scilems/models"
	"scilems/routes"
	"scilems/store"
	"scilems/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetSecret("controllers-test")
}

type server struct {
	t      *testing.T
	router *gin.Engine
	mem    *store.Memory
	repos  store.Repos
	user   primitive.ObjectID
	other  primitive.ObjectID
}

func newServer(t *testing.T) *server {
	t.Helper()
	mem := store.NewMemory()
	repos := mem.Repos()

	hash, err := utils.HashPassword("pa55word")
	require.NoError(t, err)
	user := mem.PutUser(models.User{Username: "jdoe", Email: "jane@example.edu", FirstName: "Jane", LastName: "Doe", Password: hash, Role: models.RoleUser})
	other := mem.PutUser(models.User{Username: "mlee", FirstName: "Min", LastName: "Lee", Password: hash, Role: models.RoleUser})
	mem.PutAdmin(models.Admin{Username: "labadmin", FirstName: "Lab", LastName: "Admin", Password: hash})

	svc := lending.NewService(repos, nil, zap.NewNop()).WithLocation(time.UTC)
	router := gin.New()
	routes.InitializeRoutes(router, controllers.NewSrv(svc, repos, time.UTC, zap.NewNop()))

	return &server{t: t, router: router, mem: mem, repos: repos, user: user, other: other}
}

func (s *server) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *server) login(path, username string) string {
	s.t.Helper()
	w, out := s.do(http.MethodPost, path, "", gin.H{"username": username, "password": "pa55word"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	token, _ := out["token"].(string)
	require.NotEmpty(s.t, token)
	return token
}

func tomorrow() string {
	return time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
}

func TestLogin(t *testing.T) {
	s := newServer(t)

	w, out := s.do(http.MethodPost, "/api/users/auth/login", "", gin.H{"username": "jdoe", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", out["error"])

	w, _ = s.do(http.MethodPost, "/api/users/auth/login", "", gin.H{"username": "nobody", "password": "pa55word"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/api/admin/auth/login", "", gin.H{"username": "jdoe", "password": "pa55word"})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "borrowers are not admins")

	w, _ = s.do(http.MethodPost, "/api/users/auth/login", "", gin.H{"username": "jdoe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = s.do(http.MethodPost, "/api/users/auth/login", "", gin.H{"username": "jdoe", "password": "pa55word"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleUser, out["role"])
	assert.NotContains(t, w.Body.String(), "pa55word")
	assert.Contains(t, w.Header().Get("Set-Cookie"), "token=")
}

func TestBorrowFlow(t *testing.T) {
	s := newServer(t)
	userToken := s.login("/api/users/auth/login", "jdoe")
	adminToken := s.login("/api/admin/auth/login", "labadmin")
	eq := s.mem.PutEquipment(models.Equipment{Name: "Microscope", Stock: 5})

	w, _ := s.do(http.MethodPost, "/api/user/transactions/cart/add", userToken, gin.H{"eqID": eq.Hex(), "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, out := s.do(http.MethodPost, "/api/user/transactions/borrow", userToken, gin.H{"pickUpDate": tomorrow()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	txnID := out["transaction"].(map[string]any)["id"].(string)

	w, out = s.do(http.MethodGet, "/api/admin/transactions/applying", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["transactions"], 1)

	w, out = s.do(http.MethodPut, "/api/admin/confirm/application/"+txnID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", out["transaction"].(map[string]any)["currentStatus"])
	stock, _ := s.mem.StockOf(eq)
	assert.Equal(t, 3, stock)

	w, out = s.do(http.MethodPut, "/api/admin/confirm/application/"+txnID, adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, lending.ErrCodeInvalidTransition, out["code"])

	w, out = s.do(http.MethodPut, "/api/admin/confirm/borrowed/"+txnID, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.ErrCodeValidation, out["code"])

	w, _ = s.do(http.MethodPut, "/api/admin/confirm/borrowed/"+txnID, adminToken, gin.H{"returnDate": tomorrow()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPut, "/api/admin/return/item/"+txnID, adminToken,
		gin.H{"dateReturned": time.Now().UTC().Format(time.RFC3339), "remarks": "all good"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stock, _ = s.mem.StockOf(eq)
	assert.Equal(t, 5, stock)

	w, out = s.do(http.MethodGet, "/api/transactions/history/transaction/"+txnID+"/history", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["history"], 3)

	w, out = s.do(http.MethodGet, "/api/user/transactions", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["transactions"], 1)
}

func TestInsufficientStockIsConflict(t *testing.T) {
	s := newServer(t)
	userToken := s.login("/api/users/auth/login", "jdoe")
	adminToken := s.login("/api/admin/auth/login", "labadmin")
	eq := s.mem.PutEquipment(models.Equipment{Name: "Centrifuge", Stock: 2})

	w, _ := s.do(http.MethodPost, "/api/user/transactions/cart/add", userToken, gin.H{"eqID": eq.Hex(), "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	_, out := s.do(http.MethodPost, "/api/user/transactions/borrow", userToken, nil)
	txnID := out["transaction"].(map[string]any)["id"].(string)

	require.NoError(t, s.repos.Equipment.Reserve(context.Background(), eq, 1))

	w, out = s.do(http.MethodPut, "/api/admin/confirm/application/"+txnID, adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, lending.ErrCodeInsufficientStock, out["code"])
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	userToken := s.login("/api/users/auth/login", "jdoe")
	adminToken := s.login("/api/admin/auth/login", "labadmin")

	w, _ := s.do(http.MethodPut, "/api/admin/confirm/application/"+primitive.NewObjectID().Hex(), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodPut, "/api/admin/confirm/application/not-an-id", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/admin/transactions/lost", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/admin/transactions/applying", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, out := s.do(http.MethodGet, "/api/transactions/history/user/"+s.other.Hex()+"/transaction-history", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, lending.ErrCodeUnauthorized, out["code"])

	w, _ = s.do(http.MethodGet, "/api/transactions/history/user/"+s.user.Hex()+"/transaction-history", userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPost, "/api/transactions/history/system/snapshot", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, out = s.do(http.MethodPost, "/api/user/transactions/borrow", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty cart")
	assert.Equal(t, lending.ErrCodeValidation, out["code"])
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[string]int{
		lending.ErrCodeNotFound:           http.StatusNotFound,
		lending.ErrCodeInsufficientStock:  http.StatusConflict,
		lending.ErrCodeInvalidTransition:  http.StatusConflict,
		lending.ErrCodeValidation:         http.StatusBadRequest,
		lending.ErrCodeUnauthorized:       http.StatusForbidden,
		lending.ErrCodeExternalSideEffect: http.StatusInternalServerError,
		lending.ErrCodeInternal:           http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, controllers.ToHTTPStatus(code), code)
	}
}

func TestCancelByOwnerOnly(t *testing.T) {
	s := newServer(t)
	userToken := s.login("/api/users/auth/login", "jdoe")
	otherToken := s.login("/api/users/auth/login", "mlee")
	eq := s.mem.PutEquipment(models.Equipment{Name: "Pipette", Stock: 4})

	s.do(http.MethodPost, "/api/user/transactions/cart/add", userToken, gin.H{"eqID": eq.Hex(), "quantity": 1})
	_, out := s.do(http.MethodPost, "/api/user/transactions/borrow", userToken, nil)
	txnID := out["transaction"].(map[string]any)["id"].(string)

	w, _ := s.do(http.MethodDelete, "/api/user/transactions/items/cancel/"+txnID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodDelete, "/api/user/transactions/items/cancel/"+txnID, userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodDelete, "/api/user/transactions/items/cancel/"+txnID, userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifications(t *testing.T) {
	s := newServer(t)
	userToken := s.login("/api/users/auth/login", "jdoe")
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	global := &models.Notification{Title: "New Borrow Request", Type: models.NotificationGlobal, CreatedAt: base}
	mine := &models.Notification{Title: "Borrow Request Approved", Type: models.NotificationUserSpecific, UserID: &s.user, CreatedAt: base.Add(time.Hour)}
	theirs := &models.Notification{Title: "Items Overdue", Type: models.NotificationUserSpecific, UserID: &s.other, CreatedAt: base.Add(2 * time.Hour)}
	for _, n := range []*models.Notification{global, mine, theirs} {
		require.NoError(t, s.repos.Notifications.Insert(ctx, n))
	}

	w, out := s.do(http.MethodGet, "/api/notifications/user", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := out["notifications"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "Borrow Request Approved", list[0].(map[string]any)["title"], "newest first")
	assert.Equal(t, "New Borrow Request", list[1].(map[string]any)["title"])

	w, out = s.do(http.MethodGet, "/api/notifications/global", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["notifications"], 1)

	w, out = s.do(http.MethodPut, "/api/notifications/read/"+mine.ID.Hex(), userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["notification"].(map[string]any)["isRead"])

	w, _ = s.do(http.MethodPut, "/api/notifications/read/"+primitive.NewObjectID().Hex(), userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, out = s.do(http.MethodPut, "/api/notifications/read-all", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, out["updated"], "only unread own notifications count")
}

func TestLabRequests(t *testing.T) {
	s := newServer(t)
	userToken := s.login("/api/users/auth/login", "jdoe")
	otherToken := s.login("/api/users/auth/login", "mlee")
	adminToken := s.login("/api/admin/auth/login", "labadmin")

	w, out := s.do(http.MethodPost, "/api/user/transactions/lab/request", userToken,
		gin.H{"lab": "Chem Lab 1", "title": "Titration", "startDate": "2024-06-02", "endDate": "2024-06-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.ErrCodeValidation, out["code"])

	w, out = s.do(http.MethodPost, "/api/user/transactions/lab/request", userToken,
		gin.H{"lab": "Chem Lab 1", "title": "Titration", "startDate": "2024-06-01", "endDate": "2024-06-02"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	labReq := out["labRequest"].(map[string]any)
	assert.Equal(t, "pending", labReq["status"])
	id := labReq["id"].(string)

	w, _ = s.do(http.MethodDelete, "/api/user/transactions/lab/request/"+id, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, out = s.do(http.MethodPut, "/api/admin/lab/approve/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", out["labRequest"].(map[string]any)["status"])

	w, _ = s.do(http.MethodPut, "/api/admin/lab/decline/"+id, adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, out = s.do(http.MethodGet, "/api/user/transactions/lab/requests", otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	approved := out["approved"].([]any)
	require.Len(t, approved, 1)
	assert.Equal(t, "Jane Doe", approved[0].(map[string]any)["borrowerName"])
	assert.Empty(t, out["mine"])

	w, _ = s.do(http.MethodDelete, "/api/user/transactions/lab/request/"+id, userToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "approved bookings stay")

	w, out = s.do(http.MethodGet, "/api/admin/lab/requests?status=approved", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["labRequests"], 1)
}

func TestAdminCounts(t *testing.T) {
	s := newServer(t)
	userToken := s.login("/api/users/auth/login", "jdoe")
	adminToken := s.login("/api/admin/auth/login", "labadmin")
	eq := s.mem.PutEquipment(models.Equipment{Name: "Burette", Stock: 5})

	s.do(http.MethodPost, "/api/user/transactions/cart/add", userToken, gin.H{"eqID": eq.Hex(), "quantity": 2})
	_, out := s.do(http.MethodPost, "/api/user/transactions/borrow", userToken, nil)
	txnID := out["transaction"].(map[string]any)["id"].(string)
	s.do(http.MethodPut, "/api/admin/confirm/application/"+txnID, adminToken, nil)
	w, _ := s.do(http.MethodPut, "/api/admin/confirm/borrowed/"+txnID, adminToken, gin.H{"returnDate": tomorrow()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, out = s.do(http.MethodGet, "/api/admin/user/count", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["count"])

	w, out = s.do(http.MethodGet, "/api/admin/user/counts", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, out["count"])

	w, out = s.do(http.MethodGet, "/api/admin/equipment/borrowed-and-returned-count", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["totalBorrowed"])
	assert.EqualValues(t, 0, out["totalReturned"])

	w, _ = s.do(http.MethodGet, "/api/admin/user/count", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
