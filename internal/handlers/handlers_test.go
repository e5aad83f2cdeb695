package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/garba-app/apiserver/config"
	"github.com/garba-app/apiserver/internal/events"
	"github.com/garba-app/apiserver/internal/services"
	"github.com/garba-app/apiserver/internal/store"
	"github.com/garba-app/apiserver/types"
)

// In-memory fakes backing the handler tests.

type memImageRepo struct {
	images map[int64]types.UserImage
	nextID int64
}

func (r *memImageRepo) Get(ctx context.Context, id int64) (types.UserImage, error) {
	image, ok := r.images[id]
	if !ok {
		return types.UserImage{}, store.ErrNotFound
	}
	return image, nil
}

func (r *memImageRepo) Create(ctx context.Context, image types.UserImage) (types.UserImage, error) {
	image.ID = r.nextID
	r.nextID++
	r.images[image.ID] = image
	return image, nil
}

func (r *memImageRepo) Touch(ctx context.Context, id int64) error {
	if _, ok := r.images[id]; !ok {
		return store.ErrNotFound
	}
	return nil
}

type memPayloads struct {
	objects map[string][]byte
}

func (p *memPayloads) PutBytes(ctx context.Context, key string, data []byte, contentType string) error {
	p.objects[key] = append([]byte(nil), data...)
	return nil
}

func (p *memPayloads) GetBytes(ctx context.Context, key string) ([]byte, error) {
	data, ok := p.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (p *memPayloads) Delete(ctx context.Context, key string) error {
	delete(p.objects, key)
	return nil
}

type memUserRepo struct {
	users     map[int64]types.User
	nextID    int64
	imageRepo *memImageRepo
}

func (r *memUserRepo) GetByID(ctx context.Context, id int64) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByMobile(ctx context.Context, mobile string) (types.User, error) {
	for _, user := range r.users {
		if user.Mobile == mobile {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *memUserRepo) ExistsByMobile(ctx context.Context, mobile string) (bool, error) {
	_, err := r.GetByMobile(ctx, mobile)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *memUserRepo) CreateWithImage(ctx context.Context, user types.User, image *types.UserImage) (types.User, *types.UserImage, error) {
	user.ID = r.nextID
	r.nextID++
	user.Email = strings.ToLower(user.Email)

	if image != nil {
		image.UserID = user.ID
		created, err := r.imageRepo.Create(ctx, *image)
		if err != nil {
			return types.User{}, nil, err
		}
		*image = created
		user.ProfilePicID = &created.ID
	}

	r.users[user.ID] = user
	return user, image, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

func (r *memUserRepo) CountByPlan(ctx context.Context, plan string) (int64, error) {
	var total int64
	for _, user := range r.users {
		if user.PlanMode == plan {
			total++
		}
	}
	return total, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishUserEvent(ctx context.Context, topic string, event events.UserEvent) (string, error) {
	return "msg-1", nil
}

var testAdminCreds = config.AdminConfig{Username: "admin4567", Password: "admin9876"}

func newTestRouter(t *testing.T) (*chi.Mux, *services.TokenService) {
	t.Helper()

	imageRepo := &memImageRepo{images: make(map[int64]types.UserImage), nextID: 1}
	payloads := &memPayloads{objects: make(map[string][]byte)}
	userRepo := &memUserRepo{users: make(map[int64]types.User), nextID: 1, imageRepo: imageRepo}

	tokens, err := services.NewTokenService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService error: %v", err)
	}

	imageService := services.NewImageService(imageRepo, payloads, nil)
	userService := services.NewUserService(userRepo, imageService, tokens, nopPublisher{}, nil)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/api/users", func(r chi.Router) {
		UserRouter(r, userService)
	})
	router.Route("/api/profile", func(r chi.Router) {
		ProfileRouter(r, userService, imageService, tokens)
	})
	router.Route("/api/admin", func(r chi.Router) {
		AdminRouter(r, userService, tokens, testAdminCreds)
	})
	return router, tokens
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func registerTestUser(t *testing.T, router http.Handler, email, mobile string) types.User {
	t.Helper()

	resp := doJSON(t, router, http.MethodPost, "/api/users", "", map[string]any{
		"fullName": "Asha Patel",
		"email":    email,
		"mobile":   mobile,
		"password": "s3cret-pass",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register status: got %d body %s", resp.Code, resp.Body.String())
	}

	var user types.User
	if err := json.Unmarshal(resp.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return user
}

func loginTestUser(t *testing.T, router http.Handler, identifier, password string) string {
	t.Helper()

	resp := doJSON(t, router, http.MethodPost, "/api/users/login", "", map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("login status: got %d body %s", resp.Code, resp.Body.String())
	}

	var auth AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &auth); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return auth.Token
}

func TestRegister_CreatedWithDefaults(t *testing.T) {
	router, _ := newTestRouter(t)

	user := registerTestUser(t, router, "asha@example.com", "9876543210")
	if user.PlanMode != types.PlanTrial {
		t.Fatalf("plan mode: got %q want %q", user.PlanMode, types.PlanTrial)
	}
	if user.WalletAmount != 0 {
		t.Fatalf("wallet amount: got %v want 0", user.WalletAmount)
	}
}

func TestRegister_NeverReturnsPasswordHash(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/api/users", "", map[string]any{
		"fullName": "Asha Patel",
		"email":    "asha@example.com",
		"mobile":   "9876543210",
		"password": "s3cret-pass",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("status: got %d", resp.Code)
	}
	body := resp.Body.String()
	if strings.Contains(body, "s3cret-pass") || strings.Contains(strings.ToLower(body), "passwordhash") {
		t.Fatalf("response leaks credential material: %s", body)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/api/users", "", map[string]any{
		"fullName": "Asha Patel",
		"email":    "asha@example.com",
		"mobile":   "9876543210",
		"password": "abc",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400", resp.Code)
	}
}

func TestRegister_BadPictureEncoding(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/api/users", "", map[string]any{
		"fullName":       "Asha Patel",
		"email":          "asha@example.com",
		"mobile":         "9876543210",
		"password":       "s3cret-pass",
		"profilePicture": "%%% not base64 %%%",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "invalid profile picture format") {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestRegister_ConflictMessages(t *testing.T) {
	router, _ := newTestRouter(t)

	registerTestUser(t, router, "asha@example.com", "9876543210")

	cases := []struct {
		name    string
		email   string
		mobile  string
		message string
	}{
		{"email only", "asha@example.com", "1112223333", "Email 'asha@example.com' already exists"},
		{"mobile only", "other@example.com", "9876543210", "Mobile number '9876543210' already exists"},
		{"both", "asha@example.com", "9876543210", "Email 'asha@example.com' and mobile number '9876543210' already exist"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, router, http.MethodPost, "/api/users", "", map[string]any{
				"fullName": "Someone Else",
				"email":    tc.email,
				"mobile":   tc.mobile,
				"password": "s3cret-pass",
			})
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d want 400", resp.Code)
			}
			if !strings.Contains(resp.Body.String(), tc.message) {
				t.Fatalf("body %s does not contain %q", resp.Body.String(), tc.message)
			}
		})
	}
}

func TestLogin_FailuresAreByteIdentical(t *testing.T) {
	router, _ := newTestRouter(t)

	registerTestUser(t, router, "asha@example.com", "9876543210")

	unknown := doJSON(t, router, http.MethodPost, "/api/users/login", "", map[string]string{
		"identifier": "nobody@example.com",
		"password":   "s3cret-pass",
	})
	wrongPass := doJSON(t, router, http.MethodPost, "/api/users/login", "", map[string]string{
		"identifier": "asha@example.com",
		"password":   "wrong-pass",
	})

	if unknown.Code != http.StatusUnauthorized || wrongPass.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d and %d, want 401 for both", unknown.Code, wrongPass.Code)
	}
	if unknown.Body.String() != wrongPass.Body.String() {
		t.Fatalf("error bodies differ: %q vs %q", unknown.Body.String(), wrongPass.Body.String())
	}
}

func TestLogin_ByMobile(t *testing.T) {
	router, tokens := newTestRouter(t)

	user := registerTestUser(t, router, "asha@example.com", "9876543210")
	token := loginTestUser(t, router, "9876543210", "s3cret-pass")

	principal, err := tokens.Principal(token)
	if err != nil {
		t.Fatalf("Principal error: %v", err)
	}
	if principal.UserID != user.ID {
		t.Fatalf("subject mismatch: got %d want %d", principal.UserID, user.ID)
	}
}

func TestProfileMe_AuthOutcomes(t *testing.T) {
	router, _ := newTestRouter(t)

	registerTestUser(t, router, "asha@example.com", "9876543210")
	token := loginTestUser(t, router, "asha@example.com", "s3cret-pass")

	// Missing carrier is distinct from an invalid token.
	missing := doJSON(t, router, http.MethodGet, "/api/profile/me", "", nil)
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("missing header status: got %d want 401", missing.Code)
	}
	if !strings.Contains(missing.Body.String(), "authorization header") {
		t.Fatalf("unexpected body for missing header: %s", missing.Body.String())
	}

	invalid := doJSON(t, router, http.MethodGet, "/api/profile/me", "garbage-token", nil)
	if invalid.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token status: got %d want 401", invalid.Code)
	}
	if !strings.Contains(invalid.Body.String(), "invalid or expired token") {
		t.Fatalf("unexpected body for invalid token: %s", invalid.Body.String())
	}

	ok := doJSON(t, router, http.MethodGet, "/api/profile/me", token, nil)
	if ok.Code != http.StatusOK {
		t.Fatalf("valid token status: got %d body %s", ok.Code, ok.Body.String())
	}
}

func TestProfileUpdate_PartialJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	registerTestUser(t, router, "asha@example.com", "9876543210")
	token := loginTestUser(t, router, "asha@example.com", "s3cret-pass")

	resp := doJSON(t, router, http.MethodPut, "/api/profile/update", token, map[string]any{
		"bio": "new bio",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", resp.Code, resp.Body.String())
	}

	var updated types.User
	if err := json.Unmarshal(resp.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if updated.Bio != "new bio" {
		t.Fatalf("bio: got %q", updated.Bio)
	}
	if updated.FullName != "Asha Patel" {
		t.Fatalf("full name changed: %q", updated.FullName)
	}
}

func TestProfilePicture_Lifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	picture := []byte("fake jpeg bytes")
	resp := doJSON(t, router, http.MethodPost, "/api/users", "", map[string]any{
		"fullName":       "Asha Patel",
		"email":          "asha@example.com",
		"mobile":         "9876543210",
		"password":       "s3cret-pass",
		"profilePicture": base64.StdEncoding.EncodeToString(picture),
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register status: got %d body %s", resp.Code, resp.Body.String())
	}
	var user types.User
	if err := json.Unmarshal(resp.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.ProfilePicID == nil {
		t.Fatalf("expected profile pic reference to be set")
	}

	token := loginTestUser(t, router, "asha@example.com", "s3cret-pass")

	// Resolved through the owning user's reference.
	own := doJSON(t, router, http.MethodGet, "/api/profile/picture", token, nil)
	if own.Code != http.StatusOK {
		t.Fatalf("own picture status: got %d body %s", own.Code, own.Body.String())
	}
	if own.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("content type: got %q", own.Header().Get("Content-Type"))
	}
	if !bytes.Equal(own.Body.Bytes(), picture) {
		t.Fatalf("payload mismatch")
	}

	// Fetched straight by ID from the path.
	byID := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/profile/picture/%d", *user.ProfilePicID), token, nil)
	if byID.Code != http.StatusOK {
		t.Fatalf("picture by id status: got %d", byID.Code)
	}
	if !bytes.Equal(byID.Body.Bytes(), picture) {
		t.Fatalf("payload mismatch for picture by id")
	}

	// Replacing keeps the same image ID.
	newPicture := []byte("brand new jpeg bytes")
	update := doJSON(t, router, http.MethodPut, "/api/profile/update", token, map[string]any{
		"profilePicture": base64.StdEncoding.EncodeToString(newPicture),
	})
	if update.Code != http.StatusOK {
		t.Fatalf("update status: got %d body %s", update.Code, update.Body.String())
	}
	var updated types.User
	if err := json.Unmarshal(update.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if updated.ProfilePicID == nil || *updated.ProfilePicID != *user.ProfilePicID {
		t.Fatalf("image id changed on replace")
	}

	replaced := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/profile/picture/%d", *user.ProfilePicID), token, nil)
	if !bytes.Equal(replaced.Body.Bytes(), newPicture) {
		t.Fatalf("old payload still served after replace")
	}
}

func TestProfilePicture_NoneAttached(t *testing.T) {
	router, _ := newTestRouter(t)

	registerTestUser(t, router, "asha@example.com", "9876543210")
	token := loginTestUser(t, router, "asha@example.com", "s3cret-pass")

	resp := doJSON(t, router, http.MethodGet, "/api/profile/picture", token, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want 404", resp.Code)
	}
}

func TestRegisterWithFile_Multipart(t *testing.T) {
	router, _ := newTestRouter(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("fullName", "Asha Patel")
	_ = writer.WriteField("email", "asha@example.com")
	_ = writer.WriteField("mobile", "9876543210")
	_ = writer.WriteField("password", "s3cret-pass")
	_ = writer.WriteField("age", "25")
	part, err := writer.CreateFormFile("profilePicture", "me.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake jpeg bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/users/register", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", recorder.Code, recorder.Body.String())
	}
	var user types.User
	if err := json.Unmarshal(recorder.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.ProfilePicID == nil {
		t.Fatalf("expected profile pic reference to be set")
	}
	if user.Age == nil || *user.Age != 25 {
		t.Fatalf("age not parsed from form")
	}
}

func TestAdminLoginAndStats(t *testing.T) {
	router, _ := newTestRouter(t)

	registerTestUser(t, router, "asha@example.com", "9876543210")
	userToken := loginTestUser(t, router, "asha@example.com", "s3cret-pass")

	// Wrong admin credentials are rejected.
	bad := doJSON(t, router, http.MethodPost, "/api/admin/login", "", map[string]string{
		"username": "admin4567",
		"password": "wrong",
	})
	if bad.Code != http.StatusUnauthorized {
		t.Fatalf("bad admin login status: got %d want 401", bad.Code)
	}

	good := doJSON(t, router, http.MethodPost, "/api/admin/login", "", map[string]string{
		"username": testAdminCreds.Username,
		"password": testAdminCreds.Password,
	})
	if good.Code != http.StatusOK {
		t.Fatalf("admin login status: got %d body %s", good.Code, good.Body.String())
	}
	var adminResp AdminLoginResponse
	if err := json.Unmarshal(good.Body.Bytes(), &adminResp); err != nil {
		t.Fatalf("decode admin response: %v", err)
	}
	if adminResp.Role != "ADMIN" || adminResp.Token == "" {
		t.Fatalf("unexpected admin response: %+v", adminResp)
	}

	// Invalid token is unauthorized; a valid user token is forbidden.
	invalid := doJSON(t, router, http.MethodGet, "/api/admin/users/stats", "garbage", nil)
	if invalid.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token status: got %d want 401", invalid.Code)
	}
	forbidden := doJSON(t, router, http.MethodGet, "/api/admin/users/stats", userToken, nil)
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("user token status: got %d want 403", forbidden.Code)
	}

	ok := doJSON(t, router, http.MethodGet, "/api/admin/users/stats", adminResp.Token, nil)
	if ok.Code != http.StatusOK {
		t.Fatalf("admin stats status: got %d body %s", ok.Code, ok.Body.String())
	}
	var stats types.UserStats
	if err := json.Unmarshal(ok.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalUsers != 1 || stats.TrialPlanUsers != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
