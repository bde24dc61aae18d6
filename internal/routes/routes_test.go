package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/coachmatch/internal/config"
	"github.com/saeid-a/coachmatch/internal/handlers"
	"github.com/saeid-a/coachmatch/internal/keylock"
	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
	"github.com/saeid-a/coachmatch/internal/repository/memstore"
	"github.com/saeid-a/coachmatch/internal/services"
	"github.com/saeid-a/coachmatch/pkg/utils"
)

const testSecret = "routes-test-secret"

func newTestServer(t *testing.T) *fiber.App {
	t.Helper()

	store := memstore.New()
	rating := 4.5
	if _, err := store.Trainers().Upsert(context.Background(), repository.UpsertTrainerInput{
		UserID:          "trainer-1",
		FullName:        "Sara Coach",
		Specializations: []string{"strength_training"},
		Rating:          &rating,
	}); err != nil {
		t.Fatalf("seed trainer: %v", err)
	}

	timeout := time.Second
	locks := keylock.New()
	dispatcher := services.NewNotificationDispatcher(store.Notifications(), nil, timeout)
	matchService := services.NewMatchService(store.MatchRequests(), store.Trainers(), dispatcher, locks, timeout)
	scheduleService := services.NewScheduleService(store.Appointments(), dispatcher, locks, timeout)
	notificationService := services.NewNotificationService(store.Notifications(), timeout)

	app := fiber.New()
	RegisterRoutes(app, &config.Config{JWTSecret: testSecret, AppEnv: "development"}, Handlers{
		MatchRequests: handlers.NewMatchRequestHandler(matchService),
		Appointments:  handlers.NewAppointmentHandler(scheduleService, time.UTC),
		Notifications: handlers.NewNotificationHandler(notificationService, nil),
		Trainers:      handlers.NewTrainerHandler(store.Trainers(), services.NewMatchmakingService(store.Trainers())),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, target, userID, role, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := utils.GenerateToken(userID, role, testSecret)
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	decoded := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("decode %s %s: %v", method, target, err)
	}
	return resp.StatusCode, decoded
}

func TestHealthIsPublic(t *testing.T) {
	app := newTestServer(t)

	status, body := call(t, app, http.MethodGet, "/health", "", "", "")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", status, body)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	app := newTestServer(t)

	status, _ := call(t, app, http.MethodGet, "/api/v1/appointments", "", "", "")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestRoleGuards(t *testing.T) {
	app := newTestServer(t)

	status, _ := call(t, app, http.MethodPost, "/api/v1/match-requests", "trainer-1", models.RoleTrainer,
		`{"trainer_id":"trainer-1","training_goal":"strength"}`)
	if status != http.StatusForbidden {
		t.Fatalf("trainer submit: expected 403, got %d", status)
	}

	status, _ = call(t, app, http.MethodPost, "/api/v1/match-requests/any/accept", "member-1", models.RoleMember, "")
	if status != http.StatusForbidden {
		t.Fatalf("member accept: expected 403, got %d", status)
	}
}

func TestMatchBookAndNotifyFlow(t *testing.T) {
	app := newTestServer(t)

	status, body := call(t, app, http.MethodPost, "/api/v1/match-requests", "member-1", models.RoleMember,
		`{"trainer_id":"trainer-1","training_goal":"get stronger"}`)
	if status != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d (%v)", status, body)
	}
	request, _ := body["match_request"].(map[string]any)
	requestID, _ := request["id"].(string)
	if requestID == "" {
		t.Fatalf("submit: missing id in %v", body)
	}

	status, body = call(t, app, http.MethodGet, "/api/v1/match-requests", "trainer-1", models.RoleTrainer, "")
	if status != http.StatusOK {
		t.Fatalf("trainer list: expected 200, got %d", status)
	}
	if pending, _ := body["match_requests"].([]any); len(pending) != 1 {
		t.Fatalf("trainer list: expected one pending request, got %v", body)
	}

	status, _ = call(t, app, http.MethodPost, "/api/v1/match-requests/"+requestID+"/accept", "trainer-1", models.RoleTrainer, "")
	if status != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d", status)
	}

	booking := `{"trainer_id":"trainer-1","course_type":"strength","date":"2035-01-01","time_start":"09:00","time_end":"10:00"}`
	status, body = call(t, app, http.MethodPost, "/api/v1/appointments", "member-1", models.RoleMember, booking)
	if status != http.StatusCreated {
		t.Fatalf("book: expected 201, got %d (%v)", status, body)
	}

	status, _ = call(t, app, http.MethodPost, "/api/v1/appointments", "member-2", models.RoleMember, booking)
	if status != http.StatusConflict {
		t.Fatalf("overlapping book: expected 409, got %d", status)
	}

	status, body = call(t, app, http.MethodGet,
		"/api/v1/appointments/availability?trainer_id=trainer-1&date=2035-01-01&time_start=10:00&time_end=11:00",
		"member-2", models.RoleMember, "")
	if status != http.StatusOK || body["available"] != true {
		t.Fatalf("availability: expected touching slot to be free, got %d %v", status, body)
	}

	status, body = call(t, app, http.MethodGet, "/api/v1/notifications", "member-1", models.RoleMember, "")
	if status != http.StatusOK {
		t.Fatalf("notifications: expected 200, got %d", status)
	}
	notifications, _ := body["notifications"].([]any)
	if len(notifications) != 2 {
		t.Fatalf("expected accepted and booked notifications, got %v", body)
	}
}

func TestTrainerDirectoryRoutes(t *testing.T) {
	app := newTestServer(t)

	status, body := call(t, app, http.MethodGet, "/api/v1/trainers/recommended?goal=build%20muscle", "member-1", models.RoleMember, "")
	if status != http.StatusOK {
		t.Fatalf("recommended: expected 200, got %d", status)
	}
	if trainers, _ := body["trainers"].([]any); len(trainers) != 1 {
		t.Fatalf("recommended: expected the seeded trainer, got %v", body)
	}

	status, _ = call(t, app, http.MethodGet, "/api/v1/trainers/trainer-1", "member-1", models.RoleMember, "")
	if status != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d", status)
	}
}
