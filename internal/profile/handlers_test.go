package profile

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-trekhub/internal/auth"
	"backend-trekhub/internal/emergency"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func newApp(svc *Service) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/profile"), svc, auth.Passthrough)
	return app
}

func TestProfileHandlers(t *testing.T) {
	mock := newMock(t)
	app := newApp(NewService(mock))

	mock.ExpectQuery(`FROM hiker_profiles`).WithArgs("hiker-1").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM emergency_contacts`).WithArgs("hiker-1").WillReturnRows(pgxmock.NewRows(contactColumns))

	req := httptest.NewRequest(http.MethodGet, "/profile/", nil)
	req.Header.Set("X-Hiker-ID", "hiker-1")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get profile status: %v", err)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil || p.HikerID != "hiker-1" {
		t.Fatalf("unexpected profile body: %v %+v", err, p)
	}

	mock.ExpectQuery(`INSERT INTO hiker_profiles`).
		WithArgs("hiker-1", 65.0, "advanced", 0, 0.0, 13.0, []string{}, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	body, _ := json.Marshal(Profile{HikerID: "someone-else", FitnessLevel: 65, ExperienceLevel: "advanced", AveragePace: 13})
	req = httptest.NewRequest(http.MethodPut, "/profile/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hiker-ID", "hiker-1")
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("put profile status: %v %d", err, resp.StatusCode)
	}

	mock.ExpectExec(`INSERT INTO emergency_contacts`).
		WithArgs(pgxmock.AnyArg(), "hiker-1", "Sam", "+62811", "", "", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	body, _ = json.Marshal(emergency.Contact{Name: "Sam", Phone: "+62811"})
	req = httptest.NewRequest(http.MethodPost, "/profile/contacts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hiker-ID", "hiker-1")
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("add contact status: %v", err)
	}

	mock.ExpectExec(`DELETE FROM emergency_contacts`).
		WithArgs("hiker-1", "gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	req = httptest.NewRequest(http.MethodDelete, "/profile/contacts/gone", nil)
	req.Header.Set("X-Hiker-ID", "hiker-1")
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileHandlersUnauthenticated(t *testing.T) {
	app := newApp(NewService(nil))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/profile/", nil))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}
}

func TestProfileHandlersBadRequest(t *testing.T) {
	app := newApp(NewService(nil))

	body, _ := json.Marshal(Profile{FitnessLevel: 150})
	req := httptest.NewRequest(http.MethodPut, "/profile/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hiker-ID", "hiker-1")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for fitness out of range")
	}

	req = httptest.NewRequest(http.MethodPost, "/profile/contacts", bytes.NewReader([]byte(`{"name":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hiker-ID", "hiker-1")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for contact without phone")
	}
}
