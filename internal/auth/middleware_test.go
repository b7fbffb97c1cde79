package auth

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func privateApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/private", JWTMiddleware(secret), func(c *fiber.Ctx) error {
		return c.SendString(HikerID(c))
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	app := privateApp("secret")

	// missing token
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}

	// valid token
	token, err := SignToken("secret", "addr1qx-hiker", AccessTokenTTL)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "addr1qx-hiker" {
		t.Fatalf("expected hiker id in locals, got %q", body)
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	app := privateApp("secret")

	wrong, _ := SignToken("other-secret", "hiker", AccessTokenTTL)
	expired, _ := SignToken("secret", "hiker", -time.Minute)
	for name, header := range map[string]string{
		"wrong secret": "Bearer " + wrong,
		"expired":      "Bearer " + expired,
		"not bearer":   "Basic abc",
	} {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", header)
		resp, _ := app.Test(req)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected unauthorized, got %d", name, resp.StatusCode)
		}
	}
}

func TestJWTMiddlewareParseError(t *testing.T) {
	orig := parseMiddlewareClaimsFn
	parseMiddlewareClaimsFn = func(string, jwt.Claims, jwt.Keyfunc, ...jwt.ParserOption) (*jwt.Token, error) {
		return nil, errors.New("boom")
	}
	defer func() { parseMiddlewareClaimsFn = orig }()

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer token")
	resp, _ := privateApp("secret").Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}
}

func TestSignTokenRequiresHiker(t *testing.T) {
	if _, err := SignToken("secret", "", time.Minute); err == nil {
		t.Fatalf("expected error for empty hiker id")
	}
}

func TestPassthrough(t *testing.T) {
	app := fiber.New()
	app.Get("/", Passthrough, func(c *fiber.Ctx) error { return c.SendString(HikerID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Hiker-ID", "hiker-9")
	resp, _ := app.Test(req)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hiker-9" {
		t.Fatalf("unexpected hiker %q", body)
	}
}
