package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"studio/internal/account"
	"studio/internal/campaign"
	"studio/internal/catalog"
	"studio/internal/domain"
	"studio/internal/http/handlers"
	"studio/internal/infra/kvstore"
	"studio/internal/media"
	"studio/internal/providers/image"
	"studio/internal/providers/video"
)

const (
	adminEmail  = "admin@studio.test"
	tokenSecret = "router-test-secret"
)

type stubImages struct{}

func (stubImages) Catalogue(_ context.Context, src image.Source, _, _ string) (*image.Asset, error) {
	return &image.Asset{Data: append([]byte("cat-"), src.Data...), MIME: "image/png"}, nil
}

func (stubImages) Edit(_ context.Context, src image.Source, _ string) (*image.Asset, error) {
	return &image.Asset{Data: append([]byte("edit-"), src.Data...), MIME: "image/png"}, nil
}

type stubVideos struct{ err error }

func (s *stubVideos) Generate(context.Context, video.Request) (*video.Asset, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &video.Asset{Data: []byte("mp4-bytes"), MIME: "video/mp4"}, nil
}

type stubNarrator struct{}

func (stubNarrator) VoiceOver(context.Context, string) []byte { return []byte("RIFFWAVE") }

type testServer struct {
	*httptest.Server
	videos *stubVideos
	client *http.Client
}

func newTestServer(t *testing.T, freeCredits int) *testServer {
	t.Helper()
	accounts, err := account.NewService(account.Options{
		Store:       kvstore.NewMemory(),
		AdminEmail:  adminEmail,
		FreeCredits: freeCredits,
		TokenSecret: tokenSecret,
	})
	if err != nil {
		t.Fatalf("account.NewService: %v", err)
	}
	if err := accounts.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	reg := media.NewRegistry()
	videos := &stubVideos{}
	ctl, err := campaign.NewController(campaign.Options{
		Credits:  accounts,
		Media:    reg,
		Images:   stubImages{},
		Videos:   videos,
		Narrator: stubNarrator{},
	})
	if err != nil {
		t.Fatalf("campaign.NewController: %v", err)
	}
	app := &handlers.App{
		Logger:    zerolog.Nop(),
		Accounts:  accounts,
		Campaigns: ctl,
		Media:     reg,
		Catalog:   catalog.Default(),
	}
	srv := httptest.NewServer(NewRouter(app, Options{CORSOrigins: []string{"https://studio.test"}, TokenSecret: tokenSecret}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, videos: videos, client: srv.Client()}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type signedIn struct {
	Token string `json:"token"`
	User  struct {
		ID      string `json:"id"`
		Credits int    `json:"credits"`
	} `json:"user"`
}

func (s *testServer) signIn(t *testing.T, path, email string, want int) signedIn {
	t.Helper()
	resp := s.do(t, http.MethodPost, path, strings.NewReader(`{"email":"`+email+`"}`), nil)
	if resp.StatusCode != want {
		t.Fatalf("%s status = %d, want %d", path, resp.StatusCode, want)
	}
	var out signedIn
	decodeJSON(t, resp, &out)
	if out.Token == "" {
		t.Fatalf("%s returned no token", path)
	}
	return out
}

func (s *testServer) register(t *testing.T, email string) signedIn {
	t.Helper()
	return s.signIn(t, "/v1/auth/register", email, http.StatusCreated)
}

func (s *testServer) login(t *testing.T, email string) signedIn {
	t.Helper()
	return s.signIn(t, "/v1/auth/login", email, http.StatusOK)
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func withBearer(h http.Header, token string) http.Header {
	h.Set("Authorization", "Bearer "+token)
	return h
}

func campaignForm(t *testing.T, fields map[string]string) (io.Reader, http.Header) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="photos"; filename="shoe.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("\x89PNG-shoe"))
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf, http.Header{"Content-Type": {mw.FormDataContentType()}}
}

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealthAndCatalog(t *testing.T) {
	s := newTestServer(t, 3)
	if resp := s.do(t, http.MethodGet, "/v1/healthz", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	resp := s.do(t, http.MethodGet, "/v1/catalog", nil, nil)
	var c catalog.Catalog
	decodeJSON(t, resp, &c)
	if len(c.Music) != 5 || c.Styles[0] != catalog.DefaultStyle {
		t.Fatalf("catalog = %+v", c)
	}
}

func TestCampaignRequiresLogin(t *testing.T) {
	s := newTestServer(t, 3)
	body, hdr := campaignForm(t, map[string]string{"description": "red running shoes"})
	resp := s.do(t, http.MethodPost, "/v1/campaigns", body, hdr)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestCampaignLifecycle(t *testing.T) {
	s := newTestServer(t, 3)
	ana := s.register(t, "ana@shop.test")
	auth := bearer(ana.Token)

	body, hdr := campaignForm(t, map[string]string{"description": "red running shoes", "aspect_ratio": "9:16"})
	resp := s.do(t, http.MethodPost, "/v1/campaigns", body, withBearer(hdr, ana.Token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var p domain.Project
	decodeJSON(t, resp, &p)
	if len(p.Assets) != 5 {
		t.Fatalf("assets = %d, want 5", len(p.Assets))
	}
	if !strings.HasPrefix(p.Name, "Campaña ") {
		t.Fatalf("name = %q", p.Name)
	}
	if p.Input.MusicVolume != 0.5 || p.Input.VoiceVolume != 0.8 {
		t.Fatalf("volumes = %v/%v", p.Input.MusicVolume, p.Input.VoiceVolume)
	}

	blob := s.do(t, http.MethodGet, "/v1/media/"+p.Assets[0].URL, nil, auth)
	data, _ := io.ReadAll(blob.Body)
	if blob.StatusCode != http.StatusOK || string(data) != "cat-\x89PNG-shoe" {
		t.Fatalf("media = %d %q", blob.StatusCode, data)
	}
	if got := blob.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("media content type = %q", got)
	}

	var me struct {
		Credits int `json:"credits"`
	}
	decodeJSON(t, s.do(t, http.MethodGet, "/v1/me", nil, auth), &me)
	if me.Credits != 2 {
		t.Fatalf("credits = %d, want 2", me.Credits)
	}

	audio := p.Assets[3]
	edit := s.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/assets/"+audio.ID+"/edit", strings.NewReader(`{"instruction":"x"}`), auth)
	if edit.StatusCode != http.StatusBadRequest {
		t.Fatalf("audio edit status = %d, want %d", edit.StatusCode, http.StatusBadRequest)
	}
	edit = s.do(t, http.MethodPost, "/v1/projects/"+p.ID+"/assets/"+p.Assets[0].ID+"/edit", strings.NewReader(`{"instruction":"fondo rojo"}`), auth)
	if edit.StatusCode != http.StatusOK {
		t.Fatalf("image edit status = %d", edit.StatusCode)
	}

	archive := s.do(t, http.MethodGet, "/v1/projects/"+p.ID+"/archive", nil, auth)
	if archive.StatusCode != http.StatusOK || archive.Header.Get("Content-Type") != "application/zip" {
		t.Fatalf("archive = %d %q", archive.StatusCode, archive.Header.Get("Content-Type"))
	}
	if social := s.do(t, http.MethodGet, "/v1/projects/"+p.ID+"/social.txt", nil, auth); social.StatusCode != http.StatusNotFound {
		t.Fatalf("social.txt status = %d, want 404", social.StatusCode)
	}
	if missing := s.do(t, http.MethodGet, "/v1/projects/proj-0", nil, auth); missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing project status = %d", missing.StatusCode)
	}
}

func TestCampaignOutOfCredits(t *testing.T) {
	s := newTestServer(t, 1)
	ana := s.register(t, "ana@shop.test")

	body, hdr := campaignForm(t, map[string]string{"description": "shoes"})
	if resp := s.do(t, http.MethodPost, "/v1/campaigns", body, withBearer(hdr, ana.Token)); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first status = %d", resp.StatusCode)
	}
	body, hdr = campaignForm(t, map[string]string{"description": "shoes"})
	resp := s.do(t, http.MethodPost, "/v1/campaigns", body, withBearer(hdr, ana.Token))
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusPaymentRequired)
	}
	var e struct {
		Error       string `json:"error"`
		PaymentLink string `json:"payment_link"`
	}
	decodeJSON(t, resp, &e)
	if e.Error != "insufficient_credits" || !strings.HasPrefix(e.PaymentLink, "https://wa.me/15558883245?text=") {
		t.Fatalf("error body = %+v", e)
	}
}

func TestCampaignSafetyFilter(t *testing.T) {
	s := newTestServer(t, 3)
	ana := s.register(t, "ana@shop.test")
	s.videos.err = &domain.SafetyFilterError{Reason: "faces"}

	body, hdr := campaignForm(t, map[string]string{"description": "shoes"})
	hdr.Set("Accept-Language", "en-US,en;q=0.9")
	resp := s.do(t, http.MethodPost, "/v1/campaigns", body, withBearer(hdr, ana.Token))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	var e struct {
		Message string `json:"message"`
		Hint    string `json:"hint"`
	}
	decodeJSON(t, resp, &e)
	if !strings.Contains(e.Message, "faces") || !strings.HasPrefix(e.Hint, "The content filter") {
		t.Fatalf("error body = %+v", e)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, 3)
	ana := s.register(t, "ana@shop.test")
	if resp := s.do(t, http.MethodGet, "/v1/admin/users", nil, bearer(ana.Token)); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", resp.StatusCode)
	}

	admin := bearer(s.login(t, adminEmail).Token)
	var list struct {
		Users []struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"users"`
	}
	decodeJSON(t, s.do(t, http.MethodGet, "/v1/admin/users", nil, admin), &list)
	if len(list.Users) != 2 {
		t.Fatalf("users = %+v", list.Users)
	}

	grant := s.do(t, http.MethodPost, "/v1/admin/users/"+list.Users[0].ID+"/credits", strings.NewReader(`{"amount":10}`), admin)
	var granted struct {
		Credits int `json:"credits"`
	}
	decodeJSON(t, grant, &granted)
	if granted.Credits != 13 {
		t.Fatalf("credits = %d, want 13", granted.Credits)
	}

	put := s.do(t, http.MethodPut, "/v1/admin/config", strings.NewReader(`{"whatsapp_number":"+58 412 555 0000","price_per_credit":2.5}`), admin)
	var cfg domain.AdminConfig
	decodeJSON(t, put, &cfg)
	if cfg.WhatsAppNumber != "584125550000" || cfg.PricePerCredit != 2.5 {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestAnonymousClientHasNoIdentity(t *testing.T) {
	s := newTestServer(t, 3)
	s.login(t, adminEmail)

	anonymous := &http.Client{}
	for _, path := range []string{"/v1/admin/users", "/v1/me", "/v1/projects"} {
		resp, err := anonymous.Get(s.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("anonymous GET %s = %d, want 401", path, resp.StatusCode)
		}
	}
	if resp := s.do(t, http.MethodGet, "/v1/me", nil, bearer("not.a.token")); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token GET /v1/me = %d, want 401", resp.StatusCode)
	}
}

func TestClientsKeepSeparateIdentities(t *testing.T) {
	s := newTestServer(t, 3)
	ana := s.register(t, "ana@shop.test")
	bob := s.register(t, "bob@shop.test")
	s.login(t, adminEmail)

	body, hdr := campaignForm(t, map[string]string{"description": "red running shoes"})
	resp := s.do(t, http.MethodPost, "/v1/campaigns", body, withBearer(hdr, ana.Token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var p domain.Project
	decodeJSON(t, resp, &p)

	credits := func(token string) int {
		var me struct {
			Email   string `json:"email"`
			Credits int    `json:"credits"`
		}
		decodeJSON(t, s.do(t, http.MethodGet, "/v1/me", nil, bearer(token)), &me)
		return me.Credits
	}
	if got := credits(ana.Token); got != 2 {
		t.Fatalf("ana credits = %d, want 2", got)
	}
	if got := credits(bob.Token); got != 3 {
		t.Fatalf("bob credits = %d, want 3", got)
	}

	bobAuth := bearer(bob.Token)
	var list struct {
		Projects []domain.Project `json:"projects"`
	}
	decodeJSON(t, s.do(t, http.MethodGet, "/v1/projects", nil, bobAuth), &list)
	if len(list.Projects) != 0 {
		t.Fatalf("bob sees %d projects, want 0", len(list.Projects))
	}
	for _, req := range []struct{ method, path, body string }{
		{http.MethodGet, "/v1/projects/" + p.ID, ""},
		{http.MethodPost, "/v1/projects/" + p.ID + "/assets/" + p.Assets[0].ID + "/edit", `{"instruction":"fondo rojo"}`},
		{http.MethodGet, "/v1/projects/" + p.ID + "/archive", ""},
		{http.MethodGet, "/v1/media/" + p.Assets[0].URL, ""},
	} {
		var body io.Reader
		if req.body != "" {
			body = strings.NewReader(req.body)
		}
		if resp := s.do(t, req.method, req.path, body, bobAuth); resp.StatusCode != http.StatusNotFound {
			t.Fatalf("bob %s %s = %d, want 404", req.method, req.path, resp.StatusCode)
		}
	}

	if resp := s.do(t, http.MethodPost, "/v1/auth/logout", nil, bearer(ana.Token)); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	if resp := s.do(t, http.MethodGet, "/v1/me", nil, bearer(ana.Token)); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("ana after logout = %d, want 401", resp.StatusCode)
	}
	if got := credits(bob.Token); got != 3 {
		t.Fatalf("bob credits after ana logout = %d, want 3", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, 3)
	resp := s.do(t, http.MethodOptions, "/v1/campaigns", nil, http.Header{"Origin": {"https://studio.test"}})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://studio.test" {
		t.Fatalf("allow origin = %q", got)
	}
}
