package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/notification"
	"example.com/godlife/internal/persistence/memory"
	"example.com/godlife/internal/plan"
	"example.com/godlife/internal/reading"
	"example.com/godlife/internal/summary"
	"example.com/godlife/internal/user"
	"example.com/godlife/internal/webhook"
)

func newTestHandler() (*Handler, *memory.Store) {
	store := memory.NewStore()
	plans := plan.NewService(store)
	handler := NewHandler(
		user.NewService(store),
		plans,
		reading.NewService(store),
		webhook.NewService(store, plans),
		summary.NewService(store),
		notification.NewService(store),
	)
	return handler, store
}

func serve(handler *Handler, method, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestResolveUserRejectsBlankExternalID(t *testing.T) {
	handler, _ := newTestHandler()

	rr := serve(handler, http.MethodPost, "/v1/auth/resolve", `{"external_id":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestResolveUserDefaults(t *testing.T) {
	handler, _ := newTestHandler()

	rr := serve(handler, http.MethodPost, "/v1/auth/resolve", `{"external_id":"kakao-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ResolveUserResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "Kakao User" {
		t.Fatalf("expected default name got %s", resp.Name)
	}
	if !resp.Created {
		t.Fatalf("expected created flag")
	}
}

func TestGeneratePlanStatusCodes(t *testing.T) {
	handler, _ := newTestHandler()
	userID := uuid.New()

	created := serve(handler, http.MethodPost, "/v1/plans/generate",
		`{"user_id":"`+userID.String()+`","target_date":"2025-03-10","source":"rule"}`)
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", created.Code, created.Body.String())
	}

	conflict := serve(handler, http.MethodPost, "/v1/plans/generate",
		`{"user_id":"`+userID.String()+`","target_date":"2025-03-10","source":"llm"}`)
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", conflict.Code, conflict.Body.String())
	}

	badSource := serve(handler, http.MethodPost, "/v1/plans/generate",
		`{"user_id":"`+uuid.NewString()+`","target_date":"2025-03-10","source":"magic"}`)
	if badSource.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", badSource.Code, badSource.Body.String())
	}
}

func TestSetResultStatusCodes(t *testing.T) {
	handler, _ := newTestHandler()
	planID, sessionID := generatePlanViaHTTP(t, handler)

	ok := serve(handler, http.MethodPost,
		"/v1/plans/"+planID+"/sessions/"+sessionID+"/sets/1/result",
		`{"result":"DONE","performed_reps":10}`)
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", ok.Code, ok.Body.String())
	}
	var resp SetResultView
	if err := json.Unmarshal(ok.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != string(domain.SetStatusDone) {
		t.Fatalf("expected DONE got %s", resp.Status)
	}
	if resp.NextPendingSetNo == nil || *resp.NextPendingSetNo != 2 {
		t.Fatalf("expected next pending set 2 got %v", resp.NextPendingSetNo)
	}

	order := serve(handler, http.MethodPost,
		"/v1/plans/"+planID+"/sessions/"+sessionID+"/sets/3/result",
		`{"result":"DONE"}`)
	if order.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d: %s", order.Code, order.Body.String())
	}

	mismatch := serve(handler, http.MethodPost,
		"/v1/plans/"+uuid.NewString()+"/sessions/"+sessionID+"/sets/2/result",
		`{"result":"DONE"}`)
	if mismatch.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", mismatch.Code, mismatch.Body.String())
	}

	invalid := serve(handler, http.MethodPost,
		"/v1/plans/"+planID+"/sessions/"+sessionID+"/sets/2/result",
		`{"result":"MAYBE"}`)
	if invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", invalid.Code, invalid.Body.String())
	}
}

func TestReadingReminderNotFoundWithoutPlan(t *testing.T) {
	handler, store := newTestHandler()
	userID := seedUser(t, store)

	rr := serve(handler, http.MethodPost, "/v1/reading/reminders/base",
		`{"user_id":"`+userID.String()+`","reference_date":"2025-03-10"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWebhookProviderMismatch(t *testing.T) {
	handler, _ := newTestHandler()

	rr := serve(handler, http.MethodPost, "/v1/webhooks/kakao",
		`{"provider":"slack","event_type":"message.read"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWebhookDedupOverHTTP(t *testing.T) {
	handler, _ := newTestHandler()
	body := `{"event_type":"message.read","event_id":"evt-1"}`

	first := serve(handler, http.MethodPost, "/v1/webhooks/kakao", body)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", first.Code, first.Body.String())
	}
	var resp WebhookResponse
	if err := json.Unmarshal(first.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result != webhook.ResultAccepted {
		t.Fatalf("expected accepted got %s", resp.Result)
	}

	second := serve(handler, http.MethodPost, "/v1/webhooks/kakao", body)
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result != webhook.ResultDuplicate {
		t.Fatalf("expected duplicate got %s", resp.Result)
	}
}

func TestNotificationRetryNotFound(t *testing.T) {
	handler, _ := newTestHandler()

	rr := serve(handler, http.MethodPost, "/v1/notifications/retry",
		`{"notification_id":"`+uuid.NewString()+`"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDailySummaryRequiresParams(t *testing.T) {
	handler, _ := newTestHandler()

	rr := serve(handler, http.MethodGet, "/v1/summary/daily", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}

	ok := serve(handler, http.MethodGet,
		"/v1/summary/daily?user_id="+uuid.NewString()+"&date=2025-03-10", "")
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", ok.Code, ok.Body.String())
	}
}

func generatePlanViaHTTP(t *testing.T, handler *Handler) (string, string) {
	t.Helper()
	created := serve(handler, http.MethodPost, "/v1/plans/generate",
		`{"user_id":"`+uuid.NewString()+`","target_date":"2025-03-10","source":"rule"}`)
	if created.Code != http.StatusCreated {
		t.Fatalf("seed generate failed: %d %s", created.Code, created.Body.String())
	}
	var planResp PlanSummaryView
	if err := json.Unmarshal(created.Body.Bytes(), &planResp); err != nil {
		t.Fatalf("failed to decode plan: %v", err)
	}

	detail := serve(handler, http.MethodGet, "/v1/plans/"+planResp.PlanID.String(), "")
	if detail.Code != http.StatusOK {
		t.Fatalf("seed get failed: %d %s", detail.Code, detail.Body.String())
	}
	var detailResp PlanDetailView
	if err := json.Unmarshal(detail.Body.Bytes(), &detailResp); err != nil {
		t.Fatalf("failed to decode detail: %v", err)
	}
	return planResp.PlanID.String(), detailResp.Sessions[0].SessionID.String()
}

func seedUser(t *testing.T, store *memory.Store) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := store.WithinTx(context.Background(), func(ctx context.Context, r domain.Repositories) error {
		now := time.Now().UTC()
		return r.Users.Save(ctx, &domain.User{
			ID:         id,
			ExternalID: "ext-" + id.String(),
			Name:       "Tester",
			Timezone:   "Asia/Seoul",
			Status:     domain.UserStatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		t.Fatalf("seed user failed: %v", err)
	}
	return id
}
