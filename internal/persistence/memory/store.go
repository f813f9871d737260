// Package memory provides an in-memory Store used by unit tests. Transactions
// operate on a snapshot that is swapped in on success, so a failed operation
// leaves the store in its pre-transaction state.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
)

// Store is an in-memory implementation of domain.Store.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	users         map[uuid.UUID]domain.User
	plans         map[uuid.UUID]domain.ExercisePlan
	sessions      map[uuid.UUID]domain.ExerciseSession
	setStates     map[uuid.UUID]map[int]domain.ExerciseSetState
	readingPlans  map[uuid.UUID]domain.ReadingPlan
	readingLogs   map[uuid.UUID]domain.ReadingLog
	notifications map[uuid.UUID]domain.Notification
	notifByKey    map[string]uuid.UUID
	webhooks      map[uuid.UUID]domain.WebhookEvent
	outbox        []domain.OutboxEvent
	dailies       map[string]domain.DailySummary
	weeklies      map[string]domain.WeeklySummary
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{state: newState()}
}

func newState() *state {
	return &state{
		users:         make(map[uuid.UUID]domain.User),
		plans:         make(map[uuid.UUID]domain.ExercisePlan),
		sessions:      make(map[uuid.UUID]domain.ExerciseSession),
		setStates:     make(map[uuid.UUID]map[int]domain.ExerciseSetState),
		readingPlans:  make(map[uuid.UUID]domain.ReadingPlan),
		readingLogs:   make(map[uuid.UUID]domain.ReadingLog),
		notifications: make(map[uuid.UUID]domain.Notification),
		notifByKey:    make(map[string]uuid.UUID),
		webhooks:      make(map[uuid.UUID]domain.WebhookEvent),
		dailies:       make(map[string]domain.DailySummary),
		weeklies:      make(map[string]domain.WeeklySummary),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.setStates {
		inner := make(map[int]domain.ExerciseSetState, len(v))
		for n, st := range v {
			inner[n] = st
		}
		c.setStates[k] = inner
	}
	for k, v := range s.readingPlans {
		c.readingPlans[k] = v
	}
	for k, v := range s.readingLogs {
		c.readingLogs[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.notifByKey {
		c.notifByKey[k] = v
	}
	for k, v := range s.webhooks {
		c.webhooks[k] = v
	}
	c.outbox = append(c.outbox, s.outbox...)
	for k, v := range s.dailies {
		c.dailies[k] = v
	}
	for k, v := range s.weeklies {
		c.weeklies[k] = v
	}
	return c
}

// WithinTx runs fn against a snapshot and commits it atomically on success.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	repos := domain.Repositories{
		Users:         &userRepo{st: working},
		Plans:         &planRepo{st: working},
		Sessions:      &sessionRepo{st: working},
		SetStates:     &setStateRepo{st: working},
		ReadingPlans:  &readingPlanRepo{st: working},
		ReadingLogs:   &readingLogRepo{st: working},
		Notifications: &notificationRepo{st: working},
		Webhooks:      &webhookRepo{st: working},
		Outbox:        &outboxRepo{st: working},
		Summaries:     &summaryRepo{st: working},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	s.state = working
	return nil
}

// OutboxEvents returns a snapshot of all outbox rows, oldest first.
func (s *Store) OutboxEvents() []domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OutboxEvent, len(s.state.outbox))
	copy(out, s.state.outbox)
	return out
}

type userRepo struct{ st *state }

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := r.st.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *userRepo) GetByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	for _, u := range r.st.users {
		if u.ExternalID == externalID {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepo) Save(_ context.Context, user *domain.User) error {
	r.st.users[user.ID] = *user
	return nil
}

type planRepo struct{ st *state }

func (r *planRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ExercisePlan, error) {
	if p, ok := r.st.plans[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *planRepo) GetActiveByUserAndDate(_ context.Context, userID uuid.UUID, targetDate time.Time) (*domain.ExercisePlan, error) {
	for _, p := range r.st.plans {
		if p.UserID == userID && p.TargetDate.Equal(targetDate) && p.Status == domain.PlanStatusActive {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *planRepo) Create(_ context.Context, plan *domain.ExercisePlan) error {
	if plan.Status == domain.PlanStatusActive {
		for _, p := range r.st.plans {
			if p.UserID == plan.UserID && p.TargetDate.Equal(plan.TargetDate) && p.Status == domain.PlanStatusActive {
				return domain.ErrPlanConflict
			}
		}
	}
	r.st.plans[plan.ID] = *plan
	return nil
}

type sessionRepo struct{ st *state }

func (r *sessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ExerciseSession, error) {
	if s, ok := r.st.sessions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *sessionRepo) ListByPlan(_ context.Context, planID uuid.UUID) ([]domain.ExerciseSession, error) {
	var out []domain.ExerciseSession
	for _, s := range r.st.sessions {
		if s.PlanID == planID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNo < out[j].OrderNo })
	return out, nil
}

func (r *sessionRepo) Create(_ context.Context, session *domain.ExerciseSession) error {
	r.st.sessions[session.ID] = *session
	return nil
}

type setStateRepo struct{ st *state }

func (r *setStateRepo) Get(_ context.Context, sessionID uuid.UUID, setNo int) (*domain.ExerciseSetState, error) {
	if inner, ok := r.st.setStates[sessionID]; ok {
		if state, ok := inner[setNo]; ok {
			return &state, nil
		}
	}
	return nil, nil
}

func (r *setStateRepo) ListPending(_ context.Context, sessionID uuid.UUID) ([]domain.ExerciseSetState, error) {
	var out []domain.ExerciseSetState
	for _, state := range r.st.setStates[sessionID] {
		if state.Status == domain.SetStatusPending {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SetNo < out[j].SetNo })
	return out, nil
}

func (r *setStateRepo) Create(_ context.Context, state *domain.ExerciseSetState) error {
	inner, ok := r.st.setStates[state.SessionID]
	if !ok {
		inner = make(map[int]domain.ExerciseSetState)
		r.st.setStates[state.SessionID] = inner
	}
	if _, exists := inner[state.SetNo]; exists {
		return domain.ErrIdempotencyConflict
	}
	inner[state.SetNo] = *state
	return nil
}

func (r *setStateRepo) Update(_ context.Context, state *domain.ExerciseSetState) error {
	inner, ok := r.st.setStates[state.SessionID]
	if !ok {
		return domain.ErrValidation
	}
	inner[state.SetNo] = *state
	return nil
}

type readingPlanRepo struct{ st *state }

func (r *readingPlanRepo) GetByUser(_ context.Context, userID uuid.UUID) (*domain.ReadingPlan, error) {
	var latest *domain.ReadingPlan
	for _, p := range r.st.readingPlans {
		if p.UserID != userID {
			continue
		}
		p := p
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = &p
		}
	}
	return latest, nil
}

func (r *readingPlanRepo) Save(_ context.Context, plan *domain.ReadingPlan) error {
	r.st.readingPlans[plan.ID] = *plan
	return nil
}

type readingLogRepo struct{ st *state }

func (r *readingLogRepo) List(_ context.Context, userID uuid.UUID, from, to time.Time) ([]domain.ReadingLog, error) {
	var out []domain.ReadingLog
	for _, log := range r.st.readingLogs {
		if log.UserID != userID {
			continue
		}
		if log.CreatedAt.Before(from) || !log.CreatedAt.Before(to) {
			continue
		}
		out = append(out, log)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *readingLogRepo) Create(_ context.Context, log *domain.ReadingLog) error {
	r.st.readingLogs[log.ID] = *log
	return nil
}

type notificationRepo struct{ st *state }

func (r *notificationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	if n, ok := r.st.notifications[id]; ok {
		return &n, nil
	}
	return nil, nil
}

func (r *notificationRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.Notification, error) {
	if id, ok := r.st.notifByKey[key]; ok {
		n := r.st.notifications[id]
		return &n, nil
	}
	return nil, nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID uuid.UUID, status *domain.NotificationStatus, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range r.st.notifications {
		if n.UserID != userID {
			continue
		}
		if status != nil && n.Status != *status {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduleAt.After(out[j].ScheduleAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	if _, exists := r.st.notifByKey[notification.IdempotencyKey]; exists {
		return domain.ErrIdempotencyConflict
	}
	r.st.notifications[notification.ID] = *notification
	r.st.notifByKey[notification.IdempotencyKey] = notification.ID
	return nil
}

func (r *notificationRepo) Update(_ context.Context, notification *domain.Notification) error {
	if _, ok := r.st.notifications[notification.ID]; !ok {
		return domain.ErrNotificationNotFound
	}
	r.st.notifications[notification.ID] = *notification
	return nil
}

type webhookRepo struct{ st *state }

func (r *webhookRepo) GetByProviderAndKey(_ context.Context, provider, idempotencyKey string) (*domain.WebhookEvent, error) {
	for _, e := range r.st.webhooks {
		if e.Provider == provider && e.IdempotencyKey == idempotencyKey {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (r *webhookRepo) GetByProviderAndEventID(_ context.Context, provider, eventID string) (*domain.WebhookEvent, error) {
	for _, e := range r.st.webhooks {
		if e.Provider == provider && e.EventID != nil && *e.EventID == eventID {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (r *webhookRepo) Create(_ context.Context, event *domain.WebhookEvent) error {
	for _, e := range r.st.webhooks {
		if e.Provider == event.Provider && e.IdempotencyKey == event.IdempotencyKey {
			return domain.ErrIdempotencyConflict
		}
		if event.EventID != nil && e.Provider == event.Provider && e.EventID != nil && *e.EventID == *event.EventID {
			return domain.ErrIdempotencyConflict
		}
	}
	r.st.webhooks[event.ID] = *event
	return nil
}

type outboxRepo struct{ st *state }

func (r *outboxRepo) Append(_ context.Context, event domain.OutboxEvent) error {
	r.st.outbox = append(r.st.outbox, event)
	return nil
}

func (r *outboxRepo) LeasePending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	var leased []domain.OutboxEvent
	for i := range r.st.outbox {
		if len(leased) == limit {
			break
		}
		if r.st.outbox[i].Status != domain.OutboxStatusPending {
			continue
		}
		r.st.outbox[i].Status = domain.OutboxStatusInFlight
		r.st.outbox[i].UpdatedAt = time.Now().UTC()
		leased = append(leased, r.st.outbox[i])
	}
	return leased, nil
}

func (r *outboxRepo) MarkComplete(_ context.Context, id uuid.UUID) error {
	for i := range r.st.outbox {
		if r.st.outbox[i].ID == id {
			r.st.outbox[i].Status = domain.OutboxStatusCompleted
			r.st.outbox[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return nil
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	for i := range r.st.outbox {
		if r.st.outbox[i].ID != id {
			continue
		}
		r.st.outbox[i].Status = domain.OutboxStatusFailed
		r.st.outbox[i].RetryCount++
		r.st.outbox[i].UpdatedAt = time.Now().UTC()

		merged := map[string]any{}
		if len(r.st.outbox[i].Payload) > 0 {
			_ = json.Unmarshal(r.st.outbox[i].Payload, &merged)
		}
		merged["failure_reason"] = reason
		body, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		r.st.outbox[i].Payload = body
		return nil
	}
	return nil
}

type summaryRepo struct{ st *state }

func summaryKey(userID uuid.UUID, date time.Time) string {
	return userID.String() + "|" + date.Format(domain.DateLayout)
}

func (r *summaryRepo) GetDaily(_ context.Context, userID uuid.UUID, date time.Time) (*domain.DailySummary, error) {
	if d, ok := r.st.dailies[summaryKey(userID, date)]; ok {
		return &d, nil
	}
	return nil, nil
}

func (r *summaryRepo) UpsertDaily(_ context.Context, summary *domain.DailySummary) error {
	r.st.dailies[summaryKey(summary.UserID, summary.SummaryDate)] = *summary
	return nil
}

func (r *summaryRepo) GetWeekly(_ context.Context, userID uuid.UUID, startDate time.Time) (*domain.WeeklySummary, error) {
	if w, ok := r.st.weeklies[summaryKey(userID, startDate)]; ok {
		return &w, nil
	}
	return nil, nil
}

func (r *summaryRepo) UpsertWeekly(_ context.Context, summary *domain.WeeklySummary) error {
	r.st.weeklies[summaryKey(summary.UserID, summary.StartDate)] = *summary
	return nil
}

// AggregateExerciseSets counts the user's sets for plans targeting the date.
func (r *summaryRepo) AggregateExerciseSets(_ context.Context, userID uuid.UUID, date time.Time) (int, int, error) {
	total, done := 0, 0
	for _, session := range r.st.sessions {
		plan, ok := r.st.plans[session.PlanID]
		if !ok || plan.UserID != userID || !plan.TargetDate.Equal(domain.CivilDate(date)) {
			continue
		}
		for _, state := range r.st.setStates[session.ID] {
			total++
			if state.Status == domain.SetStatusDone {
				done++
			}
		}
	}
	return total, done, nil
}

func (r *summaryRepo) HasReadingCompletion(_ context.Context, userID uuid.UUID, fromUTC, toUTC time.Time) (bool, error) {
	for _, log := range r.st.readingLogs {
		if log.UserID != userID || log.Status != domain.ReadingLogStatusDone {
			continue
		}
		if !log.CreatedAt.Before(fromUTC) && !log.CreatedAt.After(toUTC) {
			return true, nil
		}
	}
	return false, nil
}
