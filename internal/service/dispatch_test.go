package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/models"
)

type fakeOrders struct {
	orders    map[string]models.WorkOrder
	assigned  map[string]string
	completed []string
}

func (f *fakeOrders) GetWorkOrder(_ context.Context, id string) (models.WorkOrder, error) {
	o, ok := f.orders[id]
	if !ok {
		return models.WorkOrder{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeOrders) AssignWorkOrder(_ context.Context, id, technicianID string) (bool, error) {
	o, ok := f.orders[id]
	if !ok || o.Status != models.WorkOrderOpen {
		return false, nil
	}
	if f.assigned == nil {
		f.assigned = map[string]string{}
	}
	f.assigned[id] = technicianID
	o.TechnicianID = &technicianID
	o.Status = models.WorkOrderAssigned
	f.orders[id] = o
	return true, nil
}

func (f *fakeOrders) CompleteWorkOrder(_ context.Context, id string) error {
	f.completed = append(f.completed, id)
	return nil
}

type fakeTechs struct {
	techs     []models.Technician
	committed map[string]int
	history   []models.LocationHistory
}

func (f *fakeTechs) ListActiveTechnicians(context.Context) ([]models.Technician, error) {
	return f.techs, nil
}

func (f *fakeTechs) GetTechnician(_ context.Context, id string) (models.Technician, error) {
	for _, t := range f.techs {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Technician{}, pgx.ErrNoRows
}

func (f *fakeTechs) CommittedMinutesByTechnician(context.Context, time.Time) (map[string]int, error) {
	if f.committed == nil {
		return map[string]int{}, nil
	}
	return f.committed, nil
}

func (f *fakeTechs) UpdateTechnicianLocation(_ context.Context, id string, lat, lon float64, status string) error {
	for i := range f.techs {
		if f.techs[i].ID == id {
			f.techs[i].Lat, f.techs[i].Lon = &lat, &lon
			f.techs[i].Status = status
		}
	}
	return nil
}

func (f *fakeTechs) InsertLocationHistory(_ context.Context, h models.LocationHistory) error {
	f.history = append(f.history, h)
	return nil
}

type fakeQueue struct {
	entries     []models.DispatchQueueEntry
	expireCalls int
	settled     []string
}

func (f *fakeQueue) ExpireActiveEntries(_ context.Context, workOrderID string) error {
	f.expireCalls++
	for i := range f.entries {
		if f.entries[i].WorkOrderID == workOrderID && f.entries[i].Status != models.QueueExpired {
			f.entries[i].Status = models.QueueExpired
		}
	}
	return nil
}

func (f *fakeQueue) InsertQueueEntry(_ context.Context, e models.DispatchQueueEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeQueue) MarkQueueEntryAssigned(_ context.Context, workOrderID string) error {
	f.settled = append(f.settled, workOrderID)
	for i := range f.entries {
		if f.entries[i].WorkOrderID == workOrderID && f.entries[i].Status == models.QueuePending {
			f.entries[i].Status = models.QueueAssigned
		}
	}
	return nil
}

func (f *fakeQueue) live() []models.DispatchQueueEntry {
	var out []models.DispatchQueueEntry
	for _, e := range f.entries {
		if e.Status != models.QueueExpired {
			out = append(out, e)
		}
	}
	return out
}

type fakeNotifications struct {
	messages []models.NotificationMessage
}

func (f *fakeNotifications) InsertNotification(_ context.Context, m models.NotificationMessage) error {
	f.messages = append(f.messages, m)
	return nil
}

type fakeClients struct {
	clients map[string]models.Client
}

func (f *fakeClients) GetClient(_ context.Context, id string) (models.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return models.Client{}, pgx.ErrNoRows
	}
	return c, nil
}

func ptr[T any](v T) *T { return &v }

func newEngine(orders *fakeOrders, techs *fakeTechs, queue *fakeQueue, notifs *fakeNotifications, clients *fakeClients) *DispatchEngine {
	return &DispatchEngine{
		Orders:        orders,
		Technicians:   techs,
		Queue:         queue,
		Notifications: notifs,
		Clients:       clients,
		Logger:        zerolog.Nop(),
	}
}

func testOrder() models.WorkOrder {
	return models.WorkOrder{
		ID:                "wo-1",
		ClientID:          "cl-1",
		RequiredSkills:    []string{"hvac"},
		Priority:          8,
		SLATier:           models.SLACritical,
		EstimatedDuration: 60,
		ScheduledDate:     time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		Lat:               ptr(51.10),
		Lon:               ptr(71.40),
		Status:            models.WorkOrderOpen,
	}
}

func TestSuggestPicksPerfectCandidate(t *testing.T) {
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": testOrder()}}
	techs := &fakeTechs{techs: []models.Technician{
		{ID: "t1", Name: "Close and skilled", Active: true, Status: models.TechAvailable,
			Lat: ptr(51.12), Lon: ptr(71.41), Skills: []string{"hvac"}},
		{ID: "t2", Name: "Far away", Active: true, Status: models.TechAvailable,
			Lat: ptr(43.20), Lon: ptr(76.90), Skills: []string{"hvac"}},
	}}
	engine := newEngine(orders, techs, &fakeQueue{}, &fakeNotifications{}, &fakeClients{})

	score, err := engine.Suggest(context.Background(), "wo-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score == nil || score.TechnicianID != "t1" {
		t.Fatalf("expected t1, got %+v", score)
	}
	if score.Total <= 90 {
		t.Fatalf("perfect candidate should exceed 90, got %.2f", score.Total)
	}
	if score.Total != 100 {
		t.Fatalf("all components at 100 must total 100, got %.2f", score.Total)
	}
	if score.DistanceKm == nil || *score.DistanceKm > 5 {
		t.Fatalf("expected a close-by distance, got %+v", score.DistanceKm)
	}
}

func TestSuggestDeterministic(t *testing.T) {
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": testOrder()}}
	techs := &fakeTechs{techs: []models.Technician{
		{ID: "t1", Active: true, Status: models.TechAvailable, Lat: ptr(51.2), Lon: ptr(71.5), Skills: []string{"hvac"}},
		{ID: "t2", Active: true, Status: models.TechInTransit, Lat: ptr(51.3), Lon: ptr(71.6), Skills: []string{"hvac"}},
	}}
	engine := newEngine(orders, techs, &fakeQueue{}, &fakeNotifications{}, &fakeClients{})

	first, err := engine.Suggest(context.Background(), "wo-1")
	if err != nil || first == nil {
		t.Fatalf("suggest failed: %v %v", first, err)
	}
	second, err := engine.Suggest(context.Background(), "wo-1")
	if err != nil || second == nil {
		t.Fatalf("suggest failed: %v %v", second, err)
	}
	if first.TechnicianID != second.TechnicianID || first.Total != second.Total {
		t.Fatalf("suggest not deterministic: %+v vs %+v", first, second)
	}
}

func TestSuggestTieBreaksOnLowerID(t *testing.T) {
	order := testOrder()
	order.Lat, order.Lon = nil, nil
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": order}}
	techs := &fakeTechs{techs: []models.Technician{
		{ID: "t9", Active: true, Status: models.TechAvailable, Skills: []string{"hvac"}},
		{ID: "t2", Active: true, Status: models.TechAvailable, Skills: []string{"hvac"}},
	}}
	engine := newEngine(orders, techs, &fakeQueue{}, &fakeNotifications{}, &fakeClients{})

	score, err := engine.Suggest(context.Background(), "wo-1")
	if err != nil || score == nil {
		t.Fatalf("suggest failed: %v %v", score, err)
	}
	if score.TechnicianID != "t2" {
		t.Fatalf("tie should break to lower ID, got %s", score.TechnicianID)
	}
}

func TestSuggestExcludesZeroSkillOverlap(t *testing.T) {
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": testOrder()}}
	techs := &fakeTechs{techs: []models.Technician{
		{ID: "t1", Active: true, Status: models.TechAvailable, Lat: ptr(51.10), Lon: ptr(71.40), Skills: []string{"plumbing"}},
	}}
	engine := newEngine(orders, techs, &fakeQueue{}, &fakeNotifications{}, &fakeClients{})

	score, err := engine.Suggest(context.Background(), "wo-1")
	if err != nil {
		t.Fatalf("no-candidate must not be an error: %v", err)
	}
	if score != nil {
		t.Fatalf("zero skill overlap must be excluded, got %+v", score)
	}
}

func TestSuggestPartialOverlapIncludedButPenalized(t *testing.T) {
	order := testOrder()
	order.RequiredSkills = []string{"hvac", "refrigeration"}
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": order}}
	// roughly 80 km away, one of two required skills
	techs := &fakeTechs{techs: []models.Technician{
		{ID: "t1", Active: true, Status: models.TechUnavailable, Lat: ptr(51.80), Lon: ptr(71.60), Skills: []string{"hvac"}, DayCapacityMinutes: 60},
	}}
	techs.committed = map[string]int{"t1": 60}
	engine := newEngine(orders, techs, &fakeQueue{}, &fakeNotifications{}, &fakeClients{})

	score, err := engine.Suggest(context.Background(), "wo-1")
	if err != nil || score == nil {
		t.Fatalf("partial overlap must stay in the pool: %v %v", score, err)
	}
	if score.SkillScore != 50 {
		t.Fatalf("expected skill 50, got %.2f", score.SkillScore)
	}
	if score.DistanceScore != 0 {
		t.Fatalf("expected distance 0 at ~80 km, got %.2f", score.DistanceScore)
	}
	if score.AvailabilityScore != 0 {
		t.Fatalf("expected no remaining capacity, got %.2f", score.AvailabilityScore)
	}
	// 0.4*50 + 0.15*urgency is all that is left
	if score.Total > 40 {
		t.Fatalf("penalized candidate scored too high: %.2f", score.Total)
	}
}

func TestSuggestMissingOrderIsHardError(t *testing.T) {
	engine := newEngine(&fakeOrders{orders: map[string]models.WorkOrder{}}, &fakeTechs{}, &fakeQueue{}, &fakeNotifications{}, &fakeClients{})
	if _, err := engine.Suggest(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for a missing work order")
	}
}

func TestAutoAssignNoCandidateLeavesStateUntouched(t *testing.T) {
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": testOrder()}}
	techs := &fakeTechs{}
	queue := &fakeQueue{}
	notifs := &fakeNotifications{}
	engine := newEngine(orders, techs, queue, notifs, &fakeClients{})

	ok, err := engine.AutoAssign(context.Background(), "wo-1")
	if err != nil {
		t.Fatalf("no-candidate must not be an error: %v", err)
	}
	if ok {
		t.Fatal("expected no assignment")
	}
	if orders.orders["wo-1"].Status != models.WorkOrderOpen {
		t.Fatalf("work order mutated: %+v", orders.orders["wo-1"])
	}
	if len(queue.settled) != 0 || len(notifs.messages) != 0 {
		t.Fatal("side effects without a candidate")
	}
}

func TestAutoAssignWritesAssignmentAndNotifications(t *testing.T) {
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": testOrder()}}
	techs := &fakeTechs{techs: []models.Technician{
		{ID: "t1", Name: "Aizhan", Active: true, Status: models.TechAvailable,
			Phone: "+77010000001", Lat: ptr(51.11), Lon: ptr(71.41), Skills: []string{"hvac"}},
	}}
	queue := &fakeQueue{}
	notifs := &fakeNotifications{}
	clients := &fakeClients{clients: map[string]models.Client{
		"cl-1": {ID: "cl-1", Name: "Acme", Email: "ops@acme.example", PreferredChannel: models.ChannelEmail},
	}}
	engine := newEngine(orders, techs, queue, notifs, clients)

	ok, err := engine.AutoAssign(context.Background(), "wo-1")
	if err != nil || !ok {
		t.Fatalf("expected assignment, got ok=%v err=%v", ok, err)
	}
	if orders.assigned["wo-1"] != "t1" {
		t.Fatalf("technician not written: %+v", orders.assigned)
	}
	if len(queue.settled) != 1 || queue.settled[0] != "wo-1" {
		t.Fatalf("queue entry not settled: %+v", queue.settled)
	}
	if len(notifs.messages) != 2 {
		t.Fatalf("expected technician alert and client confirmation, got %d", len(notifs.messages))
	}
	byType := map[string]models.NotificationMessage{}
	for _, m := range notifs.messages {
		byType[m.Type] = m
		if m.Status != models.NotificationPending {
			t.Fatalf("messages must be enqueued pending, got %s", m.Status)
		}
	}
	if byType[models.NotifyTechnicianAssignment].Channel != models.ChannelSMS {
		t.Fatalf("technician alert should use sms: %+v", byType[models.NotifyTechnicianAssignment])
	}
	if byType[models.NotifySchedulingConfirmation].Recipient != "ops@acme.example" {
		t.Fatalf("confirmation should honor preferred channel: %+v", byType[models.NotifySchedulingConfirmation])
	}
}

func TestAutoAssignAlreadyAssignedOrderIsNoOp(t *testing.T) {
	order := testOrder()
	prev := "t9"
	order.Status = models.WorkOrderAssigned
	order.TechnicianID = &prev
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": order}}
	techs := &fakeTechs{techs: []models.Technician{
		{ID: "t1", Active: true, Status: models.TechAvailable, Lat: ptr(51.11), Lon: ptr(71.41), Skills: []string{"hvac"}},
	}}
	queue := &fakeQueue{}
	notifs := &fakeNotifications{}
	engine := newEngine(orders, techs, queue, notifs, &fakeClients{})

	ok, err := engine.AutoAssign(context.Background(), "wo-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("success must mean the open to assigned transition happened")
	}
	if got := orders.orders["wo-1"]; got.TechnicianID == nil || *got.TechnicianID != "t9" {
		t.Fatalf("technician on record changed: %+v", got)
	}
	if len(queue.settled) != 0 || len(notifs.messages) != 0 {
		t.Fatalf("repeated auto-assign must not re-notify: settled=%v messages=%d", queue.settled, len(notifs.messages))
	}
}

func TestAddToQueueSnapshotsSuggestion(t *testing.T) {
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": testOrder()}}
	techs := &fakeTechs{techs: []models.Technician{
		{ID: "t1", Active: true, Status: models.TechAvailable, Lat: ptr(51.11), Lon: ptr(71.41), Skills: []string{"hvac"}},
	}}
	queue := &fakeQueue{}
	engine := newEngine(orders, techs, queue, &fakeNotifications{}, &fakeClients{})

	entry, err := engine.AddToQueue(context.Background(), "wo-1", []string{"hvac"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != models.QueuePending {
		t.Fatalf("expected pending entry, got %s", entry.Status)
	}
	if entry.SuggestedTechnicianID == nil || *entry.SuggestedTechnicianID != "t1" {
		t.Fatalf("suggestion not snapshotted: %+v", entry)
	}
	if queue.expireCalls != 1 {
		t.Fatal("previous entries must be expired first")
	}
	if len(queue.entries) != 1 {
		t.Fatalf("entry not persisted: %+v", queue.entries)
	}
}

func TestAddToQueueWithoutCandidateKeepsNilSuggestion(t *testing.T) {
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": testOrder()}}
	queue := &fakeQueue{}
	engine := newEngine(orders, &fakeTechs{}, queue, &fakeNotifications{}, &fakeClients{})

	entry, err := engine.AddToQueue(context.Background(), "wo-1", []string{"hvac"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.SuggestedTechnicianID != nil || entry.Score != 0 {
		t.Fatalf("expected empty suggestion, got %+v", entry)
	}
}

func TestRequeueAfterAssignmentKeepsOneLiveEntry(t *testing.T) {
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": testOrder()}}
	techs := &fakeTechs{techs: []models.Technician{
		{ID: "t1", Name: "Aizhan", Active: true, Status: models.TechAvailable,
			Phone: "+77010000001", Lat: ptr(51.11), Lon: ptr(71.41), Skills: []string{"hvac"}},
	}}
	queue := &fakeQueue{}
	clients := &fakeClients{clients: map[string]models.Client{
		"cl-1": {ID: "cl-1", Name: "Acme", Email: "ops@acme.example"},
	}}
	engine := newEngine(orders, techs, queue, &fakeNotifications{}, clients)

	if _, err := engine.AddToQueue(context.Background(), "wo-1", []string{"hvac"}); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if ok, err := engine.AutoAssign(context.Background(), "wo-1"); err != nil || !ok {
		t.Fatalf("assignment failed: ok=%v err=%v", ok, err)
	}

	// cancel-and-redispatch flow: the order is reopened before re-queueing
	reopened := orders.orders["wo-1"]
	reopened.Status = models.WorkOrderOpen
	reopened.TechnicianID = nil
	orders.orders["wo-1"] = reopened

	if _, err := engine.AddToQueue(context.Background(), "wo-1", []string{"hvac"}); err != nil {
		t.Fatalf("second enqueue failed: %v", err)
	}

	live := queue.live()
	if len(live) != 1 {
		t.Fatalf("expected exactly one non-expired entry, got %d: %+v", len(live), live)
	}
	if live[0].Status != models.QueuePending {
		t.Fatalf("surviving entry should be the fresh pending one: %+v", live[0])
	}
}

func TestCompleteWorkOrderQueuesSurvey(t *testing.T) {
	order := testOrder()
	order.Status = models.WorkOrderAssigned
	orders := &fakeOrders{orders: map[string]models.WorkOrder{"wo-1": order}}
	notifs := &fakeNotifications{}
	clients := &fakeClients{clients: map[string]models.Client{
		"cl-1": {ID: "cl-1", Name: "Acme", Phone: "+77010000009"},
	}}
	engine := newEngine(orders, &fakeTechs{}, &fakeQueue{}, notifs, clients)

	if err := engine.CompleteWorkOrder(context.Background(), "wo-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders.completed) != 1 {
		t.Fatal("order not completed")
	}
	if len(notifs.messages) != 1 || notifs.messages[0].Type != models.NotifyNPSSurvey {
		t.Fatalf("expected survey message, got %+v", notifs.messages)
	}
	if notifs.messages[0].Channel != models.ChannelSMS {
		t.Fatalf("phone-only client should get sms, got %s", notifs.messages[0].Channel)
	}
}

func TestUpdateTechnicianLocationAppendsHistory(t *testing.T) {
	techs := &fakeTechs{techs: []models.Technician{{ID: "t1", Active: true}}}
	engine := newEngine(&fakeOrders{}, techs, &fakeQueue{}, &fakeNotifications{}, &fakeClients{})

	wo := "wo-7"
	if err := engine.UpdateTechnicianLocation(context.Background(), "t1", 51.2, 71.3, models.TechInTransit, &wo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if techs.techs[0].Status != models.TechInTransit || techs.techs[0].Lat == nil {
		t.Fatalf("live state not updated: %+v", techs.techs[0])
	}
	if len(techs.history) != 1 || techs.history[0].WorkOrderID == nil {
		t.Fatalf("history row missing: %+v", techs.history)
	}
}
