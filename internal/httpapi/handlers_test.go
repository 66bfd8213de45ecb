package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/pug-queue-backend/internal/auth"
	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
	"github.com/DoyleJ11/pug-queue-backend/internal/hub"
	"github.com/DoyleJ11/pug-queue-backend/internal/matchmaking"
	"github.com/DoyleJ11/pug-queue-backend/internal/models"
	"github.com/DoyleJ11/pug-queue-backend/internal/store"
	pub "github.com/DoyleJ11/pug-queue-backend/pkg/types"
)

var secret = []byte("test-secret")

func newTestServer(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	log := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, log)
	coord := matchmaking.NewCoordinator(matchmaking.Deps{
		Store:  store.NewMemoryStore(nil),
		Events: h,
		Rand:   engine.NewLockedRand(engine.NewRand(1)),
		Logger: log,
	}, matchmaking.Config{
		MaxQueuesPerOwner: 1,
		Rules:             engine.Rules{MapPool: []string{"a", "b", "c"}},
	})
	return SetupRoutes(coord, h, secret, log, opts...)
}

func token(t *testing.T, player, role string) string {
	t.Helper()
	tok, err := auth.IssueToken(secret, player, role, time.Minute)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, srv http.Handler, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func snapshotOf(t *testing.T, rec *httptest.ResponseRecorder) pub.QueueSnapshot {
	t.Helper()
	var snap pub.QueueSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQueuesRequireAuth(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/queues", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/queues", "garbage", nil).Code)
}

func TestQueueLifecycle(t *testing.T) {
	srv := newTestServer(t)
	owner := token(t, "p1", "")
	other := token(t, "p2", "")

	rec := do(t, srv, http.MethodPost, "/queues", owner, pub.CreateQueueRequest{Capacity: 4, Private: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snap := snapshotOf(t, rec)
	assert.Equal(t, "p1", snap.OwnerID)
	assert.Equal(t, engine.StatusWaiting, snap.Status)
	path := "/queues/" + snap.ID

	assert.Equal(t, http.StatusTooManyRequests, do(t, srv, http.MethodPost, "/queues", owner, nil).Code)

	// Private queues are invisible to strangers until they join.
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, path, other, nil).Code)
	rec = do(t, srv, http.MethodPost, path+"/join", other, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, snapshotOf(t, rec).Members, 2)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, path, other, nil).Code)

	rec = do(t, srv, http.MethodPost, path+"/leave", other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, snapshotOf(t, rec).Members, 1)

	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, path+"/leave", owner, nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodDelete, path, other, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, path, owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, path, owner, nil).Code)
}

func TestDraftAndVetoOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	tokens := map[string]string{}
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("p%d", i)
		tokens[id] = token(t, id, "")
	}

	rec := do(t, srv, http.MethodPost, "/queues", tokens["p1"], pub.CreateQueueRequest{Capacity: 4})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/queues/" + snapshotOf(t, rec).ID
	for _, p := range []string{"p2", "p3", "p4"} {
		rec = do(t, srv, http.MethodPost, path+"/join", tokens[p], nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	snap := snapshotOf(t, rec)
	require.Equal(t, engine.StatusPicking, snap.Status)
	d := snap.Draft

	rec = do(t, srv, http.MethodPost, path+"/picks", tokens[d.Captain2], pub.PickRequest{PlayerID: d.AvailablePlayers[0]})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, srv, http.MethodPost, path+"/picks", tokens[d.Captain1], pub.PickRequest{PlayerID: "nobody"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var rejected pub.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejected))
	assert.Nil(t, rejected.Queue, "a rejected pick stores nothing")

	rec = do(t, srv, http.MethodPost, path+"/picks", tokens[d.Captain1], pub.PickRequest{PlayerID: d.AvailablePlayers[0]})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodPost, path+"/picks", tokens[d.Captain2], pub.PickRequest{PlayerID: d.AvailablePlayers[1]})
	require.Equal(t, http.StatusOK, rec.Code)
	snap = snapshotOf(t, rec)
	require.Equal(t, engine.StatusVeto, snap.Status)

	rec = do(t, srv, http.MethodPost, path+"/veto/start", tokens[d.Captain1], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Three maps: captain2 bans once, captain1 once, and the last map is
	// picked. No allocator is configured, so the pick reports a failure.
	rec = do(t, srv, http.MethodPost, path+"/veto/bans", tokens[d.Captain2], pub.BanRequest{Map: "a"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodPost, path+"/veto/bans", tokens[d.Captain1], pub.BanRequest{Map: "b"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	// The ban was stored, so the error carries the updated queue.
	var failed pub.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.NotEmpty(t, failed.Error)
	require.NotNil(t, failed.Queue)
	assert.Equal(t, engine.StatusServerAllocationFailed, failed.Queue.Status)

	rec = do(t, srv, http.MethodGet, path, tokens["p1"], nil)
	snap = snapshotOf(t, rec)
	assert.Equal(t, engine.StatusServerAllocationFailed, snap.Status)
	assert.Equal(t, "c", snap.Map)

	server := pub.AssignServerRequest{ID: "box", Host: "10.0.0.9", Port: 27015, Password: "pw"}
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPut, path+"/server", tokens["p1"], server).Code)
	rec = do(t, srv, http.MethodPut, path+"/server", token(t, "ops", auth.RoleAdmin), server)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = snapshotOf(t, rec)
	assert.Equal(t, engine.StatusInProgress, snap.Status)
	assert.Equal(t, "pw", snap.Server.Password)

	// Strangers see the server without its password.
	snap = snapshotOf(t, do(t, srv, http.MethodGet, path, token(t, "stranger", ""), nil))
	assert.Empty(t, snap.Server.Password)
}

func TestStatusFor(t *testing.T) {
	unavailable := fmt.Errorf("redis get: %w", engine.ErrUnavailable)
	cases := map[error]int{
		engine.ErrQueueNotFound:    http.StatusNotFound,
		engine.ErrQueueFull:        http.StatusConflict,
		engine.ErrWrongTurn:        http.StatusForbidden,
		engine.ErrMapUnavailable:   http.StatusBadRequest,
		engine.ErrQuotaExceeded:    http.StatusTooManyRequests,
		engine.ErrAllocationFailed: http.StatusBadGateway,
		unavailable:                http.StatusServiceUnavailable,
		engine.ErrVetoAnomaly:      http.StatusInternalServerError,
		errors.New("boom"):         http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

type fakeRecords struct {
	matches map[string]*models.Match
	players map[string]*models.Player
}

func (f *fakeRecords) GetMatchByQueue(_ context.Context, queueID string) (*models.Match, error) {
	m, ok := f.matches[queueID]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return m, nil
}

func (f *fakeRecords) Upsert(_ context.Context, p *models.Player) error {
	f.players[p.ID] = p
	return nil
}

func TestMatchAndPlayerRoutes(t *testing.T) {
	records := &fakeRecords{
		matches: map[string]*models.Match{
			"Q1": {ID: "m-1", QueueID: "Q1", TeamAID: "ta", TeamBID: "tb", Map: "nuke", ServerHost: "10.0.0.2", ServerPort: 27015},
		},
		players: map[string]*models.Player{},
	}
	srv := newTestServer(t, WithMatches(records), WithPlayers(records))
	user := token(t, "p1", "")
	admin := token(t, "ops", auth.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/matches/Q1", "", nil).Code)
	rec := do(t, srv, http.MethodGet, "/matches/Q1", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var match pub.MatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &match))
	assert.Equal(t, "m-1", match.ID)
	assert.Equal(t, "nuke", match.Map)
	assert.Equal(t, 27015, match.ServerPort)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/matches/NOPE", user, nil).Code)

	rating := 1500.0
	body := pub.PlayerRequest{DisplayName: " Ace ", Rating: &rating}
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPut, "/players/p7", user, body).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, "/players/p7", admin, pub.PlayerRequest{}).Code)
	rec = do(t, srv, http.MethodPut, "/players/p7", admin, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, records.players, "p7")
	assert.Equal(t, "Ace", records.players["p7"].DisplayName)
	assert.Equal(t, 1500.0, *records.players["p7"].Rating)
}

func TestRecordRoutesNeedBackends(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/matches/Q1", token(t, "p1", ""), nil).Code)
}
