package sessions_test

import (
	"encoding/json"
	"sync"
	"testing"

	hrerrors "github.com/jrsteele09/go-hr-console/internal/errors"
	"github.com/jrsteele09/go-hr-console/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *sessions.User {
	return &sessions.User{ID: "u1", Name: "Jane Doe", Role: "employee"}
}

func requireInvariant(t *testing.T, s sessions.Session) {
	t.Helper()
	require.Equal(t, s.User != nil, s.IsAuthenticated())
	if s.PendingVerification {
		require.Nil(t, s.User)
		require.Empty(t, s.AccessToken)
	}
}

func TestLoginWithoutSecondFactor(t *testing.T) {
	store := sessions.NewStore()
	require.Equal(t, sessions.StateAnonymous, store.State())
	require.Nil(t, store.Token())

	require.NoError(t, store.CompleteLogin(testUser(), "abc"))

	snap := store.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, "u1", snap.User.ID)
	require.Equal(t, "abc", snap.AccessToken)
	require.Equal(t, "abc", store.Token().AccessToken)
	requireInvariant(t, snap)
}

func TestVerificationFlow(t *testing.T) {
	store := sessions.NewStore()

	require.NoError(t, store.BeginVerification("jane@example.com"))
	snap := store.Snapshot()
	require.Equal(t, sessions.StatePendingVerification, snap.State())
	require.Equal(t, "jane@example.com", snap.PendingEmail)
	require.False(t, snap.IsAuthenticated())
	requireInvariant(t, snap)

	require.NoError(t, store.CompleteVerification(testUser(), "tok"))
	snap = store.Snapshot()
	require.Equal(t, sessions.StateAuthenticated, snap.State())
	require.False(t, snap.PendingVerification)
	requireInvariant(t, snap)
}

func TestInvalidTransitions(t *testing.T) {
	store := sessions.NewStore()

	err := store.CompleteVerification(testUser(), "tok")
	require.ErrorIs(t, err, hrerrors.ErrNoPendingVerification)

	require.NoError(t, store.CompleteLogin(testUser(), "abc"))
	require.ErrorIs(t, store.CompleteLogin(testUser(), "def"), hrerrors.ErrInvalidTransition)
	require.ErrorIs(t, store.BeginVerification("x@example.com"), hrerrors.ErrInvalidTransition)
	require.Equal(t, "abc", store.Snapshot().AccessToken)

	store.Clear()
	require.NoError(t, store.BeginVerification("x@example.com"))
	require.ErrorIs(t, store.ApplyRefresh(testUser(), "t"), hrerrors.ErrInvalidTransition)
}

func TestAuthenticateRequiresUser(t *testing.T) {
	store := sessions.NewStore()
	require.ErrorIs(t, store.CompleteLogin(nil, "abc"), hrerrors.ErrMissingUser)
	require.ErrorIs(t, store.ApplyRefresh(nil, "abc"), hrerrors.ErrMissingUser)
	require.False(t, store.IsAuthenticated())
	require.Empty(t, store.Snapshot().AccessToken)
}

func TestRefreshFromAnonymousAndAuthenticated(t *testing.T) {
	store := sessions.NewStore()
	require.NoError(t, store.ApplyRefresh(testUser(), "r1"))
	require.NoError(t, store.ApplyRefresh(testUser(), "r2"))
	require.Equal(t, "r2", store.Token().AccessToken)

	// cookie based sessions may carry no bearer token
	require.NoError(t, store.ApplyRefresh(testUser(), ""))
	require.True(t, store.IsAuthenticated())
	require.Nil(t, store.Token())
}

func TestRejectRecordsError(t *testing.T) {
	store := sessions.NewStore()
	require.NoError(t, store.CompleteLogin(testUser(), "abc"))

	store.Reject("Invalid credentials")
	snap := store.Snapshot()
	require.Equal(t, sessions.StateAnonymous, snap.State())
	require.Equal(t, "Invalid credentials", snap.LastError)
	require.Nil(t, store.Token())
	requireInvariant(t, snap)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := sessions.NewStore()
	require.NoError(t, store.CompleteLogin(testUser(), "abc"))

	snap := store.Snapshot()
	snap.User.ID = "mutated"
	snap.AccessToken = "mutated"

	require.Equal(t, "u1", store.CurrentUser().ID)
	require.Equal(t, "abc", store.Snapshot().AccessToken)
}

func TestSubscribeSeesEveryTransitionInOrder(t *testing.T) {
	store := sessions.NewStore()
	var states []sessions.State
	unsubscribe := store.Subscribe(func(s sessions.Session) {
		requireInvariant(t, s)
		states = append(states, s.State())
	})

	require.NoError(t, store.BeginVerification("jane@example.com"))
	require.NoError(t, store.CompleteVerification(testUser(), "tok"))
	require.Error(t, store.CompleteLogin(testUser(), "x"))
	store.Clear()

	unsubscribe()
	require.NoError(t, store.CompleteLogin(testUser(), "y"))

	require.Equal(t, []sessions.State{
		sessions.StatePendingVerification,
		sessions.StateAuthenticated,
		sessions.StateAnonymous,
	}, states)
}

func TestConcurrentTransitionsKeepInvariant(t *testing.T) {
	store := sessions.NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); _ = store.ApplyRefresh(testUser(), "t") }()
		go func() { defer wg.Done(); store.Clear() }()
		go func() {
			defer wg.Done()
			snap := store.Snapshot()
			assert.Equal(t, snap.User != nil, snap.State() == sessions.StateAuthenticated)
			if snap.User == nil {
				assert.Empty(t, snap.AccessToken)
			}
		}()
	}
	wg.Wait()
	requireInvariant(t, store.Snapshot())
}

func TestUserJSONKeepsBlob(t *testing.T) {
	blob := `{"_id":"u9","name":"Sam","role":"manager","department":{"_id":"d1","name":"Finance"},"extra":1}`

	var u sessions.User
	require.NoError(t, json.Unmarshal([]byte(blob), &u))
	require.Equal(t, "u9", u.ID)
	require.Equal(t, "Finance", u.Department)

	out, err := json.Marshal(u)
	require.NoError(t, err)
	require.JSONEq(t, blob, string(out))

	var plain sessions.User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","department":"HR"}`), &plain))
	require.Equal(t, "HR", plain.Department)
}
